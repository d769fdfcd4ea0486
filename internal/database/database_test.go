package database

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/voc"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func TestUpsertAndListAds(t *testing.T) {
	db := openTestDB(t)
	ads := []creative.Ad{
		{ID: "a1", Headline: "First", DeliveryStart: ptr("2024-01-01"), CreativeReuse: 3.0, Status: ptr("active")},
		{ID: "a2", Headline: "Second", PrimaryText: "Body", Media: []creative.MediaItem{{Type: "video", VideoAnalysis: []byte(`{"transcript":"hi"}`)}}},
		{Headline: "No id"},
	}

	n, err := db.UpsertAds(ads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 ads written, got %d", n)
	}

	got, err := db.ListAds()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 ads, got %d", len(got))
	}
	if got[0].ID != "a1" || got[1].ID != "a2" {
		t.Errorf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
	if got[0].CreativeReuse != 3.0 || *got[0].Status != "active" {
		t.Errorf("fields not round-tripped: %+v", got[0])
	}
	if string(got[1].VideoAnalysis()) != `{"transcript":"hi"}` {
		t.Errorf("video analysis lost: %s", got[1].VideoAnalysis())
	}
}

func TestUpsertAdsReplacesByID(t *testing.T) {
	db := openTestDB(t)
	db.UpsertAds([]creative.Ad{{ID: "a1", Headline: "Old"}})
	db.UpsertAds([]creative.Ad{{ID: "a1", Headline: "New"}})

	count, _ := db.CountAds()
	if count != 1 {
		t.Errorf("expected 1 ad, got %d", count)
	}
	ads, _ := db.ListAds()
	if ads[0].Headline != "New" {
		t.Errorf("expected replaced headline, got %q", ads[0].Headline)
	}

	if err := db.ClearAds(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if count, _ := db.CountAds(); count != 0 {
		t.Errorf("expected 0 ads after clear, got %d", count)
	}
}

func TestReportLifecycle(t *testing.T) {
	db := openTestDB(t)
	cutoff := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	if err := db.CreateReport("r1", cutoff, 3); err != nil {
		t.Fatalf("create: %v", err)
	}
	r, err := db.GetReport("r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Status != "pending" || r.ProgressTotal != 3 || r.Cutoff != "2024-02-01T00:00:00Z" {
		t.Errorf("unexpected pending report: %+v", r)
	}

	if err := db.SetReportStatus("r1", "running", ""); err != nil {
		t.Fatalf("status: %v", err)
	}
	if err := db.SetReportProgress("r1", 2, 3); err != nil {
		t.Fatalf("progress: %v", err)
	}
	r, _ = db.GetReport("r1")
	if r.Status != "running" || r.ProgressCurrent != 2 {
		t.Errorf("unexpected running report: %+v", r)
	}

	if err := db.CompleteReport("r1", []byte(`{"id":"r1"}`)); err != nil {
		t.Fatalf("complete: %v", err)
	}
	r, _ = db.GetReport("r1")
	if r.Status != "complete" || r.ProgressCurrent != 3 || r.ReportJSON == nil || *r.ReportJSON != `{"id":"r1"}` {
		t.Errorf("unexpected complete report: %+v", r)
	}
}

func TestReportFailureAndInvalidStatus(t *testing.T) {
	db := openTestDB(t)
	db.CreateReport("r1", time.Now(), 1)

	if err := db.SetReportStatus("r1", "failed", "provider down"); err != nil {
		t.Fatalf("status: %v", err)
	}
	r, _ := db.GetReport("r1")
	if r.Error == nil || *r.Error != "provider down" {
		t.Errorf("expected error message, got %v", r.Error)
	}

	if err := db.SetReportStatus("r1", "exploded", ""); err == nil {
		t.Error("expected check constraint to reject unknown status")
	}
}

func TestReportNotFound(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetReport("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := db.SetReportProgress("missing", 1, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListReports(t *testing.T) {
	db := openTestDB(t)
	db.CreateReport("r1", time.Now(), 1)
	db.CreateReport("r2", time.Now(), 2)
	db.CompleteReport("r2", []byte(`{}`))

	reports, err := db.ListReports(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 2 || reports[0].ID != "r2" {
		t.Fatalf("expected newest first, got %+v", reports)
	}
	if reports[0].ReportJSON != nil {
		t.Error("list should not load report bodies")
	}
}

func TestCorpusRoundTrip(t *testing.T) {
	db := openTestDB(t)
	corpus := voc.Corpus{Categories: []voc.Category{
		{Name: "Product", Topics: []voc.Topic{
			{Label: "battery life", VerbatimCount: 10, Verbatims: []string{"dies fast", "ok"}},
			{Label: "build quality", Verbatims: []string{"feels cheap"}},
		}},
		{Name: "Service", Topics: []voc.Topic{{Label: "shipping", VerbatimCount: 4}}},
	}}

	n, err := db.ReplaceCorpus(corpus)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 topics, got %d", n)
	}

	got, err := db.LoadCorpus()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := voc.Corpus{Categories: []voc.Category{
		{Name: "Product", Topics: []voc.Topic{
			{Label: "battery life", VerbatimCount: 10, Verbatims: []string{"dies fast", "ok"}},
			{Label: "build quality", VerbatimCount: 1, Verbatims: []string{"feels cheap"}},
		}},
		{Name: "Service", Topics: []voc.Topic{{Label: "shipping", VerbatimCount: 4}}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("corpus mismatch (-want +got):\n%s", diff)
	}

	db.ReplaceCorpus(voc.Corpus{})
	got, _ = db.LoadCorpus()
	if len(got.Categories) != 0 {
		t.Errorf("expected empty corpus after replace, got %+v", got)
	}
}

func TestReplaceCorpusMergesRepeatedTopics(t *testing.T) {
	db := openTestDB(t)
	corpus := voc.Corpus{Categories: []voc.Category{
		{Name: "Product", Topics: []voc.Topic{
			{Label: "battery life", VerbatimCount: 5, Verbatims: []string{"dies fast"}},
			{Label: "battery life", VerbatimCount: 3, Verbatims: []string{"lasts a day"}},
		}},
		{Name: "Service", Topics: []voc.Topic{{Label: "shipping", VerbatimCount: 2}}},
	}}

	n, err := db.ReplaceCorpus(corpus)
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 distinct topics, got %d", n)
	}

	got, err := db.LoadCorpus()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := voc.Corpus{Categories: []voc.Category{
		{Name: "Product", Topics: []voc.Topic{
			{Label: "battery life", VerbatimCount: 8, Verbatims: []string{"dies fast", "lasts a day"}},
		}},
		{Name: "Service", Topics: []voc.Topic{{Label: "shipping", VerbatimCount: 2}}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("corpus mismatch (-want +got):\n%s", diff)
	}
}

func TestGetStats(t *testing.T) {
	db := openTestDB(t)
	db.UpsertAds([]creative.Ad{{ID: "a1"}, {ID: "a2"}})
	db.ReplaceCorpus(voc.Corpus{Categories: []voc.Category{{Name: "C", Topics: []voc.Topic{{Label: "t", Verbatims: []string{"x", "y"}}}}}})
	db.CreateReport("r1", time.Now(), 2)

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := &Stats{Ads: 2, VOCTopics: 1, VOCVerbatims: 2, ReportsByStatus: map[string]int{"pending": 1}}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

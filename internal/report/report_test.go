package report

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/voc"
)

var cutoff = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// mockEnricher returns canned classifications keyed by ad ID.
type mockEnricher struct {
	results map[string]*creative.LLMClassification
	fail    map[string]bool
	panics  map[string]bool
}

func (m *mockEnricher) Classify(_ context.Context, ad creative.Ad) (*creative.LLMClassification, error) {
	if m.panics[ad.ID] {
		panic("boom")
	}
	if m.fail[ad.ID] {
		return nil, errors.New("unparseable")
	}
	return m.results[ad.ID], nil
}

// memStore implements JobStore, AdSource and CorpusSource in memory.
type memStore struct {
	mu       sync.Mutex
	ads      []creative.Ad
	corpus   voc.Corpus
	statuses []string
	status   map[string]string
	errMsg   map[string]string
	progress []int
	total    int
	reports  map[string][]byte
}

func newMemStore(ads ...creative.Ad) *memStore {
	return &memStore{
		ads:     ads,
		status:  map[string]string{},
		errMsg:  map[string]string{},
		reports: map[string][]byte{},
	}
}

func (s *memStore) ListAds() ([]creative.Ad, error) { return s.ads, nil }

func (s *memStore) LoadCorpus() (voc.Corpus, error) { return s.corpus, nil }

func (s *memStore) CreateReport(id string, _ time.Time, total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = StatusPending
	s.statuses = append(s.statuses, StatusPending)
	s.total = total
	return nil
}

func (s *memStore) SetReportStatus(id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = status
	s.errMsg[id] = errMsg
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *memStore) SetReportProgress(_ string, current, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, current)
	return nil
}

func (s *memStore) CompleteReport(id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = StatusComplete
	s.statuses = append(s.statuses, StatusComplete)
	s.reports[id] = data
	return nil
}

func testAds() []creative.Ad {
	return []creative.Ad{
		{ID: "a1", Headline: "Tired of cold coffee?", PrimaryText: "Our mug keeps it hot.",
			DeliveryStart: ptr("2024-01-01"), DeliveryEnd: ptr("2024-01-11"), CreativeReuse: 2.0, Status: ptr("active")},
		{ID: "a2", Headline: "Shop now: 20% off today only", PrimaryText: "Free shipping on every order."},
		{ID: "a3", Headline: "Meet the mug", PrimaryText: "See how it works in our demo."},
	}
}

func TestProcessAdComputesExposureAndRules(t *testing.T) {
	p := NewProcessor(nil, 2, zap.NewNop())
	got := p.ProcessAd(context.Background(), testAds()[0], cutoff)

	if got.Ad.RunDays == nil || *got.Ad.RunDays != 10 {
		t.Errorf("expected run_days 10, got %v", got.Ad.RunDays)
	}
	if got.Ad.ExposureProxy == nil || *got.Ad.ExposureProxy != 20 {
		t.Errorf("expected exposure 20, got %v", got.Ad.ExposureProxy)
	}
	if got.Rules.HookType != "pain_agitation" {
		t.Errorf("expected pain_agitation hook, got %q", got.Rules.HookType)
	}
	if got.LLM != nil {
		t.Error("expected no LLM output without an enricher")
	}
}

func TestProcessAdKeepsExistingExposure(t *testing.T) {
	ad := testAds()[1]
	ad.RunDays = ptr(3)
	ad.ExposureProxy = ptr(42.0)

	got := NewProcessor(nil, 1, zap.NewNop()).ProcessAd(context.Background(), ad, cutoff)
	if *got.Ad.ExposureProxy != 42 || *got.Ad.RunDays != 3 {
		t.Errorf("existing exposure overwritten: %v %v", *got.Ad.RunDays, *got.Ad.ExposureProxy)
	}
}

func TestProcessBatchContainsFailures(t *testing.T) {
	enricher := &mockEnricher{
		results: map[string]*creative.LLMClassification{"a1": {HookType: "question", FunnelStage: "tofu"}},
		fail:    map[string]bool{"a2": true},
		panics:  map[string]bool{"a3": true},
	}
	p := NewProcessor(enricher, 3, zap.NewNop())

	var mu sync.Mutex
	var calls []int
	got, stats := p.ProcessBatch(context.Background(), testAds(), cutoff, func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total != 3 {
			t.Errorf("expected total 3, got %d", total)
		}
		calls = append(calls, done)
	})

	ids := make([]string, len(got))
	for i, a := range got {
		ids[i] = a.Ad.ID
	}
	if diff := cmp.Diff([]string{"a1", "a2", "a3"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if got[0].LLM == nil || got[1].LLM != nil || got[2].LLM != nil {
		t.Errorf("unexpected LLM outputs: %v %v %v", got[0].LLM, got[1].LLM, got[2].LLM)
	}
	if diff := cmp.Diff(BatchStats{Processed: 3, Enriched: 1, Failed: 2}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3}, calls); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessAdRecoversFromClassifierPanic(t *testing.T) {
	p := NewProcessor(&mockEnricher{}, 1, zap.NewNop())
	p.classify = func(creative.Ad) creative.RuleClassification { panic("bad pattern") }

	got := p.ProcessAd(context.Background(), testAds()[0], cutoff)
	if got.Ad.ID != "a1" {
		t.Errorf("expected ad a1 back, got %q", got.Ad.ID)
	}
	if got.Rules.HookType != "unknown" || got.Rules.FunnelStage != "unknown" {
		t.Errorf("expected unknown rule output, got %+v", got.Rules)
	}
	if got.LLM != nil {
		t.Error("expected no LLM output after a panic")
	}
}

func TestProcessBatchSurvivesClassifierPanic(t *testing.T) {
	p := NewProcessor(nil, 2, zap.NewNop())
	p.classify = func(ad creative.Ad) creative.RuleClassification {
		if ad.ID == "a2" {
			panic("bad pattern")
		}
		return creative.RuleClassification{HookType: "question", FunnelStage: "tofu"}
	}

	got, stats := p.ProcessBatch(context.Background(), testAds(), cutoff, nil)
	if len(got) != 3 || stats.Processed != 3 {
		t.Fatalf("expected 3 processed ads, got %d / %+v", len(got), stats)
	}
	if got[1].Rules.HookType != "unknown" || got[0].Rules.HookType != "question" {
		t.Errorf("unexpected rule outputs: %+v / %+v", got[0].Rules, got[1].Rules)
	}
}

func TestGenerateSurvivesHugeExposure(t *testing.T) {
	huge := math.MaxFloat64
	days := 5
	ads := []creative.Ad{
		{ID: "big-reuse", Headline: "Shop now", DeliveryStart: ptr("2024-01-01"), DeliveryEnd: ptr("2024-01-11"), CreativeReuse: 1e308},
		{ID: "big-proxy-1", Headline: "Meet the mug", RunDays: &days, ExposureProxy: &huge},
		{ID: "big-proxy-2", Headline: "Why mugs?", RunDays: &days, ExposureProxy: &huge},
	}
	store := newMemStore(ads...)
	gen := NewGenerator(store, store, nil, NewProcessor(nil, 2, zap.NewNop()), 0, zap.NewNop())

	out, err := gen.Generate(context.Background(), Request{Cutoff: cutoff})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsInf(out.Aggregate.TotalExposure, 0) || math.IsNaN(out.Aggregate.TotalExposure) {
		t.Errorf("expected finite total exposure, got %v", out.Aggregate.TotalExposure)
	}
	for _, a := range out.Ads {
		if *a.Ad.ExposureProxy > creative.MaxExposure {
			t.Errorf("ad %s: exposure %v above cap", a.Ad.ID, *a.Ad.ExposureProxy)
		}
	}
	if _, err := json.Marshal(out); err != nil {
		t.Errorf("report should encode: %v", err)
	}
	if store.status[out.ID] != StatusComplete {
		t.Errorf("expected complete status, got %q", store.status[out.ID])
	}
}

func TestGenerateLifecycle(t *testing.T) {
	store := newMemStore(testAds()...)
	store.corpus = voc.Corpus{Categories: []voc.Category{
		{Name: "Product", Topics: []voc.Topic{{Label: "cold coffee", VerbatimCount: 9}, {Label: "lid leaks", VerbatimCount: 4}}},
	}}
	enricher := &mockEnricher{results: map[string]*creative.LLMClassification{
		"a1": {HookType: "pain_agitation", FunnelStage: "tofu"},
		"a2": {HookType: "offer_led", FunnelStage: "bofu"},
		"a3": {HookType: "curiosity_gap", FunnelStage: "mofu", MOFUJobType: "demonstrate"},
	}}
	gen := NewGenerator(store, store, store, NewProcessor(enricher, 2, zap.NewNop()), 0, zap.NewNop())

	out, err := gen.Generate(context.Background(), Request{Cutoff: cutoff, CompareVOC: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{StatusPending, StatusRunning, StatusComplete}, store.statuses); diff != "" {
		t.Errorf("status sequence mismatch (-want +got):\n%s", diff)
	}
	if len(store.progress) != 3 || store.total != 3 {
		t.Errorf("expected 3 progress updates of 3, got %v / %d", store.progress, store.total)
	}
	if out.Aggregate.AdCount != 3 || out.Enriched != 3 {
		t.Errorf("unexpected counts: %d ads, %d enriched", out.Aggregate.AdCount, out.Enriched)
	}
	if out.Comparison == nil || len(out.Comparison.Overlooked) != 1 || out.Comparison.Overlooked[0].Key != "Product / lid leaks" {
		t.Errorf("unexpected comparison: %+v", out.Comparison)
	}

	stored, err := Decode(store.reports[out.ID])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.ID != out.ID || !stored.Cutoff.Equal(cutoff) {
		t.Errorf("stored report mismatch: %s %v", stored.ID, stored.Cutoff)
	}
}

func TestGenerateRejectsEmptyBatch(t *testing.T) {
	store := newMemStore()
	gen := NewGenerator(store, store, nil, NewProcessor(nil, 1, zap.NewNop()), 0, zap.NewNop())

	if _, err := gen.Generate(context.Background(), Request{}); !errors.Is(err, ErrNoAds) {
		t.Errorf("expected ErrNoAds, got %v", err)
	}
	if len(store.statuses) != 0 {
		t.Errorf("no job should be created, got %v", store.statuses)
	}
}

func TestGenerateFailsWithoutCorpusSource(t *testing.T) {
	store := newMemStore(testAds()...)
	gen := NewGenerator(store, store, nil, NewProcessor(nil, 1, zap.NewNop()), 0, zap.NewNop())

	job, err := gen.Create(Request{CompareVOC: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := gen.Run(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
	if store.status[job.ID] != StatusFailed || store.errMsg[job.ID] == "" {
		t.Errorf("expected failed status with message, got %q %q", store.status[job.ID], store.errMsg[job.ID])
	}
}

func TestResolveCutoff(t *testing.T) {
	now := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	if got := ResolveCutoff(Request{Cutoff: cutoff, ReportEnd: end}, now); !got.Equal(cutoff) {
		t.Errorf("explicit cutoff should win, got %v", got)
	}
	if got := ResolveCutoff(Request{ReportEnd: end}, now); !got.Equal(end) {
		t.Errorf("report end should be used, got %v", got)
	}
	if got := ResolveCutoff(Request{}, now); !got.Equal(now) {
		t.Errorf("now should be used, got %v", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	store := newMemStore(testAds()...)
	store.corpus = voc.Corpus{Categories: []voc.Category{
		{Name: "Service", Topics: []voc.Topic{{Label: "returns policy", VerbatimCount: 3, Verbatims: []string{"hard to return"}}}},
	}}
	gen := NewGenerator(store, store, store, NewProcessor(nil, 1, zap.NewNop()), 0, zap.NewNop())
	out, err := gen.Generate(context.Background(), Request{Cutoff: cutoff, CompareVOC: true})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	md := RenderMarkdown(out)
	for _, want := range []string{
		"# Creative Report " + out.ID,
		"## Funnel stage mix",
		"| Stage | Share |",
		"## Dominant hooks",
		"Claim/proof mismatch rate: 0.0%",
		"### Overlooked themes",
		"**Service / returns policy** (3 verbatims)",
		`"hard to return"`,
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

package creative

import (
	"encoding/json"
	"math"
	"testing"
)

func TestCopyTextSkipsEmptyParts(t *testing.T) {
	ad := Ad{Headline: "Sleep better", PrimaryText: "  ", Description: "Free returns"}
	if got := ad.CopyText(); got != "Sleep better\nFree returns" {
		t.Errorf("unexpected copy text %q", got)
	}
}

func TestHookSampleTruncatesRunes(t *testing.T) {
	ad := Ad{Headline: "héllo", PrimaryText: "wörld"}
	if got := ad.HookSample(3); got != "hél" {
		t.Errorf("expected 'hél', got %q", got)
	}
	if got := ad.HookSample(500); got != "héllo\nwörld" {
		t.Errorf("expected full sample, got %q", got)
	}
}

func TestVideoAnalysisPicksFirstVideoWithBlob(t *testing.T) {
	ad := Ad{Media: []MediaItem{
		{Type: "image", ImageAnalysis: json.RawMessage(`{"scene":"kitchen"}`)},
		{Type: "video"},
		{Type: "VIDEO", VideoAnalysis: json.RawMessage(`{"transcript":"hi"}`)},
	}}
	if got := string(ad.VideoAnalysis()); got != `{"transcript":"hi"}` {
		t.Errorf("unexpected video analysis %q", got)
	}
	if got := string(ad.ImageAnalysis()); got != `{"scene":"kitchen"}` {
		t.Errorf("unexpected image analysis %q", got)
	}
}

func TestExposureDefaultsToOne(t *testing.T) {
	ad := Ad{}
	if ad.Exposure() != 1 {
		t.Errorf("expected 1, got %v", ad.Exposure())
	}
	w := 12.5
	ad.ExposureProxy = &w
	if ad.Exposure() != 12.5 {
		t.Errorf("expected 12.5, got %v", ad.Exposure())
	}
	if ad.HasExposure() {
		t.Error("expected HasExposure false without run days")
	}
}

func TestClampExposure(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.2, 1},
		{math.NaN(), 1},
		{42, 42},
		{math.MaxFloat64, MaxExposure},
		{math.Inf(1), MaxExposure},
		{math.Inf(-1), 1},
	}
	for _, tt := range tests {
		if got := ClampExposure(tt.in); got != tt.want {
			t.Errorf("ClampExposure(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}

	huge := math.MaxFloat64
	ad := Ad{ExposureProxy: &huge}
	if ad.Exposure() != MaxExposure {
		t.Errorf("expected capped exposure, got %v", ad.Exposure())
	}
}

func TestDecodeAds(t *testing.T) {
	array := []byte(`[{"id":"a1","headline":"Hi","creative_reuse_count":"3","status":"ACTIVE"}]`)
	ads, err := DecodeAds(array)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	if len(ads) != 1 || ads[0].ID != "a1" || ads[0].CreativeReuse != "3" || *ads[0].Status != "ACTIVE" {
		t.Errorf("unexpected ads: %+v", ads)
	}

	wrapped := []byte(`  {"ads": [{"id":"a1"},{"id":"a2","media":[{"type":"video","video_analysis":{"hook":"x"}}]}]}`)
	ads, err = DecodeAds(wrapped)
	if err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	if len(ads) != 2 || string(ads[1].VideoAnalysis()) != `{"hook":"x"}` {
		t.Errorf("unexpected wrapped ads: %+v", ads)
	}

	for _, bad := range []string{"", "{}", `{"ads": 5}`, "[1,2"} {
		if _, err := DecodeAds([]byte(bad)); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

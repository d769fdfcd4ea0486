// Package creative defines the ad records the report pipeline reads and the
// classifications it derives from them.
package creative

import (
	"encoding/json"
	"math"
	"strings"
)

// Ad is one creative as delivered by the importer.
type Ad struct {
	ID               string      `json:"id"`
	Headline         string      `json:"headline"`
	PrimaryText      string      `json:"primary_text"`
	Description      string      `json:"description"`
	CTAText          string      `json:"cta_text"`
	DestinationURL   string      `json:"destination_url"`
	Format           string      `json:"ad_format"`
	DeliveryStart    *string     `json:"ad_delivery_start_time"`
	StartedRunningOn *string     `json:"started_running_on"`
	DeliveryEnd      *string     `json:"ad_delivery_end_time"`
	CreativeReuse    any         `json:"creative_reuse_count"`
	Status           *string     `json:"status"`
	Media            []MediaItem `json:"media,omitempty"`

	RunDays       *int     `json:"run_days,omitempty"`
	ExposureProxy *float64 `json:"exposure_proxy,omitempty"`
}

// MediaItem is an attached video or image with an optional prior analysis.
type MediaItem struct {
	Type          string          `json:"type"`
	URL           string          `json:"url,omitempty"`
	VideoAnalysis json.RawMessage `json:"video_analysis,omitempty"`
	ImageAnalysis json.RawMessage `json:"image_analysis,omitempty"`
}

// HasExposure reports whether both exposure fields are already set.
func (a *Ad) HasExposure() bool {
	return a.RunDays != nil && a.ExposureProxy != nil
}

// MaxExposure caps a single ad's exposure proxy so batch sums stay finite.
const MaxExposure = 1e12

// Exposure returns the exposure proxy clamped to [1, MaxExposure], or 1 when
// it has not been computed.
func (a *Ad) Exposure() float64 {
	if a.ExposureProxy == nil {
		return 1
	}
	return ClampExposure(*a.ExposureProxy)
}

// ClampExposure bounds v to [1, MaxExposure]. NaN becomes 1.
func ClampExposure(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 1:
		return 1
	case v > MaxExposure:
		return MaxExposure
	}
	return v
}

// CopyText joins headline, primary text and description.
func (a *Ad) CopyText() string {
	return joinNonEmpty(a.Headline, a.PrimaryText, a.Description)
}

// HookSample returns the first n runes of headline and primary text.
func (a *Ad) HookSample(n int) string {
	text := joinNonEmpty(a.Headline, a.PrimaryText)
	r := []rune(text)
	if len(r) > n {
		return string(r[:n])
	}
	return text
}

// VideoAnalysis returns the analysis blob of the first video item carrying one.
func (a *Ad) VideoAnalysis() json.RawMessage {
	for _, m := range a.Media {
		if strings.EqualFold(m.Type, "video") && len(m.VideoAnalysis) > 0 {
			return m.VideoAnalysis
		}
	}
	return nil
}

// ImageAnalysis returns the analysis blob of the first image item carrying one.
func (a *Ad) ImageAnalysis() json.RawMessage {
	for _, m := range a.Media {
		if strings.EqualFold(m.Type, "image") && len(m.ImageAnalysis) > 0 {
			return m.ImageAnalysis
		}
	}
	return nil
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}

// RuleClassification is the output of the pattern-matching classifier.
type RuleClassification struct {
	HookType    string   `json:"hook_type"`
	ProofTypes  []string `json:"proof_types"`
	Offers      []string `json:"offers"`
	FunnelStage string   `json:"funnel_stage"`
}

// HookScores rate the opening line, each 0-100.
type HookScores struct {
	Clarity     int `json:"clarity"`
	Specificity int `json:"specificity"`
	Curiosity   int `json:"curiosity"`
	Relevance   int `json:"relevance"`
}

// ClaimAudit summarizes how well claims are backed by shown proof.
// ClaimProofMismatch is empty when the model gave no usable level.
type ClaimAudit struct {
	ClaimProofMismatch string   `json:"claim_proof_mismatch"`
	Claims             []string `json:"claims"`
	Notes              string   `json:"notes"`
}

// VideoFirst2s describes the opening two seconds of a video creative.
type VideoFirst2s struct {
	Present      bool   `json:"present"`
	HookOnScreen bool   `json:"hook_on_screen"`
	ProductShown bool   `json:"product_shown"`
	Description  string `json:"description"`
}

// ReplaceVsRefine is the model's recommendation for the creative.
type ReplaceVsRefine struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason"`
}

// LLMClassification is the normalized model output for one ad.
type LLMClassification struct {
	HookType              string          `json:"hook_type"`
	HookPhrase            string          `json:"hook_phrase"`
	SecondaryHook         string          `json:"secondary_hook"`
	Angle                 string          `json:"angle"`
	FunnelStage           string          `json:"funnel_stage"`
	MOFUJobType           string          `json:"mofu_job_type"`
	CTAType               string          `json:"cta_type"`
	DestinationType       string          `json:"destination_type"`
	ProofClaimed          []string        `json:"proof_claimed"`
	ProofShown            []string        `json:"proof_shown"`
	ProofGap              []string        `json:"proof_gap"`
	ObjectionsAddressed   []string        `json:"objections_addressed"`
	ObjectionsUnaddressed []string        `json:"objections_unaddressed"`
	OfferPresent          bool            `json:"offer_present"`
	OfferTypes            []string        `json:"offer_types"`
	HookScores            HookScores      `json:"hook_scores"`
	UnsupportedClaims     []string        `json:"unsupported_claims"`
	WhatToChange          []string        `json:"what_to_change"`
	ClaimAudit            ClaimAudit      `json:"claim_audit"`
	VideoFirst2s          VideoFirst2s    `json:"video_first_2s"`
	ReplaceVsRefine       ReplaceVsRefine `json:"replace_vs_refine"`
}

// AnalyzedAd is an ad with its exposure annotation and classifications.
// LLM is nil when enrichment failed or was unavailable.
type AnalyzedAd struct {
	Ad    Ad                 `json:"ad"`
	Rules RuleClassification `json:"rules"`
	LLM   *LLMClassification `json:"llm"`
}

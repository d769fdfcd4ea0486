package enrich

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/taxonomy"
)

const maxFreeTextItems = 10

// Normalize coerces a parsed model response into a fully shaped,
// taxonomy-valid classification. Missing or invalid values take the field's
// fallback. It never returns nil.
func Normalize(r *taxonomy.Registry, raw map[string]any) *creative.LLMClassification {
	if raw == nil {
		raw = map[string]any{}
	}
	enum := func(key, field string) string {
		return r.Validate(field, getString(raw, key, ""))
	}
	list := func(key, field string) []string {
		return r.ValidateList(field, getStringList(raw, key))
	}

	c := &creative.LLMClassification{
		HookType:              enum("hook_type", taxonomy.HookTypes),
		HookPhrase:            getString(raw, "hook_phrase", ""),
		SecondaryHook:         enum("secondary_hook", taxonomy.HookTypes),
		Angle:                 getString(raw, "angle", ""),
		FunnelStage:           enum("funnel_stage", taxonomy.FunnelStages),
		MOFUJobType:           enum("mofu_job_type", taxonomy.MOFUJobTypes),
		CTAType:               enum("cta_type", taxonomy.CTATypes),
		DestinationType:       enum("destination_type", taxonomy.DestinationTypes),
		ProofClaimed:          list("proof_claimed", taxonomy.ProofTypes),
		ProofShown:            list("proof_shown", taxonomy.ProofTypes),
		ProofGap:              list("proof_gap", taxonomy.ProofTypes),
		ObjectionsAddressed:   list("objections_addressed", taxonomy.ObjectionTypes),
		ObjectionsUnaddressed: list("objections_unaddressed", taxonomy.ObjectionTypes),
		OfferPresent:          getBool(raw, "offer_present", false),
		OfferTypes:            list("offer_types", taxonomy.OfferTypes),
		UnsupportedClaims:     capList(getStringList(raw, "unsupported_claims")),
		WhatToChange:          capList(getStringList(raw, "what_to_change")),
	}

	if c.SecondaryHook == c.HookType && c.HookType != taxonomy.Unknown {
		c.SecondaryHook = taxonomy.Unknown
	}
	if len(c.OfferTypes) > 0 {
		c.OfferPresent = true
	}

	scores := getObject(raw, "hook_scores")
	c.HookScores = creative.HookScores{
		Clarity:     clampScore(getNumber(scores, "clarity", 0)),
		Specificity: clampScore(getNumber(scores, "specificity", 0)),
		Curiosity:   clampScore(getNumber(scores, "curiosity", 0)),
		Relevance:   clampScore(getNumber(scores, "relevance", 0)),
	}

	audit := getObject(raw, "claim_audit")
	c.ClaimAudit = creative.ClaimAudit{
		ClaimProofMismatch: r.Validate(taxonomy.MismatchLevels, getString(audit, "claim_proof_mismatch", "")),
		Claims:             capList(getStringList(audit, "claims")),
		Notes:              getString(audit, "notes", ""),
	}

	video := getObject(raw, "video_first_2s")
	c.VideoFirst2s = creative.VideoFirst2s{
		Present:      getBool(video, "present", false),
		HookOnScreen: getBool(video, "hook_on_screen", false),
		ProductShown: getBool(video, "product_shown", false),
		Description:  getString(video, "description", ""),
	}

	decision := getObject(raw, "replace_vs_refine")
	c.ReplaceVsRefine = creative.ReplaceVsRefine{
		Decision: r.Validate(taxonomy.DecisionTypes, getString(decision, "decision", "")),
		Reason:   getString(decision, "reason", ""),
	}

	return c
}

func getString(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return fallback
}

func getStringList(m map[string]any, key string) []string {
	out := []string{}
	switch v := m[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

func getObject(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return map[string]any{}
}

func getBool(m map[string]any, key string, fallback bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		}
	case float64:
		return v != 0
	}
	return fallback
}

func getNumber(m map[string]any, key string, fallback float64) float64 {
	switch n := m[key].(type) {
	case float64:
		return n
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return fallback
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(math.Round(v))
}

func capList(items []string) []string {
	if len(items) > maxFreeTextItems {
		return items[:maxFreeTextItems]
	}
	return items
}

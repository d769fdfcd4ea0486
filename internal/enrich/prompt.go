package enrich

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/taxonomy"
)

const systemTemplate = `You are a senior performance-marketing strategist auditing ad creatives.
You diagnose copy effectiveness only. Never predict click-through rate, ROAS or any other performance number.

Respond with ONE JSON object and nothing else: no prose, no markdown fences.

Schema:
{
  "hook_type": one of [%s],
  "hook_phrase": "the exact opening words that carry the hook",
  "secondary_hook": one of [%s] or "unknown",
  "angle": "one short sentence naming the persuasion angle",
  "funnel_stage": one of [%s],
  "mofu_job_type": one of [%s] when funnel_stage is "mofu", otherwise "not_applicable",
  "cta_type": one of [%s],
  "destination_type": one of [%s],
  "proof_claimed": list from [%s],
  "proof_shown": list from [%s],
  "proof_gap": list from [%s],
  "objections_addressed": list from [%s],
  "objections_unaddressed": list from [%s],
  "offer_present": true or false,
  "offer_types": list from [%s],
  "hook_scores": {"clarity": 0-100, "specificity": 0-100, "curiosity": 0-100, "relevance": 0-100},
  "unsupported_claims": ["claim text", ...],
  "what_to_change": ["concrete edit", ...],
  "claim_audit": {"claim_proof_mismatch": one of [%s], "claims": ["claim", ...], "notes": "short note"},
  "video_first_2s": {"present": true or false, "hook_on_screen": true or false, "product_shown": true or false, "description": "what happens"},
  "replace_vs_refine": {"decision": one of [%s], "reason": "one sentence"}
}

Use only the listed values for enumerated fields. Use "unknown" when unsure.
Set video_first_2s.present to false when no video analysis is supplied.`

// SystemInstruction renders the fixed instruction with every allowed value
// taken from the registry.
func SystemInstruction(r *taxonomy.Registry) string {
	list := func(field string) string {
		values := r.Values(field)
		quoted := make([]string, len(values))
		for i, v := range values {
			quoted[i] = `"` + v + `"`
		}
		return strings.Join(quoted, ", ")
	}
	return fmt.Sprintf(systemTemplate,
		list(taxonomy.HookTypes),
		list(taxonomy.HookTypes),
		list(taxonomy.FunnelStages),
		list(taxonomy.MOFUJobTypes),
		list(taxonomy.CTATypes),
		list(taxonomy.DestinationTypes),
		list(taxonomy.ProofTypes),
		list(taxonomy.ProofTypes),
		list(taxonomy.ProofTypes),
		list(taxonomy.ObjectionTypes),
		list(taxonomy.ObjectionTypes),
		list(taxonomy.OfferTypes),
		list(taxonomy.MismatchLevels),
		list(taxonomy.DecisionTypes),
	)
}

// payload is the per-ad user message.
type payload struct {
	Headline       string          `json:"headline"`
	PrimaryText    string          `json:"primary_text"`
	Description    string          `json:"description,omitempty"`
	CTA            string          `json:"cta"`
	DestinationURL string          `json:"destination_url,omitempty"`
	Format         string          `json:"ad_format,omitempty"`
	VideoAnalysis  json.RawMessage `json:"video_analysis,omitempty"`
	ImageAnalysis  json.RawMessage `json:"image_analysis,omitempty"`
}

// BuildPayload renders the user message for one ad. Primary text is cut to
// primaryCap runes; a video analysis blob is passed through verbatim.
func BuildPayload(ad creative.Ad, primaryCap int) (string, error) {
	p := payload{
		Headline:       ad.Headline,
		PrimaryText:    truncate(ad.PrimaryText, primaryCap),
		Description:    ad.Description,
		CTA:            ad.CTAText,
		DestinationURL: ad.DestinationURL,
		Format:         ad.Format,
	}
	if v := ad.VideoAnalysis(); json.Valid(v) {
		p.VideoAnalysis = v
	} else if img := ad.ImageAnalysis(); json.Valid(img) {
		p.ImageAnalysis = img
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}
	return "Classify this ad creative:\n" + string(data), nil
}

func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

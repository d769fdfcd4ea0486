// Package aggregate combines per-ad classifications into exposure-weighted
// batch statistics.
package aggregate

import (
	"sort"

	"github.com/TobiSchelling/adreport/internal/creative"
	"github.com/TobiSchelling/adreport/internal/taxonomy"
)

// HookWeight is one entry of the dominant-hook ranking.
type HookWeight struct {
	HookType string  `json:"hook_type"`
	Exposure float64 `json:"exposure"`
}

// Report holds batch-level statistics. Distributions map a category to its
// share of exposure among ads with a value for that field.
type Report struct {
	SchemaVersion string `json:"schema_version"`
	AdCount       int    `json:"ad_count"`
	EnrichedCount int    `json:"enriched_count"`

	TotalExposure float64 `json:"total_exposure"`

	FunnelStageMix map[string]float64 `json:"funnel_stage_mix"`
	HookTypeMix    map[string]float64 `json:"hook_type_mix"`
	DominantHooks  map[string]float64 `json:"dominant_hooks"`
	HookRanking    []HookWeight       `json:"hook_ranking"`
	MOFUJobSplit   map[string]float64 `json:"mofu_job_split"`
	CTATypeMix     map[string]float64 `json:"cta_type_mix"`
	DecisionSplit  map[string]float64 `json:"decision_split"`

	ClaimProofMismatchRate float64 `json:"claim_proof_mismatch_rate"`
	OfferPresenceRate      float64 `json:"offer_presence_rate"`

	// ProofCoverage is the share of total exposure carried by ads showing
	// each proof type; values do not sum to 1.
	ProofCoverage         map[string]float64 `json:"proof_coverage"`
	UnaddressedObjections map[string]float64 `json:"unaddressed_objections"`
}

// weighted accumulates exposure per category.
type weighted struct {
	sums  map[string]float64
	total float64
}

func newWeighted() *weighted {
	return &weighted{sums: make(map[string]float64)}
}

func (w *weighted) add(category string, exposure float64) {
	if category == "" {
		return
	}
	w.sums[category] += exposure
	w.total += exposure
}

func (w *weighted) distribution() map[string]float64 {
	out := make(map[string]float64, len(w.sums))
	if w.total == 0 {
		return out
	}
	for k, v := range w.sums {
		out[k] = v / w.total
	}
	return out
}

// Aggregate computes the report for a batch. It is pure and always
// recomputes from the full slice.
func Aggregate(ads []creative.AnalyzedAd) Report {
	r := Report{
		SchemaVersion: taxonomy.SchemaVersion,
		AdCount:       len(ads),
	}

	funnel := newWeighted()
	hooks := newWeighted()
	mofu := newWeighted()
	cta := newWeighted()
	decisions := newWeighted()
	proofExposure := make(map[string]float64)
	objections := make(map[string]float64)

	var mismatchNum, mismatchDen float64
	var offerExposure float64

	for i := range ads {
		a := &ads[i]
		w := a.Ad.Exposure()
		r.TotalExposure += w
		if a.LLM != nil {
			r.EnrichedCount++
		}

		funnel.add(FunnelStage(a), w)
		hooks.add(HookType(a), w)
		mofu.add(mofuJob(a), w)

		for _, p := range proofShown(a) {
			proofExposure[p] += w
		}
		if hasOffer(a) {
			offerExposure += w
		}

		if a.LLM == nil {
			continue
		}
		cta.add(known(taxonomy.CTATypes, a.LLM.CTAType), w)
		decisions.add(known(taxonomy.DecisionTypes, a.LLM.ReplaceVsRefine.Decision), w)
		for _, o := range a.LLM.ObjectionsUnaddressed {
			objections[o] += w
		}

		switch a.LLM.ClaimAudit.ClaimProofMismatch {
		case taxonomy.MismatchMedium, taxonomy.MismatchHigh:
			mismatchNum += w
			mismatchDen += w
		case taxonomy.MismatchLow:
			mismatchDen += w
		}
	}

	r.FunnelStageMix = funnel.distribution()
	r.HookTypeMix = hooks.distribution()
	r.DominantHooks = hooks.sums
	r.HookRanking = rankHooks(hooks.sums)
	r.MOFUJobSplit = mofu.distribution()
	r.CTATypeMix = cta.distribution()
	r.DecisionSplit = decisions.distribution()
	r.ProofCoverage = share(proofExposure, r.TotalExposure)
	r.UnaddressedObjections = objections

	if mismatchDen > 0 {
		r.ClaimProofMismatchRate = mismatchNum / mismatchDen
	}
	if r.TotalExposure > 0 {
		r.OfferPresenceRate = offerExposure / r.TotalExposure
	}
	return r
}

// FunnelStage is the ad's effective stage: the LLM's when usable, else the
// rule classifier's.
func FunnelStage(a *creative.AnalyzedAd) string {
	if a.LLM != nil {
		if s := known(taxonomy.FunnelStages, a.LLM.FunnelStage); s != "" {
			return s
		}
	}
	return known(taxonomy.FunnelStages, a.Rules.FunnelStage)
}

// HookType is the ad's effective hook: the LLM's when usable, else the
// rule classifier's.
func HookType(a *creative.AnalyzedAd) string {
	if a.LLM != nil {
		if h := known(taxonomy.HookTypes, a.LLM.HookType); h != "" {
			return h
		}
	}
	return known(taxonomy.HookTypes, a.Rules.HookType)
}

// mofuJob returns the ad's MOFU job type from the LLM output, or "" when
// there is none. The split is keyed on the job type alone: an ad of any
// stage with a job type counts, a mofu ad without one does not.
func mofuJob(a *creative.AnalyzedAd) string {
	if a.LLM == nil {
		return ""
	}
	return known(taxonomy.MOFUJobTypes, a.LLM.MOFUJobType)
}

func proofShown(a *creative.AnalyzedAd) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(items []string) {
		for _, p := range items {
			if p == "" || seen[p] || !taxonomy.Default.Contains(taxonomy.ProofTypes, p) {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}
	add(a.Rules.ProofTypes)
	if a.LLM != nil {
		add(a.LLM.ProofShown)
	}
	return out
}

func hasOffer(a *creative.AnalyzedAd) bool {
	if len(a.Rules.Offers) > 0 {
		return true
	}
	return a.LLM != nil && (a.LLM.OfferPresent || len(a.LLM.OfferTypes) > 0)
}

// known returns value when it is a real member of field, "" for sentinels.
func known(field, value string) string {
	if taxonomy.Default.Contains(field, value) {
		return value
	}
	return ""
}

func share(sums map[string]float64, total float64) map[string]float64 {
	out := make(map[string]float64, len(sums))
	if total == 0 {
		return out
	}
	for k, v := range sums {
		out[k] = v / total
	}
	return out
}

func rankHooks(sums map[string]float64) []HookWeight {
	ranking := make([]HookWeight, 0, len(sums))
	for k, v := range sums {
		ranking = append(ranking, HookWeight{HookType: k, Exposure: v})
	}
	sort.Slice(ranking, func(i, j int) bool {
		if ranking[i].Exposure != ranking[j].Exposure {
			return ranking[i].Exposure > ranking[j].Exposure
		}
		return ranking[i].HookType < ranking[j].HookType
	})
	return ranking
}

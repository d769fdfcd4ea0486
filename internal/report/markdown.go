package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/TobiSchelling/adreport/internal/aggregate"
	"github.com/TobiSchelling/adreport/internal/voc"
)

// Decode parses a stored report document.
func Decode(data []byte) (*Output, error) {
	var out Output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &out, nil
}

// RenderMarkdown renders a human-readable summary of a report.
func RenderMarkdown(out *Output) string {
	agg := out.Aggregate
	var sections []string

	sections = append(sections, fmt.Sprintf("# Creative Report %s\n\n"+
		"- Generated: %s\n- Cutoff: %s\n- Ads analyzed: %d (%d enriched)\n- Total exposure: %.1f\n- Taxonomy: %s",
		out.ID,
		out.GeneratedAt.Format("2006-01-02 15:04 MST"),
		out.Cutoff.Format("2006-01-02"),
		agg.AdCount, agg.EnrichedCount,
		agg.TotalExposure,
		out.SchemaVersion,
	))

	sections = append(sections, "## Funnel stage mix\n\n"+distributionTable("Stage", agg.FunnelStageMix))
	sections = append(sections, "## Dominant hooks\n\n"+hookTable(agg.HookRanking, agg.TotalExposure))
	sections = append(sections, "## MOFU job split\n\n"+distributionTable("Job", agg.MOFUJobSplit))

	sections = append(sections, fmt.Sprintf("## Risk\n\n"+
		"- Claim/proof mismatch rate: %s\n- Offer presence: %s",
		percent(agg.ClaimProofMismatchRate), percent(agg.OfferPresenceRate)))

	if len(agg.ProofCoverage) > 0 {
		sections = append(sections, "## Proof coverage\n\n"+distributionTable("Proof", agg.ProofCoverage))
	}
	if len(agg.CTATypeMix) > 0 {
		sections = append(sections, "## CTA mix\n\n"+distributionTable("CTA", agg.CTATypeMix))
	}
	if len(agg.DecisionSplit) > 0 {
		sections = append(sections, "## Replace vs refine\n\n"+distributionTable("Decision", agg.DecisionSplit))
	}

	if out.Comparison != nil {
		sections = append(sections, comparisonSection(out.Comparison))
	}

	return strings.Join(sections, "\n\n---\n\n") + "\n"
}

func distributionTable(label string, dist map[string]float64) string {
	if len(dist) == 0 {
		return "_No data._"
	}
	keys := make([]string, 0, len(dist))
	for k := range dist {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if dist[keys[i]] != dist[keys[j]] {
			return dist[keys[i]] > dist[keys[j]]
		}
		return keys[i] < keys[j]
	})

	lines := []string{fmt.Sprintf("| %s | Share |", label), "|---|---|"}
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("| %s | %s |", k, percent(dist[k])))
	}
	return strings.Join(lines, "\n")
}

func hookTable(ranking []aggregate.HookWeight, total float64) string {
	if len(ranking) == 0 {
		return "_No data._"
	}
	lines := []string{"| Hook | Exposure | Share of total |", "|---|---|---|"}
	for _, h := range ranking {
		share := 0.0
		if total > 0 {
			share = h.Exposure / total
		}
		lines = append(lines, fmt.Sprintf("| %s | %.1f | %s |", h.HookType, h.Exposure, percent(share)))
	}
	return strings.Join(lines, "\n")
}

func comparisonSection(res *voc.Result) string {
	var b strings.Builder
	b.WriteString("## Voice of customer\n\n")
	if res.ThemeCount == 0 {
		b.WriteString("_No VOC themes available._")
		return b.String()
	}

	labels := map[string]int{}
	for _, a := range res.Ads {
		labels[a.Label]++
	}
	fmt.Fprintf(&b, "%d themes compared. Resonance: %d high, %d medium, %d low.\n",
		res.ThemeCount, labels[voc.LabelHigh], labels[voc.LabelMedium], labels[voc.LabelLow])

	if len(res.Overlooked) == 0 {
		b.WriteString("\nEvery theme is addressed by at least one ad.")
		return b.String()
	}
	b.WriteString("\n### Overlooked themes\n")
	for _, t := range res.Overlooked {
		fmt.Fprintf(&b, "\n- **%s** (%d verbatims)", t.Key, t.VerbatimCount)
		for _, s := range t.Sample {
			fmt.Fprintf(&b, "\n  - \"%s\"", s)
		}
	}
	return b.String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

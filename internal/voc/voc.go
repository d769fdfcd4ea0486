// Package voc compares ad copy against voice-of-customer themes using a
// bag-of-words overlap heuristic.
package voc

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/TobiSchelling/adreport/internal/creative"
)

// DefaultSampleSize bounds the verbatims kept per theme.
const DefaultSampleSize = 5

const minTokenRunes = 2

// Resonance labels.
const (
	LabelLow    = "low"
	LabelMedium = "medium"
	LabelHigh   = "high"
)

// ErrNoAds is returned when a comparison is requested for an empty batch.
var ErrNoAds = errors.New("no ads to compare")

// Corpus is a snapshot of categorized customer feedback.
type Corpus struct {
	Categories []Category `json:"categories"`
}

// Category groups related topics.
type Category struct {
	Name   string  `json:"name"`
	Topics []Topic `json:"topics"`
}

// Topic is a short label with the verbatims filed under it.
type Topic struct {
	Label         string   `json:"label"`
	VerbatimCount int      `json:"verbatim_count"`
	Verbatims     []string `json:"verbatims"`
}

// Theme is a topic prepared for matching.
type Theme struct {
	Key           string   `json:"key"`
	Category      string   `json:"category"`
	Topic         string   `json:"topic"`
	VerbatimCount int      `json:"verbatim_count"`
	Sample        []string `json:"sample"`
	Words         []string `json:"words"`
}

// AdResult is the comparison outcome for one ad.
type AdResult struct {
	AdID      string   `json:"ad_id"`
	Score     float64  `json:"score"`
	Label     string   `json:"label"`
	HitThemes []string `json:"hit_themes"`
	Missed    []string `json:"missed_themes"`
}

// OverlookedTheme is a theme no ad in the batch touches.
type OverlookedTheme struct {
	Key           string   `json:"key"`
	VerbatimCount int      `json:"verbatim_count"`
	Sample        []string `json:"sample"`
}

// Result holds per-ad results in input order and the overlooked themes.
type Result struct {
	ThemeCount int               `json:"theme_count"`
	Ads        []AdResult        `json:"ads"`
	Overlooked []OverlookedTheme `json:"overlooked_themes"`
}

// BuildThemes flattens a corpus into themes. sampleSize <= 0 uses
// DefaultSampleSize.
func BuildThemes(corpus Corpus, sampleSize int) []Theme {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	var themes []Theme
	for _, cat := range corpus.Categories {
		for _, topic := range cat.Topics {
			sample := topic.Verbatims
			if len(sample) > sampleSize {
				sample = sample[:sampleSize]
			}
			count := topic.VerbatimCount
			if count < len(topic.Verbatims) {
				count = len(topic.Verbatims)
			}
			themes = append(themes, Theme{
				Key:           cat.Name + " / " + topic.Label,
				Category:      cat.Name,
				Topic:         topic.Label,
				VerbatimCount: count,
				Sample:        append([]string(nil), sample...),
				Words:         uniqueTokens(topic.Label),
			})
		}
	}
	return themes
}

// Tokenize lower-cases text and splits it into letter/digit runs, dropping
// tokens shorter than two runes.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= minTokenRunes {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func uniqueTokens(text string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, tok := range Tokenize(text) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// Hits reports whether a theme matches a token set: at least
// min(2, len(words)) theme words must be present. Themes without words
// never hit.
func (t Theme) Hits(tokens map[string]bool) bool {
	if len(t.Words) == 0 {
		return false
	}
	need := min(2, len(t.Words))
	found := 0
	for _, w := range t.Words {
		if tokens[w] {
			found++
			if found >= need {
				return true
			}
		}
	}
	return false
}

// Label maps a resonance score to low, medium or high.
func Label(score float64) string {
	switch {
	case score*3 < 1:
		return LabelLow
	case score*3 < 2:
		return LabelMedium
	default:
		return LabelHigh
	}
}

// Compare scores every ad against the themes. With no themes the result is
// empty; with no ads it returns ErrNoAds.
func Compare(themes []Theme, ads []creative.Ad) (Result, error) {
	if len(ads) == 0 {
		return Result{}, ErrNoAds
	}
	res := Result{
		ThemeCount: len(themes),
		Ads:        []AdResult{},
		Overlooked: []OverlookedTheme{},
	}
	if len(themes) == 0 {
		return res, nil
	}

	hitCount := make([]int, len(themes))
	for i := range ads {
		tokens := make(map[string]bool)
		for _, tok := range Tokenize(ads[i].CopyText()) {
			tokens[tok] = true
		}

		ar := AdResult{AdID: ads[i].ID, HitThemes: []string{}, Missed: []string{}}
		for j, theme := range themes {
			if theme.Hits(tokens) {
				hitCount[j]++
				ar.HitThemes = append(ar.HitThemes, theme.Key)
			} else {
				ar.Missed = append(ar.Missed, theme.Key)
			}
		}
		ar.Score = float64(len(ar.HitThemes)) / float64(len(themes))
		ar.Label = Label(ar.Score)
		res.Ads = append(res.Ads, ar)
	}

	for j, theme := range themes {
		if hitCount[j] == 0 {
			res.Overlooked = append(res.Overlooked, OverlookedTheme{
				Key:           theme.Key,
				VerbatimCount: theme.VerbatimCount,
				Sample:        theme.Sample,
			})
		}
	}
	sort.SliceStable(res.Overlooked, func(a, b int) bool {
		return res.Overlooked[a].VerbatimCount > res.Overlooked[b].VerbatimCount
	})
	return res, nil
}

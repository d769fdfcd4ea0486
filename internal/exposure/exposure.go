// Package exposure turns delivery metadata into a comparable exposure weight.
package exposure

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/TobiSchelling/adreport/internal/creative"
)

// Status multipliers.
const (
	ActiveMultiplier   = 1.0
	InactiveMultiplier = 0.7
	UnknownMultiplier  = 0.85
)

// MaxReuseCount bounds the creative-reuse multiplier.
const MaxReuseCount = 1e6

// Compute returns run days and the exposure proxy for an ad. Dates that are
// missing or unparseable fall back to cutoff.
func Compute(ad creative.Ad, cutoff time.Time) (int, float64) {
	start, hasStart := firstDate(ad.DeliveryStart, ad.StartedRunningOn)
	end, hasEnd := firstDate(ad.DeliveryEnd)

	effectiveStart := cutoff
	if hasStart {
		effectiveStart = start
	}
	effectiveEnd := cutoff
	if hasEnd && !end.Before(effectiveStart) {
		effectiveEnd = end
	}

	runDays := int(math.Floor(effectiveEnd.Sub(effectiveStart).Hours() / 24))
	if runDays < 1 {
		runDays = 1
	}

	proxy := ReuseCount(ad.CreativeReuse) * float64(runDays) * StatusMultiplier(ad.Status)
	return runDays, creative.ClampExposure(proxy)
}

// Annotate sets RunDays and ExposureProxy on every ad that does not already
// carry both. It returns how many ads were annotated.
func Annotate(ads []creative.Ad, cutoff time.Time) int {
	n := 0
	for i := range ads {
		if ads[i].HasExposure() {
			continue
		}
		days, proxy := Compute(ads[i], cutoff)
		ads[i].RunDays = &days
		ads[i].ExposureProxy = &proxy
		n++
	}
	return n
}

// StatusMultiplier maps a delivery status to its weight.
func StatusMultiplier(status *string) float64 {
	if status == nil {
		return UnknownMultiplier
	}
	switch strings.ToLower(strings.TrimSpace(*status)) {
	case "active":
		return ActiveMultiplier
	case "inactive":
		return InactiveMultiplier
	default:
		return UnknownMultiplier
	}
}

// ReuseCount reads a creative-reuse count from a loosely typed value.
// Absent, non-numeric and sub-1 values yield 1; values above MaxReuseCount
// are capped.
func ReuseCount(v any) float64 {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 1
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 1
		}
		n = f
	default:
		return 1
	}
	if math.IsNaN(n) || n < 1 {
		return 1
	}
	return math.Min(n, MaxReuseCount)
}

// ParseDate accepts ISO-8601 and human formats such as "Jan 15, 2024".
// Zone-less values are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func firstDate(candidates ...*string) (time.Time, bool) {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if t, ok := ParseDate(*c); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

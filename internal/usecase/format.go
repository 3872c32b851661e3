package usecase

import (
	"math"
	"sort"

	"BarPulse/internal/domain/models"
)

// round2 rounds half away from zero to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FormatBars orders bars ascending by time (stable sort) and derives
// change/change_percent for each bar against its predecessor within the set.
// The first bar carries no derived fields. A zero predecessor close leaves the
// derived pair nil for that bar while keeping its OHLC fields (null-and-
// continue); the request never fails over a derived metric.
func FormatBars(bars []models.Bar) []models.Bar {
	out := make([]models.Bar, len(bars))
	copy(out, bars)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})

	for i := range out {
		out[i].Change, out[i].ChangePercent = nil, nil
		if i == 0 {
			continue
		}
		prev := out[i-1].Close
		if prev == 0 {
			continue
		}
		change := round2(out[i].Close - prev)
		pct := round2((out[i].Close - prev) / prev * 100)
		out[i].Change = &change
		out[i].ChangePercent = &pct
	}
	return out
}

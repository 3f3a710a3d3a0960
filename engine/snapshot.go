package engine

import "context"

// Snapshot is the single read payload composed for the dashboard.
type Snapshot struct {
	Levels        map[BinCategory]LevelStatus `json:"levels"`
	Warnings      []string                    `json:"warnings"`
	Daily         []DailyBreakdown            `json:"daily"`
	RangeTotals   CategoryTotals              `json:"range_totals"`
	AllTimeTotals CategoryTotals              `json:"all_time_totals"`
}

// Snapshot combines current levels, banner warnings and the aggregated event
// log into one payload. When r is nil the daily series covers the current
// ISO week. RangeTotals is computed by summing the returned daily series
// rather than by a second query, so the two can never disagree.
func (e *Engine) Snapshot(ctx context.Context, r *DateRange) (*Snapshot, error) {
	levels, err := e.LatestLevels(ctx)
	if err != nil {
		return nil, err
	}

	rng := e.DefaultRange()
	if r != nil {
		rng = *r
	}
	daily, err := e.SumRange(ctx, rng)
	if err != nil {
		return nil, err
	}

	var rangeTotals CategoryTotals
	for _, row := range daily {
		rangeTotals.Bio += row.Bio
		rangeTotals.NonBio += row.NonBio
		rangeTotals.Unclassified += row.Unclassified
	}

	allTime, err := e.SumAllTime(ctx)
	if err != nil {
		return nil, err
	}

	warnings := make([]string, 0, 4)
	for _, cat := range Categories() {
		status := levels[cat]
		if status.LevelPercentage == nil || *status.LevelPercentage < bannerThreshold {
			continue
		}
		warnings = append(warnings, status.Alerts...)
	}

	return &Snapshot{
		Levels:        levels,
		Warnings:      warnings,
		Daily:         daily,
		RangeTotals:   rangeTotals,
		AllTimeTotals: allTime,
	}, nil
}

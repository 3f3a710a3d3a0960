package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecobins/binwatch/db"
	"github.com/ecobins/binwatch/engine"
)

func reportLevel(t *testing.T, eng *engine.Engine, cat engine.BinCategory, distanceCM float64, at time.Time) {
	t.Helper()
	_, err := eng.ReportMeasurement(context.Background(), engine.Measurement{
		Category:   cat,
		Connected:  true,
		DistanceCM: distanceCM,
		MeasuredAt: at,
	})
	require.NoError(t, err)
}

func TestSnapshotRangeTotalsMatchDailySeries(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, db.NewMemory(), now)

	appendEvent(t, eng, engine.CategoryBio, 2, time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC))
	appendEvent(t, eng, engine.CategoryBio, 1, time.Date(2025, 9, 2, 9, 0, 0, 0, time.UTC))
	appendEvent(t, eng, engine.CategoryNonBio, 4, time.Date(2025, 9, 3, 9, 0, 0, 0, time.UTC))
	// Outside the current week: counted in all-time, not in the range.
	appendEvent(t, eng, engine.CategoryUnclassified, 9, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

	snap, err := eng.Snapshot(ctx, nil)
	require.NoError(t, err)

	var fromDaily engine.CategoryTotals
	for _, row := range snap.Daily {
		fromDaily.Bio += row.Bio
		fromDaily.NonBio += row.NonBio
		fromDaily.Unclassified += row.Unclassified
	}
	assert.Equal(t, fromDaily, snap.RangeTotals, "range totals must equal the sum of the daily series")
	assert.Equal(t, engine.CategoryTotals{Bio: 3, NonBio: 4}, snap.RangeTotals)
	assert.Equal(t, engine.CategoryTotals{Bio: 3, NonBio: 4, Unclassified: 9}, snap.AllTimeTotals)
	assert.Len(t, snap.Daily, 7, "default window is the current ISO week")
}

func TestSnapshotExplicitRange(t *testing.T) {
	ctx := context.Background()
	eng := newTestEngine(t, db.NewMemory(), time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC))

	appendEvent(t, eng, engine.CategoryBio, 5, time.Date(2025, 8, 20, 9, 0, 0, 0, time.UTC))

	rng, err := engine.ParseDateRange("2025-08-19", "2025-08-21")
	require.NoError(t, err)
	snap, err := eng.Snapshot(ctx, &rng)
	require.NoError(t, err)

	require.Len(t, snap.Daily, 3)
	assert.Equal(t, engine.CategoryTotals{Bio: 5}, snap.RangeTotals)
}

func TestSnapshotWarningsBannerThreshold(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, db.NewMemory(), now)

	// bio at 84%: below the banner threshold, no warning even though the
	// 80% alert fires on the bin itself.
	// 100*(45-d)/38 = 84 -> d = 13.08
	reportLevel(t, eng, engine.CategoryBio, 13.08, now)
	// non_bio at 100%: all four alerts surface in the banner.
	reportLevel(t, eng, engine.CategoryNonBio, 7, now)

	snap, err := eng.Snapshot(ctx, nil)
	require.NoError(t, err)

	require.NotNil(t, snap.Levels[engine.CategoryBio].LevelPercentage)
	assert.Equal(t, 84, *snap.Levels[engine.CategoryBio].LevelPercentage)
	assert.NotEmpty(t, snap.Levels[engine.CategoryBio].Alerts)

	require.Len(t, snap.Warnings, 4)
	for _, w := range snap.Warnings {
		assert.Contains(t, w, "Non_bio")
	}

	// Never-measured category stays distinguishable from 0%.
	assert.Nil(t, snap.Levels[engine.CategoryUnclassified].LevelPercentage)
}

func TestSnapshotWarningsAtExactBannerThreshold(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC)
	eng := newTestEngine(t, db.NewMemory(), now)

	// 100*(45-d)/38 = 85 -> d = 12.7
	reportLevel(t, eng, engine.CategoryBio, 12.7, now)

	snap, err := eng.Snapshot(ctx, nil)
	require.NoError(t, err)
	require.NotNil(t, snap.Levels[engine.CategoryBio].LevelPercentage)
	require.Equal(t, 85, *snap.Levels[engine.CategoryBio].LevelPercentage)
	assert.Equal(t, []string{"Bio bin is reaching high capacity."}, snap.Warnings)
}

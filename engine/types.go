package engine

import (
	"context"
	"strings"
	"time"
)

// BinCategory is one of the three fixed waste classifications.
type BinCategory string

const (
	CategoryBio          BinCategory = "bio"
	CategoryNonBio       BinCategory = "non_bio"
	CategoryUnclassified BinCategory = "unclassified"
)

// Categories returns the closed set of bin categories in display order.
func Categories() []BinCategory {
	return []BinCategory{CategoryBio, CategoryNonBio, CategoryUnclassified}
}

// Valid reports whether c is a member of the closed category set.
func (c BinCategory) Valid() bool {
	switch c {
	case CategoryBio, CategoryNonBio, CategoryUnclassified:
		return true
	}
	return false
}

// Display returns the capitalized form used in alert messages ("Bio",
// "Non_bio", "Unclassified").
func (c BinCategory) Display() string {
	s := string(c)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// CurrentLevelRecord is the single latest measurement for one bin category.
type CurrentLevelRecord struct {
	Category        BinCategory `json:"bin_type"`
	LevelPercentage int         `json:"level_percentage"`
	IsFull          bool        `json:"is_full"`
	MeasuredAt      time.Time   `json:"measured_at"`
}

// ClassificationEvent is one immutable row in the append-only detection log.
type ClassificationEvent struct {
	Category        BinCategory `json:"bin_type"`
	Label           string      `json:"label"`
	ConfidenceScore float64     `json:"confidence_score"`
	Count           int64       `json:"count"`
	LoggedAt        time.Time   `json:"logged_at"`
}

// CategoryTotals holds summed event counts per category.
type CategoryTotals struct {
	Bio          int64 `json:"bio"`
	NonBio       int64 `json:"non_bio"`
	Unclassified int64 `json:"unclassified"`
}

// Add increments the total for the given category.
func (t *CategoryTotals) Add(category BinCategory, n int64) {
	switch category {
	case CategoryBio:
		t.Bio += n
	case CategoryNonBio:
		t.NonBio += n
	case CategoryUnclassified:
		t.Unclassified += n
	}
}

// Get returns the total for the given category.
func (t CategoryTotals) Get(category BinCategory) int64 {
	switch category {
	case CategoryBio:
		return t.Bio
	case CategoryNonBio:
		return t.NonBio
	case CategoryUnclassified:
		return t.Unclassified
	}
	return 0
}

// DailyBreakdown is one row of the dense daily series.
type DailyBreakdown struct {
	Date         string `json:"date"`
	Bio          int64  `json:"bio"`
	NonBio       int64  `json:"non_bio"`
	Unclassified int64  `json:"unclassified"`
}

// DayCategorySum is a per-day, per-category event sum as returned by the
// store. Days with no events are simply absent; the aggregator densifies.
type DayCategorySum struct {
	Day      time.Time
	Category BinCategory
	Total    int64
}

// EventSumQuery bounds an event aggregation. Nil bounds are unbounded; Until
// is exclusive.
type EventSumQuery struct {
	Since *time.Time
	Until *time.Time
}

// Store is the persistence boundary the engine is given. Implementations
// must make UpsertLevel atomic per category and must reject (not apply)
// writes whose measured_at is older than the stored record's.
type Store interface {
	UpsertLevel(ctx context.Context, rec CurrentLevelRecord) (applied bool, err error)
	Level(ctx context.Context, category BinCategory) (*CurrentLevelRecord, error)
	Levels(ctx context.Context) ([]CurrentLevelRecord, error)
	AppendEvent(ctx context.Context, ev ClassificationEvent) error
	SumEventsByDay(ctx context.Context, q EventSumQuery) ([]DayCategorySum, error)
	SumEventsTotal(ctx context.Context, q EventSumQuery) (CategoryTotals, error)
}

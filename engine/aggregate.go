package engine

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// DateRange is an inclusive range of UTC calendar days. Start and End are
// midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered, both endpoints included.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// ParseDateRange parses YYYY-MM-DD bounds. An unparsable or inverted range
// is a ValidationError, never a silent fallback to the default window.
func ParseDateRange(start, end string) (DateRange, error) {
	s, err := time.ParseInLocation(dateLayout, start, time.UTC)
	if err != nil {
		return DateRange{}, invalidf("start", "invalid date %q, use YYYY-MM-DD", start)
	}
	e, err := time.ParseInLocation(dateLayout, end, time.UTC)
	if err != nil {
		return DateRange{}, invalidf("end", "invalid date %q, use YYYY-MM-DD", end)
	}
	if e.Before(s) {
		return DateRange{}, invalidf("end", "end date precedes start date")
	}
	return DateRange{Start: s, End: e}, nil
}

// DefaultRange is the current ISO week, Monday through Sunday.
func (e *Engine) DefaultRange() DateRange {
	monday := startOfISOWeek(e.nowUTC())
	return DateRange{Start: monday, End: monday.AddDate(0, 0, 6)}
}

// SumRange aggregates event counts per category for every calendar day in
// the range. The result is a dense series: one row per day, zero-filled
// where no events occurred, so chart consumers never see gaps.
func (e *Engine) SumRange(ctx context.Context, r DateRange) ([]DailyBreakdown, error) {
	if r.Start.IsZero() || r.End.IsZero() {
		return nil, invalidf("range", "start and end are required")
	}
	if r.End.Before(r.Start) {
		return nil, invalidf("end", "end date precedes start date")
	}

	until := r.End.AddDate(0, 0, 1)
	sums, err := e.store.SumEventsByDay(ctx, EventSumQuery{Since: &r.Start, Until: &until})
	if err != nil {
		return nil, storagef("sum events by day", err)
	}

	totalsByDay := make(map[string]*CategoryTotals)
	for _, s := range sums {
		key := s.Day.UTC().Format(dateLayout)
		t, ok := totalsByDay[key]
		if !ok {
			t = &CategoryTotals{}
			totalsByDay[key] = t
		}
		t.Add(s.Category, s.Total)
	}

	rows := make([]DailyBreakdown, 0, r.Days())
	for day := r.Start; !day.After(r.End); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		row := DailyBreakdown{Date: key}
		if t, ok := totalsByDay[key]; ok {
			row.Bio = t.Bio
			row.NonBio = t.NonBio
			row.Unclassified = t.Unclassified
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// SumWeek aggregates the current ISO week.
func (e *Engine) SumWeek(ctx context.Context) ([]DailyBreakdown, error) {
	return e.SumRange(ctx, e.DefaultRange())
}

// MonthSummary is the per-category total for one calendar month.
type MonthSummary struct {
	Month   string         `json:"month"`
	Label   string         `json:"label"`
	Summary CategoryTotals `json:"summary"`
}

// SumMonth aggregates one calendar month.
func (e *Engine) SumMonth(ctx context.Context, year int, month time.Month) (MonthSummary, error) {
	if month < time.January || month > time.December {
		return MonthSummary{}, invalidf("month", "month %d out of range", month)
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	totals, err := e.store.SumEventsTotal(ctx, EventSumQuery{Since: &start, Until: &end})
	if err != nil {
		return MonthSummary{}, storagef("sum events for month", err)
	}
	return MonthSummary{
		Month:   start.Format("2006-01"),
		Label:   start.Format("January 2006"),
		Summary: totals,
	}, nil
}

// SumAllTime aggregates the whole event log per category.
func (e *Engine) SumAllTime(ctx context.Context) (CategoryTotals, error) {
	totals, err := e.store.SumEventsTotal(ctx, EventSumQuery{})
	if err != nil {
		return CategoryTotals{}, storagef("sum events all time", err)
	}
	return totals, nil
}

// WeekSummary is the per-category total for one ISO week of the log.
type WeekSummary struct {
	Label   string         `json:"label"`
	ISOYear int            `json:"iso_year"`
	ISOWeek int            `json:"iso_week"`
	Totals  CategoryTotals `json:"totals"`
}

// WeeklyHistory buckets the whole event log by ISO week, oldest first. The
// label carries the month of the week's Monday, e.g. "July Week 28". A week
// straddling a month boundary lands in exactly one bucket.
func (e *Engine) WeeklyHistory(ctx context.Context) ([]WeekSummary, error) {
	sums, err := e.store.SumEventsByDay(ctx, EventSumQuery{})
	if err != nil {
		return nil, storagef("sum events by day", err)
	}

	type weekKey struct{ year, week int }
	buckets := make(map[weekKey]*WeekSummary)
	for _, s := range sums {
		day := s.Day.UTC()
		year, week := day.ISOWeek()
		key := weekKey{year, week}
		b, ok := buckets[key]
		if !ok {
			monday := startOfISOWeek(day)
			b = &WeekSummary{
				Label:   fmt.Sprintf("%s Week %d", monday.Month().String(), week),
				ISOYear: year,
				ISOWeek: week,
			}
			buckets[key] = b
		}
		b.Totals.Add(s.Category, s.Total)
	}

	out := make([]WeekSummary, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ISOYear != out[j].ISOYear {
			return out[i].ISOYear < out[j].ISOYear
		}
		return out[i].ISOWeek < out[j].ISOWeek
	})
	return out, nil
}

// startOfISOWeek truncates t to the Monday of its ISO week, midnight UTC.
func startOfISOWeek(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

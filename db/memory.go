package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ecobins/binwatch/engine"
)

// Memory is an in-memory engine.Store for tests and single-node development.
// It mirrors the Postgres store's semantics: per-category upsert with the
// monotonic measured_at guard, append-only event log, snapshot reads.
type Memory struct {
	mu     sync.RWMutex
	levels map[engine.BinCategory]engine.CurrentLevelRecord
	events []engine.ClassificationEvent
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{levels: make(map[engine.BinCategory]engine.CurrentLevelRecord)}
}

// UpsertLevel replaces the record for rec's category unless the stored
// record is newer.
func (m *Memory) UpsertLevel(_ context.Context, rec engine.CurrentLevelRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.levels[rec.Category]; ok && prev.MeasuredAt.After(rec.MeasuredAt) {
		return false, nil
	}
	m.levels[rec.Category] = rec
	return true, nil
}

// Level returns the record for one category, nil when never measured.
func (m *Memory) Level(_ context.Context, category engine.BinCategory) (*engine.CurrentLevelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.levels[category]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Levels returns all current-level records ordered by category name.
func (m *Memory) Levels(_ context.Context) ([]engine.CurrentLevelRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]engine.CurrentLevelRecord, 0, len(m.levels))
	for _, rec := range m.levels {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Category < records[j].Category
	})
	return records, nil
}

// AppendEvent appends one classification event.
func (m *Memory) AppendEvent(_ context.Context, ev engine.ClassificationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	return nil
}

// SumEventsByDay returns per-day, per-category sums over the bounded range.
func (m *Memory) SumEventsByDay(_ context.Context, q engine.EventSumQuery) ([]engine.DayCategorySum, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type key struct {
		day      time.Time
		category engine.BinCategory
	}
	byKey := make(map[key]int64)
	for _, ev := range m.events {
		if !inRange(ev.LoggedAt, q) {
			continue
		}
		day := ev.LoggedAt.UTC().Truncate(24 * time.Hour)
		byKey[key{day, ev.Category}] += ev.Count
	}

	sums := make([]engine.DayCategorySum, 0, len(byKey))
	for k, total := range byKey {
		sums = append(sums, engine.DayCategorySum{Day: k.day, Category: k.category, Total: total})
	}
	sort.Slice(sums, func(i, j int) bool {
		if !sums[i].Day.Equal(sums[j].Day) {
			return sums[i].Day.Before(sums[j].Day)
		}
		return sums[i].Category < sums[j].Category
	})
	return sums, nil
}

// SumEventsTotal returns per-category sums over the bounded range.
func (m *Memory) SumEventsTotal(_ context.Context, q engine.EventSumQuery) (engine.CategoryTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var totals engine.CategoryTotals
	for _, ev := range m.events {
		if inRange(ev.LoggedAt, q) {
			totals.Add(ev.Category, ev.Count)
		}
	}
	return totals, nil
}

// EventCount reports the number of stored events (test helper).
func (m *Memory) EventCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

func inRange(t time.Time, q engine.EventSumQuery) bool {
	if q.Since != nil && t.Before(*q.Since) {
		return false
	}
	if q.Until != nil && !t.Before(*q.Until) {
		return false
	}
	return true
}

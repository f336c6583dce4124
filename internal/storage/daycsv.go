package storage

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"defiBacktest/internal/bars"
	"defiBacktest/internal/model"
)

// DayCSVStorage writes event rows into one CSV file per UTC calendar
// day, named <chain>-<pool>-<YYYY-MM-DD>.csv. Files are append-only so
// a resumed download continues where it stopped.
type DayCSVStorage struct {
	dir   string
	chain string
	pool  string
	cache *FrameCache
	mu    sync.Mutex
}

func NewDayCSVStorage(dir, chain, pool string, cache *FrameCache) *DayCSVStorage {
	return &DayCSVStorage{dir: dir, chain: chain, pool: pool, cache: cache}
}

// FilePath returns the CSV path for one day.
func (s *DayCSVStorage) FilePath(day time.Time) string {
	name := fmt.Sprintf("%s-%s-%s.csv", s.chain, s.pool, day.UTC().Format("2006-01-02"))
	return filepath.Join(s.dir, name)
}

// PutEventBatch partitions rows by day and appends each group to its
// file in timestamp order.
func (s *DayCSVStorage) PutEventBatch(rows []model.EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay := make(map[int64][]model.EventRow)
	for _, row := range rows {
		day := row.Timestamp.UTC().Truncate(24 * time.Hour)
		byDay[day.Unix()] = append(byDay[day.Unix()], row)
	}
	days := make([]int64, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	for _, unix := range days {
		day := time.Unix(unix, 0).UTC()
		path := s.FilePath(day)
		if err := bars.AppendEventRows(path, byDay[unix]); err != nil {
			return fmt.Errorf("append %s: %w", filepath.Base(path), err)
		}
		if s.cache != nil {
			if err := s.cache.Register(s.chain, s.pool, day, path); err != nil {
				return err
			}
		}
	}
	return nil
}

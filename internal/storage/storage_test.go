package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"defiBacktest/internal/bars"
	"defiBacktest/internal/model"
)

func eventRow(ts time.Time, logIndex uint64) model.EventRow {
	return model.EventRow{
		BlockNumber: 19000000 + logIndex,
		Timestamp:   ts,
		TxHash:      "0xabc",
		TxIndex:     1,
		LogIndex:    logIndex,
		Data:        "0x00",
		Topics:      []string{"0xtopic0"},
	}
}

func TestDayCSVStoragePartitionsByDay(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFrameCache(filepath.Join(dir, "cache"), time.Hour)
	if err != nil {
		t.Fatalf("NewFrameCache: %v", err)
	}
	sink := NewDayCSVStorage(dir, "ethereum", "0xpool", cache)

	day1 := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 0, 1, 0, 0, time.UTC)
	rows := []model.EventRow{
		eventRow(day1, 1),
		eventRow(day2, 2),
		eventRow(day1.Add(-time.Minute), 3),
	}
	if err := sink.PutEventBatch(rows); err != nil {
		t.Fatalf("PutEventBatch: %v", err)
	}

	got1, err := bars.ReadEventRows(sink.FilePath(day1))
	if err != nil {
		t.Fatalf("read day1: %v", err)
	}
	if len(got1) != 2 {
		t.Fatalf("day1 rows = %d, want 2", len(got1))
	}
	got2, err := bars.ReadEventRows(sink.FilePath(day2))
	if err != nil {
		t.Fatalf("read day2: %v", err)
	}
	if len(got2) != 1 || got2[0].LogIndex != 2 {
		t.Fatalf("day2 rows = %+v, want one row with log index 2", got2)
	}

	// A second batch appends instead of truncating.
	if err := sink.PutEventBatch([]model.EventRow{eventRow(day2.Add(time.Minute), 4)}); err != nil {
		t.Fatalf("PutEventBatch append: %v", err)
	}
	got2, err = bars.ReadEventRows(sink.FilePath(day2))
	if err != nil {
		t.Fatalf("re-read day2: %v", err)
	}
	if len(got2) != 2 {
		t.Fatalf("day2 rows after append = %d, want 2", len(got2))
	}

	path, ok, err := cache.Lookup("ethereum", "0xpool", day1)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok || path != sink.FilePath(day1) {
		t.Fatalf("Lookup = (%q, %v), want registered day1 frame", path, ok)
	}
}

func TestFrameCacheEvict(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewFrameCache(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewFrameCache: %v", err)
	}

	framePath := filepath.Join(dir, "ethereum-0xpool-2024-03-01.csv")
	if err := os.WriteFile(framePath, []byte("header\n"), 0o644); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := cache.Register("ethereum", "0xpool", day, framePath); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Within the eviction age nothing is removed.
	removed, err := cache.Evict(time.Now())
	if err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}

	removed, err = cache.Evict(time.Now().Add(2 * time.Hour))
	if err != nil {
		t.Fatalf("Evict past cutoff: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(framePath); !os.IsNotExist(err) {
		t.Fatalf("frame file still exists after eviction")
	}
	if _, ok, err := cache.Lookup("ethereum", "0xpool", day); err != nil || ok {
		t.Fatalf("Lookup after eviction = (%v, %v), want miss", ok, err)
	}
}

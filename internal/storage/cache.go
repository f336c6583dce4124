package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultEvictionAge is how long an unused frame stays on disk.
const DefaultEvictionAge = 30 * 24 * time.Hour

// FrameEntry is one downloaded data frame in the registry.
type FrameEntry struct {
	Chain      string    `json:"chain"`
	Pool       string    `json:"pool"`
	Date       string    `json:"date"`
	Path       string    `json:"path"`
	LastAccess time.Time `json:"last_access"`
}

// FrameCache tracks downloaded frames in a JSON registry and evicts
// files that have not been touched within the eviction age. The
// registry is rewritten atomically through a tmp file.
type FrameCache struct {
	dir string
	age time.Duration
}

// NewFrameCache opens a cache rooted at dir. A zero age uses the
// default 30 days.
func NewFrameCache(dir string, age time.Duration) (*FrameCache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir = filepath.Join(home, ".defi-backtest", "frames")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if age <= 0 {
		age = DefaultEvictionAge
	}
	return &FrameCache{dir: dir, age: age}, nil
}

// Dir returns the cache root.
func (c *FrameCache) Dir() string { return c.dir }

func (c *FrameCache) registryPath() string {
	return filepath.Join(c.dir, "registry.json")
}

func (c *FrameCache) load() ([]FrameEntry, error) {
	data, err := os.ReadFile(c.registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read frame registry: %w", err)
	}
	var entries []FrameEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse frame registry: %w", err)
	}
	return entries, nil
}

func (c *FrameCache) save(entries []FrameEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal frame registry: %w", err)
	}
	tmpPath := c.registryPath() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write frame registry tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.registryPath()); err != nil {
		return fmt.Errorf("rename frame registry: %w", err)
	}
	return nil
}

// Register records a frame (or refreshes its last access).
func (c *FrameCache) Register(chain, pool string, date time.Time, path string) error {
	entries, err := c.load()
	if err != nil {
		return err
	}
	day := date.UTC().Format("2006-01-02")
	now := time.Now().UTC()
	found := false
	for i := range entries {
		if entries[i].Chain == chain && entries[i].Pool == pool && entries[i].Date == day {
			entries[i].Path = path
			entries[i].LastAccess = now
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, FrameEntry{
			Chain: chain, Pool: pool, Date: day, Path: path, LastAccess: now,
		})
	}
	return c.save(entries)
}

// Lookup returns the path of a cached frame and refreshes its last
// access time.
func (c *FrameCache) Lookup(chain, pool string, date time.Time) (string, bool, error) {
	entries, err := c.load()
	if err != nil {
		return "", false, err
	}
	day := date.UTC().Format("2006-01-02")
	for i := range entries {
		if entries[i].Chain != chain || entries[i].Pool != pool || entries[i].Date != day {
			continue
		}
		if _, err := os.Stat(entries[i].Path); err != nil {
			return "", false, nil
		}
		entries[i].LastAccess = time.Now().UTC()
		if err := c.save(entries); err != nil {
			return "", false, err
		}
		return entries[i].Path, true, nil
	}
	return "", false, nil
}

// Evict removes frames whose last access is older than the eviction
// age and returns how many files were deleted.
func (c *FrameCache) Evict(now time.Time) (int, error) {
	entries, err := c.load()
	if err != nil {
		return 0, err
	}
	cutoff := now.Add(-c.age)
	kept := entries[:0]
	removed := 0
	for _, entry := range entries {
		if entry.LastAccess.After(cutoff) {
			kept = append(kept, entry)
			continue
		}
		if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove frame %s: %w", entry.Path, err)
		}
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, c.save(kept)
}

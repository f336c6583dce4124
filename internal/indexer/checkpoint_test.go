package indexer

import (
	"path/filepath"
	"testing"
)

func TestCheckpointRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, "ethereum", "0xPool", true)

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("Load before save = (%v, %v), want miss", ok, err)
	}
	if err := store.Save(19345678); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cp, ok, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok || cp.LastProcessedBlock != 19345678 {
		t.Fatalf("Load = (%+v, %v), want block 19345678", cp, ok)
	}
	if cp.Chain != "ethereum" || cp.Pool != "0xPool" {
		t.Fatalf("checkpoint identity = %s/%s", cp.Chain, cp.Pool)
	}
}

func TestCheckpointIgnoresOtherStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := NewCheckpointStore(path, "ethereum", "0xAAA", true).Save(100); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Same file, different pool: the stale checkpoint must not resume.
	if _, ok, err := NewCheckpointStore(path, "ethereum", "0xBBB", true).Load(); err != nil || ok {
		t.Fatalf("Load for other pool = (%v, %v), want miss", ok, err)
	}
	if _, ok, err := NewCheckpointStore(path, "bsc", "0xAAA", true).Load(); err != nil || ok {
		t.Fatalf("Load for other chain = (%v, %v), want miss", ok, err)
	}

	// Pool addresses compare case-insensitively (checksum casing).
	if _, ok, err := NewCheckpointStore(path, "ethereum", "0xaaa", true).Load(); err != nil || !ok {
		t.Fatalf("Load with recased pool = (%v, %v), want hit", ok, err)
	}
}

func TestCheckpointDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	store := NewCheckpointStore(path, "ethereum", "0xPool", false)
	if err := store.Save(42); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("disabled store Load = (%v, %v), want miss", ok, err)
	}
}

package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"defiBacktest/internal/broker"
)

type actionEnvelope struct {
	Kind    broker.ActionKind `json:"kind"`
	Payload broker.Action     `json:"payload"`
}

// WriteActionHistory exports a run's action history as JSON lines, one
// tagged envelope per action.
func WriteActionHistory(path string, actions []broker.Action) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create action history: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, action := range actions {
		line, err := json.Marshal(actionEnvelope{Kind: action.Kind(), Payload: action})
		if err != nil {
			return fmt.Errorf("marshal action: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write action: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush action history: %w", err)
	}
	return nil
}

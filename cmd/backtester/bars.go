package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"defiBacktest/internal/bars"
	"defiBacktest/internal/config"
	"defiBacktest/internal/dex"
	"defiBacktest/internal/model"
)

func runBars(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBars(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.Inputs) == 0 {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	paths, err := expandInputs(cfg.Inputs)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no input files found")
	}

	decoder, err := dex.NewDecoder()
	if err != nil {
		return err
	}

	var total, decoded, skipped, failed int
	events := make([]model.PoolEvent, 0)
	for _, path := range paths {
		rows, err := bars.ReadEventRows(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		for _, row := range rows {
			total++
			if len(row.Topics) == 0 || !decoder.CanDecode(row.Topics[0]) {
				skipped++
				continue
			}
			event, err := decoder.Decode(row)
			if err != nil {
				failed++
				logger.Warn("decode failed",
					zap.String("tx_hash", row.TxHash),
					zap.Uint64("log_index", row.LogIndex),
					zap.Error(err),
				)
				continue
			}
			events = append(events, *event)
			decoded++
		}
	}

	aggregator := bars.NewAggregator(logger)
	minuteBars, err := aggregator.Aggregate(events)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}

	if err := bars.WriteMinuteBars(cfg.Out, minuteBars); err != nil {
		return fmt.Errorf("write bars: %w", err)
	}

	logger.Info("bars complete",
		zap.Int("files", len(paths)),
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Int("bars", len(minuteBars)),
		zap.String("out", cfg.Out),
	)

	return nil
}

// expandInputs resolves each input to files, expanding directories to
// the CSVs they contain.
func expandInputs(inputs []string) ([]string, error) {
	out := make([]string, 0, len(inputs))
	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", input, err)
		}
		if !info.IsDir() {
			out = append(out, input)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(input, "*.csv"))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", input, err)
		}
		out = append(out, matches...)
	}
	sort.Strings(out)
	return out, nil
}

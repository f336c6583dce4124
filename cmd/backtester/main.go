package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "backtester",
		Short:        "DeFi money market and CL pool back-tester",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download pool events into day-partitioned CSV frames",
		RunE:  runDownload,
	}

	downloadCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	downloadCmd.Flags().String("chain", "ethereum", "chain name used in frame file names")
	downloadCmd.Flags().String("pool", "", "pool contract address")
	downloadCmd.Flags().String("from-date", "", "start date (YYYY-MM-DD, inclusive)")
	downloadCmd.Flags().String("to-date", "", "end date (YYYY-MM-DD, inclusive)")
	downloadCmd.Flags().String("out", "./data/frames", "output directory for frame CSVs")
	downloadCmd.Flags().String("cache-dir", "", "frame cache directory (default ~/.defi-backtest/frames)")
	downloadCmd.Flags().Duration("eviction-age", 30*24*time.Hour, "evict cached frames older than this")
	downloadCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	downloadCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	downloadCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	downloadCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	downloadCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	downloadCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(downloadCmd)

	barsCmd := &cobra.Command{
		Use:   "bars",
		Short: "Aggregate downloaded event frames into minute bars",
		RunE:  runBars,
	}

	barsCmd.Flags().StringSlice("in", nil, "input event CSVs (comma-separated, directories expand to *.csv)")
	barsCmd.Flags().String("out", "./data/bars.csv", "output minute bar CSV")
	barsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(barsCmd)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay markets over bars and report metrics",
		RunE:  runBacktest,
	}

	runCmd.Flags().String("lending-bars", "", "lending market bar CSV")
	runCmd.Flags().String("reserves", "", "reserve parameter CSV")
	runCmd.Flags().String("pool-bars", "", "CL pool minute bar CSV (optional)")
	runCmd.Flags().String("pool-token0", "", "pool token0 symbol")
	runCmd.Flags().String("pool-token1", "", "pool token1 symbol")
	runCmd.Flags().Uint64("pool-fee", 500, "pool fee in ppm")
	runCmd.Flags().Bool("token0-quote", true, "quote prices in token0")
	runCmd.Flags().StringSlice("token", nil, "tokens as SYMBOL:decimals (comma-separated)")
	runCmd.Flags().StringSlice("balance", nil, "initial balances as SYMBOL=amount (comma-separated)")
	runCmd.Flags().Float64("liquidation-probability", 1.0, "per-bar probability that the liquidation check runs")
	runCmd.Flags().Int64("seed", 1, "liquidation RNG seed")
	runCmd.Flags().String("strategy", "hold", "strategy name")
	runCmd.Flags().String("actions-out", "./data/actions.jsonl", "action history JSONL path")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for result persistence (optional)")
	runCmd.Flags().String("run-id", "local", "run identifier for persisted results")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"defiBacktest/internal/chain"
	"defiBacktest/internal/config"
	"defiBacktest/internal/dex"
	"defiBacktest/internal/indexer"
	"defiBacktest/internal/storage"
)

func runDownload(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDownload(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Pool == "" {
		return fmt.Errorf("pool address is required")
	}
	if cfg.FromDate == "" || cfg.ToDate == "" {
		return fmt.Errorf("from-date and to-date are required")
	}

	fromDay, err := time.Parse("2006-01-02", cfg.FromDate)
	if err != nil {
		return fmt.Errorf("parse from-date: %w", err)
	}
	toDay, err := time.Parse("2006-01-02", cfg.ToDate)
	if err != nil {
		return fmt.Errorf("parse to-date: %w", err)
	}
	if toDay.Before(fromDay) {
		return fmt.Errorf("to-date is before from-date")
	}

	pool, err := indexer.ParsePoolAddress(cfg.Pool)
	if err != nil {
		return err
	}

	decoder, err := dex.NewDecoder()
	if err != nil {
		return err
	}
	topic0, err := indexer.ParseTopic0(decoder.Topics())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	fromBlock, err := chainClient.BlockAtTime(ctx, uint64(fromDay.Unix()))
	if err != nil {
		return fmt.Errorf("resolve from-date block: %w", err)
	}
	// End bound is the last block before the next day starts.
	toBound, err := chainClient.BlockAtTime(ctx, uint64(toDay.Add(24*time.Hour).Unix()))
	if err != nil {
		return fmt.Errorf("resolve to-date block: %w", err)
	}
	toBlock := toBound
	if toBlock > fromBlock {
		toBlock--
	}

	cache, err := storage.NewFrameCache(cfg.CacheDir, cfg.EvictionAge)
	if err != nil {
		return fmt.Errorf("open frame cache: %w", err)
	}
	if evicted, err := cache.Evict(time.Now()); err != nil {
		logger.Warn("frame cache eviction failed", zap.Error(err))
	} else if evicted > 0 {
		logger.Info("evicted stale frames", zap.Int("count", evicted))
	}

	sink := storage.NewDayCSVStorage(cfg.OutDir, cfg.Chain, pool.Hex(), cache)

	runner := indexer.NewRunner(indexer.RunConfig{
		Chain:             cfg.Chain,
		Pool:              pool,
		FromBlock:         fromBlock,
		ToBlock:           toBlock,
		Topic0:            topic0,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, sink, logger)

	logger.Info("download start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain", cfg.Chain),
		zap.String("pool", cfg.Pool),
		zap.String("from_date", cfg.FromDate),
		zap.String("to_date", cfg.ToDate),
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.OutDir),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	return runner.Run(ctx)
}

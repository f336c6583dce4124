package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"defiBacktest/internal/bars"
	"defiBacktest/internal/broker"
	"defiBacktest/internal/config"
	"defiBacktest/internal/engine"
	"defiBacktest/internal/market/aave"
	"defiBacktest/internal/market/uniswap"
	"defiBacktest/internal/model"
	"defiBacktest/internal/storage"
	"defiBacktest/internal/storage/postgres"
)

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.LendingBars == "" {
		return fmt.Errorf("lending-bars path is required")
	}
	if cfg.Reserves == "" {
		return fmt.Errorf("reserves path is required")
	}
	if len(cfg.Tokens) == 0 {
		return fmt.Errorf("token list is required")
	}

	tokens, err := config.ParseTokens(cfg.Tokens)
	if err != nil {
		return err
	}
	balances, err := config.ParseBalances(cfg.Balances, tokens)
	if err != nil {
		return err
	}

	strategy, err := newStrategy(cfg.Strategy)
	if err != nil {
		return err
	}

	bkr := broker.New(balances, logger)

	bySymbol, err := aave.LoadReserveParams(cfg.Reserves)
	if err != nil {
		return fmt.Errorf("load reserves: %w", err)
	}
	reserves, err := aave.BindReserves(bySymbol, tokens)
	if err != nil {
		return err
	}
	lendingBars, prices, err := aave.LoadLendingBars(cfg.LendingBars, tokens)
	if err != nil {
		return fmt.Errorf("load lending bars: %w", err)
	}

	lendingMarket, err := aave.New(aave.Config{
		Name:                   "aave",
		Reserves:               reserves,
		Bars:                   lendingBars,
		Prices:                 prices,
		Broker:                 bkr,
		Logger:                 logger,
		LiquidationProbability: cfg.LiqProb,
		Seed:                   cfg.Seed,
	})
	if err != nil {
		return err
	}
	if err := bkr.AddMarket(lendingMarket); err != nil {
		return err
	}

	if cfg.PoolBars != "" {
		poolMarket, err := buildPoolMarket(cfg, tokens, prices, bkr, logger)
		if err != nil {
			return err
		}
		if err := bkr.AddMarket(poolMarket); err != nil {
			return err
		}
	}

	actuator, err := engine.NewActuator(engine.Config{
		Broker:   bkr,
		Strategy: strategy,
		Prices:   prices,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := actuator.Run(ctx)
	if err != nil {
		return err
	}

	metrics, err := engine.ComputeMetrics(result.Timestamps, result.NetValues)
	if err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}

	logger.Info("backtest complete",
		zap.String("run_id", cfg.RunID),
		zap.String("strategy", strategy.Name()),
		zap.Int("bars", len(result.Timestamps)),
		zap.Int("actions", len(result.Actions)),
		zap.Float64("total_return", metrics.TotalReturn),
		zap.Float64("annualized_return", metrics.AnnualizedReturn),
		zap.Float64("max_drawdown", metrics.MaxDrawdown),
		zap.Float64("sharpe_ratio", metrics.SharpeRatio),
	)

	if cfg.ActionsOut != "" {
		if err := storage.WriteActionHistory(cfg.ActionsOut, result.Actions); err != nil {
			return fmt.Errorf("write actions: %w", err)
		}
		logger.Info("action history written", zap.String("out", cfg.ActionsOut))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.UpsertNetValues(ctx, cfg.RunID, result.Timestamps, result.NetValues); err != nil {
			return fmt.Errorf("persist net values: %w", err)
		}
		if err := store.ReplaceActions(ctx, cfg.RunID, result.Actions); err != nil {
			return fmt.Errorf("persist actions: %w", err)
		}
		logger.Info("results persisted",
			zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
			zap.String("run_id", cfg.RunID),
		)
	}

	return nil
}

func newStrategy(name string) (engine.Strategy, error) {
	switch name {
	case "hold":
		return engine.HoldStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

func buildPoolMarket(cfg config.RunConfig, tokens []model.Token, prices model.PriceSeries, bkr *broker.Broker, logger *zap.Logger) (*uniswap.Market, error) {
	token0, err := findToken(tokens, cfg.PoolToken0)
	if err != nil {
		return nil, err
	}
	token1, err := findToken(tokens, cfg.PoolToken1)
	if err != nil {
		return nil, err
	}

	pool, err := model.NewPool(token0, token1, cfg.PoolFee, cfg.Token0Quote)
	if err != nil {
		return nil, err
	}

	poolBars, err := bars.ReadMinuteBars(cfg.PoolBars)
	if err != nil {
		return nil, fmt.Errorf("load pool bars: %w", err)
	}

	return uniswap.New(uniswap.Config{
		Name:   "uniswap",
		Pool:   pool,
		Bars:   poolBars,
		Prices: prices,
		Broker: bkr,
		Logger: logger,
	})
}

func findToken(tokens []model.Token, symbol string) (model.Token, error) {
	if symbol == "" {
		return model.Token{}, fmt.Errorf("pool token symbol is required")
	}
	for _, token := range tokens {
		if token.Symbol == symbol {
			return token, nil
		}
	}
	return model.Token{}, fmt.Errorf("pool token %q not in token list", symbol)
}

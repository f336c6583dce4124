package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defiBacktest/internal/broker"
	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

// Config wires one replay run.
type Config struct {
	Broker   *broker.Broker
	Strategy Strategy
	// Prices values the broker's free balances at each bar for the
	// net-worth snapshot.
	Prices model.PriceSeries
	Logger *zap.Logger
}

// Result is the output of a run: the net-value series on the replay
// grid plus the recorded action history.
type Result struct {
	Timestamps []time.Time
	NetValues  []decimal.Decimal
	Actions    []broker.Action
}

// Actuator drives the bar loop. Each bar advances every market, runs
// liquidation checks, invokes the strategy, lets markets do end-of-bar
// work, and snapshots net worth. The loop is single-threaded and
// deterministic for a fixed configuration.
type Actuator struct {
	broker   *broker.Broker
	strategy Strategy
	prices   model.PriceSeries
	logger   *zap.Logger
}

func NewActuator(cfg Config) (*Actuator, error) {
	if cfg.Broker == nil {
		return nil, fmt.Errorf("broker is nil")
	}
	if cfg.Strategy == nil {
		return nil, fmt.Errorf("strategy is nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Actuator{
		broker:   cfg.Broker,
		strategy: cfg.Strategy,
		prices:   cfg.Prices,
		logger:   logger,
	}, nil
}

// Run replays the intersection of the registered markets' bar grids.
func (a *Actuator) Run(ctx context.Context) (*Result, error) {
	markets := a.broker.Markets()
	if len(markets) == 0 {
		return nil, fmt.Errorf("no markets registered")
	}
	grid, err := replayGrid(markets)
	if err != nil {
		return nil, err
	}
	a.logger.Info("starting replay",
		zap.String("strategy", a.strategy.Name()),
		zap.Int("markets", len(markets)),
		zap.Int("bars", len(grid)),
		zap.Time("from", grid[0]),
		zap.Time("to", grid[len(grid)-1]),
	)

	result := &Result{
		Timestamps: make([]time.Time, 0, len(grid)),
		NetValues:  make([]decimal.Decimal, 0, len(grid)),
	}
	for _, ts := range grid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, m := range markets {
			if err := m.SetMarketStatus(ts); err != nil {
				return nil, fmt.Errorf("%s: set status at %s: %w", m.Name(), ts.UTC(), err)
			}
		}
		for _, m := range markets {
			checker, ok := m.(market.LiquidationChecker)
			if !ok {
				continue
			}
			if err := checker.CheckLiquidation(ts); err != nil {
				return nil, fmt.Errorf("%s: liquidation at %s: %w", m.Name(), ts.UTC(), err)
			}
		}
		if err := a.strategy.OnBar(ts, a.broker); err != nil {
			return nil, fmt.Errorf("strategy %s at %s: %w", a.strategy.Name(), ts.UTC(), err)
		}
		for _, m := range markets {
			if err := m.Update(ts); err != nil {
				return nil, fmt.Errorf("%s: update at %s: %w", m.Name(), ts.UTC(), err)
			}
		}
		snapshot, err := a.prices.At(ts)
		if err != nil {
			return nil, fmt.Errorf("net worth at %s: %w", ts.UTC(), err)
		}
		netWorth, err := a.broker.NetWorth(snapshot)
		if err != nil {
			return nil, fmt.Errorf("net worth at %s: %w", ts.UTC(), err)
		}
		result.Timestamps = append(result.Timestamps, ts)
		result.NetValues = append(result.NetValues, netWorth)
	}
	result.Actions = a.broker.History()
	a.logger.Info("replay finished",
		zap.Int("bars", len(result.Timestamps)),
		zap.Int("actions", len(result.Actions)),
	)
	return result, nil
}

// replayGrid intersects the markets' bar grids, sorted ascending.
func replayGrid(markets []market.Market) ([]time.Time, error) {
	counts := make(map[int64]int)
	byUnix := make(map[int64]time.Time)
	for _, m := range markets {
		seen := make(map[int64]bool)
		for _, ts := range m.Timestamps() {
			unix := ts.Unix()
			if seen[unix] {
				continue
			}
			seen[unix] = true
			counts[unix]++
			byUnix[unix] = ts
		}
	}
	grid := make([]time.Time, 0, len(counts))
	for unix, n := range counts {
		if n == len(markets) {
			grid = append(grid, byUnix[unix])
		}
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: market bar grids do not overlap", market.ErrData)
	}
	sort.Slice(grid, func(i, j int) bool { return grid[i].Before(grid[j]) })
	return grid, nil
}

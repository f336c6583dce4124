package engine

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"defiBacktest/internal/broker"
	"defiBacktest/internal/market/aave"
	"defiBacktest/internal/model"
)

var (
	usdc = model.Token{Symbol: "USDC", Decimals: 6}
	weth = model.Token{Symbol: "WETH", Decimals: 18}

	t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeMarket records the calls the actuator makes against it.
type fakeMarket struct {
	name  string
	grid  []time.Time
	calls *[]string
	check bool
}

func (f *fakeMarket) Name() string            { return f.name }
func (f *fakeMarket) Timestamps() []time.Time { return f.grid }

func (f *fakeMarket) SetMarketStatus(ts time.Time) error {
	*f.calls = append(*f.calls, fmt.Sprintf("%s:set@%d", f.name, ts.Unix()))
	return nil
}

func (f *fakeMarket) Update(ts time.Time) error {
	*f.calls = append(*f.calls, fmt.Sprintf("%s:update@%d", f.name, ts.Unix()))
	return nil
}

func (f *fakeMarket) NetValue() (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (f *fakeMarket) CheckLiquidation(ts time.Time) error {
	if !f.check {
		return nil
	}
	*f.calls = append(*f.calls, fmt.Sprintf("%s:liquidation@%d", f.name, ts.Unix()))
	return nil
}

type testStrategy struct {
	fn func(ts time.Time, b *broker.Broker) error
}

func (testStrategy) Name() string { return "test" }

func (s testStrategy) OnBar(ts time.Time, b *broker.Broker) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ts, b)
}

func minuteGrid(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = start.Add(time.Duration(i) * time.Minute)
	}
	return out
}

func flatPrices(grid []time.Time) model.PriceSeries {
	prices := make(model.PriceSeries, len(grid))
	for _, ts := range grid {
		prices[ts.Unix()] = model.Prices{usdc: dec("1"), weth: dec("2000")}
	}
	return prices
}

func TestRunOrderAndGridIntersection(t *testing.T) {
	var calls []string
	a := &fakeMarket{name: "a", grid: minuteGrid(t0, 3), calls: &calls, check: true}
	bm := &fakeMarket{name: "b", grid: minuteGrid(t0.Add(time.Minute), 3), calls: &calls}

	b := broker.New(map[model.Token]decimal.Decimal{usdc: dec("100")}, nil)
	if err := b.AddMarket(a); err != nil {
		t.Fatalf("AddMarket: %v", err)
	}
	if err := b.AddMarket(bm); err != nil {
		t.Fatalf("AddMarket: %v", err)
	}

	strategy := testStrategy{fn: func(ts time.Time, _ *broker.Broker) error {
		calls = append(calls, fmt.Sprintf("strategy@%d", ts.Unix()))
		return nil
	}}
	act, err := NewActuator(Config{
		Broker:   b,
		Strategy: strategy,
		Prices:   flatPrices(minuteGrid(t0, 4)),
	})
	if err != nil {
		t.Fatalf("NewActuator: %v", err)
	}
	result, err := act.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Grids overlap on the middle two minutes only.
	if len(result.Timestamps) != 2 {
		t.Fatalf("replayed %d bars, want 2", len(result.Timestamps))
	}
	if !result.Timestamps[0].Equal(t0.Add(time.Minute)) {
		t.Fatalf("first bar at %s, want %s", result.Timestamps[0], t0.Add(time.Minute))
	}

	bar1 := t0.Add(time.Minute).Unix()
	want := []string{
		fmt.Sprintf("a:set@%d", bar1),
		fmt.Sprintf("b:set@%d", bar1),
		fmt.Sprintf("a:liquidation@%d", bar1),
		fmt.Sprintf("strategy@%d", bar1),
		fmt.Sprintf("a:update@%d", bar1),
		fmt.Sprintf("b:update@%d", bar1),
	}
	if len(calls) != 2*len(want) {
		t.Fatalf("recorded %d calls, want %d", len(calls), 2*len(want))
	}
	for i, call := range want {
		if calls[i] != call {
			t.Fatalf("call %d = %q, want %q", i, calls[i], call)
		}
	}
}

func TestRunConservesValueOnSupplyWithdraw(t *testing.T) {
	grid := minuteGrid(t0, 3)
	prices := flatPrices(grid)
	bars := make([]model.LendingBar, len(grid))
	status := model.PoolStatus{
		LiquidityRate:       dec("0"),
		VariableBorrowRate:  dec("0"),
		StableBorrowRate:    dec("0"),
		LiquidityIndex:      dec("1"),
		VariableBorrowIndex: dec("1"),
	}
	for i, ts := range grid {
		bars[i] = model.LendingBar{
			Timestamp: ts,
			Status:    map[model.Token]model.PoolStatus{usdc: status, weth: status},
		}
	}

	b := broker.New(map[model.Token]decimal.Decimal{usdc: dec("10000"), weth: dec("5")}, nil)
	lending, err := aave.New(aave.Config{
		Name: "aave-v3",
		Reserves: map[model.Token]model.ReserveParams{
			usdc: {Symbol: "USDC", CanCollateral: true, CanBorrow: true, LTV: dec("0.77"), LiqThreshold: dec("0.8")},
			weth: {Symbol: "WETH", CanCollateral: true, CanBorrow: true, LTV: dec("0.8"), LiqThreshold: dec("0.825")},
		},
		Bars:                   bars,
		Prices:                 prices,
		Broker:                 b,
		LiquidationProbability: 1,
	})
	if err != nil {
		t.Fatalf("aave.New: %v", err)
	}
	if err := b.AddMarket(lending); err != nil {
		t.Fatalf("AddMarket: %v", err)
	}

	strategy := testStrategy{fn: func(ts time.Time, br *broker.Broker) error {
		switch {
		case ts.Equal(grid[0]):
			return lending.Supply(usdc, dec("1000"), true)
		case ts.Equal(grid[len(grid)-1]):
			_, err := lending.WithdrawAll(usdc)
			return err
		}
		return nil
	}}
	act, err := NewActuator(Config{Broker: b, Strategy: strategy, Prices: prices})
	if err != nil {
		t.Fatalf("NewActuator: %v", err)
	}
	result, err := act.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// With unit indices and flat prices the portfolio value never moves.
	want := dec("20000")
	for i, v := range result.NetValues {
		if !v.Equal(want) {
			t.Fatalf("net value %d = %s, want %s", i, v, want)
		}
	}
	if got := b.GetBalance(usdc); !got.Equal(dec("10000")) {
		t.Fatalf("final usdc balance = %s, want 10000", got)
	}
	if len(result.Actions) != 2 {
		t.Fatalf("recorded %d actions, want supply + withdraw", len(result.Actions))
	}
}

func TestMaxDrawdown(t *testing.T) {
	series := []float64{3, 1, 8, 5, 6, 2, 9, 4, 5}
	if got := MaxDrawdown(series); math.Abs(got-0.75) > 1e-12 {
		t.Fatalf("max drawdown = %v, want 0.75", got)
	}
	if got := MaxDrawdown([]float64{1, 2, 3}); got != 0 {
		t.Fatalf("monotone series drawdown = %v, want 0", got)
	}
}

func TestComputeMetrics(t *testing.T) {
	grid := minuteGrid(t0, 3)
	values := []decimal.Decimal{dec("100"), dec("110"), dec("121")}
	m, err := ComputeMetrics(grid, values)
	if err != nil {
		t.Fatalf("ComputeMetrics: %v", err)
	}
	if math.Abs(m.TotalReturn-0.21) > 1e-12 {
		t.Fatalf("total return = %v, want 0.21", m.TotalReturn)
	}
	if m.MaxDrawdown != 0 {
		t.Fatalf("max drawdown = %v, want 0", m.MaxDrawdown)
	}
	if m.AnnualizedReturn <= m.TotalReturn {
		t.Fatalf("two minutes of growth should annualize above %v, got %v", m.TotalReturn, m.AnnualizedReturn)
	}
	if m.SharpeRatio != 0 {
		// Identical 10% steps have zero variance.
		t.Fatalf("sharpe = %v, want 0 for constant returns", m.SharpeRatio)
	}

	if _, err := ComputeMetrics(grid[:1], values[:1]); err == nil {
		t.Fatal("expected error for single point")
	}
}

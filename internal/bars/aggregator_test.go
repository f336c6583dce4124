package bars

import (
	"math/big"
	"testing"
	"time"

	"defiBacktest/internal/model"
)

func swapEvent(ts time.Time, tick int32, amount0, amount1, liquidity int64) model.PoolEvent {
	return model.PoolEvent{
		Kind:        model.EventSwap,
		BlockNumber: uint64(ts.Unix()),
		Timestamp:   ts,
		Decoded: model.SwapEventData{
			Amount0:      big.NewInt(amount0),
			Amount1:      big.NewInt(amount1),
			SqrtPriceX96: big.NewInt(int64(tick) * 1000),
			Liquidity:    big.NewInt(liquidity),
			Tick:         tick,
		},
	}
}

func testEvents() []model.PoolEvent {
	day0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	day1 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 3, 7, 0, 0, 0, time.UTC)

	return []model.PoolEvent{
		// First day, dropped.
		swapEvent(day0, 100, 10, -20, 500),
		// Middle day.
		swapEvent(day1.Add(10*time.Minute+5*time.Second), 200, 100, -50, 1000),
		swapEvent(day1.Add(10*time.Minute+40*time.Second), 210, -30, 60, 1100),
		swapEvent(day1.Add(13*time.Minute), 190, 40, -10, 1200),
		// Last day, dropped.
		swapEvent(day2, 300, 5, -5, 900),
	}
}

func TestAggregateMiddleDayOnly(t *testing.T) {
	agg := NewAggregator(nil)
	out, err := agg.Aggregate(testEvents())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected bars")
	}

	first := out[0]
	wantStart := time.Date(2024, 3, 2, 0, 10, 0, 0, time.UTC)
	if !first.Timestamp.Equal(wantStart) {
		t.Fatalf("first bar at %s, want %s", first.Timestamp, wantStart)
	}
	if first.OpenTick != 200 || first.CloseTick != 210 {
		t.Fatalf("open/close mismatch: %d/%d", first.OpenTick, first.CloseTick)
	}
	if first.LowestTick != 200 || first.HighestTick != 210 {
		t.Fatalf("low/high mismatch: %d/%d", first.LowestTick, first.HighestTick)
	}
	if first.NetAmount0.Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("net0 mismatch: %s", first.NetAmount0)
	}
	if first.InAmount0.Cmp(big.NewInt(100)) != 0 || first.InAmount1.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("in amounts mismatch: %s/%s", first.InAmount0, first.InAmount1)
	}
	if first.CurrentLiquidity.Cmp(big.NewInt(1100)) != 0 {
		t.Fatalf("liquidity mismatch: %s", first.CurrentLiquidity)
	}
	// Sqrt price follows the minute's last swap.
	if first.SqrtPriceX96.Cmp(big.NewInt(210000)) != 0 {
		t.Fatalf("sqrt price mismatch: %s", first.SqrtPriceX96)
	}

	// Grid must run through the end of the middle day with no holes.
	last := out[len(out)-1]
	wantEnd := time.Date(2024, 3, 2, 23, 59, 0, 0, time.UTC)
	if !last.Timestamp.Equal(wantEnd) {
		t.Fatalf("last bar at %s, want %s", last.Timestamp, wantEnd)
	}
	for i := 1; i < len(out); i++ {
		if out[i].Timestamp.Sub(out[i-1].Timestamp) != time.Minute {
			t.Fatalf("gap between %s and %s", out[i-1].Timestamp, out[i].Timestamp)
		}
	}
}

func TestAggregateGapFill(t *testing.T) {
	agg := NewAggregator(nil)
	out, err := agg.Aggregate(testEvents())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	// Minutes 11 and 12 have no swaps and inherit from minute 10.
	filled := out[1]
	if filled.OpenTick != 210 || filled.CloseTick != 210 || filled.LowestTick != 210 || filled.HighestTick != 210 {
		t.Fatalf("filled bar ticks mismatch: %+v", filled)
	}
	if filled.NetAmount0.Sign() != 0 || filled.InAmount0.Sign() != 0 {
		t.Fatalf("filled bar must have zero amounts: %+v", filled)
	}
	if filled.CurrentLiquidity.Cmp(big.NewInt(1100)) != 0 {
		t.Fatalf("filled bar liquidity mismatch: %s", filled.CurrentLiquidity)
	}
	if filled.SqrtPriceX96.Cmp(big.NewInt(210000)) != 0 {
		t.Fatalf("filled bar sqrt price mismatch: %s", filled.SqrtPriceX96)
	}

	// Minute 13 has its own swap again.
	third := out[3]
	if third.OpenTick != 190 || third.CurrentLiquidity.Cmp(big.NewInt(1200)) != 0 {
		t.Fatalf("bar after gap mismatch: %+v", third)
	}
}

func TestAggregateIdempotent(t *testing.T) {
	agg := NewAggregator(nil)
	first, err := agg.Aggregate(testEvents())
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	second, err := agg.Aggregate(testEvents())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
	}
	for i := range first {
		a, b := first[i], second[i]
		if !a.Timestamp.Equal(b.Timestamp) || a.CloseTick != b.CloseTick ||
			a.NetAmount0.Cmp(b.NetAmount0) != 0 || a.InAmount1.Cmp(b.InAmount1) != 0 {
			t.Fatalf("bar %d differs between passes", i)
		}
	}
}

func TestAggregatePreservesInAmountSum(t *testing.T) {
	events := testEvents()
	agg := NewAggregator(nil)
	out, err := agg.Aggregate(events)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	middleDay := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	wantIn0 := big.NewInt(0)
	for _, event := range events {
		if dayStart(event.Timestamp) != middleDay {
			continue
		}
		swap := event.Decoded.(model.SwapEventData)
		if swap.Amount0.Sign() > 0 {
			wantIn0.Add(wantIn0, swap.Amount0)
		}
	}

	gotIn0 := big.NewInt(0)
	for _, bar := range out {
		gotIn0.Add(gotIn0, bar.InAmount0)
	}
	if gotIn0.Cmp(wantIn0) != 0 {
		t.Fatalf("in amount not conserved: %s vs %s", gotIn0, wantIn0)
	}
}

func TestAggregateTooShortIngest(t *testing.T) {
	agg := NewAggregator(nil)
	out, err := agg.Aggregate([]model.PoolEvent{
		swapEvent(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), 1, 1, -1, 1),
		swapEvent(time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), 2, 1, -1, 1),
	})
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected no bars for single-day ingest, got %d", len(out))
	}
}

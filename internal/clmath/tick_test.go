package clmath

import (
	"math/big"
	"testing"
)

func TestSqrtRatioAtTickKnownValues(t *testing.T) {
	cases := []struct {
		tick int32
		want string
	}{
		{0, "79228162514264337593543950336"},
		{1, "79232123823359799118286999568"},
		{-1, "79224201403219477170569942574"},
		{MinTick, "4295128739"},
		{MaxTick, "1461446703485210103287273052203988822378723970342"},
	}

	for _, tc := range cases {
		got, err := SqrtRatioAtTick(tc.tick)
		if err != nil {
			t.Fatalf("tick %d: %v", tc.tick, err)
		}
		want, ok := new(big.Int).SetString(tc.want, 10)
		if !ok {
			t.Fatalf("bad constant %s", tc.want)
		}
		if got.Cmp(want) != 0 {
			t.Fatalf("tick %d: got %s, want %s", tc.tick, got, want)
		}
	}
}

func TestSqrtRatioAtTickOutOfRange(t *testing.T) {
	if _, err := SqrtRatioAtTick(MaxTick + 1); err == nil {
		t.Fatalf("expected error above MaxTick")
	}
	if _, err := SqrtRatioAtTick(MinTick - 1); err == nil {
		t.Fatalf("expected error below MinTick")
	}
}

func TestTickSqrtRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, MinTick + 1, -887271, -100000, -1, 0, 1, 193453, 203673, 204012, 500000, MaxTick - 1, MaxTick}
	for tick := int32(MinTick); tick <= MaxTick; tick += 997 {
		ticks = append(ticks, tick)
	}

	for _, tick := range ticks {
		ratio, err := SqrtRatioAtTick(tick)
		if err != nil {
			t.Fatalf("forward %d: %v", tick, err)
		}
		back, err := TickAtSqrtRatio(ratio)
		if err != nil {
			t.Fatalf("inverse %d: %v", tick, err)
		}
		if back != tick {
			t.Fatalf("round trip mismatch: %d -> %s -> %d", tick, ratio, back)
		}
	}
}

func TestTickAtSqrtRatioBetweenTicks(t *testing.T) {
	// A sqrt price strictly between tick 100 and 101 resolves to 100.
	lower, err := SqrtRatioAtTick(100)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	upper, err := SqrtRatioAtTick(101)
	if err != nil {
		t.Fatalf("upper: %v", err)
	}
	mid := new(big.Int).Add(lower, upper)
	mid.Rsh(mid, 1)

	tick, err := TickAtSqrtRatio(mid)
	if err != nil {
		t.Fatalf("mid: %v", err)
	}
	if tick != 100 {
		t.Fatalf("expected tick 100, got %d", tick)
	}
}

func TestNearestUsableTick(t *testing.T) {
	cases := []struct {
		tick    int32
		spacing int32
		want    int32
	}{
		{193453, 10, 193450},
		{193455, 10, 193460},
		{-7, 60, 0},
		{-37, 60, -60},
		{MaxTick, 200, 887200},
		{MinTick, 200, -887200},
	}
	for _, tc := range cases {
		if got := NearestUsableTick(tc.tick, tc.spacing); got != tc.want {
			t.Fatalf("snap(%d, %d): got %d, want %d", tc.tick, tc.spacing, got, tc.want)
		}
	}
}

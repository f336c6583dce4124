package clmath

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

// usdc/eth 0.05% pool scenarios: token0 is USDC (6 decimals), token1 is
// WETH (18 decimals).
func TestLiquidityFromAmountsScenarios(t *testing.T) {
	cases := []struct {
		name          string
		sqrtPrice     string
		lowerTick     int32
		upperTick     int32
		amount0       string
		amount1       string
		wantLiquidity string
		wantUsed0     string
		wantUsed1     string
	}{
		{
			name:          "narrow range around current tick",
			sqrtPrice:     "1257384995536224474004876275428333", // tick 193453
			lowerTick:     193420,
			upperTick:     193460,
			amount0:       "1989.968727",
			amount1:       "0.733658189325188910",
			wantLiquidity: "27273497828438404",
			wantUsed0:     "521.459929",
			wantUsed1:     "0.733658189325188900",
		},
		{
			name:          "wide range",
			sqrtPrice:     "2095880080440004953462181247693832", // tick 203673
			lowerTick:     202960,
			upperTick:     204070,
			amount0:       "379.902946",
			amount1:       "0.42729421540077245",
			wantLiquidity: "461087602302446",
			wantUsed0:     "342.361229",
			wantUsed1:     "0.427294215400771602",
		},
		{
			name:          "tight range",
			sqrtPrice:     "2131675114632770668135762770652713", // tick 204012
			lowerTick:     203960,
			upperTick:     204090,
			amount0:       "74.315359",
			amount1:       "0.02722552310238334",
			wantLiquidity: "390188993876725",
			wantUsed0:     "56.491219",
			wantUsed1:     "0.027225523102383337",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sqrtPrice, ok := new(big.Int).SetString(tc.sqrtPrice, 10)
			if !ok {
				t.Fatalf("bad sqrt price %s", tc.sqrtPrice)
			}

			amount0 := decimal.RequireFromString(tc.amount0)
			amount1 := decimal.RequireFromString(tc.amount1)

			liquidity, err := LiquidityFromAmounts(sqrtPrice, tc.lowerTick, tc.upperTick, amount0, amount1, 6, 18)
			if err != nil {
				t.Fatalf("liquidity: %v", err)
			}
			wantLiquidity, _ := new(big.Int).SetString(tc.wantLiquidity, 10)
			assertRelClose(t, decimal.NewFromBigInt(liquidity, 0), decimal.NewFromBigInt(wantLiquidity, 0), "0.005")

			used0, used1, err := AmountsFromLiquidity(sqrtPrice, tc.lowerTick, tc.upperTick, liquidity, 6, 18)
			if err != nil {
				t.Fatalf("amounts: %v", err)
			}
			assertRelClose(t, used0, decimal.RequireFromString(tc.wantUsed0), "0.005")
			assertRelClose(t, used1, decimal.RequireFromString(tc.wantUsed1), "0.005")

			// One input side may be partly unused, neither may be exceeded.
			if used0.GreaterThan(amount0) {
				t.Fatalf("used0 %s exceeds input %s", used0, amount0)
			}
			if used1.GreaterThan(amount1) {
				t.Fatalf("used1 %s exceeds input %s", used1, amount1)
			}
		})
	}
}

func TestAmountLiquidityRoundTrip(t *testing.T) {
	cases := []struct {
		currentTick int32
		lowerTick   int32
		upperTick   int32
		liquidity   string
	}{
		{193453, 193420, 193460, "27273497828438404"},
		{203673, 202960, 204070, "461087602302446"},
		{0, -600, 600, "1000000000000000000"},
		{-100000, -100200, -99800, "12345678901234"},
	}

	for _, tc := range cases {
		sqrtPrice, err := SqrtRatioAtTick(tc.currentTick)
		if err != nil {
			t.Fatalf("sqrt price: %v", err)
		}
		liquidity, _ := new(big.Int).SetString(tc.liquidity, 10)

		amount0, amount1, err := AmountsFromLiquidity(sqrtPrice, tc.lowerTick, tc.upperTick, liquidity, 6, 18)
		if err != nil {
			t.Fatalf("amounts: %v", err)
		}
		back, err := LiquidityFromAmounts(sqrtPrice, tc.lowerTick, tc.upperTick, amount0, amount1, 6, 18)
		if err != nil {
			t.Fatalf("liquidity: %v", err)
		}

		assertRelClose(t, decimal.NewFromBigInt(back, 0), decimal.NewFromBigInt(liquidity, 0), "0.000001")
	}
}

func TestAmountsFromLiquidityRegimes(t *testing.T) {
	liquidity, _ := new(big.Int).SetString("1000000000000000", 10)

	below, err := SqrtRatioAtTick(193400)
	if err != nil {
		t.Fatalf("below: %v", err)
	}
	amount0, amount1, err := AmountsFromLiquidity(below, 193420, 193460, liquidity, 6, 18)
	if err != nil {
		t.Fatalf("below amounts: %v", err)
	}
	if amount0.Sign() <= 0 || amount1.Sign() != 0 {
		t.Fatalf("below range should be all token0, got (%s, %s)", amount0, amount1)
	}

	above, err := SqrtRatioAtTick(193500)
	if err != nil {
		t.Fatalf("above: %v", err)
	}
	amount0, amount1, err = AmountsFromLiquidity(above, 193420, 193460, liquidity, 6, 18)
	if err != nil {
		t.Fatalf("above amounts: %v", err)
	}
	if amount0.Sign() != 0 || amount1.Sign() <= 0 {
		t.Fatalf("above range should be all token1, got (%s, %s)", amount0, amount1)
	}
}

func TestLiquidityFromAmountsInvalidRange(t *testing.T) {
	sqrtPrice, err := SqrtRatioAtTick(0)
	if err != nil {
		t.Fatalf("sqrt price: %v", err)
	}
	if _, err := LiquidityFromAmounts(sqrtPrice, 60, 60, decimal.NewFromInt(1), decimal.NewFromInt(1), 6, 18); err == nil {
		t.Fatalf("expected error for empty range")
	}
	if _, _, err := AmountsFromLiquidity(sqrtPrice, 120, 60, big.NewInt(1), 6, 18); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func assertRelClose(t *testing.T, got, want decimal.Decimal, tolerance string) {
	t.Helper()
	tol := decimal.RequireFromString(tolerance)
	if want.Sign() == 0 {
		if got.Abs().GreaterThan(tol) {
			t.Fatalf("got %s, want 0", got)
		}
		return
	}
	rel := got.Sub(want).Abs().DivRound(want.Abs(), 28)
	if rel.GreaterThan(tol) {
		t.Fatalf("got %s, want %s (rel err %s > %s)", got, want, rel, tolerance)
	}
}

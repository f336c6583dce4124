package clmath

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Amount0FromLiquidity returns the token0 amount backing liquidity L
// between two sqrt prices, in human units of a token with the given
// decimals: L * 2^96 * (sqrtB - sqrtA) / (sqrtA * sqrtB) / 10^decimals0.
func Amount0FromLiquidity(sqrtA, sqrtB, liquidity *big.Int, decimals0 int32) decimal.Decimal {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)

	num := new(big.Int).Sub(sqrtB, sqrtA)
	num.Mul(num, liquidity)
	num.Mul(num, Q96)
	den := new(big.Int).Mul(sqrtA, sqrtB)

	wei := new(big.Int).Quo(num, den)
	return decimal.NewFromBigInt(wei, -decimals0)
}

// Amount1FromLiquidity returns the token1 amount backing liquidity L
// between two sqrt prices: L * (sqrtB - sqrtA) / 2^96 / 10^decimals1.
func Amount1FromLiquidity(sqrtA, sqrtB, liquidity *big.Int, decimals1 int32) decimal.Decimal {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)

	num := new(big.Int).Sub(sqrtB, sqrtA)
	num.Mul(num, liquidity)

	wei := new(big.Int).Quo(num, Q96)
	return decimal.NewFromBigInt(wei, -decimals1)
}

// AmountsFromLiquidity resolves a position's token amounts at the current
// sqrt price across the three price regimes.
func AmountsFromLiquidity(sqrtPriceX96 *big.Int, lowerTick, upperTick int32, liquidity *big.Int, decimals0, decimals1 int32) (decimal.Decimal, decimal.Decimal, error) {
	if lowerTick >= upperTick {
		return decimal.Zero, decimal.Zero, fmt.Errorf("invalid tick range [%d, %d]", lowerTick, upperTick)
	}
	sqrtLower, err := SqrtRatioAtTick(lowerTick)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	sqrtUpper, err := SqrtRatioAtTick(upperTick)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	switch {
	case sqrtPriceX96.Cmp(sqrtLower) <= 0:
		return Amount0FromLiquidity(sqrtLower, sqrtUpper, liquidity, decimals0), decimal.Zero, nil
	case sqrtPriceX96.Cmp(sqrtUpper) >= 0:
		return decimal.Zero, Amount1FromLiquidity(sqrtLower, sqrtUpper, liquidity, decimals1), nil
	default:
		amount0 := Amount0FromLiquidity(sqrtPriceX96, sqrtUpper, liquidity, decimals0)
		amount1 := Amount1FromLiquidity(sqrtLower, sqrtPriceX96, liquidity, decimals1)
		return amount0, amount1, nil
	}
}

// LiquidityFromAmount0 inverts Amount0FromLiquidity:
// L = amount0 * 10^d0 * sqrtA * sqrtB / (2^96 * (sqrtB - sqrtA)).
func LiquidityFromAmount0(sqrtA, sqrtB *big.Int, amount0 decimal.Decimal, decimals0 int32) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)

	wei := amount0.Shift(decimals0).Rat()
	num := new(big.Rat).Mul(wei, new(big.Rat).SetInt(sqrtA))
	num.Mul(num, new(big.Rat).SetInt(sqrtB))
	den := new(big.Int).Sub(sqrtB, sqrtA)
	den.Mul(den, Q96)
	num.Quo(num, new(big.Rat).SetInt(den))

	return ratFloor(num)
}

// LiquidityFromAmount1 inverts Amount1FromLiquidity:
// L = amount1 * 10^d1 * 2^96 / (sqrtB - sqrtA).
func LiquidityFromAmount1(sqrtA, sqrtB *big.Int, amount1 decimal.Decimal, decimals1 int32) *big.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)

	wei := amount1.Shift(decimals1).Rat()
	num := new(big.Rat).Mul(wei, new(big.Rat).SetInt(Q96))
	den := new(big.Int).Sub(sqrtB, sqrtA)
	num.Quo(num, new(big.Rat).SetInt(den))

	return ratFloor(num)
}

// LiquidityFromAmounts computes the largest liquidity fully backed by the
// offered amounts at the current sqrt price. Inside the range the result
// is the minimum of the two single-sided liquidities.
func LiquidityFromAmounts(sqrtPriceX96 *big.Int, lowerTick, upperTick int32, amount0, amount1 decimal.Decimal, decimals0, decimals1 int32) (*big.Int, error) {
	if lowerTick >= upperTick {
		return nil, fmt.Errorf("invalid tick range [%d, %d]", lowerTick, upperTick)
	}
	sqrtLower, err := SqrtRatioAtTick(lowerTick)
	if err != nil {
		return nil, err
	}
	sqrtUpper, err := SqrtRatioAtTick(upperTick)
	if err != nil {
		return nil, err
	}

	switch {
	case sqrtPriceX96.Cmp(sqrtLower) <= 0:
		return LiquidityFromAmount0(sqrtLower, sqrtUpper, amount0, decimals0), nil
	case sqrtPriceX96.Cmp(sqrtUpper) >= 0:
		return LiquidityFromAmount1(sqrtLower, sqrtUpper, amount1, decimals1), nil
	default:
		liquidity0 := LiquidityFromAmount0(sqrtPriceX96, sqrtUpper, amount0, decimals0)
		liquidity1 := LiquidityFromAmount1(sqrtLower, sqrtPriceX96, amount1, decimals1)
		if liquidity0.Cmp(liquidity1) < 0 {
			return liquidity0, nil
		}
		return liquidity1, nil
	}
}

func ordered(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func ratFloor(r *big.Rat) *big.Int {
	out := new(big.Int).Quo(r.Num(), r.Denom())
	return out
}

package clmath

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"defiBacktest/internal/model"
)

const quoteDivPrecision = 40

// TickToQuotePrice converts a pool tick into the human price of the
// pool's quote side. The raw pool price 1.0001^tick is token1 per token0
// in wei terms; decimals re-scale it and the quote side may invert it.
// Derived from the exact sqrt ratio so it agrees with the Q64.96 kernel.
func TickToQuotePrice(pool model.Pool, tick int32) (decimal.Decimal, error) {
	sqrtPrice, err := SqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Decimal{}, err
	}
	ratio := decimal.NewFromBigInt(sqrtPrice, 0).DivRound(decimal.NewFromBigInt(Q96, 0), quoteDivPrecision)
	price := ratio.Mul(ratio).Shift(pool.Token0.Decimals - pool.Token1.Decimals)
	if pool.IsToken0Quote {
		return decimal.NewFromInt(1).DivRound(price, quoteDivPrecision), nil
	}
	return price, nil
}

// QuotePriceToTick converts a human quote price back to the nearest lower
// pool tick.
func QuotePriceToTick(pool model.Pool, price decimal.Decimal) (int32, error) {
	if price.Sign() <= 0 {
		return 0, fmt.Errorf("price must be positive")
	}
	raw := price
	if pool.IsToken0Quote {
		raw = decimal.NewFromInt(1).DivRound(price, quoteDivPrecision)
	}
	raw = raw.Shift(pool.Token1.Decimals - pool.Token0.Decimals)

	value, _ := raw.Float64()
	if value <= 0 || math.IsInf(value, 0) {
		return 0, fmt.Errorf("price maps outside tick range: %s", price)
	}
	tick := int32(math.Floor(math.Log(value) / math.Log(1.0001)))
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("price maps outside tick range: %s", price)
	}
	return tick, nil
}

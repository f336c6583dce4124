package model

import (
	"math/big"
	"time"
)

// MinuteBar aggregates one minute of pool swaps. Amounts are wei-scale
// integers; tick fields carry the OHLC of the swap ticks in that minute.
// SqrtPriceX96 is the Q64.96 sqrt price after the minute's last swap;
// the close tick alone only bounds the price from below. Gap-filled bars
// inherit the previous tick fields, sqrt price and liquidity with zero
// amounts.
type MinuteBar struct {
	Timestamp        time.Time
	NetAmount0       *big.Int
	NetAmount1       *big.Int
	CloseTick        int32
	OpenTick         int32
	LowestTick       int32
	HighestTick      int32
	InAmount0        *big.Int
	InAmount1        *big.Int
	SqrtPriceX96     *big.Int
	CurrentLiquidity *big.Int
}

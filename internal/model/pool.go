package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Pool describes a concentrated-liquidity pool. Fee is in parts per
// million (500 = 0.05%). IsToken0Quote selects which side prices are
// quoted in when converting ticks to human prices.
type Pool struct {
	Token0        Token
	Token1        Token
	Fee           uint32
	TickSpacing   int32
	IsToken0Quote bool
}

var feeTierSpacing = map[uint32]int32{
	500:   10,
	3000:  60,
	10000: 200,
}

// NewPool validates the fee tier and fills the matching tick spacing.
func NewPool(token0, token1 Token, fee uint32, isToken0Quote bool) (Pool, error) {
	spacing, ok := feeTierSpacing[fee]
	if !ok {
		return Pool{}, fmt.Errorf("unsupported fee tier: %d", fee)
	}
	return Pool{
		Token0:        token0,
		Token1:        token1,
		Fee:           fee,
		TickSpacing:   spacing,
		IsToken0Quote: isToken0Quote,
	}, nil
}

// FeeRate returns the fee tier as a fraction (0.0005 for the 0.05% tier).
func (p Pool) FeeRate() decimal.Decimal {
	return decimal.New(int64(p.Fee), -6)
}

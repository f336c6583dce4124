package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InterestMode selects the borrow rate mode of a debt position.
type InterestMode string

const (
	ModeVariable InterestMode = "variable"
	ModeStable   InterestMode = "stable"
)

// ReserveParams holds the static risk configuration of one lending
// reserve. Percentage columns from the parameter file are already divided
// by 100 here. Immutable for the duration of a run.
type ReserveParams struct {
	Symbol              string
	CanCollateral       bool
	LTV                 decimal.Decimal
	LiqThreshold        decimal.Decimal
	LiqBonus            decimal.Decimal
	ReserveFactor       decimal.Decimal
	CanBorrow           bool
	OptimalUtilization  decimal.Decimal
	CanBorrowStable     bool
	DebtCeiling         decimal.Decimal
	SupplyCap           decimal.Decimal
	BorrowCap           decimal.Decimal
	EModeLTV            decimal.Decimal
	EModeLiqThreshold   decimal.Decimal
	EModeLiqBonus       decimal.Decimal
	BorrowableIsolation bool
}

// PoolStatus is the per-bar lending market state for one token. Rates
// are nominal annual fractions compounded per second; indices are
// cumulative multipliers. Both are already normalized from the on-chain
// 1e27 scale.
type PoolStatus struct {
	LiquidityRate       decimal.Decimal
	VariableBorrowRate  decimal.Decimal
	StableBorrowRate    decimal.Decimal
	LiquidityIndex      decimal.Decimal
	VariableBorrowIndex decimal.Decimal
}

// LendingBar is one bar of lending market state across tokens.
type LendingBar struct {
	Timestamp time.Time
	Status    map[Token]PoolStatus
}

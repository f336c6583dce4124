package broker

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"

	"defiBacktest/internal/model"
)

// ActionKind tags one entry of the broker history.
type ActionKind string

const (
	ActionSupply          ActionKind = "supply"
	ActionWithdraw        ActionKind = "withdraw"
	ActionBorrow          ActionKind = "borrow"
	ActionRepay           ActionKind = "repay"
	ActionLiquidation     ActionKind = "liquidation"
	ActionAddLiquidity    ActionKind = "add_liquidity"
	ActionRemoveLiquidity ActionKind = "remove_liquidity"
	ActionCollectFee      ActionKind = "collect_fee"
)

// Action is one recorded market mutation. Each concrete type carries the
// event parameters plus the relevant post-state snapshot.
type Action interface {
	Kind() ActionKind
	At() time.Time
	MarketName() string
}

// Base holds the fields every action shares.
type Base struct {
	Market    string    `json:"market"`
	Timestamp time.Time `json:"timestamp"`
}

func (b Base) At() time.Time      { return b.Timestamp }
func (b Base) MarketName() string { return b.Market }

type SupplyAction struct {
	Base
	Token       model.Token     `json:"token"`
	Amount      decimal.Decimal `json:"amount"`
	Collateral  bool            `json:"collateral"`
	SupplyAfter decimal.Decimal `json:"supply_after"`
}

func (SupplyAction) Kind() ActionKind { return ActionSupply }

type WithdrawAction struct {
	Base
	Token       model.Token     `json:"token"`
	Amount      decimal.Decimal `json:"amount"`
	SupplyAfter decimal.Decimal `json:"supply_after"`
}

func (WithdrawAction) Kind() ActionKind { return ActionWithdraw }

type BorrowAction struct {
	Base
	Token     model.Token        `json:"token"`
	Mode      model.InterestMode `json:"mode"`
	Amount    decimal.Decimal    `json:"amount"`
	DebtAfter decimal.Decimal    `json:"debt_after"`
}

func (BorrowAction) Kind() ActionKind { return ActionBorrow }

type RepayAction struct {
	Base
	Token     model.Token        `json:"token"`
	Mode      model.InterestMode `json:"mode"`
	Amount    decimal.Decimal    `json:"amount"`
	DebtAfter decimal.Decimal    `json:"debt_after"`
}

func (RepayAction) Kind() ActionKind { return ActionRepay }

type LiquidationAction struct {
	Base
	DebtToken         model.Token     `json:"debt_token"`
	CollateralToken   model.Token     `json:"collateral_token"`
	DebtCovered       decimal.Decimal `json:"debt_covered"`
	CollateralSeized  decimal.Decimal `json:"collateral_seized"`
	HealthFactorAfter decimal.Decimal `json:"health_factor_after"`
}

func (LiquidationAction) Kind() ActionKind { return ActionLiquidation }

type AddLiquidityAction struct {
	Base
	LowerTick   int32           `json:"lower_tick"`
	UpperTick   int32           `json:"upper_tick"`
	Amount0Used decimal.Decimal `json:"amount0_used"`
	Amount1Used decimal.Decimal `json:"amount1_used"`
	Liquidity   *big.Int        `json:"liquidity"`
}

func (AddLiquidityAction) Kind() ActionKind { return ActionAddLiquidity }

type RemoveLiquidityAction struct {
	Base
	LowerTick int32           `json:"lower_tick"`
	UpperTick int32           `json:"upper_tick"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
}

func (RemoveLiquidityAction) Kind() ActionKind { return ActionRemoveLiquidity }

type CollectFeeAction struct {
	Base
	LowerTick int32           `json:"lower_tick"`
	UpperTick int32           `json:"upper_tick"`
	Fee0      decimal.Decimal `json:"fee0"`
	Fee1      decimal.Decimal `json:"fee1"`
}

func (CollectFeeAction) Kind() ActionKind { return ActionCollectFee }

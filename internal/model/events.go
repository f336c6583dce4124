package model

import (
	"math/big"
	"time"
)

// EventKind names a decoded pool event.
type EventKind string

const (
	EventSwap    EventKind = "swap"
	EventMint    EventKind = "mint"
	EventBurn    EventKind = "burn"
	EventCollect EventKind = "collect"
)

// PoolEvent is a decoded pool log with its source coordinates.
type PoolEvent struct {
	Kind        EventKind
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
	Timestamp   time.Time
	Decoded     interface{}
}

// SwapEventData is the decoded Swap payload. Amounts are signed wei.
type SwapEventData struct {
	Sender       string
	Recipient    string
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// MintEventData is the decoded Mint payload.
type MintEventData struct {
	Sender    string
	Owner     string
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// BurnEventData is the decoded Burn payload. Liquidity is negated so that
// mint and burn liquidity deltas sum naturally.
type BurnEventData struct {
	Owner     string
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// CollectEventData is the decoded Collect payload.
type CollectEventData struct {
	Owner     string
	Recipient string
	TickLower int32
	TickUpper int32
	Amount0   *big.Int
	Amount1   *big.Int
}

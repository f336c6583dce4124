package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Token identifies an asset by symbol and decimal exponent.
// Tokens are compared by value, so two descriptors with the same symbol
// and decimals are the same token.
type Token struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

func (t Token) String() string {
	return t.Symbol
}

// Prices is a per-bar snapshot of USD prices by token.
type Prices map[Token]decimal.Decimal

// Get returns the price for a token, failing on missing or non-positive
// entries so calculation paths never see a zero price silently.
func (p Prices) Get(token Token) (decimal.Decimal, error) {
	price, ok := p[token]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no price for token %s", token.Symbol)
	}
	if price.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("non-positive price for token %s", token.Symbol)
	}
	return price, nil
}

// PriceSeries indexes per-bar price snapshots by unix timestamp.
type PriceSeries map[int64]Prices

// At returns the snapshot for a bar timestamp.
func (s PriceSeries) At(ts time.Time) (Prices, error) {
	prices, ok := s[ts.Unix()]
	if !ok {
		return nil, fmt.Errorf("no prices at %s", ts.UTC())
	}
	return prices, nil
}

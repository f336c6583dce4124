package broker

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

var usdc = model.Token{Symbol: "usdc", Decimals: 6}

func TestSubtractWithinDustTolerance(t *testing.T) {
	b := New(map[model.Token]decimal.Decimal{
		usdc: decimal.RequireFromString("99.99999"),
	}, nil)

	// Deficit of 0.00001 on a 100 debit is inside the 1e-4 tolerance.
	if err := b.SubtractFromBalance(usdc, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("expected dust drain, got %v", err)
	}
	if !b.GetBalance(usdc).IsZero() {
		t.Fatalf("balance should drain to zero, got %s", b.GetBalance(usdc))
	}
}

func TestSubtractBeyondDustToleranceFails(t *testing.T) {
	b := New(map[model.Token]decimal.Decimal{
		usdc: decimal.NewFromInt(90),
	}, nil)

	err := b.SubtractFromBalance(usdc, decimal.NewFromInt(100))
	if err == nil {
		t.Fatalf("expected insufficient balance")
	}
	if !errors.Is(err, market.ErrInsufficientBalance) {
		t.Fatalf("wrong error kind: %v", err)
	}
	// Failed debit must not mutate the balance.
	if !b.GetBalance(usdc).Equal(decimal.NewFromInt(90)) {
		t.Fatalf("balance mutated on failure: %s", b.GetBalance(usdc))
	}
}

func TestAddAndSetBalance(t *testing.T) {
	b := New(nil, nil)
	if err := b.AddToBalance(usdc, decimal.NewFromInt(50)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := b.AddToBalance(usdc, decimal.NewFromInt(25)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !b.GetBalance(usdc).Equal(decimal.NewFromInt(75)) {
		t.Fatalf("unexpected balance: %s", b.GetBalance(usdc))
	}

	if err := b.SetBalance(usdc, decimal.NewFromInt(-1)); err == nil {
		t.Fatalf("expected error for negative set")
	}
	if err := b.AddToBalance(usdc, decimal.NewFromInt(-1)); err == nil {
		t.Fatalf("expected error for negative credit")
	}
}

func TestHistoryOrdering(t *testing.T) {
	b := New(nil, nil)
	ts := time.Date(2024, 3, 2, 0, 10, 0, 0, time.UTC)

	b.Record(SupplyAction{Base: Base{Market: "aave", Timestamp: ts}, Token: usdc, Amount: decimal.NewFromInt(1)})
	b.Record(BorrowAction{Base: Base{Market: "aave", Timestamp: ts}, Token: usdc, Mode: model.ModeVariable, Amount: decimal.NewFromInt(2)})

	history := b.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(history))
	}
	if history[0].Kind() != ActionSupply || history[1].Kind() != ActionBorrow {
		t.Fatalf("history out of order: %s, %s", history[0].Kind(), history[1].Kind())
	}
	if history[0].MarketName() != "aave" || !history[0].At().Equal(ts) {
		t.Fatalf("base fields mismatch: %+v", history[0])
	}
}

func TestNetWorthValuesBalances(t *testing.T) {
	eth := model.Token{Symbol: "eth", Decimals: 18}
	b := New(map[model.Token]decimal.Decimal{
		usdc: decimal.NewFromInt(1000),
		eth:  decimal.RequireFromString("0.5"),
	}, nil)

	prices := model.Prices{
		usdc: decimal.NewFromInt(1),
		eth:  decimal.NewFromInt(2000),
	}
	worth, err := b.NetWorth(prices)
	if err != nil {
		t.Fatalf("net worth: %v", err)
	}
	if !worth.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("expected 2000, got %s", worth)
	}
}

package aave

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defiBacktest/internal/broker"
	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

// Residual base amounts at or below this floor are collapsed to zero and
// their keys deleted, so repay-all and withdraw-all never leave dust
// entries behind.
var dustFloor = decimal.New(1, -18)

var (
	one  = decimal.NewFromInt(1)
	half = decimal.RequireFromString("0.5")
)

// supplyEntry is one (token) supply position in index-normalized units.
type supplyEntry struct {
	base       decimal.Decimal
	collateral bool
}

type borrowKey struct {
	token model.Token
	mode  model.InterestMode
}

type borrowEntry struct {
	base decimal.Decimal
}

// Config assembles everything a lending market needs for one run.
type Config struct {
	Name     string
	Reserves map[model.Token]model.ReserveParams
	Bars     []model.LendingBar
	Prices   model.PriceSeries
	Broker   *broker.Broker
	Logger   *zap.Logger
	// LiquidationProbability is the per-bar probability that the
	// liquidation check actually runs, modeling liquidator latency.
	LiquidationProbability float64
	Seed                   int64
}

// Market simulates an Aave-style money market against a replayed series
// of lending bars. Balances are stored index-normalized; every view
// converts through the current bar's indices.
type Market struct {
	name     string
	logger   *zap.Logger
	broker   *broker.Broker
	reserves map[model.Token]model.ReserveParams
	bars     []model.LendingBar
	barIndex map[int64]int
	prices   model.PriceSeries

	now       time.Time
	status    map[model.Token]model.PoolStatus
	nowPrices model.Prices
	supplies  map[model.Token]*supplyEntry
	borrows   map[borrowKey]*borrowEntry
	cache     *derived
	rng       *rand.Rand
	liqProb   float64
}

func New(cfg Config) (*Market, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("market name is empty")
	}
	if cfg.Broker == nil {
		return nil, fmt.Errorf("broker is nil")
	}
	if len(cfg.Bars) == 0 {
		return nil, fmt.Errorf("%w: no lending bars", market.ErrData)
	}
	if cfg.LiquidationProbability < 0 || cfg.LiquidationProbability > 1 {
		return nil, fmt.Errorf("liquidation probability %v outside [0,1]", cfg.LiquidationProbability)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bars := make([]model.LendingBar, len(cfg.Bars))
	copy(bars, cfg.Bars)
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	barIndex := make(map[int64]int, len(bars))
	for i, bar := range bars {
		barIndex[bar.Timestamp.Unix()] = i
	}
	return &Market{
		name:     cfg.Name,
		logger:   logger,
		broker:   cfg.Broker,
		reserves: cfg.Reserves,
		bars:     bars,
		barIndex: barIndex,
		prices:   cfg.Prices,
		supplies: make(map[model.Token]*supplyEntry),
		borrows:  make(map[borrowKey]*borrowEntry),
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		liqProb:  cfg.LiquidationProbability,
	}, nil
}

func (m *Market) Name() string { return m.name }

// SetMarketStatus advances the market to the bar at ts and drops the
// derived-value cache.
func (m *Market) SetMarketStatus(ts time.Time) error {
	idx, ok := m.barIndex[ts.Unix()]
	if !ok {
		return fmt.Errorf("%w: no lending bar at %s", market.ErrData, ts.UTC())
	}
	prices, err := m.prices.At(ts)
	if err != nil {
		return fmt.Errorf("%w: %v", market.ErrData, err)
	}
	m.now = ts
	m.status = m.bars[idx].Status
	m.nowPrices = prices
	m.invalidate()
	return nil
}

// Update is the end-of-bar hook. Lending accrual happens through the
// indices carried by each bar, so there is nothing to do here.
func (m *Market) Update(ts time.Time) error { return nil }

// Timestamps returns the sorted bar grid.
func (m *Market) Timestamps() []time.Time {
	out := make([]time.Time, len(m.bars))
	for i, bar := range m.bars {
		out[i] = bar.Timestamp
	}
	return out
}

// NetValue is total supply value minus total debt value at the current bar.
func (m *Market) NetValue() (decimal.Decimal, error) {
	d, err := m.derivedValues()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.suppliesTotal.Sub(d.borrowsTotal), nil
}

func (m *Market) invalidate() { m.cache = nil }

func (m *Market) reserve(token model.Token) (model.ReserveParams, error) {
	res, ok := m.reserves[token]
	if !ok {
		return model.ReserveParams{}, fmt.Errorf("%w: no reserve parameters for %s", market.ErrData, token.Symbol)
	}
	return res, nil
}

func (m *Market) statusFor(token model.Token) (model.PoolStatus, error) {
	if m.status == nil {
		return model.PoolStatus{}, fmt.Errorf("%w: market status not set", market.ErrData)
	}
	st, ok := m.status[token]
	if !ok {
		return model.PoolStatus{}, fmt.Errorf("%w: no pool status for %s", market.ErrData, token.Symbol)
	}
	return st, nil
}

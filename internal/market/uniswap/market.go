package uniswap

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defiBacktest/internal/broker"
	"defiBacktest/internal/clmath"
	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

// Config assembles a concentrated-liquidity market for one pool.
type Config struct {
	Name   string
	Pool   model.Pool
	Bars   []model.MinuteBar
	Prices model.PriceSeries
	Broker *broker.Broker
	Logger *zap.Logger
}

type positionKey struct {
	lower int32
	upper int32
}

// position holds simulated liquidity plus the fees accrued since the
// last collect.
type position struct {
	liquidity *big.Int
	fee0      decimal.Decimal
	fee1      decimal.Decimal
}

// Position is the read-only view of one open range.
type Position struct {
	LowerTick   int32
	UpperTick   int32
	Liquidity   *big.Int
	PendingFee0 decimal.Decimal
	PendingFee1 decimal.Decimal
}

// Market replays a minute-bar series for one pool and manages simulated
// liquidity positions against it.
type Market struct {
	name   string
	logger *zap.Logger
	broker *broker.Broker
	pool   model.Pool
	bars   []model.MinuteBar
	index  map[int64]int
	prices model.PriceSeries

	now       time.Time
	cur       *model.MinuteBar
	nowPrices model.Prices
	positions map[positionKey]*position
}

func New(cfg Config) (*Market, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("market name is empty")
	}
	if cfg.Broker == nil {
		return nil, fmt.Errorf("broker is nil")
	}
	if len(cfg.Bars) == 0 {
		return nil, fmt.Errorf("%w: no minute bars", market.ErrData)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bars := make([]model.MinuteBar, len(cfg.Bars))
	copy(bars, cfg.Bars)
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	index := make(map[int64]int, len(bars))
	for i, bar := range bars {
		index[bar.Timestamp.Unix()] = i
	}
	return &Market{
		name:      cfg.Name,
		logger:    logger,
		broker:    cfg.Broker,
		pool:      cfg.Pool,
		bars:      bars,
		index:     index,
		prices:    cfg.Prices,
		positions: make(map[positionKey]*position),
	}, nil
}

func (m *Market) Name() string { return m.name }

// SetMarketStatus advances the market to the bar at ts.
func (m *Market) SetMarketStatus(ts time.Time) error {
	idx, ok := m.index[ts.Unix()]
	if !ok {
		return fmt.Errorf("%w: no minute bar at %s", market.ErrData, ts.UTC())
	}
	prices, err := m.prices.At(ts)
	if err != nil {
		return fmt.Errorf("%w: %v", market.ErrData, err)
	}
	m.now = ts
	m.cur = &m.bars[idx]
	m.nowPrices = prices
	return nil
}

// Timestamps returns the sorted bar grid.
func (m *Market) Timestamps() []time.Time {
	out := make([]time.Time, len(m.bars))
	for i, bar := range m.bars {
		out[i] = bar.Timestamp
	}
	return out
}

// Update accrues one bar of swap fees onto every position whose range
// strictly brackets the bar's close tick, pro rata against the pool's
// real liquidity.
func (m *Market) Update(ts time.Time) error {
	if m.cur == nil {
		return fmt.Errorf("%w: market status not set", market.ErrData)
	}
	tick := m.cur.CloseTick
	feeRate := m.pool.FeeRate()
	in0 := decimal.NewFromBigInt(m.cur.InAmount0, -m.pool.Token0.Decimals)
	in1 := decimal.NewFromBigInt(m.cur.InAmount1, -m.pool.Token1.Decimals)
	for key, pos := range m.positions {
		if tick <= key.lower || tick >= key.upper {
			continue
		}
		share := liquidityShare(pos.liquidity, m.cur.CurrentLiquidity)
		if share.Sign() <= 0 {
			continue
		}
		pos.fee0 = pos.fee0.Add(in0.Mul(share).Mul(feeRate))
		pos.fee1 = pos.fee1.Add(in1.Mul(share).Mul(feeRate))
	}
	return nil
}

// currentSqrtPrice is the bar's ending Q64.96 sqrt price. Bars written
// before the column existed fall back to the close tick's lower bound.
func (m *Market) currentSqrtPrice() (*big.Int, error) {
	if m.cur.SqrtPriceX96 != nil && m.cur.SqrtPriceX96.Sign() > 0 {
		return m.cur.SqrtPriceX96, nil
	}
	return clmath.SqrtRatioAtTick(m.cur.CloseTick)
}

// liquidityShare is min(1, L / poolL). A pool bar with no liquidity
// caps the share at 1.
func liquidityShare(liquidity, poolLiquidity *big.Int) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if poolLiquidity == nil || poolLiquidity.Sign() <= 0 {
		return one
	}
	share := decimal.NewFromBigInt(liquidity, 0).DivRound(decimal.NewFromBigInt(poolLiquidity, 0), 18)
	return decimal.Min(one, share)
}

// NetValue values every open position at the current bar's price plus
// its pending fees.
func (m *Market) NetValue() (decimal.Decimal, error) {
	if m.cur == nil {
		return decimal.Decimal{}, fmt.Errorf("%w: market status not set", market.ErrData)
	}
	price0, err := m.nowPrices.Get(m.pool.Token0)
	if err != nil {
		return decimal.Decimal{}, err
	}
	price1, err := m.nowPrices.Get(m.pool.Token1)
	if err != nil {
		return decimal.Decimal{}, err
	}
	sqrtP, err := m.currentSqrtPrice()
	if err != nil {
		return decimal.Decimal{}, err
	}
	total := decimal.Zero
	for key, pos := range m.positions {
		amount0, amount1, err := clmath.AmountsFromLiquidity(
			sqrtP, key.lower, key.upper, pos.liquidity,
			m.pool.Token0.Decimals, m.pool.Token1.Decimals)
		if err != nil {
			return decimal.Decimal{}, err
		}
		total = total.Add(amount0.Add(pos.fee0).Mul(price0))
		total = total.Add(amount1.Add(pos.fee1).Mul(price1))
	}
	return total, nil
}

// Position returns the open position for a range, if any.
func (m *Market) Position(lower, upper int32) (Position, bool) {
	pos, ok := m.positions[positionKey{lower: lower, upper: upper}]
	if !ok {
		return Position{}, false
	}
	return Position{
		LowerTick:   lower,
		UpperTick:   upper,
		Liquidity:   new(big.Int).Set(pos.liquidity),
		PendingFee0: pos.fee0,
		PendingFee1: pos.fee1,
	}, true
}

// Positions lists the open positions sorted by range.
func (m *Market) Positions() []Position {
	keys := make([]positionKey, 0, len(m.positions))
	for key := range m.positions {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].lower != keys[j].lower {
			return keys[i].lower < keys[j].lower
		}
		return keys[i].upper < keys[j].upper
	})
	out := make([]Position, 0, len(keys))
	for _, key := range keys {
		view, _ := m.Position(key.lower, key.upper)
		out = append(out, view)
	}
	return out
}

func (m *Market) validateRange(lower, upper int32) error {
	if lower >= upper {
		return fmt.Errorf("%w: range [%d, %d) is empty", market.ErrPrecondition, lower, upper)
	}
	if lower < clmath.MinTick || upper > clmath.MaxTick {
		return fmt.Errorf("%w: range [%d, %d] outside tick bounds", market.ErrPrecondition, lower, upper)
	}
	spacing := m.pool.TickSpacing
	if spacing > 0 && (lower%spacing != 0 || upper%spacing != 0) {
		return fmt.Errorf("%w: ticks [%d, %d] not multiples of spacing %d", market.ErrPrecondition, lower, upper, spacing)
	}
	return nil
}

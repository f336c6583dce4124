package uniswap

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defiBacktest/internal/broker"
	"defiBacktest/internal/clmath"
	"defiBacktest/internal/market"
)

// AddLiquidity opens or grows a position. The engine computes the
// liquidity the two amounts support at the current price, then
// back-computes the amounts actually consumed; one input side may be
// partly unused.
func (m *Market) AddLiquidity(lower, upper int32, amount0, amount1 decimal.Decimal) error {
	if m.cur == nil {
		return fmt.Errorf("%w: market status not set", market.ErrData)
	}
	if err := m.validateRange(lower, upper); err != nil {
		return err
	}
	if amount0.Sign() < 0 || amount1.Sign() < 0 || (amount0.Sign() == 0 && amount1.Sign() == 0) {
		return fmt.Errorf("%w: amounts (%s, %s)", market.ErrPrecondition, amount0, amount1)
	}
	sqrtP, err := m.currentSqrtPrice()
	if err != nil {
		return err
	}
	liquidity, err := clmath.LiquidityFromAmounts(sqrtP, lower, upper, amount0, amount1,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return err
	}
	if liquidity.Sign() <= 0 {
		return fmt.Errorf("%w: amounts (%s, %s) support no liquidity in [%d, %d]",
			market.ErrPrecondition, amount0, amount1, lower, upper)
	}
	used0, used1, err := clmath.AmountsFromLiquidity(sqrtP, lower, upper, liquidity,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return err
	}

	if err := m.broker.SubtractFromBalance(m.pool.Token0, used0); err != nil {
		return err
	}
	if err := m.broker.SubtractFromBalance(m.pool.Token1, used1); err != nil {
		if addErr := m.broker.AddToBalance(m.pool.Token0, used0); addErr != nil {
			return addErr
		}
		return err
	}

	key := positionKey{lower: lower, upper: upper}
	pos, ok := m.positions[key]
	if !ok {
		pos = &position{liquidity: new(big.Int)}
		m.positions[key] = pos
	}
	pos.liquidity.Add(pos.liquidity, liquidity)

	m.logger.Debug("add liquidity",
		zap.String("market", m.name),
		zap.Int32("lower", lower),
		zap.Int32("upper", upper),
		zap.String("liquidity", liquidity.String()),
	)
	m.broker.Record(broker.AddLiquidityAction{
		Base:        broker.Base{Market: m.name, Timestamp: m.now},
		LowerTick:   lower,
		UpperTick:   upper,
		Amount0Used: used0,
		Amount1Used: used1,
		Liquidity:   new(big.Int).Set(liquidity),
	})
	return nil
}

// RemoveLiquidity closes a position at the current price, collecting
// any pending fees first, and returns the principal amounts credited.
func (m *Market) RemoveLiquidity(lower, upper int32) (decimal.Decimal, decimal.Decimal, error) {
	if m.cur == nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: market status not set", market.ErrData)
	}
	key := positionKey{lower: lower, upper: upper}
	pos, ok := m.positions[key]
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: no position [%d, %d]", market.ErrPrecondition, lower, upper)
	}
	if pos.fee0.Sign() > 0 || pos.fee1.Sign() > 0 {
		if _, _, err := m.CollectFee(lower, upper); err != nil {
			return decimal.Decimal{}, decimal.Decimal{}, err
		}
	}
	sqrtP, err := m.currentSqrtPrice()
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	amount0, amount1, err := clmath.AmountsFromLiquidity(sqrtP, lower, upper, pos.liquidity,
		m.pool.Token0.Decimals, m.pool.Token1.Decimals)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	if err := m.broker.AddToBalance(m.pool.Token0, amount0); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	if err := m.broker.AddToBalance(m.pool.Token1, amount1); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	delete(m.positions, key)

	m.logger.Debug("remove liquidity",
		zap.String("market", m.name),
		zap.Int32("lower", lower),
		zap.Int32("upper", upper),
		zap.String("amount0", amount0.String()),
		zap.String("amount1", amount1.String()),
	)
	m.broker.Record(broker.RemoveLiquidityAction{
		Base:      broker.Base{Market: m.name, Timestamp: m.now},
		LowerTick: lower,
		UpperTick: upper,
		Amount0:   amount0,
		Amount1:   amount1,
	})
	return amount0, amount1, nil
}

// CollectFee credits a position's pending fees to the broker and resets
// them.
func (m *Market) CollectFee(lower, upper int32) (decimal.Decimal, decimal.Decimal, error) {
	key := positionKey{lower: lower, upper: upper}
	pos, ok := m.positions[key]
	if !ok {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("%w: no position [%d, %d]", market.ErrPrecondition, lower, upper)
	}
	fee0, fee1 := pos.fee0, pos.fee1
	if err := m.broker.AddToBalance(m.pool.Token0, fee0); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	if err := m.broker.AddToBalance(m.pool.Token1, fee1); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	pos.fee0 = decimal.Zero
	pos.fee1 = decimal.Zero

	m.broker.Record(broker.CollectFeeAction{
		Base:      broker.Base{Market: m.name, Timestamp: m.now},
		LowerTick: lower,
		UpperTick: upper,
		Fee0:      fee0,
		Fee1:      fee1,
	})
	return fee0, fee1, nil
}

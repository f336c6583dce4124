package aave

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defiBacktest/internal/broker"
	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

// Supply moves amount from the broker into the lending pool. A supply
// merged into an existing entry must carry the same collateral flag.
func (m *Market) Supply(token model.Token, amount decimal.Decimal, collateral bool) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: supply amount %s", market.ErrPrecondition, amount)
	}
	res, err := m.reserve(token)
	if err != nil {
		return err
	}
	st, err := m.statusFor(token)
	if err != nil {
		return err
	}
	if collateral && !res.CanCollateral {
		return fmt.Errorf("%w: %s cannot be used as collateral", market.ErrPrecondition, token.Symbol)
	}
	if entry, ok := m.supplies[token]; ok && entry.collateral != collateral {
		return fmt.Errorf("%w: %s supply already exists with collateral=%v", market.ErrPrecondition, token.Symbol, entry.collateral)
	}
	if err := m.broker.SubtractFromBalance(token, amount); err != nil {
		return err
	}
	entry, ok := m.supplies[token]
	if !ok {
		entry = &supplyEntry{collateral: collateral}
		m.supplies[token] = entry
	}
	entry.base = entry.base.Add(amount.Div(st.LiquidityIndex))
	m.logger.Debug("supply",
		zap.String("market", m.name),
		zap.String("token", token.Symbol),
		zap.String("amount", amount.String()),
		zap.Bool("collateral", collateral),
	)
	m.broker.Record(broker.SupplyAction{
		Base:        broker.Base{Market: m.name, Timestamp: m.now},
		Token:       token,
		Amount:      amount,
		Collateral:  collateral,
		SupplyAfter: entry.base.Mul(st.LiquidityIndex),
	})
	m.invalidate()
	return nil
}

// Withdraw moves amount back to the broker. Withdrawing collateral is
// rolled back when it would push the health factor to 1 or below.
func (m *Market) Withdraw(token model.Token, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: withdraw amount %s", market.ErrPrecondition, amount)
	}
	entry, ok := m.supplies[token]
	if !ok {
		return fmt.Errorf("%w: no %s supply", market.ErrPrecondition, token.Symbol)
	}
	st, err := m.statusFor(token)
	if err != nil {
		return err
	}
	current := entry.base.Mul(st.LiquidityIndex)
	if amount.GreaterThan(current) {
		return fmt.Errorf("%w: withdraw %s exceeds supply %s %s", market.ErrPrecondition, amount, current, token.Symbol)
	}
	prevBase := entry.base
	entry.base = entry.base.Sub(amount.Div(st.LiquidityIndex))
	deleted := false
	if entry.base.LessThanOrEqual(dustFloor) {
		delete(m.supplies, token)
		deleted = true
	}
	if entry.collateral {
		m.invalidate()
		hf, finite, err := m.derivedHealth()
		if err != nil {
			m.restoreSupply(token, prevBase, entry.collateral)
			return err
		}
		if finite && hf.LessThanOrEqual(one) {
			m.restoreSupply(token, prevBase, entry.collateral)
			m.invalidate()
			return fmt.Errorf("%w: withdrawing %s %s leaves HF %s", market.ErrHealthFactor, amount, token.Symbol, hf)
		}
	}
	if err := m.broker.AddToBalance(token, amount); err != nil {
		m.restoreSupply(token, prevBase, entry.collateral)
		m.invalidate()
		return err
	}
	remaining := decimal.Zero
	if !deleted {
		remaining = entry.base.Mul(st.LiquidityIndex)
	}
	m.logger.Debug("withdraw",
		zap.String("market", m.name),
		zap.String("token", token.Symbol),
		zap.String("amount", amount.String()),
	)
	m.broker.Record(broker.WithdrawAction{
		Base:        broker.Base{Market: m.name, Timestamp: m.now},
		Token:       token,
		Amount:      amount,
		SupplyAfter: remaining,
	})
	m.invalidate()
	return nil
}

// WithdrawAll withdraws the full current supply balance and returns the
// amount moved.
func (m *Market) WithdrawAll(token model.Token) (decimal.Decimal, error) {
	amount, err := m.SupplyAmount(token)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if amount.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: no %s supply", market.ErrPrecondition, token.Symbol)
	}
	if err := m.Withdraw(token, amount); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

func (m *Market) restoreSupply(token model.Token, base decimal.Decimal, collateral bool) {
	m.supplies[token] = &supplyEntry{base: base, collateral: collateral}
}

// derivedHealth recomputes HF without going through the public accessor,
// used by mutators mid-flight after they invalidated the cache.
func (m *Market) derivedHealth() (decimal.Decimal, bool, error) {
	d, err := m.derivedValues()
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	return d.hf, d.hfFinite, nil
}

// ToggleCollateral flips the collateral flag on an existing supply.
// Switching off is rolled back when the health factor would drop to 1
// or below. Unchanged flags are a no-op.
func (m *Market) ToggleCollateral(token model.Token, collateral bool) error {
	entry, ok := m.supplies[token]
	if !ok {
		return fmt.Errorf("%w: no %s supply", market.ErrPrecondition, token.Symbol)
	}
	if entry.collateral == collateral {
		return nil
	}
	if collateral {
		res, err := m.reserve(token)
		if err != nil {
			return err
		}
		if !res.CanCollateral {
			return fmt.Errorf("%w: %s cannot be used as collateral", market.ErrPrecondition, token.Symbol)
		}
	}
	entry.collateral = collateral
	m.invalidate()
	if !collateral {
		hf, finite, err := m.derivedHealth()
		if err != nil {
			entry.collateral = true
			m.invalidate()
			return err
		}
		if finite && hf.LessThanOrEqual(one) {
			entry.collateral = true
			m.invalidate()
			return fmt.Errorf("%w: disabling %s collateral leaves HF %s", market.ErrHealthFactor, token.Symbol, hf)
		}
	}
	return nil
}

// Borrow draws amount from the pool against the user's collateral. The
// precondition chain runs in order and the first failure aborts.
func (m *Market) Borrow(token model.Token, amount decimal.Decimal, mode model.InterestMode) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: borrow amount %s", market.ErrPrecondition, amount)
	}
	res, err := m.reserve(token)
	if err != nil {
		return err
	}
	st, err := m.statusFor(token)
	if err != nil {
		return err
	}
	if !res.CanBorrow {
		return fmt.Errorf("%w: %s borrowing disabled", market.ErrPrecondition, token.Symbol)
	}
	d, err := m.derivedValues()
	if err != nil {
		return err
	}
	if d.collateralValue.Sign() <= 0 {
		return fmt.Errorf("%w: no collateral", market.ErrPrecondition)
	}
	if d.currentLTV.Sign() <= 0 {
		return fmt.Errorf("%w: current LTV is zero", market.ErrPrecondition)
	}
	if d.hfFinite && d.hf.LessThanOrEqual(one) {
		return fmt.Errorf("%w: HF %s before borrow", market.ErrHealthFactor, d.hf)
	}
	price, err := m.nowPrices.Get(token)
	if err != nil {
		return err
	}
	limit := d.collateralValue.Mul(d.currentLTV)
	if amount.Mul(price).Add(d.borrowsTotal).GreaterThan(limit) {
		return fmt.Errorf("%w: borrow of %s %s exceeds limit %s with debt %s",
			market.ErrPrecondition, amount, token.Symbol, limit, d.borrowsTotal)
	}
	if mode == model.ModeStable {
		if !res.CanBorrowStable {
			return fmt.Errorf("%w: %s stable borrowing disabled", market.ErrPrecondition, token.Symbol)
		}
		if entry, ok := m.supplies[token]; ok && entry.collateral {
			if res.LTV.Sign() != 0 && !amount.GreaterThan(m.broker.GetBalance(token)) {
				return fmt.Errorf("%w: %s is active collateral, stable borrow rejected", market.ErrPrecondition, token.Symbol)
			}
		}
	}
	key := borrowKey{token: token, mode: mode}
	entry, ok := m.borrows[key]
	if !ok {
		entry = &borrowEntry{}
		m.borrows[key] = entry
	}
	entry.base = entry.base.Add(amount.Div(st.VariableBorrowIndex))
	if err := m.broker.AddToBalance(token, amount); err != nil {
		entry.base = entry.base.Sub(amount.Div(st.VariableBorrowIndex))
		if entry.base.LessThanOrEqual(dustFloor) {
			delete(m.borrows, key)
		}
		return err
	}
	m.logger.Debug("borrow",
		zap.String("market", m.name),
		zap.String("token", token.Symbol),
		zap.String("amount", amount.String()),
		zap.String("mode", string(mode)),
	)
	m.broker.Record(broker.BorrowAction{
		Base:      broker.Base{Market: m.name, Timestamp: m.now},
		Token:     token,
		Mode:      mode,
		Amount:    amount,
		DebtAfter: entry.base.Mul(st.VariableBorrowIndex),
	})
	m.invalidate()
	return nil
}

// Repay pays amount of a debt back from the broker balance. The key is
// deleted when the residual base amount reaches the dust floor.
func (m *Market) Repay(token model.Token, amount decimal.Decimal, mode model.InterestMode) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: repay amount %s", market.ErrPrecondition, amount)
	}
	key := borrowKey{token: token, mode: mode}
	entry, ok := m.borrows[key]
	if !ok {
		return fmt.Errorf("%w: no %s %s debt", market.ErrPrecondition, mode, token.Symbol)
	}
	st, err := m.statusFor(token)
	if err != nil {
		return err
	}
	current := entry.base.Mul(st.VariableBorrowIndex)
	if amount.GreaterThan(current) {
		return fmt.Errorf("%w: repay %s exceeds debt %s %s", market.ErrPrecondition, amount, current, token.Symbol)
	}
	if err := m.broker.SubtractFromBalance(token, amount); err != nil {
		return err
	}
	entry.base = entry.base.Sub(amount.Div(st.VariableBorrowIndex))
	remaining := entry.base.Mul(st.VariableBorrowIndex)
	if entry.base.LessThanOrEqual(dustFloor) {
		delete(m.borrows, key)
		remaining = decimal.Zero
	}
	m.logger.Debug("repay",
		zap.String("market", m.name),
		zap.String("token", token.Symbol),
		zap.String("amount", amount.String()),
		zap.String("mode", string(mode)),
	)
	m.broker.Record(broker.RepayAction{
		Base:      broker.Base{Market: m.name, Timestamp: m.now},
		Token:     token,
		Mode:      mode,
		Amount:    amount,
		DebtAfter: remaining,
	})
	m.invalidate()
	return nil
}

// RepayAll repays the full current debt on one key and returns the
// amount moved.
func (m *Market) RepayAll(token model.Token, mode model.InterestMode) (decimal.Decimal, error) {
	amount, err := m.DebtAmount(token, mode)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if amount.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: no %s %s debt", market.ErrPrecondition, mode, token.Symbol)
	}
	if err := m.Repay(token, amount, mode); err != nil {
		return decimal.Decimal{}, err
	}
	return amount, nil
}

package aave

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defiBacktest/internal/broker"
	"defiBacktest/internal/model"
)

// Liquidations under this health factor repay the whole debt; above it
// the close factor limits one pass to half.
var closeFactorThreshold = decimal.RequireFromString("0.95")

// CheckLiquidation runs the liquidation loop for one bar. With
// probability 1-p the check is skipped entirely, modeling liquidator
// latency. While HF < 1 it repays the largest debt against the largest
// eligible collateral, marking each debt token as tried so the loop
// terminates even when no pass can restore health.
func (m *Market) CheckLiquidation(ts time.Time) error {
	if m.rng.Float64() >= m.liqProb {
		return nil
	}
	used := make(map[model.Token]bool)
	for {
		d, err := m.derivedValues()
		if err != nil {
			return err
		}
		if !d.hfFinite || d.hf.GreaterThanOrEqual(one) {
			return nil
		}
		debtToken, ok := pickDebtToken(d, used)
		if !ok {
			m.logger.Warn("liquidation exhausted all debt tokens",
				zap.String("market", m.name),
				zap.String("health_factor", d.hf.String()),
			)
			return nil
		}
		collToken, ok := m.pickCollateral(d)
		if !ok {
			// No seizable collateral for this pass; mark the debt
			// tried and move on.
			used[debtToken] = true
			continue
		}
		if err := m.liquidateOnce(ts, d, debtToken, collToken); err != nil {
			return err
		}
		used[debtToken] = true
	}
}

// pickDebtToken groups debt value by token and returns the largest one
// not yet tried this bar. Ties break on symbol for determinism.
func pickDebtToken(d *derived, used map[model.Token]bool) (model.Token, bool) {
	totals := make(map[model.Token]decimal.Decimal)
	for key, value := range d.borrowValues {
		if used[key.token] {
			continue
		}
		totals[key.token] = totals[key.token].Add(value)
	}
	var best model.Token
	bestValue := decimal.Zero
	found := false
	for token, value := range totals {
		if value.Sign() <= 0 {
			continue
		}
		if !found || value.GreaterThan(bestValue) ||
			(value.Equal(bestValue) && token.Symbol < best.Symbol) {
			best, bestValue, found = token, value, true
		}
	}
	return best, found
}

// pickCollateral returns the collateral-flagged supply with the largest
// value whose reserve has a non-zero liquidation threshold.
func (m *Market) pickCollateral(d *derived) (model.Token, bool) {
	var best model.Token
	bestValue := decimal.Zero
	found := false
	for token, value := range d.supplyValues {
		entry, ok := m.supplies[token]
		if !ok || !entry.collateral || value.Sign() <= 0 {
			continue
		}
		res, ok := m.reserves[token]
		if !ok || res.LiqThreshold.Sign() <= 0 {
			continue
		}
		if !found || value.GreaterThan(bestValue) ||
			(value.Equal(bestValue) && token.Symbol < best.Symbol) {
			best, bestValue, found = token, value, true
		}
	}
	return best, found
}

// liquidateOnce executes one liquidation pass against a chosen debt and
// collateral token, then drops the cache.
func (m *Market) liquidateOnce(ts time.Time, d *derived, debtToken, collToken model.Token) error {
	debtStatus, err := m.statusFor(debtToken)
	if err != nil {
		return err
	}
	collStatus, err := m.statusFor(collToken)
	if err != nil {
		return err
	}
	debtPrice, err := m.nowPrices.Get(debtToken)
	if err != nil {
		return err
	}
	collPrice, err := m.nowPrices.Get(collToken)
	if err != nil {
		return err
	}
	collReserve, err := m.reserve(collToken)
	if err != nil {
		return err
	}

	closeFactor := one
	if d.hf.GreaterThan(closeFactorThreshold) {
		closeFactor = half
	}
	varKey := borrowKey{token: debtToken, mode: model.ModeVariable}
	stableKey := borrowKey{token: debtToken, mode: model.ModeStable}
	debtTotal := decimal.Zero
	if entry, ok := m.borrows[varKey]; ok {
		debtTotal = debtTotal.Add(entry.base.Mul(debtStatus.VariableBorrowIndex))
	}
	if entry, ok := m.borrows[stableKey]; ok {
		debtTotal = debtTotal.Add(entry.base.Mul(debtStatus.VariableBorrowIndex))
	}
	debtToCover := decimal.Min(debtTotal, debtTotal.Mul(closeFactor))

	collEntry, ok := m.supplies[collToken]
	if !ok {
		return fmt.Errorf("collateral %s vanished mid-liquidation", collToken.Symbol)
	}
	collBalance := collEntry.base.Mul(collStatus.LiquidityIndex)
	payout := debtToCover.Mul(debtPrice).Div(collPrice).Mul(one.Sub(collReserve.LiqBonus))
	if payout.GreaterThan(collBalance) {
		payout = collBalance
		debtToCover = collBalance.Mul(collPrice).Div(debtPrice)
	}

	collEntry.base = collEntry.base.Sub(payout.Div(collStatus.LiquidityIndex))
	if collEntry.base.LessThanOrEqual(dustFloor) {
		delete(m.supplies, collToken)
	}
	remainder := debtToCover
	for _, key := range []borrowKey{varKey, stableKey} {
		if remainder.Sign() <= 0 {
			break
		}
		entry, ok := m.borrows[key]
		if !ok {
			continue
		}
		amount := entry.base.Mul(debtStatus.VariableBorrowIndex)
		covered := decimal.Min(amount, remainder)
		entry.base = entry.base.Sub(covered.Div(debtStatus.VariableBorrowIndex))
		if entry.base.LessThanOrEqual(dustFloor) {
			delete(m.borrows, key)
		}
		remainder = remainder.Sub(covered)
	}
	m.invalidate()

	hfAfter := decimal.Zero
	if after, err := m.derivedValues(); err == nil && after.hfFinite {
		hfAfter = after.hf
	}
	m.logger.Info("liquidation",
		zap.String("market", m.name),
		zap.String("debt_token", debtToken.Symbol),
		zap.String("collateral_token", collToken.Symbol),
		zap.String("debt_covered", debtToCover.String()),
		zap.String("collateral_seized", payout.String()),
		zap.String("health_factor_after", hfAfter.String()),
	)
	m.broker.Record(broker.LiquidationAction{
		Base:              broker.Base{Market: m.name, Timestamp: ts},
		DebtToken:         debtToken,
		CollateralToken:   collToken,
		DebtCovered:       debtToCover,
		CollateralSeized:  payout,
		HealthFactorAfter: hfAfter,
	})
	return nil
}

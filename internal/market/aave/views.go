package aave

import (
	"math"

	"github.com/shopspring/decimal"

	"defiBacktest/internal/model"
)

const secondsPerYear = 31536000

// derived caches the valuation views of one bar. It is rebuilt lazily
// and dropped on set_market_status, on every successful mutator, and
// after each liquidation iteration.
type derived struct {
	supplyValues map[model.Token]decimal.Decimal
	borrowValues map[borrowKey]decimal.Decimal

	suppliesTotal     decimal.Decimal
	borrowsTotal      decimal.Decimal
	collateralValue   decimal.Decimal
	weightedThreshold decimal.Decimal
	currentLTV        decimal.Decimal
	liqThresholdAvg   decimal.Decimal

	// hf is meaningful only when hfFinite; with no debt the health
	// factor is treated as infinite and every HF check passes.
	hf       decimal.Decimal
	hfFinite bool
}

func (m *Market) derivedValues() (*derived, error) {
	if m.cache != nil {
		return m.cache, nil
	}
	d := &derived{
		supplyValues: make(map[model.Token]decimal.Decimal, len(m.supplies)),
		borrowValues: make(map[borrowKey]decimal.Decimal, len(m.borrows)),
	}
	weightedLTV := decimal.Zero
	for token, entry := range m.supplies {
		st, err := m.statusFor(token)
		if err != nil {
			return nil, err
		}
		price, err := m.nowPrices.Get(token)
		if err != nil {
			return nil, err
		}
		value := entry.base.Mul(st.LiquidityIndex).Mul(price)
		d.supplyValues[token] = value
		d.suppliesTotal = d.suppliesTotal.Add(value)
		if !entry.collateral {
			continue
		}
		res, err := m.reserve(token)
		if err != nil {
			return nil, err
		}
		d.collateralValue = d.collateralValue.Add(value)
		weightedLTV = weightedLTV.Add(value.Mul(res.LTV))
		d.weightedThreshold = d.weightedThreshold.Add(value.Mul(res.LiqThreshold))
	}
	if d.collateralValue.Sign() > 0 {
		d.currentLTV = weightedLTV.Div(d.collateralValue)
		d.liqThresholdAvg = d.weightedThreshold.Div(d.collateralValue)
	}
	for key, entry := range m.borrows {
		st, err := m.statusFor(key.token)
		if err != nil {
			return nil, err
		}
		price, err := m.nowPrices.Get(key.token)
		if err != nil {
			return nil, err
		}
		value := entry.base.Mul(st.VariableBorrowIndex).Mul(price)
		d.borrowValues[key] = value
		d.borrowsTotal = d.borrowsTotal.Add(value)
	}
	if d.borrowsTotal.Sign() > 0 {
		d.hf = d.weightedThreshold.Div(d.borrowsTotal)
		d.hfFinite = true
	}
	m.cache = d
	return d, nil
}

// HealthFactor returns the health factor and whether it is finite. With
// no outstanding debt the factor is infinite and finite is false.
func (m *Market) HealthFactor() (decimal.Decimal, bool, error) {
	d, err := m.derivedValues()
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	return d.hf, d.hfFinite, nil
}

// CurrentLTV is the collateral-value-weighted loan-to-value limit.
func (m *Market) CurrentLTV() (decimal.Decimal, error) {
	d, err := m.derivedValues()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.currentLTV, nil
}

// CollateralValue is the USD value of supplies flagged as collateral.
func (m *Market) CollateralValue() (decimal.Decimal, error) {
	d, err := m.derivedValues()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.collateralValue, nil
}

// TotalSupplyValue is the USD value of all supplies.
func (m *Market) TotalSupplyValue() (decimal.Decimal, error) {
	d, err := m.derivedValues()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.suppliesTotal, nil
}

// TotalDebtValue is the USD value of all borrows.
func (m *Market) TotalDebtValue() (decimal.Decimal, error) {
	d, err := m.derivedValues()
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.borrowsTotal, nil
}

// SupplyAmount is the wall-clock supply balance for a token, zero when
// no entry exists.
func (m *Market) SupplyAmount(token model.Token) (decimal.Decimal, error) {
	entry, ok := m.supplies[token]
	if !ok {
		return decimal.Zero, nil
	}
	st, err := m.statusFor(token)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return entry.base.Mul(st.LiquidityIndex), nil
}

// DebtAmount is the wall-clock debt balance for a (token, mode) key,
// zero when no entry exists.
func (m *Market) DebtAmount(token model.Token, mode model.InterestMode) (decimal.Decimal, error) {
	entry, ok := m.borrows[borrowKey{token: token, mode: mode}]
	if !ok {
		return decimal.Zero, nil
	}
	st, err := m.statusFor(token)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return entry.base.Mul(st.VariableBorrowIndex), nil
}

// compoundAPY turns a nominal annual rate into the realized annual
// yield under per-second compounding. APYs are reporting statistics, so
// float64 precision is enough here.
func compoundAPY(rate decimal.Decimal) float64 {
	r, _ := rate.Float64()
	return math.Pow(1+r/secondsPerYear, secondsPerYear) - 1
}

// SupplyAPY is the annualized yield of one reserve at the current bar.
func (m *Market) SupplyAPY(token model.Token) (float64, error) {
	st, err := m.statusFor(token)
	if err != nil {
		return 0, err
	}
	return compoundAPY(st.LiquidityRate), nil
}

// BorrowAPY is the annualized cost of one reserve's debt at the current
// bar, for the given rate mode.
func (m *Market) BorrowAPY(token model.Token, mode model.InterestMode) (float64, error) {
	st, err := m.statusFor(token)
	if err != nil {
		return 0, err
	}
	if mode == model.ModeStable {
		return compoundAPY(st.StableBorrowRate), nil
	}
	return compoundAPY(st.VariableBorrowRate), nil
}

// PortfolioSupplyAPY is the value-weighted supply APY across positions.
// Returns 0 when there are no supplies.
func (m *Market) PortfolioSupplyAPY() (float64, error) {
	d, err := m.derivedValues()
	if err != nil {
		return 0, err
	}
	if d.suppliesTotal.Sign() == 0 {
		return 0, nil
	}
	weighted := 0.0
	for token, value := range d.supplyValues {
		apy, err := m.SupplyAPY(token)
		if err != nil {
			return 0, err
		}
		v, _ := value.Float64()
		weighted += v * apy
	}
	total, _ := d.suppliesTotal.Float64()
	return weighted / total, nil
}

// PortfolioBorrowAPY is the value-weighted borrow APY across debts.
// Returns 0 when there are no borrows.
func (m *Market) PortfolioBorrowAPY() (float64, error) {
	d, err := m.derivedValues()
	if err != nil {
		return 0, err
	}
	if d.borrowsTotal.Sign() == 0 {
		return 0, nil
	}
	weighted := 0.0
	for key, value := range d.borrowValues {
		apy, err := m.BorrowAPY(key.token, key.mode)
		if err != nil {
			return 0, err
		}
		v, _ := value.Float64()
		weighted += v * apy
	}
	total, _ := d.borrowsTotal.Float64()
	return weighted / total, nil
}

// NetAPY is the annualized yield on net position value. A zero net value
// with non-zero flows yields +Inf; with no positions at all it yields 0.
func (m *Market) NetAPY() (float64, error) {
	d, err := m.derivedValues()
	if err != nil {
		return 0, err
	}
	supplyAPY, err := m.PortfolioSupplyAPY()
	if err != nil {
		return 0, err
	}
	borrowAPY, err := m.PortfolioBorrowAPY()
	if err != nil {
		return 0, err
	}
	supplies, _ := d.suppliesTotal.Float64()
	borrows, _ := d.borrowsTotal.Float64()
	numerator := supplies*supplyAPY - borrows*borrowAPY
	net := supplies - borrows
	if net == 0 {
		if numerator == 0 {
			return 0, nil
		}
		return math.Inf(1), nil
	}
	return numerator / net, nil
}

package broker

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"defiBacktest/internal/market"
	"defiBacktest/internal/model"
)

// Balance subtractions that would cross zero by no more than this
// fraction of the operand drain to zero instead of failing; it absorbs
// decimal dust produced by upstream conversions.
var dustTolerance = decimal.New(1, -4)

// Broker keeps the free token balances, the registered markets, and the
// append-only action history of one run.
type Broker struct {
	logger   *zap.Logger
	balances map[model.Token]decimal.Decimal
	markets  map[string]market.Market
	order    []string
	history  []Action
}

func New(initial map[model.Token]decimal.Decimal, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	balances := make(map[model.Token]decimal.Decimal, len(initial))
	for token, amount := range initial {
		balances[token] = amount
	}
	return &Broker{
		logger:   logger,
		balances: balances,
		markets:  make(map[string]market.Market),
	}
}

// AddMarket registers a market under its name.
func (b *Broker) AddMarket(m market.Market) error {
	name := m.Name()
	if name == "" {
		return fmt.Errorf("market name is empty")
	}
	if _, ok := b.markets[name]; ok {
		return fmt.Errorf("market %s already registered", name)
	}
	b.markets[name] = m
	b.order = append(b.order, name)
	return nil
}

// Market returns a registered market by name.
func (b *Broker) Market(name string) (market.Market, bool) {
	m, ok := b.markets[name]
	return m, ok
}

// Markets returns the registered markets in registration order.
func (b *Broker) Markets() []market.Market {
	out := make([]market.Market, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.markets[name])
	}
	return out
}

// GetBalance returns the free balance for a token, zero when absent.
func (b *Broker) GetBalance(token model.Token) decimal.Decimal {
	return b.balances[token]
}

// SetBalance overwrites a token balance.
func (b *Broker) SetBalance(token model.Token, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: set %s to %s", market.ErrInsufficientBalance, token, amount)
	}
	b.balances[token] = amount
	return nil
}

// AddToBalance credits a token balance.
func (b *Broker) AddToBalance(token model.Token, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: credit of %s %s", market.ErrInsufficientBalance, amount, token)
	}
	b.balances[token] = b.balances[token].Add(amount)
	return nil
}

// SubtractFromBalance debits a token balance. A deficit within the dust
// tolerance of the operand drains the balance to zero.
func (b *Broker) SubtractFromBalance(token model.Token, amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: debit of %s %s", market.ErrInsufficientBalance, amount, token)
	}
	balance := b.balances[token]
	remaining := balance.Sub(amount)
	if remaining.Sign() < 0 {
		deficit := remaining.Neg()
		if deficit.GreaterThan(amount.Mul(dustTolerance)) {
			return fmt.Errorf("%w: %s balance %s, debit %s", market.ErrInsufficientBalance, token, balance, amount)
		}
		b.logger.Debug("balance drained to zero",
			zap.String("token", token.Symbol),
			zap.String("deficit", deficit.String()),
		)
		remaining = decimal.Zero
	}
	b.balances[token] = remaining
	return nil
}

// Balances returns a copy of the free balances.
func (b *Broker) Balances() map[model.Token]decimal.Decimal {
	out := make(map[model.Token]decimal.Decimal, len(b.balances))
	for token, amount := range b.balances {
		out[token] = amount
	}
	return out
}

// Record appends an action to the history. Markets call it after every
// successful mutation.
func (b *Broker) Record(action Action) {
	b.history = append(b.history, action)
}

// History returns the recorded actions in order.
func (b *Broker) History() []Action {
	return b.history
}

// NetWorth values the free balances plus every market's net value.
func (b *Broker) NetWorth(prices model.Prices) (decimal.Decimal, error) {
	total := decimal.Zero
	for token, amount := range b.balances {
		if amount.Sign() == 0 {
			continue
		}
		price, err := prices.Get(token)
		if err != nil {
			return decimal.Decimal{}, err
		}
		total = total.Add(amount.Mul(price))
	}
	for _, name := range b.order {
		value, err := b.markets[name].NetValue()
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("market %s net value: %w", name, err)
		}
		total = total.Add(value)
	}
	return total, nil
}

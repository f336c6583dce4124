package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market is one simulated venue driven by the replay loop. Each market
// owns its bar data and prices; SetMarketStatus advances it to a grid
// timestamp and invalidates any derived-value caches.
type Market interface {
	Name() string
	SetMarketStatus(ts time.Time) error
	// Update runs end-of-bar work after the strategy has acted. Lending
	// markets treat it as a no-op; CL markets accrue fees here.
	Update(ts time.Time) error
	// NetValue is the USD value of everything the market holds for the
	// user at the current bar.
	NetValue() (decimal.Decimal, error)
	// Timestamps is the sorted bar grid the market has data for.
	Timestamps() []time.Time
}

// LiquidationChecker is implemented by markets subject to liquidation.
// The replay loop invokes it after every status update, before the
// strategy runs.
type LiquidationChecker interface {
	CheckLiquidation(ts time.Time) error
}

package engine

import (
	"time"

	"defiBacktest/internal/broker"
)

// Strategy reacts to each replayed bar. OnBar runs after market status
// updates and liquidation checks; it acts through the broker's markets
// and must return an error to abort the run.
type Strategy interface {
	Name() string
	OnBar(ts time.Time, b *broker.Broker) error
}

// HoldStrategy takes no actions; it measures what the initial portfolio
// does on its own.
type HoldStrategy struct{}

func (HoldStrategy) Name() string { return "hold" }

func (HoldStrategy) OnBar(ts time.Time, b *broker.Broker) error { return nil }

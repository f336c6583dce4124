package bars

import (
	"fmt"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"defiBacktest/internal/model"
)

// Aggregator groups decoded swap events into a gap-free grid of minute
// bars. The first and last calendar day of an ingest are dropped because
// they are likely incomplete.
type Aggregator struct {
	logger *zap.Logger
}

func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger}
}

// Aggregate builds minute bars from pool events. Non-swap events are
// ignored; the output is sorted by timestamp and forward-filled, with
// leading minutes that have no prior reference dropped.
func (a *Aggregator) Aggregate(events []model.PoolEvent) ([]model.MinuteBar, error) {
	swaps := make([]model.PoolEvent, 0, len(events))
	for _, event := range events {
		if event.Kind != model.EventSwap {
			continue
		}
		if _, ok := event.Decoded.(model.SwapEventData); !ok {
			return nil, fmt.Errorf("swap event with %T payload", event.Decoded)
		}
		swaps = append(swaps, event)
	}
	if len(swaps) == 0 {
		return nil, nil
	}

	sort.SliceStable(swaps, func(i, j int) bool {
		if swaps[i].Timestamp.Equal(swaps[j].Timestamp) {
			if swaps[i].BlockNumber == swaps[j].BlockNumber {
				return swaps[i].LogIndex < swaps[j].LogIndex
			}
			return swaps[i].BlockNumber < swaps[j].BlockNumber
		}
		return swaps[i].Timestamp.Before(swaps[j].Timestamp)
	})

	firstDay := dayStart(swaps[0].Timestamp)
	lastDay := dayStart(swaps[len(swaps)-1].Timestamp)
	if !firstDay.Before(lastDay) {
		a.logger.Warn("ingest spans less than three days, nothing to emit",
			zap.Time("first_day", firstDay),
			zap.Time("last_day", lastDay),
		)
		return nil, nil
	}

	byMinute := make(map[int64]*model.MinuteBar)
	var minutes []int64
	var total, kept int
	for _, event := range swaps {
		total++
		day := dayStart(event.Timestamp)
		if day.Equal(firstDay) || day.Equal(lastDay) {
			continue
		}
		kept++

		swap := event.Decoded.(model.SwapEventData)
		minute := event.Timestamp.Truncate(time.Minute).Unix()
		bar, ok := byMinute[minute]
		if !ok {
			bar = &model.MinuteBar{
				Timestamp:        time.Unix(minute, 0).UTC(),
				NetAmount0:       big.NewInt(0),
				NetAmount1:       big.NewInt(0),
				OpenTick:         swap.Tick,
				CloseTick:        swap.Tick,
				LowestTick:       swap.Tick,
				HighestTick:      swap.Tick,
				InAmount0:        big.NewInt(0),
				InAmount1:        big.NewInt(0),
				SqrtPriceX96:     big.NewInt(0),
				CurrentLiquidity: big.NewInt(0),
			}
			byMinute[minute] = bar
			minutes = append(minutes, minute)
		}

		bar.CloseTick = swap.Tick
		if swap.Tick < bar.LowestTick {
			bar.LowestTick = swap.Tick
		}
		if swap.Tick > bar.HighestTick {
			bar.HighestTick = swap.Tick
		}
		bar.NetAmount0.Add(bar.NetAmount0, swap.Amount0)
		bar.NetAmount1.Add(bar.NetAmount1, swap.Amount1)
		if swap.Amount0.Sign() > 0 {
			bar.InAmount0.Add(bar.InAmount0, swap.Amount0)
		}
		if swap.Amount1.Sign() > 0 {
			bar.InAmount1.Add(bar.InAmount1, swap.Amount1)
		}
		bar.SqrtPriceX96.Set(swap.SqrtPriceX96)
		bar.CurrentLiquidity.Set(swap.Liquidity)
	}

	if len(minutes) == 0 {
		return nil, nil
	}
	sort.Slice(minutes, func(i, j int) bool { return minutes[i] < minutes[j] })

	gridEnd := lastDay.Add(-time.Minute).Unix()
	out := make([]model.MinuteBar, 0, int(gridEnd-minutes[0])/60+1)
	var prev *model.MinuteBar
	for minute := minutes[0]; minute <= gridEnd; minute += 60 {
		bar, ok := byMinute[minute]
		if !ok {
			// No swap this minute: inherit tick fields and liquidity.
			filled := model.MinuteBar{
				Timestamp:        time.Unix(minute, 0).UTC(),
				NetAmount0:       big.NewInt(0),
				NetAmount1:       big.NewInt(0),
				OpenTick:         prev.CloseTick,
				CloseTick:        prev.CloseTick,
				LowestTick:       prev.CloseTick,
				HighestTick:      prev.CloseTick,
				InAmount0:        big.NewInt(0),
				InAmount1:        big.NewInt(0),
				SqrtPriceX96:     new(big.Int).Set(prev.SqrtPriceX96),
				CurrentLiquidity: new(big.Int).Set(prev.CurrentLiquidity),
			}
			out = append(out, filled)
			prev = &out[len(out)-1]
			continue
		}
		out = append(out, *bar)
		prev = &out[len(out)-1]
	}

	a.logger.Info("aggregate complete",
		zap.Int("swaps", total),
		zap.Int("kept", kept),
		zap.Int("bars", len(out)),
	)
	return out, nil
}

func dayStart(ts time.Time) time.Time {
	return ts.UTC().Truncate(24 * time.Hour)
}

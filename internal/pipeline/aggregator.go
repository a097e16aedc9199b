package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// PositionAggregator groups chronologically ordered trades into positions:
// maximal contiguous runs with no flat period longer than the configured gap.
type PositionAggregator struct {
	logger  ports.Logger
	flatGap time.Duration
}

// NewPositionAggregator creates an aggregator. flatGap is the flat duration
// after which a closed position does not absorb the next trade; zero means
// any flat period starts a new position.
func NewPositionAggregator(logger ports.Logger, flatGap time.Duration) (*PositionAggregator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for PositionAggregator")
	}
	if flatGap < 0 {
		return nil, fmt.Errorf("flatGap cannot be negative")
	}
	return &PositionAggregator{logger: logger, flatGap: flatGap}, nil
}

// Aggregate computes one position per contiguous trade run. Trades are
// enriched in place with their currency P&L as a side effect of multiplier
// resolution. Instruments without a configured multiplier are skipped and
// reported in the returned error slice; the rest of the batch proceeds.
func (a *PositionAggregator) Aggregate(ctx context.Context, trades []*domain.Trade, table ports.MultiplierTable) ([]*domain.Position, []error) {
	type batchKey struct{ instrument, account string }
	batches := NewOrderedGroups[batchKey, *domain.Trade]()
	for _, t := range trades {
		batches.Add(batchKey{t.Instrument, t.Account}, t)
	}

	var (
		positions []*domain.Position
		failures  []error
	)
	for _, key := range batches.Keys() {
		multiplier, err := table.Multiplier(key.instrument)
		if err != nil {
			a.logger.Warn(ctx, "Skipping instrument without configured multiplier", map[string]interface{}{
				"instrument": key.instrument,
				"account":    key.account,
			})
			failures = append(failures, err)
			continue
		}
		for _, run := range a.splitRuns(batches.Group(key)) {
			positions = append(positions, buildPosition(run, multiplier))
		}
	}
	return positions, failures
}

// splitRuns cuts a chronological trade sequence wherever the account stayed
// flat for longer than the configured gap. An open trade never ends a run.
func (a *PositionAggregator) splitRuns(trades []*domain.Trade) [][]*domain.Trade {
	var (
		runs    [][]*domain.Trade
		current []*domain.Trade
	)
	for _, t := range trades {
		if len(current) > 0 {
			prev := current[len(current)-1]
			if !prev.IsOpen() && t.EntryTime.Sub(prev.ExitTime) > a.flatGap {
				runs = append(runs, current)
				current = nil
			}
		}
		current = append(current, t)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

func buildPosition(run []*domain.Trade, multiplier decimal.Decimal) *domain.Position {
	first := run[0]
	pos := &domain.Position{
		Instrument: first.Instrument,
		Account:    first.Account,
		Side:       first.Side,
		StartTime:  first.EntryTime,
		PointsPNL:  decimal.Zero,
		Status:     domain.StatusActive,
	}
	open := false
	for _, t := range run {
		// Trades from one builder pass never overlap, so the maximum
		// concurrent exposure is the largest running quantity any single
		// trade reached. Total entry quantity overstates it when a trade
		// shrinks before extending again.
		if t.PeakQuantity > pos.Quantity {
			pos.Quantity = t.PeakQuantity
		}
		if t.IsOpen() {
			open = true
			continue
		}
		pos.PointsPNL = pos.PointsPNL.Add(t.PointsPNL)
		t.CurrencyPNL = t.PointsPNL.Mul(multiplier)
		if t.ExitTime.After(pos.EndTime) {
			pos.EndTime = t.ExitTime
		}
	}
	if open {
		pos.EndTime = time.Time{}
	}
	pos.CurrencyPNL = pos.PointsPNL.Mul(multiplier)
	return pos
}

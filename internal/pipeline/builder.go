package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// TradeBuilder converts a deduplicated, chronologically sorted execution
// sequence for one instrument+account into entry-to-exit trades.
//
// It runs an explicit state machine over a work queue: Flat until an
// execution moves the running quantity away from zero, Open until it returns
// to exactly zero. An execution that would cross zero is split at the
// crossing price and its remainder pushed back onto the queue as a synthetic
// fill, so each loop iteration handles at most one state transition.
type TradeBuilder struct {
	logger ports.Logger
}

// NewTradeBuilder creates a trade builder.
func NewTradeBuilder(logger ports.Logger) (*TradeBuilder, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for TradeBuilder")
	}
	return &TradeBuilder{logger: logger}, nil
}

// openTrade accumulates the currently open trade's fills. Entry and exit
// sides are tracked as cost sums so VWAP prices and realized points fall out
// exactly, without per-fill division.
type openTrade struct {
	side       domain.MarketSide
	running    int64 // absolute running quantity
	peak       int64 // largest running quantity seen; a reduce-then-extend keeps entryQty above it
	entryQty   int64
	entryCost  decimal.Decimal // sum of price*qty over entry-side fills
	exitQty    int64
	exitCost   decimal.Decimal // sum of price*qty over exit-side fills
	commission decimal.Decimal
	entryTime  time.Time
	exitTime   time.Time
}

// Build produces the ordered trade sequence for one batch. The final trade
// may remain open (exit fields zero) when the running quantity does not
// return to zero by the end of input.
func (b *TradeBuilder) Build(ctx context.Context, execs []*domain.Execution) ([]*domain.Trade, error) {
	queue := make([]*domain.Execution, len(execs))
	copy(queue, execs)

	var (
		trades   []*domain.Trade
		open     *openTrade
		lastTime time.Time
	)

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if err := ValidateExecution(e); err != nil {
			return nil, err
		}
		if e.Time.Before(lastTime) {
			return nil, &ports.InconsistentSequenceError{
				Instrument: e.Instrument,
				Account:    e.Account,
				Reason: fmt.Sprintf("execution at %s precedes prior execution at %s",
					e.Time.Format(time.RFC3339), lastTime.Format(time.RFC3339)),
			}
		}
		lastTime = e.Time

		if open == nil {
			open = newOpenTrade(e)
			continue
		}

		if sameDirection(open.side, e.Side) {
			// Extension: re-weights the entry VWAP, does not close anything.
			open.running += e.Quantity
			if open.running > open.peak {
				open.peak = open.running
			}
			open.entryQty += e.Quantity
			open.entryCost = open.entryCost.Add(e.Price.Mul(decimal.NewFromInt(e.Quantity)))
			open.commission = open.commission.Add(e.Commission)
			continue
		}

		if e.Quantity > open.running {
			// Crossing execution: split at the crossing price. The closing leg
			// takes exactly the open quantity; the remainder re-enters the
			// queue as a synthetic fill with the same time and price, so no
			// quantity is lost to rounding.
			closeLeg, remainder := splitExecution(e, open.running)
			queue = append([]*domain.Execution{remainder}, queue...)
			e = closeLeg
		}

		open.running -= e.Quantity
		open.exitQty += e.Quantity
		open.exitCost = open.exitCost.Add(e.Price.Mul(decimal.NewFromInt(e.Quantity)))
		open.commission = open.commission.Add(e.Commission)
		if open.running == 0 {
			open.exitTime = e.Time
			trades = append(trades, finalize(open, e.Instrument, e.Account))
			open = nil
		}
	}

	if open != nil {
		last := execs[len(execs)-1]
		trades = append(trades, finalize(open, last.Instrument, last.Account))
	}
	return trades, nil
}

func newOpenTrade(e *domain.Execution) *openTrade {
	side := domain.Long
	if e.Side == domain.Sell {
		side = domain.Short
	}
	return &openTrade{
		side:       side,
		running:    e.Quantity,
		peak:       e.Quantity,
		entryQty:   e.Quantity,
		entryCost:  e.Price.Mul(decimal.NewFromInt(e.Quantity)),
		commission: e.Commission,
		entryTime:  e.Time,
	}
}

func sameDirection(side domain.MarketSide, orderSide domain.OrderSide) bool {
	return (side == domain.Long) == (orderSide == domain.Buy)
}

// splitExecution divides a crossing execution into a leg that exactly closes
// the open trade and a remainder that opens the next one. Commission is
// allocated proportionally with the rounding remainder assigned to the second
// leg, so the two legs always sum back to the original.
func splitExecution(e *domain.Execution, closeQty int64) (closeLeg, remainder *domain.Execution) {
	c := *e
	r := *e
	c.Quantity = closeQty
	r.Quantity = e.Quantity - closeQty
	c.Commission = e.Commission.
		Mul(decimal.NewFromInt(closeQty)).
		Div(decimal.NewFromInt(e.Quantity)).
		RoundBank(8)
	r.Commission = e.Commission.Sub(c.Commission)
	r.BrokerExecID = e.BrokerExecID + "/flip"
	return &c, &r
}

func finalize(o *openTrade, instrument, account string) *domain.Trade {
	t := &domain.Trade{
		Instrument:     instrument,
		Account:        account,
		Side:           o.side,
		Quantity:       o.entryQty,
		ClosedQuantity: o.exitQty,
		PeakQuantity:   o.peak,
		EntryTime:      o.entryTime,
		ExitTime:       o.exitTime,
		EntryPrice:     o.entryCost.Div(decimal.NewFromInt(o.entryQty)),
		Commission:     o.commission,
		Status:         domain.StatusActive,
	}
	if o.exitQty > 0 {
		t.ExitPrice = o.exitCost.Div(decimal.NewFromInt(o.exitQty))
	}
	if !o.exitTime.IsZero() {
		// Closed: entry and exit quantities match, so realized points reduce
		// to the signed difference of the cost sums. Exact in decimal.
		t.PointsPNL = o.exitCost.Sub(o.entryCost).Mul(decimal.NewFromInt(o.side.Sign()))
	} else {
		t.PointsPNL = decimal.Zero
	}
	return t
}

package pipeline

import (
	"context"
	"fmt"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// dedupKey identifies fragments of one logical broker report. The key
// deliberately ignores account and broker execution id: identical
// (time, side, price) within one batch is treated as a duplicate report,
// not an unrelated coincident fill. This is an assumption inherited from
// the broker export format, not a guarantee.
type dedupKey struct {
	timeUnix int64
	side     domain.OrderSide
	price    string
}

// Deduplicator collapses duplicate broker-reported executions within a
// single instrument+account batch, summing quantity across fragments.
type Deduplicator struct {
	logger ports.Logger
}

// NewDeduplicator creates a deduplicator.
func NewDeduplicator(logger ports.Logger) (*Deduplicator, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for Deduplicator")
	}
	return &Deduplicator{logger: logger}, nil
}

// Deduplicate merges executions sharing (time, side, price) into one record
// per key. Quantity is summed; every other field comes from the
// first-encountered fragment. Output order is insertion-order stable.
// Deduplicating an already-deduplicated sequence is a no-op.
func (d *Deduplicator) Deduplicate(ctx context.Context, execs []*domain.Execution) ([]*domain.Execution, error) {
	groups := NewOrderedGroups[dedupKey, *domain.Execution]()
	for _, e := range execs {
		if err := ValidateExecution(e); err != nil {
			return nil, err
		}
		// Decimal String trims trailing zeros, so numerically equal prices
		// share a key regardless of how the source rendered them.
		groups.Add(dedupKey{timeUnix: e.Time.Unix(), side: e.Side, price: e.Price.String()}, e)
	}

	out := make([]*domain.Execution, 0, groups.Len())
	for _, key := range groups.Keys() {
		fragments := groups.Group(key)
		first := *fragments[0]
		if len(fragments) > 1 {
			var total int64
			for _, f := range fragments {
				total += f.Quantity
			}
			first.Quantity = total
			d.logger.Info(ctx, "Merged duplicate execution reports", map[string]interface{}{
				"instrument": first.Instrument,
				"account":    first.Account,
				"time":       first.Time,
				"side":       key.side,
				"price":      key.price,
				"merged":     len(fragments),
				"quantity":   total,
			})
		}
		out = append(out, &first)
	}
	return out, nil
}

// ValidateExecution checks the fields every pipeline stage relies on.
// It returns a ValidationError naming the offending field and record.
func ValidateExecution(e *domain.Execution) error {
	record := describeExecution(e)
	switch {
	case e == nil:
		return &ports.ValidationError{Field: "execution", Record: "<nil>"}
	case e.Instrument == "":
		return &ports.ValidationError{Field: "instrument", Record: record}
	case e.Account == "":
		return &ports.ValidationError{Field: "account", Record: record}
	case e.Side != domain.Buy && e.Side != domain.Sell:
		return &ports.ValidationError{Field: "side", Record: record}
	case e.Quantity <= 0:
		return &ports.ValidationError{Field: "quantity", Record: record}
	case e.Price.Sign() <= 0:
		return &ports.ValidationError{Field: "price", Record: record}
	case e.Time.IsZero():
		return &ports.ValidationError{Field: "time", Record: record}
	case e.BrokerExecID == "":
		return &ports.ValidationError{Field: "broker_exec_id", Record: record}
	}
	return nil
}

func describeExecution(e *domain.Execution) string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s/%s %s %d@%s at %s id=%s",
		e.Instrument, e.Account, e.Side, e.Quantity, e.Price, e.Time.Format("2006-01-02 15:04:05"), e.BrokerExecID)
}

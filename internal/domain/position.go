package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position aggregates one or more trades for an instrument+account with
// continuous non-flat exposure: a new position starts when the account stays
// flat for longer than the configured gap, or the instrument changes.
type Position struct {
	ID          int64           // Unique identifier (usually from DB)
	Instrument  string          // Instrument symbol
	Account     string          // Brokerage account identifier
	Side        MarketSide      // Direction of the opening trade
	Quantity    int64           // Maximum absolute exposure observed during the span
	PointsPNL   decimal.Decimal // Sum of realized points P&L of constituent trades
	CurrencyPNL decimal.Decimal // PointsPNL scaled by the instrument multiplier
	StartTime   time.Time       // Entry time of the first trade
	EndTime     time.Time       // Exit time of the last trade (zero while still open)
	Status      RecordStatus    // active or soft_deleted
}

// IsOpen reports whether the position's last trade has not yet closed.
func (p *Position) IsOpen() bool {
	return p.EndTime.IsZero()
}

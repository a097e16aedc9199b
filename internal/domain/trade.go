package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade represents one entry-to-exit cycle of net non-zero position for an
// instrument within one account.
type Trade struct {
	ID             int64           // Unique identifier (usually from DB)
	Instrument     string          // Instrument symbol
	Account        string          // Brokerage account identifier
	Side           MarketSide      // Direction of the position (long/short)
	Quantity       int64           // Total quantity opened (VWAP-weighted entry)
	ClosedQuantity int64           // Quantity realized so far; equals Quantity once closed
	PeakQuantity   int64           // Largest absolute running quantity observed while the trade was open
	EntryTime      time.Time       // Timestamp of the opening fill
	ExitTime       time.Time       // Timestamp of the closing fill (zero value while open)
	EntryPrice     decimal.Decimal // Volume-weighted average entry price
	ExitPrice      decimal.Decimal // Volume-weighted average exit price (zero while open)
	PointsPNL      decimal.Decimal // Realized P&L in price points
	CurrencyPNL    decimal.Decimal // Realized P&L in currency units
	Commission     decimal.Decimal // Commission total for all fills of this trade
	LinkGroupID    int64           // Shared link-group identifier; 0 = unlinked (stored NULL)
	Status         RecordStatus    // active or soft_deleted
}

// IsOpen reports whether the trade has not yet fully closed.
func (t *Trade) IsOpen() bool {
	return t.ExitTime.IsZero()
}

// GroupStatistics summarizes all trades sharing one link-group identifier.
type GroupStatistics struct {
	GroupID         int64
	TotalPNL        decimal.Decimal
	TotalCommission decimal.Decimal
	TradeCount      int
}

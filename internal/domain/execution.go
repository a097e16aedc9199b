package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution represents a single broker-reported fill.
// Broker exports may report the same logical fill more than once; BrokerExecID
// alone is not trusted for deduplication because fragmented reports reuse it
// inconsistently across brokers.
type Execution struct {
	Instrument   string          // Instrument symbol (e.g., "ES", "NQ")
	Account      string          // Brokerage account identifier
	Side         OrderSide       // BUY or SELL
	Quantity     int64           // Number of contracts, always positive
	Price        decimal.Decimal // Fill price
	Time         time.Time       // Fill timestamp, second precision
	BrokerExecID string          // Broker-assigned execution id, may repeat across duplicate reports
	Commission   decimal.Decimal // Commission charged for this fill
	SourceFile   string          // File or feed the record came from
}

// ImportedExecution marks a broker execution id as already absorbed, making
// ingestion idempotent. Created once per first-seen id, never mutated, and
// removed only by an explicit data reset.
type ImportedExecution struct {
	ID           int64
	BrokerExecID string
	SourceFile   string
	ImportedAt   time.Time
	CreatedAt    time.Time
}

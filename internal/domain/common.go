package domain

// OrderSide represents the side of a broker execution (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// MarketSide represents the direction of a trade or position.
type MarketSide string

const (
	Long  MarketSide = "long"
	Short MarketSide = "short"
)

// Opposite returns the other market side.
func (s MarketSide) Opposite() MarketSide {
	if s == Long {
		return Short
	}
	return Long
}

// Sign returns +1 for Long and -1 for Short, used when signing P&L.
func (s MarketSide) Sign() int64 {
	if s == Long {
		return 1
	}
	return -1
}

// RecordStatus tracks the soft-delete state of a stored trade or position.
type RecordStatus string

const (
	StatusActive      RecordStatus = "active"
	StatusSoftDeleted RecordStatus = "soft_deleted"
)

package ports

import "github.com/shopspring/decimal"

// MultiplierTable resolves the currency value of one price point for an
// instrument. A missing instrument is a ConfigurationError, never a silent
// default: a wrong multiplier silently corrupts currency P&L.
type MultiplierTable interface {
	Multiplier(instrument string) (decimal.Decimal, error)
}

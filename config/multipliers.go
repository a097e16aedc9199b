package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradeledger/internal/ports"
)

// MultiplierTable maps instrument symbols to the currency value of one price
// point. Implements ports.MultiplierTable. There is no default multiplier: a
// missing instrument is surfaced as a ConfigurationError because a silently
// wrong multiplier corrupts currency P&L.
type MultiplierTable struct {
	multipliers map[string]decimal.Decimal
}

// multiplierFile is the YAML shape: a flat mapping of symbol to multiplier.
// Values are strings so they parse through decimal without a float detour.
//
//	multipliers:
//	  ES: "50"
//	  NQ: "20"
type multiplierFile struct {
	Multipliers map[string]string `yaml:"multipliers"`
}

// LoadMultiplierTable reads and validates the multiplier YAML file.
func LoadMultiplierTable(path string) (*MultiplierTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read multiplier table %q: %w", path, err)
	}

	var file multiplierFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse multiplier table %q: %w", path, err)
	}
	if len(file.Multipliers) == 0 {
		return nil, fmt.Errorf("multiplier table %q defines no instruments", path)
	}

	table := &MultiplierTable{multipliers: make(map[string]decimal.Decimal, len(file.Multipliers))}
	for instrument, value := range file.Multipliers {
		m, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("invalid multiplier %q for instrument %q in %q: %w", value, instrument, path, err)
		}
		if m.Sign() <= 0 {
			return nil, fmt.Errorf("multiplier for instrument %q in %q must be positive, got %s", instrument, path, m)
		}
		table.multipliers[instrument] = m
	}
	return table, nil
}

// NewMultiplierTable builds a table from an in-memory mapping (tests, callers
// with their own configuration source).
func NewMultiplierTable(multipliers map[string]decimal.Decimal) *MultiplierTable {
	copied := make(map[string]decimal.Decimal, len(multipliers))
	for k, v := range multipliers {
		copied[k] = v
	}
	return &MultiplierTable{multipliers: copied}
}

// Multiplier returns the currency-per-point value for an instrument.
func (t *MultiplierTable) Multiplier(instrument string) (decimal.Decimal, error) {
	m, ok := t.multipliers[instrument]
	if !ok {
		return decimal.Zero, &ports.ConfigurationError{Instrument: instrument, Reason: "no multiplier configured"}
	}
	return m, nil
}

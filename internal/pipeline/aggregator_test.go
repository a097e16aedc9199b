package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// mockMultiplierTable implements ports.MultiplierTable for testing
type mockMultiplierTable struct {
	multipliers map[string]decimal.Decimal
}

func (m *mockMultiplierTable) Multiplier(instrument string) (decimal.Decimal, error) {
	v, ok := m.multipliers[instrument]
	if !ok {
		return decimal.Zero, &ports.ConfigurationError{Instrument: instrument, Reason: "no multiplier configured"}
	}
	return v, nil
}

func closedTrade(instrument string, side domain.MarketSide, qty int64, points string, entry, exit time.Time) *domain.Trade {
	return &domain.Trade{
		Instrument:     instrument,
		Account:        "ACC-1",
		Side:           side,
		Quantity:       qty,
		ClosedQuantity: qty,
		PeakQuantity:   qty,
		EntryTime:      entry,
		ExitTime:       exit,
		EntryPrice:     decimal.NewFromInt(100),
		ExitPrice:      decimal.NewFromInt(101),
		PointsPNL:      decimal.RequireFromString(points),
		Commission:     decimal.RequireFromString("4.50"),
		Status:         domain.StatusActive,
	}
}

func newAggregator(t *testing.T, gap time.Duration) *PositionAggregator {
	t.Helper()
	a, err := NewPositionAggregator(&mockLogger{}, gap)
	require.NoError(t, err)
	return a
}

func TestPositionAggregator_SingleRun(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	a := newAggregator(t, time.Hour)
	table := &mockMultiplierTable{multipliers: map[string]decimal.Decimal{"ES": decimal.NewFromInt(50)}}

	trades := []*domain.Trade{
		closedTrade("ES", domain.Long, 2, "3.5", base, base.Add(10*time.Minute)),
		closedTrade("ES", domain.Short, 5, "-1.25", base.Add(20*time.Minute), base.Add(40*time.Minute)),
	}

	positions, failures := a.Aggregate(context.Background(), trades, table)
	require.Empty(t, failures)
	require.Len(t, positions, 1)

	pos := positions[0]
	assert.Equal(t, "ES", pos.Instrument)
	assert.Equal(t, domain.Long, pos.Side) // side of the opening trade
	assert.Equal(t, int64(5), pos.Quantity)
	assert.Equal(t, base, pos.StartTime)
	assert.Equal(t, base.Add(40*time.Minute), pos.EndTime)
	assert.True(t, pos.PointsPNL.Equal(decimal.RequireFromString("2.25")), "points %s", pos.PointsPNL)
	// 2.25 points * 50 per point
	assert.True(t, pos.CurrencyPNL.Equal(decimal.RequireFromString("112.5")), "currency %s", pos.CurrencyPNL)
}

func TestPositionAggregator_QuantityIsPeakExposure(t *testing.T) {
	// Buy 2, Sell 1, Buy 2, Sell 3 enters five contracts in total but never
	// holds more than three at once; the position must report three.
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b, err := NewTradeBuilder(&mockLogger{})
	require.NoError(t, err)
	a := newAggregator(t, time.Hour)
	table := &mockMultiplierTable{multipliers: map[string]decimal.Decimal{"ES": decimal.NewFromInt(50)}}

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 2, "10", base),
		exec("e2", domain.Sell, 1, "11", base.Add(time.Minute)),
		exec("e3", domain.Buy, 2, "12", base.Add(2*time.Minute)),
		exec("e4", domain.Sell, 3, "13", base.Add(3*time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(4), trades[0].Quantity)

	positions, failures := a.Aggregate(context.Background(), trades, table)
	require.Empty(t, failures)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(3), positions[0].Quantity)
}

func TestPositionAggregator_FlatGapSplits(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	a := newAggregator(t, 30*time.Minute)
	table := &mockMultiplierTable{multipliers: map[string]decimal.Decimal{"ES": decimal.NewFromInt(50)}}

	trades := []*domain.Trade{
		closedTrade("ES", domain.Long, 1, "2", base, base.Add(5*time.Minute)),
		// 10 minutes flat: same position
		closedTrade("ES", domain.Long, 1, "1", base.Add(15*time.Minute), base.Add(20*time.Minute)),
		// 2 hours flat: new position
		closedTrade("ES", domain.Short, 3, "-4", base.Add(2*time.Hour), base.Add(3*time.Hour)),
	}

	positions, failures := a.Aggregate(context.Background(), trades, table)
	require.Empty(t, failures)
	require.Len(t, positions, 2)

	assert.True(t, positions[0].PointsPNL.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, int64(1), positions[0].Quantity)
	assert.Equal(t, domain.Long, positions[0].Side)

	assert.True(t, positions[1].PointsPNL.Equal(decimal.NewFromInt(-4)))
	assert.Equal(t, int64(3), positions[1].Quantity)
	assert.Equal(t, domain.Short, positions[1].Side)
}

func TestPositionAggregator_PNLConsistency(t *testing.T) {
	// For every position, currency P&L must equal points P&L times the
	// multiplier within 0.01 currency units.
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	a := newAggregator(t, time.Hour)
	multiplier := decimal.RequireFromString("12.5")
	table := &mockMultiplierTable{multipliers: map[string]decimal.Decimal{"NQ": multiplier}}

	trades := make([]*domain.Trade, 0, 40)
	points := []string{"0.33", "-0.17", "1.01", "-2.49"}
	for i := 0; i < 40; i++ {
		entry := base.Add(time.Duration(i) * 2 * time.Minute)
		trades = append(trades, closedTrade("NQ", domain.Long, 1, points[i%len(points)], entry, entry.Add(time.Minute)))
	}

	positions, failures := a.Aggregate(context.Background(), trades, table)
	require.Empty(t, failures)
	tolerance := decimal.RequireFromString("0.01")
	for _, pos := range positions {
		diff := pos.CurrencyPNL.Sub(pos.PointsPNL.Mul(multiplier)).Abs()
		assert.True(t, diff.LessThanOrEqual(tolerance), "position drifted by %s", diff)
	}
}

func TestPositionAggregator_MissingMultiplier(t *testing.T) {
	// An instrument without a configured multiplier is reported and skipped;
	// the other instruments in the same run still produce positions.
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	a := newAggregator(t, time.Hour)
	table := &mockMultiplierTable{multipliers: map[string]decimal.Decimal{"ES": decimal.NewFromInt(50)}}

	trades := []*domain.Trade{
		closedTrade("XX", domain.Long, 1, "2", base, base.Add(time.Minute)),
		closedTrade("ES", domain.Long, 1, "3", base, base.Add(time.Minute)),
	}

	positions, failures := a.Aggregate(context.Background(), trades, table)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0], ports.ErrConfiguration)

	var cfgErr *ports.ConfigurationError
	require.ErrorAs(t, failures[0], &cfgErr)
	assert.Equal(t, "XX", cfgErr.Instrument)

	require.Len(t, positions, 1)
	assert.Equal(t, "ES", positions[0].Instrument)
}

func TestPositionAggregator_OpenTrade(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	a := newAggregator(t, time.Hour)
	table := &mockMultiplierTable{multipliers: map[string]decimal.Decimal{"ES": decimal.NewFromInt(50)}}

	open := &domain.Trade{
		Instrument:   "ES",
		Account:      "ACC-1",
		Side:         domain.Short,
		Quantity:     7,
		PeakQuantity: 7,
		EntryTime:    base.Add(10 * time.Minute),
		EntryPrice:   decimal.NewFromInt(100),
		PointsPNL:    decimal.Zero,
		Commission:   decimal.RequireFromString("2.25"),
		Status:       domain.StatusActive,
	}
	trades := []*domain.Trade{
		closedTrade("ES", domain.Long, 2, "1.5", base, base.Add(5*time.Minute)),
		open,
	}

	positions, failures := a.Aggregate(context.Background(), trades, table)
	require.Empty(t, failures)
	require.Len(t, positions, 1)

	pos := positions[0]
	// The open trade contributes no P&L yet but extends exposure and keeps
	// the position open.
	assert.True(t, pos.IsOpen())
	assert.Equal(t, int64(7), pos.Quantity)
	assert.True(t, pos.PointsPNL.Equal(decimal.RequireFromString("1.5")), "points %s", pos.PointsPNL)
	assert.True(t, pos.CurrencyPNL.Equal(decimal.RequireFromString("75")), "currency %s", pos.CurrencyPNL)
}

func TestPositionAggregator_EnrichesTradeCurrencyPNL(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	a := newAggregator(t, time.Hour)
	table := &mockMultiplierTable{multipliers: map[string]decimal.Decimal{"ES": decimal.NewFromInt(50)}}

	tr := closedTrade("ES", domain.Long, 1, "2", base, base.Add(time.Minute))
	_, failures := a.Aggregate(context.Background(), []*domain.Trade{tr}, table)
	require.Empty(t, failures)
	assert.True(t, tr.CurrencyPNL.Equal(decimal.NewFromInt(100)), "currency %s", tr.CurrencyPNL)
}

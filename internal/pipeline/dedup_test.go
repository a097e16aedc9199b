package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func exec(id string, side domain.OrderSide, qty int64, price string, at time.Time) *domain.Execution {
	return &domain.Execution{
		Instrument:   "ES",
		Account:      "ACC-1",
		Side:         side,
		Quantity:     qty,
		Price:        decimal.RequireFromString(price),
		Time:         at,
		BrokerExecID: id,
		Commission:   decimal.RequireFromString("2.25"),
	}
}

func TestDeduplicator_Deduplicate(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		input    []*domain.Execution
		wantQtys []int64
		wantIDs  []string // broker exec id of each output record (first fragment wins)
	}{
		{
			name: "two fragments same key merge into one",
			input: []*domain.Execution{
				exec("e1", domain.Buy, 1, "100.00", base),
				exec("e2", domain.Buy, 1, "100.00", base),
			},
			wantQtys: []int64{2},
			wantIDs:  []string{"e1"},
		},
		{
			name: "distinct keys pass through in order",
			input: []*domain.Execution{
				exec("e1", domain.Buy, 1, "100.00", base),
				exec("e2", domain.Sell, 2, "100.00", base),
				exec("e3", domain.Buy, 3, "101.00", base.Add(time.Second)),
			},
			wantQtys: []int64{1, 2, 3},
			wantIDs:  []string{"e1", "e2", "e3"},
		},
		{
			name: "equal prices in different renderings merge",
			input: []*domain.Execution{
				exec("e1", domain.Buy, 1, "100", base),
				exec("e2", domain.Buy, 2, "100.00", base),
			},
			wantQtys: []int64{3},
			wantIDs:  []string{"e1"},
		},
		{
			name: "interleaved fragments keep first-seen order",
			input: []*domain.Execution{
				exec("a1", domain.Buy, 1, "100.00", base),
				exec("b1", domain.Sell, 1, "101.00", base.Add(time.Minute)),
				exec("a2", domain.Buy, 4, "100.00", base),
			},
			wantQtys: []int64{5, 1},
			wantIDs:  []string{"a1", "b1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDeduplicator(&mockLogger{})
			require.NoError(t, err)

			got, err := d.Deduplicate(context.Background(), tt.input)
			require.NoError(t, err)
			require.Len(t, got, len(tt.wantQtys))
			for i := range got {
				assert.Equal(t, tt.wantQtys[i], got[i].Quantity, "quantity at index %d", i)
				assert.Equal(t, tt.wantIDs[i], got[i].BrokerExecID, "exec id at index %d", i)
			}
		})
	}
}

func TestDeduplicator_Idempotent(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	d, err := NewDeduplicator(&mockLogger{})
	require.NoError(t, err)

	input := []*domain.Execution{
		exec("e1", domain.Buy, 1, "100.00", base),
		exec("e2", domain.Buy, 1, "100.00", base),
		exec("e3", domain.Sell, 2, "102.50", base.Add(time.Minute)),
	}

	once, err := d.Deduplicate(context.Background(), input)
	require.NoError(t, err)
	twice, err := d.Deduplicate(context.Background(), once)
	require.NoError(t, err)

	require.Len(t, twice, len(once))
	for i := range once {
		assert.Equal(t, once[i].Quantity, twice[i].Quantity)
		assert.Equal(t, once[i].BrokerExecID, twice[i].BrokerExecID)
		assert.True(t, once[i].Price.Equal(twice[i].Price))
	}
}

func TestDeduplicator_InputUnmodified(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	d, err := NewDeduplicator(&mockLogger{})
	require.NoError(t, err)

	input := []*domain.Execution{
		exec("e1", domain.Buy, 1, "100.00", base),
		exec("e2", domain.Buy, 1, "100.00", base),
	}
	_, err = d.Deduplicate(context.Background(), input)
	require.NoError(t, err)

	// Merging sums into a copy; the source records keep their quantities.
	assert.Equal(t, int64(1), input[0].Quantity)
	assert.Equal(t, int64(1), input[1].Quantity)
}

func TestDeduplicator_Validation(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mutate    func(e *domain.Execution)
		wantField string
	}{
		{name: "missing instrument", mutate: func(e *domain.Execution) { e.Instrument = "" }, wantField: "instrument"},
		{name: "missing account", mutate: func(e *domain.Execution) { e.Account = "" }, wantField: "account"},
		{name: "bad side", mutate: func(e *domain.Execution) { e.Side = "HOLD" }, wantField: "side"},
		{name: "zero quantity", mutate: func(e *domain.Execution) { e.Quantity = 0 }, wantField: "quantity"},
		{name: "negative price", mutate: func(e *domain.Execution) { e.Price = decimal.RequireFromString("-1") }, wantField: "price"},
		{name: "zero time", mutate: func(e *domain.Execution) { e.Time = time.Time{} }, wantField: "time"},
		{name: "missing exec id", mutate: func(e *domain.Execution) { e.BrokerExecID = "" }, wantField: "broker_exec_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDeduplicator(&mockLogger{})
			require.NoError(t, err)

			bad := exec("e1", domain.Buy, 1, "100.00", base)
			tt.mutate(bad)

			_, err = d.Deduplicate(context.Background(), []*domain.Execution{bad})
			require.Error(t, err)
			assert.ErrorIs(t, err, ports.ErrValidation)

			var vErr *ports.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

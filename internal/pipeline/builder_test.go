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

func newBuilder(t *testing.T) *TradeBuilder {
	t.Helper()
	b, err := NewTradeBuilder(&mockLogger{})
	require.NoError(t, err)
	return b
}

func TestTradeBuilder_SimpleRoundTrip(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 2, "100.00", base),
		exec("e2", domain.Sell, 2, "103.50", base.Add(5*time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, domain.Long, tr.Side)
	assert.Equal(t, int64(2), tr.Quantity)
	assert.Equal(t, int64(2), tr.ClosedQuantity)
	assert.Equal(t, base, tr.EntryTime)
	assert.Equal(t, base.Add(5*time.Minute), tr.ExitTime)
	assert.False(t, tr.IsOpen())
	assert.True(t, tr.EntryPrice.Equal(decimal.RequireFromString("100.00")), "entry price %s", tr.EntryPrice)
	assert.True(t, tr.ExitPrice.Equal(decimal.RequireFromString("103.50")), "exit price %s", tr.ExitPrice)
	// (103.50 - 100.00) * 2
	assert.True(t, tr.PointsPNL.Equal(decimal.RequireFromString("7.00")), "points %s", tr.PointsPNL)
	// 2.25 commission per fill
	assert.True(t, tr.Commission.Equal(decimal.RequireFromString("4.50")), "commission %s", tr.Commission)
}

func TestTradeBuilder_ZeroCrossingSplit(t *testing.T) {
	// Buy 3 @10 at T1, Sell 5 @12 at T2: the sell closes the long and flips
	// into a short of 2 at the crossing price, still open.
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 3, "10", base),
		exec("e2", domain.Sell, 5, "12", base.Add(time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, trades, 2)

	long := trades[0]
	assert.Equal(t, domain.Long, long.Side)
	assert.Equal(t, int64(3), long.Quantity)
	assert.Equal(t, int64(3), long.PeakQuantity)
	assert.True(t, long.EntryPrice.Equal(decimal.NewFromInt(10)))
	assert.True(t, long.ExitPrice.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, base.Add(time.Minute), long.ExitTime)
	// (12 - 10) * 3
	assert.True(t, long.PointsPNL.Equal(decimal.NewFromInt(6)), "points %s", long.PointsPNL)

	short := trades[1]
	assert.Equal(t, domain.Short, short.Side)
	assert.Equal(t, int64(2), short.Quantity)
	assert.Equal(t, int64(2), short.PeakQuantity)
	assert.True(t, short.IsOpen())
	assert.True(t, short.ExitTime.IsZero())
	assert.True(t, short.EntryPrice.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, base.Add(time.Minute), short.EntryTime)
	assert.True(t, short.PointsPNL.IsZero())

	// Commission of the crossing fill splits proportionally and sums back.
	total := long.Commission.Add(short.Commission)
	assert.True(t, total.Equal(decimal.RequireFromString("4.50")), "total commission %s", total)
}

func TestTradeBuilder_VWAPExtension(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 1, "10", base),
		exec("e2", domain.Buy, 1, "12", base.Add(time.Minute)),
		exec("e3", domain.Sell, 2, "14", base.Add(2*time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, int64(2), tr.Quantity)
	assert.True(t, tr.EntryPrice.Equal(decimal.NewFromInt(11)), "vwap entry %s", tr.EntryPrice)
	// exitCost 28 - entryCost 22
	assert.True(t, tr.PointsPNL.Equal(decimal.NewFromInt(6)), "points %s", tr.PointsPNL)
}

func TestTradeBuilder_PartialReduction(t *testing.T) {
	// A reduction that does not reach zero keeps the trade open; the exit
	// price becomes the volume-weighted average of all reducing fills.
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 4, "10", base),
		exec("e2", domain.Sell, 1, "12", base.Add(time.Minute)),
		exec("e3", domain.Sell, 3, "11", base.Add(2*time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, int64(4), tr.Quantity)
	assert.Equal(t, int64(4), tr.ClosedQuantity)
	assert.Equal(t, base.Add(2*time.Minute), tr.ExitTime)
	// (12*1 + 11*3) / 4 = 11.25
	assert.True(t, tr.ExitPrice.Equal(decimal.RequireFromString("11.25")), "vwap exit %s", tr.ExitPrice)
	// exitCost 45 - entryCost 40
	assert.True(t, tr.PointsPNL.Equal(decimal.NewFromInt(5)), "points %s", tr.PointsPNL)
}

func TestTradeBuilder_PeakQuantityReduceThenExtend(t *testing.T) {
	// Running quantity 2 -> 1 -> 3 -> 0: five contracts enter over the
	// trade's life but no more than three are ever held at once.
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 2, "10", base),
		exec("e2", domain.Sell, 1, "11", base.Add(time.Minute)),
		exec("e3", domain.Buy, 2, "12", base.Add(2*time.Minute)),
		exec("e4", domain.Sell, 3, "13", base.Add(3*time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, int64(4), tr.Quantity)
	assert.Equal(t, int64(4), tr.ClosedQuantity)
	assert.Equal(t, int64(3), tr.PeakQuantity)
	assert.False(t, tr.IsOpen())
}

func TestTradeBuilder_ShortSide(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Sell, 2, "50", base),
		exec("e2", domain.Buy, 2, "47", base.Add(time.Minute)),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, domain.Short, tr.Side)
	// (50 - 47) * 2, short profits from the drop
	assert.True(t, tr.PointsPNL.Equal(decimal.NewFromInt(6)), "points %s", tr.PointsPNL)
}

func TestTradeBuilder_FinalTradeStaysOpen(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	trades, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 3, "10", base),
	})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].IsOpen())
	assert.True(t, trades[0].ExitPrice.IsZero())
	assert.True(t, trades[0].PointsPNL.IsZero())
}

func TestTradeBuilder_OutOfOrderFails(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	_, err := b.Build(context.Background(), []*domain.Execution{
		exec("e1", domain.Buy, 1, "10", base),
		exec("e2", domain.Sell, 1, "11", base.Add(-time.Second)),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInconsistentSequence)
}

func TestTradeBuilder_QuantityConservationAndNoOverlap(t *testing.T) {
	// Entry plus exit legs across all trades must equal the input quantity,
	// and consecutive trades must not overlap in time.
	base := time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
	b := newBuilder(t)

	input := []*domain.Execution{
		exec("e1", domain.Buy, 3, "10", base),
		exec("e2", domain.Buy, 2, "11", base.Add(1*time.Minute)),
		exec("e3", domain.Sell, 7, "12", base.Add(2*time.Minute)), // flips to short 2
		exec("e4", domain.Sell, 1, "13", base.Add(3*time.Minute)),
		exec("e5", domain.Buy, 3, "12", base.Add(4*time.Minute)), // closes the short
		exec("e6", domain.Buy, 1, "14", base.Add(5*time.Minute)), // opens a new long, stays open
	}

	trades, err := b.Build(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, trades, 3)

	var inputQty int64
	for _, e := range input {
		inputQty += e.Quantity
	}
	var legQty int64
	for _, tr := range trades {
		legQty += tr.Quantity + tr.ClosedQuantity
	}
	assert.Equal(t, inputQty, legQty)

	for i := 1; i < len(trades); i++ {
		prev, next := trades[i-1], trades[i]
		require.False(t, prev.IsOpen(), "only the final trade may stay open")
		assert.False(t, next.EntryTime.Before(prev.ExitTime), "trades %d and %d overlap", i-1, i)
	}
}

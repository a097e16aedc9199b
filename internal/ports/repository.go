package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
)

// ExecutionMarkerRepository tracks which broker execution ids have already
// been absorbed, guaranteeing idempotent ingestion.
type ExecutionMarkerRepository interface {
	// CreateMarker records a first-seen broker execution id and returns its assigned ID.
	CreateMarker(ctx context.Context, marker *domain.ImportedExecution) (int64, error)
	// ExistingExecIDs reports which of the given broker execution ids already have markers.
	ExistingExecIDs(ctx context.Context, execIDs []string) (map[string]bool, error)
	// ResetMarkers removes all markers. Explicit data-reset operations only.
	ResetMarkers(ctx context.Context) error
}

// TradeRepository defines the interface for storing and retrieving derived trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindTrades retrieves active trades for an instrument+account ordered by entry time.
	FindTrades(ctx context.Context, instrument, account string) ([]*domain.Trade, error)
	// SoftDeleteTrade marks a trade as soft-deleted without removing the row.
	SoftDeleteTrade(ctx context.Context, id int64) error
	// TotalCurrencyPNL sums realized currency P&L across all active closed trades.
	TotalCurrencyPNL(ctx context.Context) (decimal.Decimal, error)
}

// ImportWriter persists everything one import batch produced. The write is
// atomic: the batch's trades, positions and markers all commit together or
// none do, so a failed batch leaves no rows behind and re-running the import
// retries it without duplicating anything.
type ImportWriter interface {
	PersistImportBatch(ctx context.Context, trades []*domain.Trade, positions []*domain.Position, markers []*domain.ImportedExecution) error
}

// PositionRepository defines the interface for storing and retrieving aggregated positions.
type PositionRepository interface {
	// CreatePosition saves a new position and returns its assigned ID.
	CreatePosition(ctx context.Context, pos *domain.Position) (int64, error)
	// FindPositions retrieves active positions for an instrument+account ordered by start time.
	FindPositions(ctx context.Context, instrument, account string) ([]*domain.Position, error)
	// SoftDeletePosition marks a position as soft-deleted without removing the row.
	SoftDeletePosition(ctx context.Context, id int64) error
}

// TradeLinker assigns arbitrary sets of trades to shared link groups.
// Link and Unlink are atomic: either every requested trade is updated or none
// is, and concurrent calls never allocate the same group id.
type TradeLinker interface {
	// Link assigns a freshly allocated group id (current max + 1, or 1) to the
	// given trades, overwriting any prior membership.
	Link(ctx context.Context, tradeIDs []int64) (int64, error)
	// Unlink clears group membership on the given trades.
	Unlink(ctx context.Context, tradeIDs []int64) error
	// TradesInGroup returns the active trades in a group ordered by entry time.
	TradesInGroup(ctx context.Context, groupID int64) ([]*domain.Trade, error)
	// GroupStatistics sums P&L and commission over a group's trades.
	// An empty or unknown group yields zeros, not an error.
	GroupStatistics(ctx context.Context, groupID int64) (*domain.GroupStatistics, error)
}

package ports

import (
	"context"

	"tradeledger/internal/domain"
)

// ExecutionSource delivers parsed broker execution records in arbitrary but
// per-batch chronological order. Sources do not enforce execution id
// uniqueness; deduplication happens downstream.
type ExecutionSource interface {
	Executions(ctx context.Context) ([]*domain.Execution, error)
}

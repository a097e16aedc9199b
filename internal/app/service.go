package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradeledger/config"
	"tradeledger/internal/domain"
	"tradeledger/internal/pipeline"
	"tradeledger/internal/ports"
)

// batchKey identifies one independent unit of pipeline work. Batches for
// distinct instrument+account pairs share no state and run in parallel;
// within a batch processing is strictly sequential because the trade
// builder's state machine depends on execution order.
type batchKey struct {
	Instrument string
	Account    string
}

// ImportSummary reports what one import run did.
type ImportSummary struct {
	ExecutionsFetched  int
	ExecutionsImported int // after marker filtering, before dedup
	Batches            int
	TradesCreated      int
	PositionsCreated   int
	// Failures holds per-batch and per-instrument errors. A failed batch
	// commits nothing, markers included, so re-running the import retries it.
	Failures []error
}

// ImportService runs the execution-to-position ingestion pipeline:
// marker filtering, deduplication, trade building, position aggregation and
// persistence.
type ImportService struct {
	cfg         *config.Config
	logger      ports.Logger
	source      ports.ExecutionSource
	markers     ports.ExecutionMarkerRepository
	writer      ports.ImportWriter
	multipliers ports.MultiplierTable

	dedup      *pipeline.Deduplicator
	builder    *pipeline.TradeBuilder
	aggregator *pipeline.PositionAggregator
}

// NewImportService creates a new application service instance.
func NewImportService(
	cfg *config.Config,
	logger ports.Logger,
	source ports.ExecutionSource,
	markers ports.ExecutionMarkerRepository,
	writer ports.ImportWriter,
	multipliers ports.MultiplierTable,
) (*ImportService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || source == nil || markers == nil || writer == nil || multipliers == nil {
		return nil, fmt.Errorf("missing required dependencies for ImportService")
	}
	if cfg.ImportWorkers <= 0 {
		return nil, fmt.Errorf("configuration ImportWorkers must be positive")
	}
	if cfg.PositionFlatGap < 0 {
		return nil, fmt.Errorf("configuration PositionFlatGap cannot be negative")
	}

	dedup, err := pipeline.NewDeduplicator(logger)
	if err != nil {
		return nil, err
	}
	builder, err := pipeline.NewTradeBuilder(logger)
	if err != nil {
		return nil, err
	}
	aggregator, err := pipeline.NewPositionAggregator(logger, cfg.PositionFlatGap)
	if err != nil {
		return nil, err
	}

	return &ImportService{
		cfg:         cfg,
		logger:      logger,
		source:      source,
		markers:     markers,
		writer:      writer,
		multipliers: multipliers,
		dedup:       dedup,
		builder:     builder,
		aggregator:  aggregator,
	}, nil
}

// Run executes one import: fetch, filter already-imported executions, then
// process each instrument+account batch on a worker pool. A failing batch is
// recorded in the summary and does not affect other batches.
func (s *ImportService) Run(ctx context.Context) (*ImportSummary, error) {
	execs, err := s.source.Executions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch executions: %w", err)
	}

	summary := &ImportSummary{ExecutionsFetched: len(execs)}

	fresh, err := s.filterImported(ctx, execs)
	if err != nil {
		return nil, err
	}
	summary.ExecutionsImported = len(fresh)
	if len(fresh) == 0 {
		s.logger.Info(ctx, "No new executions to import", map[string]interface{}{"fetched": len(execs)})
		return summary, nil
	}

	batches := pipeline.NewOrderedGroups[batchKey, *domain.Execution]()
	for _, e := range fresh {
		batches.Add(batchKey{Instrument: e.Instrument, Account: e.Account}, e)
	}
	summary.Batches = batches.Len()

	jobs := make(chan batchKey)
	var (
		wg sync.WaitGroup
		mu sync.Mutex // Protects summary
	)
	workers := s.cfg.ImportWorkers
	if workers > batches.Len() {
		workers = batches.Len()
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				tradeCount, positionCount, failures := s.processBatch(ctx, key, batches.Group(key))
				mu.Lock()
				summary.TradesCreated += tradeCount
				summary.PositionsCreated += positionCount
				summary.Failures = append(summary.Failures, failures...)
				mu.Unlock()
			}
		}()
	}
	for _, key := range batches.Keys() {
		jobs <- key
	}
	close(jobs)
	wg.Wait()

	s.logger.Info(ctx, "Import run complete", map[string]interface{}{
		"fetched":   summary.ExecutionsFetched,
		"imported":  summary.ExecutionsImported,
		"batches":   summary.Batches,
		"trades":    summary.TradesCreated,
		"positions": summary.PositionsCreated,
		"failures":  len(summary.Failures),
	})
	return summary, nil
}

// filterImported drops executions whose broker execution id already has a
// marker. Fragments of a not-yet-imported id all pass through; merging them
// is the deduplicator's job.
func (s *ImportService) filterImported(ctx context.Context, execs []*domain.Execution) ([]*domain.Execution, error) {
	ids := make([]string, 0, len(execs))
	seen := make(map[string]bool, len(execs))
	for _, e := range execs {
		if e.BrokerExecID != "" && !seen[e.BrokerExecID] {
			seen[e.BrokerExecID] = true
			ids = append(ids, e.BrokerExecID)
		}
	}

	existing, err := s.markers.ExistingExecIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check execution markers: %w", err)
	}

	fresh := make([]*domain.Execution, 0, len(execs))
	for _, e := range execs {
		if existing[e.BrokerExecID] {
			continue
		}
		fresh = append(fresh, e)
	}
	if dropped := len(execs) - len(fresh); dropped > 0 {
		s.logger.Info(ctx, "Skipped already-imported executions", map[string]interface{}{"skipped": dropped})
	}
	return fresh, nil
}

// processBatch runs the sequential pipeline for one instrument+account batch
// and persists the result. The batch's trades, positions and markers commit
// in a single transaction: a partial failure leaves no rows behind, so the
// retry on the next run cannot double-persist anything.
func (s *ImportService) processBatch(ctx context.Context, key batchKey, execs []*domain.Execution) (tradeCount, positionCount int, failures []error) {
	fields := map[string]interface{}{"instrument": key.Instrument, "account": key.Account, "executions": len(execs)}

	deduped, err := s.dedup.Deduplicate(ctx, execs)
	if err != nil {
		s.logger.Error(ctx, err, "Batch failed during deduplication", fields)
		return 0, 0, []error{fmt.Errorf("batch %s/%s: %w", key.Instrument, key.Account, err)}
	}

	trades, err := s.builder.Build(ctx, deduped)
	if err != nil {
		s.logger.Error(ctx, err, "Batch failed during trade building", fields)
		return 0, 0, []error{fmt.Errorf("batch %s/%s: %w", key.Instrument, key.Account, err)}
	}

	// Aggregation enriches trades with currency P&L, so it runs before the
	// trades are persisted. A missing multiplier skips this instrument's
	// positions but not its trades.
	positions, aggFailures := s.aggregator.Aggregate(ctx, trades, s.multipliers)
	failures = append(failures, aggFailures...)

	if err := s.writer.PersistImportBatch(ctx, trades, positions, batchMarkers(execs)); err != nil {
		s.logger.Error(ctx, err, "Batch failed persisting", fields)
		return 0, 0, append(failures, fmt.Errorf("batch %s/%s: %w", key.Instrument, key.Account, err))
	}

	s.logger.Debug(ctx, "Batch processed", map[string]interface{}{
		"instrument": key.Instrument,
		"account":    key.Account,
		"trades":     len(trades),
		"positions":  len(positions),
	})
	return len(trades), len(positions), failures
}

// batchMarkers builds one marker per first-seen broker execution id in the
// batch.
func batchMarkers(execs []*domain.Execution) []*domain.ImportedExecution {
	now := time.Now().UTC()
	seen := make(map[string]bool, len(execs))
	markers := make([]*domain.ImportedExecution, 0, len(execs))
	for _, e := range execs {
		if seen[e.BrokerExecID] {
			continue
		}
		seen[e.BrokerExecID] = true
		markers = append(markers, &domain.ImportedExecution{
			BrokerExecID: e.BrokerExecID,
			SourceFile:   e.SourceFile,
			ImportedAt:   now,
		})
	}
	return markers
}

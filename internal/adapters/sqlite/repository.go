package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// Repository implements the marker, trade, position and linker interfaces
// from ports using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/tradeledger.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// A single connection serializes writers at the driver level; the linker's
	// read-max-then-increment transaction relies on this plus SQLite's own
	// write locking.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
// NOTE: This is a basic approach. A proper migration tool is recommended for production.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS imported_executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		broker_exec_id TEXT NOT NULL UNIQUE,
		source_file TEXT NOT NULL,
		imported_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instrument TEXT NOT NULL,
		account TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		closed_quantity INTEGER NOT NULL DEFAULT 0,
		peak_quantity INTEGER NOT NULL DEFAULT 0,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP DEFAULT NULL,
		entry_price TEXT NOT NULL,
		exit_price TEXT DEFAULT NULL,
		points_pnl TEXT NOT NULL,
		currency_pnl TEXT NOT NULL,
		commission TEXT NOT NULL,
		link_group_id INTEGER DEFAULT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	);

	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instrument TEXT NOT NULL,
		account TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		points_pnl TEXT NOT NULL,
		currency_pnl TEXT NOT NULL,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP DEFAULT NULL,
		status TEXT NOT NULL DEFAULT 'active'
	);

	-- Prices and P&L are stored as decimal strings, not REAL: they round-trip
	-- exactly and are summed in Go with decimal arithmetic.
	CREATE INDEX IF NOT EXISTS idx_trades_instrument_account_entry ON trades (instrument, account, entry_time);
	CREATE INDEX IF NOT EXISTS idx_trades_link_group ON trades (link_group_id);
	CREATE INDEX IF NOT EXISTS idx_positions_instrument_account_start ON positions (instrument, account, start_time);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// --- ExecutionMarkerRepository Implementation ---

// CreateMarker records a first-seen broker execution id and returns its assigned ID.
func (r *Repository) CreateMarker(ctx context.Context, marker *domain.ImportedExecution) (int64, error) {
	const query = `
	INSERT INTO imported_executions (broker_exec_id, source_file, imported_at, created_at)
	VALUES (?, ?, ?, ?)`

	createdAt := marker.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, query, marker.BrokerExecID, marker.SourceFile, marker.ImportedAt, createdAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, fmt.Errorf("marker for execution id %q: %w", marker.BrokerExecID, ports.ErrDuplicateEntry)
		}
		return 0, fmt.Errorf("failed to insert execution marker %q: %w", marker.BrokerExecID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for execution marker %q: %w", marker.BrokerExecID, err)
	}
	marker.ID = id
	marker.CreatedAt = createdAt
	return id, nil
}

// ExistingExecIDs reports which of the given broker execution ids already have markers.
func (r *Repository) ExistingExecIDs(ctx context.Context, execIDs []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(execIDs))
	if len(execIDs) == 0 {
		return existing, nil
	}

	query := fmt.Sprintf(`SELECT broker_exec_id FROM imported_executions WHERE broker_exec_id IN (%s)`,
		placeholders(len(execIDs)))
	args := make([]interface{}, len(execIDs))
	for i, id := range execIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution markers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan execution marker: %w", err)
		}
		existing[id] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution marker rows: %w", err)
	}
	return existing, nil
}

// ResetMarkers removes all markers. Explicit data-reset operations only.
func (r *Repository) ResetMarkers(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM imported_executions`); err != nil {
		return fmt.Errorf("failed to reset execution markers: %w", err)
	}
	r.logger.Warn(ctx, "All execution markers removed")
	return nil
}

// --- TradeRepository Implementation ---

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	id, err := insertTrade(ctx, r.db, trade)
	if err != nil {
		return 0, err
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "instrument": trade.Instrument, "pointsPNL": trade.PointsPNL})
	return id, nil
}

// insertTrade writes one trade through either the pooled connection or an open
// transaction.
func insertTrade(ctx context.Context, ex execer, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (instrument, account, side, quantity, closed_quantity, peak_quantity, entry_time, exit_time,
	                    entry_price, exit_price, points_pnl, currency_pnl, commission, link_group_id, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var exitTime sql.NullTime
	if !trade.ExitTime.IsZero() {
		exitTime = sql.NullTime{Time: trade.ExitTime, Valid: true}
	}
	var exitPrice sql.NullString
	if !trade.ExitTime.IsZero() || trade.ClosedQuantity > 0 {
		exitPrice = sql.NullString{String: trade.ExitPrice.String(), Valid: true}
	}
	var groupID sql.NullInt64
	if trade.LinkGroupID != 0 {
		groupID = sql.NullInt64{Int64: trade.LinkGroupID, Valid: true}
	}
	status := trade.Status
	if status == "" {
		status = domain.StatusActive
	}

	result, err := ex.ExecContext(ctx, query,
		trade.Instrument, trade.Account, trade.Side, trade.Quantity, trade.ClosedQuantity, trade.PeakQuantity,
		trade.EntryTime, exitTime, trade.EntryPrice.String(), exitPrice,
		trade.PointsPNL.String(), trade.CurrencyPNL.String(), trade.Commission.String(),
		groupID, status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for %s/%s: %w", trade.Instrument, trade.Account, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s/%s: %w", trade.Instrument, trade.Account, err)
	}
	trade.ID = id
	return id, nil
}

// FindTrades retrieves active trades for an instrument+account ordered by entry time.
func (r *Repository) FindTrades(ctx context.Context, instrument, account string) ([]*domain.Trade, error) {
	const query = tradeSelect + `
	WHERE instrument = ? AND account = ? AND status = ?
	ORDER BY entry_time ASC, id ASC`

	return r.queryTrades(ctx, query, instrument, account, domain.StatusActive)
}

// SoftDeleteTrade marks a trade as soft-deleted without removing the row.
func (r *Repository) SoftDeleteTrade(ctx context.Context, id int64) error {
	return r.softDelete(ctx, "trades", id)
}

// TotalCurrencyPNL sums realized currency P&L across all active closed trades.
func (r *Repository) TotalCurrencyPNL(ctx context.Context) (decimal.Decimal, error) {
	const query = `SELECT currency_pnl FROM trades WHERE status = ? AND exit_time IS NOT NULL`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusActive)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query realized P&L: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan realized P&L: %w", err)
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt currency_pnl value %q: %w", raw, err)
		}
		total = total.Add(v)
	}
	if err = rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating realized P&L rows: %w", err)
	}
	return total, nil
}

// --- PositionRepository Implementation ---

// CreatePosition saves a new position and returns its assigned ID.
func (r *Repository) CreatePosition(ctx context.Context, pos *domain.Position) (int64, error) {
	id, err := insertPosition(ctx, r.db, pos)
	if err != nil {
		return 0, err
	}
	r.logger.Debug(ctx, "Position created", map[string]interface{}{"positionID": id, "instrument": pos.Instrument, "currencyPNL": pos.CurrencyPNL})
	return id, nil
}

func insertPosition(ctx context.Context, ex execer, pos *domain.Position) (int64, error) {
	const query = `
	INSERT INTO positions (instrument, account, side, quantity, points_pnl, currency_pnl, start_time, end_time, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var endTime sql.NullTime
	if !pos.EndTime.IsZero() {
		endTime = sql.NullTime{Time: pos.EndTime, Valid: true}
	}
	status := pos.Status
	if status == "" {
		status = domain.StatusActive
	}

	result, err := ex.ExecContext(ctx, query,
		pos.Instrument, pos.Account, pos.Side, pos.Quantity,
		pos.PointsPNL.String(), pos.CurrencyPNL.String(), pos.StartTime, endTime, status)
	if err != nil {
		return 0, fmt.Errorf("failed to insert position for %s/%s: %w", pos.Instrument, pos.Account, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for position %s/%s: %w", pos.Instrument, pos.Account, err)
	}
	pos.ID = id
	return id, nil
}

// FindPositions retrieves active positions for an instrument+account ordered by start time.
func (r *Repository) FindPositions(ctx context.Context, instrument, account string) ([]*domain.Position, error) {
	const query = `
	SELECT id, instrument, account, side, quantity, points_pnl, currency_pnl, start_time, end_time, status
	FROM positions
	WHERE instrument = ? AND account = ? AND status = ?
	ORDER BY start_time ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, instrument, account, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for %s/%s: %w", instrument, account, err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position during FindPositions: %w", err)
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// SoftDeletePosition marks a position as soft-deleted without removing the row.
func (r *Repository) SoftDeletePosition(ctx context.Context, id int64) error {
	return r.softDelete(ctx, "positions", id)
}

func (r *Repository) softDelete(ctx context.Context, table string, id int64) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ? WHERE id = ? AND status = ?`, table)
	result, err := r.db.ExecContext(ctx, query, domain.StatusSoftDeleted, id, domain.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to soft-delete %s row %d: %w", table, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected soft-deleting %s row %d: %w", table, id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s row %d not found for soft-delete: %w", table, id, ports.ErrNotFound)
	}
	return nil
}

// --- TradeLinker Implementation ---

// Link assigns a freshly allocated group id to the given trades inside one
// transaction. The read-max-then-increment allocation and the membership
// update commit together or not at all, so concurrent Link calls can never
// produce a colliding group id or a half-linked set.
func (r *Repository) Link(ctx context.Context, tradeIDs []int64) (int64, error) {
	if len(tradeIDs) == 0 {
		return 0, &ports.ValidationError{Field: "trade_ids", Record: "empty set"}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &ports.StorageError{Op: "link", Err: err}
	}
	defer tx.Rollback()

	var groupID int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(link_group_id), 0) + 1 FROM trades`).Scan(&groupID); err != nil {
		return 0, &ports.StorageError{Op: "link: allocate group id", Err: err}
	}

	if err := r.assignGroup(ctx, tx, tradeIDs, sql.NullInt64{Int64: groupID, Valid: true}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, &ports.StorageError{Op: "link: commit", Err: err}
	}
	r.logger.Info(ctx, "Trades linked", map[string]interface{}{"groupID": groupID, "tradeCount": len(tradeIDs)})
	return groupID, nil
}

// Unlink clears group membership on the given trades, atomically.
func (r *Repository) Unlink(ctx context.Context, tradeIDs []int64) error {
	if len(tradeIDs) == 0 {
		return &ports.ValidationError{Field: "trade_ids", Record: "empty set"}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &ports.StorageError{Op: "unlink", Err: err}
	}
	defer tx.Rollback()

	if err := r.assignGroup(ctx, tx, tradeIDs, sql.NullInt64{}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return &ports.StorageError{Op: "unlink: commit", Err: err}
	}
	r.logger.Info(ctx, "Trades unlinked", map[string]interface{}{"tradeCount": len(tradeIDs)})
	return nil
}

// assignGroup updates link_group_id for every requested trade and fails the
// transaction when any of them is missing or soft-deleted.
func (r *Repository) assignGroup(ctx context.Context, tx *sql.Tx, tradeIDs []int64, groupID sql.NullInt64) error {
	query := fmt.Sprintf(`UPDATE trades SET link_group_id = ? WHERE id IN (%s) AND status = ?`,
		placeholders(len(tradeIDs)))
	args := make([]interface{}, 0, len(tradeIDs)+2)
	args = append(args, groupID)
	for _, id := range tradeIDs {
		args = append(args, id)
	}
	args = append(args, domain.StatusActive)

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return &ports.StorageError{Op: "link: update membership", Err: err}
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return &ports.StorageError{Op: "link: update membership", Err: err}
	}
	if rowsAffected != int64(len(tradeIDs)) {
		return &ports.StorageError{
			Op:  "link: update membership",
			Err: fmt.Errorf("%d of %d trades missing or soft-deleted: %w", int64(len(tradeIDs))-rowsAffected, len(tradeIDs), ports.ErrNotFound),
		}
	}
	return nil
}

// TradesInGroup returns the active trades in a group ordered by entry time.
func (r *Repository) TradesInGroup(ctx context.Context, groupID int64) ([]*domain.Trade, error) {
	const query = tradeSelect + `
	WHERE link_group_id = ? AND status = ?
	ORDER BY entry_time ASC, id ASC`

	return r.queryTrades(ctx, query, groupID, domain.StatusActive)
}

// GroupStatistics sums P&L and commission over a group's trades. Sums are
// computed in Go with decimal arithmetic; an empty or unknown group yields
// zeros.
func (r *Repository) GroupStatistics(ctx context.Context, groupID int64) (*domain.GroupStatistics, error) {
	trades, err := r.TradesInGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	stats := &domain.GroupStatistics{
		GroupID:         groupID,
		TotalPNL:        decimal.Zero,
		TotalCommission: decimal.Zero,
		TradeCount:      len(trades),
	}
	for _, t := range trades {
		stats.TotalPNL = stats.TotalPNL.Add(t.CurrencyPNL)
		stats.TotalCommission = stats.TotalCommission.Add(t.Commission)
	}
	return stats, nil
}

// --- ImportWriter Implementation ---

// PersistImportBatch writes one batch's trades, positions and markers in a
// single transaction. A partial failure rolls everything back, markers
// included, so the next import run retries the batch from scratch without
// double-persisting rows that made it in before the failure.
func (r *Repository) PersistImportBatch(ctx context.Context, trades []*domain.Trade, positions []*domain.Position, markers []*domain.ImportedExecution) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return &ports.StorageError{Op: "import batch", Err: err}
	}
	defer tx.Rollback()

	for _, t := range trades {
		if _, err := insertTrade(ctx, tx, t); err != nil {
			return &ports.StorageError{Op: "import batch: trade", Err: err}
		}
	}
	for _, p := range positions {
		if _, err := insertPosition(ctx, tx, p); err != nil {
			return &ports.StorageError{Op: "import batch: position", Err: err}
		}
	}
	for _, m := range markers {
		if err := insertMarker(ctx, tx, m); err != nil {
			return &ports.StorageError{Op: "import batch: marker", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &ports.StorageError{Op: "import batch: commit", Err: err}
	}
	r.logger.Debug(ctx, "Import batch persisted", map[string]interface{}{
		"trades":    len(trades),
		"positions": len(positions),
		"markers":   len(markers),
	})
	return nil
}

// insertMarker records a broker execution id inside a batch transaction.
// OR IGNORE: a concurrent run may have recorded the same id already; the
// marker has to exist, not to be ours.
func insertMarker(ctx context.Context, ex execer, marker *domain.ImportedExecution) error {
	const query = `
	INSERT OR IGNORE INTO imported_executions (broker_exec_id, source_file, imported_at, created_at)
	VALUES (?, ?, ?, ?)`

	createdAt := marker.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := ex.ExecContext(ctx, query, marker.BrokerExecID, marker.SourceFile, marker.ImportedAt, createdAt); err != nil {
		return fmt.Errorf("failed to insert execution marker %q: %w", marker.BrokerExecID, err)
	}
	marker.CreatedAt = createdAt
	return nil
}

// --- Helper Scan Functions ---

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const tradeSelect = `
	SELECT id, instrument, account, side, quantity, closed_quantity, peak_quantity, entry_time, exit_time,
	       entry_price, exit_price, points_pnl, currency_pnl, commission, link_group_id, status
	FROM trades`

func (r *Repository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, nil
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var (
		exitTime   sql.NullTime
		exitPrice  sql.NullString
		groupID    sql.NullInt64
		side       string
		status     string
		entryPrice string
		pointsPNL  string
		currPNL    string
		commission string
	)
	err := s.Scan(
		&t.ID, &t.Instrument, &t.Account, &side, &t.Quantity, &t.ClosedQuantity, &t.PeakQuantity,
		&t.EntryTime, &exitTime, &entryPrice, &exitPrice, &pointsPNL, &currPNL, &commission,
		&groupID, &status)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if exitTime.Valid {
		t.ExitTime = exitTime.Time
	}
	if groupID.Valid {
		t.LinkGroupID = groupID.Int64
	}
	t.Side = domain.MarketSide(side)
	t.Status = domain.RecordStatus(status)

	if t.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return nil, fmt.Errorf("corrupt entry_price %q: %w", entryPrice, err)
	}
	if exitPrice.Valid {
		if t.ExitPrice, err = decimal.NewFromString(exitPrice.String); err != nil {
			return nil, fmt.Errorf("corrupt exit_price %q: %w", exitPrice.String, err)
		}
	}
	if t.PointsPNL, err = decimal.NewFromString(pointsPNL); err != nil {
		return nil, fmt.Errorf("corrupt points_pnl %q: %w", pointsPNL, err)
	}
	if t.CurrencyPNL, err = decimal.NewFromString(currPNL); err != nil {
		return nil, fmt.Errorf("corrupt currency_pnl %q: %w", currPNL, err)
	}
	if t.Commission, err = decimal.NewFromString(commission); err != nil {
		return nil, fmt.Errorf("corrupt commission %q: %w", commission, err)
	}
	return t, nil
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var (
		endTime   sql.NullTime
		side      string
		status    string
		pointsPNL string
		currPNL   string
	)
	err := s.Scan(
		&p.ID, &p.Instrument, &p.Account, &side, &p.Quantity,
		&pointsPNL, &currPNL, &p.StartTime, &endTime, &status)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	if endTime.Valid {
		p.EndTime = endTime.Time
	}
	p.Side = domain.MarketSide(side)
	p.Status = domain.RecordStatus(status)

	if p.PointsPNL, err = decimal.NewFromString(pointsPNL); err != nil {
		return nil, fmt.Errorf("corrupt points_pnl %q: %w", pointsPNL, err)
	}
	if p.CurrencyPNL, err = decimal.NewFromString(currPNL); err != nil {
		return nil, fmt.Errorf("corrupt currency_pnl %q: %w", currPNL, err)
	}
	return p, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

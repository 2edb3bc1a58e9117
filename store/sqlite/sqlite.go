/*
Package sqlite provides a SQLite-backed implementation of tracking.TxStore.

PURPOSE:
  Persists jobs, products, per-worker inventory, per-job usage and the job
  audit log. In production the same patterns apply to PostgreSQL with minor
  SQL dialect differences.

KEY TABLES:
  jobs:                        Job aggregate (status + clock timestamps)
  products:                    Name / unit for log rendering
  employee_product_inventory:  On-hand quantity per (worker, product)
  job_product_usage:           Cumulative usage per (job, product)
  job_logs:                    Append-only audit trail

ENFORCED IN SCHEMA:
  - job_logs rejects UPDATE and DELETE (triggers)
  - jobs.clock_in_at cannot change once set (trigger)
  - jobs.clock_out_at requires clock_in_at (CHECK)
  - inventory quantity is stored as decimal text; negative values are
    rejected before they reach SQL

CONCURRENCY:
  SQLite allows one writer at a time, so transactions on different jobs
  still serialize here even though the coordinator's keyed locks would let
  them overlap. Every wait is bounded: BEGIN IMMEDIATE (_txlock=immediate)
  gives up after _busy_timeout, and an in-memory database (one pooled
  connection) gives up after BusyTimeout. Both end as a transaction error,
  which the coordinator reports as TransactionFailed.

USAGE:
  store, err := sqlite.New("./data/jobclock.db")
  if err != nil {
      log.Fatal().Err(err).Msg("open store")
  }
  defer store.Close()

  ctrl := tracking.NewController(store, tracking.SystemClock{}, 10*time.Second)
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/jobclock/tracking"
)

// Store implements tracking.TxStore using SQLite.
type Store struct {
	db *sql.DB

	// BusyTimeout bounds how long WithTx waits for a pooled connection.
	BusyTimeout time.Duration
}

const defaultBusyTimeout = 5 * time.Second

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to ":memory:" is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, BusyTimeout: defaultBusyTimeout}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		primary_worker_id TEXT NOT NULL,
		secondary_workers_json TEXT NOT NULL DEFAULT '[]',
		scheduled_start TEXT NOT NULL,
		scheduled_end TEXT,
		status TEXT NOT NULL,
		clock_in_at TEXT,
		clock_out_at TEXT,
		price TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (clock_out_at IS NULL OR clock_in_at IS NOT NULL)
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_primary_worker
		ON jobs(primary_worker_id);

	-- Clock-in time is immutable once set
	CREATE TRIGGER IF NOT EXISTS trg_jobs_clock_in_immutable
	BEFORE UPDATE OF clock_in_at ON jobs
	WHEN OLD.clock_in_at IS NOT NULL
	     AND (NEW.clock_in_at IS NULL OR NEW.clock_in_at <> OLD.clock_in_at)
	BEGIN
		SELECT RAISE(ABORT, 'clock_in_at is immutable');
	END;

	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS employee_product_inventory (
		worker_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (worker_id, product_id)
	);

	CREATE TABLE IF NOT EXISTS job_product_usage (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		inventory_before TEXT NOT NULL,
		inventory_after TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (job_id, product_id)
	);

	-- Append-only audit trail; seq gives creation order
	CREATE TABLE IF NOT EXISTS job_logs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		job_id TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		description TEXT NOT NULL,
		old_value TEXT,
		new_value TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_job_logs_job
		ON job_logs(job_id, seq);

	CREATE TRIGGER IF NOT EXISTS trg_job_logs_no_update
	BEFORE UPDATE ON job_logs
	BEGIN
		SELECT RAISE(ABORT, 'job_logs is append-only');
	END;

	CREATE TRIGGER IF NOT EXISTS trg_job_logs_no_delete
	BEFORE DELETE ON job_logs
	BEGIN
		SELECT RAISE(ABORT, 'job_logs is append-only');
	END;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (tracking.Store interface)
// =============================================================================

func (s *Store) GetJob(ctx context.Context, id tracking.JobID) (*tracking.Job, error) {
	return getJob(ctx, s.db, id)
}

func (s *Store) SaveJob(ctx context.Context, job tracking.Job) error {
	return saveJob(ctx, s.db, job)
}

func (s *Store) GetProduct(ctx context.Context, id tracking.ProductID) (*tracking.Product, error) {
	return getProduct(ctx, s.db, id)
}

func (s *Store) SaveProduct(ctx context.Context, p tracking.Product) error {
	return saveProduct(ctx, s.db, p)
}

func (s *Store) GetInventory(ctx context.Context, worker tracking.WorkerID, product tracking.ProductID) (*tracking.Inventory, error) {
	return getInventory(ctx, s.db, worker, product)
}

func (s *Store) SaveInventory(ctx context.Context, inv tracking.Inventory) error {
	return saveInventory(ctx, s.db, inv)
}

func (s *Store) ListInventory(ctx context.Context, worker tracking.WorkerID) ([]tracking.Inventory, error) {
	return listInventory(ctx, s.db, worker)
}

func (s *Store) GetUsage(ctx context.Context, job tracking.JobID, product tracking.ProductID) (*tracking.Usage, error) {
	return getUsage(ctx, s.db, job, product)
}

func (s *Store) SaveUsage(ctx context.Context, u tracking.Usage) error {
	return saveUsage(ctx, s.db, u)
}

func (s *Store) ListUsage(ctx context.Context, job tracking.JobID) ([]tracking.Usage, error) {
	return listUsage(ctx, s.db, job)
}

// AppendLog adds a log entry. This is the ONLY write to job_logs.
func (s *Store) AppendLog(ctx context.Context, e tracking.LogEntry) error {
	return appendLog(ctx, s.db, e)
}

func (s *Store) Logs(ctx context.Context, job tracking.JobID) ([]tracking.LogEntry, error) {
	return listLogs(ctx, s.db, job)
}

// =============================================================================
// TRANSACTIONAL STORE (tracking.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
// ctx governs the whole transaction; acquiring the connection is further
// bounded by BusyTimeout.
func (s *Store) WithTx(ctx context.Context, fn func(store tracking.Store) error) error {
	acquireCtx := ctx
	if s.BusyTimeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, s.BusyTimeout)
		defer cancel()
	}
	conn, err := s.db.Conn(acquireCtx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	sqlTx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// txStore routes every read and write through the open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetJob(ctx context.Context, id tracking.JobID) (*tracking.Job, error) {
	return getJob(ctx, ts.tx, id)
}

func (ts *txStore) SaveJob(ctx context.Context, job tracking.Job) error {
	return saveJob(ctx, ts.tx, job)
}

func (ts *txStore) GetProduct(ctx context.Context, id tracking.ProductID) (*tracking.Product, error) {
	return getProduct(ctx, ts.tx, id)
}

func (ts *txStore) SaveProduct(ctx context.Context, p tracking.Product) error {
	return saveProduct(ctx, ts.tx, p)
}

func (ts *txStore) GetInventory(ctx context.Context, worker tracking.WorkerID, product tracking.ProductID) (*tracking.Inventory, error) {
	return getInventory(ctx, ts.tx, worker, product)
}

func (ts *txStore) SaveInventory(ctx context.Context, inv tracking.Inventory) error {
	return saveInventory(ctx, ts.tx, inv)
}

func (ts *txStore) ListInventory(ctx context.Context, worker tracking.WorkerID) ([]tracking.Inventory, error) {
	return listInventory(ctx, ts.tx, worker)
}

func (ts *txStore) GetUsage(ctx context.Context, job tracking.JobID, product tracking.ProductID) (*tracking.Usage, error) {
	return getUsage(ctx, ts.tx, job, product)
}

func (ts *txStore) SaveUsage(ctx context.Context, u tracking.Usage) error {
	return saveUsage(ctx, ts.tx, u)
}

func (ts *txStore) ListUsage(ctx context.Context, job tracking.JobID) ([]tracking.Usage, error) {
	return listUsage(ctx, ts.tx, job)
}

func (ts *txStore) AppendLog(ctx context.Context, e tracking.LogEntry) error {
	return appendLog(ctx, ts.tx, e)
}

func (ts *txStore) Logs(ctx context.Context, job tracking.JobID) ([]tracking.LogEntry, error) {
	return listLogs(ctx, ts.tx, job)
}

// =============================================================================
// JOBS
// =============================================================================

func getJob(ctx context.Context, q querier, id tracking.JobID) (*tracking.Job, error) {
	query := `
		SELECT id, primary_worker_id, secondary_workers_json, scheduled_start, scheduled_end,
		       status, clock_in_at, clock_out_at, price, created_at, updated_at
		FROM jobs WHERE id = ?
	`

	var (
		job           tracking.Job
		secondaryJSON string
		start         string
		end           sql.NullString
		clockIn       sql.NullString
		clockOut      sql.NullString
		price         string
		createdAt     string
		updatedAt     string
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.PrimaryWorker, &secondaryJSON, &start, &end,
		&job.Status, &clockIn, &clockOut, &price, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tracking.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := json.Unmarshal([]byte(secondaryJSON), &job.SecondaryWorkers); err != nil {
		return nil, fmt.Errorf("failed to decode secondary workers for job %s: %w", id, err)
	}
	if job.ScheduledStart, err = parseTime(start); err != nil {
		return nil, fmt.Errorf("job %s scheduled_start: %w", id, err)
	}
	if job.ScheduledEnd, err = parseNullTime(end); err != nil {
		return nil, fmt.Errorf("job %s scheduled_end: %w", id, err)
	}
	if job.ClockInAt, err = parseNullTime(clockIn); err != nil {
		return nil, fmt.Errorf("job %s clock_in_at: %w", id, err)
	}
	if job.ClockOutAt, err = parseNullTime(clockOut); err != nil {
		return nil, fmt.Errorf("job %s clock_out_at: %w", id, err)
	}
	if job.Price, err = parseDecimal(price); err != nil {
		return nil, fmt.Errorf("job %s price: %w", id, err)
	}
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("job %s created_at: %w", id, err)
	}
	if job.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("job %s updated_at: %w", id, err)
	}
	return &job, nil
}

func saveJob(ctx context.Context, q querier, job tracking.Job) error {
	secondary := job.SecondaryWorkers
	if secondary == nil {
		secondary = []tracking.WorkerID{}
	}
	secondaryJSON, err := json.Marshal(secondary)
	if err != nil {
		return fmt.Errorf("failed to encode secondary workers: %w", err)
	}

	now := time.Now().UTC()
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := job.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO jobs (id, primary_worker_id, secondary_workers_json, scheduled_start, scheduled_end,
		                  status, clock_in_at, clock_out_at, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			primary_worker_id = excluded.primary_worker_id,
			secondary_workers_json = excluded.secondary_workers_json,
			scheduled_start = excluded.scheduled_start,
			scheduled_end = excluded.scheduled_end,
			status = excluded.status,
			clock_in_at = excluded.clock_in_at,
			clock_out_at = excluded.clock_out_at,
			price = excluded.price,
			updated_at = excluded.updated_at
	`
	_, err = q.ExecContext(ctx, query,
		job.ID,
		job.PrimaryWorker,
		string(secondaryJSON),
		formatTime(job.ScheduledStart),
		formatNullTime(job.ScheduledEnd),
		job.Status,
		formatNullTime(job.ClockInAt),
		formatNullTime(job.ClockOutAt),
		job.Price.String(),
		formatTime(createdAt),
		formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// =============================================================================
// PRODUCTS & INVENTORY
// =============================================================================

func getProduct(ctx context.Context, q querier, id tracking.ProductID) (*tracking.Product, error) {
	var p tracking.Product
	err := q.QueryRowContext(ctx, `SELECT id, name, unit FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Unit)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func saveProduct(ctx context.Context, q querier, p tracking.Product) error {
	query := `
		INSERT INTO products (id, name, unit) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, unit = excluded.unit
	`
	if _, err := q.ExecContext(ctx, query, p.ID, p.Name, p.Unit); err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return nil
}

func getInventory(ctx context.Context, q querier, worker tracking.WorkerID, product tracking.ProductID) (*tracking.Inventory, error) {
	query := `
		SELECT worker_id, product_id, quantity, updated_at
		FROM employee_product_inventory
		WHERE worker_id = ? AND product_id = ?
	`
	rows, err := q.QueryContext(ctx, query, worker, product)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	inv, err := scanInventory(rows)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func listInventory(ctx context.Context, q querier, worker tracking.WorkerID) ([]tracking.Inventory, error) {
	query := `
		SELECT worker_id, product_id, quantity, updated_at
		FROM employee_product_inventory
		WHERE worker_id = ?
		ORDER BY product_id ASC
	`
	rows, err := q.QueryContext(ctx, query, worker)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var out []tracking.Inventory
	for rows.Next() {
		inv, err := scanInventory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func scanInventory(rows *sql.Rows) (tracking.Inventory, error) {
	var (
		inv       tracking.Inventory
		quantity  string
		updatedAt string
	)
	if err := rows.Scan(&inv.WorkerID, &inv.ProductID, &quantity, &updatedAt); err != nil {
		return inv, fmt.Errorf("failed to scan inventory: %w", err)
	}
	var err error
	if inv.Quantity, err = parseDecimal(quantity); err != nil {
		return inv, fmt.Errorf("inventory %s/%s quantity: %w", inv.WorkerID, inv.ProductID, err)
	}
	if inv.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return inv, fmt.Errorf("inventory %s/%s updated_at: %w", inv.WorkerID, inv.ProductID, err)
	}
	return inv, nil
}

func saveInventory(ctx context.Context, q querier, inv tracking.Inventory) error {
	if inv.Quantity.IsNegative() {
		return fmt.Errorf("inventory %s/%s: %w", inv.WorkerID, inv.ProductID, tracking.ErrInvalidQuantity)
	}
	updatedAt := inv.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO employee_product_inventory (worker_id, product_id, quantity, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(worker_id, product_id) DO UPDATE SET
			quantity = excluded.quantity,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query, inv.WorkerID, inv.ProductID, inv.Quantity.String(), formatTime(updatedAt))
	if err != nil {
		return fmt.Errorf("failed to save inventory: %w", err)
	}
	return nil
}

// =============================================================================
// USAGE
// =============================================================================

const usageColumns = `id, job_id, product_id, quantity, inventory_before, inventory_after, created_at, updated_at`

func getUsage(ctx context.Context, q querier, job tracking.JobID, product tracking.ProductID) (*tracking.Usage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM job_product_usage WHERE job_id = ? AND product_id = ?`,
		job, product)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	u, err := scanUsage(rows)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func listUsage(ctx context.Context, q querier, job tracking.JobID) ([]tracking.Usage, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM job_product_usage WHERE job_id = ? ORDER BY product_id ASC`,
		job)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	defer rows.Close()

	var out []tracking.Usage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUsage(rows *sql.Rows) (tracking.Usage, error) {
	var (
		u                       tracking.Usage
		quantity, before, after string
		createdAt, updatedAt    string
	)
	err := rows.Scan(&u.ID, &u.JobID, &u.ProductID, &quantity, &before, &after, &createdAt, &updatedAt)
	if err != nil {
		return u, fmt.Errorf("failed to scan usage: %w", err)
	}
	if u.Quantity, err = parseDecimal(quantity); err != nil {
		return u, fmt.Errorf("usage %s quantity: %w", u.ID, err)
	}
	if u.InventoryBefore, err = parseDecimal(before); err != nil {
		return u, fmt.Errorf("usage %s inventory_before: %w", u.ID, err)
	}
	if u.InventoryAfter, err = parseDecimal(after); err != nil {
		return u, fmt.Errorf("usage %s inventory_after: %w", u.ID, err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, fmt.Errorf("usage %s created_at: %w", u.ID, err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return u, fmt.Errorf("usage %s updated_at: %w", u.ID, err)
	}
	return u, nil
}

func saveUsage(ctx context.Context, q querier, u tracking.Usage) error {
	query := `
		INSERT INTO job_product_usage (` + usageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id, product_id) DO UPDATE SET
			quantity = excluded.quantity,
			inventory_before = excluded.inventory_before,
			inventory_after = excluded.inventory_after,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		u.ID, u.JobID, u.ProductID,
		u.Quantity.String(), u.InventoryBefore.String(), u.InventoryAfter.String(),
		formatTime(u.CreatedAt), formatTime(u.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save usage: %w", err)
	}
	return nil
}

// =============================================================================
// JOB LOGS (append-only)
// =============================================================================

func appendLog(ctx context.Context, q querier, e tracking.LogEntry) error {
	query := `
		INSERT INTO job_logs (id, job_id, actor_id, action, description, old_value, new_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID, e.JobID, e.ActorID, e.Action, e.Description,
		nullStringPtr(e.OldValue), nullStringPtr(e.NewValue),
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append job log: %w", err)
	}
	return nil
}

func listLogs(ctx context.Context, q querier, job tracking.JobID) ([]tracking.LogEntry, error) {
	query := `
		SELECT seq, id, job_id, actor_id, action, description, old_value, new_value, created_at
		FROM job_logs
		WHERE job_id = ?
		ORDER BY seq ASC
	`
	rows, err := q.QueryContext(ctx, query, job)
	if err != nil {
		return nil, fmt.Errorf("failed to query job logs: %w", err)
	}
	defer rows.Close()

	var out []tracking.LogEntry
	for rows.Next() {
		var (
			e         tracking.LogEntry
			oldValue  sql.NullString
			newValue  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.JobID, &e.ActorID, &e.Action, &e.Description,
			&oldValue, &newValue, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job log: %w", err)
		}
		if oldValue.Valid {
			e.OldValue = &oldValue.String
		}
		if newValue.Valid {
			e.NewValue = &newValue.String
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("job log %s created_at: %w", e.ID, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// Stored values are written by this package only; a value that fails to
// parse is corruption and must not read back as a zero value.

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements every persistence interface (admission.TxStore, review.Store,
  accounts.Store) plus the reference-data and listing queries used by the
  HTTP layer. The same schema ports to PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  admission.TxStore: Daily/monthly reads, request insert, WithTx
  review.Store:      Request details, listings, conditional status update
  accounts.Store:    CHW/CHA accounts

KEY TABLES:
  chus:        Community health units (reference data)
  commodities: Requestable items (reference data)
  chas:        Assistants, optionally bound to a CHU
  chws:        Workers, with the CHA assigned at signup
  requests:    Commodity requests; never deleted

INDEXES:
  - idx_unique_daily_request: One request per (chw, commodity, day). Holds
    even for writers that bypass the admission engine.
  - idx_requests_status: Pending queues

DAY COLUMN:
  requests.request_day stores the server-local calendar date computed by the
  engine. SQLite's DATE() would convert RFC3339 offsets to UTC and could
  move a late-evening request to the next day, so the day is never derived
  in SQL.

CONCURRENCY:
  One connection and a sync.RWMutex. WithTx holds the write lock for the
  whole function, which serializes check-then-insert across goroutines.

USAGE:
  store, err := sqlite.New("./data/commodity.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - admission/store.go: Admission contract
  - admission/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chwlink/commodity-engine/accounts"
	"github.com/chwlink/commodity-engine/admission"
	"github.com/chwlink/commodity-engine/review"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex

	// txSlot admits one WithTx at a time. Waiting for it honours the
	// caller's context, unlike mu.
	txSlot chan struct{}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and matches
	// SQLite's single-writer model.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, txSlot: make(chan struct{}, 1)}
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

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chus (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		county TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS commodities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS chas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		chu_id INTEGER REFERENCES chus(id),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chas_chu ON chas(chu_id);

	CREATE TABLE IF NOT EXISTS chws (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		chu_id INTEGER NOT NULL REFERENCES chus(id),
		cha_id INTEGER REFERENCES chas(id),
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		rejected BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chws_cha ON chws(cha_id);

	CREATE TABLE IF NOT EXISTS requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chw_id INTEGER NOT NULL REFERENCES chws(id),
		commodity_id INTEGER NOT NULL REFERENCES commodities(id),
		quantity INTEGER NOT NULL CHECK (quantity BETWEEN 1 AND 99),
		request_date TEXT NOT NULL,
		request_day TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Pending'
			CHECK (status IN ('Pending', 'Approved', 'Rejected'))
	);

	-- One request per CHW per commodity per calendar day.
	-- Also serves the daily and monthly lookups.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_daily_request
		ON requests(chw_id, commodity_id, request_day);

	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status, request_date DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ADMISSION STORE (admission.Store interface)
// =============================================================================

// ExistsRequestForDay reports whether the pair has a request on day.
func (s *Store) ExistsRequestForDay(ctx context.Context, chwID, commodityID int64, day admission.Day) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existsRequestForDay(ctx, s.db, chwID, commodityID, day)
}

// SumQuantityForMonth sums the pair's quantities from monthStart onward.
func (s *Store) SumQuantityForMonth(ctx context.Context, chwID, commodityID int64, monthStart admission.Day) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sumQuantityForMonth(ctx, s.db, chwID, commodityID, monthStart)
}

// InsertRequest persists an admitted request.
func (s *Store) InsertRequest(ctx context.Context, req admission.NewRequest) (admission.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRequest(ctx, s.db, req)
}

func existsRequestForDay(ctx context.Context, q querier, chwID, commodityID int64, day admission.Day) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM requests
		WHERE chw_id = ? AND commodity_id = ? AND request_day = ?
	`, chwID, commodityID, day.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check daily request: %w", err)
	}
	return count > 0, nil
}

func sumQuantityForMonth(ctx context.Context, q querier, chwID, commodityID int64, monthStart admission.Day) (int, error) {
	var total int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0) FROM requests
		WHERE chw_id = ? AND commodity_id = ? AND request_day >= ?
	`, chwID, commodityID, monthStart.String()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum monthly quantity: %w", err)
	}
	return total, nil
}

func insertRequest(ctx context.Context, q querier, req admission.NewRequest) (admission.Request, error) {
	res, err := q.ExecContext(ctx, `
		INSERT INTO requests (chw_id, commodity_id, quantity, request_date, request_day, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		req.CHWID,
		req.CommodityID,
		req.Quantity,
		req.RequestDate.Format(time.RFC3339Nano),
		admission.DayOf(req.RequestDate).String(),
		string(req.Status),
	)
	if err != nil {
		if isDailyUniquenessError(err) {
			return admission.Request{}, admission.ErrDuplicateForDay
		}
		if isForeignKeyError(err) {
			return admission.Request{}, admission.ErrUnknownReference
		}
		return admission.Request{}, fmt.Errorf("failed to insert request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return admission.Request{}, fmt.Errorf("failed to read request id: %w", err)
	}

	return admission.Request{
		ID:          id,
		CHWID:       req.CHWID,
		CommodityID: req.CommodityID,
		Quantity:    req.Quantity,
		RequestDate: req.RequestDate,
		Status:      req.Status,
	}, nil
}

// =============================================================================
// TRANSACTIONAL STORE (admission.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction while holding the
// store's write lock. It returns ctx.Err() if ctx ends while another
// transaction is still running.
func (s *Store) WithTx(ctx context.Context, fn func(store admission.Store) error) error {
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.txSlot }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) ExistsRequestForDay(ctx context.Context, chwID, commodityID int64, day admission.Day) (bool, error) {
	return existsRequestForDay(ctx, ts.tx, chwID, commodityID, day)
}

func (ts *txStore) SumQuantityForMonth(ctx context.Context, chwID, commodityID int64, monthStart admission.Day) (int, error) {
	return sumQuantityForMonth(ctx, ts.tx, chwID, commodityID, monthStart)
}

func (ts *txStore) InsertRequest(ctx context.Context, req admission.NewRequest) (admission.Request, error) {
	return insertRequest(ctx, ts.tx, req)
}

// =============================================================================
// REVIEW STORE (review.Store interface)
// =============================================================================

const requestDetailSelect = `
	SELECT r.id, r.chw_id, r.commodity_id, r.quantity, r.request_date, r.status,
	       chw.name, chw.cha_id, COALESCE(cha.name, ''), c.name
	FROM requests r
	JOIN chws chw ON r.chw_id = chw.id
	LEFT JOIN chas cha ON chw.cha_id = cha.id
	JOIN commodities c ON r.commodity_id = c.id
`

// GetRequestDetail returns a request with its owner and commodity, or nil.
func (s *Store) GetRequestDetail(ctx context.Context, id int64) (*review.RequestDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	details, err := s.queryRequestDetails(ctx, requestDetailSelect+" WHERE r.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, nil
	}
	return &details[0], nil
}

// ListRequests returns requests matching f, newest first.
func (s *Store) ListRequests(ctx context.Context, f review.Filter) ([]review.RequestDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.CHWID != 0 {
		where = append(where, "r.chw_id = ?")
		args = append(args, f.CHWID)
	}
	if f.CHAID != 0 {
		where = append(where, "chw.cha_id = ?")
		args = append(args, f.CHAID)
	}
	if f.CommodityID != 0 {
		where = append(where, "r.commodity_id = ?")
		args = append(args, f.CommodityID)
	}

	query := requestDetailSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = review.DefaultLimit
	}
	query += " ORDER BY r.request_date DESC, r.id DESC LIMIT ?"
	args = append(args, limit)

	return s.queryRequestDetails(ctx, query, args...)
}

// UpdateRequestStatus changes a request's status only if it is still `from`.
func (s *Store) UpdateRequestStatus(ctx context.Context, id int64, from, to admission.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE requests SET status = ? WHERE id = ? AND status = ?",
		string(to), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update request status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) queryRequestDetails(ctx context.Context, query string, args ...any) ([]review.RequestDetail, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var details []review.RequestDetail
	for rows.Next() {
		var (
			d           review.RequestDetail
			requestDate string
			status      string
			chaID       sql.NullInt64
		)
		if err := rows.Scan(
			&d.ID, &d.CHWID, &d.CommodityID, &d.Quantity, &requestDate, &status,
			&d.CHWName, &chaID, &d.CHAName, &d.CommodityName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		d.RequestDate, _ = time.Parse(time.RFC3339Nano, requestDate)
		d.Status = admission.Status(status)
		d.CHAID = nullInt64Ptr(chaID)
		details = append(details, d)
	}
	return details, rows.Err()
}

// =============================================================================
// ACCOUNT STORE (accounts.Store interface)
// =============================================================================

// CHUExists reports whether a unit with the id exists.
func (s *Store) CHUExists(ctx context.Context, chuID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chus WHERE id = ?", chuID).Scan(&count)
	return count > 0, err
}

// GetCHWByEmail retrieves a CHW by email, or nil.
func (s *Store) GetCHWByEmail(ctx context.Context, email string) (*accounts.CHW, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		chw       accounts.CHW
		chaID     sql.NullInt64
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, chu_id, cha_id, approved, rejected, created_at
		FROM chws WHERE email = ?
	`, email).Scan(&chw.ID, &chw.Name, &chw.Email, &chw.PasswordHash, &chw.CHUID,
		&chaID, &chw.Approved, &chw.Rejected, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	chw.CHAID = nullInt64Ptr(chaID)
	chw.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &chw, nil
}

// CreateCHW inserts a CHW and returns it with its ID.
func (s *Store) CreateCHW(ctx context.Context, chw accounts.CHW) (accounts.CHW, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chw.CreatedAt.IsZero() {
		chw.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chws (name, email, password_hash, chu_id, cha_id, approved, rejected, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, chw.Name, chw.Email, chw.PasswordHash, chw.CHUID, int64PtrArg(chw.CHAID),
		chw.Approved, chw.Rejected, chw.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return accounts.CHW{}, accounts.ErrEmailTaken
		}
		return accounts.CHW{}, fmt.Errorf("failed to create chw: %w", err)
	}

	chw.ID, err = res.LastInsertId()
	return chw, err
}

// SetCHWApproval sets approved to approve and rejected to its negation.
func (s *Store) SetCHWApproval(ctx context.Context, chwID int64, approve bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE chws SET approved = ?, rejected = ? WHERE id = ?",
		approve, !approve, chwID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update chw approval: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// FirstCHAInCHU returns the lowest CHA id in the unit, or nil if none.
func (s *Store) FirstCHAInCHU(ctx context.Context, chuID int64) (*int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM chas WHERE chu_id = ? ORDER BY id LIMIT 1", chuID,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// GetCHAByEmail retrieves a CHA by email, or nil.
func (s *Store) GetCHAByEmail(ctx context.Context, email string) (*accounts.CHA, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		cha       accounts.CHA
		chuID     sql.NullInt64
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, chu_id, created_at FROM chas WHERE email = ?",
		email,
	).Scan(&cha.ID, &cha.Name, &cha.Email, &cha.PasswordHash, &chuID, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cha.CHUID = nullInt64Ptr(chuID)
	cha.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &cha, nil
}

// CreateCHA inserts a CHA and returns it with its ID.
func (s *Store) CreateCHA(ctx context.Context, cha accounts.CHA) (accounts.CHA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cha.CreatedAt.IsZero() {
		cha.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO chas (name, email, password_hash, chu_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, cha.Name, cha.Email, cha.PasswordHash, int64PtrArg(cha.CHUID), cha.CreatedAt.Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return accounts.CHA{}, accounts.ErrEmailTaken
		}
		return accounts.CHA{}, fmt.Errorf("failed to create cha: %w", err)
	}

	cha.ID, err = res.LastInsertId()
	return cha, err
}

// UpdateCHAPassword replaces the password hash of the CHA with email.
func (s *Store) UpdateCHAPassword(ctx context.Context, email, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE chas SET password_hash = ? WHERE email = ?", passwordHash, email,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update cha password: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// CHU is a community health unit.
type CHU struct {
	ID     int64
	Name   string
	County string
}

// Commodity is a requestable item.
type Commodity struct {
	ID   int64
	Name string
}

// SaveCHU inserts a unit or updates the county of an existing one with the
// same name. Returns the unit's ID.
func (s *Store) SaveCHU(ctx context.Context, chu CHU) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO chus (name, county) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET county = excluded.county
		RETURNING id
	`, chu.Name, chu.County).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save chu: %w", err)
	}
	return id, nil
}

// ListCHUs returns all units ordered by id.
func (s *Store) ListCHUs(ctx context.Context) ([]CHU, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, county FROM chus ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chus []CHU
	for rows.Next() {
		var c CHU
		if err := rows.Scan(&c.ID, &c.Name, &c.County); err != nil {
			return nil, err
		}
		chus = append(chus, c)
	}
	return chus, rows.Err()
}

// SaveCommodity inserts a commodity if its name is new. Returns its ID.
func (s *Store) SaveCommodity(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO commodities (name) VALUES (?)
		ON CONFLICT(name) DO UPDATE SET name = excluded.name
		RETURNING id
	`, name).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to save commodity: %w", err)
	}
	return id, nil
}

// ListCommodities returns all commodities ordered by id.
func (s *Store) ListCommodities(ctx context.Context) ([]Commodity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM commodities ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commodities []Commodity
	for rows.Next() {
		var c Commodity
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		commodities = append(commodities, c)
	}
	return commodities, rows.Err()
}

// =============================================================================
// CHW LISTINGS
// =============================================================================

// CHWSummary is a CHW row for listings. Credentials are never loaded.
type CHWSummary struct {
	ID       int64
	Name     string
	Email    string
	CHUID    int64
	CHAID    *int64
	CHAName  string
	Approved bool
	Rejected bool
}

// ListCHWs returns every CHW, newest first (admin approval queue).
func (s *Store) ListCHWs(ctx context.Context) ([]CHWSummary, error) {
	return s.queryCHWs(ctx, "ORDER BY chw.id DESC")
}

// ListApprovedCHWs returns approved CHWs ordered by name.
func (s *Store) ListApprovedCHWs(ctx context.Context) ([]CHWSummary, error) {
	return s.queryCHWs(ctx, "WHERE chw.approved = TRUE ORDER BY chw.name ASC")
}

// ListCHWsWithCHA returns CHWs that have a supervising CHA.
func (s *Store) ListCHWsWithCHA(ctx context.Context) ([]CHWSummary, error) {
	return s.queryCHWs(ctx, "WHERE chw.cha_id IS NOT NULL ORDER BY chw.id")
}

func (s *Store) queryCHWs(ctx context.Context, tail string) ([]CHWSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT chw.id, chw.name, chw.email, chw.chu_id, chw.cha_id, COALESCE(cha.name, ''),
		       chw.approved, chw.rejected
		FROM chws chw
		LEFT JOIN chas cha ON chw.cha_id = cha.id
	`+tail)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chws []CHWSummary
	for rows.Next() {
		var (
			c     CHWSummary
			chaID sql.NullInt64
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.CHUID, &chaID, &c.CHAName, &c.Approved, &c.Rejected); err != nil {
			return nil, err
		}
		c.CHAID = nullInt64Ptr(chaID)
		chws = append(chws, c)
	}
	return chws, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"requests", "chws", "chas", "commodities", "chus"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func int64PtrArg(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

// isDailyUniquenessError matches the (chw, commodity, day) index. SQLite
// names the columns rather than the index in its message.
func isDailyUniquenessError(err error) bool {
	return isUniqueConstraintError(err) &&
		(strings.Contains(err.Error(), "idx_unique_daily_request") ||
			strings.Contains(err.Error(), "requests.request_day"))
}

func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

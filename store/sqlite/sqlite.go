/*
Package sqlite provides the SQLite-backed implementation of salon.Store.

PURPOSE:
  Persists bookings, booking items, staff profiles, the stylist rotation,
  attendance and payroll. Every write that depends on prior state is a
  compare-and-set UPDATE so concurrent writers cannot both succeed.

KEY TABLES:
  bookings:      One row per appointment; token_seq unique per booking_date
  booking_items: Service snapshots (name, price, duration) per booking
  staff:         Stylist profile with wallet_balance (TEXT decimal)
  staff_queue:   The "next available" rotation, ordered by joined_at, seq
  attendance:    One check-in per employee per day, with is_late
  payroll:       One record per employee per month

INDEXES:
  - idx_bookings_date_token:     Token uniqueness backstop (UNIQUE)
  - idx_bookings_employee_date:  Overlap checks (hot path)
  - idx_payroll_employee_month:  Payroll idempotency (UNIQUE)

CONCURRENCY:
  A sync.RWMutex serializes WithTx against readers, and the pool holds a
  single connection so ":memory:" databases are shared by every caller.
  Inside WithTx all work goes through the transaction handle, never the
  Store, so the lock is never re-entered.

USAGE:
  store, err := sqlite.New("./data/salon.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  err = store.WithTx(ctx, func(tx salon.Tx) error {
      seq, err := tx.NextTokenSeq(ctx, day)
      ...
  })

SEE ALSO:
  - salon/store.go: Interface definitions
  - queries.go: SQL for each operation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/salon-engine/salon"
)

// Store implements salon.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	q  queries
}

var _ salon.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: queries{db: db}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		job_title TEXT NOT NULL,
		commission_rate TEXT NOT NULL,
		wallet_balance TEXT NOT NULL DEFAULT '0',
		is_available BOOLEAN NOT NULL DEFAULT 1,
		base_salary TEXT NOT NULL,
		shift_start INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		customer_id TEXT,
		guest_name TEXT NOT NULL DEFAULT '',
		guest_phone TEXT NOT NULL DEFAULT '',
		is_walk_in BOOLEAN NOT NULL DEFAULT 0,
		employee_id TEXT REFERENCES staff(id) ON DELETE SET NULL,
		booking_date TEXT NOT NULL,
		booking_time INTEGER NOT NULL,
		status TEXT NOT NULL,
		token_seq INTEGER NOT NULL,
		is_rescheduled BOOLEAN NOT NULL DEFAULT 0,
		estimated_start TEXT,
		estimated_end TEXT,
		actual_start TEXT,
		actual_end TEXT,
		total_price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Two bookings on one day can never share a token
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_date_token
		ON bookings(booking_date, token_seq);
	CREATE INDEX IF NOT EXISTS idx_bookings_employee_date
		ON bookings(employee_id, booking_date, status);
	CREATE INDEX IF NOT EXISTS idx_bookings_customer
		ON bookings(customer_id);

	CREATE TABLE IF NOT EXISTS booking_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id TEXT NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
		service_id TEXT NOT NULL,
		service_name TEXT NOT NULL,
		price TEXT NOT NULL,
		duration_minutes INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_booking_items_booking
		ON booking_items(booking_id);

	CREATE TABLE IF NOT EXISTS staff_queue (
		employee_id TEXT PRIMARY KEY REFERENCES staff(id) ON DELETE CASCADE,
		joined_at TEXT NOT NULL,
		seq INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendance (
		employee_id TEXT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		check_in TEXT NOT NULL,
		is_late BOOLEAN NOT NULL DEFAULT 0,
		PRIMARY KEY (employee_id, date)
	);

	CREATE TABLE IF NOT EXISTS payroll (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
		month TEXT NOT NULL,
		base_salary TEXT NOT NULL,
		commission_earned TEXT NOT NULL,
		deductions TEXT NOT NULL,
		total_salary TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Generating payroll twice for a month must never produce a second record
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payroll_employee_month
		ON payroll(employee_id, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx runs fn inside a database transaction. fn must only use the
// salon.Tx it is given; returning an error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(tx salon.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// READ OPERATIONS (outside a transaction)
// =============================================================================

func (s *Store) GetBooking(ctx context.Context, id salon.BookingID) (*salon.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetBooking(ctx, id)
}

func (s *Store) ListBookings(ctx context.Context, f salon.BookingFilter) ([]salon.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListBookings(ctx, f)
}

func (s *Store) GetService(ctx context.Context, id salon.ServiceID) (*salon.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetService(ctx, id)
}

func (s *Store) ListServices(ctx context.Context) ([]salon.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListServices(ctx)
}

func (s *Store) GetStaff(ctx context.Context, id salon.EmployeeID) (*salon.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetStaff(ctx, id)
}

func (s *Store) GetStaffByUser(ctx context.Context, user salon.UserID) (*salon.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.GetStaffByUser(ctx, user)
}

func (s *Store) ListStaff(ctx context.Context) ([]salon.StaffProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListStaff(ctx)
}

func (s *Store) ListQueue(ctx context.Context) ([]salon.QueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListQueue(ctx)
}

func (s *Store) ListPayroll(ctx context.Context, employee *salon.EmployeeID) ([]salon.PayrollRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.ListPayroll(ctx, employee)
}

func (s *Store) PayrollExists(ctx context.Context, employee salon.EmployeeID, month time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.PayrollExists(ctx, employee, month)
}

func (s *Store) CountLate(ctx context.Context, employee salon.EmployeeID, month time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.CountLate(ctx, employee, month)
}

// =============================================================================
// CATALOG, ATTENDANCE, ADMIN
// =============================================================================

// SaveService inserts or replaces a catalog entry.
func (s *Store) SaveService(ctx context.Context, svc *salon.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, name, price, duration_minutes, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price = excluded.price,
			duration_minutes = excluded.duration_minutes,
			is_active = excluded.is_active
	`, string(svc.ID), svc.Name, svc.Price.String(), svc.DurationMinutes, svc.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

// RecordAttendance stores a check-in. A second check-in for the same day
// returns salon.ErrDuplicate.
func (s *Store) RecordAttendance(ctx context.Context, a *salon.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (employee_id, date, check_in, is_late)
		VALUES (?, ?, ?, ?)
	`, string(a.EmployeeID), salon.FormatDate(a.Date), formatTime(a.CheckIn), a.IsLate)
	if isUniqueConstraintError(err) {
		return fmt.Errorf("attendance for %s on %s: %w", a.EmployeeID, salon.FormatDate(a.Date), salon.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("failed to record attendance: %w", err)
	}
	return nil
}

// Reset deletes all data. Used by scenario loading.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payroll", "attendance", "staff_queue", "booking_items", "bookings", "staff", "services"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width UTC so stored instants sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const monthLayout = "2006-01"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func scanNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

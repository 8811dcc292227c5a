/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence contract the engine consumes using
  SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  attendance.EventStore:  Append-only punch log with the gated check-in
  attendance.UnlockStore: Unlock grants and the gate's counting queries
  geo.LocationRegistry:   Geofence pool and per-user assignments
  violation.Sink:         Out-of-zone punch records
  overtime.BankStore:     Monthly comp-off credit bank
  leave.UsageSource:      Approved leave usage per category

APPEND-ONLY ENFORCEMENT:
  The event store enforces append-only semantics:
  - No UPDATE statements on attendance_events
  - No DELETE statements on attendance_events
  - Derived state is recomputed from the log on every read

THE GATED CHECK-IN:
  AppendCheckInGated runs the day's check-in count, the approved unlock
  count, and the insert in one transaction. Two devices racing the same
  user-day serialize on the store's write mutex (the pool holds a single
  connection); the loser re-reads the counts and is rejected by the gate.

KEY TABLES:
  attendance_events:    Immutable punch log
  unlock_requests:      Punch-cycle unlock grants (single transition)
  locations:            Geofence pool
  location_assignments: User-to-location links
  violations:           Out-of-zone punch recordsstamped by month
  compoff_bank:         One credit row per user-month (idempotent)
  compoff_consumption:  Credit spends tied to their leave request
  leave_usage:          Approved leave amounts per category
  employees:            Entity records with role for settings resolution

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/attendance.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - attendance/store.go: Interface definitions
  - store/memory/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/geo"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/violation"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent (every
	// pooled connection would otherwise open its own) and sidesteps
	// SQLITE_BUSY under write contention.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Attendance events (append-only punch log)
	CREATE TABLE IF NOT EXISTS attendance_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		ts TEXT NOT NULL,
		event_type TEXT NOT NULL,
		work_type TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		location_id TEXT,
		location_name TEXT,
		is_overtime BOOLEAN NOT NULL DEFAULT FALSE,
		note TEXT,
		attachment_ref TEXT,
		created_at TEXT NOT NULL
	);

	-- Hot path: the day reduction and the gate count
	CREATE INDEX IF NOT EXISTS idx_events_user_ts
		ON attendance_events(user_id, ts);
	CREATE INDEX IF NOT EXISTS idx_events_user_day_type
		ON attendance_events(user_id, DATE(ts), event_type);

	-- Unlock grants (single transition: pending -> approved/rejected)
	CREATE TABLE IF NOT EXISTS unlock_requests (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		grant_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		decided_by TEXT,
		decided_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_unlocks_user_date
		ON unlock_requests(user_id, grant_date);

	-- Geofence pool
	CREATE TABLE IF NOT EXISTS locations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		radius_meters REAL NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS location_assignments (
		user_id TEXT NOT NULL,
		location_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (user_id, location_id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_user
		ON location_assignments(user_id);

	-- Out-of-zone punches, stamped with their month key for the
	-- monthly count policies
	CREATE TABLE IF NOT EXISTS violations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		violation_date TEXT NOT NULL,
		violation_month TEXT NOT NULL,
		attempted_lat REAL NOT NULL,
		attempted_lng REAL NOT NULL,
		location_name TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_violations_month
		ON violations(violation_month, user_id);

	-- Comp-off bank: one row per user-month makes re-banking a no-op
	CREATE TABLE IF NOT EXISTS compoff_bank (
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		credits INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (user_id, month)
	);

	CREATE TABLE IF NOT EXISTS compoff_consumption (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		credits INTEGER NOT NULL,
		reference_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_compoff_consumption_user
		ON compoff_consumption(user_id);

	-- Approved leave usage per category
	CREATE TABLE IF NOT EXISTS leave_usage (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category TEXT NOT NULL,
		amount TEXT NOT NULL,
		used_on TEXT NOT NULL,
		reference_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_usage_user_category
		ON leave_usage(user_id, category, used_on);

	-- Employees (entities)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (attendance.EventStore interface)
// =============================================================================

// AppendEvent adds a punch to the log.
func (s *Store) AppendEvent(ctx context.Context, ev attendance.AttendanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertEvent(ctx, s.db, ev)
}

// AppendCheckInGated persists an office check-in only if the punch-cycle
// gate admits it. The gate counts and the insert run in one transaction;
// the write lock plus the single-connection pool serialize concurrent
// punches for the same user-day.
func (s *Store) AppendCheckInGated(ctx context.Context, ev attendance.AttendanceEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	day := attendance.DayOf(ev.Timestamp).Format("2006-01-02")

	var punches int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM attendance_events
		WHERE user_id = ? AND DATE(ts) = ?
		  AND event_type = ? AND work_type = ?
	`, ev.UserID, day, attendance.EventCheckIn, attendance.WorkOffice).Scan(&punches)
	if err != nil {
		return 0, fmt.Errorf("failed to count check-ins: %w", err)
	}

	var approved int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM unlock_requests
		WHERE user_id = ? AND grant_date = ? AND status = 'approved'
	`, ev.UserID, day).Scan(&approved)
	if err != nil {
		return 0, fmt.Errorf("failed to count unlocks: %w", err)
	}

	if !attendance.CanPunchIn(punches, approved) {
		return 0, attendance.NewPunchCycleViolation(punches, approved)
	}

	cycle := punches + 1
	if cycle > 1 {
		ev.IsOvertime = true
	}
	if err := s.insertEvent(ctx, tx, ev); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit check-in: %w", err)
	}
	return cycle, nil
}

func (s *Store) insertEvent(ctx context.Context, db execer, ev attendance.AttendanceEvent) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO attendance_events
		(id, user_id, ts, event_type, work_type, latitude, longitude,
		 location_id, location_name, is_overtime, note, attachment_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID,
		ev.UserID,
		ev.Timestamp.UTC().Format(time.RFC3339),
		ev.Type,
		ev.WorkType,
		nullFloat(ev.Latitude),
		nullFloat(ev.Longitude),
		nullString(ev.LocationID),
		nullString(ev.LocationName),
		ev.IsOvertime,
		nullString(ev.Note),
		nullString(ev.AttachmentRef),
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListEventsForUserInRange returns events with timestamp in [start, end),
// ordered by timestamp then insertion.
func (s *Store) ListEventsForUserInRange(ctx context.Context, userID string, start, end time.Time) ([]attendance.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, ts, rowid, event_type, work_type, latitude, longitude,
		       location_id, location_name, is_overtime, note, attachment_ref, created_at
		FROM attendance_events
		WHERE user_id = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, rowid ASC
	`

	return s.queryEvents(ctx, query, userID,
		start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
}

// ListEventsForUserDay returns the user's events for one UTC day.
func (s *Store) ListEventsForUserDay(ctx context.Context, userID string, day time.Time) ([]attendance.AttendanceEvent, error) {
	start := attendance.DayOf(day)
	return s.ListEventsForUserInRange(ctx, userID, start, start.AddDate(0, 0, 1))
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]attendance.AttendanceEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []attendance.AttendanceEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (attendance.AttendanceEvent, error) {
	var (
		ev            attendance.AttendanceEvent
		ts, createdAt string
		lat, lng      sql.NullFloat64
		locationID    sql.NullString
		locationName  sql.NullString
		note          sql.NullString
		attachmentRef sql.NullString
	)

	err := rows.Scan(
		&ev.ID, &ev.UserID, &ts, &ev.Seq, &ev.Type, &ev.WorkType,
		&lat, &lng, &locationID, &locationName, &ev.IsOvertime,
		&note, &attachmentRef, &createdAt,
	)
	if err != nil {
		return ev, fmt.Errorf("failed to scan event: %w", err)
	}

	ev.Timestamp, _ = time.Parse(time.RFC3339, ts)
	ev.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if lat.Valid {
		v := lat.Float64
		ev.Latitude = &v
	}
	if lng.Valid {
		v := lng.Float64
		ev.Longitude = &v
	}
	ev.LocationID = locationID.String
	ev.LocationName = locationName.String
	ev.Note = note.String
	ev.AttachmentRef = attachmentRef.String

	return ev, nil
}

// =============================================================================
// UNLOCK STORE (attendance.UnlockStore interface)
// =============================================================================

// CreateRequest files a pending grant, enforcing the daily quota inside
// one transaction.
func (s *Store) CreateRequest(ctx context.Context, userID string, date time.Time) (attendance.UnlockGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return attendance.UnlockGrant{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	day := attendance.DayOf(date)
	dayStr := day.Format("2006-01-02")

	var count int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM unlock_requests WHERE user_id = ? AND grant_date = ?",
		userID, dayStr,
	).Scan(&count)
	if err != nil {
		return attendance.UnlockGrant{}, fmt.Errorf("failed to count unlock requests: %w", err)
	}
	if count >= attendance.MaxDailyUnlockRequests {
		return attendance.UnlockGrant{}, attendance.NewUnlockQuotaViolation(count)
	}

	grant := attendance.UnlockGrant{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      day,
		Status:    attendance.UnlockPending,
		CreatedAt: time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO unlock_requests (id, user_id, grant_date, status, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, grant.ID, grant.UserID, dayStr, grant.Status, grant.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return attendance.UnlockGrant{}, fmt.Errorf("failed to insert unlock request: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return attendance.UnlockGrant{}, fmt.Errorf("failed to commit unlock request: %w", err)
	}
	return grant, nil
}

// Decide transitions a pending grant exactly once. The conditional
// UPDATE makes the transition race-free: a second decision matches zero
// rows.
func (s *Store) Decide(ctx context.Context, grantID string, status attendance.UnlockStatus, decidedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE unlock_requests
		SET status = ?, decided_by = ?, decided_at = ?
		WHERE id = ? AND status = 'pending'
	`, status, decidedBy, at.UTC().Format(time.RFC3339), grantID)
	if err != nil {
		return fmt.Errorf("failed to decide unlock request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM unlock_requests WHERE id = ?", grantID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return attendance.ErrEventNotFound
		}
		return attendance.ErrAlreadyDecided
	}
	return nil
}

// ApprovedCount returns the number of approved grants for the user-day.
func (s *Store) ApprovedCount(ctx context.Context, userID string, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM unlock_requests WHERE user_id = ? AND grant_date = ? AND status = 'approved'",
		userID, attendance.DayOf(date).Format("2006-01-02"),
	).Scan(&count)
	return count, err
}

// RequestCount returns the number of grants filed for the user-day.
func (s *Store) RequestCount(ctx context.Context, userID string, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM unlock_requests WHERE user_id = ? AND grant_date = ?",
		userID, attendance.DayOf(date).Format("2006-01-02"),
	).Scan(&count)
	return count, err
}

// ListForUser returns the user's grants with date in [from, to].
func (s *Store) ListForUser(ctx context.Context, userID string, from, to time.Time) ([]attendance.UnlockGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, grant_date, status, decided_by, decided_at, created_at
		FROM unlock_requests
		WHERE user_id = ? AND grant_date >= ? AND grant_date <= ?
		ORDER BY created_at ASC
	`, userID,
		attendance.DayOf(from).Format("2006-01-02"),
		attendance.DayOf(to).Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grants []attendance.UnlockGrant
	for rows.Next() {
		var (
			g                    attendance.UnlockGrant
			grantDate, createdAt string
			decidedBy, decidedAt sql.NullString
		)
		if err := rows.Scan(&g.ID, &g.UserID, &grantDate, &g.Status, &decidedBy, &decidedAt, &createdAt); err != nil {
			return nil, err
		}
		g.Date, _ = time.Parse("2006-01-02", grantDate)
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		g.DecidedBy = decidedBy.String
		if decidedAt.Valid {
			t, _ := time.Parse(time.RFC3339, decidedAt.String)
			g.DecidedAt = &t
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// =============================================================================
// LOCATION REGISTRY (geo.LocationRegistry interface)
// =============================================================================

// SaveLocation adds or updates a geofence in the pool.
func (s *Store) SaveLocation(ctx context.Context, loc geo.GeoLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO locations (id, name, latitude, longitude, radius_meters, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			radius_meters = excluded.radius_meters
	`, loc.ID, loc.Name, loc.Latitude, loc.Longitude, loc.RadiusMeters,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// AssignLocation links a user to a location. Re-assigning is a no-op.
func (s *Store) AssignLocation(ctx context.Context, userID, locationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO location_assignments (user_id, location_id, created_at)
		VALUES (?, ?, ?)
	`, userID, locationID, time.Now().UTC().Format(time.RFC3339))
	return err
}

// AssignedLocations returns the user's assigned geofences.
func (s *Store) AssignedLocations(ctx context.Context, userID string) ([]geo.GeoLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLocations(ctx, `
		SELECT l.id, l.name, l.latitude, l.longitude, l.radius_meters
		FROM locations l
		JOIN location_assignments a ON a.location_id = l.id
		WHERE a.user_id = ?
		ORDER BY l.name
	`, userID)
}

// AllLocations returns the full geofence pool.
func (s *Store) AllLocations(ctx context.Context) ([]geo.GeoLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryLocations(ctx,
		"SELECT id, name, latitude, longitude, radius_meters FROM locations ORDER BY name")
}

func (s *Store) queryLocations(ctx context.Context, query string, args ...any) ([]geo.GeoLocation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []geo.GeoLocation
	for rows.Next() {
		var loc geo.GeoLocation
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Latitude, &loc.Longitude, &loc.RadiusMeters); err != nil {
			return nil, err
		}
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// =============================================================================
// VIOLATION SINK (violation.Sink interface)
// =============================================================================

// Record appends a violation. No dedup: one record per out-of-zone punch.
func (s *Store) Record(ctx context.Context, v violation.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO violations
		(id, user_id, violation_date, violation_month, attempted_lat, attempted_lng, location_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.UserID,
		v.ViolationDate.Format("2006-01-02"),
		v.ViolationMonth,
		v.AttemptedLat, v.AttemptedLng,
		nullString(v.LocationName),
		v.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record violation: %w", err)
	}
	return nil
}

// ListForMonth returns a user's violations for the given month. Empty
// userID lists all users.
func (s *Store) ListForMonth(ctx context.Context, userID string, month time.Time) ([]violation.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, violation_date, violation_month,
		       attempted_lat, attempted_lng, location_name, created_at
		FROM violations
		WHERE violation_month = ?
	`
	args := []any{attendance.MonthKey(month)}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []violation.Violation
	for rows.Next() {
		var (
			v                 violation.Violation
			vDate, createdAt  string
			locationName      sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.UserID, &vDate, &v.ViolationMonth,
			&v.AttemptedLat, &v.AttemptedLng, &locationName, &createdAt); err != nil {
			return nil, err
		}
		v.ViolationDate, _ = time.Parse("2006-01-02", vDate)
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		v.LocationName = locationName.String
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// =============================================================================
// COMP-OFF BANK (overtime.BankStore interface)
// =============================================================================

// Credits returns the user's available comp-off credits: banked minus
// consumed.
func (s *Store) Credits(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var banked int
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(credits), 0) FROM compoff_bank WHERE user_id = ?",
		userID,
	).Scan(&banked)
	if err != nil {
		return 0, err
	}

	var consumed int
	err = s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(credits), 0) FROM compoff_consumption WHERE user_id = ?",
		userID,
	).Scan(&consumed)
	if err != nil {
		return 0, err
	}

	return banked - consumed, nil
}

// AddCredits banks credits for a user-month. The primary key on
// (user_id, month) makes re-banking the same month a no-op.
func (s *Store) AddCredits(ctx context.Context, userID string, month time.Time, credits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO compoff_bank (user_id, month, credits, created_at)
		VALUES (?, ?, ?, ?)
	`, userID, attendance.MonthKey(month), credits,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to bank credits: %w", err)
	}
	return nil
}

// Consume records a credit spend tied to its leave request.
func (s *Store) Consume(ctx context.Context, userID string, credits int, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO compoff_consumption (id, user_id, credits, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), userID, credits, nullString(ref),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to consume credits: %w", err)
	}
	return nil
}

// =============================================================================
// LEAVE USAGE (leave.UsageSource interface)
// =============================================================================

// RecordLeaveUsage appends an approved leave usage entry.
func (s *Store) RecordLeaveUsage(ctx context.Context, userID string, category leave.Category, amount decimal.Decimal, usedOn time.Time, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leave_usage (id, user_id, category, amount, used_on, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), userID, category, amount.String(),
		attendance.DayOf(usedOn).Format("2006-01-02"),
		nullString(ref),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record leave usage: %w", err)
	}
	return nil
}

// UsedToDate sums the user's approved usage for a category up to asOf.
func (s *Store) UsedToDate(ctx context.Context, userID string, category leave.Category, asOf time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT amount FROM leave_usage
		WHERE user_id = ? AND category = ? AND used_on <= ?
	`, userID, category, attendance.DayOf(asOf).Format("2006-01-02"))
	if err != nil {
		return decimal.Zero, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, err
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt leave usage amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// Employee represents an employee record.
type Employee struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

// SaveEmployee saves an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role
	`, emp.ID, emp.Name, emp.Email, emp.Role,
		time.Now().UTC().Format(time.RFC3339))
	return err
}

// GetEmployee retrieves an employee by ID. Returns nil when not found.
func (s *Store) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var emp Employee
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, role, created_at FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.Name, &emp.Email, &emp.Role, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, role, created_at FROM employees ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var emp Employee
		var createdAt string
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.Email, &emp.Role, &createdAt); err != nil {
			return nil, err
		}
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"attendance_events", "unlock_requests", "locations",
		"location_assignments", "violations", "compoff_bank",
		"compoff_consumption", "leave_usage", "employees",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

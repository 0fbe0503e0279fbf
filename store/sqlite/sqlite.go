/*
Package sqlite provides a SQLite-backed implementation of tracking.Store.

PURPOSE:
  Production persistence for personnel, links, completions and deferments.
  The same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

KEY TABLES:
  personnel:    tracked individuals (personnel_id primary key)
  links:        chat identity bindings (telegram_id primary key,
                personnel_id unique - 1:1 both directions)
  completions:  one row per (personnel_id, window_year)
  deferments:   one row per (personnel_id, window_year)

UPSERT SEMANTICS:
  Every write is INSERT ... ON CONFLICT DO UPDATE on the natural key.
  That per-key atomicity is what serializes concurrent admin commands on
  the same personnel; the engine holds no locks of its own.

CASCADE:
  DeletePersonnel runs inside one transaction removing the personnel row
  and every link, completion and deferment referencing it.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/readiness.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()

SEE ALSO:
  - tracking/store.go: Interface definition
  - tracking/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/readiness-engine/tracking"
	"github.com/warp/readiness-engine/window"
)

// Store implements tracking.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS personnel (
		personnel_id TEXT PRIMARY KEY,
		birthday     TEXT NOT NULL,
		group_name   TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS links (
		telegram_id  INTEGER PRIMARY KEY,
		personnel_id TEXT NOT NULL UNIQUE REFERENCES personnel(personnel_id),
		verified_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS completions (
		id           TEXT PRIMARY KEY,
		personnel_id TEXT NOT NULL,
		window_year  INTEGER NOT NULL,
		completed_on TEXT NOT NULL,
		forced       INTEGER NOT NULL DEFAULT 0,
		recorded_at  TEXT NOT NULL,
		UNIQUE (personnel_id, window_year)
	);

	CREATE TABLE IF NOT EXISTS deferments (
		id           TEXT PRIMARY KEY,
		personnel_id TEXT NOT NULL,
		window_year  INTEGER NOT NULL,
		reason       TEXT NOT NULL,
		active       INTEGER NOT NULL,
		recorded_at  TEXT NOT NULL,
		UNIQUE (personnel_id, window_year)
	);

	CREATE INDEX IF NOT EXISTS idx_completions_personnel ON completions(personnel_id);
	CREATE INDEX IF NOT EXISTS idx_deferments_personnel ON deferments(personnel_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PERSONNEL
// =============================================================================

func (s *Store) GetPersonnel(ctx context.Context, id tracking.PersonnelID) (*tracking.Personnel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT personnel_id, birthday, group_name FROM personnel WHERE personnel_id = ?`, string(id))
	return scanPersonnel(row)
}

func (s *Store) UpsertPersonnel(ctx context.Context, p tracking.Personnel) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personnel (personnel_id, birthday, group_name) VALUES (?, ?, ?)
		ON CONFLICT(personnel_id) DO UPDATE SET
			birthday = excluded.birthday,
			group_name = excluded.group_name`,
		string(p.ID), p.Birthday.String(), p.Group)
	return err
}

func (s *Store) ListPersonnel(ctx context.Context) ([]tracking.Personnel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT personnel_id, birthday, group_name FROM personnel ORDER BY personnel_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.Personnel
	for rows.Next() {
		p, err := scanPersonnel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *Store) DeletePersonnel(ctx context.Context, id tracking.PersonnelID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM links WHERE personnel_id = ?`,
		`DELETE FROM completions WHERE personnel_id = ?`,
		`DELETE FROM deferments WHERE personnel_id = ?`,
		`DELETE FROM personnel WHERE personnel_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, string(id)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// LINKS
// =============================================================================

func (s *Store) GetLink(ctx context.Context, id tracking.TelegramID) (*tracking.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT telegram_id, personnel_id, verified_at FROM links WHERE telegram_id = ?`, int64(id))
	return scanLink(row)
}

func (s *Store) GetLinkByPersonnel(ctx context.Context, id tracking.PersonnelID) (*tracking.Link, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT telegram_id, personnel_id, verified_at FROM links WHERE personnel_id = ?`, string(id))
	return scanLink(row)
}

func (s *Store) UpsertLink(ctx context.Context, l tracking.Link) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Keep the binding 1:1 in both directions: a personnel re-verified
	// from a new chat identity sheds the old link.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM links WHERE personnel_id = ? AND telegram_id != ?`,
		string(l.PersonnelID), int64(l.TelegramID)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO links (telegram_id, personnel_id, verified_at) VALUES (?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			personnel_id = excluded.personnel_id,
			verified_at = excluded.verified_at`,
		int64(l.TelegramID), string(l.PersonnelID), l.VerifiedAt.Format(time.RFC3339)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteLink(ctx context.Context, id tracking.TelegramID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE telegram_id = ?`, int64(id))
	return err
}

func (s *Store) ListLinks(ctx context.Context) ([]tracking.Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT telegram_id, personnel_id, verified_at FROM links ORDER BY telegram_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// =============================================================================
// COMPLETIONS
// =============================================================================

func (s *Store) GetCompletion(ctx context.Context, id tracking.PersonnelID, windowYear int) (*tracking.Completion, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, personnel_id, window_year, completed_on, forced, recorded_at
		  FROM completions WHERE personnel_id = ? AND window_year = ?`,
		string(id), windowYear)
	return scanCompletion(row)
}

func (s *Store) UpsertCompletion(ctx context.Context, c tracking.Completion) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completions (id, personnel_id, window_year, completed_on, forced, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(personnel_id, window_year) DO UPDATE SET
			completed_on = excluded.completed_on,
			forced = excluded.forced,
			recorded_at = excluded.recorded_at`,
		c.ID, string(c.PersonnelID), c.WindowYear, c.CompletedOn.String(),
		boolToInt(c.Forced), c.RecordedAt.Format(time.RFC3339))
	return err
}

func (s *Store) DeleteCompletion(ctx context.Context, id tracking.PersonnelID, windowYear int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM completions WHERE personnel_id = ? AND window_year = ?`, string(id), windowYear)
	return err
}

func (s *Store) ListCompletions(ctx context.Context, id tracking.PersonnelID) ([]tracking.Completion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, personnel_id, window_year, completed_on, forced, recorded_at
		  FROM completions WHERE personnel_id = ? ORDER BY window_year`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// =============================================================================
// DEFERMENTS
// =============================================================================

func (s *Store) GetDeferment(ctx context.Context, id tracking.PersonnelID, windowYear int) (*tracking.Deferment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, personnel_id, window_year, reason, active, recorded_at
		  FROM deferments WHERE personnel_id = ? AND window_year = ?`,
		string(id), windowYear)
	return scanDeferment(row)
}

func (s *Store) UpsertDeferment(ctx context.Context, d tracking.Deferment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deferments (id, personnel_id, window_year, reason, active, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(personnel_id, window_year) DO UPDATE SET
			reason = excluded.reason,
			active = excluded.active,
			recorded_at = excluded.recorded_at`,
		d.ID, string(d.PersonnelID), d.WindowYear, d.Reason,
		boolToInt(d.Active), d.RecordedAt.Format(time.RFC3339))
	return err
}

func (s *Store) DeleteDeferment(ctx context.Context, id tracking.PersonnelID, windowYear int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM deferments WHERE personnel_id = ? AND window_year = ?`, string(id), windowYear)
	return err
}

func (s *Store) ListDeferments(ctx context.Context, id tracking.PersonnelID) ([]tracking.Deferment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, personnel_id, window_year, reason, active, recorded_at
		  FROM deferments WHERE personnel_id = ? ORDER BY window_year`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.Deferment
	for rows.Next() {
		d, err := scanDeferment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// =============================================================================
// ROW SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersonnel(r rowScanner) (*tracking.Personnel, error) {
	var id, birthday, group string
	if err := r.Scan(&id, &birthday, &group); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	bd, err := window.ParseDate(birthday)
	if err != nil {
		return nil, fmt.Errorf("corrupt birthday for %s: %w", id, err)
	}
	return &tracking.Personnel{ID: tracking.PersonnelID(id), Birthday: bd, Group: group}, nil
}

func scanLink(r rowScanner) (*tracking.Link, error) {
	var tid int64
	var pid, verifiedAt string
	if err := r.Scan(&tid, &pid, &verifiedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	at, err := time.Parse(time.RFC3339, verifiedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt verified_at for %d: %w", tid, err)
	}
	return &tracking.Link{TelegramID: tracking.TelegramID(tid), PersonnelID: tracking.PersonnelID(pid), VerifiedAt: at}, nil
}

func scanCompletion(r rowScanner) (*tracking.Completion, error) {
	var id, pid, completedOn, recordedAt string
	var year, forced int
	if err := r.Scan(&id, &pid, &year, &completedOn, &forced, &recordedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	on, err := window.ParseDate(completedOn)
	if err != nil {
		return nil, fmt.Errorf("corrupt completed_on for %s: %w", pid, err)
	}
	at, err := time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt recorded_at for %s: %w", pid, err)
	}
	return &tracking.Completion{
		ID:          id,
		PersonnelID: tracking.PersonnelID(pid),
		WindowYear:  year,
		CompletedOn: on,
		Forced:      forced != 0,
		RecordedAt:  at,
	}, nil
}

func scanDeferment(r rowScanner) (*tracking.Deferment, error) {
	var id, pid, reason, recordedAt string
	var year, active int
	if err := r.Scan(&id, &pid, &year, &reason, &active, &recordedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	at, err := time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("corrupt recorded_at for %s: %w", pid, err)
	}
	return &tracking.Deferment{
		ID:          id,
		PersonnelID: tracking.PersonnelID(pid),
		WindowYear:  year,
		Reason:      reason,
		Active:      active != 0,
		RecordedAt:  at,
	}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/models"
)

const caseColumns = `
	c.id, c.number, c.title, c.created_at,
	COALESCE(m.enabled, 0), COALESCE(m.frequency, ''), m.last_checked_at,
	COALESCE(m.total_seen, 0), COALESCE(m.payload_checksum, '')`

const caseFrom = `FROM cases c LEFT JOIN monitoring m ON m.case_id = c.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanCase(row scanner) (*models.Case, error) {
	var (
		c       models.Case
		enabled int
		freq    string
		last    sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Number, &c.Title, &c.CreatedAt,
		&enabled, &freq, &last, &c.Monitor.TotalSeen, &c.Monitor.PayloadChecksum); err != nil {
		return nil, err
	}
	c.Monitor.Enabled = enabled != 0
	c.Monitor.Frequency = models.Frequency(freq)
	if last.Valid {
		t := last.Time.UTC()
		c.Monitor.LastCheckedAt = &t
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// CreateCase inserts a case with its monitoring row. A duplicate number
// yields apperr.ErrAlreadyExists.
func (db *DB) CreateCase(ctx context.Context, c models.Case) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cases (id, number, title, created_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Number, c.Title, c.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("store: case %s: %w", c.Number, apperr.ErrAlreadyExists)
		}
		return fmt.Errorf("store: insert case: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO monitoring (case_id, enabled, frequency) VALUES (?, ?, ?)`,
		c.ID, boolInt(c.Monitor.Enabled), string(c.Monitor.Frequency))
	if err != nil {
		return fmt.Errorf("store: insert monitoring: %w", err)
	}
	return tx.Commit()
}

// GetCase returns the case with the given id.
func (db *DB) GetCase(ctx context.Context, id string) (*models.Case, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+caseColumns+` `+caseFrom+` WHERE c.id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: case %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get case: %w", err)
	}
	return c, nil
}

// CaseByNumber returns the case with the given normalized number.
func (db *DB) CaseByNumber(ctx context.Context, number string) (*models.Case, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+caseColumns+` `+caseFrom+` WHERE c.number = ?`, number)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: case number %s: %w", number, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: case by number: %w", err)
	}
	return c, nil
}

// ListCases returns a page of cases ordered by creation time and the total count.
func (db *DB) ListCases(ctx context.Context, limit, offset int) ([]models.Case, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM cases`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count cases: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+caseColumns+` `+caseFrom+` ORDER BY c.created_at DESC, c.id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list cases: %w", err)
	}
	defer rows.Close()

	out := []models.Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// MonitoredCases returns every case with monitoring enabled.
func (db *DB) MonitoredCases(ctx context.Context) ([]models.Case, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+caseColumns+` `+caseFrom+` WHERE m.enabled = 1 ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("store: monitored cases: %w", err)
	}
	defer rows.Close()

	var out []models.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DueCases returns the monitored cases owed a check at now.
func (db *DB) DueCases(ctx context.Context, now time.Time) ([]models.Case, error) {
	all, err := db.MonitoredCases(ctx)
	if err != nil {
		return nil, err
	}
	var due []models.Case
	for _, c := range all {
		if c.Monitor.Due(now) {
			due = append(due, c)
		}
	}
	return due, nil
}

// SetMonitoring turns polling on or off for a case.
func (db *DB) SetMonitoring(ctx context.Context, id string, enabled bool, freq models.Frequency) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE monitoring SET enabled = ?, frequency = ? WHERE case_id = ?`,
		boolInt(enabled), string(freq), id)
	if err != nil {
		return fmt.Errorf("store: set monitoring: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: case %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// RecordCheck stores the outcome of a Datajud check. total_seen only grows.
func (db *DB) RecordCheck(ctx context.Context, id string, at time.Time, seen int, payloadChecksum string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE monitoring SET
			last_checked_at  = ?,
			total_seen       = MAX(total_seen, ?),
			payload_checksum = ?
		WHERE case_id = ?
	`, at.UTC(), seen, payloadChecksum, id)
	if err != nil {
		return fmt.Errorf("store: record check: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: case %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

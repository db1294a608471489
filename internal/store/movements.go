package store

import (
	"context"
	"fmt"

	"github.com/starford/tribuna/internal/movement"
)

const movementColumns = `id, case_id, code, name, date, supplement, source_system, read, recorded_at`

func scanMovement(row scanner) (movement.Movement, error) {
	var (
		m    movement.Movement
		read int
	)
	if err := row.Scan(&m.ID, &m.CaseID, &m.Code, &m.Name, &m.Date,
		&m.Supplement, &m.SourceSystem, &read, &m.RecordedAt); err != nil {
		return movement.Movement{}, err
	}
	if read != 0 {
		m.State = movement.Read
	}
	m.Date = m.Date.UTC()
	m.RecordedAt = m.RecordedAt.UTC()
	return m, nil
}

// Movements returns every stored movement of a case, newest first.
func (db *DB) Movements(ctx context.Context, caseID string) ([]movement.Movement, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+movementColumns+` FROM movements WHERE case_id = ? ORDER BY date DESC, recorded_at, rowid`, caseID)
	if err != nil {
		return nil, fmt.Errorf("store: movements: %w", err)
	}
	defer rows.Close()

	var out []movement.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PutMovements upserts ms within a transaction. Existing rows only ever
// gain the read flag; nothing is deleted. Rows are keyed by id only, so
// distinct ids sharing a code and date are both kept.
func (db *DB) PutMovements(ctx context.Context, caseID string, ms []movement.Movement) error {
	if len(ms) == 0 {
		return nil
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO movements (`+movementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET read = MAX(movements.read, excluded.read)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare movement upsert: %w", err)
	}
	defer stmt.Close()

	for _, m := range ms {
		if _, err := stmt.ExecContext(ctx,
			m.ID, caseID, m.Code, m.Name, m.Date.UTC(), m.Supplement, m.SourceSystem,
			boolInt(m.State.IsRead()), m.RecordedAt.UTC()); err != nil {
			return fmt.Errorf("store: upsert movement %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// UnreadCounts returns the number of unread movements per case, omitting
// cases with none.
func (db *DB) UnreadCounts(ctx context.Context) (map[string]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT case_id, count(*) FROM movements WHERE read = 0 GROUP BY case_id`)
	if err != nil {
		return nil, fmt.Errorf("store: unread counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// SearchMovements does a LIKE match over movement names and supplements.
func (db *DB) SearchMovements(ctx context.Context, query string, limit int) ([]movement.Movement, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+movementColumns+`
		FROM movements
		WHERE name LIKE ? OR supplement LIKE ?
		ORDER BY date DESC
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("store: search: %w", err)
	}
	defer rows.Close()

	var out []movement.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

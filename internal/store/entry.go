package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrWriteConflict is returned by Append when the key's current entry is no
// longer the one the caller based its write on.
var ErrWriteConflict = errors.New("store: write conflict")

// Entry is one cached locator for a logical key.
type Entry struct {
	ID           string `json:"id"`
	LogicalKey   string `json:"logical_key"`
	Seq          int    `json:"seq"`
	Expression   string `json:"expression"`
	Replaced     string `json:"replaced,omitempty"`
	CreatedAt    int64  `json:"created_at"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

// Current reports whether the entry has not been superseded.
func (e *Entry) Current() bool { return e.SupersededBy == "" }

const entryColumns = `id, logical_key, seq, expression, replaced, created_at, superseded_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*Entry, error) {
	var e Entry
	if err := r.Scan(&e.ID, &e.LogicalKey, &e.Seq, &e.Expression, &e.Replaced, &e.CreatedAt, &e.SupersededBy); err != nil {
		return nil, err
	}
	return &e, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func current(ctx context.Context, q querier, key string) (*Entry, error) {
	e, err := scanEntry(q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM locator_entries WHERE logical_key = ? AND superseded_by = ''`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: current %s: %w", key, err)
	}
	return e, nil
}

// Current returns the key's current entry, or nil if the key is unknown.
func (s *Store) Current(ctx context.Context, key string) (*Entry, error) {
	return current(ctx, s.DB, key)
}

// History returns every entry of key, oldest first.
func (s *Store) History(ctx context.Context, key string) ([]*Entry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM locator_entries WHERE logical_key = ? ORDER BY seq`, key)
	if err != nil {
		return nil, fmt.Errorf("store: history %s: %w", key, err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Keys lists every logical key with at least one entry, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT DISTINCT logical_key FROM locator_entries ORDER BY logical_key`)
	if err != nil {
		return nil, fmt.Errorf("store: keys: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Append records expr as the new current entry of key. replaced is the
// expression that failed, kept for diagnosis.
//
// expectCurrentID is the ID of the current entry the caller observed ("" for
// none). If another writer has moved the key on since, nothing is written and
// Append returns the winning current entry with ErrWriteConflict.
func (s *Store) Append(ctx context.Context, key, expr, replaced, expectCurrentID string) (*Entry, error) {
	if key == "" || expr == "" {
		return nil, fmt.Errorf("store: append: key and expression are required")
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	cur, err := current(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	curID := ""
	if cur != nil {
		curID = cur.ID
	}
	if curID != expectCurrentID {
		return cur, ErrWriteConflict
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM locator_entries WHERE logical_key = ?`, key).Scan(&seq); err != nil {
		return nil, fmt.Errorf("store: next seq: %w", err)
	}

	e := &Entry{
		ID:         uuid.Must(uuid.NewV7()).String(),
		LogicalKey: key,
		Seq:        seq,
		Expression: expr,
		Replaced:   replaced,
		CreatedAt:  s.now(),
	}

	if cur != nil {
		res, err := tx.ExecContext(ctx,
			`UPDATE locator_entries SET superseded_by = ? WHERE id = ? AND superseded_by = ''`, e.ID, cur.ID)
		if err != nil {
			return nil, fmt.Errorf("store: supersede: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			tx.Rollback()
			return s.winner(ctx, key)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO locator_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, '')`,
		e.ID, e.LogicalKey, e.Seq, e.Expression, e.Replaced, e.CreatedAt); err != nil {
		if isConstraint(err) {
			tx.Rollback()
			return s.winner(ctx, key)
		}
		return nil, fmt.Errorf("store: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isConstraint(err) {
			return s.winner(ctx, key)
		}
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return e, nil
}

// winner reloads the current entry after a lost race.
func (s *Store) winner(ctx context.Context, key string) (*Entry, error) {
	cur, err := s.Current(ctx, key)
	if err != nil {
		return nil, err
	}
	return cur, ErrWriteConflict
}

func isConstraint(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidDump is returned by Import when a dump violates the cache
// invariants.
var ErrInvalidDump = errors.New("store: invalid dump")

// Dump is the persisted form of the cache: every key's entries, oldest first.
type Dump map[string][]*Entry

// Export returns the whole cache.
func (s *Store) Export(ctx context.Context) (Dump, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM locator_entries ORDER BY logical_key, seq`)
	if err != nil {
		return nil, fmt.Errorf("store: export: %w", err)
	}
	defer rows.Close()

	d := make(Dump)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		d[e.LogicalKey] = append(d[e.LogicalKey], e)
	}
	return d, rows.Err()
}

// WriteJSON encodes the cache to w.
func (s *Store) WriteJSON(ctx context.Context, w io.Writer) error {
	d, err := s.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// ReadJSON decodes a dump from r and imports it.
func (s *Store) ReadJSON(ctx context.Context, r io.Reader) error {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return fmt.Errorf("store: decode dump: %w", err)
	}
	return s.Import(ctx, d)
}

// Validate checks that every key has at least one entry, that seq and the
// supersession chain follow slice order, and that only the last entry is
// current.
func (d Dump) Validate() error {
	for key, entries := range d {
		if len(entries) == 0 {
			return fmt.Errorf("%w: key %q has no entries", ErrInvalidDump, key)
		}
		for i, e := range entries {
			if e == nil || e.ID == "" || e.Expression == "" {
				return fmt.Errorf("%w: key %q entry %d incomplete", ErrInvalidDump, key, i)
			}
			last := i == len(entries)-1
			if last && !e.Current() {
				return fmt.Errorf("%w: key %q has no current entry", ErrInvalidDump, key)
			}
			if !last && e.SupersededBy != entries[i+1].ID {
				return fmt.Errorf("%w: key %q entry %d not superseded by its successor", ErrInvalidDump, key, i)
			}
		}
	}
	return nil
}

// Import replaces the entries of every key present in d. Keys absent from
// the dump are left untouched. Sequence numbers are renumbered from slice
// order.
func (s *Store) Import(ctx context.Context, d Dump) error {
	if err := d.Validate(); err != nil {
		return err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	for key, entries := range d {
		if _, err := tx.ExecContext(ctx, `DELETE FROM locator_entries WHERE logical_key = ?`, key); err != nil {
			return fmt.Errorf("store: import clear %s: %w", key, err)
		}
		for i, e := range entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO locator_entries (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.ID, key, i+1, e.Expression, e.Replaced, e.CreatedAt, e.SupersededBy); err != nil {
				return fmt.Errorf("store: import %s: %w", key, err)
			}
		}
	}
	return tx.Commit()
}

// Stats summarises the cache.
type Stats struct {
	Keys       int `json:"keys"`
	Entries    int `json:"entries"`
	Superseded int `json:"superseded"`
}

// Stats returns cache counters.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT logical_key),
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN superseded_by != '' THEN 1 ELSE 0 END), 0)
		FROM locator_entries`).Scan(&st.Keys, &st.Entries, &st.Superseded)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	return &st, nil
}

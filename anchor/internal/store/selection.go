package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/textanchor/anchor/internal/descriptor"
	"github.com/hazyhaar/textanchor/dbopen"
)

// Selection is a stored descriptor and its restore bookkeeping.
type Selection struct {
	ID              string                 `json:"id"`
	DocumentID      string                 `json:"document_id"`
	Type            string                 `json:"type"`
	Text            string                 `json:"text"`
	Descriptor      *descriptor.Descriptor `json:"descriptor"`
	CreatedAt       int64                  `json:"created_at"`
	UpdatedAt       int64                  `json:"updated_at"`
	LastLayer       string                 `json:"last_layer,omitempty"`
	RestoreFailures int                    `json:"restore_failures"`
}

// ErrSelectionOwned is returned when a selection id is already stored under
// another document.
var ErrSelectionOwned = errors.New("store: selection belongs to another document")

// SaveSelection validates d against the wire schema and stores it under
// docID, replacing any earlier descriptor with the same id in that document.
// Restore bookkeeping is reset when the descriptor changes. An id stored
// under another document is left alone and ErrSelectionOwned is returned.
func (s *Store) SaveSelection(ctx context.Context, docID string, d *descriptor.Descriptor) error {
	if d == nil {
		return errors.New("store: nil descriptor")
	}
	raw, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", d.ID, err)
	}
	if err := descriptor.Validate(raw); err != nil {
		return fmt.Errorf("store: save %s: %w", d.ID, err)
	}

	now := time.Now().UnixMilli()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO selections
				(id, document_id, type, text, descriptor, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				type = excluded.type,
				text = excluded.text,
				descriptor = excluded.descriptor,
				updated_at = excluded.updated_at,
				last_layer = '',
				restore_failures = 0
			WHERE selections.document_id = excluded.document_id`,
			d.ID, docID, d.Type, d.Text, string(raw), now, now)
		if err != nil {
			return fmt.Errorf("store: save %s: %w", d.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrSelectionOwned, d.ID)
		}
		return nil
	})
}

const selectionColumns = `id, document_id, type, text, descriptor,
	created_at, updated_at, last_layer, restore_failures`

// GetSelection returns the selection, or nil when it does not exist.
func (s *Store) GetSelection(ctx context.Context, id string) (*Selection, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+selectionColumns+` FROM selections WHERE id = ?`, id)
	sel, err := scanSelection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sel, err
}

// ListSelections returns the selections of a document in creation order.
func (s *Store) ListSelections(ctx context.Context, docID string) ([]*Selection, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+selectionColumns+`
		FROM selections WHERE document_id = ?
		ORDER BY created_at, id`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Selection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, rows.Err()
}

// DeleteSelection removes a selection of docID. It reports whether a row
// existed in that document.
func (s *Store) DeleteSelection(ctx context.Context, docID, id string) (bool, error) {
	res, err := dbopen.Exec(ctx, s.DB, `DELETE FROM selections WHERE id = ? AND document_id = ?`, id, docID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecordRestore stores the outcome of a restore: the winning layer on
// success, a bumped failure counter otherwise.
func (s *Store) RecordRestore(ctx context.Context, id, layer string, ok bool) error {
	now := time.Now().UnixMilli()
	var err error
	if ok {
		_, err = dbopen.Exec(ctx, s.DB, `
			UPDATE selections SET last_layer = ?, updated_at = ?
			WHERE id = ?`, layer, now, id)
	} else {
		_, err = dbopen.Exec(ctx, s.DB, `
			UPDATE selections SET last_layer = '', restore_failures = restore_failures + 1, updated_at = ?
			WHERE id = ?`, now, id)
	}
	return err
}

// Stats summarises the store.
type Stats struct {
	Documents  int            `json:"documents"`
	Selections int            `json:"selections"`
	ByLayer    map[string]int `json:"by_layer"`
	Failing    int            `json:"failing"`
}

// Stats counts documents and selections, selections per last winning layer,
// and selections whose last restore failed.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByLayer: make(map[string]int)}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&st.Documents); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM selections`).Scan(&st.Selections); err != nil {
		return nil, err
	}
	if err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM selections
		WHERE last_layer = '' AND restore_failures > 0`).Scan(&st.Failing); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT last_layer, COUNT(*) FROM selections
		WHERE last_layer != '' GROUP BY last_layer`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var layer string
		var n int
		if err := rows.Scan(&layer, &n); err != nil {
			return nil, err
		}
		st.ByLayer[layer] = n
	}
	return st, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSelection(r scanner) (*Selection, error) {
	sel := &Selection{}
	var raw string
	if err := r.Scan(&sel.ID, &sel.DocumentID, &sel.Type, &sel.Text, &raw,
		&sel.CreatedAt, &sel.UpdatedAt, &sel.LastLayer, &sel.RestoreFailures); err != nil {
		return nil, err
	}
	d, err := descriptor.Unmarshal([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", sel.ID, err)
	}
	sel.Descriptor = d
	return sel, nil
}

// Package store persists documents and their serialized selections in
// SQLite, together with the outcome of the last restore of each selection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/textanchor/dbopen"
)

// Store is the anchor database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Document is a stored document.
type Document struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Source    string `json:"source"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// PutDocument inserts d or updates its name and source.
func (s *Store) PutDocument(ctx context.Context, d *Document) error {
	if d.ID == "" {
		return errors.New("store: document id is empty")
	}
	now := time.Now().UnixMilli()
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	_, err := dbopen.Exec(ctx, s.DB, `
		INSERT INTO documents (id, name, source, created_at, updated_at)
		VALUES (?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		d.ID, d.Name, d.Source, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: put document %s: %w", d.ID, err)
	}
	return nil
}

// GetDocument returns the document, or nil when it does not exist.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	d := &Document{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, source, created_at, updated_at
		FROM documents WHERE id = ?`, id).Scan(
		&d.ID, &d.Name, &d.Source, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDocuments returns every document ordered by id.
func (s *Store) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, source, created_at, updated_at
		FROM documents ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.Name, &d.Source, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document. Its selections cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, s.DB, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

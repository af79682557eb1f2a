// Package audit records mutating operations of the anchor daemon in an
// SQLite audit_log table, synchronously or through a batching writer.
//
// Usage:
//
//	al := audit.NewSQLiteLogger(db)
//	if err := al.Init(); err != nil { ... }
//	defer al.Close()
//	endpoint = audit.Middleware(al, "anchor_capture")(endpoint)
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/textanchor/dbopen"
	"github.com/hazyhaar/textanchor/idgen"
	"github.com/hazyhaar/textanchor/kit"
)

const Schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	entry_id      TEXT PRIMARY KEY,
	timestamp     INTEGER NOT NULL,
	action        TEXT NOT NULL,
	transport     TEXT NOT NULL DEFAULT 'http',
	request_id    TEXT NOT NULL DEFAULT '',
	document_id   TEXT NOT NULL DEFAULT '',
	parameters    TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL CHECK(status IN ('success', 'error')),
	error_message TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action, timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_document ON audit_log(document_id, timestamp);
`

const (
	batchSize     = 32
	flushInterval = time.Second
	queueSize     = 256
	maxParameters = 4096
)

// Entry is one audited call.
type Entry struct {
	EntryID    string `json:"entry_id"`
	Timestamp  int64  `json:"timestamp"`
	Action     string `json:"action"`
	Transport  string `json:"transport"`
	RequestID  string `json:"request_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Option configures a SQLiteLogger.
type Option func(*SQLiteLogger)

// WithIDGenerator overrides the entry id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *SQLiteLogger) { l.newID = gen }
}

// WithLogger sets the logger used to report write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *SQLiteLogger) { l.logger = logger }
}

// SQLiteLogger writes entries to audit_log.
type SQLiteLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *Entry
	done   sync.WaitGroup
}

// NewSQLiteLogger starts the batching writer. Call Init before logging and
// Close to flush.
func NewSQLiteLogger(db *sql.DB, opts ...Option) *SQLiteLogger {
	l := &SQLiteLogger{
		db:     db,
		newID:  idgen.Prefixed("aud_", idgen.NanoID(12)),
		logger: slog.Default(),
		queue:  make(chan *Entry, queueSize),
	}
	for _, o := range opts {
		o(l)
	}
	l.done.Add(1)
	go l.run()
	return l
}

// Init creates the audit_log table.
func (l *SQLiteLogger) Init() error {
	_, err := l.db.Exec(Schema)
	return err
}

func (l *SQLiteLogger) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = l.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		e.Status = "success"
		if e.Error != "" {
			e.Status = "error"
		}
	}
}

// Log writes e synchronously.
func (l *SQLiteLogger) Log(ctx context.Context, e *Entry) error {
	l.fillDefaults(e)
	return dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		return insert(ctx, tx, e)
	})
}

// LogAsync queues e for the batching writer. When the queue is full or the
// writer is closed the entry is written synchronously.
func (l *SQLiteLogger) LogAsync(e *Entry) {
	l.fillDefaults(e)
	l.mu.RLock()
	queued := false
	if !l.closed {
		select {
		case l.queue <- e:
			queued = true
		default:
		}
	}
	l.mu.RUnlock()
	if queued {
		return
	}
	if err := l.Log(context.Background(), e); err != nil {
		l.logger.Warn("audit: write", "action", e.Action, "error", err)
	}
}

func (l *SQLiteLogger) run() {
	defer l.done.Done()
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := l.writeBatch(batch); err != nil {
			l.logger.Warn("audit: flush", "entries", len(batch), "error", err)
		}
		batch = batch[:0]
	}
	for {
		select {
		case e, ok := <-l.queue:
			if !ok {
				flush()
				return
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (l *SQLiteLogger) writeBatch(batch []*Entry) error {
	ctx := context.Background()
	return dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		for _, e := range batch {
			if err := insert(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func insert(ctx context.Context, tx *sql.Tx, e *Entry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (entry_id, timestamp, action, transport, request_id,
			document_id, parameters, status, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.Timestamp, e.Action, e.Transport, e.RequestID,
		e.DocumentID, e.Parameters, e.Status, e.Error, e.DurationMs)
	return err
}

// Recent returns the latest entries, newest first. An empty documentID
// matches every document.
func (l *SQLiteLogger) Recent(ctx context.Context, documentID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT entry_id, timestamp, action, transport, request_id, document_id,
			parameters, status, error_message, duration_ms
		FROM audit_log
		WHERE ? = '' OR document_id = ?
		ORDER BY timestamp DESC, entry_id DESC
		LIMIT ?`, documentID, documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.EntryID, &e.Timestamp, &e.Action, &e.Transport, &e.RequestID,
			&e.DocumentID, &e.Parameters, &e.Status, &e.Error, &e.DurationMs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close flushes queued entries and stops the writer. It is safe to call
// more than once.
func (l *SQLiteLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()
	l.done.Wait()
	return nil
}

// Middleware audits every call of the wrapped endpoint under action. The
// request is recorded as JSON; transport, request and document ids come
// from the context.
func Middleware(l *SQLiteLogger, action string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			e := &Entry{
				Action:     action,
				Transport:  kit.GetTransport(ctx),
				RequestID:  kit.GetRequestID(ctx),
				DocumentID: kit.GetDocumentID(ctx),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if req != nil {
				if b, merr := json.Marshal(req); merr == nil {
					if len(b) > maxParameters {
						b = b[:maxParameters]
					}
					e.Parameters = string(b)
				}
			}
			if err != nil {
				e.Error = err.Error()
			}
			l.LogAsync(e)
			return resp, err
		}
	}
}

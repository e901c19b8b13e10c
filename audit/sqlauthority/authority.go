// Package sqlauthority delivers audit work items into a SQLite database.
package sqlauthority

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schemaVersion = 2

// Row is one stored audit document.
type Row struct {
	ID        string `db:"id"`
	Tag       string `db:"tag"`
	Category  string `db:"category"`
	AuditID   int    `db:"audit_id"`
	EventType string `db:"event_type"`
	Timestamp string `db:"timestamp"`
	LogonID   string `db:"logon_id"`
	Params    string `db:"params"`
	Record    []byte `db:"record"`
}

// Document decodes the stored parameters back into an audit.Document.
func (r Row) Document() (audit.Document, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return audit.Document{}, err
	}
	doc := audit.Document{
		ID:        r.ID,
		Tag:       r.Tag,
		Category:  r.Category,
		AuditID:   uint16(r.AuditID),
		Type:      r.EventType,
		Timestamp: ts,
		LogonID:   r.LogonID,
	}
	if r.Params != "" {
		if err := json.Unmarshal([]byte(r.Params), &doc.Params); err != nil {
			return audit.Document{}, err
		}
	}
	return doc, nil
}

// Authority is an audit.Authority backed by SQLite. Once closed every
// delivery reports audit.ErrAuthorityGone.
type Authority struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	closed bool
}

// Open creates or migrates the database at path.
func Open(ctx context.Context, path string) (*Authority, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit database directory: %w", err)
	}
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	a := &Authority{db: db}
	if err := a.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *Authority) ensureSchema(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_info (
		version INTEGER PRIMARY KEY,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_info: %w", err)
	}

	var version int
	err := a.db.GetContext(ctx, &version, "SELECT version FROM schema_info ORDER BY version DESC LIMIT 1")
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for v := version; v < schemaVersion; v++ {
		switch v {
		case 0:
			_, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS audit_records (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				tag TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				audit_id INTEGER NOT NULL DEFAULT 0,
				event_type TEXT NOT NULL DEFAULT '',
				timestamp TEXT NOT NULL,
				logon_id TEXT NOT NULL DEFAULT '',
				params TEXT NOT NULL DEFAULT ''
			)`)
		case 1:
			// v2 keeps the raw self-relative record alongside the rendering.
			if _, err = tx.ExecContext(ctx, `ALTER TABLE audit_records ADD COLUMN record BLOB`); err == nil {
				_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_records_audit_id ON audit_records(audit_id)`)
			}
		}
		if err != nil {
			return fmt.Errorf("migrate schema to v%d: %w", v+1, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO schema_info (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}
	return tx.Commit()
}

func (a *Authority) Deliver(ctx context.Context, item *audit.WorkItem) error {
	doc, err := audit.NewDocument(item)
	if err != nil {
		return err
	}
	var params string
	if len(doc.Params) > 0 {
		raw, err := json.Marshal(doc.Params)
		if err != nil {
			return err
		}
		params = string(raw)
	}
	row := Row{
		ID:        doc.ID,
		Tag:       doc.Tag,
		Category:  doc.Category,
		AuditID:   int(doc.AuditID),
		EventType: doc.Type,
		Timestamp: doc.Timestamp.Format(time.RFC3339Nano),
		LogonID:   doc.LogonID,
		Params:    params,
	}
	if item.Tag == audit.TagAuditRecord {
		row.Record = append([]byte(nil), item.Buffer...)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return audit.ErrAuthorityGone
	}
	_, err = a.db.NamedExecContext(ctx, `INSERT INTO audit_records
		(id, tag, category, audit_id, event_type, timestamp, logon_id, params, record)
		VALUES (:id, :tag, :category, :audit_id, :event_type, :timestamp, :logon_id, :params, :record)`, row)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Count returns the number of stored rows.
func (a *Authority) Count(ctx context.Context) (int, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return 0, audit.ErrAuthorityGone
	}
	var n int
	err := a.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM audit_records")
	return n, err
}

// Recent returns up to limit rows in delivery order, oldest first.
func (a *Authority) Recent(ctx context.Context, limit int) ([]Row, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, audit.ErrAuthorityGone
	}
	var rows []Row
	err := a.db.SelectContext(ctx, &rows, `SELECT id, tag, category, audit_id, event_type, timestamp, logon_id, params, COALESCE(record, x'') AS record
		FROM (SELECT * FROM audit_records ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`, limit)
	return rows, err
}

// Close releases the database. It is safe to call more than once.
func (a *Authority) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}

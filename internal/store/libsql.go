package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/diagen/diagen/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Conversions ---

func (s *LibSQLStore) CreateConversion(ctx context.Context, c *Conversion) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, source, prompt, mermaid, variant, model, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Source, nullStr(c.Prompt), c.Mermaid, c.Variant, nullStr(c.Model), timeOrNow(c.CreatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "create conversion: %v", err).WithCause(err)
	}
	return nil
}

func (s *LibSQLStore) GetConversion(ctx context.Context, id string) (*Conversion, error) {
	c := &Conversion{}
	var prompt, model sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, prompt, mermaid, variant, model, created_at
		 FROM conversions WHERE id = ?`, id,
	).Scan(&c.ID, &c.Source, &prompt, &c.Mermaid, &c.Variant, &model, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("conversion", id)
	}
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "get conversion: %v", err).WithCause(err)
	}
	c.Prompt = prompt.String
	c.Model = model.String
	return c, nil
}

func (s *LibSQLStore) ListConversions(ctx context.Context, filter ConversionFilter) ([]*Conversion, error) {
	query := `SELECT id, source, prompt, mermaid, variant, model, created_at FROM conversions`
	var args []any
	if filter.Source != "" {
		query += ` WHERE source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list conversions: %v", err).WithCause(err)
	}
	defer rows.Close()

	var out []*Conversion
	for rows.Next() {
		c := &Conversion{}
		var prompt, model sql.NullString
		if err := rows.Scan(&c.ID, &c.Source, &prompt, &c.Mermaid, &c.Variant, &model, &c.CreatedAt); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan conversion: %v", err).WithCause(err)
		}
		c.Prompt = prompt.String
		c.Model = model.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *LibSQLStore) DeleteConversion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE id = ?`, id)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "delete conversion: %v", err).WithCause(err)
	}
	return checkRowsAffected(res, "conversion", id)
}

// PruneBefore deletes conversions created before the cutoff and reports how
// many rows were removed.
func (s *LibSQLStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, schema.NewErrorf(schema.ErrCodeStore, "prune conversions: %v", err).WithCause(err)
	}
	return res.RowsAffected()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.DiagenError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

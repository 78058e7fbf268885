// ABOUTME: SQLite implementation of the document Store using modernc.org/sqlite
// ABOUTME: One documents table with JSON bodies and expression indexes per collection

package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	schema Schema
	logger *slog.Logger
}

// fieldNameRe restricts index/predicate field names to what we are
// willing to splice into a json_extract path.
var fieldNameRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// NewSQLiteStore opens (or creates) a SQLite store at the given path and
// ensures the documents table and the schema's indexes exist.
// Parent directories are created if needed. Use ":memory:" for tests.
func NewSQLiteStore(path string, schema Schema) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "docstore")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection keeps the per-record write serialization the
	// services rely on, and keeps ":memory:" databases from fragmenting
	// across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		schema: schema,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("document store initialized", "path", path, "collections", len(schema))
	return s, nil
}

// createSchema creates the documents table and one expression index per
// declared collection index. Index fields resolve to json_extract paths
// except CreatedAtField, which resolves to the created_at column.
func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at INTEGER NOT NULL,

			PRIMARY KEY (collection, id)
		);

		CREATE INDEX IF NOT EXISTS idx_documents_created
			ON documents(collection, created_at);
	`)
	if err != nil {
		return err
	}

	for _, c := range s.schema {
		for _, idx := range c.Indexes {
			exprs := make([]string, 0, len(idx.Fields))
			for _, f := range idx.Fields {
				expr, err := fieldExpr(f)
				if err != nil {
					return fmt.Errorf("index %s.%s: %w", c.Name, idx.Name, err)
				}
				exprs = append(exprs, expr)
			}
			stmt := fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS idx_%s_%s ON documents(%s) WHERE collection = '%s'`,
				c.Name, idx.Name, strings.Join(exprs, ", "), c.Name,
			)
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating index %s.%s: %w", c.Name, idx.Name, err)
			}
		}
	}
	return nil
}

// fieldExpr maps an index/predicate field name to a SQL expression.
func fieldExpr(field string) (string, error) {
	if field == CreatedAtField {
		return "created_at", nil
	}
	if !fieldNameRe.MatchString(field) {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return fmt.Sprintf("json_extract(body, '$.%s')", field), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing document store")
	return s.db.Close()
}

// Insert stores a new document, filling in ID and CreatedAt if zero.
func (s *SQLiteStore) Insert(ctx context.Context, collection string, doc *Document) (string, error) {
	if _, ok := s.schema.collection(collection); !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, created_at)
		VALUES (?, ?, ?, ?)
	`, collection, doc.ID, string(doc.Body), doc.CreatedAt.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Debug("inserted document", "collection", collection, "id", doc.ID)
	return doc.ID, nil
}

// Patch merges fields into an existing document's body using json_patch,
// so the merge is a single atomic UPDATE. Returns ErrNotFound if absent.
func (s *SQLiteStore) Patch(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshaling patch: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE documents SET body = json_patch(body, ?)
		WHERE collection = ? AND id = ?
	`, string(patch), collection, id)
	if err != nil {
		return fmt.Errorf("patching document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("patched document", "collection", collection, "id", id)
	return nil
}

// Delete removes a document by id. Returns ErrNotFound if absent.
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, collection, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted document", "collection", collection, "id", id)
	return nil
}

// Get retrieves a document by id. Returns ErrNotFound if absent.
func (s *SQLiteStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var body string
	var createdAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT body, created_at FROM documents
		WHERE collection = ? AND id = ?
	`, collection, id).Scan(&body, &createdAt)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	return &Document{
		ID:        id,
		CreatedAt: time.UnixMilli(createdAt),
		Body:      json.RawMessage(body),
	}, nil
}

// QueryByIndex runs an equality query against a declared index and
// returns the matching documents as a snapshot slice.
//
// Equality predicates must use fields the index was declared over;
// Filter predicates may use any body field but degrade to a linear scan
// within the index range.
func (s *SQLiteStore) QueryByIndex(ctx context.Context, q Query) ([]*Document, error) {
	col, ok := s.schema.collection(q.Collection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, q.Collection)
	}

	var indexed map[string]bool
	if q.Index != "" {
		idx, ok := col.index(q.Index)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, q.Collection, q.Index)
		}
		indexed = make(map[string]bool, len(idx.Fields))
		for _, f := range idx.Fields {
			indexed[f] = true
		}
	} else if len(q.Equals) > 0 {
		return nil, fmt.Errorf("%w: equality predicate requires an index", ErrBadPredicate)
	}

	sqlQuery := `SELECT id, body, created_at FROM documents WHERE collection = ?`
	args := []any{q.Collection}

	for field, value := range q.Equals {
		if !indexed[field] {
			return nil, fmt.Errorf("%w: %s not in index %s", ErrBadPredicate, field, q.Index)
		}
		expr, err := fieldExpr(field)
		if err != nil {
			return nil, err
		}
		sqlQuery += ` AND ` + expr + ` = ?`
		args = append(args, value)
	}

	for field, value := range q.Filter {
		expr, err := fieldExpr(field)
		if err != nil {
			return nil, err
		}
		sqlQuery += ` AND ` + expr + ` = ?`
		args = append(args, value)
	}

	if !q.CreatedBefore.IsZero() {
		sqlQuery += ` AND created_at < ?`
		args = append(args, q.CreatedBefore.UnixMilli())
	}

	if q.Descending {
		sqlQuery += ` ORDER BY created_at DESC`
	} else {
		sqlQuery += ` ORDER BY created_at ASC`
	}

	if q.Limit > 0 {
		sqlQuery += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*Document
	for rows.Next() {
		var id, body string
		var createdAt int64
		if err := rows.Scan(&id, &body, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, &Document{
			ID:        id,
			CreatedAt: time.UnixMilli(createdAt),
			Body:      json.RawMessage(body),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating document rows: %w", err)
	}
	return docs, nil
}

// Count returns the number of documents in a collection. Used by the
// admin CLI for stats output.
func (s *SQLiteStore) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents WHERE collection = ?
	`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

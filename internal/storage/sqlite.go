package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/manabu/internal/models"
)

// SQLiteStore implements DocumentStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		selected BOOLEAN NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_selected ON documents(selected);

	CREATE TABLE IF NOT EXISTS document_chunks (
		vector_id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		FOREIGN KEY (document) REFERENCES documents(name) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_document ON document_chunks(document, ordinal);
	`
	_, err := db.Exec(schema)
	return err
}

// List returns all documents ordered by name.
func (s *SQLiteStore) List(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, selected, chunk_count, created_at FROM documents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.Name, &doc.Selected, &doc.Chunks, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Get returns a document by name.
func (s *SQLiteStore) Get(ctx context.Context, name string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT name, selected, chunk_count, created_at FROM documents WHERE name = ?`, name,
	).Scan(&doc.Name, &doc.Selected, &doc.Chunks, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Exists reports whether a document with the given name is recorded.
func (s *SQLiteStore) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE name = ?`, name).Scan(&n)
	return n > 0, err
}

// Insert records the document with selected=false and its chunk ledger in one transaction.
func (s *SQLiteStore) Insert(ctx context.Context, name string, chunks []models.ChunkRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (name, selected, chunk_count, created_at) VALUES (?, 0, ?, ?)`,
		name, len(chunks), time.Now().UTC(),
	)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		return fmt.Errorf("insert document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO document_chunks (vector_id, document, ordinal) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.VectorID, name, c.Ordinal); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.VectorID, err)
		}
	}
	return tx.Commit()
}

// Delete removes a document; its chunk ledger rows cascade.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document = ?`, name); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tx.Commit()
}

// BulkSetSelected sets selected to membership of names for every row in a single UPDATE.
func (s *SQLiteStore) BulkSetSelected(ctx context.Context, names []string) error {
	if len(names) == 0 {
		_, err := s.db.ExecContext(ctx, `UPDATE documents SET selected = 0`)
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(names)), ",")
	args := make([]any, len(names))
	for i, n := range names {
		args[i] = n
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET selected = (name IN (`+placeholders+`))`, args...)
	return err
}

// SelectedNames returns the names of selected documents ordered by name.
func (s *SQLiteStore) SelectedNames(ctx context.Context) ([]string, error) {
	return s.strings(ctx, `SELECT name FROM documents WHERE selected = 1 ORDER BY name`)
}

// ChunkIDs returns the vector ids recorded for a document.
func (s *SQLiteStore) ChunkIDs(ctx context.Context, name string) ([]string, error) {
	return s.strings(ctx, `SELECT vector_id FROM document_chunks WHERE document = ? ORDER BY ordinal`, name)
}

func (s *SQLiteStore) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// CountChunks returns the total number of ledger entries.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

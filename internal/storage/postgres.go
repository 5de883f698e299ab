package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/hyperjump/manabu/internal/models"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	Name       string    `bun:"name,pk"`
	Selected   bool      `bun:"selected,notnull,default:false"`
	ChunkCount int       `bun:"chunk_count,notnull,default:0"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type chunkRow struct {
	bun.BaseModel `bun:"table:document_chunks,alias:c"`

	VectorID string `bun:"vector_id,pk"`
	Document string `bun:"document,notnull"`
	Ordinal  int    `bun:"ordinal,notnull"`
}

func (r documentRow) model() models.Document {
	return models.Document{Name: r.Name, Selected: r.Selected, Chunks: r.ChunkCount, CreatedAt: r.CreatedAt}
}

// PostgresStore implements DocumentStore on PostgreSQL through bun.
type PostgresStore struct {
	db *bun.DB
}

// NewPostgresStore connects to dsn and creates the tables if needed. When debug is set every
// query is logged by bundebug.
func NewPostgresStore(ctx context.Context, dsn string, debug bool) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*documentRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	if _, err := s.db.NewCreateTable().Model((*chunkRow)(nil)).IfNotExists().
		ForeignKey(`("document") REFERENCES "documents" ("name") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewCreateIndex().Model((*chunkRow)(nil)).IfNotExists().
		Index("idx_chunks_document").Column("document", "ordinal").Exec(ctx)
	return err
}

// List returns all documents ordered by name.
func (s *PostgresStore) List(ctx context.Context) ([]models.Document, error) {
	var rows []documentRow
	if err := s.db.NewSelect().Model(&rows).Order("name").Scan(ctx); err != nil {
		return nil, err
	}
	docs := make([]models.Document, len(rows))
	for i, r := range rows {
		docs[i] = r.model()
	}
	return docs, nil
}

// Get returns a document by name.
func (s *PostgresStore) Get(ctx context.Context, name string) (*models.Document, error) {
	var row documentRow
	err := s.db.NewSelect().Model(&row).Where("name = ?", name).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	doc := row.model()
	return &doc, nil
}

// Exists reports whether a document with the given name is recorded.
func (s *PostgresStore) Exists(ctx context.Context, name string) (bool, error) {
	return s.db.NewSelect().Model((*documentRow)(nil)).Where("name = ?", name).Exists(ctx)
}

// Insert records the document with selected=false and its chunk ledger in one transaction.
func (s *PostgresStore) Insert(ctx context.Context, name string, chunks []models.ChunkRecord) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		doc := &documentRow{Name: name, Selected: false, ChunkCount: len(chunks), CreatedAt: time.Now().UTC()}
		res, err := tx.NewInsert().Model(doc).On("CONFLICT (name) DO NOTHING").Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrExists, name)
		}
		if len(chunks) == 0 {
			return nil
		}
		rows := make([]chunkRow, len(chunks))
		for i, c := range chunks {
			rows[i] = chunkRow{VectorID: c.VectorID, Document: name, Ordinal: c.Ordinal}
		}
		_, err = tx.NewInsert().Model(&rows).
			On("CONFLICT (vector_id) DO UPDATE").
			Set("document = EXCLUDED.document, ordinal = EXCLUDED.ordinal").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
		return nil
	})
}

// Delete removes a document and its chunk ledger.
func (s *PostgresStore) Delete(ctx context.Context, name string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*chunkRow)(nil)).Where("document = ?", name).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*documentRow)(nil)).Where("name = ?", name).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil
	})
}

// BulkSetSelected sets selected to membership of names for every row in a single UPDATE.
func (s *PostgresStore) BulkSetSelected(ctx context.Context, names []string) error {
	q := s.db.NewUpdate().Model((*documentRow)(nil)).Where("TRUE")
	if len(names) == 0 {
		q = q.Set("selected = FALSE")
	} else {
		q = q.Set("selected = (name IN (?))", bun.In(names))
	}
	_, err := q.Exec(ctx)
	return err
}

// SelectedNames returns the names of selected documents ordered by name.
func (s *PostgresStore) SelectedNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.NewSelect().Model((*documentRow)(nil)).Column("name").
		Where("selected").Order("name").Scan(ctx, &names)
	return names, err
}

// ChunkIDs returns the vector ids recorded for a document.
func (s *PostgresStore) ChunkIDs(ctx context.Context, name string) ([]string, error) {
	var ids []string
	err := s.db.NewSelect().Model((*chunkRow)(nil)).Column("vector_id").
		Where("document = ?", name).Order("ordinal").Scan(ctx, &ids)
	return ids, err
}

// CountDocuments returns the total number of documents.
func (s *PostgresStore) CountDocuments(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().Model((*documentRow)(nil)).Count(ctx)
	return int64(n), err
}

// CountChunks returns the total number of ledger entries.
func (s *PostgresStore) CountChunks(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().Model((*chunkRow)(nil)).Count(ctx)
	return int64(n), err
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

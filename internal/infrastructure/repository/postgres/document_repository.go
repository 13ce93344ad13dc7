package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// DocumentRepository reads source documents. Rows are owned by the upstream
// parser and never written here.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT,
	url TEXT,
	content TEXT NOT NULL DEFAULT '',
	quality_score DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS enrichment_versions (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	model_id TEXT NOT NULL,
	summary TEXT,
	keywords JSONB,
	insights TEXT,
	processing_options JSONB NOT NULL,
	tokens_used INTEGER NOT NULL DEFAULT 0 CHECK (tokens_used >= 0),
	cost DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (cost >= 0),
	version INTEGER NOT NULL CHECK (version >= 1),
	is_active BOOLEAN NOT NULL DEFAULT FALSE,
	processed_at TIMESTAMPTZ NOT NULL,
	UNIQUE (document_id, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_enrichment_versions_active
	ON enrichment_versions(document_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS publish_records (
	id TEXT PRIMARY KEY,
	enrichment_version_id TEXT NOT NULL REFERENCES enrichment_versions(id),
	remote_page_id TEXT,
	remote_url TEXT,
	status TEXT NOT NULL,
	error_message TEXT,
	imported_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_publish_records_version
	ON publish_records(enrichment_version_id, imported_at DESC);

CREATE TABLE IF NOT EXISTS model_configs (
	id TEXT PRIMARY KEY,
	endpoint TEXT NOT NULL,
	token_encrypted TEXT NOT NULL DEFAULT '',
	model_name TEXT NOT NULL,
	timeout_seconds INTEGER NOT NULL DEFAULT 120,
	is_default BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS publish_configs (
	id TEXT PRIMARY KEY,
	token_encrypted TEXT NOT NULL,
	workspace_id TEXT NOT NULL DEFAULT '',
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ NOT NULL
);
`

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101401)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	query, args, err := psql.
		Select("id", "title", "url", "content", "quality_score", "created_at").
		From("documents").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document query: %w", err)
	}

	var doc domain.Document
	var title, url sql.NullString
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&doc.ID, &title, &url, &doc.Content, &doc.QualityScore, &doc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("get document", "document", id)
		}
		return nil, domain.WrapError(domain.ErrPersistence, "get document", err)
	}
	doc.Title = title.String
	doc.URL = url.String
	return &doc, nil
}

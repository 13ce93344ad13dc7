package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

const pgUniqueViolation = "23505"

var versionColumns = []string{
	"id", "document_id", "model_id", "summary", "keywords", "insights",
	"processing_options", "tokens_used", "cost", "version", "is_active", "processed_at",
}

type EnrichmentRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewEnrichmentRepository(db *sql.DB) *EnrichmentRepository {
	return &EnrichmentRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CommitVersion deactivates the document's active row, takes MAX(version)+1
// and inserts the new active row in one transaction. The advisory lock keyed
// by document id serializes concurrent writers across processes.
func (r *EnrichmentRepository) CommitVersion(ctx context.Context, draft domain.EnrichmentDraft) (*domain.EnrichmentVersion, error) {
	const op = "commit enrichment version"

	keywords, err := encodeKeywords(draft.Keywords)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	options, err := json.Marshal(draft.Options)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("marshal processing options: %w", err))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, draft.DocumentID); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("acquire document lock: %w", err))
	}

	deactivate, args, err := psql.Update("enrichment_versions").
		Set("is_active", false).
		Where(sq.Eq{"document_id": draft.DocumentID, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("build deactivate: %w", err))
	}
	if _, err := tx.ExecContext(ctx, deactivate, args...); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("deactivate previous version: %w", err))
	}

	maxQuery, args, err := psql.Select("COALESCE(MAX(version), 0)").
		From("enrichment_versions").
		Where(sq.Eq{"document_id": draft.DocumentID}).
		ToSql()
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("build max version: %w", err))
	}
	var current int
	if err := tx.QueryRowContext(ctx, maxQuery, args...).Scan(&current); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("read max version: %w", err))
	}

	row := &domain.EnrichmentVersion{
		ID:                uuid.NewString(),
		DocumentID:        draft.DocumentID,
		ModelID:           draft.ModelID,
		Summary:           draft.Summary,
		Keywords:          draft.Keywords,
		Insights:          draft.Insights,
		ProcessingOptions: draft.Options,
		TokensUsed:        draft.TokensUsed,
		Cost:              0,
		Version:           current + 1,
		IsActive:          true,
		ProcessedAt:       r.now(),
	}

	insert, args, err := psql.Insert("enrichment_versions").
		Columns(versionColumns...).
		Values(
			row.ID, row.DocumentID, row.ModelID, row.Summary, keywords, row.Insights,
			options, row.TokensUsed, row.Cost, row.Version, row.IsActive, row.ProcessedAt,
		).
		ToSql()
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("build insert: %w", err))
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, classifyWriteError("insert enrichment version", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("commit tx: %w", err))
	}
	return row, nil
}

func (r *EnrichmentRepository) GetByID(ctx context.Context, id string) (*domain.EnrichmentVersion, error) {
	row, err := r.getOne(ctx, "get enrichment version", sq.Eq{"id": id})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError("get enrichment version", "enrichment version", id)
	}
	return row, err
}

func (r *EnrichmentRepository) GetActive(ctx context.Context, documentID string) (*domain.EnrichmentVersion, error) {
	row, err := r.getOne(ctx, "get active enrichment", sq.Eq{"document_id": documentID, "is_active": true})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError("get active enrichment", "active enrichment for document", documentID)
	}
	return row, err
}

func (r *EnrichmentRepository) GetVersion(ctx context.Context, documentID string, version int) (*domain.EnrichmentVersion, error) {
	row, err := r.getOne(ctx, "get enrichment version", sq.Eq{"document_id": documentID, "version": version})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError("get enrichment version", "enrichment version", fmt.Sprintf("%s/%d", documentID, version))
	}
	return row, err
}

func (r *EnrichmentRepository) ListVersions(ctx context.Context, documentID string) ([]domain.EnrichmentVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("enrichment_versions").
		Where(sq.Eq{"document_id": documentID}).
		OrderBy("version DESC").
		ToSql()
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "list enrichment versions", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "list enrichment versions", err)
	}
	defer rows.Close()

	out := make([]domain.EnrichmentVersion, 0)
	for rows.Next() {
		row, err := scanVersion(rows)
		if err != nil {
			return nil, domain.WrapError(domain.ErrPersistence, "list enrichment versions", err)
		}
		out = append(out, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "iterate enrichment versions", err)
	}
	return out, nil
}

// getOne returns sql.ErrNoRows unwrapped so callers can build their own
// NotFound message.
func (r *EnrichmentRepository) getOne(ctx context.Context, op string, where sq.Eq) (*domain.EnrichmentVersion, error) {
	query, args, err := psql.Select(versionColumns...).
		From("enrichment_versions").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}

	row, err := scanVersion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}
	return row, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(s rowScanner) (*domain.EnrichmentVersion, error) {
	var v domain.EnrichmentVersion
	var summary, insights sql.NullString
	var keywordsRaw, optionsRaw []byte

	if err := s.Scan(
		&v.ID, &v.DocumentID, &v.ModelID, &summary, &keywordsRaw, &insights,
		&optionsRaw, &v.TokensUsed, &v.Cost, &v.Version, &v.IsActive, &v.ProcessedAt,
	); err != nil {
		return nil, err
	}

	if summary.Valid {
		v.Summary = &summary.String
	}
	if insights.Valid {
		v.Insights = &insights.String
	}
	if len(keywordsRaw) > 0 {
		if err := json.Unmarshal(keywordsRaw, &v.Keywords); err != nil {
			return nil, fmt.Errorf("unmarshal keywords: %w", err)
		}
	}
	if len(optionsRaw) > 0 {
		if err := json.Unmarshal(optionsRaw, &v.ProcessingOptions); err != nil {
			return nil, fmt.Errorf("unmarshal processing options: %w", err)
		}
	}
	return &v, nil
}

// encodeKeywords keeps "not requested" (nil) distinct from a stored list.
func encodeKeywords(keywords []string) (any, error) {
	if keywords == nil {
		return nil, nil
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("marshal keywords: %w", err)
	}
	return raw, nil
}

func classifyWriteError(step string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.WrapError(domain.ErrTemporary, step, fmt.Errorf("concurrent commit on %s: %w", pgErr.ConstraintName, err))
	}
	return fmt.Errorf("%s: %w", step, err)
}

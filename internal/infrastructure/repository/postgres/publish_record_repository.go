package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

// PublishRecordRepository appends publish attempts. Records are immutable.
type PublishRecordRepository struct {
	db *sql.DB
}

func NewPublishRecordRepository(db *sql.DB) *PublishRecordRepository {
	return &PublishRecordRepository{db: db}
}

func (r *PublishRecordRepository) CreateRecord(ctx context.Context, record *domain.PublishRecord) error {
	query, args, err := psql.Insert("publish_records").
		Columns("id", "enrichment_version_id", "remote_page_id", "remote_url", "status", "error_message", "imported_at").
		Values(
			record.ID,
			record.EnrichmentVersionID,
			nullIfEmpty(record.RemotePageID),
			nullIfEmpty(record.RemoteURL),
			string(record.Status),
			nullIfEmpty(record.ErrorMessage),
			record.ImportedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build publish record insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.WrapError(domain.ErrPersistence, "insert publish record", err)
	}
	return nil
}

func (r *PublishRecordRepository) ListByVersion(ctx context.Context, versionID string) ([]domain.PublishRecord, error) {
	query, args, err := psql.
		Select("id", "enrichment_version_id", "remote_page_id", "remote_url", "status", "error_message", "imported_at").
		From("publish_records").
		Where(sq.Eq{"enrichment_version_id": versionID}).
		OrderBy("imported_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build publish record query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "list publish records", err)
	}
	defer rows.Close()

	out := make([]domain.PublishRecord, 0)
	for rows.Next() {
		var rec domain.PublishRecord
		var pageID, url, errMsg sql.NullString
		var status string
		if err := rows.Scan(&rec.ID, &rec.EnrichmentVersionID, &pageID, &url, &status, &errMsg, &rec.ImportedAt); err != nil {
			return nil, domain.WrapError(domain.ErrPersistence, "scan publish record", err)
		}
		rec.RemotePageID = pageID.String
		rec.RemoteURL = url.String
		rec.ErrorMessage = errMsg.String
		rec.Status = domain.PublishStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrPersistence, "iterate publish records", err)
	}
	return out, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

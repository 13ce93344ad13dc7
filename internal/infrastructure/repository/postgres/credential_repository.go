package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
)

// CredentialRepository resolves credential bundles stored with encrypted
// tokens. Tokens are decrypted on every resolve and never cached.
type CredentialRepository struct {
	db    *sql.DB
	codec ports.SecretCodec
	now   func() time.Time
}

func NewCredentialRepository(db *sql.DB, codec ports.SecretCodec) *CredentialRepository {
	return &CredentialRepository{
		db:    db,
		codec: codec,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *CredentialRepository) ResolveModel(ctx context.Context, modelID string) (*domain.ModelCredentials, error) {
	const op = "resolve model"

	builder := psql.Select("id", "endpoint", "token_encrypted", "model_name", "timeout_seconds").
		From("model_configs")
	id := strings.TrimSpace(modelID)
	if id == "" {
		builder = builder.Where(sq.Eq{"is_default": true}).OrderBy("updated_at DESC")
	} else {
		builder = builder.Where(sq.Eq{"id": id})
	}
	query, args, err := builder.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build model config query: %w", err)
	}

	var creds domain.ModelCredentials
	var encrypted string
	var timeoutSeconds int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&creds.ID, &creds.Endpoint, &encrypted, &creds.Name, &timeoutSeconds)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if id == "" {
				return nil, domain.WrapError(domain.ErrConfigurationMissing, op, errors.New("no default model configured"))
			}
			return nil, domain.WrapError(domain.ErrConfigurationMissing, op, fmt.Errorf("model %q is not configured", id))
		}
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}

	if encrypted != "" {
		token, err := r.codec.Decrypt(encrypted)
		if err != nil {
			return nil, domain.WrapError(domain.ErrConfigurationMissing, op, fmt.Errorf("decrypt token for model %q: %w", creds.ID, err))
		}
		creds.Token = token
	}
	creds.Timeout = time.Duration(timeoutSeconds) * time.Second
	return &creds, nil
}

func (r *CredentialRepository) ResolvePublishTarget(ctx context.Context) (*domain.PublishCredentials, error) {
	const op = "resolve publish target"

	query, args, err := psql.Select("token_encrypted", "workspace_id").
		From("publish_configs").
		Where(sq.Eq{"is_active": true}).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build publish config query: %w", err)
	}

	var encrypted string
	var creds domain.PublishCredentials
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&encrypted, &creds.WorkspaceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrConfigurationMissing, op, errors.New("no active publish target configured"))
		}
		return nil, domain.WrapError(domain.ErrPersistence, op, err)
	}

	token, err := r.codec.Decrypt(encrypted)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfigurationMissing, op, fmt.Errorf("decrypt publish token: %w", err))
	}
	creds.Token = token
	return &creds, nil
}

// UpsertModelConfig stores a model bundle, encrypting its token. Marking a
// bundle as default clears the flag on every other bundle.
func (r *CredentialRepository) UpsertModelConfig(ctx context.Context, creds domain.ModelCredentials, isDefault bool) error {
	const op = "upsert model config"
	if strings.TrimSpace(creds.ID) == "" || strings.TrimSpace(creds.Endpoint) == "" {
		return domain.WrapError(domain.ErrInvalidInput, op, errors.New("model id and endpoint are required"))
	}

	encrypted := ""
	if creds.Token != "" {
		var err error
		if encrypted, err = r.codec.Encrypt(creds.Token); err != nil {
			return fmt.Errorf("%s: encrypt token: %w", op, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrPersistence, op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if isDefault {
		clearQuery, args, err := psql.Update("model_configs").
			Set("is_default", false).
			Where(sq.NotEq{"id": creds.ID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build clear default: %w", err)
		}
		if _, err := tx.ExecContext(ctx, clearQuery, args...); err != nil {
			return domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("clear default model: %w", err))
		}
	}

	upsert, args, err := psql.Insert("model_configs").
		Columns("id", "endpoint", "token_encrypted", "model_name", "timeout_seconds", "is_default", "updated_at").
		Values(creds.ID, creds.Endpoint, encrypted, creds.Name, int(creds.Timeout/time.Second), isDefault, r.now()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
	endpoint = EXCLUDED.endpoint,
	token_encrypted = EXCLUDED.token_encrypted,
	model_name = EXCLUDED.model_name,
	timeout_seconds = EXCLUDED.timeout_seconds,
	is_default = EXCLUDED.is_default,
	updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build model config upsert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, args...); err != nil {
		return domain.WrapError(domain.ErrPersistence, op, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrPersistence, op, fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// UpsertPublishConfig stores the publish bundle under id and marks it active.
func (r *CredentialRepository) UpsertPublishConfig(ctx context.Context, id string, creds domain.PublishCredentials) error {
	const op = "upsert publish config"
	if strings.TrimSpace(id) == "" || creds.Token == "" {
		return domain.WrapError(domain.ErrInvalidInput, op, errors.New("publish config id and token are required"))
	}

	encrypted, err := r.codec.Encrypt(creds.Token)
	if err != nil {
		return fmt.Errorf("%s: encrypt token: %w", op, err)
	}

	query, args, err := psql.Insert("publish_configs").
		Columns("id", "token_encrypted", "workspace_id", "is_active", "updated_at").
		Values(id, encrypted, creds.WorkspaceID, true, r.now()).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
	token_encrypted = EXCLUDED.token_encrypted,
	workspace_id = EXCLUDED.workspace_id,
	is_active = EXCLUDED.is_active,
	updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build publish config upsert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return domain.WrapError(domain.ErrPersistence, op, err)
	}
	return nil
}

package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

type prefixCodec struct{}

func (prefixCodec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("empty")
	}
	return "enc:" + plaintext, nil
}

func (prefixCodec) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "enc:") {
		return "", errors.New("bad ciphertext")
	}
	return strings.TrimPrefix(ciphertext, "enc:"), nil
}

func newCredentialRepo(t *testing.T) (*CredentialRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, done := newMockDB(t)
	repo := NewCredentialRepository(db, prefixCodec{})
	repo.now = func() time.Time { return fixedNow }
	return repo, mock, done
}

var modelColumns = []string{"id", "endpoint", "token_encrypted", "model_name", "timeout_seconds"}

func TestResolveModelDefaultBundle(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectQuery("FROM model_configs WHERE is_default = .+ ORDER BY updated_at DESC LIMIT 1").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows(modelColumns).AddRow("model-default", "http://ollama:11434", "enc:tok", "llama3", 90))

	creds, err := repo.ResolveModel(context.Background(), "")
	if err != nil {
		t.Fatalf("ResolveModel() error = %v", err)
	}
	if creds.ID != "model-default" || creds.Token != "tok" || creds.Name != "llama3" {
		t.Fatalf("unexpected creds %#v", creds)
	}
	if creds.Timeout != 90*time.Second {
		t.Fatalf("unexpected timeout %v", creds.Timeout)
	}
}

func TestResolveModelByIDWithoutToken(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectQuery("FROM model_configs WHERE id = ").
		WithArgs("model-b").
		WillReturnRows(sqlmock.NewRows(modelColumns).AddRow("model-b", "http://local", "", "mistral", 30))

	creds, err := repo.ResolveModel(context.Background(), "model-b")
	if err != nil {
		t.Fatalf("ResolveModel() error = %v", err)
	}
	if creds.Token != "" {
		t.Fatalf("expected empty token, got %q", creds.Token)
	}
}

func TestResolveModelMissingIsConfigurationMissing(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectQuery("FROM model_configs").WithArgs("nope").WillReturnRows(sqlmock.NewRows(modelColumns))

	_, err := repo.ResolveModel(context.Background(), "nope")
	if !domain.IsKind(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestResolveModelUndecryptableToken(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectQuery("FROM model_configs").
		WillReturnRows(sqlmock.NewRows(modelColumns).AddRow("m", "http://x", "garbage", "n", 10))

	_, err := repo.ResolveModel(context.Background(), "m")
	if !domain.IsKind(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestResolvePublishTarget(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectQuery("FROM publish_configs WHERE is_active = ").
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"token_encrypted", "workspace_id"}).AddRow("enc:notion-secret", "ws-1"))

	creds, err := repo.ResolvePublishTarget(context.Background())
	if err != nil {
		t.Fatalf("ResolvePublishTarget() error = %v", err)
	}
	if creds.Token != "notion-secret" || creds.WorkspaceID != "ws-1" {
		t.Fatalf("unexpected creds %#v", creds)
	}
}

func TestResolvePublishTargetMissing(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectQuery("FROM publish_configs").WillReturnRows(sqlmock.NewRows([]string{"token_encrypted", "workspace_id"}))

	_, err := repo.ResolvePublishTarget(context.Background())
	if !domain.IsKind(err, domain.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestUpsertModelConfigEncryptsAndClearsOtherDefaults(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE model_configs SET is_default").
		WithArgs(false, "model-default").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("INSERT INTO model_configs .+ ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("model-default", "http://ollama", "enc:tok", "llama3", 120, true, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpsertModelConfig(context.Background(), domain.ModelCredentials{
		ID:       "model-default",
		Endpoint: "http://ollama",
		Token:    "tok",
		Name:     "llama3",
		Timeout:  2 * time.Minute,
	}, true)
	if err != nil {
		t.Fatalf("UpsertModelConfig() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpsertPublishConfigRequiresToken(t *testing.T) {
	repo, _, done := newCredentialRepo(t)
	defer done()

	err := repo.UpsertPublishConfig(context.Background(), "default", domain.PublishCredentials{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUpsertPublishConfigStoresEncryptedToken(t *testing.T) {
	repo, mock, done := newCredentialRepo(t)
	defer done()

	mock.ExpectExec("INSERT INTO publish_configs").
		WithArgs("default", "enc:secret", "ws-1", true, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertPublishConfig(context.Background(), "default", domain.PublishCredentials{Token: "secret", WorkspaceID: "ws-1"})
	if err != nil {
		t.Fatalf("UpsertPublishConfig() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

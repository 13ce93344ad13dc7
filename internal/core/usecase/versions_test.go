package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

func TestVersionManagerCommitAssignsSequentialVersions(t *testing.T) {
	store := &memVersionStore{}
	manager := NewVersionManager(store)

	for i := 1; i <= 3; i++ {
		v, err := manager.CommitNewVersion(context.Background(), domain.EnrichmentDraft{DocumentID: "doc-1", ModelID: "m"})
		if err != nil {
			t.Fatalf("CommitNewVersion() error = %v", err)
		}
		if v.Version != i || !v.IsActive {
			t.Fatalf("expected active version %d, got %+v", i, v)
		}
	}

	active, err := manager.GetActive(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetActive() error = %v", err)
	}
	if active.Version != 3 {
		t.Fatalf("expected version 3 active, got %d", active.Version)
	}

	first, err := manager.GetVersion(context.Background(), "doc-1", 1)
	if err != nil {
		t.Fatalf("GetVersion() error = %v", err)
	}
	if first.IsActive {
		t.Fatalf("explicit version lookup must return the inactive row as stored")
	}
}

func TestVersionManagerRejectsInvalidDrafts(t *testing.T) {
	manager := NewVersionManager(&memVersionStore{})

	_, err := manager.CommitNewVersion(context.Background(), domain.EnrichmentDraft{DocumentID: " "})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank document id, got %v", err)
	}
	_, err = manager.CommitNewVersion(context.Background(), domain.EnrichmentDraft{DocumentID: "doc-1", TokensUsed: -1})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for negative tokens, got %v", err)
	}
	_, err = manager.GetVersion(context.Background(), "doc-1", 0)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for version 0, got %v", err)
	}
}

func TestVersionManagerGetActiveForUnenrichedDocument(t *testing.T) {
	manager := NewVersionManager(&memVersionStore{})

	_, err := manager.GetActive(context.Background(), "never")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVersionManagerKeepsPersistenceKind(t *testing.T) {
	store := &memVersionStore{commitErr: domain.WrapError(domain.ErrPersistence, "commit", errors.New("rollback"))}
	manager := NewVersionManager(store)

	_, err := manager.CommitNewVersion(context.Background(), domain.EnrichmentDraft{DocumentID: "doc-1"})
	if !domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	locks := newKeyedMutex()
	unlockA := locks.Lock("a")
	unlockB := locks.Lock("b")
	unlockA()
	unlockB()

	if len(locks.locks) != 0 {
		t.Fatalf("expected lock table to be empty, got %d entries", len(locks.locks))
	}
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
)

// VersionManager owns the enrichment version lifecycle of each document.
// Commits for the same document are serialized in-process before reaching the
// store, which serializes them again inside its transaction.
type VersionManager struct {
	store ports.VersionStore
	locks *keyedMutex
}

func NewVersionManager(store ports.VersionStore) *VersionManager {
	return &VersionManager{
		store: store,
		locks: newKeyedMutex(),
	}
}

func (m *VersionManager) CommitNewVersion(ctx context.Context, draft domain.EnrichmentDraft) (*domain.EnrichmentVersion, error) {
	if strings.TrimSpace(draft.DocumentID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "commit version", errors.New("document id is required"))
	}
	if draft.TokensUsed < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "commit version", fmt.Errorf("negative tokens_used %d", draft.TokensUsed))
	}

	unlock := m.locks.Lock(draft.DocumentID)
	defer unlock()

	version, err := m.store.CommitVersion(ctx, draft)
	if err != nil {
		if domain.IsKind(err, domain.ErrPersistence) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrPersistence, "commit version", err)
	}
	return version, nil
}

func (m *VersionManager) GetByID(ctx context.Context, id string) (*domain.EnrichmentVersion, error) {
	return m.store.GetByID(ctx, id)
}

func (m *VersionManager) GetActive(ctx context.Context, documentID string) (*domain.EnrichmentVersion, error) {
	return m.store.GetActive(ctx, documentID)
}

func (m *VersionManager) GetVersion(ctx context.Context, documentID string, version int) (*domain.EnrichmentVersion, error) {
	if version <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "get version", fmt.Errorf("version must be positive, got %d", version))
	}
	return m.store.GetVersion(ctx, documentID, version)
}

func (m *VersionManager) ListVersions(ctx context.Context, documentID string) ([]domain.EnrichmentVersion, error) {
	return m.store.ListVersions(ctx, documentID)
}

// keyedMutex hands out one mutex per key and drops it once no holder or
// waiter remains.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &refMutex{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

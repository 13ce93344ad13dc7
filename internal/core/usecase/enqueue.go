package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
)

type EnqueueEnrichmentUseCase struct {
	queue ports.MessageQueue
}

func NewEnqueueEnrichmentUseCase(queue ports.MessageQueue) *EnqueueEnrichmentUseCase {
	return &EnqueueEnrichmentUseCase{queue: queue}
}

// Enqueue publishes one enrichment request per document id and returns the
// number of requests published before the first failure.
func (uc *EnqueueEnrichmentUseCase) Enqueue(
	ctx context.Context,
	documentIDs []string,
	modelID string,
	opts domain.EnrichmentOptions,
) (int, error) {
	if len(documentIDs) == 0 {
		return 0, domain.WrapError(domain.ErrInvalidInput, "enqueue enrichment", errors.New("document_ids must be a non-empty list"))
	}
	for _, id := range documentIDs {
		if strings.TrimSpace(id) == "" {
			return 0, domain.WrapError(domain.ErrInvalidInput, "enqueue enrichment", errors.New("document id must not be blank"))
		}
	}

	enqueuedAt := time.Now().UTC()
	for idx, id := range documentIDs {
		req := domain.EnrichmentRequest{
			DocumentID: id,
			ModelID:    modelID,
			Options:    opts,
			EnqueuedAt: enqueuedAt,
		}
		if err := uc.queue.PublishEnrichmentRequested(ctx, req); err != nil {
			return idx, fmt.Errorf("publish enrichment request for %s: %w", id, err)
		}
	}
	return len(documentIDs), nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-enricher/internal/core/domain"
	"github.com/kirillkom/document-enricher/internal/core/ports"
)

type BatchEnrichUseCase struct {
	enricher    ports.DocumentEnricher
	metrics     ports.PipelineMetrics
	concurrency int
}

// NewBatchEnrichUseCase builds a runner that enriches up to concurrency
// documents at a time. Values below 1 run items sequentially.
func NewBatchEnrichUseCase(enricher ports.DocumentEnricher, metrics ports.PipelineMetrics, concurrency int) *BatchEnrichUseCase {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchEnrichUseCase{
		enricher:    enricher,
		metrics:     metrics,
		concurrency: concurrency,
	}
}

// Run enriches every document independently. Item failures are reported in
// the result and never abort the batch; results keep the input order.
func (uc *BatchEnrichUseCase) Run(
	ctx context.Context,
	documentIDs []string,
	modelID string,
	opts domain.EnrichmentOptions,
) (*domain.BatchResult, error) {
	if len(documentIDs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "run batch", errors.New("document_ids must be a non-empty list"))
	}

	results := make([]domain.BatchItemResult, len(documentIDs))

	var group errgroup.Group
	group.SetLimit(uc.concurrency)
	for idx, documentID := range documentIDs {
		group.Go(func() error {
			results[idx] = uc.runItem(ctx, documentID, modelID, opts)
			return nil
		})
	}
	_ = group.Wait()

	out := &domain.BatchResult{
		Success: true,
		Total:   len(results),
		Results: results,
	}
	for _, item := range results {
		if item.Success {
			out.Completed++
		} else {
			out.Failed++
		}
	}
	return out, nil
}

func (uc *BatchEnrichUseCase) runItem(
	ctx context.Context,
	documentID, modelID string,
	opts domain.EnrichmentOptions,
) (item domain.BatchItemResult) {
	item = domain.BatchItemResult{DocumentID: documentID}

	// A panicking enricher fails only its own item.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("batch_item_panic",
				"document_id", documentID,
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			uc.metrics.ObserveBatchItem("error")
			item = domain.BatchItemResult{
				DocumentID: documentID,
				EnrichmentResult: domain.EnrichmentResult{
					Error: fmt.Sprintf("enrichment panicked: %v", rec),
				},
			}
		}
	}()

	result, err := uc.enricher.Enrich(ctx, documentID, modelID, opts)
	if err == nil && result == nil {
		err = errors.New("enricher returned no result")
	}
	if err != nil {
		slog.Warn("batch_item_failed", "document_id", documentID, "error", err)
		uc.metrics.ObserveBatchItem("error")
		item.Success = false
		item.Error = err.Error()
		return item
	}

	uc.metrics.ObserveBatchItem("success")
	item.EnrichmentResult = *result
	return item
}

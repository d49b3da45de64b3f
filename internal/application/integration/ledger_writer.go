package integration

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
)

// LedgerWriteResult is the outcome of validating and upserting a batch.
type LedgerWriteResult struct {
	integration.UpsertResult
	Deleted  int64
	Rejected []integration.LedgerRejection
}

// LedgerWriter validates ledger candidates and writes the valid ones through
// the idempotent natural-key upsert.
type LedgerWriter struct {
	repo    integration.SalesLedgerRepository
	metrics SyncMetrics
	logger  *zap.Logger
}

// NewLedgerWriter creates a LedgerWriter
func NewLedgerWriter(repo integration.SalesLedgerRepository, metrics SyncMetrics, logger *zap.Logger) *LedgerWriter {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &LedgerWriter{repo: repo, metrics: metrics, logger: logger}
}

// Write upserts candidates. Invalid candidates are dropped and reported;
// duplicates of existing rows count as success.
func (w *LedgerWriter) Write(ctx context.Context, candidates []integration.LedgerCandidate) (LedgerWriteResult, error) {
	valid, rejected := integration.ValidateLedgerEntries(candidates)
	w.logRejections(rejected)

	result := LedgerWriteResult{Rejected: rejected}
	valid, dupes := dedupeByNaturalKey(valid)
	result.DuplicatesSkipped += dupes

	if len(valid) > 0 {
		upserted, err := w.repo.InsertIgnoreDuplicates(ctx, valid)
		if err != nil {
			return result, integration.NewTransientStoreError("upsert ledger entries", err)
		}
		result.Add(upserted)
	}

	w.metrics.ObserveLedgerWrite(result.UpsertResult, len(rejected))
	return result, nil
}

// Replace deletes every row of orderID and writes the valid candidates in
// one transaction. Reversal rows live under a different order id and survive.
func (w *LedgerWriter) Replace(ctx context.Context, tenantID uuid.UUID, orderID string, candidates []integration.LedgerCandidate) (LedgerWriteResult, error) {
	valid, rejected := integration.ValidateLedgerEntries(candidates)
	w.logRejections(rejected)

	result := LedgerWriteResult{Rejected: rejected}
	valid, dupes := dedupeByNaturalKey(valid)
	result.DuplicatesSkipped += dupes

	deleted, upserted, err := w.repo.ReplaceOrderEntries(ctx, tenantID, orderID, valid)
	if err != nil {
		return result, integration.NewTransientStoreError("replace ledger entries", err)
	}
	result.Deleted = deleted
	result.Add(upserted)

	w.metrics.ObserveLedgerWrite(result.UpsertResult, len(rejected))
	return result, nil
}

func (w *LedgerWriter) logRejections(rejected []integration.LedgerRejection) {
	for _, r := range rejected {
		w.logger.Warn("Ledger entry rejected",
			zap.String("tenant_id", r.Candidate.TenantID.String()),
			zap.String("external_order_id", r.Candidate.ExternalOrderID),
			zap.String("external_line_item_id", r.Candidate.ExternalLineItemID),
			zap.String("field", r.Err.Field),
			zap.String("rule", r.Err.Rule),
			zap.String("reason", r.Err.Reason),
		)
	}
}

func dedupeByNaturalKey(entries []integration.SalesLedgerEntry) ([]integration.SalesLedgerEntry, int) {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0]
	dupes := 0
	for _, e := range entries {
		key := e.NaturalKey()
		if _, ok := seen[key]; ok {
			dupes++
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out, dupes
}

package recommend

import (
	"context"
	"errors"

	"wellcoach/internal/domain"
)

// BulkFailure is one item that a bulk operation could not change.
type BulkFailure struct {
	ID  string
	Err error
}

// BulkResult reports a bulk operation item by item.
type BulkResult struct {
	Succeeded []string
	Failed    []BulkFailure
}

// Err joins every item failure, or returns nil when all items succeeded.
func (r BulkResult) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// BulkAccept accepts each id in turn. One failure never prevents the
// remaining items from being processed.
func (s *Service) BulkAccept(ctx context.Context, ids []string) BulkResult {
	return s.bulk(ctx, ids, s.Accept)
}

// BulkDecline declines each id in turn.
func (s *Service) BulkDecline(ctx context.Context, ids []string) BulkResult {
	return s.bulk(ctx, ids, s.Decline)
}

func (s *Service) bulk(ctx context.Context, ids []string, op func(context.Context, string) (*domain.Recommendation, error)) BulkResult {
	var res BulkResult
	for _, id := range ids {
		if _, err := op(ctx, id); err != nil {
			res.Failed = append(res.Failed, BulkFailure{ID: id, Err: err})
			continue
		}
		res.Succeeded = append(res.Succeeded, id)
	}
	if len(res.Failed) > 0 {
		s.metrics.RecordBulkFailures(len(res.Failed))
		s.log.WarnContext(ctx, "bulk operation partially failed",
			"succeeded", len(res.Succeeded), "failed", len(res.Failed), "error", res.Err())
	}
	return res
}

// PendingIDs returns the ids of the pending entries, in order.
func PendingIDs(entries []Entry) []string {
	var ids []string
	for _, e := range entries {
		if e.Disposition() == domain.DispositionPending {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

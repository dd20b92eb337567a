package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-ops/meridian-ops/internal/jobs"
	"github.com/meridian-ops/meridian-ops/internal/shared"
)

// HandleIdempotencyCleanupTask prunes idempotency keys past retention.
func HandleIdempotencyCleanupTask(store *shared.IdempotencyStore, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (err error) {
		tracker := metrics.Track("idempotency_cleanup")
		defer func() { err = tracker.End(err) }()

		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		retention := time.Duration(payload.RetentionHours) * time.Hour
		if retention <= 0 {
			retention = 72 * time.Hour
		}
		if err := store.Cleanup(ctx, retention); err != nil {
			return err
		}
		logger.Info("idempotency keys pruned", "retention", retention.String())
		return nil
	}
}

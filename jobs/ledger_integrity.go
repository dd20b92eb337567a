package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-ops/meridian-ops/internal/inventory"
	jobmetrics "github.com/meridian-ops/meridian-ops/internal/jobs"
)

// HandleLedgerIntegrityTask walks every balance snapshot and replays its
// ledger rows. A snapshot that drifts from the ledger sum means a write
// bypassed the movement path; the job only reports, it never repairs.
func HandleLedgerIntegrityTask(repo *inventory.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) (err error) {
		tracker := metrics.Track("ledger_integrity")
		defer func() { err = tracker.End(err) }()

		var payload LedgerIntegrityPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		start := time.Now()
		var checked, drifted int
		var afterID int64
		for {
			balances, err := repo.ListBalanceKeys(ctx, afterID, 500)
			if err != nil {
				return err
			}
			if len(balances) == 0 {
				break
			}
			for _, bal := range balances {
				afterID = bal.ID
				qty, _, err := repo.ReplayBalance(ctx, bal.Key())
				if err != nil {
					return err
				}
				checked++
				if !qty.Equal(bal.QuantityOnHand) {
					drifted++
					logger.Error("balance drifted from ledger",
						"item_id", bal.ItemID,
						"warehouse_id", bal.WarehouseID,
						"batch", bal.BatchNumber,
						"snapshot_qty", bal.QuantityOnHand.String(),
						"ledger_qty", qty.String())
				}
			}
		}
		metrics.AddDrift(drifted)
		logger.Info("ledger integrity check done",
			"checked", checked, "drifted", drifted, "took", time.Since(start).String())
		return nil
	}
}

// Package production posts manufacturing stock movements: raw material
// issues to a work order and finished goods receipts out of it.
package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-ops/meridian-ops/internal/inventory"
)

// MovementPort is the slice of the inventory service production posts through.
type MovementPort interface {
	AddStock(ctx context.Context, input inventory.AddStockInput) (inventory.Transaction, error)
	DeductStock(ctx context.Context, input inventory.DeductStockInput) (inventory.Transaction, error)
	ValidateStockAvailability(ctx context.Context, itemID, warehouseID int64, required decimal.Decimal, batch string) error
}

// ErrNoLines indicates an issue without material lines.
var ErrNoLines = errors.New("production: material issue requires at least one line")

// IssueLine is one material requirement on an issue.
type IssueLine struct {
	ItemID      int64           `json:"item_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	BatchNumber string          `json:"batch_number,omitempty"`
}

// MaterialIssueInput describes materials leaving stock for a work order.
type MaterialIssueInput struct {
	WorkOrderRef string
	WarehouseID  int64
	Lines        []IssueLine
	Notes        string
	UserID       int64
}

// MaterialIssueResult reports the posted movements and their total cost.
type MaterialIssueResult struct {
	Transactions []inventory.Transaction `json:"transactions"`
	TotalCost    decimal.Decimal         `json:"total_cost"`
}

// LineError reports the line that failed pre-validation.
type LineError struct {
	ItemID int64
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("production: line for item %d: %v", e.ItemID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Service posts production movements against the stock ledger.
type Service struct {
	movements MovementPort
	logger    *slog.Logger
}

// NewService constructs the service.
func NewService(movements MovementPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{movements: movements, logger: logger}
}

// IssueMaterials deducts every line for a work order. All lines are
// availability-checked up front so a multi-line issue either starts with
// every material in stock or rejects before anything moves.
func (s *Service) IssueMaterials(ctx context.Context, input MaterialIssueInput) (MaterialIssueResult, error) {
	if len(input.Lines) == 0 {
		return MaterialIssueResult{}, ErrNoLines
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, line := range input.Lines {
		line := line
		g.Go(func() error {
			if err := s.movements.ValidateStockAvailability(gctx, line.ItemID, input.WarehouseID, line.Quantity, line.BatchNumber); err != nil {
				return &LineError{ItemID: line.ItemID, Err: err}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MaterialIssueResult{}, err
	}

	ref := inventory.Reference{Type: "WORK_ORDER", Number: input.WorkOrderRef}
	result := MaterialIssueResult{TotalCost: decimal.Zero}
	for _, line := range input.Lines {
		tx, err := s.movements.DeductStock(ctx, inventory.DeductStockInput{
			ItemID:         line.ItemID,
			WarehouseID:    input.WarehouseID,
			Quantity:       line.Quantity,
			BatchNumber:    line.BatchNumber,
			Reference:      ref,
			Type:           inventory.TransactionTypeMaterialIssue,
			Notes:          fmt.Sprintf("Issue to %s: %s", input.WorkOrderRef, input.Notes),
			UserID:         input.UserID,
			IdempotencyKey: issueKey(input.WorkOrderRef, input.WarehouseID, line),
		})
		if err != nil {
			// A line can still fail here when stock moved between the
			// pre-check and the locked deduction. Lines already posted
			// stay posted; the caller retries the remainder.
			s.logger.Warn("material issue line failed",
				"work_order", input.WorkOrderRef, "item_id", line.ItemID, "error", err)
			return result, &LineError{ItemID: line.ItemID, Err: err}
		}
		result.Transactions = append(result.Transactions, tx)
		result.TotalCost = result.TotalCost.Sub(tx.TotalCost)
	}
	return result, nil
}

// ReceiveOutputInput describes finished goods entering stock from a work order.
type ReceiveOutputInput struct {
	WorkOrderRef string
	ItemID       int64
	WarehouseID  int64
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	BatchNumber  string
	ExpiryDate   *time.Time
	Notes        string
	UserID       int64
}

// ReceiveOutput posts finished goods at the supplied unit cost, normally the
// work order's accumulated material cost divided by the produced quantity.
func (s *Service) ReceiveOutput(ctx context.Context, input ReceiveOutputInput) (inventory.Transaction, error) {
	return s.movements.AddStock(ctx, inventory.AddStockInput{
		ItemID:      input.ItemID,
		WarehouseID: input.WarehouseID,
		Quantity:    input.Quantity,
		UnitCost:    input.UnitCost,
		BatchNumber: input.BatchNumber,
		ExpiryDate:  input.ExpiryDate,
		Reference:   inventory.Reference{Type: "WORK_ORDER", Number: input.WorkOrderRef},
		Type:        inventory.TransactionTypeProductionReceipt,
		Notes:       fmt.Sprintf("Output of %s: %s", input.WorkOrderRef, input.Notes),
		UserID:      input.UserID,
		IdempotencyKey: fmt.Sprintf("wo:%s:out:%d:%d:%s",
			input.WorkOrderRef, input.ItemID, input.WarehouseID, input.BatchNumber),
	})
}

// ReturnMaterials puts unused issued materials back into stock at the
// item's current average cost.
func (s *Service) ReturnMaterials(ctx context.Context, input MaterialIssueInput, unitCosts map[int64]decimal.Decimal) (MaterialIssueResult, error) {
	if len(input.Lines) == 0 {
		return MaterialIssueResult{}, ErrNoLines
	}
	ref := inventory.Reference{Type: "WORK_ORDER", Number: input.WorkOrderRef}
	result := MaterialIssueResult{TotalCost: decimal.Zero}
	for _, line := range input.Lines {
		tx, err := s.movements.AddStock(ctx, inventory.AddStockInput{
			ItemID:      line.ItemID,
			WarehouseID: input.WarehouseID,
			Quantity:    line.Quantity,
			UnitCost:    unitCosts[line.ItemID],
			BatchNumber: line.BatchNumber,
			Reference:   ref,
			Type:        inventory.TransactionTypeReturn,
			Notes:       fmt.Sprintf("Return from %s: %s", input.WorkOrderRef, input.Notes),
			UserID:      input.UserID,
		})
		if err != nil {
			return result, &LineError{ItemID: line.ItemID, Err: err}
		}
		result.Transactions = append(result.Transactions, tx)
		result.TotalCost = result.TotalCost.Add(tx.TotalCost)
	}
	return result, nil
}

func issueKey(workOrder string, warehouseID int64, line IssueLine) string {
	return fmt.Sprintf("wo:%s:iss:%d:%d:%s", workOrder, line.ItemID, warehouseID, line.BatchNumber)
}

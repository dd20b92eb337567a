package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-ops/meridian-ops/internal/inventory"
)

// MovementPort is the slice of the inventory service receipts post through.
type MovementPort interface {
	AddStock(ctx context.Context, input inventory.AddStockInput) (inventory.Transaction, error)
	DeductStock(ctx context.Context, input inventory.DeductStockInput) (inventory.Transaction, error)
}

// Repository persists receipt documents.
type Repository interface {
	CreateReceipt(ctx context.Context, receipt GoodsReceipt) (GoodsReceipt, error)
	GetReceipt(ctx context.Context, id int64) (GoodsReceipt, error)
	ListReceipts(ctx context.Context, status ReceiptStatus, limit, offset int) ([]GoodsReceipt, error)
	MarkLinePosted(ctx context.Context, lineID int64, txNumber string) error
	UpdateStatus(ctx context.Context, id int64, status ReceiptStatus) error
}

// NumberPort draws document numbers for receipts.
type NumberPort interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Service manages the goods receipt lifecycle. Posting moves stock one line
// at a time; a failing line never blocks the others and the document records
// which lines remain open.
type Service struct {
	repo      Repository
	movements MovementPort
	numbers   NumberPort
	logger    *slog.Logger
}

// NewService constructs the service.
func NewService(repo Repository, movements MovementPort, numbers NumberPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, movements: movements, numbers: numbers, logger: logger}
}

// CreateReceiptInput describes a new draft receipt.
type CreateReceiptInput struct {
	SupplierRef string
	WarehouseID int64
	ReceivedAt  time.Time
	Notes       string
	UserID      int64
	Lines       []ReceiptLineInput
}

// ReceiptLineInput describes one lot on a new receipt.
type ReceiptLineInput struct {
	ItemID       int64
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	BatchNumber  string
	SerialNumber string
	ExpiryDate   *time.Time
}

// CreateReceipt stores a draft document. No stock moves until Post.
func (s *Service) CreateReceipt(ctx context.Context, input CreateReceiptInput) (GoodsReceipt, error) {
	if len(input.Lines) == 0 {
		return GoodsReceipt{}, ErrNoLines
	}
	for _, line := range input.Lines {
		if !line.Quantity.IsPositive() {
			return GoodsReceipt{}, fmt.Errorf("%w: item %d quantity must be positive", inventory.ErrInvalidQuantity, line.ItemID)
		}
		if line.UnitCost.IsNegative() {
			return GoodsReceipt{}, fmt.Errorf("%w: item %d", inventory.ErrInvalidUnitCost, line.ItemID)
		}
	}
	number, err := s.numbers.Next(ctx, "RCV")
	if err != nil {
		return GoodsReceipt{}, err
	}
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	receipt := GoodsReceipt{
		Number:      number,
		SupplierRef: input.SupplierRef,
		WarehouseID: input.WarehouseID,
		Status:      StatusDraft,
		ReceivedAt:  receivedAt,
		Notes:       input.Notes,
		CreatedBy:   input.UserID,
	}
	for _, line := range input.Lines {
		receipt.Lines = append(receipt.Lines, ReceiptLine{
			ItemID:       line.ItemID,
			Quantity:     line.Quantity,
			UnitCost:     line.UnitCost,
			BatchNumber:  line.BatchNumber,
			SerialNumber: line.SerialNumber,
			ExpiryDate:   line.ExpiryDate,
		})
	}
	return s.repo.CreateReceipt(ctx, receipt)
}

// GetReceipt loads one receipt with its lines.
func (s *Service) GetReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	return s.repo.GetReceipt(ctx, id)
}

// ListReceipts pages receipts, optionally filtered by status.
func (s *Service) ListReceipts(ctx context.Context, status ReceiptStatus, limit, offset int) ([]GoodsReceipt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListReceipts(ctx, status, limit, offset)
}

// Post moves every unposted line into stock. Each line is its own atomic
// movement; failures are collected per line and the document ends POSTED or
// PARTIALLY_POSTED accordingly. Re-posting retries only the open lines.
func (s *Service) Post(ctx context.Context, id int64, userID int64) (PostResult, error) {
	receipt, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return PostResult{}, err
	}
	if !receipt.Status.CanPost() {
		return PostResult{}, fmt.Errorf("%w: %s", ErrInvalidStatus, receipt.Status)
	}

	result := PostResult{}
	for i := range receipt.Lines {
		line := &receipt.Lines[i]
		if line.Posted {
			continue
		}
		tx, err := s.movements.AddStock(ctx, inventory.AddStockInput{
			ItemID:       line.ItemID,
			WarehouseID:  receipt.WarehouseID,
			Quantity:     line.Quantity,
			UnitCost:     line.UnitCost,
			BatchNumber:  line.BatchNumber,
			SerialNumber: line.SerialNumber,
			ExpiryDate:   line.ExpiryDate,
			Reference: inventory.Reference{
				Type:   "GOODS_RECEIPT",
				ID:     fmt.Sprintf("%d", receipt.ID),
				Number: receipt.Number,
			},
			Type:           inventory.TransactionTypeGoodsReceipt,
			Notes:          fmt.Sprintf("Receipt %s from %s", receipt.Number, receipt.SupplierRef),
			UserID:         userID,
			IdempotencyKey: fmt.Sprintf("grn:%d:line:%d", receipt.ID, line.ID),
		})
		if err != nil {
			s.logger.Warn("receipt line failed to post",
				"receipt", receipt.Number, "line_id", line.ID, "item_id", line.ItemID, "error", err)
			result.Failures = append(result.Failures, LineFailure{
				LineID: line.ID,
				ItemID: line.ItemID,
				Reason: err.Error(),
			})
			continue
		}
		line.Posted = true
		line.TransactionNumber = tx.Number
		if err := s.repo.MarkLinePosted(ctx, line.ID, tx.Number); err != nil {
			return PostResult{}, err
		}
		result.Posted++
	}

	status := StatusPosted
	if len(result.Failures) > 0 {
		status = StatusPartiallyPosted
	}
	if err := s.repo.UpdateStatus(ctx, receipt.ID, status); err != nil {
		return PostResult{}, err
	}
	receipt.Status = status
	result.Receipt = receipt
	return result, nil
}

// Cancel abandons a draft before any stock moves.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	receipt, err := s.repo.GetReceipt(ctx, id)
	if err != nil {
		return err
	}
	if !receipt.Status.CanCancel() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, receipt.Status)
	}
	return s.repo.UpdateStatus(ctx, id, StatusCancelled)
}

// ReturnToSupplierInput describes a return of received stock.
type ReturnToSupplierInput struct {
	ItemID      int64
	WarehouseID int64
	Quantity    decimal.Decimal
	BatchNumber string
	ReceiptID   int64
	Reason      string
	UserID      int64
}

// ReturnToSupplier deducts previously received stock as a RETURN movement.
func (s *Service) ReturnToSupplier(ctx context.Context, input ReturnToSupplierInput) (inventory.Transaction, error) {
	ref := inventory.Reference{Type: "SUPPLIER_RETURN"}
	if input.ReceiptID != 0 {
		receipt, err := s.repo.GetReceipt(ctx, input.ReceiptID)
		if err != nil {
			return inventory.Transaction{}, err
		}
		ref.ID = fmt.Sprintf("%d", receipt.ID)
		ref.Number = receipt.Number
	}
	return s.movements.DeductStock(ctx, inventory.DeductStockInput{
		ItemID:      input.ItemID,
		WarehouseID: input.WarehouseID,
		Quantity:    input.Quantity,
		BatchNumber: input.BatchNumber,
		Reference:   ref,
		Type:        inventory.TransactionTypeReturn,
		Notes:       "Return to supplier: " + input.Reason,
		UserID:      input.UserID,
	})
}

package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-ops/meridian-ops/internal/shared"
)

// RepositoryPort abstracts balance and ledger storage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetBalance(ctx context.Context, key BalanceKey) (StockBalance, error)
	ListBalancesByItem(ctx context.Context, itemID int64) ([]StockBalance, error)
	ListBalancesByWarehouse(ctx context.Context, warehouseID int64) ([]StockBalance, error)
	AvailableQuantity(ctx context.Context, itemID, warehouseID int64, batch string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, filter HistoryFilter) ([]Transaction, error)
}

// TxStore exposes the operations that must share one commit.
type TxStore interface {
	GetBalanceForUpdate(ctx context.Context, key BalanceKey) (StockBalance, error)
	UpsertBalance(ctx context.Context, balance StockBalance) error
	InsertTransaction(ctx context.Context, tx Transaction) (int64, error)
}

// NumberPort draws the next document number for a prefix.
type NumberPort interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts committed and rejected movements.
type MetricsPort interface {
	CountMovement(txType, outcome string)
}

// Service coordinates stock movements: every mutation of a balance row goes
// through here and commits together with exactly one ledger row.
type Service struct {
	repo        RepositoryPort
	gate        *ValidationGate
	numbers     NumberPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	cache       *AvailabilityCache
	metrics     MetricsPort
	allowNeg    bool
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, gate *ValidationGate, numbers NumberPort, audit AuditPort, idem *shared.IdempotencyStore, cache *AvailabilityCache, metrics MetricsPort, cfg ServiceConfig) *Service {
	return &Service{
		repo:        repo,
		gate:        gate,
		numbers:     numbers,
		audit:       audit,
		idempotency: idem,
		cache:       cache,
		metrics:     metrics,
		allowNeg:    cfg.AllowNegativeStock,
	}
}

var numberPrefixes = map[TransactionType]string{
	TransactionTypeGoodsReceipt:      "GRN",
	TransactionTypeMaterialIssue:     "ISS",
	TransactionTypeProductionReceipt: "PRC",
	TransactionTypeAdjustment:        "ADJ",
	TransactionTypeTransfer:          "TRF",
	TransactionTypeReturn:            "RET",
}

// AddStock posts an inbound movement and returns the committed ledger row.
func (s *Service) AddStock(ctx context.Context, input AddStockInput) (Transaction, error) {
	if input.Type == "" {
		input.Type = TransactionTypeGoodsReceipt
	}
	if err := s.gate.RequirePositive(input.Quantity); err != nil {
		return s.reject(input.Type, err)
	}
	if input.UnitCost.IsNegative() {
		return s.reject(input.Type, ErrInvalidUnitCost)
	}
	item, wh, err := s.gate.RequireItemAndWarehouse(ctx, input.ItemID, input.WarehouseID)
	if err != nil {
		return s.reject(input.Type, err)
	}
	if input.UnitOfMeasure == "" {
		input.UnitOfMeasure = item.UnitOfMeasure
	}

	release, err := s.claimIdempotency(ctx, input.IdempotencyKey)
	if err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	row := Transaction{
		Date:          now,
		ItemID:        input.ItemID,
		WarehouseID:   input.WarehouseID,
		Type:          input.Type,
		Quantity:      input.Quantity,
		UnitOfMeasure: input.UnitOfMeasure,
		UnitCost:      input.UnitCost,
		TotalCost:     input.Quantity.Mul(input.UnitCost),
		Reference:     input.Reference,
		BatchNumber:   input.BatchNumber,
		SerialNumber:  input.SerialNumber,
		ExpiryDate:    input.ExpiryDate,
		Notes:         input.Notes,
		CreatedBy:     input.UserID,
	}
	key := BalanceKey{ItemID: input.ItemID, WarehouseID: input.WarehouseID, BatchNumber: input.BatchNumber, SerialNumber: input.SerialNumber}

	committed, err := s.commit(ctx, input.Type, row, func(bal StockBalance) (StockBalance, Transaction, error) {
		res := CostInbound(bal.QuantityOnHand, bal.AverageCost, input.Quantity, input.UnitCost)
		bal.QuantityOnHand = res.Quantity
		bal.AverageCost = res.AverageCost
		if input.ExpiryDate != nil {
			bal.ExpiryDate = input.ExpiryDate
		}
		row.BalanceQuantity = res.Quantity
		row.BalanceValue = res.Quantity.Mul(res.AverageCost)
		return bal, row, nil
	}, key, true)
	if err != nil {
		release(ctx)
		return Transaction{}, err
	}
	s.afterCommit(ctx, committed, wh)
	return committed, nil
}

// DeductStock posts an outbound movement at the balance's current average cost.
func (s *Service) DeductStock(ctx context.Context, input DeductStockInput) (Transaction, error) {
	if input.Type == "" {
		input.Type = TransactionTypeMaterialIssue
	}
	if err := s.gate.RequirePositive(input.Quantity); err != nil {
		return s.reject(input.Type, err)
	}
	item, wh, err := s.gate.RequireItemAndWarehouse(ctx, input.ItemID, input.WarehouseID)
	if err != nil {
		return s.reject(input.Type, err)
	}
	if err := s.gate.RequireAvailability(ctx, item, wh, input.Quantity, input.BatchNumber); err != nil {
		return s.reject(input.Type, err)
	}

	release, err := s.claimIdempotency(ctx, input.IdempotencyKey)
	if err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	row := Transaction{
		Date:          now,
		ItemID:        input.ItemID,
		WarehouseID:   input.WarehouseID,
		Type:          input.Type,
		Quantity:      input.Quantity.Neg(),
		UnitOfMeasure: item.UnitOfMeasure,
		Reference:     input.Reference,
		BatchNumber:   input.BatchNumber,
		SerialNumber:  input.SerialNumber,
		Notes:         input.Notes,
		CreatedBy:     input.UserID,
	}
	key := BalanceKey{ItemID: input.ItemID, WarehouseID: input.WarehouseID, BatchNumber: input.BatchNumber, SerialNumber: input.SerialNumber}

	committed, err := s.commit(ctx, input.Type, row, func(bal StockBalance) (StockBalance, Transaction, error) {
		// Re-check against the locked row so concurrent deductions cannot
		// both pass the pre-validation and drive the balance negative.
		if !s.allowNeg && input.Quantity.GreaterThan(bal.Available()) {
			return bal, row, &InsufficientStockError{
				ItemCode:      item.Code,
				WarehouseCode: wh.Code,
				Available:     bal.Available(),
				Required:      input.Quantity,
			}
		}
		res := CostOutbound(bal.QuantityOnHand, bal.AverageCost, input.Quantity)
		bal.QuantityOnHand = res.Quantity
		bal.AverageCost = res.AverageCost
		row.UnitCost = res.AverageCost
		row.TotalCost = row.Quantity.Mul(res.AverageCost)
		row.BalanceQuantity = res.Quantity
		row.BalanceValue = res.Quantity.Mul(res.AverageCost)
		return bal, row, nil
	}, key, false)
	if err != nil {
		release(ctx)
		return Transaction{}, err
	}
	s.afterCommit(ctx, committed, wh)
	return committed, nil
}

// AdjustStock posts a signed manual adjustment. Positive deltas blend the
// supplied unit cost into the average; negative deltas leave cost untouched.
func (s *Service) AdjustStock(ctx context.Context, input AdjustStockInput) (Transaction, error) {
	if err := s.gate.RequireNonZero(input.Delta); err != nil {
		return s.reject(TransactionTypeAdjustment, err)
	}
	if input.Delta.IsPositive() && input.NewUnitCost.IsNegative() {
		return s.reject(TransactionTypeAdjustment, ErrInvalidUnitCost)
	}
	item, wh, err := s.gate.RequireItemAndWarehouse(ctx, input.ItemID, input.WarehouseID)
	if err != nil {
		return s.reject(TransactionTypeAdjustment, err)
	}

	release, err := s.claimIdempotency(ctx, input.IdempotencyKey)
	if err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	notes := input.Reason
	if notes != "" {
		notes = "Adjustment: " + notes
	}
	row := Transaction{
		Date:          now,
		ItemID:        input.ItemID,
		WarehouseID:   input.WarehouseID,
		Type:          TransactionTypeAdjustment,
		Quantity:      input.Delta,
		UnitOfMeasure: item.UnitOfMeasure,
		Reference:     input.Reference,
		BatchNumber:   input.BatchNumber,
		Notes:         notes,
		CreatedBy:     input.UserID,
	}
	key := BalanceKey{ItemID: input.ItemID, WarehouseID: input.WarehouseID, BatchNumber: input.BatchNumber}

	allowCreate := input.Delta.IsPositive()
	committed, err := s.commit(ctx, TransactionTypeAdjustment, row, func(bal StockBalance) (StockBalance, Transaction, error) {
		newQty := bal.QuantityOnHand.Add(input.Delta)
		if newQty.IsNegative() && !s.allowNeg {
			return bal, row, fmt.Errorf("%w: on hand %s, delta %s", ErrNegativeResultingStock, bal.QuantityOnHand.String(), input.Delta.String())
		}
		res := CostAdjust(bal.QuantityOnHand, bal.AverageCost, input.Delta, input.NewUnitCost)
		bal.QuantityOnHand = res.Quantity
		bal.AverageCost = res.AverageCost
		if input.Delta.IsPositive() {
			row.UnitCost = input.NewUnitCost
		} else {
			row.UnitCost = bal.AverageCost
		}
		row.TotalCost = input.Delta.Mul(row.UnitCost)
		row.BalanceQuantity = res.Quantity
		row.BalanceValue = res.Quantity.Mul(res.AverageCost)
		return bal, row, nil
	}, key, allowCreate)
	if err != nil {
		release(ctx)
		return Transaction{}, err
	}
	s.afterCommit(ctx, committed, wh)
	return committed, nil
}

// TransferStock moves stock between warehouses as two chained atomic legs:
// a deduction at the source followed by an addition at the destination using
// the source's average cost. A failure on the second leg leaves the first
// committed; callers needing strict two-phase atomicity must wrap both legs
// in an outer transaction of their own.
func (s *Service) TransferStock(ctx context.Context, input TransferStockInput) (Transaction, Transaction, error) {
	if err := s.gate.RequireDistinctWarehouses(input.FromWarehouseID, input.ToWarehouseID); err != nil {
		return s.rejectPair(err)
	}
	if err := s.gate.RequirePositive(input.Quantity); err != nil {
		return s.rejectPair(err)
	}
	item, src, err := s.gate.RequireItemAndWarehouse(ctx, input.ItemID, input.FromWarehouseID)
	if err != nil {
		return s.rejectPair(err)
	}
	_, dst, err := s.gate.RequireItemAndWarehouse(ctx, input.ItemID, input.ToWarehouseID)
	if err != nil {
		return s.rejectPair(err)
	}
	if err := s.gate.RequireAvailability(ctx, item, src, input.Quantity, input.BatchNumber); err != nil {
		return s.rejectPair(err)
	}

	ref := input.Reference
	if ref.Type == "" {
		ref = Reference{Type: "TRANSFER", ID: uuid.NewString()}
	}

	out, err := s.DeductStock(ctx, DeductStockInput{
		ItemID:       input.ItemID,
		WarehouseID:  input.FromWarehouseID,
		Quantity:     input.Quantity,
		BatchNumber:  input.BatchNumber,
		SerialNumber: input.SerialNumber,
		Reference:    ref,
		Type:         TransactionTypeTransfer,
		Notes:        fmt.Sprintf("Transfer to %s: %s", dst.Code, input.Notes),
		UserID:       input.UserID,
	})
	if err != nil {
		return Transaction{}, Transaction{}, err
	}

	inRef := ref
	inRef.Number = out.Number
	in, err := s.AddStock(ctx, AddStockInput{
		ItemID:        input.ItemID,
		WarehouseID:   input.ToWarehouseID,
		Quantity:      input.Quantity,
		UnitCost:      out.UnitCost,
		UnitOfMeasure: out.UnitOfMeasure,
		BatchNumber:   input.BatchNumber,
		SerialNumber:  input.SerialNumber,
		Reference:     inRef,
		Type:          TransactionTypeTransfer,
		Notes:         fmt.Sprintf("Transfer from %s: %s", src.Code, input.Notes),
		UserID:        input.UserID,
	})
	if err != nil {
		return out, Transaction{}, err
	}
	return out, in, nil
}

// ValidateStockAvailability is the read-only pre-check callers use to reject
// whole documents before any stock is touched.
func (s *Service) ValidateStockAvailability(ctx context.Context, itemID, warehouseID int64, required decimal.Decimal, batch string) error {
	if err := s.gate.RequirePositive(required); err != nil {
		return err
	}
	item, wh, err := s.gate.RequireItemAndWarehouse(ctx, itemID, warehouseID)
	if err != nil {
		return err
	}
	return s.gate.RequireAvailability(ctx, item, wh, required, batch)
}

// GetAvailableQuantity returns committed availability, served from cache when fresh.
func (s *Service) GetAvailableQuantity(ctx context.Context, itemID, warehouseID int64, batch string) (decimal.Decimal, error) {
	if qty, ok := s.cache.Get(ctx, itemID, warehouseID, batch); ok {
		return qty, nil
	}
	qty, err := s.repo.AvailableQuantity(ctx, itemID, warehouseID, batch)
	if err != nil {
		return decimal.Zero, err
	}
	s.cache.Set(ctx, itemID, warehouseID, batch, qty)
	return qty, nil
}

// GetBalancesByItem lists balance rows across warehouses for one item.
func (s *Service) GetBalancesByItem(ctx context.Context, itemID int64) ([]StockBalance, error) {
	return s.repo.ListBalancesByItem(ctx, itemID)
}

// GetBalancesByWarehouse lists balance rows for one warehouse.
func (s *Service) GetBalancesByWarehouse(ctx context.Context, warehouseID int64) ([]StockBalance, error) {
	return s.repo.ListBalancesByWarehouse(ctx, warehouseID)
}

// GetTransactionHistory lists ledger rows ordered by transaction date.
func (s *Service) GetTransactionHistory(ctx context.Context, filter HistoryFilter) ([]Transaction, error) {
	if filter.ItemID == 0 || filter.WarehouseID == 0 {
		return nil, fmt.Errorf("%w: item and warehouse required", ErrNotFound)
	}
	return s.repo.ListTransactions(ctx, filter)
}

// commit runs the atomic dual-write: lock (or create) the balance row, apply
// the movement, then persist the updated balance and the ledger row in one
// transaction.
func (s *Service) commit(ctx context.Context, txType TransactionType, row Transaction, apply func(StockBalance) (StockBalance, Transaction, error), key BalanceKey, allowCreate bool) (Transaction, error) {
	number, err := s.nextNumber(ctx, txType)
	if err != nil {
		return Transaction{}, &PersistenceError{Op: "number allocation", Err: err}
	}
	row.Number = number

	var committed Transaction
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		bal, err := tx.GetBalanceForUpdate(ctx, key)
		if errors.Is(err, ErrBalanceNotFound) {
			if !allowCreate {
				return fmt.Errorf("%w: no stock balance for item %d at warehouse %d", ErrNotFound, key.ItemID, key.WarehouseID)
			}
			bal = StockBalance{
				ItemID:           key.ItemID,
				WarehouseID:      key.WarehouseID,
				BatchNumber:      key.BatchNumber,
				SerialNumber:     key.SerialNumber,
				QuantityOnHand:   decimal.Zero,
				QuantityReserved: decimal.Zero,
				AverageCost:      decimal.Zero,
			}
		} else if err != nil {
			return err
		}

		bal, ledgerRow, err := apply(bal)
		if err != nil {
			return err
		}
		bal.LastUpdated = row.Date
		if err := tx.UpsertBalance(ctx, bal); err != nil {
			return err
		}
		id, err := tx.InsertTransaction(ctx, ledgerRow)
		if err != nil {
			return err
		}
		committed = ledgerRow
		committed.ID = id
		committed.CreatedAt = row.Date
		return nil
	})
	if err != nil {
		s.countMovement(txType, "rejected")
		if isDomainError(err) {
			return Transaction{}, err
		}
		return Transaction{}, &PersistenceError{Op: "movement commit", Err: err}
	}
	s.countMovement(txType, "committed")
	return committed, nil
}

func (s *Service) nextNumber(ctx context.Context, txType TransactionType) (string, error) {
	prefix, ok := numberPrefixes[txType]
	if !ok {
		prefix = "INV"
	}
	if s.numbers == nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano()), nil
	}
	return s.numbers.Next(ctx, prefix)
}

// claimIdempotency reserves the caller-supplied key and returns a release
// function used to free it again when the commit fails.
func (s *Service) claimIdempotency(ctx context.Context, key string) (func(context.Context), error) {
	if s.idempotency == nil || key == "" {
		return func(context.Context) {}, nil
	}
	if err := s.idempotency.CheckAndInsert(ctx, key, "inventory"); err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		_ = s.idempotency.Delete(ctx, key)
	}, nil
}

func (s *Service) afterCommit(ctx context.Context, tx Transaction, wh WarehouseRef) {
	s.cache.Invalidate(ctx, tx.ItemID, tx.WarehouseID, tx.BatchNumber)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  tx.CreatedBy,
			Action:   fmt.Sprintf("inventory:%s", tx.Type),
			Entity:   "inventory_tx",
			EntityID: tx.Number,
			Meta: map[string]any{
				"item_id":     tx.ItemID,
				"warehouse":   wh.Code,
				"qty":         tx.Quantity.String(),
				"balance_qty": tx.BalanceQuantity.String(),
				"unit_cost":   tx.UnitCost.String(),
				"ref_type":    tx.Reference.Type,
				"ref_number":  tx.Reference.Number,
			},
		})
	}
}

func (s *Service) reject(txType TransactionType, err error) (Transaction, error) {
	s.countMovement(txType, "rejected")
	return Transaction{}, err
}

func (s *Service) rejectPair(err error) (Transaction, Transaction, error) {
	s.countMovement(TransactionTypeTransfer, "rejected")
	return Transaction{}, Transaction{}, err
}

func (s *Service) countMovement(txType TransactionType, outcome string) {
	if s.metrics != nil {
		s.metrics.CountMovement(string(txType), outcome)
	}
}

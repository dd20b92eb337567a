package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemRef is the narrow item view the ledger needs from master data.
type ItemRef struct {
	ID            int64
	Code          string
	Name          string
	UnitOfMeasure string
	Active        bool
}

// WarehouseRef is the narrow warehouse view the ledger needs from master data.
type WarehouseRef struct {
	ID     int64
	Code   string
	Name   string
	Active bool
}

// LookupPort resolves item and warehouse master records.
type LookupPort interface {
	LookupItem(ctx context.Context, id int64) (ItemRef, error)
	LookupWarehouse(ctx context.Context, id int64) (WarehouseRef, error)
}

// AvailabilityPort reads committed availability for a key prefix.
type AvailabilityPort interface {
	AvailableQuantity(ctx context.Context, itemID, warehouseID int64, batch string) (decimal.Decimal, error)
}

// ValidationGate runs the read-only checks preceding every mutation.
type ValidationGate struct {
	lookup   LookupPort
	balances AvailabilityPort
}

// NewValidationGate constructs the gate.
func NewValidationGate(lookup LookupPort, balances AvailabilityPort) *ValidationGate {
	return &ValidationGate{lookup: lookup, balances: balances}
}

// RequirePositive fails with ErrInvalidQuantity unless qty > 0.
func (g *ValidationGate) RequirePositive(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidQuantity, qty.String())
	}
	return nil
}

// RequireNonZero fails with ErrZeroAdjustment when delta is zero.
func (g *ValidationGate) RequireNonZero(delta decimal.Decimal) error {
	if delta.IsZero() {
		return ErrZeroAdjustment
	}
	return nil
}

// RequireItemAndWarehouse resolves both master records, failing with
// ErrNotFound when either is missing or ErrInactiveWarehouse when the
// warehouse is flagged inactive.
func (g *ValidationGate) RequireItemAndWarehouse(ctx context.Context, itemID, warehouseID int64) (ItemRef, WarehouseRef, error) {
	item, err := g.lookup.LookupItem(ctx, itemID)
	if err != nil {
		return ItemRef{}, WarehouseRef{}, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
	}
	wh, err := g.lookup.LookupWarehouse(ctx, warehouseID)
	if err != nil {
		return ItemRef{}, WarehouseRef{}, fmt.Errorf("%w: warehouse %d", ErrNotFound, warehouseID)
	}
	if !wh.Active {
		return ItemRef{}, WarehouseRef{}, fmt.Errorf("%w: %s", ErrInactiveWarehouse, wh.Code)
	}
	return item, wh, nil
}

// RequireAvailability fails with InsufficientStockError when the committed
// available quantity for the key prefix is below required.
func (g *ValidationGate) RequireAvailability(ctx context.Context, item ItemRef, wh WarehouseRef, required decimal.Decimal, batch string) error {
	available, err := g.balances.AvailableQuantity(ctx, item.ID, wh.ID, batch)
	if err != nil {
		return &PersistenceError{Op: "availability check", Err: err}
	}
	if available.LessThan(required) {
		return &InsufficientStockError{
			ItemCode:      item.Code,
			WarehouseCode: wh.Code,
			Available:     available,
			Required:      required,
		}
	}
	return nil
}

// RequireDistinctWarehouses fails with ErrSameWarehouseTransfer when equal.
func (g *ValidationGate) RequireDistinctWarehouses(fromID, toID int64) error {
	if fromID == toID {
		return fmt.Errorf("%w: warehouse %d", ErrSameWarehouseTransfer, fromID)
	}
	return nil
}

package masterdata

import (
	"context"

	"github.com/meridian-ops/meridian-ops/internal/inventory"
)

// InventoryLookup adapts the master data service to the narrow lookup
// interface the inventory ledger validates against.
type InventoryLookup struct {
	svc *Service
}

// NewInventoryLookup constructs the adapter.
func NewInventoryLookup(svc *Service) *InventoryLookup {
	return &InventoryLookup{svc: svc}
}

// LookupItem resolves an item reference.
func (l *InventoryLookup) LookupItem(ctx context.Context, id int64) (inventory.ItemRef, error) {
	item, err := l.svc.GetItem(ctx, id)
	if err != nil {
		return inventory.ItemRef{}, err
	}
	return inventory.ItemRef{
		ID:            item.ID,
		Code:          item.Code,
		Name:          item.Name,
		UnitOfMeasure: item.UnitOfMeasure,
		Active:        item.IsActive,
	}, nil
}

// LookupWarehouse resolves a warehouse reference.
func (l *InventoryLookup) LookupWarehouse(ctx context.Context, id int64) (inventory.WarehouseRef, error) {
	wh, err := l.svc.GetWarehouse(ctx, id)
	if err != nil {
		return inventory.WarehouseRef{}, err
	}
	return inventory.WarehouseRef{
		ID:     wh.ID,
		Code:   wh.Code,
		Name:   wh.Name,
		Active: wh.IsActive,
	}, nil
}

package masterdata

import (
	"context"
	"fmt"
	"strings"
)

// Service wraps repository access with input checks.
type Service struct {
	repo Repository
}

// NewService constructs the master data service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListItems returns items matching the filters plus the total count.
func (s *Service) ListItems(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	return s.repo.ListItems(ctx, filters)
}

// GetItem returns one item by id.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// CreateItem validates and persists a new item.
func (s *Service) CreateItem(ctx context.Context, item Item) (Item, error) {
	item.Code = strings.TrimSpace(item.Code)
	item.Name = strings.TrimSpace(item.Name)
	if item.Code == "" || item.Name == "" {
		return Item{}, fmt.Errorf("masterdata: item code and name required")
	}
	if item.UnitOfMeasure == "" {
		item.UnitOfMeasure = "EA"
	}
	if item.BatchTracked && item.SerialTracked {
		return Item{}, fmt.Errorf("masterdata: item cannot be both batch and serial tracked")
	}
	item.IsActive = true
	return s.repo.CreateItem(ctx, item)
}

// UpdateItem validates and stores item changes.
func (s *Service) UpdateItem(ctx context.Context, id int64, item Item) error {
	item.Code = strings.TrimSpace(item.Code)
	item.Name = strings.TrimSpace(item.Name)
	if item.Code == "" || item.Name == "" {
		return fmt.Errorf("masterdata: item code and name required")
	}
	return s.repo.UpdateItem(ctx, id, item)
}

// DeactivateItem flags an item inactive without deleting history.
func (s *Service) DeactivateItem(ctx context.Context, id int64) error {
	return s.repo.SetItemActive(ctx, id, false)
}

// ActivateItem re-enables an item.
func (s *Service) ActivateItem(ctx context.Context, id int64) error {
	return s.repo.SetItemActive(ctx, id, true)
}

// ListWarehouses returns warehouses matching the filters plus the total count.
func (s *Service) ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, int, error) {
	return s.repo.ListWarehouses(ctx, filters)
}

// GetWarehouse returns one warehouse by id.
func (s *Service) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.GetWarehouse(ctx, id)
}

// CreateWarehouse validates and persists a new warehouse.
func (s *Service) CreateWarehouse(ctx context.Context, wh Warehouse) (Warehouse, error) {
	wh.Code = strings.TrimSpace(wh.Code)
	wh.Name = strings.TrimSpace(wh.Name)
	if wh.Code == "" || wh.Name == "" {
		return Warehouse{}, fmt.Errorf("masterdata: warehouse code and name required")
	}
	wh.IsActive = true
	return s.repo.CreateWarehouse(ctx, wh)
}

// UpdateWarehouse validates and stores warehouse changes.
func (s *Service) UpdateWarehouse(ctx context.Context, id int64, wh Warehouse) error {
	wh.Code = strings.TrimSpace(wh.Code)
	wh.Name = strings.TrimSpace(wh.Name)
	if wh.Code == "" || wh.Name == "" {
		return fmt.Errorf("masterdata: warehouse code and name required")
	}
	return s.repo.UpdateWarehouse(ctx, id, wh)
}

// DeactivateWarehouse flags a warehouse inactive; stock rows remain untouched.
func (s *Service) DeactivateWarehouse(ctx context.Context, id int64) error {
	return s.repo.SetWarehouseActive(ctx, id, false)
}

// ActivateWarehouse re-enables a warehouse.
func (s *Service) ActivateWarehouse(ctx context.Context, id int64) error {
	return s.repo.SetWarehouseActive(ctx, id, true)
}

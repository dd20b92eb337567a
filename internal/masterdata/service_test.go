package masterdata

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	items      map[int64]Item
	warehouses map[int64]Warehouse
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item), warehouses: make(map[int64]Warehouse)}
}

func (r *memoryRepo) ListItems(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	var out []Item
	for _, item := range r.items {
		if filters.Search != "" && !strings.Contains(item.Code, filters.Search) && !strings.Contains(item.Name, filters.Search) {
			continue
		}
		if filters.IsActive != nil && item.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, item)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetItem(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryRepo) CreateItem(ctx context.Context, item Item) (Item, error) {
	for _, existing := range r.items {
		if existing.Code == item.Code {
			return Item{}, ErrDuplicateCode
		}
	}
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item, nil
}

func (r *memoryRepo) UpdateItem(ctx context.Context, id int64, item Item) error {
	if _, ok := r.items[id]; !ok {
		return ErrNotFound
	}
	item.ID = id
	r.items[id] = item
	return nil
}

func (r *memoryRepo) SetItemActive(ctx context.Context, id int64, active bool) error {
	item, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	item.IsActive = active
	r.items[id] = item
	return nil
}

func (r *memoryRepo) ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, int, error) {
	var out []Warehouse
	for _, wh := range r.warehouses {
		out = append(out, wh)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	wh, ok := r.warehouses[id]
	if !ok {
		return Warehouse{}, ErrNotFound
	}
	return wh, nil
}

func (r *memoryRepo) CreateWarehouse(ctx context.Context, wh Warehouse) (Warehouse, error) {
	r.nextID++
	wh.ID = r.nextID
	r.warehouses[wh.ID] = wh
	return wh, nil
}

func (r *memoryRepo) UpdateWarehouse(ctx context.Context, id int64, wh Warehouse) error {
	if _, ok := r.warehouses[id]; !ok {
		return ErrNotFound
	}
	wh.ID = id
	r.warehouses[id] = wh
	return nil
}

func (r *memoryRepo) SetWarehouseActive(ctx context.Context, id int64, active bool) error {
	wh, ok := r.warehouses[id]
	if !ok {
		return ErrNotFound
	}
	wh.IsActive = active
	r.warehouses[id] = wh
	return nil
}

func TestCreateItemDefaultsAndValidation(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, Item{Code: " PUMP-01 ", Name: " Hydraulic Pump "})
	require.NoError(t, err)
	require.Equal(t, "PUMP-01", item.Code)
	require.Equal(t, "Hydraulic Pump", item.Name)
	require.Equal(t, "EA", item.UnitOfMeasure)
	require.True(t, item.IsActive)

	_, err = svc.CreateItem(ctx, Item{Code: "", Name: "x"})
	require.Error(t, err)

	_, err = svc.CreateItem(ctx, Item{Code: "X", Name: "x", BatchTracked: true, SerialTracked: true})
	require.Error(t, err)
}

func TestCreateItemDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, Item{Code: "PUMP-01", Name: "Pump"})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, Item{Code: "PUMP-01", Name: "Other"})
	require.ErrorIs(t, err, ErrDuplicateCode)
}

func TestDeactivateItemKeepsRecord(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, Item{Code: "PUMP-01", Name: "Pump"})
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateItem(ctx, item.ID))
	stored, err := svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	require.NoError(t, svc.ActivateItem(ctx, item.ID))
	stored, err = svc.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, stored.IsActive)
}

func TestWarehouseLifecycle(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	wh, err := svc.CreateWarehouse(ctx, Warehouse{Code: "WH-01", Name: "Main"})
	require.NoError(t, err)
	require.True(t, wh.IsActive)

	require.NoError(t, svc.DeactivateWarehouse(ctx, wh.ID))
	stored, err := svc.GetWarehouse(ctx, wh.ID)
	require.NoError(t, err)
	require.False(t, stored.IsActive)

	require.ErrorIs(t, svc.DeactivateWarehouse(ctx, 999), ErrNotFound)
}

func TestInventoryLookupAdapter(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	item, err := svc.CreateItem(ctx, Item{Code: "PUMP-01", Name: "Pump", UnitOfMeasure: "PC"})
	require.NoError(t, err)
	wh, err := svc.CreateWarehouse(ctx, Warehouse{Code: "WH-01", Name: "Main"})
	require.NoError(t, err)

	lookup := NewInventoryLookup(svc)
	ref, err := lookup.LookupItem(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "PUMP-01", ref.Code)
	require.Equal(t, "PC", ref.UnitOfMeasure)
	require.True(t, ref.Active)

	whRef, err := lookup.LookupWarehouse(ctx, wh.ID)
	require.NoError(t, err)
	require.Equal(t, "WH-01", whRef.Code)

	_, err = lookup.LookupItem(ctx, 999)
	require.Error(t, err)
}

package masterdata

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository exposes persistence for items and warehouses.
type Repository interface {
	ListItems(ctx context.Context, filters ListFilters) ([]Item, int, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	CreateItem(ctx context.Context, item Item) (Item, error)
	UpdateItem(ctx context.Context, id int64, item Item) error
	SetItemActive(ctx context.Context, id int64, active bool) error

	ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, int, error)
	GetWarehouse(ctx context.Context, id int64) (Warehouse, error)
	CreateWarehouse(ctx context.Context, wh Warehouse) (Warehouse, error)
	UpdateWarehouse(ctx context.Context, id int64, wh Warehouse) error
	SetWarehouseActive(ctx context.Context, id int64, active bool) error
}

// repo implements Repository on PostgreSQL.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

func (r *repo) ListItems(ctx context.Context, filters ListFilters) ([]Item, int, error) {
	query := `SELECT id, code, name, unit_of_measure, batch_tracked, serial_tracked, is_active, created_at, updated_at
	          FROM items`
	countQuery := `SELECT COUNT(*) FROM items`
	where, args := listWhere(filters)
	query += where
	countQuery += where

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code`
	query += paginate(filters)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Code, &it.Name, &it.UnitOfMeasure, &it.BatchTracked, &it.SerialTracked, &it.IsActive, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

func (r *repo) GetItem(ctx context.Context, id int64) (Item, error) {
	query := `SELECT id, code, name, unit_of_measure, batch_tracked, serial_tracked, is_active, created_at, updated_at
	          FROM items WHERE id = $1`
	var it Item
	err := r.db.QueryRow(ctx, query, id).Scan(&it.ID, &it.Code, &it.Name, &it.UnitOfMeasure, &it.BatchTracked, &it.SerialTracked, &it.IsActive, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func (r *repo) CreateItem(ctx context.Context, item Item) (Item, error) {
	query := `INSERT INTO items (code, name, unit_of_measure, batch_tracked, serial_tracked, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, item.Code, item.Name, item.UnitOfMeasure, item.BatchTracked, item.SerialTracked, item.IsActive, now).Scan(&item.ID)
	if err != nil {
		return Item{}, mapUnique(err)
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	return item, nil
}

func (r *repo) UpdateItem(ctx context.Context, id int64, item Item) error {
	query := `UPDATE items SET code = $1, name = $2, unit_of_measure = $3, batch_tracked = $4, serial_tracked = $5, updated_at = $6 WHERE id = $7`
	tag, err := r.db.Exec(ctx, query, item.Code, item.Name, item.UnitOfMeasure, item.BatchTracked, item.SerialTracked, time.Now(), id)
	if err != nil {
		return mapUnique(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) SetItemActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE items SET is_active = $1, updated_at = $2 WHERE id = $3`, active, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, int, error) {
	query := `SELECT id, code, name, address, is_active, created_at, updated_at FROM warehouses`
	countQuery := `SELECT COUNT(*) FROM warehouses`
	where, args := listWhere(filters)
	query += where
	countQuery += where

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code`
	query += paginate(filters)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var whs []Warehouse
	for rows.Next() {
		var wh Warehouse
		if err := rows.Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Address, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt); err != nil {
			return nil, 0, err
		}
		whs = append(whs, wh)
	}
	return whs, total, rows.Err()
}

func (r *repo) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	query := `SELECT id, code, name, address, is_active, created_at, updated_at FROM warehouses WHERE id = $1`
	var wh Warehouse
	err := r.db.QueryRow(ctx, query, id).Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Address, &wh.IsActive, &wh.CreatedAt, &wh.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrNotFound
	}
	return wh, err
}

func (r *repo) CreateWarehouse(ctx context.Context, wh Warehouse) (Warehouse, error) {
	query := `INSERT INTO warehouses (code, name, address, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`
	now := time.Now()
	err := r.db.QueryRow(ctx, query, wh.Code, wh.Name, wh.Address, wh.IsActive, now).Scan(&wh.ID)
	if err != nil {
		return Warehouse{}, mapUnique(err)
	}
	wh.CreatedAt = now
	wh.UpdatedAt = now
	return wh, nil
}

func (r *repo) UpdateWarehouse(ctx context.Context, id int64, wh Warehouse) error {
	query := `UPDATE warehouses SET code = $1, name = $2, address = $3, updated_at = $4 WHERE id = $5`
	tag, err := r.db.Exec(ctx, query, wh.Code, wh.Name, wh.Address, time.Now(), id)
	if err != nil {
		return mapUnique(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repo) SetWarehouseActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE warehouses SET is_active = $1, updated_at = $2 WHERE id = $3`, active, time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func listWhere(filters ListFilters) (string, []any) {
	where := ""
	args := []any{}
	if filters.Search != "" {
		where = ` WHERE (code ILIKE $1 OR name ILIKE $1)`
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		if where == "" {
			where = ` WHERE is_active = $1`
		} else {
			where += ` AND is_active = $2`
		}
		args = append(args, *filters.IsActive)
	}
	return where, args
}

func paginate(filters ListFilters) string {
	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit
	return ` LIMIT ` + strconv.Itoa(limit) + ` OFFSET ` + strconv.Itoa(offset)
}

func mapUnique(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicateCode
	}
	return err
}

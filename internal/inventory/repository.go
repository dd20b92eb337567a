package inventory

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-ops/meridian-ops/internal/platform/db"
)

// Repository is the pgx-backed store for balances and ledger rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the store.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one RepeatableRead transaction, handing it a TxStore
// bound to that transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

const balanceColumns = `id, item_id, warehouse_id, batch_number, serial_number,
	quantity_on_hand, quantity_reserved, average_cost, expiry_date, last_updated`

func scanBalance(row pgx.Row) (StockBalance, error) {
	var b StockBalance
	err := row.Scan(&b.ID, &b.ItemID, &b.WarehouseID, &b.BatchNumber, &b.SerialNumber,
		&b.QuantityOnHand, &b.QuantityReserved, &b.AverageCost, &b.ExpiryDate, &b.LastUpdated)
	return b, err
}

// GetBalance reads a single balance row outside any transaction.
func (r *Repository) GetBalance(ctx context.Context, key BalanceKey) (StockBalance, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+balanceColumns+`
		FROM stock_balances
		WHERE item_id=$1 AND warehouse_id=$2 AND batch_number=$3 AND serial_number=$4`,
		key.ItemID, key.WarehouseID, key.BatchNumber, key.SerialNumber)
	b, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockBalance{}, ErrBalanceNotFound
	}
	return b, err
}

// ListBalancesByItem lists non-empty balance rows for one item across warehouses.
func (r *Repository) ListBalancesByItem(ctx context.Context, itemID int64) ([]StockBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+balanceColumns+`
		FROM stock_balances
		WHERE item_id=$1
		ORDER BY warehouse_id, batch_number, serial_number`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBalances(rows)
}

// ListBalancesByWarehouse lists balance rows for one warehouse.
func (r *Repository) ListBalancesByWarehouse(ctx context.Context, warehouseID int64) ([]StockBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+balanceColumns+`
		FROM stock_balances
		WHERE warehouse_id=$1
		ORDER BY item_id, batch_number, serial_number`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBalances(rows)
}

func collectBalances(rows pgx.Rows) ([]StockBalance, error) {
	out := make([]StockBalance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AvailableQuantity sums available stock across the key prefix. An empty batch
// aggregates every batch and serial for the item/warehouse pair.
func (r *Repository) AvailableQuantity(ctx context.Context, itemID, warehouseID int64, batch string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(quantity_on_hand - quantity_reserved), 0)
		FROM stock_balances
		WHERE item_id=$1 AND warehouse_id=$2`
	args := []any{itemID, warehouseID}
	if batch != "" {
		query += ` AND batch_number=$3`
		args = append(args, batch)
	}
	var qty decimal.Decimal
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&qty); err != nil {
		return decimal.Zero, err
	}
	return qty, nil
}

// ListTransactions reads ledger rows for one item/warehouse pair ordered by
// transaction date, then insertion order for same-instant rows.
func (r *Repository) ListTransactions(ctx context.Context, filter HistoryFilter) ([]Transaction, error) {
	query := `SELECT id, number, tx_date, item_id, warehouse_id, tx_type, quantity,
			unit_of_measure, unit_cost, total_cost, balance_quantity, balance_value,
			reference_type, reference_id, reference_number, batch_number, serial_number,
			expiry_date, notes, created_by, created_at
		FROM inventory_transactions
		WHERE item_id=$1 AND warehouse_id=$2`
	args := []any{filter.ItemID, filter.WarehouseID}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND tx_date >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND tx_date <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY tx_date, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.Number, &t.Date, &t.ItemID, &t.WarehouseID, &t.Type,
			&t.Quantity, &t.UnitOfMeasure, &t.UnitCost, &t.TotalCost, &t.BalanceQuantity,
			&t.BalanceValue, &t.Reference.Type, &t.Reference.ID, &t.Reference.Number,
			&t.BatchNumber, &t.SerialNumber, &t.ExpiryDate, &t.Notes, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplayBalance recomputes the running balance for a key from its ledger rows.
// Used by the integrity job to cross-check snapshots against the ledger.
func (r *Repository) ReplayBalance(ctx context.Context, key BalanceKey) (decimal.Decimal, decimal.Decimal, error) {
	var qty, value decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0), COALESCE(SUM(total_cost), 0)
		FROM inventory_transactions
		WHERE item_id=$1 AND warehouse_id=$2 AND batch_number=$3 AND serial_number=$4`,
		key.ItemID, key.WarehouseID, key.BatchNumber, key.SerialNumber).Scan(&qty, &value)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return qty, value, nil
}

// ListBalanceKeys pages through all balance keys, used by the integrity job.
func (r *Repository) ListBalanceKeys(ctx context.Context, afterID int64, limit int) ([]StockBalance, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+balanceColumns+`
		FROM stock_balances
		WHERE id > $1
		ORDER BY id
		LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBalances(rows)
}

type txStore struct {
	tx pgx.Tx
}

// GetBalanceForUpdate locks the balance row for the duration of the
// transaction, serialising concurrent movements on the same key.
func (s *txStore) GetBalanceForUpdate(ctx context.Context, key BalanceKey) (StockBalance, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+balanceColumns+`
		FROM stock_balances
		WHERE item_id=$1 AND warehouse_id=$2 AND batch_number=$3 AND serial_number=$4
		FOR UPDATE`,
		key.ItemID, key.WarehouseID, key.BatchNumber, key.SerialNumber)
	b, err := scanBalance(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StockBalance{}, ErrBalanceNotFound
	}
	return b, err
}

// UpsertBalance writes the post-movement snapshot for the key.
func (s *txStore) UpsertBalance(ctx context.Context, b StockBalance) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_balances
			(item_id, warehouse_id, batch_number, serial_number,
			 quantity_on_hand, quantity_reserved, average_cost, expiry_date, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id, warehouse_id, batch_number, serial_number)
		DO UPDATE SET
			quantity_on_hand = EXCLUDED.quantity_on_hand,
			quantity_reserved = EXCLUDED.quantity_reserved,
			average_cost = EXCLUDED.average_cost,
			expiry_date = EXCLUDED.expiry_date,
			last_updated = EXCLUDED.last_updated`,
		b.ItemID, b.WarehouseID, b.BatchNumber, b.SerialNumber,
		b.QuantityOnHand, b.QuantityReserved, b.AverageCost, b.ExpiryDate, b.LastUpdated)
	return err
}

// InsertTransaction appends one ledger row and returns its id.
func (s *txStore) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_transactions
			(number, tx_date, item_id, warehouse_id, tx_type, quantity, unit_of_measure,
			 unit_cost, total_cost, balance_quantity, balance_value,
			 reference_type, reference_id, reference_number,
			 batch_number, serial_number, expiry_date, notes, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW())
		RETURNING id`,
		t.Number, t.Date, t.ItemID, t.WarehouseID, t.Type, t.Quantity, t.UnitOfMeasure,
		t.UnitCost, t.TotalCost, t.BalanceQuantity, t.BalanceValue,
		t.Reference.Type, t.Reference.ID, t.Reference.Number,
		t.BatchNumber, t.SerialNumber, t.ExpiryDate, t.Notes, t.CreatedBy).Scan(&id)
	return id, err
}

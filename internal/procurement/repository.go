package procurement

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-ops/meridian-ops/internal/platform/db"
)

// PgRepository is the pgx-backed receipt store.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository constructs the store.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// CreateReceipt inserts the header and all lines in one transaction.
func (r *PgRepository) CreateReceipt(ctx context.Context, receipt GoodsReceipt) (GoodsReceipt, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `INSERT INTO goods_receipts
				(number, supplier_ref, warehouse_id, status, received_at, notes, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
			RETURNING id, created_at, updated_at`,
			receipt.Number, receipt.SupplierRef, receipt.WarehouseID, receipt.Status,
			receipt.ReceivedAt, receipt.Notes, receipt.CreatedBy).
			Scan(&receipt.ID, &receipt.CreatedAt, &receipt.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range receipt.Lines {
			line := &receipt.Lines[i]
			line.ReceiptID = receipt.ID
			err := tx.QueryRow(ctx, `INSERT INTO goods_receipt_lines
					(receipt_id, item_id, quantity, unit_cost, batch_number, serial_number, expiry_date, posted)
				VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
				RETURNING id`,
				line.ReceiptID, line.ItemID, line.Quantity, line.UnitCost,
				line.BatchNumber, line.SerialNumber, line.ExpiryDate).Scan(&line.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	return receipt, nil
}

// GetReceipt loads the header and lines.
func (r *PgRepository) GetReceipt(ctx context.Context, id int64) (GoodsReceipt, error) {
	var receipt GoodsReceipt
	err := r.pool.QueryRow(ctx, `SELECT id, number, supplier_ref, warehouse_id, status,
			received_at, notes, created_by, created_at, updated_at
		FROM goods_receipts WHERE id=$1`, id).
		Scan(&receipt.ID, &receipt.Number, &receipt.SupplierRef, &receipt.WarehouseID,
			&receipt.Status, &receipt.ReceivedAt, &receipt.Notes, &receipt.CreatedBy,
			&receipt.CreatedAt, &receipt.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return GoodsReceipt{}, ErrReceiptNotFound
	}
	if err != nil {
		return GoodsReceipt{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, receipt_id, item_id, quantity, unit_cost,
			batch_number, serial_number, expiry_date, posted, COALESCE(transaction_number, '')
		FROM goods_receipt_lines WHERE receipt_id=$1 ORDER BY id`, id)
	if err != nil {
		return GoodsReceipt{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line ReceiptLine
		if err := rows.Scan(&line.ID, &line.ReceiptID, &line.ItemID, &line.Quantity,
			&line.UnitCost, &line.BatchNumber, &line.SerialNumber, &line.ExpiryDate,
			&line.Posted, &line.TransactionNumber); err != nil {
			return GoodsReceipt{}, err
		}
		receipt.Lines = append(receipt.Lines, line)
	}
	return receipt, rows.Err()
}

// ListReceipts pages receipt headers, newest first.
func (r *PgRepository) ListReceipts(ctx context.Context, status ReceiptStatus, limit, offset int) ([]GoodsReceipt, error) {
	query := `SELECT id, number, supplier_ref, warehouse_id, status,
			received_at, notes, created_by, created_at, updated_at
		FROM goods_receipts`
	args := []any{}
	if status != "" {
		query += ` WHERE status=$1`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GoodsReceipt, 0)
	for rows.Next() {
		var receipt GoodsReceipt
		if err := rows.Scan(&receipt.ID, &receipt.Number, &receipt.SupplierRef,
			&receipt.WarehouseID, &receipt.Status, &receipt.ReceivedAt, &receipt.Notes,
			&receipt.CreatedBy, &receipt.CreatedAt, &receipt.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, receipt)
	}
	return out, rows.Err()
}

// MarkLinePosted records the ledger row that settled the line.
func (r *PgRepository) MarkLinePosted(ctx context.Context, lineID int64, txNumber string) error {
	_, err := r.pool.Exec(ctx, `UPDATE goods_receipt_lines
		SET posted=TRUE, transaction_number=$2 WHERE id=$1`, lineID, txNumber)
	return err
}

// UpdateStatus moves the document to a new lifecycle state.
func (r *PgRepository) UpdateStatus(ctx context.Context, id int64, status ReceiptStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE goods_receipts
		SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported inventory movements.
type TransactionType string

const (
	// TransactionTypeGoodsReceipt represents an inbound receipt from purchasing.
	TransactionTypeGoodsReceipt TransactionType = "GOODS_RECEIPT"
	// TransactionTypeMaterialIssue represents an outbound issue to production or repair.
	TransactionTypeMaterialIssue TransactionType = "MATERIAL_ISSUE"
	// TransactionTypeProductionReceipt represents finished goods entering stock.
	TransactionTypeProductionReceipt TransactionType = "PRODUCTION_RECEIPT"
	// TransactionTypeAdjustment indicates a manual adjustment.
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
	// TransactionTypeTransfer marks either leg of an inter-warehouse transfer.
	TransactionTypeTransfer TransactionType = "TRANSFER"
	// TransactionTypeReturn marks returns to or from stock.
	TransactionTypeReturn TransactionType = "RETURN"
)

// BalanceKey addresses one stock balance row.
type BalanceKey struct {
	ItemID       int64
	WarehouseID  int64
	BatchNumber  string
	SerialNumber string
}

// StockBalance is the current quantity/cost snapshot for one key.
type StockBalance struct {
	ID               int64           `json:"id"`
	ItemID           int64           `json:"item_id"`
	WarehouseID      int64           `json:"warehouse_id"`
	BatchNumber      string          `json:"batch_number,omitempty"`
	SerialNumber     string          `json:"serial_number,omitempty"`
	QuantityOnHand   decimal.Decimal `json:"quantity_on_hand"`
	QuantityReserved decimal.Decimal `json:"quantity_reserved"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	ExpiryDate       *time.Time      `json:"expiry_date,omitempty"`
	LastUpdated      time.Time       `json:"last_updated"`
}

// Key returns the composite key of the balance row.
func (b StockBalance) Key() BalanceKey {
	return BalanceKey{ItemID: b.ItemID, WarehouseID: b.WarehouseID, BatchNumber: b.BatchNumber, SerialNumber: b.SerialNumber}
}

// Available returns on-hand minus reserved quantity.
func (b StockBalance) Available() decimal.Decimal {
	return b.QuantityOnHand.Sub(b.QuantityReserved)
}

// TotalValue returns on-hand quantity times average cost.
func (b StockBalance) TotalValue() decimal.Decimal {
	return b.QuantityOnHand.Mul(b.AverageCost)
}

// Reference links a ledger row to the source document.
type Reference struct {
	Type   string `json:"type,omitempty"`
	ID     string `json:"id,omitempty"`
	Number string `json:"number,omitempty"`
}

// Transaction is one immutable ledger row.
type Transaction struct {
	ID              int64           `json:"id"`
	Number          string          `json:"number"`
	Date            time.Time       `json:"date"`
	ItemID          int64           `json:"item_id"`
	WarehouseID     int64           `json:"warehouse_id"`
	Type            TransactionType `json:"type"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitOfMeasure   string          `json:"unit_of_measure"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	BalanceQuantity decimal.Decimal `json:"balance_quantity"`
	BalanceValue    decimal.Decimal `json:"balance_value"`
	Reference       Reference       `json:"reference,omitempty"`
	BatchNumber     string          `json:"batch_number,omitempty"`
	SerialNumber    string          `json:"serial_number,omitempty"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedBy       int64           `json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AddStockInput describes an inbound movement.
type AddStockInput struct {
	ItemID         int64
	WarehouseID    int64
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	UnitOfMeasure  string
	BatchNumber    string
	SerialNumber   string
	ExpiryDate     *time.Time
	Reference      Reference
	Type           TransactionType
	Notes          string
	UserID         int64
	IdempotencyKey string
}

// DeductStockInput describes an outbound movement.
type DeductStockInput struct {
	ItemID         int64
	WarehouseID    int64
	Quantity       decimal.Decimal
	BatchNumber    string
	SerialNumber   string
	Reference      Reference
	Type           TransactionType
	Notes          string
	UserID         int64
	IdempotencyKey string
}

// AdjustStockInput describes a signed manual adjustment.
type AdjustStockInput struct {
	ItemID         int64
	WarehouseID    int64
	Delta          decimal.Decimal
	NewUnitCost    decimal.Decimal
	Reason         string
	BatchNumber    string
	Reference      Reference
	UserID         int64
	IdempotencyKey string
}

// TransferStockInput describes an inter-warehouse transfer.
type TransferStockInput struct {
	ItemID          int64
	FromWarehouseID int64
	ToWarehouseID   int64
	Quantity        decimal.Decimal
	BatchNumber     string
	SerialNumber    string
	Reference       Reference
	Notes           string
	UserID          int64
}

// HistoryFilter filters ledger rows for one item/warehouse pair.
type HistoryFilter struct {
	ItemID      int64
	WarehouseID int64
	From        time.Time
	To          time.Time
	Limit       int
}

package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ReceiptStatus is the lifecycle state of a goods receipt document.
type ReceiptStatus string

const (
	// StatusDraft means the receipt is editable and no stock has moved.
	StatusDraft ReceiptStatus = "DRAFT"
	// StatusPosted means every line landed in the stock ledger.
	StatusPosted ReceiptStatus = "POSTED"
	// StatusPartiallyPosted means at least one line failed to post.
	StatusPartiallyPosted ReceiptStatus = "PARTIALLY_POSTED"
	// StatusCancelled means the draft was abandoned before posting.
	StatusCancelled ReceiptStatus = "CANCELLED"
)

// CanPost reports whether posting is allowed from this state. Partially
// posted receipts may be re-posted to retry their failed lines.
func (s ReceiptStatus) CanPost() bool {
	return s == StatusDraft || s == StatusPartiallyPosted
}

// CanCancel reports whether the document may still be cancelled.
func (s ReceiptStatus) CanCancel() bool {
	return s == StatusDraft
}

// GoodsReceipt is a supplier delivery awaiting or done with stock posting.
type GoodsReceipt struct {
	ID          int64         `json:"id"`
	Number      string        `json:"number"`
	SupplierRef string        `json:"supplier_ref"`
	WarehouseID int64         `json:"warehouse_id"`
	Status      ReceiptStatus `json:"status"`
	ReceivedAt  time.Time     `json:"received_at"`
	Notes       string        `json:"notes,omitempty"`
	CreatedBy   int64         `json:"created_by"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Lines       []ReceiptLine `json:"lines"`
}

// ReceiptLine is one item lot on a goods receipt.
type ReceiptLine struct {
	ID                int64           `json:"id"`
	ReceiptID         int64           `json:"receipt_id"`
	ItemID            int64           `json:"item_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	BatchNumber       string          `json:"batch_number,omitempty"`
	SerialNumber      string          `json:"serial_number,omitempty"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	Posted            bool            `json:"posted"`
	TransactionNumber string          `json:"transaction_number,omitempty"`
}

// LineFailure records why one line could not post.
type LineFailure struct {
	LineID int64  `json:"line_id"`
	ItemID int64  `json:"item_id"`
	Reason string `json:"reason"`
}

// PostResult summarises a posting run over a receipt's lines.
type PostResult struct {
	Receipt  GoodsReceipt  `json:"receipt"`
	Posted   int           `json:"posted"`
	Failures []LineFailure `json:"failures,omitempty"`
}

// ErrReceiptNotFound indicates a missing receipt.
var ErrReceiptNotFound = errors.New("procurement: receipt not found")

// ErrInvalidStatus indicates a lifecycle transition that is not allowed.
var ErrInvalidStatus = errors.New("procurement: operation not allowed in current status")

// ErrNoLines indicates a receipt without lines.
var ErrNoLines = errors.New("procurement: receipt requires at least one line")

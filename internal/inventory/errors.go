package inventory

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates a missing item, warehouse or balance row.
var ErrNotFound = errors.New("inventory: not found")

// ErrInvalidQuantity indicates a zero or negative quantity where a positive value is required.
var ErrInvalidQuantity = errors.New("inventory: quantity must be positive")

// ErrZeroAdjustment indicates an adjustment with a zero delta.
var ErrZeroAdjustment = errors.New("inventory: adjustment delta must be non zero")

// ErrInvalidUnitCost indicates a negative unit cost.
var ErrInvalidUnitCost = errors.New("inventory: unit cost must be >= 0")

// ErrInactiveWarehouse indicates the target warehouse is flagged inactive.
var ErrInactiveWarehouse = errors.New("inventory: warehouse is inactive")

// ErrNegativeResultingStock indicates an adjustment would drive on-hand below zero.
var ErrNegativeResultingStock = errors.New("inventory: resulting stock would be negative")

// ErrSameWarehouseTransfer indicates transfer source equals destination.
var ErrSameWarehouseTransfer = errors.New("inventory: source and destination warehouse must differ")

// ErrBalanceNotFound indicates a missing balance row for a composite key.
var ErrBalanceNotFound = errors.New("inventory: balance not found")

// InsufficientStockError reports a deduction exceeding available stock.
type InsufficientStockError struct {
	ItemCode      string
	WarehouseCode string
	Available     decimal.Decimal
	Required      decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: insufficient stock for item %s at warehouse %s: available %s, required %s",
		e.ItemCode, e.WarehouseCode, e.Available.String(), e.Required.String())
}

// PersistenceError wraps a storage fault without leaking internals to callers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("inventory: persistence failure during %s", e.Op)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// isDomainError reports whether err is one of the typed movement failures,
// as opposed to a storage fault that should be wrapped as PersistenceError.
func isDomainError(err error) bool {
	var insufficient *InsufficientStockError
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrZeroAdjustment),
		errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrInactiveWarehouse),
		errors.Is(err, ErrNegativeResultingStock),
		errors.Is(err, ErrSameWarehouseTransfer),
		errors.As(err, &insufficient):
		return true
	}
	return false
}

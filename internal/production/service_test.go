package production

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-ops/meridian-ops/internal/inventory"
)

type fakeMovements struct {
	available map[int64]decimal.Decimal
	added     []inventory.AddStockInput
	deducted  []inventory.DeductStockInput
	unitCosts map[int64]decimal.Decimal
	nextTx    int64
}

func newFakeMovements() *fakeMovements {
	return &fakeMovements{
		available: make(map[int64]decimal.Decimal),
		unitCosts: make(map[int64]decimal.Decimal),
	}
}

func (f *fakeMovements) ValidateStockAvailability(ctx context.Context, itemID, warehouseID int64, required decimal.Decimal, batch string) error {
	if !required.IsPositive() {
		return inventory.ErrInvalidQuantity
	}
	available := f.available[itemID]
	if available.LessThan(required) {
		return &inventory.InsufficientStockError{
			ItemCode:      fmt.Sprintf("ITM-%03d", itemID),
			WarehouseCode: "WH-01",
			Available:     available,
			Required:      required,
		}
	}
	return nil
}

func (f *fakeMovements) DeductStock(ctx context.Context, input inventory.DeductStockInput) (inventory.Transaction, error) {
	if err := f.ValidateStockAvailability(ctx, input.ItemID, input.WarehouseID, input.Quantity, input.BatchNumber); err != nil {
		return inventory.Transaction{}, err
	}
	f.available[input.ItemID] = f.available[input.ItemID].Sub(input.Quantity)
	f.deducted = append(f.deducted, input)
	f.nextTx++
	unitCost := f.unitCosts[input.ItemID]
	return inventory.Transaction{
		ID:        f.nextTx,
		Number:    fmt.Sprintf("ISS-2026-%06d", f.nextTx),
		Type:      input.Type,
		Quantity:  input.Quantity.Neg(),
		UnitCost:  unitCost,
		TotalCost: input.Quantity.Neg().Mul(unitCost),
		Reference: input.Reference,
	}, nil
}

func (f *fakeMovements) AddStock(ctx context.Context, input inventory.AddStockInput) (inventory.Transaction, error) {
	f.available[input.ItemID] = f.available[input.ItemID].Add(input.Quantity)
	f.added = append(f.added, input)
	f.nextTx++
	return inventory.Transaction{
		ID:        f.nextTx,
		Number:    fmt.Sprintf("PRC-2026-%06d", f.nextTx),
		Type:      input.Type,
		Quantity:  input.Quantity,
		UnitCost:  input.UnitCost,
		TotalCost: input.Quantity.Mul(input.UnitCost),
		Reference: input.Reference,
	}, nil
}

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestIssueMaterialsDeductsEveryLine(t *testing.T) {
	movements := newFakeMovements()
	movements.available[1] = d("100")
	movements.available[2] = d("50")
	movements.unitCosts[1] = d("10")
	movements.unitCosts[2] = d("20")
	svc := NewService(movements, nil)

	result, err := svc.IssueMaterials(context.Background(), MaterialIssueInput{
		WorkOrderRef: "WO-1001",
		WarehouseID:  1,
		Lines: []IssueLine{
			{ItemID: 1, Quantity: d("10")},
			{ItemID: 2, Quantity: d("5")},
		},
		UserID: 7,
	})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 2)
	// 10*10 + 5*20, reported as positive consumption value.
	require.True(t, result.TotalCost.Equal(d("200")), "got %s", result.TotalCost)
	require.Equal(t, "WO-1001", movements.deducted[0].Reference.Number)
	require.True(t, movements.available[1].Equal(d("90")))
}

func TestIssueMaterialsRejectsWholeDocumentUpFront(t *testing.T) {
	movements := newFakeMovements()
	movements.available[1] = d("100")
	movements.available[2] = d("2")
	svc := NewService(movements, nil)

	_, err := svc.IssueMaterials(context.Background(), MaterialIssueInput{
		WorkOrderRef: "WO-1002",
		WarehouseID:  1,
		Lines: []IssueLine{
			{ItemID: 1, Quantity: d("10")},
			{ItemID: 2, Quantity: d("5")},
		},
	})
	var lineErr *LineError
	require.ErrorAs(t, err, &lineErr)
	require.Equal(t, int64(2), lineErr.ItemID)
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	// Nothing moved, including the line that had stock.
	require.Empty(t, movements.deducted)
	require.True(t, movements.available[1].Equal(d("100")))
}

func TestIssueMaterialsRequiresLines(t *testing.T) {
	svc := NewService(newFakeMovements(), nil)
	_, err := svc.IssueMaterials(context.Background(), MaterialIssueInput{WorkOrderRef: "WO-1", WarehouseID: 1})
	require.ErrorIs(t, err, ErrNoLines)
}

func TestReceiveOutputPostsProductionReceipt(t *testing.T) {
	movements := newFakeMovements()
	svc := NewService(movements, nil)

	tx, err := svc.ReceiveOutput(context.Background(), ReceiveOutputInput{
		WorkOrderRef: "WO-1003",
		ItemID:       9,
		WarehouseID:  1,
		Quantity:     d("4"),
		UnitCost:     d("55.25"),
		BatchNumber:  "FG-LOT-1",
		UserID:       7,
	})
	require.NoError(t, err)
	require.Equal(t, inventory.TransactionTypeProductionReceipt, tx.Type)
	require.True(t, tx.TotalCost.Equal(d("221")))
	require.Len(t, movements.added, 1)
	require.Equal(t, "WORK_ORDER", movements.added[0].Reference.Type)
	require.Equal(t, "WO-1003", movements.added[0].Reference.Number)
}

func TestReturnMaterialsAddsBackAtGivenCost(t *testing.T) {
	movements := newFakeMovements()
	svc := NewService(movements, nil)

	result, err := svc.ReturnMaterials(context.Background(), MaterialIssueInput{
		WorkOrderRef: "WO-1004",
		WarehouseID:  1,
		Lines:        []IssueLine{{ItemID: 1, Quantity: d("3")}},
	}, map[int64]decimal.Decimal{1: d("10")})
	require.NoError(t, err)
	require.Len(t, result.Transactions, 1)
	require.Equal(t, inventory.TransactionTypeReturn, result.Transactions[0].Type)
	require.True(t, result.TotalCost.Equal(d("30")))
	require.True(t, movements.available[1].Equal(d("3")))
}

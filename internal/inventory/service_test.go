package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu       sync.Mutex
	balances map[BalanceKey]StockBalance
	ledger   []Transaction
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: make(map[BalanceKey]StockBalance)}
}

// WithTx serialises writers the way a row lock would.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, staged: make(map[BalanceKey]StockBalance)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for key, bal := range tx.staged {
		r.balances[key] = bal
	}
	r.ledger = append(r.ledger, tx.rows...)
	return nil
}

func (r *memoryRepo) GetBalance(ctx context.Context, key BalanceKey) (StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if bal, ok := r.balances[key]; ok {
		return bal, nil
	}
	return StockBalance{}, ErrBalanceNotFound
}

func (r *memoryRepo) ListBalancesByItem(ctx context.Context, itemID int64) ([]StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockBalance
	for _, bal := range r.balances {
		if bal.ItemID == itemID {
			out = append(out, bal)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListBalancesByWarehouse(ctx context.Context, warehouseID int64) ([]StockBalance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockBalance
	for _, bal := range r.balances {
		if bal.WarehouseID == warehouseID {
			out = append(out, bal)
		}
	}
	return out, nil
}

func (r *memoryRepo) AvailableQuantity(ctx context.Context, itemID, warehouseID int64, batch string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	for _, bal := range r.balances {
		if bal.ItemID != itemID || bal.WarehouseID != warehouseID {
			continue
		}
		if batch != "" && bal.BatchNumber != batch {
			continue
		}
		total = total.Add(bal.Available())
	}
	return total, nil
}

func (r *memoryRepo) ListTransactions(ctx context.Context, filter HistoryFilter) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for _, tx := range r.ledger {
		if tx.ItemID == filter.ItemID && tx.WarehouseID == filter.WarehouseID {
			out = append(out, tx)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo   *memoryRepo
	staged map[BalanceKey]StockBalance
	rows   []Transaction
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, key BalanceKey) (StockBalance, error) {
	if bal, ok := tx.staged[key]; ok {
		return bal, nil
	}
	if bal, ok := tx.repo.balances[key]; ok {
		return bal, nil
	}
	return StockBalance{}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, bal StockBalance) error {
	tx.staged[bal.Key()] = bal
	return nil
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	tx.repo.nextID++
	t.ID = tx.repo.nextID
	tx.rows = append(tx.rows, t)
	return t.ID, nil
}

type fakeLookup struct{}

func (fakeLookup) LookupItem(ctx context.Context, id int64) (ItemRef, error) {
	if id >= 100 {
		return ItemRef{}, errors.New("no such item")
	}
	return ItemRef{ID: id, Code: fmt.Sprintf("ITM-%03d", id), Name: "Test Item", UnitOfMeasure: "EA", Active: true}, nil
}

func (fakeLookup) LookupWarehouse(ctx context.Context, id int64) (WarehouseRef, error) {
	if id >= 100 {
		return WarehouseRef{}, errors.New("no such warehouse")
	}
	wh := WarehouseRef{ID: id, Code: fmt.Sprintf("WH-%02d", id), Name: "Test Warehouse", Active: true}
	if id == 99 {
		wh.Active = false
	}
	return wh, nil
}

type fakeNumbers struct {
	mu   sync.Mutex
	next map[string]int64
}

func (f *fakeNumbers) Next(ctx context.Context, prefix string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == nil {
		f.next = make(map[string]int64)
	}
	f.next[prefix]++
	return fmt.Sprintf("%s-2026-%06d", prefix, f.next[prefix]), nil
}

func newTestService(repo *memoryRepo) *Service {
	gate := NewValidationGate(fakeLookup{}, repo)
	return NewService(repo, gate, &fakeNumbers{}, nil, nil, nil, nil, ServiceConfig{})
}

func TestAddStockCreatesBalanceAndLedgerRow(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	tx, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("100")})
	require.NoError(t, err)
	require.Equal(t, "GRN-2026-000001", tx.Number)
	require.True(t, tx.Quantity.Equal(d("10")))
	require.True(t, tx.TotalCost.Equal(d("1000")))
	require.True(t, tx.BalanceQuantity.Equal(d("10")))
	require.True(t, tx.BalanceValue.Equal(d("1000")))

	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.QuantityOnHand.Equal(d("10")))
	require.True(t, bal.AverageCost.Equal(d("100")))
}

func TestAddStockMovesAverageCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("100")})
	require.NoError(t, err)
	tx, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("200")})
	require.NoError(t, err)

	require.True(t, tx.BalanceQuantity.Equal(d("20")))
	require.True(t, tx.BalanceValue.Equal(d("3000")))

	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.AverageCost.Equal(d("150")), "got %s", bal.AverageCost)
}

func TestAddStockRejectsBadInput(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("0"), UnitCost: d("10")})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("1"), UnitCost: d("-1")})
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	_, err = svc.AddStock(ctx, AddStockInput{ItemID: 100, WarehouseID: 1, Quantity: d("1"), UnitCost: d("1")})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 99, Quantity: d("1"), UnitCost: d("1")})
	require.ErrorIs(t, err, ErrInactiveWarehouse)
}

func TestDeductStockUsesAverageCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("100")})
	require.NoError(t, err)
	_, err = svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("200")})
	require.NoError(t, err)

	tx, err := svc.DeductStock(ctx, DeductStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("5")})
	require.NoError(t, err)
	require.True(t, tx.Quantity.Equal(d("-5")))
	require.True(t, tx.UnitCost.Equal(d("150")))
	require.True(t, tx.TotalCost.Equal(d("-750")))
	require.True(t, tx.BalanceQuantity.Equal(d("15")))

	// Deduction never moves the average.
	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.AverageCost.Equal(d("150")))
}

func TestDeductStockInsufficientLeavesStateUnchanged(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("3"), UnitCost: d("50")})
	require.NoError(t, err)

	_, err = svc.DeductStock(ctx, DeductStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("5")})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, "ITM-001", insufficient.ItemCode)
	require.Equal(t, "WH-01", insufficient.WarehouseCode)
	require.True(t, insufficient.Available.Equal(d("3")))
	require.True(t, insufficient.Required.Equal(d("5")))

	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.QuantityOnHand.Equal(d("3")))
	require.Len(t, repo.ledger, 1)
}

func TestDeductStockMissingBalance(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.DeductStock(context.Background(), DeductStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("1")})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Available.IsZero())
}

func TestAdjustStockPositiveBlendsCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("100")})
	require.NoError(t, err)

	tx, err := svc.AdjustStock(ctx, AdjustStockInput{ItemID: 1, WarehouseID: 1, Delta: d("10"), NewUnitCost: d("200"), Reason: "count correction"})
	require.NoError(t, err)
	require.Equal(t, TransactionTypeAdjustment, tx.Type)
	require.Contains(t, tx.Notes, "count correction")

	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.QuantityOnHand.Equal(d("20")))
	require.True(t, bal.AverageCost.Equal(d("150")))
}

func TestAdjustStockNegativeKeepsCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("100")})
	require.NoError(t, err)

	tx, err := svc.AdjustStock(ctx, AdjustStockInput{ItemID: 1, WarehouseID: 1, Delta: d("-4"), Reason: "damage"})
	require.NoError(t, err)
	require.True(t, tx.Quantity.Equal(d("-4")))
	require.True(t, tx.UnitCost.Equal(d("100")))

	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.QuantityOnHand.Equal(d("6")))
	require.True(t, bal.AverageCost.Equal(d("100")))
}

func TestAdjustStockRejectsZeroAndOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AdjustStock(ctx, AdjustStockInput{ItemID: 1, WarehouseID: 1, Delta: decimal.Zero, Reason: "noop"})
	require.ErrorIs(t, err, ErrZeroAdjustment)

	_, err = svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("5"), UnitCost: d("10")})
	require.NoError(t, err)

	_, err = svc.AdjustStock(ctx, AdjustStockInput{ItemID: 1, WarehouseID: 1, Delta: d("-6"), Reason: "shrink"})
	require.ErrorIs(t, err, ErrNegativeResultingStock)
}

func TestAdjustStockNegativeOnMissingBalance(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.AdjustStock(context.Background(), AdjustStockInput{ItemID: 1, WarehouseID: 1, Delta: d("-1"), Reason: "ghost"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransferStockPostsTwoLinkedLegs(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("100")})
	require.NoError(t, err)

	out, in, err := svc.TransferStock(ctx, TransferStockInput{ItemID: 1, FromWarehouseID: 1, ToWarehouseID: 2, Quantity: d("4")})
	require.NoError(t, err)

	require.Equal(t, TransactionTypeTransfer, out.Type)
	require.Equal(t, TransactionTypeTransfer, in.Type)
	require.True(t, out.Quantity.Equal(d("-4")))
	require.True(t, in.Quantity.Equal(d("4")))
	require.True(t, in.UnitCost.Equal(d("100")), "destination leg carries source average cost")

	require.NotEmpty(t, out.Reference.ID)
	require.Equal(t, out.Reference.ID, in.Reference.ID)
	require.Equal(t, out.Number, in.Reference.Number)

	src, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, src.QuantityOnHand.Equal(d("6")))
	dst, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 2})
	require.NoError(t, err)
	require.True(t, dst.QuantityOnHand.Equal(d("4")))
	require.True(t, dst.AverageCost.Equal(d("100")))
}

func TestTransferStockRejectsSameWarehouse(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, _, err := svc.TransferStock(context.Background(), TransferStockInput{ItemID: 1, FromWarehouseID: 1, ToWarehouseID: 1, Quantity: d("1")})
	require.ErrorIs(t, err, ErrSameWarehouseTransfer)
}

func TestValidateStockAvailability(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("5"), UnitCost: d("10")})
	require.NoError(t, err)

	require.NoError(t, svc.ValidateStockAvailability(ctx, 1, 1, d("5"), ""))

	err = svc.ValidateStockAvailability(ctx, 1, 1, d("6"), "")
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
}

func TestBatchBalancesAreSeparate(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("5"), UnitCost: d("10"), BatchNumber: "LOT-A"})
	require.NoError(t, err)
	_, err = svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("3"), UnitCost: d("20"), BatchNumber: "LOT-B"})
	require.NoError(t, err)

	// Batch-scoped deduction cannot borrow from the other lot.
	_, err = svc.DeductStock(ctx, DeductStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("4"), BatchNumber: "LOT-B"})
	var insufficient *InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	qty, err := svc.GetAvailableQuantity(ctx, 1, 1, "")
	require.NoError(t, err)
	require.True(t, qty.Equal(d("8")))
}

func TestConcurrentDeductionsNeverOverdraw(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("100"), UnitCost: d("10")})
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.DeductStock(ctx, DeductStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		var insufficient *InsufficientStockError
		require.ErrorAs(t, err, &insufficient)
		rejected++
	}
	require.Equal(t, 10, ok)
	require.Equal(t, 10, rejected)

	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.QuantityOnHand.IsZero(), "got %s", bal.QuantityOnHand)
}

func TestLedgerRunningBalanceMatchesSnapshots(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("10"), UnitCost: d("100")})
	require.NoError(t, err)
	_, err = svc.DeductStock(ctx, DeductStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("4")})
	require.NoError(t, err)
	_, err = svc.AddStock(ctx, AddStockInput{ItemID: 1, WarehouseID: 1, Quantity: d("6"), UnitCost: d("50")})
	require.NoError(t, err)

	history, err := svc.GetTransactionHistory(ctx, HistoryFilter{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.Len(t, history, 3)

	running := decimal.Zero
	for _, tx := range history {
		running = running.Add(tx.Quantity)
		require.True(t, tx.BalanceQuantity.Equal(running),
			"row %s: balance %s, replayed %s", tx.Number, tx.BalanceQuantity, running)
	}

	bal, err := repo.GetBalance(ctx, BalanceKey{ItemID: 1, WarehouseID: 1})
	require.NoError(t, err)
	require.True(t, bal.QuantityOnHand.Equal(running))
}

package inventory

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-ops/meridian-ops/internal/platform/httpx"
	"github.com/meridian-ops/meridian-ops/internal/shared"
)

// Handler exposes the movement and read endpoints as a JSON API.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// Routes mounts the inventory endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/availability", h.getAvailability)
	r.Get("/balances/item/{itemID}", h.listBalancesByItem)
	r.Get("/balances/warehouse/{warehouseID}", h.listBalancesByWarehouse)
	r.Get("/transactions", h.listTransactions)
	r.Post("/receipts", h.postReceipt)
	r.Post("/issues", h.postIssue)
	r.Post("/adjustments", h.postAdjustment)
	r.Post("/transfers", h.postTransfer)
}

type receiptRequest struct {
	ItemID        int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID   int64           `json:"warehouse_id" validate:"required,gt=0"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	UnitOfMeasure string          `json:"unit_of_measure"`
	BatchNumber   string          `json:"batch_number"`
	SerialNumber  string          `json:"serial_number"`
	ExpiryDate    *time.Time      `json:"expiry_date"`
	Reference     Reference       `json:"reference"`
	Type          TransactionType `json:"type"`
	Notes         string          `json:"notes"`
	UserID        int64           `json:"user_id"`
}

func (h *Handler) postReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tx, err := h.svc.AddStock(r.Context(), AddStockInput{
		ItemID:         req.ItemID,
		WarehouseID:    req.WarehouseID,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		UnitOfMeasure:  req.UnitOfMeasure,
		BatchNumber:    req.BatchNumber,
		SerialNumber:   req.SerialNumber,
		ExpiryDate:     req.ExpiryDate,
		Reference:      req.Reference,
		Type:           req.Type,
		Notes:          req.Notes,
		UserID:         req.UserID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

type issueRequest struct {
	ItemID       int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID  int64           `json:"warehouse_id" validate:"required,gt=0"`
	Quantity     decimal.Decimal `json:"quantity"`
	BatchNumber  string          `json:"batch_number"`
	SerialNumber string          `json:"serial_number"`
	Reference    Reference       `json:"reference"`
	Type         TransactionType `json:"type"`
	Notes        string          `json:"notes"`
	UserID       int64           `json:"user_id"`
}

func (h *Handler) postIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tx, err := h.svc.DeductStock(r.Context(), DeductStockInput{
		ItemID:         req.ItemID,
		WarehouseID:    req.WarehouseID,
		Quantity:       req.Quantity,
		BatchNumber:    req.BatchNumber,
		SerialNumber:   req.SerialNumber,
		Reference:      req.Reference,
		Type:           req.Type,
		Notes:          req.Notes,
		UserID:         req.UserID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

type adjustmentRequest struct {
	ItemID      int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	Delta       decimal.Decimal `json:"delta"`
	NewUnitCost decimal.Decimal `json:"new_unit_cost"`
	Reason      string          `json:"reason" validate:"required"`
	BatchNumber string          `json:"batch_number"`
	Reference   Reference       `json:"reference"`
	UserID      int64           `json:"user_id"`
}

func (h *Handler) postAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tx, err := h.svc.AdjustStock(r.Context(), AdjustStockInput{
		ItemID:         req.ItemID,
		WarehouseID:    req.WarehouseID,
		Delta:          req.Delta,
		NewUnitCost:    req.NewUnitCost,
		Reason:         req.Reason,
		BatchNumber:    req.BatchNumber,
		Reference:      req.Reference,
		UserID:         req.UserID,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

type transferRequest struct {
	ItemID          int64           `json:"item_id" validate:"required,gt=0"`
	FromWarehouseID int64           `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int64           `json:"to_warehouse_id" validate:"required,gt=0"`
	Quantity        decimal.Decimal `json:"quantity"`
	BatchNumber     string          `json:"batch_number"`
	SerialNumber    string          `json:"serial_number"`
	Notes           string          `json:"notes"`
	UserID          int64           `json:"user_id"`
}

func (h *Handler) postTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	out, in, err := h.svc.TransferStock(r.Context(), TransferStockInput{
		ItemID:          req.ItemID,
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		Quantity:        req.Quantity,
		BatchNumber:     req.BatchNumber,
		SerialNumber:    req.SerialNumber,
		Notes:           req.Notes,
		UserID:          req.UserID,
	})
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"outbound": out,
		"inbound":  in,
	})
}

func (h *Handler) getAvailability(w http.ResponseWriter, r *http.Request) {
	itemID, err1 := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	warehouseID, err2 := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id and warehouse_id are required")
		return
	}
	batch := r.URL.Query().Get("batch_number")
	qty, err := h.svc.GetAvailableQuantity(r.Context(), itemID, warehouseID, batch)
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item_id":      itemID,
		"warehouse_id": warehouseID,
		"batch_number": batch,
		"available":    qty,
	})
}

func (h *Handler) listBalancesByItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid item id")
		return
	}
	balances, err := h.svc.GetBalancesByItem(r.Context(), itemID)
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) listBalancesByWarehouse(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid warehouse id")
		return
	}
	balances, err := h.svc.GetBalancesByWarehouse(r.Context(), warehouseID)
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balances)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	itemID, err1 := strconv.ParseInt(q.Get("item_id"), 10, 64)
	warehouseID, err2 := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "item_id and warehouse_id are required")
		return
	}
	filter := HistoryFilter{ItemID: itemID, WarehouseID: warehouseID}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	txs, err := h.svc.GetTransactionHistory(r.Context(), filter)
	if err != nil {
		respondMovementError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txs)
}

// respondMovementError maps the typed movement failures onto problem responses.
func respondMovementError(w http.ResponseWriter, err error) {
	var insufficient *InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBalanceNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrZeroAdjustment),
		errors.Is(err, ErrInvalidUnitCost),
		errors.Is(err, ErrSameWarehouseTransfer):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInactiveWarehouse),
		errors.Is(err, ErrNegativeResultingStock):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

package production

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/meridian-ops/meridian-ops/internal/inventory"
	"github.com/meridian-ops/meridian-ops/internal/platform/httpx"
)

// Handler exposes production movement endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// Routes mounts the production endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/issues", h.issueMaterials)
	r.Post("/outputs", h.receiveOutput)
}

type issueRequest struct {
	WorkOrderRef string      `json:"work_order_ref" validate:"required"`
	WarehouseID  int64       `json:"warehouse_id" validate:"required,gt=0"`
	Lines        []IssueLine `json:"lines" validate:"required,min=1"`
	Notes        string      `json:"notes"`
	UserID       int64       `json:"user_id"`
}

func (h *Handler) issueMaterials(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.svc.IssueMaterials(r.Context(), MaterialIssueInput{
		WorkOrderRef: req.WorkOrderRef,
		WarehouseID:  req.WarehouseID,
		Lines:        req.Lines,
		Notes:        req.Notes,
		UserID:       req.UserID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

type outputRequest struct {
	WorkOrderRef string          `json:"work_order_ref" validate:"required"`
	ItemID       int64           `json:"item_id" validate:"required,gt=0"`
	WarehouseID  int64           `json:"warehouse_id" validate:"required,gt=0"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	BatchNumber  string          `json:"batch_number"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	Notes        string          `json:"notes"`
	UserID       int64           `json:"user_id"`
}

func (h *Handler) receiveOutput(w http.ResponseWriter, r *http.Request) {
	var req outputRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tx, err := h.svc.ReceiveOutput(r.Context(), ReceiveOutputInput{
		WorkOrderRef: req.WorkOrderRef,
		ItemID:       req.ItemID,
		WarehouseID:  req.WarehouseID,
		Quantity:     req.Quantity,
		UnitCost:     req.UnitCost,
		BatchNumber:  req.BatchNumber,
		ExpiryDate:   req.ExpiryDate,
		Notes:        req.Notes,
		UserID:       req.UserID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func respondError(w http.ResponseWriter, err error) {
	var insufficient *inventory.InsufficientStockError
	switch {
	case errors.As(err, &insufficient):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", insufficient.Error())
	case errors.Is(err, inventory.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrNoLines), errors.Is(err, inventory.ErrInvalidQuantity), errors.Is(err, inventory.ErrInvalidUnitCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, inventory.ErrInactiveWarehouse):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

/*
handlers.go - HTTP API handlers for the lot consumption engine

PURPOSE:
  Exposes the engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the engine.

ENDPOINTS:
  Goods:
    GET    /api/goods/{id}/remaining   Total remaining quantity
    GET    /api/goods/{id}/summary     Lot counts + valuation
    GET    /api/goods/{id}/lots        All lots, oldest first
    POST   /api/goods/{id}/consume     FIFO consumption

  Lots:
    POST   /api/lots                   Record a purchase
    GET    /api/lots/{id}              Lot details
    PATCH  /api/lots/{id}              Guarded quantity/cost edit
    DELETE /api/lots/{id}              Guarded delete
    GET    /api/lots/{id}/history      Consumption entries
    GET    /api/lots/{id}/can-delete   Advisory delete predicate
    GET    /api/lots/{id}/can-edit-quantity?quantity=N

ERROR HANDLING:
  Engine errors map to JSON with appropriate HTTP status:
  - 400: InvalidRequest (malformed input)
  - 404: NotFound (unknown lot)
  - 409: MutationBlocked (edit/delete rejected by the guard)
  - 500: TransactionFailed and everything else

  A consume call that can only be partially satisfied is a 200: shortfall
  is part of the normal result.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/larder/lot-engine/inventory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter clears all stored data. Implemented by the concrete stores;
// used by the demo scenario endpoints only.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *inventory.Engine

	// Optional: scenario/reset endpoints are disabled when nil.
	Store Resetter

	// Guards currentScenario: chi serves the scenario handlers from
	// concurrent goroutines.
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler around the engine.
func NewHandler(engine *inventory.Engine, store Resetter) *Handler {
	return &Handler{Engine: engine, Store: store}
}

// =============================================================================
// LOT HANDLERS
// =============================================================================

// RecordLot records a purchase as a new lot.
func (h *Handler) RecordLot(w http.ResponseWriter, r *http.Request) {
	var req RecordLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity (decimal string required)", err)
		return
	}
	unitCost, err := decimal.NewFromString(req.UnitCost)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid unit_cost (decimal string required)", err)
		return
	}
	acquiredAt, err := time.Parse("2006-01-02", req.AcquiredAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid acquired_at format (use YYYY-MM-DD)", err)
		return
	}

	lot, err := h.Engine.RecordLot(r.Context(), inventory.GoodID(req.GoodID), quantity, unitCost, acquiredAt)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lotDTO(lot))
}

// GetLot returns a single lot.
func (h *Handler) GetLot(w http.ResponseWriter, r *http.Request) {
	id := inventory.LotID(chi.URLParam(r, "id"))

	lot, err := h.Engine.GetLot(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lotDTO(lot))
}

// EditLot applies a guarded partial update to a lot.
func (h *Handler) EditLot(w http.ResponseWriter, r *http.Request) {
	id := inventory.LotID(chi.URLParam(r, "id"))

	var req EditLotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var edit inventory.LotEdit
	if req.Quantity != nil {
		quantity, err := decimal.NewFromString(*req.Quantity)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid quantity (decimal string required)", err)
			return
		}
		edit.Quantity = &quantity
	}
	if req.UnitCost != nil {
		unitCost, err := decimal.NewFromString(*req.UnitCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_cost (decimal string required)", err)
			return
		}
		edit.UnitCost = &unitCost
	}

	lot, err := h.Engine.EditLot(r.Context(), id, edit)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lotDTO(lot))
}

// DeleteLot removes an untouched lot.
func (h *Handler) DeleteLot(w http.ResponseWriter, r *http.Request) {
	id := inventory.LotID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteLot(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns a lot's consumption entries, oldest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := inventory.LotID(chi.URLParam(r, "id"))

	entries, err := h.Engine.History(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, entry := range entries {
		dtos[i] = entryDTO(entry)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CanDelete runs the advisory delete predicate.
func (h *Handler) CanDelete(w http.ResponseWriter, r *http.Request) {
	id := inventory.LotID(chi.URLParam(r, "id"))

	allowed, reason, err := h.Engine.CanDelete(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PredicateDTO{Allowed: allowed, Reason: reason})
}

// CanEditQuantity runs the advisory quantity-edit predicate.
func (h *Handler) CanEditQuantity(w http.ResponseWriter, r *http.Request) {
	id := inventory.LotID(chi.URLParam(r, "id"))

	proposed, err := decimal.NewFromString(r.URL.Query().Get("quantity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity (decimal string required)", err)
		return
	}

	allowed, reason, err := h.Engine.CanEditQuantity(r.Context(), id, proposed)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PredicateDTO{Allowed: allowed, Reason: reason})
}

// =============================================================================
// GOOD HANDLERS
// =============================================================================

// Consume draws a quantity of a good from its lots, oldest first.
func (h *Handler) Consume(w http.ResponseWriter, r *http.Request) {
	goodID := inventory.GoodID(chi.URLParam(r, "id"))

	var req ConsumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quantity (decimal string required)", err)
		return
	}

	result, err := h.Engine.Consume(r.Context(), goodID, quantity, req.ContextReference)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultDTO(result))
}

// GetRemaining reports total availability of a good.
func (h *Handler) GetRemaining(w http.ResponseWriter, r *http.Request) {
	goodID := inventory.GoodID(chi.URLParam(r, "id"))

	remaining, err := h.Engine.Remaining(r.Context(), goodID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RemainingDTO{
		GoodID:    string(goodID),
		Remaining: remaining.String(),
	})
}

// GetSummary reports lot counts and valuation for a good.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	goodID := inventory.GoodID(chi.URLParam(r, "id"))

	summary, err := h.Engine.Summary(r.Context(), goodID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		GoodID:         string(summary.GoodID),
		LotCount:       summary.LotCount,
		OpenLotCount:   summary.OpenLotCount,
		TotalRemaining: summary.TotalRemaining.String(),
		TotalValue:     summary.TotalValue.String(),
	})
}

// ListLots returns every lot for a good, oldest first.
func (h *Handler) ListLots(w http.ResponseWriter, r *http.Request) {
	goodID := inventory.GoodID(chi.URLParam(r, "id"))

	lots, err := h.Engine.Lots(r.Context(), goodID)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := make([]LotDTO, len(lots))
	for i, lot := range lots {
		dtos[i] = lotDTO(lot)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var blocked *inventory.MutationBlockedError
	switch {
	case errors.As(err, &blocked):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:      "Mutation blocked",
			Details:    blocked.Reason,
			EntryCount: blocked.EntryCount,
		})
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Lot not found", err)
	case errors.Is(err, inventory.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/service/inventory"
)

// GetProduct — GET /api/inventory/{productID}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	product, err := h.inventory.Product(productID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", mapProduct(product))
}

// AdjustStock — PUT /api/inventory/{productID}: прямое выставление остатка.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON invalido", nil)
		return
	}

	result, err := h.inventory.Adjust(inventory.AdjustRequest{
		ProductID: productID,
		Units:     req.Units,
		Reason:    req.Reason,
		Operation: domain.MovementType(req.Operation),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "stock actualizado", mapAdjustResult(result))
}

// BatchAdjustStock — POST /api/inventory/batch-update: пакетное обновление до
// 100 позиций. Частичный отказ отвечает 207 Multi-Status.
func (h *Handler) BatchAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req batchStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON invalido", nil)
		return
	}

	requests := make([]inventory.AdjustRequest, 0, len(req.Items))
	for _, it := range req.Items {
		requests = append(requests, inventory.AdjustRequest{
			ProductID: it.ProductID,
			Units:     it.Units,
			Reason:    it.Reason,
		})
	}

	result, err := h.inventory.AdjustBatch(requests)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if len(result.Errors) > 0 {
		writeJSON(w, http.StatusMultiStatus, envelope{
			Success: len(result.Applied) > 0,
			Message: "lote aplicado parcialmente",
			Data:    mapBatchResult(result),
		})
		return
	}
	writeSuccess(w, http.StatusOK, "lote aplicado", mapBatchResult(result))
}

// GetMovements — GET /api/inventory/{productID}/movements?limit=N.
func (h *Handler) GetMovements(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit invalido", nil)
			return
		}
		limit = parsed
	}

	movements, err := h.inventory.Movements(productID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, mapMovement(m))
	}
	writeSuccess(w, http.StatusOK, "", out)
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id de producto invalido", nil)
		return 0, false
	}
	return id, true
}

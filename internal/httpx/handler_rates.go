package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetRates — GET /api/divisas/rates: курсы всех поддерживаемых валют.
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	if !h.ratesAvailable(w) {
		return
	}

	all, err := h.rates.Rates(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]rateResponse, 0, len(all))
	for _, rate := range all {
		out = append(out, mapRate(rate))
	}
	writeSuccess(w, http.StatusOK, "", out)
}

// GetRate — GET /api/divisas/rates/{currency}.
func (h *Handler) GetRate(w http.ResponseWriter, r *http.Request) {
	if !h.ratesAvailable(w) {
		return
	}

	rate, err := h.rates.Rate(r.Context(), chi.URLParam(r, "currency"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", mapRate(rate))
}

// Convert — POST /api/divisas/convert.
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	if !h.ratesAvailable(w) {
		return
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON invalido", nil)
		return
	}

	conversion, err := h.rates.Convert(r.Context(), req.Amount, req.From, req.To)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", mapConversion(conversion))
}

func (h *Handler) ratesAvailable(w http.ResponseWriter) bool {
	if h.rates == nil {
		writeError(w, http.StatusServiceUnavailable, "servicio de divisas no configurado", nil)
		return false
	}
	return true
}

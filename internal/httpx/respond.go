package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// envelope — единый формат ответа API: {success, message, data}.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: false, Message: message, Data: data})
}

// writeDomainError переводит доменную ошибку в HTTP-статус и конверт ответа.
func writeDomainError(w http.ResponseWriter, err error) {
	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeError(w, http.StatusBadRequest, stockErr.Error(), map[string]interface{}{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		return
	}
	var amountErr *domain.AmountMismatchError
	if errors.As(err, &amountErr) {
		writeError(w, http.StatusBadRequest, amountErr.Error(), map[string]interface{}{
			"declared": amountErr.Declared,
			"computed": amountErr.Computed,
		})
		return
	}

	writeError(w, statusFor(err), err.Error(), nil)
}

// statusFor сопоставляет доменные ошибки со статусами HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound),
		errors.Is(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPaymentAlreadyFinal):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTokenInFlight):
		return http.StatusTooManyRequests
	case domain.IsGatewayFailure(err),
		errors.Is(err, domain.ErrRateUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrSessionRequired),
		errors.Is(err, domain.ErrMethodRequired),
		errors.Is(err, domain.ErrBuyerEmailRequired),
		errors.Is(err, domain.ErrAmountInvalid),
		errors.Is(err, domain.ErrItemsRequired),
		errors.Is(err, domain.ErrItemQtyInvalid),
		errors.Is(err, domain.ErrItemPriceInvalid),
		errors.Is(err, domain.ErrTokenRequired),
		errors.Is(err, domain.ErrCurrencyUnsupported):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

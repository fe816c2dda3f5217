package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/service/inventory"
	"github.com/javipazolea/ferremas-backend/internal/service/payments"
	"github.com/javipazolea/ferremas-backend/internal/service/rates"
)

// Handler обслуживает REST API платежей, склада и курсов валют.
type Handler struct {
	orchestrator *payments.Orchestrator
	confirmer    *payments.Confirmer
	inventory    *inventory.Service
	rates        *rates.Service
	payments     domain.PaymentRepository
	gatewayLog   domain.GatewayLogRepository
	logger       *log.Entry
}

// NewHandler собирает обработчик. rates может быть nil, тогда эндпоинты
// курсов отвечают 503.
func NewHandler(
	orchestrator *payments.Orchestrator,
	confirmer *payments.Confirmer,
	inventorySvc *inventory.Service,
	ratesSvc *rates.Service,
	paymentRepo domain.PaymentRepository,
	gatewayLogRepo domain.GatewayLogRepository,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{
		orchestrator: orchestrator,
		confirmer:    confirmer,
		inventory:    inventorySvc,
		rates:        ratesSvc,
		payments:     paymentRepo,
		gatewayLog:   gatewayLogRepo,
		logger:       logger,
	}
}

// CreatePayment — POST /api/payments: создаёт платёж и открывает
// транзакцию в шлюзе.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "cuerpo JSON invalido", nil)
		return
	}

	payment, err := h.orchestrator.CreatePayment(r.Context(), req.toServiceRequest())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "pago creado", mapPayment(payment))
}

// GetPayment — GET /api/payments/{id}.
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id de pago invalido", nil)
		return
	}

	payment, err := h.payments.Get(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", mapPayment(payment))
}

// GetPaymentLog — GET /api/payments/{id}/log: журнал операций со шлюзом.
func (h *Handler) GetPaymentLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id de pago invalido", nil)
		return
	}

	if _, err := h.payments.Get(id); err != nil {
		writeDomainError(w, err)
		return
	}
	entries, err := h.gatewayLog.ListByPayment(id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", mapGatewayLog(entries))
}

// PaymentReturn — GET|POST /api/payments/return: возврат покупателя из
// шлюза. Штатный возврат несёт token_ws; прерванный поток шлюз помечает
// параметрами TBK_*.
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	token := gatewayParam(r, "token_ws")
	if token == "" {
		if tbkToken := gatewayParam(r, "TBK_TOKEN"); tbkToken != "" {
			h.abortPayment(w, r, tbkToken)
			return
		}
		writeError(w, http.StatusBadRequest, domain.ErrTokenRequired.Error(), nil)
		return
	}

	payment, err := h.confirmer.HandleReturn(r.Context(), token)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "retorno registrado", mapPayment(payment))
}

// PaymentError — GET|POST /api/payments/error: abort callback шлюза.
func (h *Handler) PaymentError(w http.ResponseWriter, r *http.Request) {
	h.abortPayment(w, r, gatewayParam(r, "TBK_TOKEN"))
}

func (h *Handler) abortPayment(w http.ResponseWriter, r *http.Request, token string) {
	orderRef := gatewayParam(r, "TBK_ORDEN_COMPRA")
	sessionID := gatewayParam(r, "TBK_ID_SESION")
	if token == "" && orderRef == "" {
		writeError(w, http.StatusBadRequest, "se requiere TBK_TOKEN o TBK_ORDEN_COMPRA", nil)
		return
	}

	payment, err := h.confirmer.HandleAbort(r.Context(), token, orderRef, sessionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "pago cancelado por el comprador", mapPayment(payment))
}

// VerifyPayment — POST /api/payments/verify: commit транзакции в шлюзе и
// финализация платежа. Повторный вызов по обработанному токену отвечает
// 200 с already_processed=true.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if r.Body != nil {
		// Тело опционально: токен принимается и как query-параметр.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	token := body.Token
	if token == "" {
		token = gatewayParam(r, "token_ws")
	}

	result, err := h.confirmer.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentAlreadyFinal) {
			writeJSON(w, http.StatusConflict, envelope{
				Success: false,
				Message: err.Error(),
				Data:    mapVerifyResult(result),
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	if result.Payment.State == domain.PaymentStateRejected {
		writeJSON(w, http.StatusBadRequest, envelope{
			Success: false,
			Message: "pago rechazado por el emisor",
			Data:    mapVerifyResult(result),
		})
		return
	}

	message := "pago aprobado"
	if result.AlreadyProcessed {
		message = "pago ya procesado"
	}
	writeSuccess(w, http.StatusOK, message, mapVerifyResult(result))
}

// gatewayParam ищет параметр в query и в form-данных: шлюз использует
// оба способа в зависимости от сценария возврата.
func gatewayParam(r *http.Request, name string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			return r.PostFormValue(name)
		}
	}
	return ""
}

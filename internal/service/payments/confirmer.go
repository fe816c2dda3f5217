package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/messaging/kafka"
	"github.com/javipazolea/ferremas-backend/internal/metrics"
)

// VerifyResult — итог попытки подтверждения платежа.
type VerifyResult struct {
	Payment domain.Payment
	// AlreadyProcessed выставляется при повторном verify уже одобренного
	// платежа: идемпотентный успех без второго commit и списания.
	AlreadyProcessed bool
	Movements        []domain.InventoryMovement
}

// Confirmer ведёт платёж от возврата покупателя до терминального состояния.
// Это единственная точка, которая вызывает commit шлюза и меняет остатки.
type Confirmer struct {
	payments      domain.PaymentRepository
	gatewayLog    domain.GatewayLogRepository
	gateway       domain.GatewayClient
	guard         *TokenGuard
	logger        *log.Entry
	metrics       *metrics.PaymentMetrics
	kafkaProducer *kafka.Producer
}

// NewConfirmer создаёт рабочий экземпляр обработчика подтверждений.
func NewConfirmer(
	payments domain.PaymentRepository,
	gatewayLog domain.GatewayLogRepository,
	gateway domain.GatewayClient,
	guard *TokenGuard,
	logger *log.Entry,
) *Confirmer {
	if logger == nil {
		logger = log.New().WithField("component", "confirmer")
	}
	if guard == nil {
		guard = NewTokenGuard()
	}
	return &Confirmer{
		payments:   payments,
		gatewayLog: gatewayLog,
		gateway:    gateway,
		guard:      guard,
		logger:     logger,
		metrics:    metrics.NewPaymentMetrics(),
	}
}

// NewConfirmerWithKafka создаёт Confirmer с Kafka producer.
func NewConfirmerWithKafka(
	payments domain.PaymentRepository,
	gatewayLog domain.GatewayLogRepository,
	gateway domain.GatewayClient,
	guard *TokenGuard,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *Confirmer {
	c := NewConfirmer(payments, gatewayLog, gateway, guard, logger)
	c.kafkaProducer = kafkaProducer
	return c
}

// NewConfirmerWithoutMetrics создаёт Confirmer без метрик (для тестов).
func NewConfirmerWithoutMetrics(
	payments domain.PaymentRepository,
	gatewayLog domain.GatewayLogRepository,
	gateway domain.GatewayClient,
	guard *TokenGuard,
	logger *log.Entry,
) *Confirmer {
	c := NewConfirmer(payments, gatewayLog, gateway, guard, logger)
	c.metrics = nil
	return c
}

// HandleReturn обрабатывает возврат покупателя из шлюза: pending → processing.
// Шлюз на этом шаге не вызывается.
func (c *Confirmer) HandleReturn(ctx context.Context, token string) (domain.Payment, error) {
	if token == "" {
		return domain.Payment{}, domain.ErrTokenRequired
	}

	payment, err := c.payments.GetByToken(token)
	if err != nil {
		return domain.Payment{}, err
	}

	if payment.State.CanTransition(domain.PaymentStateProcessing) {
		if err := c.payments.SetState(payment.ID, domain.PaymentStateProcessing); err != nil {
			return domain.Payment{}, fmt.Errorf("advance payment %s to processing: %w", payment.OrderRef, err)
		}
		payment.State = domain.PaymentStateProcessing
	}

	c.appendLog(payment.ID, domain.GatewayOpReturn, map[string]string{"token": token}, nil, "", "retorno del comprador", true)

	c.logger.WithFields(log.Fields{
		"order_ref": payment.OrderRef,
		"state":     string(payment.State),
	}).Info("buyer returned from gateway")

	return payment, nil
}

// HandleAbort обрабатывает abort/error callback шлюза: платёж переводится в
// cancelled независимо от текущего состояния.
func (c *Confirmer) HandleAbort(ctx context.Context, token, orderRef, sessionID string) (domain.Payment, error) {
	payment, err := c.lookupForAbort(token, orderRef)
	if err != nil {
		return domain.Payment{}, err
	}

	if !payment.State.Terminal() {
		if err := c.payments.SetState(payment.ID, domain.PaymentStateCancelled); err != nil {
			return domain.Payment{}, fmt.Errorf("cancel payment %s: %w", payment.OrderRef, err)
		}
		payment.State = domain.PaymentStateCancelled
		if c.metrics != nil {
			c.metrics.RecordPaymentFinalized(domain.PaymentStateCancelled)
		}
		c.publishPaymentEvent(kafka.EventTypePaymentCancelled, payment, nil)
	}

	c.appendLog(payment.ID, domain.GatewayOpError, map[string]string{
		"token":      token,
		"order_ref":  orderRef,
		"session_id": sessionID,
	}, nil, "", "pago abortado por el comprador", false)

	c.logger.WithFields(log.Fields{
		"order_ref": payment.OrderRef,
	}).Info("payment aborted at gateway")

	return payment, nil
}

func (c *Confirmer) lookupForAbort(token, orderRef string) (domain.Payment, error) {
	if token != "" {
		payment, err := c.payments.GetByToken(token)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, domain.ErrPaymentNotFound) {
			return domain.Payment{}, err
		}
	}
	if orderRef != "" {
		return c.payments.GetByOrderRef(orderRef)
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// Verify подтверждает транзакцию по токену: единственный вызов commit и
// единственная точка списания остатков. Исход шлюза авторитетен: сбои
// персистентности после ответа шлюза логируются, но не меняют результат.
func (c *Confirmer) Verify(ctx context.Context, token string) (VerifyResult, error) {
	if token == "" {
		return VerifyResult{}, domain.ErrTokenRequired
	}

	if err := c.guard.Acquire(token); err != nil {
		return VerifyResult{}, err
	}
	defer c.guard.Release(token)

	start := time.Now()
	if c.metrics != nil {
		c.metrics.VerifyInFlightStarted()
	}
	defer func() {
		if c.metrics != nil {
			c.metrics.VerifyInFlightFinished()
			c.metrics.RecordVerifyDuration(time.Since(start))
		}
	}()

	payment, err := c.payments.GetByToken(token)
	if err != nil {
		return VerifyResult{}, err
	}

	// Идемпотентный повтор: одобренный платёж возвращается как есть,
	// без второго commit и без второго списания.
	if payment.State == domain.PaymentStateApproved {
		if c.metrics != nil {
			c.metrics.RecordDuplicateVerify()
		}
		return VerifyResult{Payment: payment, AlreadyProcessed: true}, nil
	}
	if payment.State.Terminal() {
		return VerifyResult{Payment: payment}, domain.ErrPaymentAlreadyFinal
	}

	resp, commitErr := c.gateway.Commit(ctx, token)
	if commitErr != nil {
		return c.handleCommitFailure(payment, token, commitErr)
	}

	if resp.Authorized() {
		return c.handleAuthorized(payment, resp)
	}
	return c.handleRejected(payment, resp)
}

func (c *Confirmer) handleAuthorized(payment domain.Payment, resp domain.GatewayCommitResponse) (VerifyResult, error) {
	result := domain.GatewayResult{
		TransactionDate:   resp.TransactionDate,
		AuthorizationCode: resp.AuthorizationCode,
		PaymentTypeCode:   resp.PaymentTypeCode,
		ResponseCode:      resp.ResponseCode,
		Installments:      resp.Installments,
	}

	reason := fmt.Sprintf("Venta WebPay - Orden %s - Auth: %s", payment.OrderRef, resp.AuthorizationCode)
	movements, err := c.payments.Approve(payment.ID, result, reason)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentAlreadyFinal) {
			// Конкурентный verify успел первым: возвращаем его результат.
			if c.metrics != nil {
				c.metrics.RecordDuplicateVerify()
			}
			current, getErr := c.payments.Get(payment.ID)
			if getErr != nil {
				current = payment
			}
			c.appendLog(payment.ID, domain.GatewayOpVerify, nil, resp, strconv.Itoa(resp.ResponseCode), "ya procesado", true)
			return VerifyResult{Payment: current, AlreadyProcessed: true}, nil
		}

		// Ответ шлюза авторитетен: платёж одобрен, потерю записи фиксируем
		// в журнале и отдаём результат как есть.
		c.logger.WithError(err).WithField("order_ref", payment.OrderRef).Error("failed to persist approved payment")
		c.appendLog(payment.ID, domain.GatewayOpVerify, nil, resp, strconv.Itoa(resp.ResponseCode), "aprobado, persistencia fallida: "+err.Error(), true)
		payment.State = domain.PaymentStateApproved
		payment.Result = &result
		return VerifyResult{Payment: payment}, nil
	}

	payment.State = domain.PaymentStateApproved
	payment.Result = &result

	if c.metrics != nil {
		c.metrics.RecordPaymentFinalized(domain.PaymentStateApproved)
		for _, m := range movements {
			c.metrics.RecordInventoryMovement(m.Operation)
		}
	}

	c.appendLog(payment.ID, domain.GatewayOpVerify, nil, resp, strconv.Itoa(resp.ResponseCode), "pago aprobado", true)
	c.publishPaymentEvent(kafka.EventTypePaymentApproved, payment, map[string]interface{}{
		"authorization_code": resp.AuthorizationCode,
	})
	for _, m := range movements {
		c.publishInventoryEvent(m)
	}

	c.logger.WithFields(log.Fields{
		"order_ref":          payment.OrderRef,
		"authorization_code": resp.AuthorizationCode,
		"movements":          len(movements),
	}).Info("payment approved, stock decremented")

	return VerifyResult{Payment: payment, Movements: movements}, nil
}

func (c *Confirmer) handleRejected(payment domain.Payment, resp domain.GatewayCommitResponse) (VerifyResult, error) {
	result := domain.GatewayResult{
		TransactionDate:   resp.TransactionDate,
		AuthorizationCode: resp.AuthorizationCode,
		PaymentTypeCode:   resp.PaymentTypeCode,
		ResponseCode:      resp.ResponseCode,
		Installments:      resp.Installments,
	}

	payment = c.finalize(payment, domain.PaymentStateRejected, &result)
	c.appendLog(payment.ID, domain.GatewayOpVerify, nil, resp, strconv.Itoa(resp.ResponseCode), "pago rechazado", false)
	c.publishPaymentEvent(kafka.EventTypePaymentRejected, payment, map[string]interface{}{
		"response_code": resp.ResponseCode,
	})

	c.logger.WithFields(log.Fields{
		"order_ref":     payment.OrderRef,
		"response_code": resp.ResponseCode,
	}).Info("payment rejected by gateway")

	return VerifyResult{Payment: payment}, nil
}

// handleCommitFailure классифицирует отказ commit в терминальное состояние.
// Классификация выполнена адаптером шлюза; здесь только выбор состояния.
func (c *Confirmer) handleCommitFailure(payment domain.Payment, token string, commitErr error) (VerifyResult, error) {
	var (
		state domain.PaymentState
		kind  string
		event kafka.EventType
	)
	switch {
	case errors.Is(commitErr, domain.ErrGatewayAborted), errors.Is(commitErr, domain.ErrGatewayInvalidState):
		state, kind, event = domain.PaymentStateCancelled, "aborted", kafka.EventTypePaymentCancelled
	case errors.Is(commitErr, domain.ErrGatewayTimeout):
		state, kind, event = domain.PaymentStateExpired, "timeout", kafka.EventTypePaymentExpired
	default:
		state, kind, event = domain.PaymentStateError, "unknown", kafka.EventTypePaymentFailed
	}

	if c.metrics != nil {
		c.metrics.RecordGatewayError(kind)
	}

	payment = c.finalize(payment, state, nil)
	c.appendLog(payment.ID, domain.GatewayOpVerify, map[string]string{"token": token}, nil, "", commitErr.Error(), false)
	c.publishPaymentEvent(event, payment, map[string]interface{}{"error": commitErr.Error()})

	c.logger.WithError(commitErr).WithFields(log.Fields{
		"order_ref": payment.OrderRef,
		"state":     string(state),
	}).Warn("gateway commit failed")

	return VerifyResult{Payment: payment}, commitErr
}

// finalize применяет терминальное состояние best-effort: отказ записи не
// отменяет уже полученный ответ шлюза.
func (c *Confirmer) finalize(payment domain.Payment, state domain.PaymentState, result *domain.GatewayResult) domain.Payment {
	if err := c.payments.Finalize(payment.ID, state, result); err != nil {
		if !errors.Is(err, domain.ErrPaymentAlreadyFinal) {
			c.logger.WithError(err).WithFields(log.Fields{
				"order_ref": payment.OrderRef,
				"state":     string(state),
			}).Error("failed to persist terminal state")
		}
	} else if c.metrics != nil && state != domain.PaymentStateApproved {
		c.metrics.RecordPaymentFinalized(state)
	}

	payment.State = state
	if result != nil {
		payment.Result = result
	}
	return payment
}

func (c *Confirmer) appendLog(paymentID int64, op domain.GatewayOperation, request, response any, code, message string, success bool) {
	entry := domain.GatewayLogEntry{
		PaymentID:    paymentID,
		Operation:    op,
		RequestData:  marshalLogPayload(request),
		ResponseData: marshalLogPayload(response),
		ResponseCode: code,
		Message:      message,
		Success:      success,
	}
	if err := c.gatewayLog.Append(entry); err != nil {
		c.logger.WithError(err).WithField("payment_id", paymentID).Warn("failed to append gateway log")
	}
}

func (c *Confirmer) publishPaymentEvent(eventType kafka.EventType, payment domain.Payment, metadata map[string]interface{}) {
	if c.kafkaProducer == nil {
		return
	}
	event := kafka.NewPaymentEvent(eventType, payment.ID, payment.OrderRef, string(payment.State), payment.Amount, metadata)
	if err := c.kafkaProducer.PublishEvent(kafka.TopicPaymentEvents, payment.OrderRef, event); err != nil {
		c.logger.WithError(err).WithField("order_ref", payment.OrderRef).Warn("failed to publish payment event")
	}
}

func (c *Confirmer) publishInventoryEvent(m domain.InventoryMovement) {
	if c.kafkaProducer == nil {
		return
	}
	event := kafka.NewInventoryEvent(kafka.EventTypeInventoryAdjusted, m.ProductID, m.StockBefore, m.StockAfter, string(m.Operation), m.Reason)
	if err := c.kafkaProducer.PublishEvent(kafka.TopicInventoryEvents, strconv.FormatInt(m.ProductID, 10), event); err != nil {
		c.logger.WithError(err).WithField("product_id", m.ProductID).Warn("failed to publish inventory event")
	}
}

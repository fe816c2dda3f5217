package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/messaging/kafka"
	"github.com/javipazolea/ferremas-backend/internal/metrics"
)

// DefaultReturnURL используется, когда клиент не передал собственный return URL.
const DefaultReturnURL = "http://localhost:3000/payment/return"

// CreateItem — одна позиция запроса на создание платежа.
type CreateItem struct {
	ProductID int64
	Quantity  int
}

// CreateRequest — входные данные операции создания платежа.
type CreateRequest struct {
	SessionID   string
	CustomerID  int64
	Amount      float64
	Currency    string
	Method      string
	BuyerEmail  string
	BuyerPhone  string
	Description string
	ReturnURL   string
	Items       []CreateItem
}

// Orchestrator создаёт платежи: валидация, пересчёт суммы по живым ценам
// каталога, открытие транзакции в шлюзе.
type Orchestrator struct {
	payments      domain.PaymentRepository
	products      domain.ProductRepository
	gatewayLog    domain.GatewayLogRepository
	gateway       domain.GatewayClient
	logger        *log.Entry
	metrics       *metrics.PaymentMetrics
	kafkaProducer *kafka.Producer // опциональный producer для событий жизненного цикла
	returnURL     string
}

// NewOrchestrator создаёт рабочий экземпляр оркестратора.
func NewOrchestrator(
	payments domain.PaymentRepository,
	products domain.ProductRepository,
	gatewayLog domain.GatewayLogRepository,
	gateway domain.GatewayClient,
	logger *log.Entry,
) *Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "payments")
	}
	return &Orchestrator{
		payments:   payments,
		products:   products,
		gatewayLog: gatewayLog,
		gateway:    gateway,
		logger:     logger,
		metrics:    metrics.NewPaymentMetrics(),
		returnURL:  DefaultReturnURL,
	}
}

// SetReturnURL задаёт базовый return URL по умолчанию. Пустое значение
// игнорируется. Per-request URL из CreateRequest имеет приоритет.
func (o *Orchestrator) SetReturnURL(u string) {
	if u != "" {
		o.returnURL = u
	}
}

// NewOrchestratorWithKafka создаёт оркестратор с Kafka producer.
func NewOrchestratorWithKafka(
	payments domain.PaymentRepository,
	products domain.ProductRepository,
	gatewayLog domain.GatewayLogRepository,
	gateway domain.GatewayClient,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *Orchestrator {
	o := NewOrchestrator(payments, products, gatewayLog, gateway, logger)
	o.kafkaProducer = kafkaProducer
	return o
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(
	payments domain.PaymentRepository,
	products domain.ProductRepository,
	gatewayLog domain.GatewayLogRepository,
	gateway domain.GatewayClient,
	logger *log.Entry,
) *Orchestrator {
	o := NewOrchestrator(payments, products, gatewayLog, gateway, logger)
	o.metrics = nil
	return o
}

// CreatePayment выполняет полный цикл создания платежа. Сумма пересчитывается
// по ценам каталога, заявленное клиентом значение служит только для сверки.
func (o *Orchestrator) CreatePayment(ctx context.Context, req CreateRequest) (domain.Payment, error) {
	start := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	if err := validateCreateRequest(req); err != nil {
		return domain.Payment{}, err
	}

	items, computed, err := o.buildItems(req.Items)
	if err != nil {
		return domain.Payment{}, err
	}

	if math.Abs(req.Amount-computed) > domain.AmountTolerance {
		return domain.Payment{}, &domain.AmountMismatchError{Declared: req.Amount, Computed: computed}
	}

	currency := req.Currency
	if currency == "" {
		currency = domain.BaseCurrency
	}

	payment := domain.Payment{
		OrderRef:    domain.NewOrderRef(),
		CustomerID:  req.CustomerID,
		SessionID:   req.SessionID,
		Amount:      computed,
		Currency:    currency,
		Method:      req.Method,
		BuyerEmail:  req.BuyerEmail,
		BuyerPhone:  req.BuyerPhone,
		Description: req.Description,
		State:       domain.PaymentStatePending,
		Items:       items,
	}

	payment, err = o.payments.Create(payment)
	if err != nil {
		return domain.Payment{}, fmt.Errorf("persist payment: %w", err)
	}

	if o.metrics != nil {
		o.metrics.RecordPaymentCreated()
	}
	o.publishPaymentEvent(kafka.EventTypePaymentCreated, payment, nil)

	if payment.Method != "webpay" {
		o.logger.WithFields(log.Fields{
			"order_ref": payment.OrderRef,
			"method":    payment.Method,
		}).Info("payment created without gateway transaction")
		return payment, nil
	}

	return o.openGatewayTransaction(ctx, payment, req.ReturnURL)
}

func (o *Orchestrator) openGatewayTransaction(ctx context.Context, payment domain.Payment, returnURL string) (domain.Payment, error) {
	base := returnURL
	if base == "" {
		base = o.returnURL
	}

	gatewayReq := domain.GatewayCreateRequest{
		BuyOrder:  payment.OrderRef,
		SessionID: payment.SessionID,
		Amount:    int(math.Round(payment.Amount)),
		ReturnURL: fmt.Sprintf("%s?order=%s", base, payment.OrderRef),
	}

	resp, err := o.gateway.Create(ctx, gatewayReq)
	if err != nil {
		o.logger.WithError(err).WithField("order_ref", payment.OrderRef).Error("failed to create gateway transaction")
		o.appendLog(payment.ID, domain.GatewayOpCreate, gatewayReq, nil, "", err.Error(), false)
		if o.metrics != nil {
			o.metrics.RecordGatewayError("create")
		}

		// Платёж остаётся в базе в состоянии error для последующего аудита.
		if stateErr := o.payments.SetState(payment.ID, domain.PaymentStateError); stateErr != nil {
			o.logger.WithError(stateErr).WithField("order_ref", payment.OrderRef).Error("failed to move payment to error state")
		}
		payment.State = domain.PaymentStateError
		o.publishPaymentEvent(kafka.EventTypePaymentFailed, payment, map[string]interface{}{"error": err.Error()})

		return domain.Payment{}, fmt.Errorf("create gateway transaction for %s: %w", payment.OrderRef, err)
	}

	if err := o.payments.AttachGateway(payment.ID, resp.Token, resp.URL); err != nil {
		return domain.Payment{}, fmt.Errorf("attach gateway token for %s: %w", payment.OrderRef, err)
	}
	payment.Token = resp.Token
	payment.RedirectURL = resp.URL

	o.appendLog(payment.ID, domain.GatewayOpCreate, gatewayReq, resp, "", "transaccion creada", true)

	o.logger.WithFields(log.Fields{
		"order_ref": payment.OrderRef,
		"amount":    payment.Amount,
	}).Info("payment created, gateway transaction opened")

	return payment, nil
}

func validateCreateRequest(req CreateRequest) error {
	if req.SessionID == "" {
		return domain.ErrSessionRequired
	}
	if req.Method == "" {
		return domain.ErrMethodRequired
	}
	if req.BuyerEmail == "" {
		return domain.ErrBuyerEmailRequired
	}
	if len(req.Items) == 0 {
		return domain.ErrItemsRequired
	}
	if req.Amount <= 0 {
		return domain.ErrAmountInvalid
	}
	return nil
}

// buildItems превращает запрошенные позиции в снапшот с живыми ценами каталога
// и проверяет наличие и остатки.
func (o *Orchestrator) buildItems(reqItems []CreateItem) ([]domain.PaymentItem, float64, error) {
	items := make([]domain.PaymentItem, 0, len(reqItems))
	var total float64

	for _, ri := range reqItems {
		if ri.Quantity <= 0 {
			return nil, 0, domain.ErrItemQtyInvalid
		}

		product, err := o.products.GetActive(ri.ProductID)
		if err != nil {
			return nil, 0, err
		}
		if ri.Quantity > product.Units {
			return nil, 0, &domain.InsufficientStockError{
				ProductID: product.ID,
				Requested: ri.Quantity,
				Available: product.Units,
			}
		}

		subtotal := float64(ri.Quantity) * product.Price
		items = append(items, domain.PaymentItem{
			ProductID: product.ID,
			Quantity:  ri.Quantity,
			UnitPrice: product.Price,
			Subtotal:  subtotal,
		})
		total += subtotal
	}

	return items, total, nil
}

func (o *Orchestrator) appendLog(paymentID int64, op domain.GatewayOperation, request, response any, code, message string, success bool) {
	entry := domain.GatewayLogEntry{
		PaymentID:    paymentID,
		Operation:    op,
		RequestData:  marshalLogPayload(request),
		ResponseData: marshalLogPayload(response),
		ResponseCode: code,
		Message:      message,
		Success:      success,
	}
	if err := o.gatewayLog.Append(entry); err != nil {
		o.logger.WithError(err).WithField("payment_id", paymentID).Warn("failed to append gateway log")
	}
}

func (o *Orchestrator) publishPaymentEvent(eventType kafka.EventType, payment domain.Payment, metadata map[string]interface{}) {
	if o.kafkaProducer == nil {
		return
	}
	event := kafka.NewPaymentEvent(eventType, payment.ID, payment.OrderRef, string(payment.State), payment.Amount, metadata)
	if err := o.kafkaProducer.PublishEvent(kafka.TopicPaymentEvents, payment.OrderRef, event); err != nil {
		o.logger.WithError(err).WithField("order_ref", payment.OrderRef).Warn("failed to publish payment event")
	}
}

func marshalLogPayload(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

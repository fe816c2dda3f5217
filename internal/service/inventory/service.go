package inventory

import (
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/messaging/kafka"
	"github.com/javipazolea/ferremas-backend/internal/metrics"
)

// MaxBatchSize — максимальное количество позиций в пакетном обновлении.
const MaxBatchSize = 100

// AdjustRequest — прямая корректировка остатка одного товара.
type AdjustRequest struct {
	ProductID int64
	Units     int
	Reason    string
	Operation domain.MovementType
}

// AdjustResult — итог корректировки с продуктом и записанным движением.
type AdjustResult struct {
	Product  domain.Product
	Movement domain.InventoryMovement
	// Delta — разница между новым и прежним остатком.
	Delta int
}

// BatchItemError описывает отказ одной позиции пакета.
type BatchItemError struct {
	ProductID int64
	Message   string
}

// BatchResult — итог пакетного обновления: применённые позиции и отказы.
// Пакет не атомарен: каждая позиция применяется независимо.
type BatchResult struct {
	Applied []AdjustResult
	Errors  []BatchItemError
}

// Service применяет ручные и пакетные корректировки остатков вне пути
// подтверждения платежа и ведёт журнал движений.
type Service struct {
	products      domain.ProductRepository
	movements     domain.MovementRepository
	logger        *log.Entry
	metrics       *metrics.PaymentMetrics
	kafkaProducer *kafka.Producer
}

// NewService создаёт рабочий экземпляр сервиса склада.
func NewService(
	products domain.ProductRepository,
	movements domain.MovementRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "inventory")
	}
	return &Service{
		products:  products,
		movements: movements,
		logger:    logger,
		metrics:   metrics.NewPaymentMetrics(),
	}
}

// NewServiceWithKafka создаёт сервис с Kafka producer.
func NewServiceWithKafka(
	products domain.ProductRepository,
	movements domain.MovementRepository,
	kafkaProducer *kafka.Producer,
	logger *log.Entry,
) *Service {
	s := NewService(products, movements, logger)
	s.kafkaProducer = kafkaProducer
	return s
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	products domain.ProductRepository,
	movements domain.MovementRepository,
	logger *log.Entry,
) *Service {
	s := NewService(products, movements, logger)
	s.metrics = nil
	return s
}

// Adjust устанавливает остаток товара напрямую и пишет движение в журнал.
func (s *Service) Adjust(req AdjustRequest) (AdjustResult, error) {
	if req.Units < 0 {
		return AdjustResult{}, domain.ErrItemQtyInvalid
	}

	current, err := s.products.Get(req.ProductID)
	if err != nil {
		return AdjustResult{}, err
	}

	updated, err := s.products.SetStock(req.ProductID, req.Units)
	if err != nil {
		return AdjustResult{}, fmt.Errorf("set stock for product %d: %w", req.ProductID, err)
	}

	operation := req.Operation
	if operation == "" {
		operation = domain.MovementManualAdjustment
	}
	reason := req.Reason
	if reason == "" {
		reason = "Actualizacion manual"
	}

	movement, err := s.movements.Append(domain.InventoryMovement{
		ProductID:   req.ProductID,
		StockBefore: current.Units,
		StockAfter:  req.Units,
		Operation:   operation,
		Reason:      reason,
	})
	if err != nil {
		// Остаток уже обновлён; потерю записи журнала фиксируем в логе.
		s.logger.WithError(err).WithField("product_id", req.ProductID).Warn("failed to record inventory movement")
	}

	if s.metrics != nil {
		s.metrics.RecordInventoryMovement(operation)
	}
	s.publishInventoryEvent(movement, updated)

	s.logger.WithFields(log.Fields{
		"product_id":   req.ProductID,
		"stock_before": current.Units,
		"stock_after":  req.Units,
	}).Info("stock adjusted")

	return AdjustResult{
		Product:  updated,
		Movement: movement,
		Delta:    req.Units - current.Units,
	}, nil
}

// AdjustBatch применяет до MaxBatchSize корректировок. Позиции независимы:
// отказ одной не откатывает остальные.
func (s *Service) AdjustBatch(requests []AdjustRequest) (BatchResult, error) {
	if len(requests) == 0 {
		return BatchResult{}, domain.ErrItemsRequired
	}
	if len(requests) > MaxBatchSize {
		return BatchResult{}, fmt.Errorf("batch size %d exceeds limit of %d", len(requests), MaxBatchSize)
	}

	result := BatchResult{
		Applied: make([]AdjustResult, 0, len(requests)),
		Errors:  make([]BatchItemError, 0),
	}

	for _, req := range requests {
		if req.Operation == "" {
			req.Operation = domain.MovementBatchUpdate
		}
		applied, err := s.Adjust(req)
		if err != nil {
			result.Errors = append(result.Errors, BatchItemError{
				ProductID: req.ProductID,
				Message:   err.Error(),
			})
			continue
		}
		result.Applied = append(result.Applied, applied)
	}

	s.logger.WithFields(log.Fields{
		"applied": len(result.Applied),
		"errors":  len(result.Errors),
	}).Info("batch stock update finished")

	return result, nil
}

// Movements возвращает журнал движений товара, новые записи первыми.
func (s *Service) Movements(productID int64, limit int) ([]domain.InventoryMovement, error) {
	if _, err := s.products.Get(productID); err != nil {
		return nil, err
	}
	return s.movements.ListByProduct(productID, limit)
}

// Product возвращает товар для карточки остатка.
func (s *Service) Product(productID int64) (domain.Product, error) {
	return s.products.Get(productID)
}

func (s *Service) publishInventoryEvent(m domain.InventoryMovement, product domain.Product) {
	if s.kafkaProducer == nil {
		return
	}

	event := kafka.NewInventoryEvent(kafka.EventTypeInventoryAdjusted, m.ProductID, m.StockBefore, m.StockAfter, string(m.Operation), m.Reason)
	if err := s.kafkaProducer.PublishEvent(kafka.TopicInventoryEvents, strconv.FormatInt(m.ProductID, 10), event); err != nil {
		s.logger.WithError(err).WithField("product_id", m.ProductID).Warn("failed to publish inventory event")
	}

	if product.LowStock() {
		low := kafka.NewInventoryEvent(kafka.EventTypeInventoryLowStock, product.ID, m.StockBefore, product.Units, string(m.Operation), "low stock threshold reached")
		if err := s.kafkaProducer.PublishEvent(kafka.TopicInventoryEvents, strconv.FormatInt(product.ID, 10), low); err != nil {
			s.logger.WithError(err).WithField("product_id", product.ID).Warn("failed to publish low stock event")
		}
	}
}

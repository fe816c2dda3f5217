package kafka

import (
	"time"

	"github.com/google/uuid"
)

// EventType определяет тип события
type EventType string

const (
	// Payment события
	EventTypePaymentCreated   EventType = "payment.created"
	EventTypePaymentApproved  EventType = "payment.approved"
	EventTypePaymentRejected  EventType = "payment.rejected"
	EventTypePaymentCancelled EventType = "payment.cancelled"
	EventTypePaymentExpired   EventType = "payment.expired"
	EventTypePaymentFailed    EventType = "payment.failed"

	// Inventory события
	EventTypeInventoryAdjusted EventType = "inventory.adjusted"
	EventTypeInventoryLowStock EventType = "inventory.low_stock"
)

// Topics для Kafka
const (
	TopicPaymentEvents   = "ferremas.payment.events"
	TopicInventoryEvents = "ferremas.inventory.events"
	TopicDeadLetterQueue = "ferremas.events.dlq"
)

// DeadLetterPayload оборачивает событие, которое не удалось доставить
// в основной топик. Оригинальное сообщение сохраняется как есть,
// чтобы его можно было переотправить без потерь.
type DeadLetterPayload struct {
	OriginalTopic string    `json:"original_topic"`
	OriginalKey   string    `json:"original_key"`
	OriginalValue string    `json:"original_value"`
	Error         string    `json:"error"`
	FailedAt      time.Time `json:"failed_at"`
}

// PaymentEvent представляет событие жизненного цикла платежа
type PaymentEvent struct {
	EventID   string                 `json:"event_id"`
	EventType EventType              `json:"event_type"`
	OrderRef  string                 `json:"order_ref"`
	PaymentID int64                  `json:"payment_id"`
	State     string                 `json:"state"`
	Amount    float64                `json:"amount"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// InventoryEvent представляет событие изменения остатка
type InventoryEvent struct {
	EventID     string    `json:"event_id"`
	EventType   EventType `json:"event_type"`
	ProductID   int64     `json:"product_id"`
	StockBefore int       `json:"stock_before"`
	StockAfter  int       `json:"stock_after"`
	Operation   string    `json:"operation"`
	Reason      string    `json:"reason,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewPaymentEvent создает новое событие платежа
func NewPaymentEvent(eventType EventType, paymentID int64, orderRef, state string, amount float64, metadata map[string]interface{}) *PaymentEvent {
	return &PaymentEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		OrderRef:  orderRef,
		PaymentID: paymentID,
		State:     state,
		Amount:    amount,
		Timestamp: time.Now(),
		Metadata:  metadata,
	}
}

// NewInventoryEvent создает новое событие склада
func NewInventoryEvent(eventType EventType, productID int64, before, after int, operation, reason string) *InventoryEvent {
	return &InventoryEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		ProductID:   productID,
		StockBefore: before,
		StockAfter:  after,
		Operation:   operation,
		Reason:      reason,
		Timestamp:   time.Now(),
	}
}

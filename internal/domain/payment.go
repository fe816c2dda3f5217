package domain

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// PaymentState описывает жизненный цикл платежа.
type PaymentState string

const (
	// PaymentStatePending — платёж создан, транзакция в шлюзе открыта, подтверждения ещё нет.
	PaymentStatePending PaymentState = "pending"
	// PaymentStateProcessing — покупатель вернулся из шлюза, ожидаем commit.
	PaymentStateProcessing PaymentState = "processing"
	// PaymentStateApproved — шлюз подтвердил оплату; терминальное состояние.
	PaymentStateApproved PaymentState = "approved"
	// PaymentStateRejected — шлюз отклонил транзакцию; терминальное состояние.
	PaymentStateRejected PaymentState = "rejected"
	// PaymentStateCancelled — покупатель прервал оплату на стороне шлюза.
	PaymentStateCancelled PaymentState = "cancelled"
	// PaymentStateExpired — commit не уложился в таймаут шлюза.
	PaymentStateExpired PaymentState = "expired"
	// PaymentStateError — создание или подтверждение завершилось неожиданной ошибкой.
	PaymentStateError PaymentState = "error"
)

// AmountTolerance — допустимое расхождение между заявленной суммой и суммой позиций.
const AmountTolerance = 0.01

// Valid проверяет, что состояние относится к поддерживаемым значениям.
func (s PaymentState) Valid() bool {
	switch s {
	case PaymentStatePending, PaymentStateProcessing, PaymentStateApproved,
		PaymentStateRejected, PaymentStateCancelled, PaymentStateExpired, PaymentStateError:
		return true
	default:
		return false
	}
}

// Terminal сообщает, является ли состояние конечным.
func (s PaymentState) Terminal() bool {
	switch s {
	case PaymentStateApproved, PaymentStateRejected, PaymentStateCancelled,
		PaymentStateExpired, PaymentStateError:
		return true
	default:
		return false
	}
}

// CanTransition проверяет допустимость перехода между состояниями.
// Из pending достижимы processing, cancelled и error; из processing — только
// терминальные состояния. Возврата в pending не существует.
func (s PaymentState) CanTransition(to PaymentState) bool {
	switch s {
	case PaymentStatePending:
		switch to {
		case PaymentStateProcessing, PaymentStateCancelled, PaymentStateError:
			return true
		}
	case PaymentStateProcessing:
		return to.Terminal()
	}
	return false
}

// PaymentItem представляет одну позицию платежа. Цена фиксируется в момент
// создания и дальше не перечитывается из каталога.
type PaymentItem struct {
	ID        int64
	PaymentID int64
	ProductID int64
	Quantity  int
	UnitPrice float64
	Subtotal  float64
}

// GatewayResult хранит поля ответа шлюза после commit.
type GatewayResult struct {
	TransactionDate   time.Time
	AuthorizationCode string
	PaymentTypeCode   string
	ResponseCode      int
	Installments      int
}

// Payment агрегирует состояние платежа и его позиции.
type Payment struct {
	ID          int64
	OrderRef    string
	CustomerID  int64 // 0, если покупатель не зарегистрирован.
	SessionID   string
	Amount      float64
	Currency    string
	Method      string
	BuyerEmail  string
	BuyerPhone  string
	Description string
	Token       string
	RedirectURL string
	State       PaymentState
	Result      *GatewayResult
	Items       []PaymentItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты платежа и возвращает список замечаний.
func (p *Payment) ValidateInvariants() []error {
	var errs []error

	if p.SessionID == "" {
		errs = append(errs, ErrSessionRequired)
	}
	if p.Method == "" {
		errs = append(errs, ErrMethodRequired)
	}
	if p.BuyerEmail == "" {
		errs = append(errs, ErrBuyerEmailRequired)
	}
	if p.Amount <= 0 {
		errs = append(errs, ErrAmountInvalid)
	}
	if len(p.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}

	// Сверяем сумму платежа с суммой позиций: qty * unit price.
	var calc float64
	for _, item := range p.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += float64(item.Quantity) * item.UnitPrice
	}
	if len(p.Items) > 0 && math.Abs(p.Amount-calc) > AmountTolerance {
		errs = append(errs, &AmountMismatchError{Declared: p.Amount, Computed: calc})
	}

	return errs
}

// NewOrderRef генерирует уникальную, пригодную для трассировки ссылку заказа.
func NewOrderRef() string {
	return fmt.Sprintf("ORD-%d-%d", time.Now().UnixMilli(), rand.Intn(1000))
}

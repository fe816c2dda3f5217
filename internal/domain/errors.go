package domain

import (
	"errors"
	"fmt"
)

var (
	// Ошибка отсутствующего идентификатора сессии корзины.
	ErrSessionRequired = errors.New("session_id is required")
	// Ошибка отсутствующего способа оплаты.
	ErrMethodRequired = errors.New("payment method is required")
	// Ошибка отсутствующего email покупателя.
	ErrBuyerEmailRequired = errors.New("buyer email is required")
	// Ошибка неположительной суммы платежа.
	ErrAmountInvalid = errors.New("amount must be greater than zero")
	// Ошибка отсутствия хотя бы одной позиции в платеже.
	ErrItemsRequired = errors.New("payment must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be greater than zero")
	// Ошибка, если снапшот цены позиции отрицательный.
	ErrItemPriceInvalid = errors.New("item unit price must be non-negative")
	// ErrPaymentNotFound возвращается, если платёж не найден в репозитории.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrProductNotFound возвращается при отсутствующем или неактивном товаре.
	ErrProductNotFound = errors.New("product not found or inactive")
	// ErrTokenRequired — запрос подтверждения пришёл без токена шлюза.
	ErrTokenRequired = errors.New("gateway token is required")
	// ErrTokenInFlight — тот же токен уже обрабатывается другим запросом.
	ErrTokenInFlight = errors.New("token is already being processed")
	// ErrPaymentAlreadyFinal — условный claim не прошёл: платёж уже в терминальном состоянии.
	ErrPaymentAlreadyFinal = errors.New("payment is already in a terminal state")

	// ErrGatewayAborted — покупатель прервал транзакцию на странице шлюза.
	ErrGatewayAborted = errors.New("gateway transaction aborted by user")
	// ErrGatewayInvalidState — шлюз сообщил о транзакции в завершённом состоянии.
	ErrGatewayInvalidState = errors.New("gateway transaction is in invalid finished state")
	// ErrGatewayTimeout — обращение к шлюзу не уложилось в таймаут.
	ErrGatewayTimeout = errors.New("gateway request timed out")
	// ErrGatewayUnavailable — транспортная или неожиданная ошибка шлюза.
	ErrGatewayUnavailable = errors.New("gateway request failed")

	// ErrCurrencyUnsupported — валюта не входит в список поддерживаемых серий.
	ErrCurrencyUnsupported = errors.New("currency is not supported")
	// ErrRateUnavailable — внешний источник курсов не ответил и кэш пуст.
	ErrRateUnavailable = errors.New("exchange rate is unavailable")
)

// InsufficientStockError сообщает о нехватке остатка и несёт доступное количество.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// AmountMismatchError несёт обе суммы для диагностики подмены цены на клиенте.
type AmountMismatchError struct {
	Declared float64
	Computed float64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("declared amount %.2f does not match computed total %.2f",
		e.Declared, e.Computed)
}

// IsGatewayFailure проверяет, относится ли ошибка к контракту платёжного шлюза.
func IsGatewayFailure(err error) bool {
	return errors.Is(err, ErrGatewayAborted) ||
		errors.Is(err, ErrGatewayInvalidState) ||
		errors.Is(err, ErrGatewayTimeout) ||
		errors.Is(err, ErrGatewayUnavailable)
}

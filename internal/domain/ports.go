package domain

import (
	"context"
	"time"
)

// GatewayCreateRequest — параметры открытия транзакции в шлюзе.
// Сумма передаётся целым числом: шлюз не принимает дробные значения.
type GatewayCreateRequest struct {
	BuyOrder  string
	SessionID string
	Amount    int
	ReturnURL string
}

// GatewayCreateResponse — токен и адрес hosted-страницы оплаты.
type GatewayCreateResponse struct {
	Token string
	URL   string
}

// GatewayCommitResponse — результат подтверждения транзакции.
type GatewayCommitResponse struct {
	Status            string
	ResponseCode      int
	AuthorizationCode string
	TransactionDate   time.Time
	PaymentTypeCode   string
	Installments      int
}

// Authorized сообщает, была ли транзакция одобрена шлюзом.
func (r GatewayCommitResponse) Authorized() bool {
	return r.ResponseCode == 0 && r.Status == "AUTHORIZED"
}

// GatewayClient описывает взаимодействие с платёжным шлюзом. Классификация
// отказов выполняется один раз на границе адаптера: Commit возвращает ошибки,
// сопоставимые с ErrGatewayAborted, ErrGatewayInvalidState, ErrGatewayTimeout
// или ErrGatewayUnavailable через errors.Is.
type GatewayClient interface {
	// Create открывает транзакцию и возвращает токен с redirect URL.
	Create(ctx context.Context, req GatewayCreateRequest) (GatewayCreateResponse, error)
	// Commit подтверждает транзакцию по токену.
	Commit(ctx context.Context, token string) (GatewayCommitResponse, error)
}

// RateSource описывает внешний источник курсов валют.
type RateSource interface {
	// Fetch возвращает текущий курс валюты к CLP.
	Fetch(ctx context.Context, currency string) (Rate, error)
}

// RateCache хранит курсы с ограниченным временем жизни. Кэш — явный
// коллаборатор сервиса конверсии, а не глобальное состояние.
type RateCache interface {
	Get(ctx context.Context, currency string) (Rate, bool, error)
	Set(ctx context.Context, rate Rate, ttl time.Duration) error
}

package domain

import "time"

// PaymentRepository описывает требования к хранилищу платежей.
type PaymentRepository interface {
	// Create сохраняет новый платёж вместе с позициями одной логической единицей.
	Create(payment Payment) (Payment, error)
	// Get возвращает платёж по идентификатору или ErrPaymentNotFound.
	Get(id int64) (Payment, error)
	// GetByToken ищет платёж по токену шлюза.
	GetByToken(token string) (Payment, error)
	// GetByOrderRef ищет платёж по ссылке заказа.
	GetByOrderRef(ref string) (Payment, error)
	// AttachGateway сохраняет токен и redirect URL после создания транзакции в шлюзе.
	AttachGateway(id int64, token, redirectURL string) error
	// SetState безусловно переводит платёж в новое состояние.
	SetState(id int64, state PaymentState) error
	// Finalize применяет терминальное состояние условным обновлением: переход
	// выполняется только если строка всё ещё в pending или processing, иначе
	// возвращается ErrPaymentAlreadyFinal. База — единственный арбитр эксклюзивности.
	Finalize(id int64, state PaymentState, result *GatewayResult) error
	// Approve одной транзакцией применяет состояние approved, поля результата шлюза,
	// списание остатков по позициям (с полом в ноль) и записи движений склада.
	// Возвращает созданные движения. Условие claim то же, что у Finalize.
	Approve(id int64, result GatewayResult, movementReason string) ([]InventoryMovement, error)
	// ExpireStale переводит в expired платежи, которые остаются в pending или
	// processing дольше порога olderThan. Обрабатывает не более limit строк
	// за вызов и возвращает затронутые платежи.
	ExpireStale(olderThan time.Time, limit int) ([]Payment, error)
}

// ProductRepository описывает доступ к товарам каталога.
type ProductRepository interface {
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id int64) (Product, error)
	// GetActive возвращает только активный товар; неактивный считается отсутствующим.
	GetActive(id int64) (Product, error)
	// SetStock устанавливает остаток напрямую (ручная корректировка) и
	// возвращает обновлённый товар.
	SetStock(id int64, units int) (Product, error)
}

// MovementRepository хранит append-only журнал движений склада.
type MovementRepository interface {
	Append(movement InventoryMovement) (InventoryMovement, error)
	ListByProduct(productID int64, limit int) ([]InventoryMovement, error)
}

// GatewayLogRepository хранит append-only журнал операций платёжного шлюза.
type GatewayLogRepository interface {
	Append(entry GatewayLogEntry) error
	ListByPayment(paymentID int64) ([]GatewayLogEntry, error)
}

package domain

import (
	"encoding/json"
	"time"
)

// GatewayOperation задаёт тип записи журнала взаимодействий со шлюзом.
type GatewayOperation string

const (
	// GatewayOpCreate — создание транзакции в шлюзе.
	GatewayOpCreate GatewayOperation = "create"
	// GatewayOpReturn — возврат покупателя из шлюза.
	GatewayOpReturn GatewayOperation = "return"
	// GatewayOpError — abort/error callback со стороны шлюза.
	GatewayOpError GatewayOperation = "error"
	// GatewayOpVerify — попытка подтверждения (commit) транзакции.
	GatewayOpVerify GatewayOperation = "verify"
)

// GatewayLogEntry — одна запись аудиторского журнала операций шлюза.
// Журнал append-only и не участвует в управлении потоком: он нужен для
// разбора инцидентов и сверки, а не для принятия решений.
type GatewayLogEntry struct {
	ID           int64
	PaymentID    int64
	Operation    GatewayOperation
	RequestData  json.RawMessage
	ResponseData json.RawMessage
	ResponseCode string
	Message      string
	Success      bool
	CreatedAt    time.Time
}

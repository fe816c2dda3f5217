package memory

import (
	"time"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// gatewayLogRepositoryInMemory хранит журнал операций шлюза в памяти.
type gatewayLogRepositoryInMemory struct {
	store *Store
}

// NewGatewayLogRepository создаёт in-memory реализацию GatewayLogRepository.
func NewGatewayLogRepository(store *Store) domain.GatewayLogRepository {
	return &gatewayLogRepositoryInMemory{store: store}
}

// Append добавляет запись в журнал платежа.
func (r *gatewayLogRepositoryInMemory) Append(entry domain.GatewayLogEntry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextLogID++
	entry.ID = s.nextLogID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.logs[entry.PaymentID] = append(s.logs[entry.PaymentID], entry)
	return nil
}

// ListByPayment возвращает записи журнала в порядке добавления.
func (r *gatewayLogRepositoryInMemory) ListByPayment(paymentID int64) ([]domain.GatewayLogEntry, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.logs[paymentID]
	result := make([]domain.GatewayLogEntry, len(entries))
	copy(result, entries)
	return result, nil
}

var _ domain.GatewayLogRepository = (*gatewayLogRepositoryInMemory)(nil)

package memory

import (
	"time"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// movementRepositoryInMemory хранит движения склада в памяти.
type movementRepositoryInMemory struct {
	store *Store
}

// NewMovementRepository создаёт in-memory реализацию MovementRepository.
func NewMovementRepository(store *Store) domain.MovementRepository {
	return &movementRepositoryInMemory{store: store}
}

// Append добавляет движение в журнал.
func (r *movementRepositoryInMemory) Append(movement domain.InventoryMovement) (domain.InventoryMovement, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextMovementID++
	movement.ID = s.nextMovementID
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	s.movements = append(s.movements, movement)
	return movement, nil
}

// ListByProduct возвращает движения товара, новые первыми.
func (r *movementRepositoryInMemory) ListByProduct(productID int64, limit int) ([]domain.InventoryMovement, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryMovement, 0)
	for i := len(s.movements) - 1; i >= 0; i-- {
		if s.movements[i].ProductID != productID {
			continue
		}
		result = append(result, s.movements[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

var _ domain.MovementRepository = (*movementRepositoryInMemory)(nil)

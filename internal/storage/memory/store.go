package memory

import (
	"sync"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// Store — общее in-memory хранилище для локальной разработки и тестов.
// Все репозитории пакета работают поверх одного Store: подтверждение платежа
// и списание остатков должны видеть одни и те же данные атомарно, как это
// делает транзакция в PostgreSQL-реализации.
type Store struct {
	mu sync.RWMutex

	payments  map[int64]domain.Payment
	products  map[int64]domain.Product
	movements []domain.InventoryMovement
	logs      map[int64][]domain.GatewayLogEntry

	nextPaymentID  int64
	nextItemID     int64
	nextMovementID int64
	nextLogID      int64
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		payments: make(map[int64]domain.Payment),
		products: make(map[int64]domain.Product),
		logs:     make(map[int64][]domain.GatewayLogEntry),
	}
}

// SeedProduct кладёт товар в хранилище, назначая ID при необходимости.
func (s *Store) SeedProduct(p domain.Product) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == 0 {
		p.ID = int64(len(s.products) + 1)
	}
	s.products[p.ID] = p
	return p
}

// clonePayment возвращает копию платежа с независимым срезом позиций.
func clonePayment(src domain.Payment) domain.Payment {
	dst := src
	dst.Items = append([]domain.PaymentItem(nil), src.Items...)
	if src.Result != nil {
		result := *src.Result
		dst.Result = &result
	}
	return dst
}

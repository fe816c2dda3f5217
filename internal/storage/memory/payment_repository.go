package memory

import (
	"sort"
	"time"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// paymentRepositoryInMemory — in-memory реализация PaymentRepository.
type paymentRepositoryInMemory struct {
	store *Store
}

// NewPaymentRepository возвращает in-memory репозиторий платежей поверх Store.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepositoryInMemory{store: store}
}

// Create сохраняет платёж вместе с позициями, назначая идентификаторы.
func (r *paymentRepositoryInMemory) Create(payment domain.Payment) (domain.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPaymentID++
	payment.ID = s.nextPaymentID

	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = payment.CreatedAt

	items := make([]domain.PaymentItem, 0, len(payment.Items))
	for _, item := range payment.Items {
		s.nextItemID++
		item.ID = s.nextItemID
		item.PaymentID = payment.ID
		items = append(items, item)
	}
	payment.Items = items

	s.payments[payment.ID] = clonePayment(payment)
	return clonePayment(payment), nil
}

// Get возвращает платёж или ErrPaymentNotFound.
func (r *paymentRepositoryInMemory) Get(id int64) (domain.Payment, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	payment, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, domain.ErrPaymentNotFound
	}
	return clonePayment(payment), nil
}

// GetByToken ищет платёж по токену шлюза.
func (r *paymentRepositoryInMemory) GetByToken(token string) (domain.Payment, error) {
	if token == "" {
		return domain.Payment{}, domain.ErrTokenRequired
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payment := range s.payments {
		if payment.Token == token {
			return clonePayment(payment), nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// GetByOrderRef ищет платёж по ссылке заказа.
func (r *paymentRepositoryInMemory) GetByOrderRef(ref string) (domain.Payment, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, payment := range s.payments {
		if payment.OrderRef == ref {
			return clonePayment(payment), nil
		}
	}
	return domain.Payment{}, domain.ErrPaymentNotFound
}

// AttachGateway сохраняет токен и redirect URL; состояние остаётся pending.
func (r *paymentRepositoryInMemory) AttachGateway(id int64, token, redirectURL string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	payment.Token = token
	payment.RedirectURL = redirectURL
	payment.UpdatedAt = time.Now().UTC()
	s.payments[id] = payment
	return nil
}

// SetState безусловно применяет состояние (путь abort-callback).
func (r *paymentRepositoryInMemory) SetState(id int64, state domain.PaymentState) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	payment.State = state
	payment.UpdatedAt = time.Now().UTC()
	s.payments[id] = payment
	return nil
}

// Finalize выполняет условный claim терминального состояния.
func (r *paymentRepositoryInMemory) Finalize(id int64, state domain.PaymentState, result *domain.GatewayResult) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	if payment.State != domain.PaymentStatePending && payment.State != domain.PaymentStateProcessing {
		return domain.ErrPaymentAlreadyFinal
	}

	payment.State = state
	if result != nil {
		res := *result
		payment.Result = &res
	}
	payment.UpdatedAt = time.Now().UTC()
	s.payments[id] = payment
	return nil
}

// Approve применяет терминальное состояние approved и списание остатков как
// одну атомарную операцию под общим мьютексом хранилища.
func (r *paymentRepositoryInMemory) Approve(id int64, result domain.GatewayResult, movementReason string) ([]domain.InventoryMovement, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	payment, ok := s.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	if payment.State != domain.PaymentStatePending && payment.State != domain.PaymentStateProcessing {
		return nil, domain.ErrPaymentAlreadyFinal
	}

	payment.State = domain.PaymentStateApproved
	res := result
	payment.Result = &res
	payment.UpdatedAt = time.Now().UTC()
	s.payments[id] = payment

	movements := make([]domain.InventoryMovement, 0, len(payment.Items))
	for _, item := range payment.Items {
		product, ok := s.products[item.ProductID]
		if !ok {
			// Товар мог быть удалён из каталога после создания платежа;
			// движение по нему не записывается.
			continue
		}

		before := product.Units
		after := before - item.Quantity
		if after < 0 {
			after = 0
		}
		product.Units = after
		product.UpdatedAt = payment.UpdatedAt
		s.products[item.ProductID] = product

		s.nextMovementID++
		movement := domain.InventoryMovement{
			ID:          s.nextMovementID,
			ProductID:   item.ProductID,
			StockBefore: before,
			StockAfter:  after,
			Operation:   domain.MovementSale,
			Reason:      movementReason,
			CreatedAt:   payment.UpdatedAt,
		}
		s.movements = append(s.movements, movement)
		movements = append(movements, movement)
	}

	return movements, nil
}

// ExpireStale переводит в expired платежи, застрявшие в pending или processing
// дольше порога. Возвращает затронутые платежи в порядке идентификаторов.
func (r *paymentRepositoryInMemory) ExpireStale(olderThan time.Time, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		return nil, nil
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int64, 0)
	for id, payment := range s.payments {
		if payment.State != domain.PaymentStatePending && payment.State != domain.PaymentStateProcessing {
			continue
		}
		if !payment.UpdatedAt.Before(olderThan) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	now := time.Now().UTC()
	expired := make([]domain.Payment, 0, len(ids))
	for _, id := range ids {
		payment := s.payments[id]
		payment.State = domain.PaymentStateExpired
		payment.UpdatedAt = now
		s.payments[id] = payment
		expired = append(expired, clonePayment(payment))
	}
	return expired, nil
}

var _ domain.PaymentRepository = (*paymentRepositoryInMemory)(nil)

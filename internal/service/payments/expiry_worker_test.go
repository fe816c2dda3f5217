package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/storage/memory"
)

var _ domain.PaymentRepository = (*stubExpiryRepo)(nil)

func TestExpiryWorker_ExpireAbandoned_Batches(t *testing.T) {
	t.Parallel()

	repo := &stubExpiryRepo{
		expireResults: [][]domain.Payment{
			{{ID: 1}, {ID: 2}},
			{{ID: 3}, {ID: 4}},
			{{ID: 5}},
		},
	}

	worker := NewExpiryWorker(repo, WithExpiryBatchSize(2))

	expired, err := worker.ExpireAbandoned(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireAbandoned failed: %v", err)
	}

	if expired != 5 {
		t.Fatalf("unexpected expired total: got=%d want=5", expired)
	}

	if calls := repo.calls(); calls != 3 {
		t.Fatalf("unexpected expire calls: got=%d want=3", calls)
	}
}

func TestExpiryWorker_ExpireAbandoned_Error(t *testing.T) {
	t.Parallel()

	repo := &stubExpiryRepo{
		expireErrors: []error{errors.New("boom")},
	}

	worker := NewExpiryWorker(repo, WithExpiryBatchSize(10))

	expired, err := worker.ExpireAbandoned(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected ExpireAbandoned error")
	}
	if expired != 0 {
		t.Fatalf("unexpected expired total: got=%d want=0", expired)
	}
}

func TestExpiryWorker_ExpireAbandoned_OverMemoryRepository(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	repo := memory.NewPaymentRepository(store)

	stale := time.Now().UTC().Add(-time.Hour)
	abandoned, err := repo.Create(domain.Payment{
		OrderRef:  "ORD-1745000000000-1",
		SessionID: "sess-stale",
		Amount:    9990,
		State:     domain.PaymentStatePending,
		CreatedAt: stale,
	})
	if err != nil {
		t.Fatalf("create abandoned payment: %v", err)
	}

	fresh, err := repo.Create(domain.Payment{
		OrderRef:  "ORD-1745000000000-2",
		SessionID: "sess-fresh",
		Amount:    9990,
		State:     domain.PaymentStatePending,
	})
	if err != nil {
		t.Fatalf("create fresh payment: %v", err)
	}

	approvedStale, err := repo.Create(domain.Payment{
		OrderRef:  "ORD-1745000000000-3",
		SessionID: "sess-approved",
		Amount:    9990,
		State:     domain.PaymentStateApproved,
		CreatedAt: stale,
	})
	if err != nil {
		t.Fatalf("create approved payment: %v", err)
	}

	worker := NewExpiryWorker(repo, WithExpiryMaxAge(30*time.Minute), WithExpiryBatchSize(10))

	expired, err := worker.ExpireAbandoned(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireAbandoned failed: %v", err)
	}
	if expired != 1 {
		t.Fatalf("unexpected expired total: got=%d want=1", expired)
	}

	got, err := repo.Get(abandoned.ID)
	if err != nil {
		t.Fatalf("get abandoned payment: %v", err)
	}
	if got.State != domain.PaymentStateExpired {
		t.Fatalf("abandoned payment state: got=%s want=%s", got.State, domain.PaymentStateExpired)
	}

	got, err = repo.Get(fresh.ID)
	if err != nil {
		t.Fatalf("get fresh payment: %v", err)
	}
	if got.State != domain.PaymentStatePending {
		t.Fatalf("fresh payment must stay pending, got %s", got.State)
	}

	got, err = repo.Get(approvedStale.ID)
	if err != nil {
		t.Fatalf("get approved payment: %v", err)
	}
	if got.State != domain.PaymentStateApproved {
		t.Fatalf("approved payment must stay approved, got %s", got.State)
	}
}

func TestExpiryWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	repo := &stubExpiryRepo{}

	worker := NewExpiryWorker(
		repo,
		WithExpiryInterval(5*time.Millisecond),
		WithExpiryBatchSize(10),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}

	if calls := repo.calls(); calls == 0 {
		t.Fatal("expected expiry sweep to be called at least once")
	}
}

type stubExpiryRepo struct {
	mu sync.Mutex

	expireResults [][]domain.Payment
	expireErrors  []error
	callCount     int
}

func (s *stubExpiryRepo) Create(domain.Payment) (domain.Payment, error) {
	panic("not implemented")
}

func (s *stubExpiryRepo) Get(int64) (domain.Payment, error) {
	panic("not implemented")
}

func (s *stubExpiryRepo) GetByToken(string) (domain.Payment, error) {
	panic("not implemented")
}

func (s *stubExpiryRepo) GetByOrderRef(string) (domain.Payment, error) {
	panic("not implemented")
}

func (s *stubExpiryRepo) AttachGateway(int64, string, string) error {
	panic("not implemented")
}

func (s *stubExpiryRepo) SetState(int64, domain.PaymentState) error {
	panic("not implemented")
}

func (s *stubExpiryRepo) Finalize(int64, domain.PaymentState, *domain.GatewayResult) error {
	panic("not implemented")
}

func (s *stubExpiryRepo) Approve(int64, domain.GatewayResult, string) ([]domain.InventoryMovement, error) {
	panic("not implemented")
}

func (s *stubExpiryRepo) ExpireStale(_ time.Time, _ int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++

	if len(s.expireErrors) > 0 {
		err := s.expireErrors[0]
		s.expireErrors = s.expireErrors[1:]
		if err != nil {
			return nil, err
		}
	}

	if len(s.expireResults) == 0 {
		return nil, nil
	}
	result := s.expireResults[0]
	s.expireResults = s.expireResults[1:]
	return result, nil
}

func (s *stubExpiryRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

package payments

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
	"github.com/javipazolea/ferremas-backend/internal/messaging/kafka"
)

const (
	defaultExpiryInterval  = 5 * time.Minute
	defaultExpiryMaxAge    = 30 * time.Minute
	defaultExpiryBatchSize = 200
)

var (
	expiryRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ferremas_payment_expiry_runs_total",
		Help: "Total number of payment expiry runs grouped by result.",
	}, []string{"result"})
	expiryExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ferremas_payment_expiry_expired_total",
		Help: "Total number of payments moved to expired state by the worker.",
	})
	expiryLastExpired = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ferremas_payment_expiry_last_expired",
		Help: "Number of payments expired during the last run.",
	})
)

// ExpiryOptions задает параметры воркера, истекающего брошенные платежи.
type ExpiryOptions struct {
	Logger    *log.Entry
	Interval  time.Duration
	MaxAge    time.Duration
	BatchSize int

	kafkaProducer *kafka.Producer
}

// ExpiryOption настраивает ExpiryWorker.
type ExpiryOption func(*ExpiryOptions)

// WithExpiryLogger задает logger для воркера.
func WithExpiryLogger(logger *log.Entry) ExpiryOption {
	return func(opts *ExpiryOptions) {
		opts.Logger = logger
	}
}

// WithExpiryInterval задает интервал между проходами.
func WithExpiryInterval(interval time.Duration) ExpiryOption {
	return func(opts *ExpiryOptions) {
		opts.Interval = interval
	}
}

// WithExpiryMaxAge задает возраст, после которого незавершенный платеж
// считается брошенным.
func WithExpiryMaxAge(maxAge time.Duration) ExpiryOption {
	return func(opts *ExpiryOptions) {
		opts.MaxAge = maxAge
	}
}

// WithExpiryBatchSize задает максимум платежей за один проход.
func WithExpiryBatchSize(batchSize int) ExpiryOption {
	return func(opts *ExpiryOptions) {
		opts.BatchSize = batchSize
	}
}

// WithExpiryKafka включает публикацию событий payment.expired.
func WithExpiryKafka(producer *kafka.Producer) ExpiryOption {
	return func(opts *ExpiryOptions) {
		opts.kafkaProducer = producer
	}
}

// ExpiryWorker периодически переводит в expired платежи, по которым покупатель
// так и не вернулся из шлюза. Webpay-токен живет ограниченное время, поэтому
// подтверждение таких платежей уже невозможно.
type ExpiryWorker struct {
	payments      domain.PaymentRepository
	logger        *log.Entry
	interval      time.Duration
	maxAge        time.Duration
	batchSize     int
	kafkaProducer *kafka.Producer
}

// NewExpiryWorker создает воркер истечения брошенных платежей.
func NewExpiryWorker(payments domain.PaymentRepository, options ...ExpiryOption) *ExpiryWorker {
	opts := ExpiryOptions{
		Interval:  defaultExpiryInterval,
		MaxAge:    defaultExpiryMaxAge,
		BatchSize: defaultExpiryBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "payment-expiry-worker")
	}

	if opts.Interval <= 0 {
		opts.Interval = defaultExpiryInterval
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultExpiryMaxAge
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultExpiryBatchSize
	}

	return &ExpiryWorker{
		payments:      payments,
		logger:        logger,
		interval:      opts.Interval,
		maxAge:        opts.MaxAge,
		batchSize:     opts.BatchSize,
		kafkaProducer: opts.kafkaProducer,
	}
}

// Run запускает периодическое истечение до отмены ctx.
func (w *ExpiryWorker) Run(ctx context.Context) {
	if w.payments == nil {
		w.logger.Warn("payment expiry worker is disabled: repository is nil")
		return
	}

	w.sweep(ctx, time.Now().UTC())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx, time.Now().UTC())
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context, now time.Time) {
	expired, err := w.ExpireAbandoned(ctx, now)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		expiryRunsTotal.WithLabelValues("error").Inc()
		w.logger.WithError(err).Warn("payment expiry run failed")
		return
	}

	expiryRunsTotal.WithLabelValues("ok").Inc()
	expiryLastExpired.Set(float64(expired))
	if expired > 0 {
		w.logger.WithField("expired", expired).Info("payment expiry completed")
	}
}

// ExpireAbandoned истекает все платежи старше maxAge порциями batchSize.
// Возвращает количество истекших платежей.
func (w *ExpiryWorker) ExpireAbandoned(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	olderThan := now.Add(-w.maxAge)

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		expired, err := w.payments.ExpireStale(olderThan, w.batchSize)
		if err != nil {
			return total, err
		}

		total += len(expired)
		if len(expired) > 0 {
			expiryExpiredTotal.Add(float64(len(expired)))
		}

		for _, payment := range expired {
			w.publishExpiredEvent(payment)
		}

		if len(expired) < w.batchSize {
			break
		}
	}

	return total, nil
}

func (w *ExpiryWorker) publishExpiredEvent(payment domain.Payment) {
	if w.kafkaProducer == nil {
		return
	}

	event := kafka.NewPaymentEvent(
		kafka.EventTypePaymentExpired,
		payment.ID,
		payment.OrderRef,
		string(payment.State),
		payment.Amount,
		map[string]interface{}{"reason": "abandoned_by_buyer"},
	)
	if err := w.kafkaProducer.PublishEvent(kafka.TopicPaymentEvents, payment.OrderRef, event); err != nil {
		w.logger.WithError(err).WithField("payment_id", payment.ID).Warn("failed to publish payment expired event")
	}
}

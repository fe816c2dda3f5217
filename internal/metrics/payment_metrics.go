package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

// PaymentMetrics содержит метрики жизненного цикла платежей.
type PaymentMetrics struct {
	// Счётчики операций
	paymentsCreated   prometheus.Counter
	paymentsFinalized *prometheus.CounterVec
	duplicateVerify   prometheus.Counter
	gatewayErrors     *prometheus.CounterVec

	// Гистограммы времени выполнения
	verifyDuration prometheus.Histogram
	createDuration prometheus.Histogram

	// Склад
	inventoryMovements *prometheus.CounterVec

	// Gauge для платежей в обработке
	inFlightVerifies prometheus.Gauge
}

// NewPaymentMetrics создаёт новый экземпляр метрик платежей.
func NewPaymentMetrics() *PaymentMetrics {
	return newPaymentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPaymentMetricsWithRegisterer(registerer prometheus.Registerer) *PaymentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PaymentMetrics{
		paymentsCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ferremas_payments_created_total",
			Help: "Total number of payments created",
		}),
		paymentsFinalized: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ferremas_payments_finalized_total",
			Help: "Total number of payments reaching a terminal state",
		}, []string{"state"}),
		duplicateVerify: registerCounter(registerer, prometheus.CounterOpts{
			Name: "ferremas_duplicate_verify_total",
			Help: "Total number of verify attempts on already finalized payments",
		}),
		gatewayErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ferremas_gateway_errors_total",
			Help: "Total number of classified gateway failures",
		}, []string{"kind"}),
		verifyDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ferremas_verify_duration_seconds",
			Help:    "Duration of payment verification in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "ferremas_create_duration_seconds",
			Help:    "Duration of payment creation in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		inventoryMovements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "ferremas_inventory_movements_total",
			Help: "Total number of inventory movements recorded",
		}, []string{"operation"}),
		inFlightVerifies: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "ferremas_in_flight_verifies",
			Help: "Number of verify operations currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordPaymentCreated увеличивает счётчик созданных платежей.
func (m *PaymentMetrics) RecordPaymentCreated() {
	m.paymentsCreated.Inc()
}

// RecordPaymentFinalized увеличивает счётчик платежей в терминальном состоянии.
func (m *PaymentMetrics) RecordPaymentFinalized(state domain.PaymentState) {
	m.paymentsFinalized.WithLabelValues(string(state)).Inc()
}

// RecordDuplicateVerify увеличивает счётчик повторных попыток подтверждения.
func (m *PaymentMetrics) RecordDuplicateVerify() {
	m.duplicateVerify.Inc()
}

// RecordGatewayError увеличивает счётчик отказов шлюза по виду отказа.
func (m *PaymentMetrics) RecordGatewayError(kind string) {
	m.gatewayErrors.WithLabelValues(kind).Inc()
}

// RecordVerifyDuration записывает время подтверждения платежа.
func (m *PaymentMetrics) RecordVerifyDuration(duration time.Duration) {
	m.verifyDuration.Observe(duration.Seconds())
}

// RecordCreateDuration записывает время создания платежа.
func (m *PaymentMetrics) RecordCreateDuration(duration time.Duration) {
	m.createDuration.Observe(duration.Seconds())
}

// RecordInventoryMovement увеличивает счётчик движений склада.
func (m *PaymentMetrics) RecordInventoryMovement(operation domain.MovementType) {
	m.inventoryMovements.WithLabelValues(string(operation)).Inc()
}

// VerifyInFlightStarted увеличивает количество активных подтверждений.
func (m *PaymentMetrics) VerifyInFlightStarted() {
	m.inFlightVerifies.Inc()
}

// VerifyInFlightFinished уменьшает количество активных подтверждений.
func (m *PaymentMetrics) VerifyInFlightFinished() {
	m.inFlightVerifies.Dec()
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/javipazolea/ferremas-backend/internal/domain"
)

func TestNewPaymentMetrics(t *testing.T) {
	metrics := NewPaymentMetrics()

	if metrics == nil {
		t.Fatal("NewPaymentMetrics should not return nil")
	}

	if metrics.paymentsCreated == nil {
		t.Error("paymentsCreated counter should not be nil")
	}

	if metrics.paymentsFinalized == nil {
		t.Error("paymentsFinalized counter vec should not be nil")
	}

	if metrics.duplicateVerify == nil {
		t.Error("duplicateVerify counter should not be nil")
	}

	if metrics.gatewayErrors == nil {
		t.Error("gatewayErrors counter vec should not be nil")
	}

	if metrics.verifyDuration == nil {
		t.Error("verifyDuration histogram should not be nil")
	}

	if metrics.createDuration == nil {
		t.Error("createDuration histogram should not be nil")
	}

	if metrics.inventoryMovements == nil {
		t.Error("inventoryMovements counter vec should not be nil")
	}

	if metrics.inFlightVerifies == nil {
		t.Error("inFlightVerifies gauge should not be nil")
	}
}

func TestNewPaymentMetrics_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newPaymentMetricsWithRegisterer(reg)
	second := newPaymentMetricsWithRegisterer(reg)

	// Повторная регистрация возвращает уже существующие коллекторы.
	first.RecordPaymentCreated()
	second.RecordPaymentCreated()

	metric := &dto.Metric{}
	if err := first.paymentsCreated.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordPaymentCreated(t *testing.T) {
	// Create isolated metrics with a custom registry
	reg := prometheus.NewRegistry()

	paymentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_payments_created_total",
		Help: "Test counter",
	})

	reg.MustRegister(paymentsCreated)

	metrics := &PaymentMetrics{
		paymentsCreated: paymentsCreated,
	}

	metrics.RecordPaymentCreated()

	metric := &dto.Metric{}
	if err := paymentsCreated.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordPaymentFinalized_ByState(t *testing.T) {
	reg := prometheus.NewRegistry()

	finalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_payments_finalized_total",
		Help: "Test counter vec",
	}, []string{"state"})

	reg.MustRegister(finalized)

	metrics := &PaymentMetrics{
		paymentsFinalized: finalized,
	}

	metrics.RecordPaymentFinalized(domain.PaymentStateApproved)
	metrics.RecordPaymentFinalized(domain.PaymentStateApproved)
	metrics.RecordPaymentFinalized(domain.PaymentStateRejected)

	metric := &dto.Metric{}
	if err := finalized.WithLabelValues("approved").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected approved counter 2.0, got %f", metric.Counter.GetValue())
	}

	metric = &dto.Metric{}
	if err := finalized.WithLabelValues("rejected").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 1.0 {
		t.Errorf("expected rejected counter 1.0, got %f", metric.Counter.GetValue())
	}
}

func TestVerifyInFlightGauge(t *testing.T) {
	reg := prometheus.NewRegistry()

	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_in_flight_verifies",
		Help: "Test gauge",
	})

	reg.MustRegister(inFlight)

	metrics := &PaymentMetrics{
		inFlightVerifies: inFlight,
	}

	metrics.VerifyInFlightStarted()
	metrics.VerifyInFlightStarted()
	metrics.VerifyInFlightFinished()

	metric := &dto.Metric{}
	if err := inFlight.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}

	if metric.Gauge.GetValue() != 1.0 {
		t.Errorf("expected gauge value 1.0, got %f", metric.Gauge.GetValue())
	}
}

func TestRecordVerifyDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_verify_duration_seconds",
		Help:    "Test histogram",
		Buckets: prometheus.DefBuckets,
	})

	reg.MustRegister(duration)

	metrics := &PaymentMetrics{
		verifyDuration: duration,
	}

	metrics.RecordVerifyDuration(150 * time.Millisecond)

	metric := &dto.Metric{}
	if err := duration.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 sample, got %d", metric.Histogram.GetSampleCount())
	}
}

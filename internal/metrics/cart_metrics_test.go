package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := c.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.Counter.GetValue()
}

func TestNewCartMetrics(t *testing.T) {
	metrics := newCartMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newCartMetricsWithRegisterer should not return nil")
	}
	if metrics.operations == nil {
		t.Error("operations counter should not be nil")
	}
	if metrics.storageErrors == nil {
		t.Error("storageErrors counter should not be nil")
	}
	if metrics.restores == nil {
		t.Error("restores counter should not be nil")
	}
	if metrics.ordersPlaced == nil {
		t.Error("ordersPlaced counter should not be nil")
	}
	if metrics.checkoutDuration == nil {
		t.Error("checkoutDuration histogram should not be nil")
	}
	if metrics.activeCarts == nil {
		t.Error("activeCarts gauge should not be nil")
	}
}

func TestNewCartMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newCartMetricsWithRegisterer(reg)
	second := newCartMetricsWithRegisterer(reg)

	first.RecordOrderPlaced()
	second.RecordOrderPlaced()

	if got := counterValue(t, first.ordersPlaced); got != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", got)
	}
}

func TestRecordOperation(t *testing.T) {
	metrics := newCartMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordOperation("add")
	metrics.RecordOperation("add")
	metrics.RecordOperation("clear")

	if got := counterValue(t, metrics.operations.WithLabelValues("add")); got != 2.0 {
		t.Errorf("expected add counter 2.0, got %f", got)
	}
	if got := counterValue(t, metrics.operations.WithLabelValues("clear")); got != 1.0 {
		t.Errorf("expected clear counter 1.0, got %f", got)
	}
}

func TestRecordStorageErrorAndRestore(t *testing.T) {
	metrics := newCartMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordStorageError("save")
	metrics.RecordRestore(RestoreResultCorrupt)

	if got := counterValue(t, metrics.storageErrors.WithLabelValues("save")); got != 1.0 {
		t.Errorf("expected save errors 1.0, got %f", got)
	}
	if got := counterValue(t, metrics.restores.WithLabelValues(RestoreResultCorrupt)); got != 1.0 {
		t.Errorf("expected corrupt restores 1.0, got %f", got)
	}
}

func TestRecordCheckoutDuration(t *testing.T) {
	metrics := newCartMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordCheckoutDuration(150 * time.Millisecond)

	metric := &dto.Metric{}
	if err := metrics.checkoutDuration.Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 sample, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestSetActiveCarts(t *testing.T) {
	metrics := newCartMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.SetActiveCarts(3)

	metric := &dto.Metric{}
	if err := metrics.activeCarts.Write(metric); err != nil {
		t.Fatalf("failed to write gauge: %v", err)
	}
	if metric.Gauge.GetValue() != 3.0 {
		t.Errorf("expected active carts 3.0, got %f", metric.Gauge.GetValue())
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var metrics *CartMetrics

	metrics.RecordOperation("add")
	metrics.RecordStorageError("load")
	metrics.RecordRestore(RestoreResultEmpty)
	metrics.RecordNotification()
	metrics.RecordOrderPlaced()
	metrics.RecordCheckoutFailed("validation")
	metrics.RecordCheckoutDuration(time.Second)
	metrics.SetActiveCarts(1)
}

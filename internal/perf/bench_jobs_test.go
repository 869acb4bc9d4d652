package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/solvent-hq/solvent/internal/jobs"
)

func TestIntegrityScanThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	// Simulate tenant scans finishing fast and mostly successful.
	for i := 0; i < 25; i++ {
		tracker := metrics.Track("ledger_integrity_scan")
		time.Sleep(8 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending tracker: %v", err)
		}
	}

	// Inject failures to ensure the failure counter and alerts fire.
	for i := 0; i < 3; i++ {
		tracker := metrics.Track("ledger_integrity_scan")
		time.Sleep(10 * time.Millisecond)
		if err := tracker.End(errors.New("postgres timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}

	metrics.AddImbalance("tenant-a")
	metrics.AddImbalance("tenant-a")
	metrics.AddImbalance("tenant-b")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "solvent_jobs_total", map[string]string{"job": "ledger_integrity_scan", "status": "success"})
	failure := metricValue(t, families, "solvent_jobs_total", map[string]string{"job": "ledger_integrity_scan", "status": "failure"})
	if success+failure == 0 {
		t.Fatal("no scan executions recorded")
	}
	ratio := success / (success + failure)
	if ratio < 0.85 {
		t.Fatalf("scan success ratio too low: %f", ratio)
	}

	if failures := metricValue(t, families, "solvent_jobs_failures_total", map[string]string{"job": "ledger_integrity_scan"}); failures != 3 {
		t.Fatalf("expected 3 recorded failures, got %f", failures)
	}

	scanDuration := histogramMean(t, families, "solvent_job_duration_seconds", map[string]string{"job": "ledger_integrity_scan"})
	if scanDuration > 0.5 {
		t.Fatalf("scan duration above budget: %f", scanDuration)
	}

	if imbalanced := metricValue(t, families, "solvent_job_ledger_imbalances_total", map[string]string{"tenant": "tenant-a"}); imbalanced != 2 {
		t.Fatalf("expected 2 imbalances for tenant-a, got %f", imbalanced)
	}
	if imbalanced := metricValue(t, families, "solvent_job_ledger_imbalances_total", map[string]string{"tenant": "tenant-b"}); imbalanced != 1 {
		t.Fatalf("expected 1 imbalance for tenant-b, got %f", imbalanced)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

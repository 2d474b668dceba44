package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsUpdates(t *testing.T) {
	m := New()

	m.ObserveProcessingDuration(250 * time.Millisecond)
	m.IncNotifications(OutcomeJobsEmitted)
	m.IncNotifications(OutcomeNoFreshTag)
	m.AddJobsEmitted("single", 3)
	m.AddJobsEmitted("group", 2)
	m.IncPopularPackage()
	m.SetLastProcessedTimestamp(time.Unix(100, 0))

	if got := testutil.ToFloat64(m.notificationsTotal.WithLabelValues(OutcomeJobsEmitted)); got != 1 {
		t.Fatalf("expected jobs_emitted outcome 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.notificationsTotal.WithLabelValues(OutcomeNoFreshTag)); got != 1 {
		t.Fatalf("expected no_fresh_tag outcome 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobsEmittedTotal.WithLabelValues("single")); got != 3 {
		t.Fatalf("expected 3 single jobs, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobsEmittedTotal.WithLabelValues("group")); got != 2 {
		t.Fatalf("expected 2 group jobs, got %v", got)
	}
	if got := testutil.ToFloat64(m.popularPackageTotal); got != 1 {
		t.Fatalf("expected popular package count 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastProcessedGauge); got != 100 {
		t.Fatalf("expected last processed 100, got %v", got)
	}
	if count := testutil.CollectAndCount(m.processingDurationSeconds); count == 0 {
		t.Fatal("expected processing duration histogram to be collected")
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics

	// The pipeline runs without a collector attached; every method must be
	// safe on nil.
	m.ObserveProcessingDuration(time.Second)
	m.IncNotifications(OutcomeError)
	m.AddJobsEmitted("single", 1)
	m.IncPopularPackage()
	m.SetLastProcessedTimestamp(time.Now())

	if m.Handler() == nil {
		t.Fatal("nil metrics must still return a handler")
	}
}

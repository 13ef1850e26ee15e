package metrics

import (
	"context"
	"testing"

	"github.com/hashicorp/go-metrics"
	"github.com/prometheus/client_golang/prometheus"
)

var _ metrics.MetricSink = (*PrometheusSink)(nil)

func gatheredNames(t *testing.T, registry *prometheus.Registry) map[string]bool {
	t.Helper()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestSinkRegistersGaugeCounterAndHistogram(t *testing.T) {
	registry := prometheus.NewRegistry()
	sink := NewPrometheusSink(registry)

	sink.SetGauge([]string{"run", "life_frac"}, 0.97)
	sink.IncrCounterWithLabels([]string{"cron", "job", "runs", "total"}, 1,
		[]metrics.Label{{Name: "job_name", Value: "status_report"}})
	sink.AddSample([]string{"cron", "job", "run", "duration", "seconds"}, 0.002)

	names := gatheredNames(t, registry)
	for _, want := range []string{
		"run_life_frac",
		"cron_job_runs_total",
		"cron_job_run_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("registry is missing metric %q after sink writes; got %v", want, names)
		}
	}
}

func TestSinkReusesMetricAcrossWrites(t *testing.T) {
	registry := prometheus.NewRegistry()
	sink := NewPrometheusSink(registry)

	// A second write to the same key must update the existing collector,
	// not MustRegister a duplicate (which would panic).
	sink.SetGauge([]string{"run", "ntrig"}, 1)
	sink.SetGauge([]string{"run", "ntrig"}, 2)

	if !gatheredNames(t, registry)["run_ntrig"] {
		t.Error("gauge run_ntrig missing after repeated writes")
	}
}

func TestNewServerSinkSharesRegistry(t *testing.T) {
	s := NewServer(MetricsConfig{Enable: true})

	sink := s.GetSink()
	sink.SetGauge([]string{"waveflow", "run", "read_rate_hz"}, 123)

	if !gatheredNames(t, s.registry)["waveflow_run_read_rate_hz"] {
		t.Error("a gauge set through GetSink() must land in the server's registry")
	}
}

func TestStartDisabledIsNoOp(t *testing.T) {
	s := NewServer(MetricsConfig{Enable: false})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() with Enable=false returned error: %v", err)
	}
	if s.server != nil {
		t.Error("disabled server must not construct an http.Server")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("Stop() before Start() must be a no-op, got %v", err)
	}
}

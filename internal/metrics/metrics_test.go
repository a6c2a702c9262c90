package metrics

import (
	"context"
	"testing"

	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestResult(t *testing.T) {
	cases := map[string]gemini.Outcome{
		"success":    {Success: true},
		"cached":     {Success: true, Cached: true},
		"rate_limit": {Kind: "rate_limit"},
		"failure":    {},
	}
	for want, o := range cases {
		if got := Result(o); got != want {
			t.Fatalf("Result(%+v) = %q, want %q", o, got, want)
		}
	}
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	inner := &gemini.MockClient{Outcomes: []gemini.Outcome{
		{Success: true, Analysis: "Gir", TokensUsed: 40, Attempts: 2},
		{Success: false, Kind: "auth", Attempts: 1},
	}}
	a := Instrument(inner, m)

	a.Analyze(context.Background(), []byte("x"), "m", "s", gemini.AnalyzeOptions{})
	a.Analyze(context.Background(), []byte("x"), "m", "s", gemini.AnalyzeOptions{})

	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("success count = %v", got)
	}
	if got := testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("auth")); got != 1 {
		t.Fatalf("auth count = %v", got)
	}
	if got := testutil.ToFloat64(m.TokensTotal); got != 40 {
		t.Fatalf("tokens = %v", got)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var attempts uint64
	for _, f := range families {
		if f.GetName() == "cattlelens_analyzer_attempts" {
			attempts = f.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	if attempts != 2 {
		t.Fatalf("attempt observations = %d, want 2", attempts)
	}
}

func TestObserve_NilMetrics(t *testing.T) {
	var m *Metrics
	m.Observe(gemini.Outcome{Success: true}, 0)
}

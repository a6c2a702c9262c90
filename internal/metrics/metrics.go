package metrics

import (
	"context"
	"time"

	"github.com/oukeidos/cattlelens/internal/gemini"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "cattlelens"
	subsystem = "analyzer"
)

// Metrics holds the analyzer collectors registered on one registry.
type Metrics struct {
	AnalysesTotal   *prometheus.CounterVec
	Attempts        prometheus.Histogram
	DurationSeconds *prometheus.HistogramVec
	TokensTotal     prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analyses_total",
			Help:      "Total number of image analyses, labeled by result (success, cached, or the failure kind).",
		}, []string{"result"}),
		Attempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attempts",
			Help:      "HTTP attempts used per analysis.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 10},
		}),
		DurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_duration_seconds",
			Help:      "Wall time per analysis including retries and backoff.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120, 300},
		}, []string{"result"}),
		TokensTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tokens_total",
			Help:      "Total tokens reported by the API for successful analyses.",
		}),
	}
	reg.MustRegister(m.AnalysesTotal, m.Attempts, m.DurationSeconds, m.TokensTotal)
	return m
}

// Result is the label value for an outcome.
func Result(o gemini.Outcome) string {
	switch {
	case o.Success && o.Cached:
		return "cached"
	case o.Success:
		return "success"
	case o.Kind != "":
		return o.Kind
	default:
		return "failure"
	}
}

// Observe records one finished analysis.
func (m *Metrics) Observe(o gemini.Outcome, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := Result(o)
	m.AnalysesTotal.WithLabelValues(result).Inc()
	m.DurationSeconds.WithLabelValues(result).Observe(elapsed.Seconds())
	if !o.Cached {
		m.Attempts.Observe(float64(o.Attempts))
	}
	if o.TokensUsed > 0 {
		m.TokensTotal.Add(float64(o.TokensUsed))
	}
}

// Analyzer records metrics around another analyzer.
type Analyzer struct {
	inner   gemini.Analyzer
	metrics *Metrics
	now     func() time.Time
}

var _ gemini.Analyzer = (*Analyzer)(nil)

func Instrument(inner gemini.Analyzer, m *Metrics) *Analyzer {
	return &Analyzer{inner: inner, metrics: m, now: time.Now}
}

func (a *Analyzer) Analyze(ctx context.Context, image []byte, model, systemPrompt string, opts gemini.AnalyzeOptions) gemini.Outcome {
	start := a.now()
	out := a.inner.Analyze(ctx, image, model, systemPrompt, opts)
	a.metrics.Observe(out, a.now().Sub(start))
	return out
}

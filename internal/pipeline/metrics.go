package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds pipeline collectors.
type Metrics struct {
	Analyses        *prometheus.CounterVec
	AnalysisErrors  *prometheus.CounterVec
	SignalsEmitted  *prometheus.CounterVec
	PatternsEmitted *prometheus.CounterVec
	AnalysisLatency prometheus.Histogram
}

// NewMetrics creates pipeline metrics and registers them with reg when it is
// non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_analyses_total",
			Help: "Completed analysis passes.",
		}, []string{"symbol", "timeframe"}),
		AnalysisErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_analysis_errors_total",
			Help: "Analysis passes that failed.",
		}, []string{"symbol", "timeframe"}),
		SignalsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_signals_emitted_total",
			Help: "Signals stored and published.",
		}, []string{"symbol", "direction"}),
		PatternsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_patterns_emitted_total",
			Help: "Patterns stored and published.",
		}, []string{"pattern"}),
		AnalysisLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_analysis_duration_seconds",
			Help:    "Time spent analyzing one watch.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Analyses, m.AnalysisErrors, m.SignalsEmitted, m.PatternsEmitted, m.AnalysisLatency)
	}
	return m
}

func (m *Metrics) analyzed(symbol, timeframe string, seconds float64) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(symbol, timeframe).Inc()
	m.AnalysisLatency.Observe(seconds)
}

func (m *Metrics) failed(symbol, timeframe string) {
	if m == nil {
		return
	}
	m.AnalysisErrors.WithLabelValues(symbol, timeframe).Inc()
}

func (m *Metrics) signal(symbol, direction string) {
	if m == nil {
		return
	}
	m.SignalsEmitted.WithLabelValues(symbol, direction).Inc()
}

func (m *Metrics) pattern(name string) {
	if m == nil {
		return
	}
	m.PatternsEmitted.WithLabelValues(name).Inc()
}

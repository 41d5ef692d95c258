package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the collectors shared by the request engine and the checker.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RateLimitSleepsTotal prometheus.Counter
	CandidatesTotal      *prometheus.CounterVec
	CandidatesRemaining  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freename_requests_total",
			Help: "total number of engine requests by final outcome",
		}, []string{"outcome"}),
		RateLimitSleepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freename_rate_limit_sleeps_total",
			Help: "total number of backoff sleeps after a 429",
		}),
		CandidatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freename_candidates_total",
			Help: "total number of checked candidates by status",
		}, []string{"status"}),
		CandidatesRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freename_candidates_remaining",
			Help: "number of candidates not yet checked in the current run",
		}),
	}

	metrics.Enable(reg)
	return metrics
}

func (m *Metrics) Enable(reg prometheus.Registerer) {
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RateLimitSleepsTotal)
	reg.MustRegister(m.CandidatesTotal)
	reg.MustRegister(m.CandidatesRemaining)
}

func (m *Metrics) Disable(reg prometheus.Registerer) {
	reg.Unregister(m.RequestsTotal)
	reg.Unregister(m.RateLimitSleepsTotal)
	reg.Unregister(m.CandidatesTotal)
	reg.Unregister(m.CandidatesRemaining)
}

func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSleep() {
	if m == nil {
		return
	}
	m.RateLimitSleepsTotal.Inc()
}

func (m *Metrics) ObserveCandidate(status string) {
	if m == nil {
		return
	}
	m.CandidatesTotal.WithLabelValues(status).Inc()
	m.CandidatesRemaining.Dec()
}

func (m *Metrics) SetRemaining(n int) {
	if m == nil {
		return
	}
	m.CandidatesRemaining.Set(float64(n))
}

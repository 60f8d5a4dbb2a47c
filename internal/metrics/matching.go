package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Matching собирает метрики подбора исполнителей и жизненного цикла офферов.
// Все методы безопасны для nil-получателя.
type Matching struct {
	outcomes    *prometheus.CounterVec
	offers      *prometheus.CounterVec
	candidates  prometheus.Histogram
	raceLost    prometheus.Counter
	sweepTime   prometheus.Histogram
	sweepResult *prometheus.CounterVec
	expired     prometheus.Counter
}

func NewMatching(reg prometheus.Registerer) *Matching {
	if reg == nil {
		return &Matching{}
	}
	m := &Matching{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_requests_total",
			Help: "requestMatch outcomes.",
		}, []string{"outcome"}),
		offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_offer_transitions_total",
			Help: "Assignment offer transitions by resulting status.",
		}, []string{"status"}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matching_candidates",
			Help:    "Number of eligible candidates per search.",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 50},
		}),
		raceLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matching_race_lost_total",
			Help: "Offer commits lost to a concurrent booking of the same freelancer.",
		}),
		sweepTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "matching_sweep_duration_seconds",
			Help:    "Duration of expired offer sweeps.",
			Buckets: prometheus.DefBuckets,
		}),
		sweepResult: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "matching_sweep_runs_total",
			Help: "Expired offer sweep runs by result.",
		}, []string{"result"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "matching_offers_expired_total",
			Help: "Offers expired by the sweep.",
		}),
	}
	reg.MustRegister(m.outcomes, m.offers, m.candidates, m.raceLost, m.sweepTime, m.sweepResult, m.expired)
	return m
}

func (m *Matching) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Matching) IncOfferTransition(status string) {
	if m == nil || m.offers == nil {
		return
	}
	m.offers.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Matching) ObserveCandidates(n int) {
	if m == nil || m.candidates == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

func (m *Matching) IncRaceLost() {
	if m == nil || m.raceLost == nil {
		return
	}
	m.raceLost.Inc()
}

// ObserveSweep фиксирует один проход свипера.
func (m *Matching) ObserveSweep(duration time.Duration, expired int, err error) {
	if m == nil || m.sweepTime == nil {
		return
	}
	m.sweepTime.Observe(duration.Seconds())
	m.expired.Add(float64(expired))
	if err != nil {
		m.sweepResult.WithLabelValues("failure").Inc()
		return
	}
	m.sweepResult.WithLabelValues("success").Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

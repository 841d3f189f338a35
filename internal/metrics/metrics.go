package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	joins           prometheus.Counter
	joinRejections  *prometheus.CounterVec
	leaves          prometheus.Counter
	detailsRejected prometheus.Counter
	transitions     *prometheus.CounterVec
	droppedClients  prometheus.Counter
	activeLobbies   prometheus.Gauge
	rateLimited     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby", Name: "participants_joined_total",
			Help: "Participants added to a roster.",
		}),
		joinRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby", Name: "join_rejections_total",
			Help: "Connects that did not produce a roster record, by reason.",
		}, []string{"reason"}),
		leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby", Name: "participants_left_total",
			Help: "Participants removed from a roster.",
		}),
		detailsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby", Name: "details_rejected_total",
			Help: "SubmitDetails requests rejected by validation.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby", Name: "transition_triggers_total",
			Help: "Transition trigger attempts, by outcome.",
		}, []string{"outcome"}),
		droppedClients: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby", Name: "slow_clients_dropped_total",
			Help: "Client outboxes closed because they were full.",
		}),
		activeLobbies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lobby", Name: "active",
			Help: "Lobbies currently registered in the hub.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby", Name: "client_messages_rate_limited_total",
			Help: "Client messages dropped by the per-connection limiter.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.joins, m.joinRejections, m.leaves, m.detailsRejected,
			m.transitions, m.droppedClients, m.activeLobbies, m.rateLimited)
	}
	return m
}

func (m *Metrics) Joined() {
	if m != nil {
		m.joins.Inc()
	}
}

func (m *Metrics) JoinRejected(reason string) {
	if m != nil {
		m.joinRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) Left(n int) {
	if m != nil && n > 0 {
		m.leaves.Add(float64(n))
	}
}

func (m *Metrics) DetailsRejected() {
	if m != nil {
		m.detailsRejected.Inc()
	}
}

func (m *Metrics) Transition(outcome string) {
	if m != nil {
		m.transitions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ClientDropped() {
	if m != nil {
		m.droppedClients.Inc()
	}
}

func (m *Metrics) LobbyOpened() {
	if m != nil {
		m.activeLobbies.Inc()
	}
}

func (m *Metrics) LobbyClosed() {
	if m != nil {
		m.activeLobbies.Dec()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

// Package telemetry exposes quiz activity as Prometheus metrics and hooks
// logging into infrastructure clients.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/event"
)

const namespace = "quiz"

type Metrics struct {
	players   prometheus.Gauge
	questions *prometheus.CounterVec
	answers   *prometheus.CounterVec
	dropped   *prometheus.CounterVec
	lifecycle *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "players_connected",
			Help:      "Number of connected players.",
		}),
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_sent_total",
			Help:      "Questions broadcast to players, by question type.",
		}, []string{"type"}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_total",
			Help:      "Answers received, by outcome.",
		}, []string{"outcome"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_dropped_total",
			Help:      "Player connections dropped by the host, by reason.",
		}, []string{"reason"}),
		lifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Quiz lifecycle transitions.",
		}, []string{"event"}),
	}
	reg.MustRegister(m.players, m.questions, m.answers, m.dropped, m.lifecycle)
	return m
}

func (m *Metrics) Register(bus *event.Bus) {
	bus.SubscribeMany([]string{
		domain.EventNamePlayerCountChanged,
		domain.EventNameQuestionStarted,
		domain.EventNameAnswerRecorded,
		domain.EventNamePeerDropped,
		domain.EventNameAllAnswered,
		domain.EventNameQuizEnded,
		domain.EventNameQuizRestarted,
	}, m.handle)
}

func (m *Metrics) handle(_ context.Context, e event.Event) error {
	switch ev := e.(type) {
	case domain.EventPlayerCountChanged:
		m.players.Set(float64(ev.Count))
	case domain.EventQuestionStarted:
		m.questions.WithLabelValues(string(ev.Kind)).Inc()
	case domain.EventAnswerRecorded:
		m.answers.WithLabelValues(string(ev.Outcome)).Inc()
	case domain.EventPeerDropped:
		m.dropped.WithLabelValues(ev.Reason).Inc()
	default:
		m.lifecycle.WithLabelValues(e.Name()).Inc()
	}
	return nil
}

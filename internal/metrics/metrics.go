// Package metrics counts what the bot does and serves the counters over HTTP.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"telegram-reminder-bot/internal/models"
)

const namespace = "reminder_bot"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	inbound    prometheus.Counter
	committed  *prometheus.CounterVec
	extraction *prometheus.CounterVec
	abandoned  prometheus.Counter
	deliveries *prometheus.CounterVec
}

// New creates the counters and registers them with reg (default registerer
// when nil).
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		inbound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Text messages received from chats.",
		}),
		committed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_committed_total",
			Help:      "Reminders saved, by kind.",
		}, []string{"kind"}),
		extraction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Free-text extractions, by the stage that produced the result.",
		}, []string{"source"}),
		abandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dialogues_abandoned_total",
			Help:      "Dialogues dropped after repeated unreadable answers.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Reminder notifications pushed to chats, by result.",
		}, []string{"result"}),
	}
	for _, c := range []prometheus.Collector{m.inbound, m.committed, m.extraction, m.abandoned, m.deliveries} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) MessageReceived() {
	if m == nil {
		return
	}
	m.inbound.Inc()
}

func (m *Metrics) ReminderCommitted(kind models.Kind) {
	if m == nil {
		return
	}
	m.committed.WithLabelValues(string(kind)).Inc()
}

// Extracted counts one extraction by source ("rules", "semantic", "none").
func (m *Metrics) Extracted(source string) {
	if m == nil {
		return
	}
	m.extraction.WithLabelValues(source).Inc()
}

func (m *Metrics) DialogueAbandoned() {
	if m == nil {
		return
	}
	m.abandoned.Inc()
}

// Delivered counts one notification attempt.
func (m *Metrics) Delivered(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.deliveries.WithLabelValues("failed").Inc()
		return
	}
	m.deliveries.WithLabelValues("sent").Inc()
}

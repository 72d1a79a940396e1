// Package metrics holds the Prometheus collectors exported by the worker.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Processing outcomes recorded on sqs_worker_messages_processed_total.
const (
	OutcomeSuccess         = "success"
	OutcomeDecodeError     = "decode_error"
	OutcomeProcessingError = "processing_error"
	OutcomeAckError        = "ack_error"
	OutcomePanic           = "panic"
)

// Metrics groups the consumer collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	messagesReceived   *prometheus.CounterVec
	messagesProcessed  *prometheus.CounterVec
	fetchErrors        *prometheus.CounterVec
	tasksInFlight      *prometheus.GaugeVec
	processingDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqs_worker_messages_received_total",
				Help: "Count of messages dispatched to a processing task",
			},
			[]string{"queue"},
		),
		messagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqs_worker_messages_processed_total",
				Help: "Count of finished processing tasks by outcome",
			},
			[]string{"queue", "outcome"},
		),
		fetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sqs_worker_fetch_errors_total",
				Help: "Count of failed receive calls",
			},
			[]string{"queue"},
		),
		tasksInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sqs_worker_tasks_in_flight",
				Help: "Processing tasks spawned and not yet finished",
			},
			[]string{"queue"},
		),
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sqs_worker_processing_duration_seconds",
				Help:    "Time from task start to completion, including the wait for a slot",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"queue", "outcome"},
		),
	}

	reg.MustRegister(
		m.messagesReceived,
		m.messagesProcessed,
		m.fetchErrors,
		m.tasksInFlight,
		m.processingDuration,
	)
	return m
}

func (m *Metrics) MessageReceived(queue string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(queue).Inc()
}

func (m *Metrics) MessageProcessed(queue, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.messagesProcessed.WithLabelValues(queue, outcome).Inc()
	m.processingDuration.WithLabelValues(queue, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) FetchError(queue string) {
	if m == nil {
		return
	}
	m.fetchErrors.WithLabelValues(queue).Inc()
}

func (m *Metrics) TaskStarted(queue string) {
	if m == nil {
		return
	}
	m.tasksInFlight.WithLabelValues(queue).Inc()
}

func (m *Metrics) TaskFinished(queue string) {
	if m == nil {
		return
	}
	m.tasksInFlight.WithLabelValues(queue).Dec()
}

// Package metrics provides observability for the game server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers game server metrics on its own registry.
// Record methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	commands       *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	outcomes       *prometheus.CounterVec
	ticks          prometheus.Counter
	eventsDropped  prometheus.Counter
	journalWrites  *prometheus.CounterVec
	sessions       prometheus.Gauge
	wsConnections  prometheus.Gauge
	wsMessages     *prometheus.CounterVec
}

// New creates a collector with process and Go runtime collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bucket_commands_total",
			Help: "Session commands by type and result",
		}, []string{"command", "result"}),
		commandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bucket_command_duration_seconds",
			Help:    "Time to execute a session command",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		}, []string{"command"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bucket_outcomes_total",
			Help: "Rounds finished by status",
		}, []string{"status"}),
		ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "bucket_countdown_ticks_total",
			Help: "Countdown ticks applied to armed bombs",
		}),
		eventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "bucket_events_dropped_total",
			Help: "Events not delivered to a slow subscriber",
		}),
		journalWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bucket_journal_writes_total",
			Help: "Journal inserts by result",
		}, []string{"result"}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bucket_sessions_active",
			Help: "Open game sessions",
		}),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bucket_ws_connections",
			Help: "Active WebSocket connections",
		}),
		wsMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bucket_ws_messages_total",
			Help: "WebSocket messages by direction",
		}, []string{"direction"}),
	}
}

// RecordCommand records one executed command.
func (c *Collector) RecordCommand(command string, err error, latency time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	c.commands.WithLabelValues(command, result).Inc()
	c.commandLatency.WithLabelValues(command).Observe(latency.Seconds())
}

// RecordOutcome records a round reaching a terminal status.
func (c *Collector) RecordOutcome(status string) {
	if c == nil {
		return
	}
	c.outcomes.WithLabelValues(status).Inc()
}

// RecordTick records a countdown tick.
func (c *Collector) RecordTick() {
	if c == nil {
		return
	}
	c.ticks.Inc()
}

// RecordEventDropped records an event a subscriber could not take.
func (c *Collector) RecordEventDropped() {
	if c == nil {
		return
	}
	c.eventsDropped.Inc()
}

// RecordJournalWrite records a journal insert.
func (c *Collector) RecordJournalWrite(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.journalWrites.WithLabelValues("error").Inc()
		return
	}
	c.journalWrites.WithLabelValues("ok").Inc()
}

// RecordSessions sets the open session count.
func (c *Collector) RecordSessions(n int) {
	if c == nil {
		return
	}
	c.sessions.Set(float64(n))
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int) {
	if c == nil {
		return
	}
	c.wsConnections.Add(float64(delta))
}

// RecordWSMessage records WebSocket messages.
func (c *Collector) RecordWSMessage(incoming bool) {
	if c == nil {
		return
	}
	if incoming {
		c.wsMessages.WithLabelValues("in").Inc()
	} else {
		c.wsMessages.WithLabelValues("out").Inc()
	}
}

// Registry exposes the registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns metrics in Prometheus format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

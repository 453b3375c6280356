package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unisane/unisane-go/pkg/daemon"
	"github.com/unisane/unisane-go/pkg/worker"
)

const namespace = "unisane"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	jobs            *prometheus.CounterVec
	jobDuration     prometheus.Histogram
	queueDepth      prometheus.Gauge
}

// New creates the collectors and registers them together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "commands_total",
			Help:      "Daemon commands handled, by command and error kind.",
		}, []string{"command", "error"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "daemon",
			Name:      "command_duration_seconds",
			Help:      "Time spent handling a daemon command.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"command"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Backend calls run on the worker, by outcome.",
		}, []string{"result"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Time spent in one backend call on the worker.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Backend calls waiting for the worker.",
		}),
	}
	m.registry.MustRegister(
		m.commands,
		m.commandDuration,
		m.jobs,
		m.jobDuration,
		m.queueDepth,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveCommand records one daemon command.
func (m *Metrics) ObserveCommand(command string, d time.Duration, errKind string) {
	m.commands.WithLabelValues(command, errKind).Inc()
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// ObserveJob records one worker job.
func (m *Metrics) ObserveJob(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.jobs.WithLabelValues(result).Inc()
	m.jobDuration.Observe(d.Seconds())
}

// SetQueueDepth records the worker's pending job count.
func (m *Metrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Compile-time interface satisfaction checks.
var (
	_ daemon.Observer = (*Metrics)(nil)
	_ worker.Observer = (*Metrics)(nil)
)

// Package smtpmetrics instruments session and command activity with
// prometheus collectors, following the registration pattern the teacher
// uses for its own long-running daemons
// (daemon/maintenance/perfmetrics.go, daemon/httpproxy/httpproxy.go's
// guarded prometheus.NewHistogramVec + prometheus.Register).
package smtpmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is nil-safe: every method tolerates a nil receiver so that a
// caller who never wants metrics (misc.EnablePrometheusIntegration's
// equivalent here is simply "don't call New") pays nothing.
type Metrics struct {
	sessionsCreated   prometheus.Counter
	sessionsFailed    *prometheus.CounterVec
	commandsExecuted  *prometheus.CounterVec
	commandDuration   *prometheus.HistogramVec
	startTLSAttempted prometheus.Counter
	startTLSSucceeded prometheus.Counter
}

// New builds and registers a Metrics instance against reg. Registration
// failures (e.g. a collector already registered under this name) are
// logged by the caller via the returned error; metrics collection is
// still usable afterwards using whatever did register.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asmtp_sessions_created_total",
			Help: "Total number of SMTP sessions successfully created.",
		}),
		sessionsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asmtp_sessions_failed_total",
			Help: "Total number of SMTP session creation attempts that failed, by failure type.",
		}, []string{"failure_type"}),
		commandsExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asmtp_commands_executed_total",
			Help: "Total number of commands executed, by command type and outcome.",
		}, []string{"command_type", "outcome"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "asmtp_command_duration_seconds",
			Help:    "Round-trip latency of a command execution, by command type.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"command_type"}),
		startTLSAttempted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asmtp_starttls_attempted_total",
			Help: "Total number of STARTTLS upgrades attempted.",
		}),
		startTLSSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asmtp_starttls_succeeded_total",
			Help: "Total number of STARTTLS upgrades that completed the TLS handshake.",
		}),
	}
	collectors := []prometheus.Collector{
		m.sessionsCreated, m.sessionsFailed, m.commandsExecuted,
		m.commandDuration, m.startTLSAttempted, m.startTLSSucceeded,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return m, err
		}
	}
	return m, nil
}

// SessionCreated increments the sessions-created counter.
func (m *Metrics) SessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.Inc()
}

// SessionFailed increments the sessions-failed counter for failureType.
func (m *Metrics) SessionFailed(failureType string) {
	if m == nil {
		return
	}
	m.sessionsFailed.WithLabelValues(failureType).Inc()
}

// CommandExecuted implements the smtpclient package's sessionMetricsHook:
// it records the outcome and latency of one command execution.
func (m *Metrics) CommandExecuted(commandType string, d time.Duration, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.commandsExecuted.WithLabelValues(commandType, outcome).Inc()
	if d > 0 {
		m.commandDuration.WithLabelValues(commandType).Observe(d.Seconds())
	}
}

// StartTLSAttempted increments the STARTTLS-attempted counter.
func (m *Metrics) StartTLSAttempted() {
	if m == nil {
		return
	}
	m.startTLSAttempted.Inc()
}

// StartTLSSucceeded increments the STARTTLS-succeeded counter.
func (m *Metrics) StartTLSSucceeded() {
	if m == nil {
		return
	}
	m.startTLSSucceeded.Inc()
}

package btserial

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus collectors for a Conn. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ConnectAttempts *prometheus.CounterVec
	Disconnects     *prometheus.CounterVec
	BytesRead       prometheus.Counter
	BytesWritten    prometheus.Counter
	WriteErrors     prometheus.Counter
	Connected       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when reg
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btserial",
			Name:      "connect_attempts_total",
			Help:      "Connect calls by outcome (primary, fallback, failed).",
		}, []string{"outcome"}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "btserial",
			Name:      "disconnects_total",
			Help:      "Disconnections by cause (local, remote).",
		}, []string{"cause"}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btserial",
			Name:      "read_bytes_total",
			Help:      "Bytes delivered to the read callback.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btserial",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the transport.",
		}),
		WriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "btserial",
			Name:      "write_errors_total",
			Help:      "Failed Write calls.",
		}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "btserial",
			Name:      "connected",
			Help:      "1 while a connection is active.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ConnectAttempts, m.Disconnects, m.BytesRead, m.BytesWritten, m.WriteErrors, m.Connected)
	}
	return m
}

func (m *Metrics) connectResult(outcome string) {
	if m == nil {
		return
	}
	m.ConnectAttempts.WithLabelValues(outcome).Inc()
	if outcome != "failed" {
		m.Connected.Set(1)
	}
}

func (m *Metrics) disconnected(byRemote bool) {
	if m == nil {
		return
	}
	cause := "local"
	if byRemote {
		cause = "remote"
	}
	m.Disconnects.WithLabelValues(cause).Inc()
	m.Connected.Set(0)
}

func (m *Metrics) read(n int) {
	if m == nil {
		return
	}
	m.BytesRead.Add(float64(n))
}

func (m *Metrics) wrote(n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.WriteErrors.Inc()
		return
	}
	m.BytesWritten.Add(float64(n))
}

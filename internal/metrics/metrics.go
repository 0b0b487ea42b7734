// Package metrics provides Prometheus metrics for the repository.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DoctaneDMS/dms-service-sql/internal/database/statement"
)

// Metrics holds all Prometheus metrics for the repository. Every method is
// safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Database metrics
	StatementsTotal      *prometheus.CounterVec
	StatementErrorsTotal *prometheus.CounterVec
	OpenConnections      prometheus.GaugeFunc

	// Blob store metrics
	BlobBytesWritten prometheus.Counter

	// Service metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Integrity sweep results
	IntegrityTotal *prometheus.CounterVec
}

// New creates the metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{Registry: reg}

	m.StatementsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dms_statements_total",
			Help: "Total number of SQL statements executed",
		},
		[]string{"kind"},
	)

	m.StatementErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dms_statement_errors_total",
			Help: "Total number of SQL statements that failed",
		},
		[]string{"kind"},
	)

	m.OpenConnections = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "dms_statement_open_connections",
			Help: "Pooled connections held by open result streams",
		},
		func() float64 { return float64(statement.OpenConnections()) },
	)

	m.BlobBytesWritten = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "dms_blob_bytes_written_total",
			Help: "Total number of payload bytes written to the blob store",
		},
	)

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dms_operations_total",
			Help: "Total number of repository operations",
		},
		[]string{"operation", "status"},
	)

	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dms_operation_duration_seconds",
			Help:    "Duration of repository operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.IntegrityTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dms_integrity_checks_total",
			Help: "Document versions checked by the integrity sweep, by result",
		},
		[]string{"result"},
	)

	return m
}

// ObserveStatement counts one statement of the given kind ("exec" or
// "query").
func (m *Metrics) ObserveStatement(kind string, err error) {
	if m == nil {
		return
	}
	m.StatementsTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.StatementErrorsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveOperation records a service operation that started at start.
func (m *Metrics) ObserveOperation(name string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(name, status).Inc()
	m.OperationDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

// AddBlobBytes counts payload bytes written.
func (m *Metrics) AddBlobBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.BlobBytesWritten.Add(float64(n))
}

// ObserveIntegrity adds the results of an integrity sweep.
func (m *Metrics) ObserveIntegrity(ok, failed, fixed, errors int) {
	if m == nil {
		return
	}
	m.IntegrityTotal.WithLabelValues("ok").Add(float64(ok))
	m.IntegrityTotal.WithLabelValues("failed").Add(float64(failed))
	m.IntegrityTotal.WithLabelValues("fixed").Add(float64(fixed))
	m.IntegrityTotal.WithLabelValues("error").Add(float64(errors))
}

// WriteTextfile dumps the registry in the text exposition format, for
// pickup by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

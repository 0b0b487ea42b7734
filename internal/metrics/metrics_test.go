package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveStatement(t *testing.T) {
	m := New()

	m.ObserveStatement("exec", nil)
	m.ObserveStatement("exec", errors.New("boom"))
	m.ObserveStatement("query", nil)

	if got := testutil.ToFloat64(m.StatementsTotal.WithLabelValues("exec")); got != 2 {
		t.Errorf("exec statements = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StatementErrorsTotal.WithLabelValues("exec")); got != 1 {
		t.Errorf("exec errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.StatementsTotal.WithLabelValues("query")); got != 1 {
		t.Errorf("query statements = %v, want 1", got)
	}
}

func TestObserveOperation(t *testing.T) {
	m := New()

	m.ObserveOperation("CreateDocument", time.Now(), nil)
	m.ObserveOperation("CreateDocument", time.Now(), errors.New("boom"))

	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("CreateDocument", "ok")); got != 1 {
		t.Errorf("ok operations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OperationsTotal.WithLabelValues("CreateDocument", "error")); got != 1 {
		t.Errorf("error operations = %v, want 1", got)
	}
}

func TestObserveIntegrity(t *testing.T) {
	m := New()
	m.ObserveIntegrity(3, 2, 1, 0)

	want := `
# HELP dms_integrity_checks_total Document versions checked by the integrity sweep, by result
# TYPE dms_integrity_checks_total counter
dms_integrity_checks_total{result="error"} 0
dms_integrity_checks_total{result="failed"} 2
dms_integrity_checks_total{result="fixed"} 1
dms_integrity_checks_total{result="ok"} 3
`
	if err := testutil.CollectAndCompare(m.IntegrityTotal, strings.NewReader(want)); err != nil {
		t.Errorf("CollectAndCompare() error = %v", err)
	}
}

func TestOpenConnectionsGauge(t *testing.T) {
	m := New()
	if got := testutil.ToFloat64(m.OpenConnections); got != 0 {
		t.Errorf("open connections = %v, want 0", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveStatement("exec", nil)
	m.ObserveOperation("x", time.Now(), nil)
	m.AddBlobBytes(10)
	m.ObserveIntegrity(1, 1, 1, 1)
	if err := m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("WriteTextfile() error = %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.AddBlobBytes(42)

	path := filepath.Join(t.TempDir(), "dms.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading textfile: %v", err)
	}
	if !strings.Contains(string(data), "dms_blob_bytes_written_total 42") {
		t.Errorf("textfile missing blob bytes counter:\n%s", data)
	}
}

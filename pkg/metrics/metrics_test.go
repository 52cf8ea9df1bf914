package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQuery(t *testing.T) {
	m := New()
	m.ObserveQuery(3, 0.001)
	m.ObserveQuery(0, 0.002)
	m.ObserveQuery(0, 0.002)

	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues(ResultMatch)); got != 1 {
		t.Errorf("match queries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal.WithLabelValues(ResultEmpty)); got != 2 {
		t.Errorf("empty queries = %v, want 2", got)
	}
}

func TestObserveQueryNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveQuery(1, 0.1)
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.DocsLoadedTotal.Add(5)
	if got := testutil.ToFloat64(b.DocsLoadedTotal); got != 0 {
		t.Errorf("second registry saw %v documents, want 0", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IndexTerms.Set(42)
	path := filepath.Join(t.TempDir(), "invindex.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "invindex_index_terms 42") {
		t.Errorf("textfile missing gauge:\n%s", data)
	}
}

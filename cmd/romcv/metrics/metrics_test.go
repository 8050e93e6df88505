package metrics

import (
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_RegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "Kriging")

	m.RecordMaterialize(0.01)
	m.RecordPredict(1.5)
	m.RecordPredict(2.5)
	m.SetRunDuration(4)
	m.SetOutputError("temperature", 3.2, 0.04)
	m.SetOutputError("flux", math.NaN(), 1.1)
	m.RecordError("dispatch", "backend")

	if got := testutil.ToFloat64(m.FoldsCompleted); got != 2 {
		t.Errorf("FoldsCompleted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.OutputMSE.WithLabelValues("temperature")); got != 0.04 {
		t.Errorf("OutputMSE = %v, want 0.04", got)
	}
	if got := testutil.ToFloat64(m.OutputMRE.WithLabelValues("flux")); !math.IsNaN(got) {
		t.Errorf("OutputMRE(flux) = %v, want NaN", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("dispatch", "backend")); got != 1 {
		t.Errorf("ErrorsTotal = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) != 7 {
		t.Errorf("gathered %d metric families, want 7", len(families))
	}
}

func TestNew_IndependentRegistries(t *testing.T) {
	New(prometheus.NewRegistry(), "SVM")
	New(prometheus.NewRegistry(), "SVM")
}

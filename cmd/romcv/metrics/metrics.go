// Package metrics provides Prometheus instrumentation for cross-validation
// runs.
//
// Metrics exposed:
//   - romcv_fold_materialize_seconds: Histogram of fold artifact write duration
//   - romcv_fold_predict_seconds: Histogram of backend invocation duration
//   - romcv_folds_completed_total: Counter of folds whose prediction arrived
//   - romcv_run_duration_seconds: Gauge of the last run's wall time
//   - romcv_output_mse: Gauge of the last run's mean squared error per output
//   - romcv_output_mre_percent: Gauge of the last run's mean relative error
//     per output, NaN when poisoned
//   - romcv_errors_total: Counter of errors by component and reason
//
// All metrics carry the method label.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of a run.
type Metrics struct {
	FoldMaterializeSeconds prometheus.Histogram
	FoldPredictSeconds     prometheus.Histogram
	FoldsCompleted         prometheus.Counter
	RunDurationSeconds     prometheus.Gauge
	OutputMSE              *prometheus.GaugeVec
	OutputMRE              *prometheus.GaugeVec
	ErrorsTotal            *prometheus.CounterVec
}

// New creates the metrics of method and registers them with reg.
func New(reg prometheus.Registerer, method string) *Metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"method": method}

	return &Metrics{
		FoldMaterializeSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "romcv_fold_materialize_seconds",
			Help:        "Time spent writing fold artifacts",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		FoldPredictSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "romcv_fold_predict_seconds",
			Help:        "Time spent in the regression backend per fold",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 10),
		}),

		FoldsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name:        "romcv_folds_completed_total",
			Help:        "Folds whose prediction artifact was produced",
			ConstLabels: labels,
		}),

		RunDurationSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name:        "romcv_run_duration_seconds",
			Help:        "Wall time of the last cross-validation run",
			ConstLabels: labels,
		}),

		OutputMSE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "romcv_output_mse",
			Help:        "Mean squared error per output of the last run",
			ConstLabels: labels,
		}, []string{"output"}),

		OutputMRE: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "romcv_output_mre_percent",
			Help:        "Mean relative error in percent per output of the last run",
			ConstLabels: labels,
		}, []string{"output"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        "romcv_errors_total",
			Help:        "Total number of errors by component and reason",
			ConstLabels: labels,
		}, []string{"component", "reason"}),
	}
}

// RecordMaterialize records the time spent writing one fold.
func (m *Metrics) RecordMaterialize(seconds float64) {
	m.FoldMaterializeSeconds.Observe(seconds)
}

// RecordPredict records the time spent in the backend for one fold.
func (m *Metrics) RecordPredict(seconds float64) {
	m.FoldPredictSeconds.Observe(seconds)
	m.FoldsCompleted.Inc()
}

// SetRunDuration sets the duration of the last run.
func (m *Metrics) SetRunDuration(seconds float64) {
	m.RunDurationSeconds.Set(seconds)
}

// SetOutputError sets the reduced errors of one output.
func (m *Metrics) SetOutputError(output string, mrePercent, mse float64) {
	m.OutputMRE.WithLabelValues(output).Set(mrePercent)
	m.OutputMSE.WithLabelValues(output).Set(mse)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

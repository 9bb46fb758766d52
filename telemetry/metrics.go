package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	stepDuration *prometheus.HistogramVec
	stepRuns     *prometheus.CounterVec
	rowsIn       *prometheus.GaugeVec
	rowsOut      *prometheus.GaugeVec
	modelMetric  *prometheus.GaugeVec
	lastSuccess  prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nycprice",
			Name:      "step_duration_seconds",
			Help:      "Wall time of each pipeline step.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}, []string{"step"}),
		stepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nycprice",
			Name:      "step_runs_total",
			Help:      "Pipeline step executions by outcome.",
		}, []string{"step", "outcome"}),
		rowsIn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nycprice",
			Name:      "step_rows_in",
			Help:      "Rows read by the last execution of a step.",
		}, []string{"step"}),
		rowsOut: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nycprice",
			Name:      "step_rows_out",
			Help:      "Rows written by the last execution of a step.",
		}, []string{"step"}),
		modelMetric: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nycprice",
			Name:      "model_metric",
			Help:      "Model quality metrics by step and metric name.",
		}, []string{"step", "metric"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nycprice",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last pipeline run that finished without error.",
		}),
	}
	for _, c := range []prometheus.Collector{m.stepDuration, m.stepRuns, m.rowsIn, m.rowsOut, m.modelMetric, m.lastSuccess} {
		if err := m.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "register collector")
		}
	}
	return m, nil
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveStep records duration and outcome of one step execution.
func (m *Metrics) ObserveStep(step string, d time.Duration, err error) {
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.stepRuns.WithLabelValues(step, outcome).Inc()
}

// SetRows records the row counts of a step.
func (m *Metrics) SetRows(step string, in, out int) {
	m.rowsIn.WithLabelValues(step).Set(float64(in))
	m.rowsOut.WithLabelValues(step).Set(float64(out))
}

// SetModelMetric records a model quality value such as mae or r2.
func (m *Metrics) SetModelMetric(step, metric string, value float64) {
	m.modelMetric.WithLabelValues(step, metric).Set(value)
}

// MarkSuccess stamps the time of a successful pipeline run.
func (m *Metrics) MarkSuccess(t time.Time) {
	m.lastSuccess.Set(float64(t.Unix()))
}

// WriteTextfile writes every metric in the node_exporter textfile format.
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, m.registry), "write metrics to %s", path)
}

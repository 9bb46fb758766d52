package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

func TestMetrics(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)

	m.ObserveStep("download", 2*time.Second, nil)
	m.ObserveStep("data_check", time.Second, errors.New("check failed"))
	m.ObserveStep("data_check", time.Second, nil)
	m.SetRows("basic_cleaning", 13, 11)
	m.SetModelMetric("train_random_forest", "mae", 33.5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepRuns.WithLabelValues("data_check", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stepRuns.WithLabelValues("data_check", OutcomeSuccess)))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.rowsOut.WithLabelValues("basic_cleaning")))
	assert.Equal(t, 13.0, testutil.ToFloat64(m.rowsIn.WithLabelValues("basic_cleaning")))
	assert.Equal(t, 33.5, testutil.ToFloat64(m.modelMetric.WithLabelValues("train_random_forest", "mae")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.stepDuration))

	expected := `
# HELP nycprice_step_rows_out Rows written by the last execution of a step.
# TYPE nycprice_step_rows_out gauge
nycprice_step_rows_out{step="basic_cleaning"} 11
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "nycprice_step_rows_out"))
}

func TestWriteTextfile(t *testing.T) {
	m, err := NewMetrics()
	require.NoError(t, err)
	m.MarkSuccess(time.Unix(1700000000, 0))

	path := filepath.Join(t.TempDir(), "nycprice.prom")
	require.NoError(t, m.WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "nycprice_last_success_timestamp_seconds 1.7e+09")

	assert.NoError(t, m.WriteTextfile(""))
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), DefaultTracingConfig())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	t.Setenv("OTEL_SDK_DISABLED", "true")
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	shutdown, err = InitTracing(context.Background(), cfg)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracingRejectsProtocol(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.Protocol = "carrier-pigeon"
	_, err := InitTracing(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"always_on", sdktrace.AlwaysSample().Description()},
		{"always_off", sdktrace.NeverSample().Description()},
		{"traceidratio", sdktrace.TraceIDRatioBased(0.5).Description()},
		{"unknown", sdktrace.ParentBased(sdktrace.AlwaysSample()).Description()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sampler(tt.name, 0.5).Description())
		})
	}
}

package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/YuminosukeSato/nycprice/dataset/datasettest"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sample1.csv":
			_, _ = w.Write([]byte(datasettest.SampleCSV))
		case "/empty.csv":
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	data, err := Fetch(context.Background(), srv.URL+"/sample1.csv")
	require.NoError(t, err)
	assert.Equal(t, datasettest.SampleCSV, string(data))

	_, err = Fetch(context.Background(), srv.URL+"/missing.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	_, err = Fetch(context.Background(), srv.URL+"/empty.csv")
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestFetchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.csv")
	require.NoError(t, os.WriteFile(path, []byte(datasettest.SampleCSV), 0o600))

	data, err := Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, data, len(datasettest.SampleCSV))

	data, err = Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Len(t, data, len(datasettest.SampleCSV))

	_, err = Fetch(context.Background(), filepath.Join(dir, "nope.csv"))
	assert.Error(t, err)

	_, err = Fetch(context.Background(), " ")
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestFetchMaxBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.csv")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	_, err := NewFetcher(WithMaxBytes(5)).Fetch(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestFetchHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFetcher(WithHTTPClient(srv.Client())).Fetch(ctx, srv.URL)
	assert.Error(t, err)
}

func TestFetchTracesRequests(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans)))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(sdktrace.NewTracerProvider())
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	})

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
		_, _ = w.Write([]byte(datasettest.SampleCSV))
	}))
	defer srv.Close()

	_, err := NewFetcher().Fetch(context.Background(), srv.URL+"/sample1.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, traceparent)
	assert.NotEmpty(t, spans.Ended())
}

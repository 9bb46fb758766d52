// Package download fetches the raw listings sample.
package download

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
)

const (
	// ArtifactName is the tracking name of the raw sample.
	ArtifactName = "sample.csv"
	// ArtifactType is the tracking type of the raw sample.
	ArtifactType = "raw_data"
	// ArtifactDescription describes the raw sample artifact.
	ArtifactDescription = "Raw file as downloaded"
)

// DefaultMaxBytes caps the size of a downloaded sample.
const DefaultMaxBytes int64 = 512 << 20

// Fetcher reads a sample from an http(s) URL, a file:// URL or a local path.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the default client, which times out after a minute
// and traces each request.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithMaxBytes limits the payload size.
func WithMaxBytes(n int64) Option {
	return func(f *Fetcher) { f.maxBytes = n }
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout:   time.Minute,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch is NewFetcher().Fetch.
func Fetch(ctx context.Context, source string) ([]byte, error) {
	return NewFetcher().Fetch(ctx, source)
}

// Fetch returns the bytes of source. Empty payloads and non-2xx responses are errors.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.TrimSpace(source) == "" {
		return nil, errors.NewValidationError("etl.sample", "source is empty", source)
	}
	logger := log.GetLoggerWithName("download")
	start := time.Now()

	var (
		data []byte
		err  error
	)
	u, perr := url.Parse(source)
	switch {
	case perr == nil && (u.Scheme == "http" || u.Scheme == "https"):
		data, err = f.fetchHTTP(ctx, source)
	case perr == nil && u.Scheme == "file":
		data, err = f.fetchFile(u.Path)
	default:
		data, err = f.fetchFile(source)
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.NewModelError("download.Fetch", "empty payload from "+source, errors.ErrEmptyData)
	}

	logger.Info("Sample fetched",
		"source", source,
		"bytes", len(data),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", source)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", source)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Newf("get %s: unexpected status %s", source, resp.Status)
	}
	return f.readLimited(resp.Body, source)
}

func (f *Fetcher) fetchFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open sample %s", path)
	}
	defer fh.Close()
	return f.readLimited(fh, path)
}

func (f *Fetcher) readLimited(r io.Reader, source string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", source)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, errors.Newf("read %s: payload exceeds %d bytes", source, f.maxBytes)
	}
	return data, nil
}

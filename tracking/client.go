package tracking

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
)

const tracerName = "github.com/YuminosukeSato/nycprice/tracking"

// Client creates runs and manages artifact aliases.
type Client struct {
	store    Store
	registry Registry
	cacheDir string
	tracer   trace.Tracer
	now      func() time.Time
	logger   log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCacheDir sets where downloaded artifacts are materialised.
func WithCacheDir(dir string) ClientOption {
	return func(c *Client) { c.cacheDir = dir }
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) ClientOption {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient pairs a blob store with a registry.
func NewClient(store Store, registry Registry, opts ...ClientOption) *Client {
	c := &Client{
		store:    store,
		registry: registry,
		cacheDir: filepath.Join(os.TempDir(), "nycprice-artifacts"),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		logger:   log.GetLoggerWithName("tracking"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the metadata registry.
func (c *Client) Registry() Registry { return c.registry }

func (c *Client) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "tracking."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Init starts a run and persists it in the running state.
func (c *Client) Init(ctx context.Context, opts RunOptions) (_ *Run, err error) {
	ctx, span := c.start(ctx, "init",
		attribute.String("tracking.project", opts.Project),
		attribute.String("tracking.job_type", opts.JobType))
	defer func() { endSpan(span, err) }()

	if opts.Project == "" {
		return nil, errors.NewValidationError("project", "must not be empty", opts.Project)
	}
	rec := RunRecord{
		ID:        uuid.NewString(),
		Project:   opts.Project,
		Group:     opts.Group,
		JobType:   opts.JobType,
		Config:    opts.Config,
		State:     RunRunning,
		Summary:   map[string]float64{},
		StartedAt: c.now().UTC(),
	}
	if err := c.registry.CreateRun(ctx, &rec); err != nil {
		return nil, errors.Wrap(err, "create run")
	}
	span.SetAttributes(attribute.String(log.RunIDKey, rec.ID))
	c.logger.Info("Run started",
		log.RunIDKey, rec.ID,
		log.StepKey, rec.JobType,
		"tracking.group", rec.Group)
	return &Run{client: c, rec: rec}, nil
}

// Alias attaches alias to the version named by ref ("name:vN" or "name:alias").
func (c *Client) Alias(ctx context.Context, ref, alias string) (err error) {
	ctx, span := c.start(ctx, "alias", attribute.String(log.ArtifactKey, ref), attribute.String("tracking.alias", alias))
	defer func() { endSpan(span, err) }()

	if err := validateAlias(alias); err != nil {
		return err
	}
	name, version, err := ParseRef(ref)
	if err != nil {
		return err
	}
	if err := c.registry.SetAlias(ctx, name, version, alias); err != nil {
		return err
	}
	c.logger.Info("Alias set", log.ArtifactKey, name+":"+version, "tracking.alias", alias)
	return nil
}

// Artifacts lists every version of name.
func (c *Client) Artifacts(ctx context.Context, name string) ([]ArtifactVersion, error) {
	return c.registry.List(ctx, name)
}

// Resolve looks up a reference without recording lineage.
func (c *Client) Resolve(ctx context.Context, ref string) (*ArtifactVersion, error) {
	name, version, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	return c.registry.Resolve(ctx, name, version)
}

// Close releases the registry.
func (c *Client) Close() error {
	return c.registry.Close()
}

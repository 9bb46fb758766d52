package tracking

import (
	"context"
	"io"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
)

// Run is one execution of a pipeline step. Methods are safe for concurrent use.
type Run struct {
	client *Client

	mu  sync.Mutex
	rec RunRecord
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.rec.ID }

// Record returns a snapshot of the run state.
func (r *Run) Record() RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *cloneRun(&r.rec)
}

// Log appends a history row and copies its values into the summary.
func (r *Run) Log(values map[string]float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.History = append(r.rec.History, maps.Clone(values))
	maps.Copy(r.rec.Summary, values)
}

// SetSummary sets one summary value.
func (r *Run) SetSummary(key string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Summary[key] = value
}

// Summary returns a copy of the summary.
func (r *Run) Summary() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.rec.Summary)
}

// UseArtifact resolves ref and records it as an input of the run.
func (r *Run) UseArtifact(ctx context.Context, ref string) (_ *ArtifactRef, err error) {
	ctx, span := r.client.start(ctx, "use_artifact",
		attribute.String(log.RunIDKey, r.rec.ID), attribute.String(log.ArtifactKey, ref))
	defer func() { endSpan(span, err) }()

	v, err := r.client.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.rec.Used = appendAlias(r.rec.Used, v.Ref())
	r.mu.Unlock()

	r.client.logger.Debug("Artifact used", log.RunIDKey, r.rec.ID, log.ArtifactKey, v.Ref())
	return &ArtifactRef{Version: v, client: r.client}, nil
}

// LogArtifact uploads a's files and registers a new version. When a version of
// the same name already holds identical files, that version is returned instead
// and the latest alias moves onto it.
func (r *Run) LogArtifact(ctx context.Context, a *Artifact) (_ *ArtifactVersion, err error) {
	ctx, span := r.client.start(ctx, "log_artifact",
		attribute.String(log.RunIDKey, r.rec.ID), attribute.String(log.ArtifactKey, a.Name))
	defer func() { endSpan(span, err) }()

	if a.Name == "" || a.Type == "" {
		return nil, errors.NewValidationError("artifact", "name and type are required", a.Name)
	}
	digest, files, err := a.digest()
	if err != nil {
		return nil, err
	}

	existing, err := r.client.registry.FindByDigest(ctx, a.Name, digest)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !existing.HasAlias(LatestAlias) {
			if err := r.client.registry.SetAlias(ctx, a.Name, existing.Version(), LatestAlias); err != nil {
				return nil, err
			}
			existing.Aliases = appendAlias(existing.Aliases, LatestAlias)
		}
		r.recordLogged(existing)
		r.client.logger.Info("Artifact unchanged, reusing version",
			log.RunIDKey, r.rec.ID, log.ArtifactKey, existing.Ref())
		return existing, nil
	}

	for _, f := range files {
		e, _ := a.entry(f.Path)
		rc, err := e.open()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", f.Path)
		}
		err = r.client.store.Put(ctx, blobKey(f.Digest), rc, f.Size)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "upload %s", f.Path)
		}
	}

	v := &ArtifactVersion{
		Name:        a.Name,
		Type:        a.Type,
		Digest:      digest,
		Description: a.Description,
		Metadata:    a.Metadata,
		Files:       files,
		RunID:       r.rec.ID,
		CreatedAt:   r.client.now().UTC(),
	}
	if err := r.client.registry.CreateArtifact(ctx, v); err != nil {
		return nil, err
	}
	r.recordLogged(v)
	r.client.logger.Info("Artifact logged",
		log.RunIDKey, r.rec.ID,
		log.ArtifactKey, v.Ref(),
		"tracking.artifact_type", v.Type,
		"tracking.files", len(v.Files))
	return v, nil
}

func (r *Run) recordLogged(v *ArtifactVersion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rec.Logged = appendAlias(r.rec.Logged, v.Ref())
}

// Finish marks the run finished, or failed when runErr is not nil, and persists it.
func (r *Run) Finish(ctx context.Context, runErr error) (err error) {
	ctx, span := r.client.start(ctx, "finish", attribute.String(log.RunIDKey, r.rec.ID))
	defer func() { endSpan(span, err) }()

	r.mu.Lock()
	if r.rec.State != RunRunning {
		r.mu.Unlock()
		return errors.Newf("run %s already %s", r.rec.ID, r.rec.State)
	}
	r.rec.State = RunFinished
	if runErr != nil {
		r.rec.State = RunFailed
		r.rec.Error = runErr.Error()
	}
	r.rec.FinishedAt = r.client.now().UTC()
	rec := cloneRun(&r.rec)
	r.mu.Unlock()

	if err := r.client.registry.UpdateRun(ctx, rec); err != nil {
		return errors.Wrap(err, "persist run")
	}
	r.client.logger.Info("Run finished",
		log.RunIDKey, rec.ID,
		log.StepKey, rec.JobType,
		"tracking.state", string(rec.State),
		log.DurationMsKey, rec.FinishedAt.Sub(rec.StartedAt).Milliseconds())
	return nil
}

// ArtifactRef is a resolved artifact version that can be downloaded.
type ArtifactRef struct {
	Version *ArtifactVersion
	client  *Client
}

// Download materialises every file under the cache directory and returns the
// version directory. Files already present with the right size are kept.
func (a *ArtifactRef) Download(ctx context.Context) (string, error) {
	dir := filepath.Join(a.client.cacheDir, a.Version.Name, a.Version.Version())
	for _, f := range a.Version.Files {
		dst := filepath.Join(dir, filepath.FromSlash(f.Path))
		if st, err := os.Stat(dst); err == nil && st.Size() == f.Size {
			continue
		}
		if err := a.fetch(ctx, f, dst); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func (a *ArtifactRef) fetch(ctx context.Context, f ArtifactFile, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "download %s", f.Path)
	}
	rc, err := a.client.store.Get(ctx, blobKey(f.Digest))
	if err != nil {
		return errors.Wrapf(err, "download %s", f.Path)
	}
	defer rc.Close()
	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "download %s", f.Path)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Wrapf(err, "download %s", f.Path)
	}
	return errors.Wrapf(out.Close(), "download %s", f.Path)
}

// File downloads the artifact and returns the path of its single file.
func (a *ArtifactRef) File(ctx context.Context) (string, error) {
	if len(a.Version.Files) != 1 {
		return "", errors.NewValueError("tracking.File",
			a.Version.Ref()+" does not hold exactly one file, use Download")
	}
	dir, err := a.Download(ctx)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.FromSlash(a.Version.Files[0].Path)), nil
}

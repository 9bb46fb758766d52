package tracking

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Registry persists run records and artifact version metadata.
type Registry interface {
	CreateRun(ctx context.Context, run *RunRecord) error
	UpdateRun(ctx context.Context, run *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)

	// FindByDigest returns the version of name with the given content digest,
	// or nil when there is none.
	FindByDigest(ctx context.Context, name, digest string) (*ArtifactVersion, error)
	// CreateArtifact assigns the next index of v.Name to v, stores it and moves
	// the latest alias onto it.
	CreateArtifact(ctx context.Context, v *ArtifactVersion) error
	// Resolve finds a version by "vN", alias or "latest".
	Resolve(ctx context.Context, name, version string) (*ArtifactVersion, error)
	// List returns every version of name ordered by index.
	List(ctx context.Context, name string) ([]ArtifactVersion, error)
	// SetAlias moves alias onto version of name, removing it from any other version.
	SetAlias(ctx context.Context, name, version, alias string) error

	Close() error
}

// RegistryFileName is the index written by FileRegistry.
const RegistryFileName = "registry.json"

type fileIndex struct {
	Runs      map[string]*RunRecord         `json:"runs"`
	Artifacts map[string][]*ArtifactVersion `json:"artifacts"`
}

// FileRegistry keeps the registry as a single JSON document. Every mutation
// rewrites the file atomically.
type FileRegistry struct {
	mu    sync.Mutex
	path  string
	index fileIndex
}

// NewFileRegistry loads dir/registry.json, starting empty when it does not exist.
func NewFileRegistry(dir string) (*FileRegistry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create registry directory %s", dir)
	}
	r := &FileRegistry{
		path: filepath.Join(dir, RegistryFileName),
		index: fileIndex{
			Runs:      map[string]*RunRecord{},
			Artifacts: map[string][]*ArtifactVersion{},
		},
	}
	f, err := os.Open(r.path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "open registry")
	}
	defer f.Close()
	if err := json.UnmarshalRead(f, &r.index); err != nil {
		return nil, errors.Wrapf(err, "decode %s", r.path)
	}
	if r.index.Runs == nil {
		r.index.Runs = map[string]*RunRecord{}
	}
	if r.index.Artifacts == nil {
		r.index.Artifacts = map[string][]*ArtifactVersion{}
	}
	return r, nil
}

func (r *FileRegistry) save() error {
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".registry-*")
	if err != nil {
		return errors.Wrap(err, "save registry")
	}
	if err := json.MarshalWrite(tmp, &r.index, json.Deterministic(true), jsontext.WithIndent("  ")); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, "encode registry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, "save registry")
	}
	return errors.Wrap(os.Rename(tmp.Name(), r.path), "save registry")
}

// CreateRun stores a new run record.
func (r *FileRegistry) CreateRun(_ context.Context, run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index.Runs[run.ID]; ok {
		return errors.Newf("run %s already exists", run.ID)
	}
	r.index.Runs[run.ID] = cloneRun(run)
	return r.save()
}

// UpdateRun replaces an existing run record.
func (r *FileRegistry) UpdateRun(_ context.Context, run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index.Runs[run.ID]; !ok {
		return errors.Newf("run %s not found", run.ID)
	}
	r.index.Runs[run.ID] = cloneRun(run)
	return r.save()
}

// GetRun returns a copy of the run record.
func (r *FileRegistry) GetRun(_ context.Context, id string) (*RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.index.Runs[id]
	if !ok {
		return nil, errors.Newf("run %s not found", id)
	}
	return cloneRun(run), nil
}

// FindByDigest returns the version of name whose content digest matches.
func (r *FileRegistry) FindByDigest(_ context.Context, name, digest string) (*ArtifactVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.index.Artifacts[name] {
		if v.Digest == digest {
			return cloneVersion(v), nil
		}
	}
	return nil, nil
}

// CreateArtifact appends v as the next version of its name.
func (r *FileRegistry) CreateArtifact(_ context.Context, v *ArtifactVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.index.Artifacts[v.Name]
	for _, old := range versions {
		old.Aliases = removeAlias(old.Aliases, LatestAlias)
	}
	v.Index = len(versions)
	v.Aliases = appendAlias(removeAlias(v.Aliases, LatestAlias), LatestAlias)
	r.index.Artifacts[v.Name] = append(versions, cloneVersion(v))
	return r.save()
}

func (r *FileRegistry) find(name, version string) *ArtifactVersion {
	versions := r.index.Artifacts[name]
	if n, ok := parseVersion(version); ok {
		if n < len(versions) {
			return versions[n]
		}
		return nil
	}
	for _, v := range versions {
		if v.HasAlias(version) {
			return v
		}
	}
	return nil
}

// Resolve finds a version by label or alias.
func (r *FileRegistry) Resolve(_ context.Context, name, version string) (*ArtifactVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.find(name, version)
	if v == nil {
		return nil, errors.NewArtifactNotFoundError(name, version)
	}
	return cloneVersion(v), nil
}

// List returns all versions of name.
func (r *FileRegistry) List(_ context.Context, name string) ([]ArtifactVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	versions := r.index.Artifacts[name]
	out := make([]ArtifactVersion, len(versions))
	for i, v := range versions {
		out[i] = *cloneVersion(v)
	}
	return out, nil
}

// SetAlias moves alias onto name:version.
func (r *FileRegistry) SetAlias(_ context.Context, name, version, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.find(name, version)
	if target == nil {
		return errors.NewArtifactNotFoundError(name, version)
	}
	for _, v := range r.index.Artifacts[name] {
		v.Aliases = removeAlias(v.Aliases, alias)
	}
	target.Aliases = appendAlias(target.Aliases, alias)
	return r.save()
}

// Close is a no-op; every mutation is already on disk.
func (r *FileRegistry) Close() error { return nil }

func removeAlias(aliases []string, alias string) []string {
	return slices.DeleteFunc(slices.Clone(aliases), func(a string) bool { return a == alias })
}

func appendAlias(aliases []string, alias string) []string {
	if slices.Contains(aliases, alias) {
		return aliases
	}
	return append(aliases, alias)
}

func cloneRun(run *RunRecord) *RunRecord {
	c := *run
	c.Summary = make(map[string]float64, len(run.Summary))
	for k, v := range run.Summary {
		c.Summary[k] = v
	}
	c.History = slices.Clone(run.History)
	c.Used = slices.Clone(run.Used)
	c.Logged = slices.Clone(run.Logged)
	return &c
}

func cloneVersion(v *ArtifactVersion) *ArtifactVersion {
	c := *v
	c.Aliases = slices.Clone(v.Aliases)
	c.Files = slices.Clone(v.Files)
	return &c
}

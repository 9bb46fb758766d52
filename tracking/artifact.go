package tracking

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

type artifactEntry struct {
	name  string
	local string
	data  []byte
}

func (e artifactEntry) open() (io.ReadCloser, error) {
	if e.local == "" {
		return io.NopCloser(bytes.NewReader(e.data)), nil
	}
	return os.Open(e.local)
}

// Artifact is a set of files about to be logged as a new version.
type Artifact struct {
	Name        string
	Type        string
	Description string
	Metadata    map[string]any

	entries []artifactEntry
}

// NewArtifact creates an empty artifact.
func NewArtifact(name, typ, description string, metadata map[string]any) *Artifact {
	return &Artifact{Name: name, Type: typ, Description: description, Metadata: metadata}
}

func (a *Artifact) add(e artifactEntry) error {
	e.name = path.Clean(filepath.ToSlash(e.name))
	if e.name == "." || path.IsAbs(e.name) || e.name == ".." || strings.HasPrefix(e.name, "../") {
		return errors.NewValidationError("artifact file", "must be a relative path", e.name)
	}
	for _, old := range a.entries {
		if old.name == e.name {
			return errors.NewValidationError("artifact file", "added twice", e.name)
		}
	}
	a.entries = append(a.entries, e)
	return nil
}

// AddFile adds the local file under name, or under its base name when name is empty.
func (a *Artifact) AddFile(local, name string) error {
	st, err := os.Stat(local)
	if err != nil {
		return errors.Wrapf(err, "add file %s", local)
	}
	if st.IsDir() {
		return errors.NewValidationError("artifact file", "is a directory, use AddDir", local)
	}
	if name == "" {
		name = filepath.Base(local)
	}
	return a.add(artifactEntry{name: name, local: local})
}

// AddDir adds every regular file below dir, keeping relative paths under prefix.
func (a *Artifact) AddDir(dir, prefix string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return a.add(artifactEntry{name: path.Join(prefix, filepath.ToSlash(rel)), local: p})
	})
}

// AddBytes adds in-memory content under name.
func (a *Artifact) AddBytes(name string, data []byte) error {
	return a.add(artifactEntry{name: name, data: data})
}

// digest hashes every file and combines the sorted (path, digest) list into the
// artifact digest. Metadata does not take part: same files, same version.
func (a *Artifact) digest() (string, []ArtifactFile, error) {
	if len(a.entries) == 0 {
		return "", nil, errors.NewValueError("tracking.LogArtifact", "artifact "+a.Name+" has no files")
	}
	files := make([]ArtifactFile, len(a.entries))
	for i, e := range a.entries {
		rc, err := e.open()
		if err != nil {
			return "", nil, errors.Wrapf(err, "read %s", e.name)
		}
		h := sha256.New()
		n, err := io.Copy(h, rc)
		rc.Close()
		if err != nil {
			return "", nil, errors.Wrapf(err, "hash %s", e.name)
		}
		files[i] = ArtifactFile{Path: e.name, Size: n, Digest: hex.EncodeToString(h.Sum(nil))}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	h := sha256.New()
	for _, f := range files {
		io.WriteString(h, f.Path)
		h.Write([]byte{0})
		io.WriteString(h, f.Digest)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), files, nil
}

func (a *Artifact) entry(name string) (artifactEntry, bool) {
	for _, e := range a.entries {
		if e.name == name {
			return e, true
		}
	}
	return artifactEntry{}, false
}

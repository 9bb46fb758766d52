package tracking

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Store holds artifact blobs by key. Implementations must be safe for concurrent use.
type Store interface {
	// Put uploads size bytes read from r under key. size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get streams the blob stored under key.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the blob stored under key.
	Delete(ctx context.Context, key string) error
}

// blobKey is the content address of a file digest.
func blobKey(digest string) string {
	return "blobs/sha256/" + digest
}

// LocalStore keeps blobs in a directory tree.
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, errors.NewValidationError("tracking.dir", "must not be empty", root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create store directory %s", root)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", errors.NewValidationError("key", "must be a relative path inside the store", key)
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes the blob through a temporary file so readers never see partial content.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return errors.Wrapf(err, "put %s", key)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "put %s", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrapf(err, "put %s", key)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), p), "put %s", key)
}

// Get opens the blob stored under key.
func (s *LocalStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", key)
	}
	return f, nil
}

// Delete removes the blob. Deleting a missing key is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

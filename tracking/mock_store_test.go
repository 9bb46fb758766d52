package tracking

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// MockStore is a mock implementation of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, _ = io.Copy(io.Discard, r)
	args := m.Called(ctx, key, size)
	return args.Error(0)
}

func (m *MockStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if rc := args.Get(0); rc != nil {
		return rc.(io.ReadCloser), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestLogArtifactUploadsByDigest(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	reg, err := NewFileRegistry(t.TempDir())
	require.NoError(t, err)
	c := NewClient(store, reg, WithCacheDir(t.TempDir()))

	store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return len(key) == len("blobs/sha256/")+64
	}), int64(5)).Return(nil).Twice()

	run, err := c.Init(ctx, RunOptions{Project: "p"})
	require.NoError(t, err)
	a := NewArtifact("pair", "dataset", "", nil)
	require.NoError(t, a.AddBytes("a.csv", []byte("aaaaa")))
	require.NoError(t, a.AddBytes("b.csv", []byte("bbbbb")))
	_, err = run.LogArtifact(ctx, a)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestLogArtifactUploadFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	reg, err := NewFileRegistry(t.TempDir())
	require.NoError(t, err)
	c := NewClient(store, reg)

	store.On("Put", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket gone"))

	run, err := c.Init(ctx, RunOptions{Project: "p"})
	require.NoError(t, err)
	a := NewArtifact("x", "dataset", "", nil)
	require.NoError(t, a.AddBytes("x.csv", []byte("x")))
	_, err = run.LogArtifact(ctx, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket gone")

	versions, err := c.Artifacts(ctx, "x")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestDownloadPropagatesStoreErrors(t *testing.T) {
	store := new(MockStore)
	c := NewClient(store, nil, WithCacheDir(t.TempDir()))
	ref := &ArtifactRef{
		Version: &ArtifactVersion{Name: "x", Files: []ArtifactFile{{Path: "x.csv", Size: 1, Digest: "d"}}},
		client:  c,
	}
	store.On("Get", mock.Anything, "blobs/sha256/d").Return(nil, errors.New("denied"))

	_, err := ref.File(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
	store.AssertExpectations(t)
}

package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

func TestStateManagerLifecycle(t *testing.T) {
	s := NewStateManager()

	err := s.RequireFitted("DecisionTreeRegressor", "Predict")
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
	if nf.Method != "Predict" {
		t.Errorf("Method = %q, want Predict", nf.Method)
	}

	s.MarkFitted(4, 100)
	if err := s.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		t.Errorf("unexpected error after MarkFitted: %v", err)
	}
	if err := s.RequireFeatures("Predict", 4); err != nil {
		t.Errorf("unexpected dimension error: %v", err)
	}
	var dim *errors.DimensionError
	if !errors.As(s.RequireFeatures("Predict", 3), &dim) {
		t.Error("expected DimensionError for 3 features")
	}

	s.Reset()
	if s.IsFitted() {
		t.Error("Reset should clear fitted state")
	}
	if f, n := s.Dims(); f != 0 || n != 0 {
		t.Errorf("dimensions after reset = (%d, %d)", f, n)
	}
}

type persisted struct {
	State  *StateManager
	Leaves []float64
}

func TestSaveLoadModelChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.gob")

	in := persisted{State: NewStateManager(), Leaves: []float64{1.5, 2.5}}
	in.State.MarkFitted(2, 10)

	sum, err := SaveModel(&in, path)
	if err != nil {
		t.Fatalf("SaveModel: %v", err)
	}
	if len(sum) != 64 {
		t.Fatalf("checksum %q is not a sha256 hex digest", sum)
	}

	var out persisted
	if err := LoadModel(&out, path, sum); err != nil {
		t.Fatalf("LoadModel: %v", err)
	}
	if !out.State.IsFitted() || out.Leaves[1] != 2.5 {
		t.Errorf("round trip lost state: %+v", out)
	}

	var modelErr *errors.ModelError
	if err := LoadModel(&out, path, "deadbeef"); !errors.As(err, &modelErr) || modelErr.Kind != "checksum mismatch" {
		t.Errorf("expected checksum mismatch ModelError, got %v", err)
	}

	err = LoadModel(&out, filepath.Join(dir, "missing.gob"), "")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error should wrap os.ErrNotExist, got %v", err)
	}
}

func TestSaveModelToWriterRejectsUnencodable(t *testing.T) {
	var buf bytes.Buffer
	if err := SaveModelToWriter(func() {}, &buf); err == nil {
		t.Error("expected gob to reject a func value")
	}
}

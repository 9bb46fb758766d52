package model

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// ManifestVersion is bumped whenever the exported model layout changes.
const ManifestVersion = "1"

// ColumnSpec describes one input or output column of an exported model.
type ColumnSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Signature is the input/output contract of an exported model.
type Signature struct {
	Inputs []ColumnSpec `json:"inputs"`
	Output ColumnSpec   `json:"output"`
}

// ModelManifest describes an exported model directory (MLmodel.json).
type ModelManifest struct {
	// ModelType is the estimator type, e.g. "RandomForestRegressor"
	ModelType string `json:"model_type"`

	// Version of the manifest layout
	Version string `json:"version"`

	Signature Signature `json:"signature"`

	// Features are the names of the engineered feature columns fed to the model.
	Features []string `json:"features,omitempty"`

	Hyperparameters map[string]any `json:"hyperparameters"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// ModelFile is the gob payload inside the export directory.
	ModelFile string `json:"model_file"`

	// Checksum is the hex sha256 of ModelFile.
	Checksum string `json:"checksum"`

	IsFitted bool `json:"is_fitted"`
}

// WriteTo writes the manifest as indented JSON with map keys sorted, so identical
// models produce identical bytes.
func (m *ModelManifest) WriteTo(w io.Writer) error {
	return errors.Wrap(json.MarshalWrite(w, m, json.Deterministic(true), jsontext.WithIndent("  ")), "encode manifest")
}

// ReadManifest decodes a manifest from r.
func ReadManifest(r io.Reader) (*ModelManifest, error) {
	var m ModelManifest
	if err := json.UnmarshalRead(r, &m); err != nil {
		return nil, errors.Wrap(err, "decode manifest")
	}
	return &m, nil
}

// Validate checks the manifest is usable for loading.
func (m *ModelManifest) Validate() error {
	if m.ModelType == "" {
		return errors.NewValidationError("model_type", "is required", m.ModelType)
	}
	if m.Version == "" {
		return errors.NewValidationError("version", "is required", m.Version)
	}
	if m.Version != ManifestVersion {
		return errors.NewValidationError("version", "unsupported manifest version", m.Version)
	}
	if !m.IsFitted {
		return errors.NewValidationError("is_fitted", "exported model must be fitted", m.IsFitted)
	}
	if m.ModelFile == "" || m.Checksum == "" {
		return errors.NewValidationError("model_file", "model_file and checksum are required", m.ModelFile)
	}
	if len(m.Signature.Inputs) == 0 {
		return errors.NewValidationError("signature", "must list at least one input", len(m.Signature.Inputs))
	}
	return nil
}

// InputNames returns the signature input column names in order.
func (m *ModelManifest) InputNames() []string {
	names := make([]string, len(m.Signature.Inputs))
	for i, c := range m.Signature.Inputs {
		names[i] = c.Name
	}
	return names
}

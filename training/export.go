package training

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/nycprice/core/model"
	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Files of an export directory.
const (
	ModelFile        = "model.gob"
	ManifestFile     = "MLmodel.json"
	InputExampleFile = "input_example.csv"
	ImportanceFile   = "feature_importance.png"
)

const modelType = "RandomForestRegressor"

// inputSpecs describes the columns read by the preprocessing.
func inputSpecs(columns []string) []model.ColumnSpec {
	specs := make([]model.ColumnSpec, len(columns))
	for i, c := range columns {
		typ := "string"
		if k, ok := dataset.Listings.Kind(c); ok {
			typ = k.String()
		}
		specs[i] = model.ColumnSpec{Name: c, Type: typ}
	}
	return specs
}

// Export writes p into dir: the gob model, its manifest and up to five example
// rows. dir is created and must not already hold an export.
func Export(p *InferencePipeline, dir string, example *dataset.Frame, metadata map[string]any) (*model.ModelManifest, error) {
	if err := p.Forest.State.RequireFitted("InferencePipeline", "Export"); err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err == nil {
		return nil, errors.NewValidationError("export dir", "already holds a model export", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create export dir")
	}

	sum, err := model.SaveModel(p, filepath.Join(dir, ModelFile))
	if err != nil {
		return nil, err
	}

	inputs := p.Preprocessor.InputColumns()
	m := &model.ModelManifest{
		ModelType: modelType,
		Version:   model.ManifestVersion,
		Signature: model.Signature{
			Inputs: inputSpecs(inputs),
			Output: model.ColumnSpec{Name: dataset.ColPrice, Type: "double"},
		},
		Features:        p.Preprocessor.FeatureNames(),
		Hyperparameters: p.Forest.Params.Map(),
		Metadata:        metadata,
		ModelFile:       ModelFile,
		Checksum:        sum,
		IsFitted:        true,
	}
	f, err := os.Create(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, errors.Wrap(err, "create manifest")
	}
	if err := m.WriteTo(f); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "write manifest")
	}

	if example != nil && example.Len() > 0 {
		ex, err := os.Create(filepath.Join(dir, InputExampleFile))
		if err != nil {
			return nil, errors.Wrap(err, "create input example")
		}
		if err := example.Drop(dataset.ColPrice).Head(5).WriteCSV(ex); err != nil {
			ex.Close()
			return nil, err
		}
		if err := ex.Close(); err != nil {
			return nil, errors.Wrap(err, "write input example")
		}
	}
	return m, nil
}

// Load reads an export directory, verifying the model checksum.
func Load(dir string) (*InferencePipeline, *model.ModelManifest, error) {
	f, err := os.Open(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, nil, errors.Wrap(err, "open manifest")
	}
	m, err := model.ReadManifest(f)
	f.Close()
	if err != nil {
		return nil, nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "invalid manifest")
	}
	if m.ModelType != modelType {
		return nil, nil, errors.NewValidationError("model_type", "unsupported model", m.ModelType)
	}

	var p InferencePipeline
	if err := model.LoadModel(&p, filepath.Join(dir, m.ModelFile), m.Checksum); err != nil {
		return nil, nil, errors.Wrap(err, "load model")
	}
	if p.Preprocessor == nil || p.Forest == nil {
		return nil, nil, errors.NewValueError("training.Load", "export holds an incomplete pipeline")
	}
	return &p, m, nil
}

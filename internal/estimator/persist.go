package estimator

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/equilibri/equilibri-server/internal/artifact"
	"github.com/equilibri/equilibri-server/internal/feature"
)

// artifactFormatVersion tags the on-disk artifact layout, independent of
// the feature schema version embedded alongside it.
const artifactFormatVersion = 1

type artifactFile struct {
	FormatVersion int `json:"format_version"`
	TrainedModel
}

// LoadError reports a missing, corrupt, or structurally incompatible
// persisted artifact.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading model artifact %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Save persists the model as a self-describing JSON artifact using an
// atomic replace, so a concurrent loader never sees a partial file.
func (m *TrainedModel) Save(path string) error {
	data, err := json.Marshal(artifactFile{
		FormatVersion: artifactFormatVersion,
		TrainedModel:  *m,
	})
	if err != nil {
		return fmt.Errorf("marshaling model artifact: %w", err)
	}
	if err := artifact.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing model artifact: %w", err)
	}
	return nil
}

// Load reads a persisted artifact and verifies it against the running
// encoder's schema version. Schema disagreement is a SchemaMismatchError;
// everything else wrong with the artifact is a LoadError.
func Load(path string, wantSchemaVersion int) (*TrainedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var af artifactFile
	if err := json.Unmarshal(data, &af); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("corrupt artifact: %w", err)}
	}
	if af.FormatVersion != artifactFormatVersion {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported artifact format version %d", af.FormatVersion)}
	}

	model := af.TrainedModel
	var trees []*regressionTree
	switch model.Family {
	case FamilyRandomForest:
		if model.Forest == nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("artifact declares %s but carries no forest", model.Family)}
		}
		trees = model.Forest.Trees
	case FamilyGradientBoost:
		if model.Boost == nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("artifact declares %s but carries no boosted ensemble", model.Family)}
		}
		trees = model.Boost.Trees
	default:
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unknown estimator family %q", model.Family)}
	}

	if len(trees) == 0 {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("artifact carries an empty %s ensemble", model.Family)}
	}
	for i, tree := range trees {
		if tree == nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("tree %d: missing", i)}
		}
		if err := tree.validate(model.NumFeatures); err != nil {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("tree %d: %w", i, err)}
		}
	}

	if model.SchemaVersion != wantSchemaVersion {
		return nil, &feature.SchemaMismatchError{What: "schema_version", Want: wantSchemaVersion, Got: model.SchemaVersion}
	}

	return &model, nil
}

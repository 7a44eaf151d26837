package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"

	"climarisk/internal/types"
)

// Artifact is one stored per-category model: a logistic model over the fixed
// feature vector, versioned and swappable without code changes. Artifacts
// are persisted as zstd-compressed JSON blobs.
type Artifact struct {
	Category  types.ConditionCategory `json:"category"`
	Version   int                     `json:"version"`
	Weights   []float64               `json:"weights"`
	Bias      float64                 `json:"bias"`
	Accuracy  float64                 `json:"accuracy"`
	TrainedAt time.Time               `json:"trained_at"`
}

// validate rejects artifacts whose shape disagrees with the feature
// contract.
func (a *Artifact) validate() error {
	if !a.Category.Valid() {
		return fmt.Errorf("model artifact: unknown category %q", a.Category)
	}
	if len(a.Weights) != featureCount {
		return fmt.Errorf("model artifact %s: expected %d weights, got %d",
			a.Category, featureCount, len(a.Weights))
	}
	return nil
}

// EncodeArtifact serializes and compresses an artifact for storage.
func EncodeArtifact(a *Artifact) ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding model artifact: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(raw, nil), nil
}

// DecodeArtifact decompresses and deserializes a stored artifact blob.
func DecodeArtifact(blob []byte) (*Artifact, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing model artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %w", err)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &a, nil
}

// Model scores categories with previously fit logistic models, one per
// category. Construction fails unless all five categories have a valid
// artifact: running without classifiers is the one fatal startup condition.
type Model struct {
	artifacts map[types.ConditionCategory]*Artifact
}

// NewModel builds the trained-model classifier from loaded artifacts.
func NewModel(artifacts []*Artifact) (*Model, error) {
	byCat := make(map[types.ConditionCategory]*Artifact, len(artifacts))
	for _, a := range artifacts {
		if err := a.validate(); err != nil {
			return nil, err
		}
		if prev, ok := byCat[a.Category]; ok && prev.Version >= a.Version {
			continue
		}
		byCat[a.Category] = a
	}
	for _, cat := range types.AllCategories() {
		if _, ok := byCat[cat]; !ok {
			return nil, fmt.Errorf("model classifier: missing artifact for category %q", cat)
		}
	}
	return &Model{artifacts: byCat}, nil
}

// Score implements Classifier: sigmoid over the dot product of the stored
// weights and the window-derived feature vector.
func (m *Model) Score(window []types.WeatherObservation, target Target, threshold types.ConditionThreshold) (float64, error) {
	a, ok := m.artifacts[threshold.Category]
	if !ok {
		return 0, types.NewAppError(
			types.ErrCodeInternalModel,
			fmt.Sprintf("no model for category %q", threshold.Category),
			nil,
		)
	}

	features := FeatureVector(window, threshold.Category, DayOfYear(target.Date), target.Location.Rounded())
	z := a.Bias
	for i, w := range a.Weights {
		z += w * features[i]
	}
	return sigmoid(z), nil
}

// Mode implements Classifier.
func (m *Model) Mode() types.ClassifierMode {
	return types.ClassifierModel
}

// Info returns the metadata view over the loaded artifacts, for the
// /models/info endpoint.
func (m *Model) Info() []types.ModelInfo {
	infos := make([]types.ModelInfo, 0, len(m.artifacts))
	for _, cat := range types.AllCategories() {
		a := m.artifacts[cat]
		infos = append(infos, types.ModelInfo{
			Category:  a.Category,
			Version:   a.Version,
			Accuracy:  a.Accuracy,
			TrainedAt: a.TrainedAt,
		})
	}
	return infos
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

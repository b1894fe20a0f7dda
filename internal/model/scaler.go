package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

// StandardScaler applies (x - mean) / scale per column, matching a fitted
// scikit-learn StandardScaler.
type StandardScaler struct {
	featureNames []string
	mean         []float64
	scale        []float64
}

type standardScalerFile struct {
	FeatureNames []string  `json:"feature_names_in,omitempty"`
	Mean         []float64 `json:"mean"`
	Scale        []float64 `json:"scale"`
}

// NewStandardScaler validates the fitted parameters. A nil mean means the
// scaler was fitted without centering; a zero scale is treated as 1.
func NewStandardScaler(featureNames []string, mean, scale []float64) (*StandardScaler, error) {
	n := len(scale)
	if n == 0 {
		return nil, fmt.Errorf("scaler has no columns")
	}
	if mean == nil {
		mean = make([]float64, n)
	}
	if len(mean) != n {
		return nil, fmt.Errorf("scaler mean has %d columns, scale has %d", len(mean), n)
	}
	if len(featureNames) != 0 && len(featureNames) != n {
		return nil, fmt.Errorf("scaler names %d columns, parameters have %d", len(featureNames), n)
	}

	s := &StandardScaler{
		featureNames: append([]string(nil), featureNames...),
		mean:         append([]float64(nil), mean...),
		scale:        append([]float64(nil), scale...),
	}
	for i, v := range s.scale {
		if math.IsNaN(v) || math.IsNaN(s.mean[i]) {
			return nil, fmt.Errorf("scaler column %d has NaN parameters", i)
		}
		if math.IsInf(v, 0) || math.IsInf(s.mean[i], 0) {
			return nil, fmt.Errorf("scaler column %d has infinite parameters", i)
		}
		if v < 0 {
			return nil, fmt.Errorf("scaler column %d has negative scale %v", i, v)
		}
		if v == 0 {
			s.scale[i] = 1
		}
	}
	return s, nil
}

// LoadStandardScaler reads a scaler exported as JSON
func LoadStandardScaler(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f standardScalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scaler: %w", err)
	}
	return NewStandardScaler(f.FeatureNames, f.Mean, f.Scale)
}

// Transform standardizes values, keeping their order
func (s *StandardScaler) Transform(values []float64) ([]float64, error) {
	if len(values) != len(s.scale) {
		return nil, fmt.Errorf("scaler expects %d values, got %d", len(s.scale), len(values))
	}
	out := make([]float64, len(values))
	floats.SubTo(out, values, s.mean)
	floats.Div(out, s.scale)
	return out, nil
}

// FeatureNames returns the columns the scaler was fitted on, if recorded
func (s *StandardScaler) FeatureNames() []string {
	return append([]string(nil), s.featureNames...)
}

// Save writes the scaler as JSON
func (s *StandardScaler) Save(path string) error {
	return writeJSON(path, standardScalerFile{
		FeatureNames: s.featureNames,
		Mean:         s.mean,
		Scale:        s.scale,
	})
}

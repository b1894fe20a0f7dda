package inference

import "fmt"

type stubEncoder struct {
	codes map[string]float64
}

func (e stubEncoder) Encode(value string) (float64, error) {
	code, ok := e.codes[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, value)
	}
	return code, nil
}

func newStubEncoder() stubEncoder {
	return stubEncoder{codes: map[string]float64{"Female": 0, "Male": 1}}
}

// affineScaler applies (x - mean) / scale per column
type affineScaler struct {
	mean  []float64
	scale []float64
	names []string
}

func (s affineScaler) Transform(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

func (s affineScaler) FeatureNames() []string { return s.names }

func identityScaler() affineScaler {
	return affineScaler{
		mean:  []float64{0, 0, 0, 0, 0},
		scale: []float64{1, 1, 1, 1, 1},
	}
}

// swappingScaler swaps two columns before delegating, simulating a caller
// that assembled the numeric vector in the wrong order.
type swappingScaler struct {
	inner Scaler
	i, j  int
}

func (s swappingScaler) Transform(values []float64) ([]float64, error) {
	permuted := append([]float64(nil), values...)
	permuted[s.i], permuted[s.j] = permuted[s.j], permuted[s.i]
	return s.inner.Transform(permuted)
}

// fixedClassifier always returns the same vote and distribution
type fixedClassifier struct {
	classes []int
	vote    int
	proba   []float64
	names   []string
}

func (c fixedClassifier) Classes() []int                             { return c.classes }
func (c fixedClassifier) Predict(_ []float64) (int, error)           { return c.vote, nil }
func (c fixedClassifier) PredictProba(_ []float64) ([]float64, error) { return c.proba, nil }
func (c fixedClassifier) FeatureNames() []string                     { return c.names }

// stumpClassifier splits on a single column of the model vector
type stumpClassifier struct {
	feature   int
	threshold float64
}

func (c stumpClassifier) Classes() []int { return []int{0, 1} }

func (c stumpClassifier) PredictProba(x []float64) ([]float64, error) {
	if x[c.feature] <= c.threshold {
		return []float64{0.9, 0.1}, nil
	}
	return []float64{0.15, 0.85}, nil
}

func (c stumpClassifier) Predict(x []float64) (int, error) {
	p, _ := c.PredictProba(x)
	if p[1] > p[0] {
		return 1, nil
	}
	return 0, nil
}

func exampleRecord() RawRecord {
	return RawRecord{
		Gender:          GenderFemale,
		AgeMonths:       24,
		BirthWeightKg:   3.0,
		BirthLengthCm:   49.0,
		CurrentWeightKg: 10.0,
		CurrentLengthCm: 80.0,
	}
}

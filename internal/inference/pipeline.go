package inference

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultDecisionThreshold is the minimum stunted probability reported as at risk.
	DefaultDecisionThreshold = 0.70
	// DefaultPositiveClass is the classifier label meaning "stunted".
	DefaultPositiveClass = 1
)

const probabilityTolerance = 1e-9

// Labels shown for a decision when no localized label is requested.
const (
	LabelAtRisk    = "at risk of stunting"
	LabelNotAtRisk = "not at risk"
)

// Options configures the decision policy of a Pipeline
type Options struct {
	// Threshold is compared against the stunted probability; at_risk is
	// probability_stunted >= Threshold.
	Threshold float64
	// PositiveClass is the classifier label for "stunted". Its position in
	// Classifier.Classes is looked up, never assumed.
	PositiveClass int
}

// DefaultOptions returns the threshold policy used by the latest form revision
func DefaultOptions() Options {
	return Options{
		Threshold:     DefaultDecisionThreshold,
		PositiveClass: DefaultPositiveClass,
	}
}

// Result is the outcome of classifying one record
type Result struct {
	PredictedClass        int     `json:"predicted_class"`
	ModelVote             int     `json:"model_vote"`
	ProbabilityNotStunted float64 `json:"probability_not_stunted"`
	ProbabilityStunted    float64 `json:"probability_stunted"`
	Threshold             float64 `json:"threshold"`
	AtRisk                bool    `json:"at_risk"`
}

// Label returns the English label for the decision.
func (r Result) Label() string {
	if r.AtRisk {
		return LabelAtRisk
	}
	return LabelNotAtRisk
}

// FeatureValue is one column of the vector submitted to the classifier
type FeatureValue struct {
	Name  string  `json:"name"`
	Raw   float64 `json:"raw"`
	Model float64 `json:"model"`
}

// Pipeline turns a RawRecord into a Result. It is immutable after
// NewPipeline and safe for concurrent use.
type Pipeline struct {
	artifacts     Artifacts
	threshold     float64
	positiveClass int
	negativeClass int
	positiveIdx   int
	negativeIdx   int
}

// NewPipeline checks the artifacts against the feature schema and resolves
// the class indices once. Any mismatch is reported as ErrArtifactUnavailable.
func NewPipeline(a Artifacts, opts Options) (*Pipeline, error) {
	if a.Encoder == nil {
		return nil, artifactError("encoder not loaded")
	}
	if a.Scaler == nil {
		return nil, artifactError("scaler not loaded")
	}
	if a.Classifier == nil {
		return nil, artifactError("classifier not loaded")
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 || math.IsNaN(opts.Threshold) {
		return nil, fmt.Errorf("decision threshold must be in (0, 1), got %v", opts.Threshold)
	}

	if err := checkFeatureNames("scaler", a.Scaler, NumericFeatures); err != nil {
		return nil, err
	}
	if err := checkFeatureNames("classifier", a.Classifier, ModelFeatures); err != nil {
		return nil, err
	}

	classes := a.Classifier.Classes()
	if len(classes) != 2 {
		return nil, artifactError("classifier reports %d classes, want 2", len(classes))
	}
	if classes[0] == classes[1] {
		return nil, artifactError("classifier reports duplicate class %d", classes[0])
	}

	p := &Pipeline{
		artifacts:     a,
		threshold:     opts.Threshold,
		positiveClass: opts.PositiveClass,
		positiveIdx:   -1,
	}
	for i, c := range classes {
		if c == opts.PositiveClass {
			p.positiveIdx = i
		}
	}
	if p.positiveIdx < 0 {
		return nil, artifactError("positive class %d not among classifier classes %v", opts.PositiveClass, classes)
	}
	p.negativeIdx = 1 - p.positiveIdx
	p.negativeClass = classes[p.negativeIdx]

	return p, nil
}

// Threshold returns the decision threshold in use
func (p *Pipeline) Threshold() float64 {
	return p.threshold
}

// Version returns the model pack version the artifacts came from
func (p *Pipeline) Version() string {
	return p.artifacts.Version
}

// Classify validates the record, builds the feature vector, runs the
// classifier and applies the threshold policy.
func (p *Pipeline) Classify(rec RawRecord) (*Result, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	vector, _, err := p.featureVector(rec)
	if err != nil {
		return nil, err
	}

	clf := p.artifacts.Classifier
	vote, err := clf.Predict(vector)
	if err != nil {
		return nil, fmt.Errorf("classifier predict: %w", err)
	}
	if vote != p.positiveClass && vote != p.negativeClass {
		return nil, fmt.Errorf("classifier predicted unknown class %d", vote)
	}

	proba, err := clf.PredictProba(vector)
	if err != nil {
		return nil, fmt.Errorf("classifier predict_proba: %w", err)
	}
	if len(proba) != 2 {
		return nil, fmt.Errorf("classifier returned %d probabilities, want 2", len(proba))
	}
	for _, v := range proba {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("classifier returned invalid probabilities %v", proba)
		}
	}
	total := floats.Sum(proba)
	if total <= 0 {
		return nil, fmt.Errorf("classifier returned zero probability mass")
	}

	stunted, notStunted := proba[p.positiveIdx], proba[p.negativeIdx]
	if math.Abs(total-1) > probabilityTolerance {
		stunted /= total
		notStunted /= total
	}

	result := &Result{
		ModelVote:             vote,
		ProbabilityNotStunted: notStunted,
		ProbabilityStunted:    stunted,
		Threshold:             p.threshold,
		AtRisk:                stunted >= p.threshold,
	}
	if result.AtRisk {
		result.PredictedClass = p.positiveClass
	} else {
		result.PredictedClass = p.negativeClass
	}
	return result, nil
}

// Explain returns the named feature vector Classify would submit for rec.
func (p *Pipeline) Explain(rec RawRecord) ([]FeatureValue, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	vector, raw, err := p.featureVector(rec)
	if err != nil {
		return nil, err
	}

	values := make([]FeatureValue, len(ModelFeatures))
	for i, name := range ModelFeatures {
		values[i] = FeatureValue{Name: name, Raw: raw[i], Model: vector[i]}
	}
	return values, nil
}

// featureVector returns the classifier input and the unscaled values in
// ModelFeatures order.
func (p *Pipeline) featureVector(rec RawRecord) ([]float64, []float64, error) {
	code, err := p.artifacts.Encoder.Encode(string(rec.Gender))
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("encode gender: %w", err)
	}

	numeric := rec.NumericVector()
	scaled, err := p.artifacts.Scaler.Transform(numeric)
	if err != nil {
		return nil, nil, fmt.Errorf("scale features: %w", err)
	}
	if len(scaled) != len(NumericFeatures) {
		return nil, nil, fmt.Errorf("scaler returned %d values, want %d", len(scaled), len(NumericFeatures))
	}

	vector := make([]float64, 0, len(ModelFeatures))
	vector = append(vector, code)
	vector = append(vector, scaled...)

	raw := make([]float64, 0, len(ModelFeatures))
	raw = append(raw, code)
	raw = append(raw, numeric...)

	return vector, raw, nil
}

func checkFeatureNames(kind string, artifact interface{}, want []string) error {
	namer, ok := artifact.(FeatureNamer)
	if !ok {
		return nil
	}
	names := namer.FeatureNames()
	if len(names) == 0 {
		return nil
	}
	if !sameColumns(names, want) {
		return artifactError("%s was fitted on columns %q, want %q", kind, names, want)
	}
	return nil
}

package inference

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExamplePipeline(t *testing.T, clf Classifier, scaler Scaler) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Artifacts{
		Encoder:    newStubEncoder(),
		Scaler:     scaler,
		Classifier: clf,
	}, DefaultOptions())
	require.NoError(t, err)
	return p
}

func TestClassifyExampleScenario(t *testing.T) {
	clf := fixedClassifier{classes: []int{0, 1}, vote: 1, proba: []float64{0.2, 0.8}}
	p := newExamplePipeline(t, clf, identityScaler())

	result, err := p.Classify(exampleRecord())
	require.NoError(t, err)

	assert.Equal(t, 1, result.PredictedClass)
	assert.Equal(t, 1, result.ModelVote)
	assert.InDelta(t, 0.8, result.ProbabilityStunted, 1e-12)
	assert.InDelta(t, 0.2, result.ProbabilityNotStunted, 1e-12)
	assert.True(t, result.AtRisk)
	assert.Contains(t, result.Label(), "at risk")
	assert.Equal(t, LabelAtRisk, result.Label())
}

func TestClassifyReversedClassOrder(t *testing.T) {
	// classes_ = [1, 0]: the stunted probability is the first entry
	clf := fixedClassifier{classes: []int{1, 0}, vote: 1, proba: []float64{0.8, 0.2}}
	p := newExamplePipeline(t, clf, identityScaler())

	result, err := p.Classify(exampleRecord())
	require.NoError(t, err)

	assert.InDelta(t, 0.8, result.ProbabilityStunted, 1e-12)
	assert.InDelta(t, 0.2, result.ProbabilityNotStunted, 1e-12)
	assert.Equal(t, 1, result.PredictedClass)
}

func TestClassifyThresholdPolicy(t *testing.T) {
	tests := []struct {
		name      string
		stunted   float64
		threshold float64
		atRisk    bool
	}{
		{"below default", 0.65, DefaultDecisionThreshold, false},
		{"at default", 0.70, DefaultDecisionThreshold, true},
		{"above default", 0.71, DefaultDecisionThreshold, true},
		{"majority but below threshold", 0.55, 0.70, false},
		{"lower threshold", 0.55, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clf := fixedClassifier{classes: []int{0, 1}, vote: 1, proba: []float64{1 - tt.stunted, tt.stunted}}
			p, err := NewPipeline(Artifacts{
				Encoder:    newStubEncoder(),
				Scaler:     identityScaler(),
				Classifier: clf,
			}, Options{Threshold: tt.threshold, PositiveClass: 1})
			require.NoError(t, err)

			result, err := p.Classify(exampleRecord())
			require.NoError(t, err)
			assert.Equal(t, tt.atRisk, result.AtRisk)
			assert.Equal(t, 1, result.ModelVote, "vote is reported but does not decide")
			if tt.atRisk {
				assert.Equal(t, 1, result.PredictedClass)
			} else {
				assert.Equal(t, 0, result.PredictedClass)
			}
		})
	}
}

func TestClassifyProbabilitiesSumToOne(t *testing.T) {
	// unnormalized distribution, e.g. raw vote counts
	clf := fixedClassifier{classes: []int{0, 1}, vote: 0, proba: []float64{3, 1}}
	p := newExamplePipeline(t, clf, identityScaler())

	result, err := p.Classify(exampleRecord())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.ProbabilityStunted+result.ProbabilityNotStunted, 1e-12)
	assert.InDelta(t, 0.25, result.ProbabilityStunted, 1e-12)
	assert.Contains(t, []int{0, 1}, result.PredictedClass)
}

func TestClassifyDeterministic(t *testing.T) {
	p := newExamplePipeline(t, stumpClassifier{feature: 5, threshold: 85}, identityScaler())

	first, err := p.Classify(exampleRecord())
	require.NoError(t, err)
	second, err := p.Classify(exampleRecord())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestClassifyColumnOrderMatters(t *testing.T) {
	scaler := affineScaler{
		mean:  []float64{30, 3.2, 49, 12, 85},
		scale: []float64{17, 0.5, 2, 3, 12},
	}
	// split on scaled Body Length (model column 5)
	clf := stumpClassifier{feature: 5, threshold: -1}

	canonical := newExamplePipeline(t, clf, scaler)
	// Age and Body Length swapped before scaling
	permuted := newExamplePipeline(t, clf, swappingScaler{inner: scaler, i: 0, j: 4})

	rec := exampleRecord()
	want, err := canonical.Classify(rec)
	require.NoError(t, err)
	got, err := permuted.Classify(rec)
	require.NoError(t, err)

	assert.NotEqual(t, want.ProbabilityStunted, got.ProbabilityStunted)
	assert.NotEqual(t, want.AtRisk, got.AtRisk)
}

func TestClassifyBoundaryRecords(t *testing.T) {
	p := newExamplePipeline(t, stumpClassifier{feature: 1, threshold: 30}, identityScaler())

	records := []RawRecord{
		{Gender: GenderMale, AgeMonths: 0, BirthWeightKg: 0.5, BirthLengthCm: 30, CurrentWeightKg: 2, CurrentLengthCm: 40},
		{Gender: GenderFemale, AgeMonths: 60, BirthWeightKg: 6, BirthLengthCm: 60, CurrentWeightKg: 25, CurrentLengthCm: 120},
		{Gender: GenderMale, AgeMonths: 60, BirthWeightKg: 0.5, BirthLengthCm: 60, CurrentWeightKg: 2, CurrentLengthCm: 120},
	}
	for _, rec := range records {
		result, err := p.Classify(rec)
		require.NoError(t, err)
		assert.Contains(t, []int{0, 1}, result.PredictedClass)
		assert.InDelta(t, 1.0, result.ProbabilityStunted+result.ProbabilityNotStunted, 1e-9)
	}
}

func TestClassifyInvalidInput(t *testing.T) {
	p := newExamplePipeline(t, stumpClassifier{feature: 1, threshold: 30}, identityScaler())

	rec := exampleRecord()
	rec.AgeMonths = 72
	_, err := p.Classify(rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestClassifyUnknownCategory(t *testing.T) {
	p, err := NewPipeline(Artifacts{
		Encoder:    stubEncoder{codes: map[string]float64{"Male": 0}},
		Scaler:     identityScaler(),
		Classifier: stumpClassifier{feature: 1, threshold: 30},
	}, DefaultOptions())
	require.NoError(t, err)

	_, err = p.Classify(exampleRecord())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCategory))
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestClassifyRejectsBadClassifierOutput(t *testing.T) {
	tests := []struct {
		name string
		clf  fixedClassifier
	}{
		{"three probabilities", fixedClassifier{classes: []int{0, 1}, vote: 1, proba: []float64{0.1, 0.2, 0.7}}},
		{"negative probability", fixedClassifier{classes: []int{0, 1}, vote: 1, proba: []float64{-0.1, 1.1}}},
		{"zero mass", fixedClassifier{classes: []int{0, 1}, vote: 1, proba: []float64{0, 0}}},
		{"unknown vote", fixedClassifier{classes: []int{0, 1}, vote: 7, proba: []float64{0.5, 0.5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newExamplePipeline(t, tt.clf, identityScaler())
			_, err := p.Classify(exampleRecord())
			assert.Error(t, err)
		})
	}
}

func TestNewPipelineValidation(t *testing.T) {
	good := fixedClassifier{classes: []int{0, 1}, vote: 1, proba: []float64{0.2, 0.8}}

	tests := []struct {
		name      string
		artifacts Artifacts
		opts      Options
		artifact  bool
	}{
		{"missing encoder", Artifacts{Scaler: identityScaler(), Classifier: good}, DefaultOptions(), true},
		{"missing scaler", Artifacts{Encoder: newStubEncoder(), Classifier: good}, DefaultOptions(), true},
		{"missing classifier", Artifacts{Encoder: newStubEncoder(), Scaler: identityScaler()}, DefaultOptions(), true},
		{"positive class absent", Artifacts{
			Encoder:    newStubEncoder(),
			Scaler:     identityScaler(),
			Classifier: fixedClassifier{classes: []int{0, 2}},
		}, DefaultOptions(), true},
		{"three classes", Artifacts{
			Encoder:    newStubEncoder(),
			Scaler:     identityScaler(),
			Classifier: fixedClassifier{classes: []int{0, 1, 2}},
		}, DefaultOptions(), true},
		{"scaler columns permuted", Artifacts{
			Encoder: newStubEncoder(),
			Scaler: affineScaler{
				mean:  make([]float64, 5),
				scale: []float64{1, 1, 1, 1, 1},
				names: []string{FeatureBirthWeight, FeatureAge, FeatureBirthLength, FeatureBodyWeight, FeatureBodyLength},
			},
			Classifier: good,
		}, DefaultOptions(), true},
		{"classifier columns wrong", Artifacts{
			Encoder:    newStubEncoder(),
			Scaler:     identityScaler(),
			Classifier: fixedClassifier{classes: []int{0, 1}, names: NumericFeatures},
		}, DefaultOptions(), true},
		{"threshold out of range", Artifacts{Encoder: newStubEncoder(), Scaler: identityScaler(), Classifier: good},
			Options{Threshold: 1.0, PositiveClass: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.artifacts, tt.opts)
			require.Error(t, err)
			assert.Equal(t, tt.artifact, errors.Is(err, ErrArtifactUnavailable))
		})
	}
}

func TestNewPipelineAcceptsRecordedColumns(t *testing.T) {
	scaler := identityScaler()
	scaler.names = append([]string(nil), NumericFeatures...)
	clf := fixedClassifier{classes: []int{0, 1}, vote: 0, proba: []float64{0.6, 0.4}, names: ModelFeatures}

	p, err := NewPipeline(Artifacts{Encoder: newStubEncoder(), Scaler: scaler, Classifier: clf, Version: "1.2.0"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", p.Version())
	assert.Equal(t, DefaultDecisionThreshold, p.Threshold())
}

func TestExplain(t *testing.T) {
	scaler := affineScaler{
		mean:  []float64{24, 3, 49, 10, 80},
		scale: []float64{1, 1, 1, 1, 1},
	}
	p := newExamplePipeline(t, stumpClassifier{feature: 1, threshold: 0}, scaler)

	values, err := p.Explain(exampleRecord())
	require.NoError(t, err)
	require.Len(t, values, len(ModelFeatures))

	assert.Equal(t, FeatureGender, values[0].Name)
	assert.Equal(t, 0.0, values[0].Model)
	for i, v := range values[1:] {
		assert.Equal(t, NumericFeatures[i], v.Name)
		assert.InDelta(t, 0, v.Model, 1e-12)
	}
	assert.Equal(t, 80.0, values[5].Raw)
}

package inference

// Encoder maps a categorical value to the numeric code it was fitted with
type Encoder interface {
	Encode(value string) (float64, error)
}

// Scaler standardizes the numeric feature vector without changing its order
type Scaler interface {
	Transform(values []float64) ([]float64, error)
}

// Classifier is a fitted binary model. PredictProba returns one probability
// per entry of Classes, in the same order.
type Classifier interface {
	Classes() []int
	Predict(features []float64) (int, error)
	PredictProba(features []float64) ([]float64, error)
}

// FeatureNamer is implemented by artifacts that recorded the column names
// they were fitted on. An empty result means the names were not recorded.
type FeatureNamer interface {
	FeatureNames() []string
}

// Artifacts bundles the three fitted artifacts. It is built once at startup
// and handed to NewPipeline; the values must not be mutated afterwards.
type Artifacts struct {
	Encoder    Encoder
	Scaler     Scaler
	Classifier Classifier
	// Version identifies the model pack the artifacts were read from
	Version string
}

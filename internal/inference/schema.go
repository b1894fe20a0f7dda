package inference

// Column names as recorded when the scaler and classifier were fitted.
const (
	FeatureGender      = "Gender"
	FeatureAge         = "Age"
	FeatureBirthWeight = "Birth Weight"
	FeatureBirthLength = "Birth Length"
	FeatureBodyWeight  = "Body Weight"
	FeatureBodyLength  = "Body Length"
)

// NumericFeatures is the column order the scaler was fitted on.
// Permuting it produces wrong predictions without any error, so every
// caller builds numeric vectors through RawRecord.NumericVector.
var NumericFeatures = []string{
	FeatureAge,
	FeatureBirthWeight,
	FeatureBirthLength,
	FeatureBodyWeight,
	FeatureBodyLength,
}

// ModelFeatures is the column order the classifier was fitted on: the
// encoded gender followed by the scaled numeric features.
var ModelFeatures = append([]string{FeatureGender}, NumericFeatures...)

// FieldSpec describes one input field of the classification form
type FieldSpec struct {
	Name    string      `json:"name"`
	Feature string      `json:"feature"`
	Label   string      `json:"label"`
	Unit    string      `json:"unit,omitempty"`
	Kind    string      `json:"kind"`
	Options []string    `json:"options,omitempty"`
	Min     float64     `json:"min"`
	Max     float64     `json:"max"`
	Step    float64     `json:"step"`
	Default interface{} `json:"default"`
}

// InputFields lists the form fields in display order. Bounds mirror the
// validate tags on RawRecord.
var InputFields = []FieldSpec{
	{Name: "gender", Feature: FeatureGender, Label: "Jenis Kelamin", Kind: "select",
		Options: []string{string(GenderMale), string(GenderFemale)}, Default: string(GenderMale)},
	{Name: "age_months", Feature: FeatureAge, Label: "Usia", Unit: "bulan", Kind: "integer",
		Min: MinAgeMonths, Max: MaxAgeMonths, Step: 1, Default: MinAgeMonths},
	{Name: "birth_weight_kg", Feature: FeatureBirthWeight, Label: "Berat Lahir", Unit: "kg", Kind: "number",
		Min: MinBirthWeightKg, Max: MaxBirthWeightKg, Step: 0.1, Default: MinBirthWeightKg},
	{Name: "birth_length_cm", Feature: FeatureBirthLength, Label: "Panjang Lahir", Unit: "cm", Kind: "number",
		Min: MinBirthLengthCm, Max: MaxBirthLengthCm, Step: 0.1, Default: MinBirthLengthCm},
	{Name: "current_weight_kg", Feature: FeatureBodyWeight, Label: "Berat Badan Saat Ini", Unit: "kg", Kind: "number",
		Min: MinCurrentWeightKg, Max: MaxCurrentWeightKg, Step: 0.1, Default: MinCurrentWeightKg},
	{Name: "current_length_cm", Feature: FeatureBodyLength, Label: "Panjang Badan Saat Ini", Unit: "cm", Kind: "number",
		Min: MinCurrentLengthCm, Max: MaxCurrentLengthCm, Step: 0.1, Default: MinCurrentLengthCm},
}

func sameColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

package inference

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Gender is the categorical gender field of a record
type Gender string

const (
	GenderMale   Gender = "Male"
	GenderFemale Gender = "Female"
)

// Input domains of the classification form.
const (
	MinAgeMonths       = 0
	MaxAgeMonths       = 60
	MinBirthWeightKg   = 0.5
	MaxBirthWeightKg   = 6.0
	MinBirthLengthCm   = 30.0
	MaxBirthLengthCm   = 60.0
	MinCurrentWeightKg = 2.0
	MaxCurrentWeightKg = 25.0
	MinCurrentLengthCm = 40.0
	MaxCurrentLengthCm = 120.0
)

// RawRecord is one child's measurements as entered on the form
type RawRecord struct {
	Gender          Gender  `json:"gender" validate:"required,oneof=Male Female"`
	AgeMonths       int     `json:"age_months" validate:"min=0,max=60"`
	BirthWeightKg   float64 `json:"birth_weight_kg" validate:"min=0.5,max=6"`
	BirthLengthCm   float64 `json:"birth_length_cm" validate:"min=30,max=60"`
	CurrentWeightKg float64 `json:"current_weight_kg" validate:"min=2,max=25"`
	CurrentLengthCm float64 `json:"current_length_cm" validate:"min=40,max=120"`
}

// RecordInput is the wire form of a RawRecord. Every field must be
// present; an absent measurement is not the same as a zero one.
type RecordInput struct {
	Gender          *Gender  `json:"gender" validate:"required"`
	AgeMonths       *int     `json:"age_months" validate:"required"`
	BirthWeightKg   *float64 `json:"birth_weight_kg" validate:"required"`
	BirthLengthCm   *float64 `json:"birth_length_cm" validate:"required"`
	CurrentWeightKg *float64 `json:"current_weight_kg" validate:"required"`
	CurrentLengthCm *float64 `json:"current_length_cm" validate:"required"`
}

// Record checks that every field was supplied and returns the record.
// Missing fields are reported as an *InputError; domain checks are left to
// RawRecord.Validate.
func (in RecordInput) Record() (RawRecord, error) {
	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return RawRecord{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		fields := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, FieldError{Field: fe.Field(), Message: describe(fe)})
		}
		sortFieldErrors(fields)
		return RawRecord{}, &InputError{Fields: fields}
	}

	return RawRecord{
		Gender:          *in.Gender,
		AgeMonths:       *in.AgeMonths,
		BirthWeightKg:   *in.BirthWeightKg,
		BirthLengthCm:   *in.BirthLengthCm,
		CurrentWeightKg: *in.CurrentWeightKg,
		CurrentLengthCm: *in.CurrentLengthCm,
	}, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every field against its domain and returns an *InputError
// listing all violations.
func (r RawRecord) Validate() error {
	var fields []FieldError
	reported := make(map[string]bool)

	for name, value := range map[string]float64{
		"birth_weight_kg":   r.BirthWeightKg,
		"birth_length_cm":   r.BirthLengthCm,
		"current_weight_kg": r.CurrentWeightKg,
		"current_length_cm": r.CurrentLengthCm,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			fields = append(fields, FieldError{Field: name, Message: "must be a finite number"})
			reported[name] = true
		}
	}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		for _, fe := range verrs {
			if reported[fe.Field()] {
				continue
			}
			fields = append(fields, FieldError{Field: fe.Field(), Message: describe(fe)})
			reported[fe.Field()] = true
		}
	}

	if len(fields) > 0 {
		sortFieldErrors(fields)
		return &InputError{Fields: fields}
	}
	return nil
}

// NumericVector returns the numeric fields in NumericFeatures order.
func (r RawRecord) NumericVector() []float64 {
	return []float64{
		float64(r.AgeMonths),
		r.BirthWeightKg,
		r.BirthLengthCm,
		r.CurrentWeightKg,
		r.CurrentLengthCm,
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func sortFieldErrors(fields []FieldError) {
	order := make(map[string]int, len(InputFields))
	for i, f := range InputFields {
		order[f.Name] = i
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return order[fields[i].Field] < order[fields[j].Field]
	})
}

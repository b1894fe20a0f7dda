package model

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kartoza/stunting-risk/internal/inference"
)

// LabelEncoder maps category strings to their index in Classes, the way
// scikit-learn's LabelEncoder does after fitting.
type LabelEncoder struct {
	classes []string
	index   map[string]int
}

type labelEncoderFile struct {
	Classes []string `json:"classes"`
}

// NewLabelEncoder builds an encoder over the given fitted classes
func NewLabelEncoder(classes []string) (*LabelEncoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("encoder has no classes")
	}
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("encoder class %q listed twice", c)
		}
		index[c] = i
	}
	return &LabelEncoder{
		classes: append([]string(nil), classes...),
		index:   index,
	}, nil
}

// LoadLabelEncoder reads an encoder exported as JSON
func LoadLabelEncoder(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f labelEncoderFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse encoder: %w", err)
	}
	return NewLabelEncoder(f.Classes)
}

// Encode returns the numeric code of value
func (e *LabelEncoder) Encode(value string) (float64, error) {
	i, ok := e.index[value]
	if !ok {
		return 0, fmt.Errorf("%w: %q not in %q", inference.ErrUnknownCategory, value, e.classes)
	}
	return float64(i), nil
}

// Classes returns the fitted categories in code order
func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// Save writes the encoder as JSON
func (e *LabelEncoder) Save(path string) error {
	return writeJSON(path, labelEncoderFile{Classes: e.classes})
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

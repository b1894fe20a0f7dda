package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// PackFormat identifies a model pack manifest
const PackFormat = "stunting-model-pack"

// Classifier kinds a manifest may name
const (
	ClassifierForest = "forest"
	ClassifierONNX   = "onnx"
)

// EvaluationImage is a pre-rendered report image shipped with a pack
type EvaluationImage struct {
	File    string `json:"file"`
	Caption string `json:"caption"`
}

// PackFiles names the artifact files inside a pack directory
type PackFiles struct {
	Encoder    string `json:"encoder"`
	Scaler     string `json:"scaler"`
	Classifier string `json:"classifier"`
	Evaluation string `json:"evaluation,omitempty"`
}

// Manifest describes the contents of a model pack
type Manifest struct {
	Format            string            `json:"format"`
	Version           string            `json:"version"`
	Description       string            `json:"description"`
	Created           string            `json:"created"`
	Classifier        string            `json:"classifier"`
	Classes           []int             `json:"classes,omitempty"`
	PositiveClass     *int              `json:"positive_class,omitempty"`
	DecisionThreshold *float64          `json:"decision_threshold,omitempty"`
	Files             PackFiles         `json:"files"`
	Images            []EvaluationImage `json:"images,omitempty"`
}

// DefaultManifest describes a bare directory holding encoder.json,
// scaler.json and forest.json.
func DefaultManifest() Manifest {
	return Manifest{
		Format:     PackFormat,
		Version:    "unversioned",
		Classifier: ClassifierForest,
		Files: PackFiles{
			Encoder:    "encoder.json",
			Scaler:     "scaler.json",
			Classifier: "forest.json",
			Evaluation: "evaluation.md",
		},
	}
}

// ReadManifest loads manifest.json from dir, filling unset fields from
// DefaultManifest. A missing manifest yields the defaults.
func ReadManifest(dir string) (Manifest, error) {
	m := DefaultManifest()

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if errors.Is(err, os.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return m, err
	}

	var parsed Manifest
	if err := json.Unmarshal(data, &parsed); err != nil {
		return m, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if parsed.Format != "" && parsed.Format != PackFormat {
		return m, fmt.Errorf("unsupported pack format %q", parsed.Format)
	}

	defaults := m
	m = parsed
	m.Format = PackFormat
	if m.Version == "" {
		m.Version = defaults.Version
	}
	if m.Classifier == "" {
		m.Classifier = defaults.Classifier
	}
	if m.Files.Encoder == "" {
		m.Files.Encoder = defaults.Files.Encoder
	}
	if m.Files.Scaler == "" {
		m.Files.Scaler = defaults.Files.Scaler
	}
	if m.Files.Classifier == "" {
		if m.Classifier == ClassifierONNX {
			m.Files.Classifier = "forest.onnx"
		} else {
			m.Files.Classifier = defaults.Files.Classifier
		}
	}
	if m.Files.Evaluation == "" {
		m.Files.Evaluation = defaults.Files.Evaluation
	}
	return m, nil
}

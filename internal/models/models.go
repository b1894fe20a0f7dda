package models

import (
	"github.com/kartoza/stunting-risk/internal/inference"
)

// InfoResponse describes the running server and the loaded model
type InfoResponse struct {
	Version        string  `json:"version"`
	ModelLoaded    bool    `json:"model_loaded"`
	ModelVersion   string  `json:"model_version,omitempty"`
	Threshold      float64 `json:"threshold,omitempty"`
	HistoryEnabled bool    `json:"history_enabled"`
}

// SchemaResponse describes the classification form
type SchemaResponse struct {
	ModelFeatures   []string              `json:"model_features"`
	NumericFeatures []string              `json:"numeric_features"`
	Fields          []inference.FieldSpec `json:"fields"`
	Threshold       float64               `json:"threshold,omitempty"`
}

// ClassifyResponse is the outcome of one screening
type ClassifyResponse struct {
	inference.Result
	Label        string `json:"label"`
	Language     string `json:"language"`
	ModelVersion string `json:"model_version"`
	ID           string `json:"id,omitempty"`
}

// ExplainResponse lists the feature vector submitted to the classifier
type ExplainResponse struct {
	Features []inference.FeatureValue `json:"features"`
}

// EvaluationImage is a report image with its public URL
type EvaluationImage struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

// EvaluationResponse carries the Model & Evaluation page content
type EvaluationResponse struct {
	ModelVersion string            `json:"model_version"`
	Description  string            `json:"description,omitempty"`
	Markdown     string            `json:"markdown"`
	HTML         string            `json:"html"`
	Images       []EvaluationImage `json:"images"`
}

// ListResponse is a page of recorded screenings
type ListResponse struct {
	Items  interface{} `json:"items"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// ModelPackStatus describes the installed model pack
type ModelPackStatus struct {
	Installed   bool   `json:"installed"`
	Loaded      bool   `json:"loaded"`
	Path        string `json:"path,omitempty"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
	Message     string `json:"message,omitempty"`
}

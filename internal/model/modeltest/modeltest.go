// Package modeltest writes small model packs for tests.
package modeltest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kartoza/stunting-risk/internal/inference"
	"github.com/kartoza/stunting-risk/internal/model"
)

// PackVersion is the manifest version of packs written by WritePack
const PackVersion = "test-1"

// Scaler parameters of the fixture pack, in inference.NumericFeatures order.
var (
	ScalerMean  = []float64{30, 3.1, 49, 11, 85}
	ScalerScale = []float64{17, 0.5, 2.2, 3, 12}
)

// Forest returns a two-tree forest over the model features. Short children
// (scaled Body Length <= -0.5) lean towards stunted.
func Forest() []model.Tree {
	return []model.Tree{
		{Nodes: []model.TreeNode{
			{Feature: 5, Threshold: -0.5, Left: 1, Right: 2},
			{Feature: -2, Left: -1, Right: -1, Value: []float64{2, 8}},
			{Feature: 4, Threshold: -1.0, Left: 3, Right: 4},
			{Feature: -2, Left: -1, Right: -1, Value: []float64{3, 7}},
			{Feature: -2, Left: -1, Right: -1, Value: []float64{9, 1}},
		}},
		{Nodes: []model.TreeNode{
			{Feature: 1, Threshold: 0, Left: 1, Right: 2},
			{Feature: -2, Left: -1, Right: -1, Value: []float64{6, 4}},
			{Feature: -2, Left: -1, Right: -1, Value: []float64{1, 3}},
		}},
	}
}

// HealthyRecord classifies as not at risk with P(stunted) = 0.25.
func HealthyRecord() inference.RawRecord {
	return inference.RawRecord{
		Gender:          inference.GenderFemale,
		AgeMonths:       24,
		BirthWeightKg:   3.0,
		BirthLengthCm:   49.0,
		CurrentWeightKg: 10.0,
		CurrentLengthCm: 80.0,
	}
}

// StuntedRecord classifies as at risk with P(stunted) = 0.775.
func StuntedRecord() inference.RawRecord {
	return inference.RawRecord{
		Gender:          inference.GenderMale,
		AgeMonths:       40,
		BirthWeightKg:   2.4,
		BirthLengthCm:   45.0,
		CurrentWeightKg: 11.0,
		CurrentLengthCm: 60.0,
	}
}

// WritePack writes a complete forest pack into dir and returns dir.
func WritePack(t testing.TB, dir string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatalf("Failed to create pack dir: %v", err)
	}

	encoder, err := model.NewLabelEncoder([]string{"Female", "Male"})
	check(t, err)
	check(t, encoder.Save(filepath.Join(dir, "encoder.json")))

	scaler, err := model.NewStandardScaler(inference.NumericFeatures, ScalerMean, ScalerScale)
	check(t, err)
	check(t, scaler.Save(filepath.Join(dir, "scaler.json")))

	forest, err := model.NewRandomForest([]int{0, 1}, inference.ModelFeatures, 0, Forest())
	check(t, err)
	check(t, forest.Save(filepath.Join(dir, "forest.json")))

	manifest := `{
  "format": "stunting-model-pack",
  "version": "` + PackVersion + `",
  "description": "fixture pack",
  "created": "2026-01-01T00:00:00Z",
  "classifier": "forest",
  "images": [{"file": "assets/cm.png", "caption": "Confusion Matrix"}]
}`
	check(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0o644))
	check(t, os.WriteFile(filepath.Join(dir, "evaluation.md"), []byte("## Skenario 3\n\nRandom Forest + **SMOTE** + PSO\n"), 0o644))
	check(t, os.WriteFile(filepath.Join(dir, "assets", "cm.png"), []byte("\x89PNG\r\n\x1a\n"), 0o644))

	return dir
}

// ZipPack archives srcDir under the top-level directory root and returns
// the path of the written zip.
func ZipPack(t testing.TB, srcDir, zipPath, root string) string {
	t.Helper()

	out, err := os.Create(zipPath)
	check(t, err)
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		name := root + "/" + strings.ReplaceAll(rel, string(os.PathSeparator), "/")
		w, err := zw.Create(name)
		if err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(w, in)
		return err
	})
	check(t, err)
	check(t, zw.Close())
	return zipPath
}

func check(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Failed to write test pack: %v", err)
	}
}

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
)

// TreeNode is one node of a fitted decision tree in flat, pre-order form.
// Leaves have Left == Right == -1 and carry per-class counts or fractions
// in Value, ordered like the forest's classes.
type TreeNode struct {
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold"`
	Left      int       `json:"left"`
	Right     int       `json:"right"`
	Value     []float64 `json:"value,omitempty"`
}

// IsLeaf reports whether the node has no children
func (n TreeNode) IsLeaf() bool {
	return n.Left < 0 && n.Right < 0
}

// Tree is a single estimator of the forest
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// RandomForest evaluates an exported scikit-learn RandomForestClassifier.
// PredictProba averages the normalized leaf distributions of all trees and
// Predict returns the class with the highest averaged probability.
type RandomForest struct {
	classes      []int
	featureNames []string
	nFeatures    int
	trees        []Tree
}

type forestFile struct {
	Classes      []int    `json:"classes"`
	FeatureNames []string `json:"feature_names_in,omitempty"`
	NFeatures    int      `json:"n_features"`
	Trees        []Tree   `json:"trees"`
}

// NewRandomForest checks the tree structure so that evaluation always
// terminates: children must point forward and in range.
func NewRandomForest(classes []int, featureNames []string, nFeatures int, trees []Tree) (*RandomForest, error) {
	if len(classes) < 2 {
		return nil, fmt.Errorf("forest needs at least 2 classes, got %d", len(classes))
	}
	if nFeatures == 0 {
		nFeatures = len(featureNames)
	}
	if nFeatures <= 0 {
		return nil, fmt.Errorf("forest does not record its feature count")
	}
	if len(featureNames) != 0 && len(featureNames) != nFeatures {
		return nil, fmt.Errorf("forest names %d features, n_features is %d", len(featureNames), nFeatures)
	}
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}

	normalized := make([]Tree, len(trees))
	for t, tree := range trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d is empty", t)
		}
		nodes := make([]TreeNode, len(tree.Nodes))
		for i, node := range tree.Nodes {
			if node.IsLeaf() {
				value, err := normalizeLeaf(node.Value, len(classes))
				if err != nil {
					return nil, fmt.Errorf("tree %d node %d: %w", t, i, err)
				}
				node.Value = value
				nodes[i] = node
				continue
			}
			if node.Feature < 0 || node.Feature >= nFeatures {
				return nil, fmt.Errorf("tree %d node %d: feature %d out of range", t, i, node.Feature)
			}
			if node.Left <= i || node.Left >= len(tree.Nodes) || node.Right <= i || node.Right >= len(tree.Nodes) {
				return nil, fmt.Errorf("tree %d node %d: invalid children %d/%d", t, i, node.Left, node.Right)
			}
			nodes[i] = node
		}
		normalized[t] = Tree{Nodes: nodes}
	}

	return &RandomForest{
		classes:      append([]int(nil), classes...),
		featureNames: append([]string(nil), featureNames...),
		nFeatures:    nFeatures,
		trees:        normalized,
	}, nil
}

// LoadRandomForest reads a forest exported as JSON
func LoadRandomForest(path string) (*RandomForest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f forestFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse forest: %w", err)
	}
	return NewRandomForest(f.Classes, f.FeatureNames, f.NFeatures, f.Trees)
}

// Classes returns the class labels in probability order
func (f *RandomForest) Classes() []int {
	return append([]int(nil), f.classes...)
}

// FeatureNames returns the columns the forest was fitted on, if recorded
func (f *RandomForest) FeatureNames() []string {
	return append([]string(nil), f.featureNames...)
}

// NumTrees returns the number of estimators
func (f *RandomForest) NumTrees() int {
	return len(f.trees)
}

// PredictProba returns the averaged class distribution for one sample
func (f *RandomForest) PredictProba(features []float64) ([]float64, error) {
	if len(features) != f.nFeatures {
		return nil, fmt.Errorf("forest expects %d features, got %d", f.nFeatures, len(features))
	}
	proba := make([]float64, len(f.classes))
	for _, tree := range f.trees {
		floats.Add(proba, tree.leaf(features).Value)
	}
	floats.Scale(1/float64(len(f.trees)), proba)
	return proba, nil
}

// Predict returns the class with the highest averaged probability; ties go
// to the class listed first.
func (f *RandomForest) Predict(features []float64) (int, error) {
	proba, err := f.PredictProba(features)
	if err != nil {
		return 0, err
	}
	return f.classes[floats.MaxIdx(proba)], nil
}

// Save writes the forest as JSON
func (f *RandomForest) Save(path string) error {
	return writeJSON(path, forestFile{
		Classes:      f.classes,
		FeatureNames: f.featureNames,
		NFeatures:    f.nFeatures,
		Trees:        f.trees,
	})
}

func (t Tree) leaf(features []float64) TreeNode {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf() {
			return node
		}
		if features[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

func normalizeLeaf(value []float64, nClasses int) ([]float64, error) {
	if len(value) != nClasses {
		return nil, fmt.Errorf("leaf has %d values, want %d", len(value), nClasses)
	}
	for _, v := range value {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("leaf has invalid value %v", value)
		}
	}
	total := floats.Sum(value)
	if total <= 0 {
		return nil, errors.New("leaf has no samples")
	}
	out := append([]float64(nil), value...)
	floats.Scale(1/total, out)
	return out, nil
}

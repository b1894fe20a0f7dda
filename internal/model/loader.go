package model

import (
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/kartoza/stunting-risk/internal/inference"
)

// Pack is a loaded model pack
type Pack struct {
	Dir       string
	Manifest  Manifest
	Artifacts inference.Artifacts
}

// Load reads the manifest and the three artifacts of the pack in dir. Any
// missing or malformed artifact is reported as inference.ErrArtifactUnavailable.
func Load(dir string) (*Pack, error) {
	manifest, err := ReadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", inference.ErrArtifactUnavailable, dir, err)
	}

	var (
		encoder    *LabelEncoder
		scaler     *StandardScaler
		classifier inference.Classifier
	)

	var g errgroup.Group
	g.Go(func() error {
		path := filepath.Join(dir, manifest.Files.Encoder)
		e, err := LoadLabelEncoder(path)
		if err != nil {
			return unavailable("encoder", path, err)
		}
		encoder = e
		return nil
	})
	g.Go(func() error {
		path := filepath.Join(dir, manifest.Files.Scaler)
		s, err := LoadStandardScaler(path)
		if err != nil {
			return unavailable("scaler", path, err)
		}
		scaler = s
		return nil
	})
	g.Go(func() error {
		path := filepath.Join(dir, manifest.Files.Classifier)
		c, err := loadClassifier(manifest, path)
		if err != nil {
			return unavailable("classifier", path, err)
		}
		classifier = c
		return nil
	})
	if err := g.Wait(); err != nil {
		if closer, ok := classifier.(io.Closer); ok {
			closer.Close()
		}
		return nil, err
	}

	return &Pack{
		Dir:      dir,
		Manifest: manifest,
		Artifacts: inference.Artifacts{
			Encoder:    encoder,
			Scaler:     scaler,
			Classifier: classifier,
			Version:    manifest.Version,
		},
	}, nil
}

// Options derives pipeline options from the manifest, falling back to base
// for anything the pack does not pin.
func (p *Pack) Options(base inference.Options) inference.Options {
	opts := base
	if p.Manifest.PositiveClass != nil {
		opts.PositiveClass = *p.Manifest.PositiveClass
	}
	if p.Manifest.DecisionThreshold != nil {
		opts.Threshold = *p.Manifest.DecisionThreshold
	}
	return opts
}

// Close releases classifier resources held outside the Go heap
func (p *Pack) Close() error {
	if closer, ok := p.Artifacts.Classifier.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func loadClassifier(m Manifest, path string) (inference.Classifier, error) {
	switch m.Classifier {
	case ClassifierForest:
		return LoadRandomForest(path)
	case ClassifierONNX:
		classes := m.Classes
		if len(classes) == 0 {
			classes = []int{0, 1}
		}
		return LoadONNXClassifier(path, classes)
	default:
		return nil, fmt.Errorf("unsupported classifier %q", m.Classifier)
	}
}

func unavailable(kind, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", inference.ErrArtifactUnavailable, kind, path, err)
}

package api

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"github.com/kartoza/stunting-risk/internal/inference"
	"github.com/kartoza/stunting-risk/internal/model"
	"github.com/kartoza/stunting-risk/internal/models"
)

// Model is a loaded model pack together with the pipeline built from it
// and the pre-rendered evaluation page. A Model is never mutated; a new
// pack is installed by swapping the whole value.
type Model struct {
	Pack       *model.Pack
	Pipeline   *inference.Pipeline
	Evaluation models.EvaluationResponse

	// requests currently using the pipeline
	inflight sync.WaitGroup
}

// LoadModel loads the pack in dir and builds its pipeline. Options pinned
// by the pack manifest take precedence over base.
func LoadModel(dir string, base inference.Options) (*Model, error) {
	pack, err := model.Load(dir)
	if err != nil {
		return nil, err
	}

	pipeline, err := inference.NewPipeline(pack.Artifacts, pack.Options(base))
	if err != nil {
		pack.Close()
		return nil, err
	}

	eval, err := loadEvaluation(pack)
	if err != nil {
		pack.Close()
		return nil, err
	}

	return &Model{Pack: pack, Pipeline: pipeline, Evaluation: eval}, nil
}

// Close releases the pack
func (m *Model) Close() error {
	if m == nil || m.Pack == nil {
		return nil
	}
	return m.Pack.Close()
}

// Retire waits for requests still using m to finish, then closes it. Call
// it only after m has been replaced so no new request can pick it up.
func (m *Model) Retire() error {
	if m == nil {
		return nil
	}
	m.inflight.Wait()
	return m.Close()
}

func (m *Model) release() {
	m.inflight.Done()
}

// AssetsDir is the directory served under /assets/
func (m *Model) AssetsDir() string {
	return filepath.Join(m.Pack.Dir, "assets")
}

func loadEvaluation(pack *model.Pack) (models.EvaluationResponse, error) {
	eval := models.EvaluationResponse{
		ModelVersion: pack.Manifest.Version,
		Description:  pack.Manifest.Description,
		Images:       []models.EvaluationImage{},
	}

	data, err := os.ReadFile(filepath.Join(pack.Dir, pack.Manifest.Files.Evaluation))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return eval, fmt.Errorf("failed to read evaluation: %w", err)
	default:
		eval.Markdown = string(data)
		eval.HTML = renderMarkdown(data)
	}

	for _, img := range pack.Manifest.Images {
		url, err := assetURL(img.File)
		if err != nil {
			return eval, err
		}
		eval.Images = append(eval.Images, models.EvaluationImage{URL: url, Caption: img.Caption})
	}
	return eval, nil
}

// assetURL maps a pack-relative image path to its URL. Images must live
// under assets/.
func assetURL(file string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(file))
	if !strings.HasPrefix(clean, "/assets/") {
		return "", fmt.Errorf("%w: evaluation image %q is not under assets/", inference.ErrArtifactUnavailable, file)
	}
	return clean, nil
}

func renderMarkdown(md []byte) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank | mdhtml.SkipHTML,
	})
	return string(markdown.ToHTML(md, p, r))
}

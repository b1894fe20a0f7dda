package model

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// StagedPack is a model pack extracted beside its install location but not
// yet installed. Load it from Dir, then Commit or Discard.
type StagedPack struct {
	// Dir is the extracted pack root inside the staging directory
	Dir string
	// Root is the archive's top-level directory name
	Root string

	targetDir  string
	stagingDir string
}

// StagePack validates every entry of a model pack archive and extracts it
// into a fresh staging directory under targetDir. Nothing outside the
// staging directory is touched, so a rejected archive leaves installed
// packs and other files in targetDir's parent intact.
func StagePack(zipPath, targetDir string) (*StagedPack, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("could not open zip: %w", err)
	}
	defer r.Close()

	root, err := packRoot(r.File)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create directory: %w", err)
	}
	stagingDir, err := os.MkdirTemp(targetDir, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("could not create staging directory: %w", err)
	}

	staged := &StagedPack{
		Dir:        filepath.Join(stagingDir, root),
		Root:       root,
		targetDir:  targetDir,
		stagingDir: stagingDir,
	}

	for _, f := range r.File {
		destPath := filepath.Join(stagingDir, filepath.FromSlash(path.Clean(f.Name)))

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				staged.Discard()
				return nil, fmt.Errorf("could not create directory: %w", err)
			}
			continue
		}

		if err := extractFile(f, destPath); err != nil {
			staged.Discard()
			return nil, err
		}
	}

	return staged, nil
}

// Commit moves the staged pack to targetDir/Root, replacing any pack
// installed under the same name, and returns the installed path.
func (s *StagedPack) Commit() (string, error) {
	defer os.RemoveAll(s.stagingDir)

	final := filepath.Join(s.targetDir, s.Root)

	// roots never start with a dot, so this cannot collide with the pack
	backup := filepath.Join(s.stagingDir, ".previous")
	hadPrevious := false
	if _, err := os.Stat(final); err == nil {
		if err := os.Rename(final, backup); err != nil {
			return "", fmt.Errorf("could not move previous pack aside: %w", err)
		}
		hadPrevious = true
	}

	if err := os.Rename(s.Dir, final); err != nil {
		if hadPrevious {
			os.Rename(backup, final)
		}
		return "", fmt.Errorf("could not install pack: %w", err)
	}
	return final, nil
}

// Discard removes the staged files
func (s *StagedPack) Discard() error {
	return os.RemoveAll(s.stagingDir)
}

// ExtractPack unzips a model pack archive into targetDir and returns the
// pack root, the archive's top-level directory.
func ExtractPack(zipPath, targetDir string) (string, error) {
	staged, err := StagePack(zipPath, targetDir)
	if err != nil {
		return "", err
	}
	return staged.Commit()
}

// packRoot returns the single top-level directory every entry lives under.
func packRoot(files []*zip.File) (string, error) {
	var root string
	for _, f := range files {
		if strings.Contains(f.Name, `\`) {
			return "", fmt.Errorf("illegal file path in zip: %s", f.Name)
		}
		clean := path.Clean(f.Name)
		// zip slip
		if !filepath.IsLocal(filepath.FromSlash(clean)) {
			return "", fmt.Errorf("illegal file path in zip: %s", f.Name)
		}

		first := strings.SplitN(clean, "/", 2)[0]
		if root == "" {
			if first == "." || strings.HasPrefix(first, ".") {
				return "", fmt.Errorf("illegal pack root in zip: %s", f.Name)
			}
			root = first
		}
		if first != root {
			return "", fmt.Errorf("zip entry %s is outside the pack root %s", f.Name, root)
		}
		if clean == root && !f.FileInfo().IsDir() {
			return "", fmt.Errorf("pack root %s must be a directory", root)
		}
	}
	if root == "" {
		return "", fmt.Errorf("empty zip archive")
	}
	return root, nil
}

func extractFile(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("could not create directory: %w", err)
	}

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer outFile.Close()

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("could not open zip entry: %w", err)
	}
	defer rc.Close()

	if _, err := io.Copy(outFile, rc); err != nil {
		return fmt.Errorf("could not extract file: %w", err)
	}
	return nil
}

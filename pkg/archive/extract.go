package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
)

var ErrUnsafeEntry = errors.New("archive entry escapes destination directory")

// Extractor unzips archives into a shared staging directory. Extractions that
// use the same Extractor run one at a time.
type Extractor struct {
	mu sync.Mutex
}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract unzips the archive at zipPath into destDir and then removes the
// archive.
func (e *Extractor) Extract(zipPath, destDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := unzip(zipPath, destDir); err != nil {
		return fmt.Errorf("extracting %s: %w", filepath.Base(zipPath), err)
	}

	return os.Remove(zipPath)
}

func unzip(zipPath, destDir string) error {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(destDir, f.Name)
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("%w: %s", ErrUnsafeEntry, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

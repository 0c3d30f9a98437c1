package archive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/hashicorp/go-uuid"
	"github.com/klauspost/compress/zip"
)

const MaxFilesPerArchive = 10

// Archive bundles the given files, which live in dir, into zip archives of at
// most MaxFilesPerArchive files each. Files are taken in the order given. Each
// batch is moved into its own subdirectory, compressed to
// zippedFile{token}{n}.zip in dir, and the subdirectory is removed. The archive
// names are returned in batch order. ctx is checked before each batch.
func Archive(ctx context.Context, dir string, files []string) ([]string, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	var archives []string
	for batch, n := 0, 1; batch < len(files); batch, n = batch+MaxFilesPerArchive, n+1 {
		if err := ctx.Err(); err != nil {
			return archives, err
		}

		end := batch + MaxFilesPerArchive
		if end > len(files) {
			end = len(files)
		}

		name := fmt.Sprintf("zippedFile%s%d.zip", token, n)
		if err := archiveBatch(dir, fmt.Sprintf("batch%s%d", token, n), files[batch:end], name); err != nil {
			return archives, err
		}

		archives = append(archives, name)
	}

	log.Debugf("Archived %d files in %s into %d archive(s)", len(files), dir, len(archives))

	return archives, nil
}

func archiveBatch(dir, batchDirName string, files []string, archiveName string) error {
	batchDir := filepath.Join(dir, batchDirName)
	if err := os.MkdirAll(batchDir, 0755); err != nil {
		return err
	}

	defer func() {
		_ = os.RemoveAll(batchDir)
	}()

	for _, file := range files {
		if err := os.Rename(filepath.Join(dir, file), filepath.Join(batchDir, file)); err != nil {
			return err
		}
	}

	return zipFiles(batchDir, files, filepath.Join(dir, archiveName))
}

func zipFiles(srcDir string, files []string, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(out)
	for _, file := range files {
		if err := addToZip(zw, filepath.Join(srcDir, file), file); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

func addToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}

	_, err = io.Copy(w, f)
	return err
}

func newToken() (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(id, "-", ""), nil
}

package xferclient

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-uuid"
	"github.com/materials-commons/tablexfer/pkg/archive"
	"github.com/materials-commons/tablexfer/pkg/chunk"
	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"github.com/materials-commons/tablexfer/pkg/xferapi"
	"golang.org/x/sync/errgroup"
)

// SendData uploads every result set of r to the server and waits for the
// server to process them. r is read to the end but not closed.
func (c *Client) SendData(ctx context.Context, r dataset.Reader, filters []dataset.Filter) error {
	localID, err := uuid.GenerateUUID()
	if err != nil {
		return err
	}

	workDir := worker.JobDir(c.settings.TempDir, localID)
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	files, err := chunk.NewWriter(workDir, c.settings.MaxRowsPerChunk).WriteAll(ctx, r)
	if err != nil {
		return err
	}

	archives, err := archive.Archive(ctx, workDir, files)
	if err != nil {
		return err
	}

	var id string
	if _, err := c.call(ctx, routeBeginUpload, filters, &id); err != nil {
		return err
	}

	logger := clog.ForTransfer(id)
	logger.Infof("Began upload of %d archive(s)", len(archives))

	if err := c.upload(ctx, id, workDir, archives); err != nil {
		if !errors.Is(err, ErrJobFailed) {
			c.end(ctx, routeEndUpload, id)
		}
		return err
	}

	c.end(ctx, routeEndUpload, id)
	logger.Infof("Upload processed")

	return nil
}

func (c *Client) upload(ctx context.Context, id, workDir string, archives []string) error {
	entries, err := c.postAll(ctx, id, workDir, archives)
	if err != nil {
		return err
	}

	manifest := xferapi.UploadManifest{TransferID: id, Files: entries}
	if _, err := c.call(ctx, routeProcessUploadedFiles, manifest, nil); err != nil {
		return err
	}

	return c.poll(ctx, func() (bool, error) {
		var done bool
		if _, err := c.call(ctx, routeGetUploadProcessStatus, id, &done); err != nil {
			return false, err
		}
		return done, nil
	})
}

// postAll posts the archives in parallel and returns their manifest entries in
// archive order. Archives larger than the maximum file size are posted as
// packets.
func (c *Client) postAll(ctx context.Context, id, workDir string, archives []string) ([]string, error) {
	entries := make([]string, len(archives))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.Parallelism)

	for i, name := range archives {
		i, name := i, name
		g.Go(func() error {
			entry, err := c.postArchive(ctx, id, filepath.Join(workDir, name))
			entries[i] = entry
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (c *Client) postArchive(ctx context.Context, id, path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if fi.Size() <= c.settings.MaxFileSize {
		if err := c.postFile(ctx, routePostFile, id, path); err != nil {
			return "", err
		}
		return filepath.Base(path), os.Remove(path)
	}

	packets, err := archive.Split(path, c.settings.MaxFileSize)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	for _, packet := range packets {
		if err := c.postFile(ctx, routeUploadFile, id, filepath.Join(dir, packet)); err != nil {
			return "", err
		}
		_ = os.Remove(filepath.Join(dir, packet))
	}

	return archive.ManifestEntry(packets), os.Remove(path)
}

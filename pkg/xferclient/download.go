package xferclient

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/cursor"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"github.com/materials-commons/tablexfer/pkg/xferapi"
	"golang.org/x/sync/errgroup"
)

// GetData downloads the server's data for filters and materializes it. Orders
// the server skipped appear as empty placeholder tables.
func (c *Client) GetData(ctx context.Context, filters []dataset.Filter) (*dataset.DataSet, error) {
	jobDir, unpackDir, err := c.download(ctx, filters)
	if err != nil {
		return nil, err
	}

	return cursor.Materialize(unpackDir, jobDir)
}

// GetDataReader downloads the server's data for filters and returns a cursor
// over it. Closing the cursor removes the downloaded files.
func (c *Client) GetDataReader(ctx context.Context, filters []dataset.Filter) (*cursor.Cursor, error) {
	jobDir, unpackDir, err := c.download(ctx, filters)
	if err != nil {
		return nil, err
	}

	cur, err := cursor.Open(unpackDir, jobDir)
	if err != nil {
		_ = os.RemoveAll(jobDir)
		return nil, err
	}

	return cur, nil
}

// download runs the download protocol and leaves the unpacked chunk files of
// the transfer in unpackDir, inside jobDir.
func (c *Client) download(ctx context.Context, filters []dataset.Filter) (jobDir, unpackDir string, err error) {
	var id string
	if _, err := c.call(ctx, routeBeginDownload, filters, &id); err != nil {
		return "", "", err
	}

	logger := clog.ForTransfer(id)
	logger.Infof("Began download")

	files, err := c.waitForDownloadFiles(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrJobFailed) {
			c.end(ctx, routeEndDownload, id)
		}
		return "", "", err
	}

	jobDir = worker.JobDir(c.settings.TempDir, id)
	unpackDir = filepath.Join(jobDir, worker.UnpackDirName)

	if err := os.MkdirAll(unpackDir, 0755); err != nil {
		c.end(ctx, routeEndDownload, id)
		return "", "", err
	}

	if err := c.fetchAll(ctx, id, jobDir, unpackDir, files); err != nil {
		_ = os.RemoveAll(jobDir)
		c.end(ctx, routeEndDownload, id)
		return "", "", err
	}

	c.end(ctx, routeEndDownload, id)
	logger.Infof("Downloaded %d archive(s)", len(files))

	return jobDir, unpackDir, nil
}

// waitForDownloadFiles polls until the server has generated the download's
// archives.
func (c *Client) waitForDownloadFiles(ctx context.Context, id string) ([]string, error) {
	var files []string

	err := c.poll(ctx, func() (bool, error) {
		files = nil
		resp, err := c.call(ctx, routeGetFilesListToDownload, id, &files)
		if err != nil {
			return false, err
		}

		return downloadReady(resp.Header(), files), nil
	})

	return files, err
}

// downloadReady reports whether a poll response describes a finished download.
// Without a status header a non-empty list is taken as finished.
func downloadReady(h http.Header, files []string) bool {
	if status := h.Get(xferapi.TransferStatusHeader); status != "" {
		return status == string(jobstate.StatusCompleted)
	}

	return len(files) > 0
}

// fetchAll downloads and unpacks the archives in parallel.
func (c *Client) fetchAll(ctx context.Context, id, jobDir, unpackDir string, files []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.settings.Parallelism)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := worker.CheckFileName(file); err != nil {
				return err
			}

			zipPath := filepath.Join(jobDir, file)
			req := xferapi.DownloadFileRequest{TransferID: id, FileName: file}
			if err := c.fetchFile(ctx, routeDownloadFile, req, zipPath); err != nil {
				return err
			}

			return c.extractor.Extract(zipPath, unpackDir)
		})
	}

	return g.Wait()
}

package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/materials-commons/tablexfer/pkg/archive"
	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
	"golang.org/x/sync/errgroup"
)

// ProcessUploadedFiles runs the upload job: it merges split archives, unpacks
// every archive in parallel into the job's unpack directory, hands the result
// to the consumer, and marks the job Completed. Any error marks it Failed.
func (w *Worker) ProcessUploadedFiles(ctx context.Context, id string, entries []string) error {
	job, err := jobstate.Transition(ctx, w.store, id, jobstate.StatusInProgress, nil)
	if err != nil {
		return err
	}

	logger := clog.ForTransfer(id)
	logger.Infof("Processing %d uploaded file(s)", len(entries))

	err = w.finish(ctx, id, w.processUpload(ctx, id, entries, job.Filters), nil)
	if err == nil {
		logger.Infof("Upload processed")
	}

	return err
}

func (w *Worker) processUpload(ctx context.Context, id string, entries []string, filters []dataset.Filter) error {
	dir := w.JobDir(id)
	unpackDir := filepath.Join(dir, UnpackDirName)

	archives, err := MergeEntries(dir, entries)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(unpackDir, 0755); err != nil {
		return err
	}

	extractor := archive.NewExtractor()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.settings.Parallelism)

	for _, name := range archives {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return extractor.Extract(filepath.Join(dir, name), unpackDir)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return w.consumer.Consume(ctx, unpackDir, filters)
}

// MergeEntries resolves manifest entries to archive names in dir, joining the
// packets of split archives.
func MergeEntries(dir string, entries []string) ([]string, error) {
	var archives []string

	for _, entry := range entries {
		names := archive.ParseManifestEntry(entry)
		for _, name := range names {
			if err := CheckFileName(name); err != nil {
				return nil, err
			}
		}

		if len(names) == 1 && !archive.IsPacket(names[0]) {
			archives = append(archives, names[0])
			continue
		}

		merged, err := archive.Join(dir, names)
		if err != nil {
			return nil, err
		}

		archives = append(archives, merged)
	}

	return archives, nil
}

// CheckFileName rejects names that would reach outside a job directory.
func CheckFileName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("invalid file name %q", name)
	}

	return nil
}

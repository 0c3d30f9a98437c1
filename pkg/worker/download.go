package worker

import (
	"context"
	"os"

	"github.com/materials-commons/tablexfer/pkg/archive"
	"github.com/materials-commons/tablexfer/pkg/chunk"
	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
)

// GenerateFilesForDownload runs the download job: it moves the job to
// InProgress, chunks and archives the producer's data into the job directory,
// and marks the job Completed with the archive names. Any error, including
// cancellation, marks the job Failed.
func (w *Worker) GenerateFilesForDownload(ctx context.Context, id string) error {
	job, err := jobstate.Transition(ctx, w.store, id, jobstate.StatusInProgress, nil)
	if err != nil {
		return err
	}

	logger := clog.ForTransfer(id)
	logger.Infof("Generating download files")

	archives, err := w.generateFiles(ctx, id, job.Filters)
	err = w.finish(ctx, id, err, func(job *jobstate.Job) {
		job.Files = archives
	})

	if err == nil {
		logger.Infof("Download ready in %d archive(s)", len(archives))
	}

	return err
}

func (w *Worker) generateFiles(ctx context.Context, id string, filters []dataset.Filter) ([]string, error) {
	dir := w.JobDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	if w.producer == nil {
		return nil, ErrNoProducer
	}

	r, err := w.producer.Produce(ctx, id, filters)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	files, err := chunk.NewWriter(dir, w.settings.MaxRowsPerChunk).WriteAll(ctx, r)
	if err != nil {
		return nil, err
	}

	return archive.Archive(ctx, dir, files)
}

// Package worker runs the server side of a transfer: the background jobs that
// turn a producer's data into archives for download and turn uploaded archives
// back into data for a consumer.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-uuid"
	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/config"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
)

// UnpackDirName is the subdirectory of a job directory that archives are
// extracted into.
const UnpackDirName = "zipped"

// JobDir is the working directory of a transfer.
func JobDir(tempDir, transferID string) string {
	return filepath.Join(tempDir, "f"+strings.ReplaceAll(transferID, "-", ""))
}

type Worker struct {
	store    jobstate.Store
	settings *config.TransferSettings
	producer Producer
	consumer Consumer
	executor *Executor

	// cancels holds the cancel function of each running job's context.
	cancels sync.Map
}

func New(store jobstate.Store, settings *config.TransferSettings, executor *Executor, producer Producer, consumer Consumer) *Worker {
	return &Worker{
		store:    store,
		settings: settings,
		producer: producer,
		consumer: consumer,
		executor: executor,
	}
}

func (w *Worker) Store() jobstate.Store {
	return w.store
}

func (w *Worker) Settings() *config.TransferSettings {
	return w.settings
}

func (w *Worker) JobDir(transferID string) string {
	return JobDir(w.settings.TempDir, transferID)
}

// BeginDownload records a new download job and queues generation of its files.
func (w *Worker) BeginDownload(ctx context.Context, filters []dataset.Filter) (string, error) {
	id, err := w.newJob(ctx, jobstate.Download, filters)
	if err != nil {
		return "", err
	}

	err = w.submit(id, func(ctx context.Context) error {
		return w.GenerateFilesForDownload(ctx, id)
	})
	if err != nil {
		_ = w.End(ctx, id)
		return "", err
	}

	return id, nil
}

// BeginUpload records a new upload job and creates the directory its files
// are posted into.
func (w *Worker) BeginUpload(ctx context.Context, filters []dataset.Filter) (string, error) {
	id, err := w.newJob(ctx, jobstate.Upload, filters)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(w.JobDir(id), 0755); err != nil {
		_ = w.End(ctx, id)
		return "", err
	}

	return id, nil
}

// SubmitUploadProcessing queues processing of the posted files named by the
// manifest entries.
func (w *Worker) SubmitUploadProcessing(ctx context.Context, id string, entries []string) error {
	job, err := w.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if job.Direction != jobstate.Upload || job.Status != jobstate.StatusSubmitted {
		return fmt.Errorf("%w: upload %s is %s", jobstate.ErrInvalidTransition, id, job.Status)
	}

	return w.submit(id, func(ctx context.Context) error {
		return w.ProcessUploadedFiles(ctx, id, entries)
	})
}

// End cancels any running work for the transfer and removes its job and
// working directory. Ending an unknown transfer is not an error.
func (w *Worker) End(ctx context.Context, id string) error {
	w.Cancel(id)
	return RemoveJob(ctx, w.store, w.settings.TempDir, id)
}

// Cancel stops any running background work for the transfer.
func (w *Worker) Cancel(id string) {
	if cancel, ok := w.cancels.LoadAndDelete(id); ok {
		cancel.(context.CancelFunc)()
	}
}

// RemoveJob deletes a job, its working directory and its logging context.
func RemoveJob(ctx context.Context, store jobstate.Store, tempDir, id string) error {
	clog.RemoveLoggingContext(id)

	storeErr := jobstate.Delete(ctx, store, id)
	dirErr := os.RemoveAll(JobDir(tempDir, id))

	return errors.Join(storeErr, dirErr)
}

func (w *Worker) newJob(ctx context.Context, direction jobstate.Direction, filters []dataset.Filter) (string, error) {
	id, err := uuid.GenerateUUID()
	if err != nil {
		return "", err
	}

	if err := w.store.Put(ctx, jobstate.NewJob(id, direction, filters)); err != nil {
		return "", err
	}

	clog.ForTransfer(id).Infof("Began %s", direction)

	return id, nil
}

// submit queues fn on the executor with a context that End can cancel.
func (w *Worker) submit(id string, fn func(ctx context.Context) error) error {
	return w.executor.Submit(id, func(ctx context.Context) {
		jobCtx, cancel := context.WithCancel(ctx)
		w.cancels.Store(id, cancel)
		defer func() {
			w.cancels.Delete(id)
			cancel()
		}()

		if err := fn(jobCtx); err != nil {
			clog.ForTransfer(id).Errorf("Background work failed: %s", err)
		}
	})
}

// finish records the outcome of a job's background work. Failures are
// recorded even when ctx has been cancelled.
func (w *Worker) finish(ctx context.Context, id string, workErr error, complete func(job *jobstate.Job)) error {
	ctx = context.WithoutCancel(ctx)

	if workErr != nil {
		if _, err := jobstate.Fail(ctx, w.store, id, workErr); err != nil && !errors.Is(err, jobstate.ErrJobNotFound) {
			return errors.Join(workErr, err)
		}
		return workErr
	}

	_, err := jobstate.Transition(ctx, w.store, id, jobstate.StatusCompleted, complete)
	return err
}

package worker

import (
	"context"
	"time"

	"github.com/materials-commons/tablexfer/pkg/clog"
	"github.com/materials-commons/tablexfer/pkg/jobstate"
)

type RemoveJobHandlerFN func(transferID string)

type JanitorOptionFN func(*Janitor)

// Janitor removes jobs, and their working directories, that have not been
// updated for longer than the allowed idle time. It cleans up after clients
// that went away without calling end-download or end-upload.
type Janitor struct {
	store            jobstate.Store
	tempDir          string
	allowedIdleTime  time.Duration
	checkInterval    time.Duration
	removeJobHandler RemoveJobHandlerFN
}

func NewJanitor(optFNs ...JanitorOptionFN) *Janitor {
	j := &Janitor{
		allowedIdleTime: jobstate.DefaultJobTTL,
		checkInterval:   time.Minute,
	}

	for _, optfn := range optFNs {
		optfn(j)
	}

	return j
}

func WithJobStore(store jobstate.Store) JanitorOptionFN {
	return func(j *Janitor) {
		j.store = store
	}
}

func WithTempDir(tempDir string) JanitorOptionFN {
	return func(j *Janitor) {
		j.tempDir = tempDir
	}
}

func WithAllowedIdleTime(d time.Duration) JanitorOptionFN {
	return func(j *Janitor) {
		j.allowedIdleTime = d
	}
}

func WithCheckInterval(d time.Duration) JanitorOptionFN {
	return func(j *Janitor) {
		j.checkInterval = d
	}
}

func WithRemoveJobHandler(f RemoveJobHandlerFN) JanitorOptionFN {
	return func(j *Janitor) {
		j.removeJobHandler = f
	}
}

func (j *Janitor) Run(c context.Context) {
	for {
		j.removeIdleJobs(c)
		select {
		case <-c.Done():
			return
		case <-time.After(j.checkInterval):
		}
	}
}

func (j *Janitor) removeIdleJobs(ctx context.Context) int {
	jobs, err := j.store.List(ctx)
	if err != nil {
		// Try again on the next pass; the store may be temporarily unavailable.
		clog.Global().Errorf("Unable to list transfer jobs: %s", err)
		return 0
	}

	removed := 0
	for _, job := range jobs {
		if time.Since(job.UpdatedAt) <= j.allowedIdleTime {
			continue
		}

		clog.ForTransfer(job.ID).Infof("Removing %s job idle since %s (status %s)", job.Direction, job.UpdatedAt.Format(time.DateTime), job.Status)

		// Stop any work still writing into the job directory before it goes.
		if j.removeJobHandler != nil {
			j.removeJobHandler(job.ID)
		}

		if err := RemoveJob(ctx, j.store, j.tempDir, job.ID); err != nil {
			clog.ForTransfer(job.ID).Errorf("Unable to remove idle job: %s", err)
			continue
		}

		removed++
	}

	return removed
}

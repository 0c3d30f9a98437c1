package jobstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/materials-commons/tablexfer/pkg/lock"
)

var (
	ErrJobNotFound       = errors.New("transfer job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Store holds jobs keyed by transfer id. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, id string) (*Job, error)
	Put(ctx context.Context, job *Job) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]*Job, error)
}

var jobLocks = lock.NewIDLocker()

// Delete removes a job while holding its update lock, so an Update already
// in flight finishes before the job is removed rather than putting it back
// afterwards. The lock is dropped once the job is gone.
func Delete(ctx context.Context, s Store, id string) error {
	defer jobLocks.Forget(id)

	return jobLocks.WithLock(id, func() error {
		return s.Remove(ctx, id)
	})
}

// Update applies fn to a copy of the stored job and writes it back by removing
// the old entry and putting the new one. Updates to the same job made through
// this process are serialized.
func Update(ctx context.Context, s Store, id string, fn func(job *Job) error) (*Job, error) {
	unlock := jobLocks.Lock(id)
	defer unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := job.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}

	updated.UpdatedAt = time.Now()

	if err := s.Remove(ctx, id); err != nil {
		return nil, err
	}

	if err := s.Put(ctx, updated); err != nil {
		return nil, err
	}

	return updated, nil
}

// Transition moves a job to a new status, applying mutate (which may be nil)
// in the same update. Moves not allowed by CanTransition fail with
// ErrInvalidTransition.
func Transition(ctx context.Context, s Store, id string, to Status, mutate func(job *Job)) (*Job, error) {
	return Update(ctx, s, id, func(job *Job) error {
		if !CanTransition(job.Status, to) {
			return fmt.Errorf("%w: %s -> %s for job %s", ErrInvalidTransition, job.Status, to, id)
		}

		job.Status = to
		if mutate != nil {
			mutate(job)
		}

		return nil
	})
}

// Fail marks a job Failed, recording cause as its error message.
func Fail(ctx context.Context, s Store, id string, cause error) (*Job, error) {
	return Transition(ctx, s, id, StatusFailed, func(job *Job) {
		job.Error = cause.Error()
	})
}

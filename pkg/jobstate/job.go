package jobstate

import (
	"time"

	"github.com/materials-commons/tablexfer/pkg/dataset"
)

type Status string

const (
	StatusSubmitted  Status = "Submitted"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var allowedTransitions = map[Status][]Status{
	StatusSubmitted:  {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether a job may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Direction string

const (
	Download Direction = "download"
	Upload   Direction = "upload"
)

// Job is the server-side record of one transfer, keyed by its transfer id.
// Files holds the archive names produced for a download once the job has
// Completed. Error holds the failure message of a Failed job.
type Job struct {
	ID        string           `json:"id"`
	Direction Direction        `json:"direction"`
	Status    Status           `json:"status"`
	Files     []string         `json:"files"`
	Error     string           `json:"error,omitempty"`
	Filters   []dataset.Filter `json:"filters"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewJob(id string, direction Direction, filters []dataset.Filter) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Direction: direction,
		Status:    StatusSubmitted,
		Filters:   filters,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) Clone() *Job {
	c := *j
	c.Files = append([]string(nil), j.Files...)
	c.Filters = append([]dataset.Filter(nil), j.Filters...)
	return &c
}

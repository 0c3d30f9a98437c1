package jobstate

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/materials-commons/tablexfer/pkg/dataset"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jobRecord struct {
	ID        string `gorm:"primaryKey;size:64"`
	Direction string `gorm:"size:16"`
	Status    string `gorm:"size:16;index"`
	Files     string `gorm:"type:text"`
	Error     string `gorm:"type:text"`
	Filters   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (jobRecord) TableName() string {
	return "transfer_jobs"
}

// GormStore keeps jobs in the transfer_jobs table so that they survive a
// restart and can be shared between server instances using the same database.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the transfer_jobs table.
func (s *GormStore) Migrate() error {
	return s.db.AutoMigrate(&jobRecord{})
}

func (s *GormStore) Get(ctx context.Context, id string) (*Job, error) {
	var rec jobRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrJobNotFound
	case err != nil:
		return nil, err
	}

	return rec.toJob()
}

func (s *GormStore) Put(ctx context.Context, job *Job) error {
	rec, err := toJobRecord(job)
	if err != nil {
		return err
	}

	return WithTxRetry(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Save(rec).Error
	})
}

func (s *GormStore) Remove(ctx context.Context, id string) error {
	return WithTxRetry(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		return tx.Where("id = ?", id).Delete(&jobRecord{}).Error
	})
}

func (s *GormStore) List(ctx context.Context) ([]*Job, error) {
	var recs []jobRecord
	if err := s.db.WithContext(ctx).Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(recs))
	for _, rec := range recs {
		job, err := rec.toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

func toJobRecord(job *Job) (*jobRecord, error) {
	files, err := json.Marshal(job.Files)
	if err != nil {
		return nil, err
	}

	filters, err := json.Marshal(job.Filters)
	if err != nil {
		return nil, err
	}

	return &jobRecord{
		ID:        job.ID,
		Direction: string(job.Direction),
		Status:    string(job.Status),
		Files:     string(files),
		Error:     job.Error,
		Filters:   string(filters),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}, nil
}

func (r *jobRecord) toJob() (*Job, error) {
	job := &Job{
		ID:        r.ID,
		Direction: Direction(r.Direction),
		Status:    Status(r.Status),
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	if r.Files != "" {
		if err := json.Unmarshal([]byte(r.Files), &job.Files); err != nil {
			return nil, err
		}
	}

	if r.Filters != "" {
		var filters []dataset.Filter
		if err := json.Unmarshal([]byte(r.Filters), &filters); err != nil {
			return nil, err
		}
		job.Filters = filters
	}

	return job, nil
}

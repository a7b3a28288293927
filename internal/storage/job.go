// Package storage persists batch scrape jobs started through the API.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kareemsasa3/rinkcal/internal/config"
	"github.com/kareemsasa3/rinkcal/internal/types"
)

// ErrJobNotFound is returned for unknown or expired job IDs.
var ErrJobNotFound = errors.New("job not found")

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// JobRequest is what the caller asked to scrape.
type JobRequest struct {
	Associations []string         `json:"associations,omitempty"` // empty means the whole registry
	Ages         []types.AgeGroup `json:"ages,omitempty"`
}

// Job is one batch scrape.
type Job struct {
	ID          string                    `json:"id"`
	Status      JobStatus                 `json:"status"`
	Request     JobRequest                `json:"request"`
	Progress    types.ProgressUpdate      `json:"progress"`
	Results     []types.AssociationResult `json:"results,omitempty"`
	Error       string                    `json:"error,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	StartedAt   *time.Time                `json:"started_at,omitempty"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
}

// Storage persists jobs.
type Storage interface {
	SaveJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error
	ListJobs(ctx context.Context) ([]string, error)
	GetJobsByStatus(ctx context.Context, status JobStatus) ([]*Job, error)
	DeleteJob(ctx context.Context, jobID string) error
	Close() error
}

// New selects Redis when cfg.Addr is set and in-memory storage otherwise.
func New(cfg config.RedisConfig) (Storage, error) {
	if cfg.Addr == "" {
		return NewInMemoryStorage(), nil
	}
	return NewRedisStorage(cfg)
}

func clone(job *Job) *Job {
	c := *job
	c.Request.Associations = append([]string(nil), job.Request.Associations...)
	c.Request.Ages = append([]types.AgeGroup(nil), job.Request.Ages...)
	c.Results = append([]types.AssociationResult(nil), job.Results...)
	return &c
}

package queue

import (
	"time"

	"listraksync/internal/models"

	"github.com/google/uuid"
)

// DeadLetter is a job whose page could not be handled, with the reason.
type DeadLetter struct {
	Job      models.SyncJob `json:"job"`
	Error    string         `json:"error"`
	FailedAt time.Time      `json:"failed_at"`
}

// stamp gives a job its identity the first time it is enqueued.
func stamp(job models.SyncJob, now time.Time) models.SyncJob {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = now
	}
	return job
}

func deadLetter(job models.SyncJob, cause error, now time.Time) DeadLetter {
	dl := DeadLetter{Job: job, FailedAt: now}
	if cause != nil {
		dl.Error = cause.Error()
	}
	return dl
}

package subtitle

import (
	"context"

	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

// Repository defines operations for subtitle job persistence.
// A job exclusively owns its language records; deleting the job removes them.
type Repository interface {
	// CreateJob inserts the job and one record per entry in job.Languages in a single transaction
	CreateJob(ctx context.Context, job *model.SubtitleJob) error

	// GetJob retrieves a job with its language records
	GetJob(ctx context.Context, id string) (*model.SubtitleJob, error)

	// GetLatestJobForTalk retrieves the most recently created job for a talk with its language records
	GetLatestJobForTalk(ctx context.Context, talkID string) (*model.SubtitleJob, error)

	// GetLatestCompletedJobWithSource retrieves the most recent completed job whose English
	// record is completed and still carries SRT content
	GetLatestCompletedJobWithSource(ctx context.Context, talkID string) (*model.SubtitleJob, error)

	// ListJobsByTalk lists jobs for a talk, newest first, without language records
	ListJobsByTalk(ctx context.Context, talkID string, limit, offset int) ([]*model.SubtitleJob, error)

	// GetJobStatus reads only the status column, used for cooperative cancellation checks
	GetJobStatus(ctx context.Context, id string) (model.JobStatus, error)

	// UpdateJobStatus sets status and error message unless the job has been cancelled.
	// Returns false when the job is cancelled and nothing was written.
	UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, errorMessage *string) (bool, error)

	// CancelJob moves a non-terminal job to cancelled. Returns false when the job was already terminal.
	CancelJob(ctx context.Context, id string) (bool, error)

	// EnsureLanguage returns the record for jobID/code, creating a pending one if absent
	EnsureLanguage(ctx context.Context, jobID, code string) (*model.LanguageTranslationRecord, error)

	// UpdateLanguage persists status, URL, content, error and retry count and refreshes UpdatedAt
	UpdateLanguage(ctx context.Context, record *model.LanguageTranslationRecord) error
}

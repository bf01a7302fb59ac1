package subtitle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/repository/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, tenant_id, toolbox_talk_id, source_video_url, source_type, status, error_message, created_at, updated_at`

const languageColumns = `id, job_id, language_code, status, srt_url, srt_content, error_message, retry_count, updated_at`

// subtitleRepository implements Repository using PostgreSQL
type subtitleRepository struct {
	pool common.Pool
}

// NewRepository creates a new instance of Repository
func NewRepository(pool common.Pool) Repository {
	return &subtitleRepository{
		pool: pool,
	}
}

// CreateJob inserts the job row and its language rows
func (r *subtitleRepository) CreateJob(ctx context.Context, job *model.SubtitleJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sql := `INSERT INTO subtitle_jobs (id, tenant_id, toolbox_talk_id, source_video_url, source_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err = tx.QueryRow(ctx, sql,
		job.ID, job.TenantID, job.ToolboxTalkID, job.SourceVideoURL, string(job.SourceType), string(job.Status),
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return common.HandlePostgreSQLError(err, "failed to create subtitle job")
	}

	langSQL := `INSERT INTO subtitle_job_languages (job_id, language_code, status)
		VALUES ($1, $2, $3)
		RETURNING id, updated_at`
	for _, rec := range job.Languages {
		rec.JobID = job.ID
		if rec.Status == "" {
			rec.Status = model.TranslationStatusPending
		}
		err := tx.QueryRow(ctx, langSQL, job.ID, rec.LanguageCode, string(rec.Status)).Scan(&rec.ID, &rec.UpdatedAt)
		if err != nil {
			return common.HandlePostgreSQLError(err, fmt.Sprintf("failed to create language record %s", rec.LanguageCode))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return common.HandlePostgreSQLError(err, "failed to commit subtitle job")
	}
	return nil
}

// GetJob retrieves a job and its languages
func (r *subtitleRepository) GetJob(ctx context.Context, id string) (*model.SubtitleJob, error) {
	sql := "SELECT " + jobColumns + " FROM subtitle_jobs WHERE id = $1"
	return r.loadJob(ctx, sql, id)
}

// GetLatestJobForTalk retrieves the newest job for a talk
func (r *subtitleRepository) GetLatestJobForTalk(ctx context.Context, talkID string) (*model.SubtitleJob, error) {
	sql := "SELECT " + jobColumns + ` FROM subtitle_jobs
		WHERE toolbox_talk_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.loadJob(ctx, sql, talkID)
}

// GetLatestCompletedJobWithSource retrieves the newest completed job that still has an English SRT
func (r *subtitleRepository) GetLatestCompletedJobWithSource(ctx context.Context, talkID string) (*model.SubtitleJob, error) {
	sql := "SELECT " + prefixed("j", jobColumns) + ` FROM subtitle_jobs j
		JOIN subtitle_job_languages l ON l.job_id = j.id
		WHERE j.toolbox_talk_id = $1
		  AND j.status = $2
		  AND l.language_code = $3
		  AND l.status = $4
		  AND l.srt_content IS NOT NULL
		  AND l.srt_content <> ''
		ORDER BY j.created_at DESC
		LIMIT 1`
	return r.loadJob(ctx, sql, talkID,
		string(model.JobStatusCompleted), model.EnglishCode, string(model.TranslationStatusCompleted))
}

// ListJobsByTalk lists jobs for a talk with pagination
func (r *subtitleRepository) ListJobsByTalk(ctx context.Context, talkID string, limit, offset int) ([]*model.SubtitleJob, error) {
	sql := "SELECT " + jobColumns + ` FROM subtitle_jobs
		WHERE toolbox_talk_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, sql, talkID, limit, offset)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to list subtitle jobs")
	}
	defer rows.Close()

	jobs := []*model.SubtitleJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan subtitle job row")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate subtitle job rows")
	}
	return jobs, nil
}

// GetJobStatus reads the current status of a job
func (r *subtitleRepository) GetJobStatus(ctx context.Context, id string) (model.JobStatus, error) {
	var status string
	err := r.pool.QueryRow(ctx, "SELECT status FROM subtitle_jobs WHERE id = $1", id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.Wrap(err, apperrors.CodeNotFound, "subtitle job not found")
		}
		return "", common.HandlePostgreSQLError(err, "failed to get subtitle job status")
	}
	return model.JobStatus(status), nil
}

// UpdateJobStatus writes the status unless the job is cancelled
func (r *subtitleRepository) UpdateJobStatus(ctx context.Context, id string, status model.JobStatus, errorMessage *string) (bool, error) {
	sql := `UPDATE subtitle_jobs
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1 AND status <> $4`
	tag, err := r.pool.Exec(ctx, sql, id, string(status), errorMessage, string(model.JobStatusCancelled))
	if err != nil {
		return false, common.HandlePostgreSQLError(err, "failed to update subtitle job status")
	}
	return tag.RowsAffected() > 0, nil
}

// CancelJob moves a non-terminal job to cancelled
func (r *subtitleRepository) CancelJob(ctx context.Context, id string) (bool, error) {
	sql := `UPDATE subtitle_jobs
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status NOT IN ($2, $3, $4)`
	tag, err := r.pool.Exec(ctx, sql, id,
		string(model.JobStatusCancelled), string(model.JobStatusCompleted), string(model.JobStatusFailed))
	if err != nil {
		return false, common.HandlePostgreSQLError(err, "failed to cancel subtitle job")
	}
	return tag.RowsAffected() > 0, nil
}

// EnsureLanguage returns the existing record or inserts a pending one
func (r *subtitleRepository) EnsureLanguage(ctx context.Context, jobID, code string) (*model.LanguageTranslationRecord, error) {
	sql := `INSERT INTO subtitle_job_languages (job_id, language_code, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, language_code) DO UPDATE SET language_code = EXCLUDED.language_code
		RETURNING ` + languageColumns
	rec, err := scanLanguage(r.pool.QueryRow(ctx, sql, jobID, code, string(model.TranslationStatusPending)))
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to ensure language record")
	}
	return rec, nil
}

// UpdateLanguage persists a language record
func (r *subtitleRepository) UpdateLanguage(ctx context.Context, record *model.LanguageTranslationRecord) error {
	sql := `UPDATE subtitle_job_languages
		SET status = $2, srt_url = $3, srt_content = $4, error_message = $5, retry_count = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, sql,
		record.ID, string(record.Status), record.SrtURL, record.SrtContent, record.ErrorMessage, record.RetryCount,
	).Scan(&record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.Wrap(err, apperrors.CodeNotFound, "language record not found")
		}
		return common.HandlePostgreSQLError(err, "failed to update language record")
	}
	return nil
}

func (r *subtitleRepository) loadJob(ctx context.Context, sql string, args ...any) (*model.SubtitleJob, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.CodeNotFound, "subtitle job not found")
		}
		return nil, common.HandlePostgreSQLError(err, "failed to get subtitle job")
	}

	languages, err := r.listLanguages(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	job.Languages = languages
	return job, nil
}

func (r *subtitleRepository) listLanguages(ctx context.Context, jobID string) ([]*model.LanguageTranslationRecord, error) {
	sql := "SELECT " + languageColumns + " FROM subtitle_job_languages WHERE job_id = $1 ORDER BY id"
	rows, err := r.pool.Query(ctx, sql, jobID)
	if err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to list language records")
	}
	defer rows.Close()

	records := []*model.LanguageTranslationRecord{}
	for rows.Next() {
		rec, err := scanLanguage(rows)
		if err != nil {
			return nil, common.HandlePostgreSQLError(err, "failed to scan language record row")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.HandlePostgreSQLError(err, "failed to iterate language record rows")
	}
	return records, nil
}

func scanJob(row pgx.Row) (*model.SubtitleJob, error) {
	var job model.SubtitleJob
	var sourceType, status string
	err := row.Scan(
		&job.ID,
		&job.TenantID,
		&job.ToolboxTalkID,
		&job.SourceVideoURL,
		&sourceType,
		&status,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.SourceType = model.SourceType(sourceType)
	job.Status = model.JobStatus(status)
	return &job, nil
}

func scanLanguage(row pgx.Row) (*model.LanguageTranslationRecord, error) {
	var rec model.LanguageTranslationRecord
	var status string
	err := row.Scan(
		&rec.ID,
		&rec.JobID,
		&rec.LanguageCode,
		&status,
		&rec.SrtURL,
		&rec.SrtContent,
		&rec.ErrorMessage,
		&rec.RetryCount,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Status = model.TranslationStatus(status)
	return &rec, nil
}

// prefixed qualifies a comma separated column list with a table alias
func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, col := range cols {
		cols[i] = alias + "." + strings.TrimSpace(col)
	}
	return strings.Join(cols, ", ")
}

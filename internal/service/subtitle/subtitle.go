// Package subtitle runs the subtitle job state machine: resolve video, transcribe,
// generate the English SRT, translate it per language and report progress.
package subtitle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/language"
	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/progress"
	subtitlerepo "github.com/Taichi-iskw/talk-subtitles/internal/repository/subtitle"
	"github.com/Taichi-iskw/talk-subtitles/internal/repository/talk"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/storage"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/transcription"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/translation"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/video"
	"github.com/Taichi-iskw/talk-subtitles/internal/srt"
)

// TaskKind names the background work a Dispatcher runs for a job
type TaskKind string

const (
	TaskProcess TaskKind = "process"
	TaskRetry   TaskKind = "retry"
)

// Dispatcher queues background processing of a job
type Dispatcher interface {
	Enqueue(ctx context.Context, kind TaskKind, jobID string) error
}

// Service defines subtitle processing operations
type Service interface {
	// StartProcessing creates a pending job for the talk and queues it. English is always requested.
	StartProcessing(ctx context.Context, talkID, videoURL string, sourceType model.SourceType, targetLanguages []string) (string, error)

	// Process drives a job through every stage it has not completed yet
	Process(ctx context.Context, jobID string) error

	// ProcessRetry re-translates the failed languages of a job and returns how many now succeed
	ProcessRetry(ctx context.Context, jobID string) (int, error)

	// QueueRetry dispatches ProcessRetry when the job has failed languages and returns how many.
	// Zero means nothing was queued.
	QueueRetry(ctx context.Context, jobID string) (int, error)

	// GetStatus returns the latest job of a talk, or nil when the talk has none
	GetStatus(ctx context.Context, talkID string) (*model.SubtitleProcessingStatus, error)

	// CancelProcessing cancels the talk's active job. False means there is no active job;
	// a completed or failed job is a validation error.
	CancelProcessing(ctx context.Context, talkID string) (bool, error)

	// GetSrtContent returns stored SRT text when the language of the latest job is completed
	GetSrtContent(ctx context.Context, talkID, languageCode string) (string, bool, error)

	// TranslateMissingLanguages translates the latest completed English SRT into new languages
	TranslateMissingLanguages(ctx context.Context, talkID, tenantID string, languageCodes []string) (int, error)

	// ListJobs lists a talk's jobs, newest first
	ListJobs(ctx context.Context, talkID string, limit, offset int) ([]*model.SubtitleJob, error)
}

// Dependencies wires the collaborators of the service
type Dependencies struct {
	Jobs        subtitlerepo.Repository
	Talks       talk.Repository
	Resolver    video.Resolver
	Transcriber transcription.Client
	Translator  translation.Service
	Storage     storage.Service
	Notifier    progress.Notifier // optional
	Dispatcher  Dispatcher        // optional; without it callers run Process themselves
	Logger      *slog.Logger
	WordsPerCue int
}

// service implements Service
type service struct {
	jobs        subtitlerepo.Repository
	talks       talk.Repository
	resolver    video.Resolver
	transcriber transcription.Client
	translator  translation.Service
	storage     storage.Service
	notifier    progress.Notifier
	dispatcher  Dispatcher
	logger      *slog.Logger
	wordsPerCue int
	locks       *keyedMutex
}

// NewService creates a new subtitle processing service
func NewService(deps Dependencies) Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = progress.Discard
	}
	wordsPerCue := deps.WordsPerCue
	if wordsPerCue <= 0 {
		wordsPerCue = srt.DefaultWordsPerCue
	}
	return &service{
		jobs:        deps.Jobs,
		talks:       deps.Talks,
		resolver:    deps.Resolver,
		transcriber: deps.Transcriber,
		translator:  deps.Translator,
		storage:     deps.Storage,
		notifier:    notifier,
		dispatcher:  deps.Dispatcher,
		logger:      logging.WithComponent(logger, "subtitle"),
		wordsPerCue: wordsPerCue,
		locks:       newKeyedMutex(),
	}
}

// StartProcessing validates the request, creates the job and queues it
func (s *service) StartProcessing(ctx context.Context, talkID, videoURL string, sourceType model.SourceType, targetLanguages []string) (string, error) {
	if strings.TrimSpace(videoURL) == "" {
		return "", apperrors.New(apperrors.CodeValidation, "video URL is required")
	}
	if _, ok := model.ParseSourceType(string(sourceType)); !ok {
		return "", apperrors.New(apperrors.CodeValidation, fmt.Sprintf("unsupported source type %q", sourceType))
	}
	codes, err := NormalizeLanguages(targetLanguages)
	if err != nil {
		return "", err
	}

	t, err := s.talks.GetByID(ctx, talkID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) || apperrors.HasCode(err, apperrors.CodeInvalidArg) {
			return "", apperrors.Wrap(err, apperrors.CodeValidation, "toolbox talk not found")
		}
		return "", err
	}

	job := &model.SubtitleJob{
		ID:             uuid.NewString(),
		TenantID:       t.TenantID,
		ToolboxTalkID:  t.ID,
		SourceVideoURL: videoURL,
		SourceType:     sourceType,
		Status:         model.JobStatusPending,
	}
	for _, code := range codes {
		job.Languages = append(job.Languages, &model.LanguageTranslationRecord{
			JobID:        job.ID,
			LanguageCode: code,
			Status:       model.TranslationStatusPending,
		})
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", err
	}

	log := s.logger.With(logging.FieldJobID, job.ID, logging.FieldTalkID, t.ID)
	log.Info("subtitle job created", "languages", strings.Join(codes, ","), "source_type", sourceType)
	s.track(job.ID).push(ctx, StageQueued, 0, "Queued for processing")

	if s.dispatcher != nil {
		if err := s.dispatcher.Enqueue(ctx, TaskProcess, job.ID); err != nil {
			msg := "could not queue job: " + err.Error()
			if _, uerr := s.jobs.UpdateJobStatus(context.WithoutCancel(ctx), job.ID, model.JobStatusFailed, &msg); uerr != nil {
				log.Error("failed to record enqueue failure", "error", uerr)
			}
			return "", apperrors.Wrap(err, apperrors.CodeInternal, "failed to queue subtitle job")
		}
	}
	return job.ID, nil
}

// NormalizeLanguages resolves names or codes, drops duplicates and puts English first
func NormalizeLanguages(requested []string) ([]string, error) {
	codes := []string{model.EnglishCode}
	seen := map[string]bool{model.EnglishCode: true}
	var unknown []string

	for _, raw := range requested {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		code, ok := language.Resolve(raw)
		if !ok {
			unknown = append(unknown, raw)
			continue
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	if len(unknown) > 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "unsupported languages: "+strings.Join(unknown, ", "))
	}
	return codes, nil
}

// GetStatus builds the status view of the latest job
func (s *service) GetStatus(ctx context.Context, talkID string) (*model.SubtitleProcessingStatus, error) {
	job, err := s.latestJob(ctx, talkID)
	if err != nil || job == nil {
		return nil, err
	}
	return BuildStatus(job), nil
}

// BuildStatus aggregates a job and its language records
func BuildStatus(job *model.SubtitleJob) *model.SubtitleProcessingStatus {
	status := &model.SubtitleProcessingStatus{
		JobID:          job.ID,
		ToolboxTalkID:  job.ToolboxTalkID,
		Status:         job.Status,
		TotalLanguages: len(job.Languages),
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		Languages:      make([]model.LanguageStatus, 0, len(job.Languages)),
	}
	if job.ErrorMessage != nil {
		status.ErrorMessage = *job.ErrorMessage
	}

	for _, rec := range job.Languages {
		ls := model.LanguageStatus{
			LanguageCode: rec.LanguageCode,
			LanguageName: language.NameFor(rec.LanguageCode),
			Status:       rec.Status,
			RetryCount:   rec.RetryCount,
		}
		if rec.SrtURL != nil {
			ls.SrtURL = *rec.SrtURL
		}
		if rec.ErrorMessage != nil {
			ls.ErrorMessage = *rec.ErrorMessage
		}
		switch rec.Status {
		case model.TranslationStatusCompleted:
			status.CompletedLanguages++
		case model.TranslationStatusFailed:
			status.FailedLanguages++
		}
		status.Languages = append(status.Languages, ls)
	}
	return status
}

// CancelProcessing marks the latest non-terminal job cancelled
func (s *service) CancelProcessing(ctx context.Context, talkID string) (bool, error) {
	job, err := s.latestJob(ctx, talkID)
	if err != nil {
		return false, err
	}
	if job == nil || job.Status == model.JobStatusCancelled {
		return false, nil
	}
	if job.Status.IsTerminal() {
		return false, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("subtitle job %s is already %s", job.ID, job.Status))
	}

	ok, err := s.jobs.CancelJob(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		// finished between the read and the update
		current, err := s.jobs.GetJobStatus(ctx, job.ID)
		if err != nil {
			return false, err
		}
		if current == model.JobStatusCancelled {
			return false, nil
		}
		return false, apperrors.New(apperrors.CodeValidation,
			fmt.Sprintf("subtitle job %s is already %s", job.ID, current))
	}

	s.logger.Info("subtitle job cancelled", logging.FieldJobID, job.ID, logging.FieldTalkID, talkID)
	s.publish(ctx, model.SubtitleProgressUpdate{JobID: job.ID, Stage: StageCancelled, Message: "Cancelled"})
	return true, nil
}

// GetSrtContent returns the stored SRT for a completed language of the latest job
func (s *service) GetSrtContent(ctx context.Context, talkID, languageCode string) (string, bool, error) {
	code, ok := language.Resolve(languageCode)
	if !ok {
		return "", false, nil
	}
	job, err := s.latestJob(ctx, talkID)
	if err != nil || job == nil {
		return "", false, err
	}
	rec := job.Language(code)
	if rec == nil || rec.Status != model.TranslationStatusCompleted || rec.SrtContent == nil {
		return "", false, nil
	}
	return *rec.SrtContent, true, nil
}

// ListJobs lists a talk's jobs
func (s *service) ListJobs(ctx context.Context, talkID string, limit, offset int) ([]*model.SubtitleJob, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.jobs.ListJobsByTalk(ctx, talkID, limit, offset)
}

// latestJob returns nil without error when the talk has no job
func (s *service) latestJob(ctx context.Context, talkID string) (*model.SubtitleJob, error) {
	job, err := s.jobs.GetLatestJobForTalk(ctx, talkID)
	if apperrors.HasCode(err, apperrors.CodeNotFound) || apperrors.HasCode(err, apperrors.CodeInvalidArg) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

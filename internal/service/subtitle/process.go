package subtitle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/language"
	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/storage"
	"github.com/Taichi-iskw/talk-subtitles/internal/srt"
)

// errJobCancelled stops a run after the job was cancelled by another caller
var errJobCancelled = errors.New("subtitle job cancelled")

// Process runs every outstanding stage of a job. Completed, failed and
// cancelled jobs are left untouched.
func (s *service) Process(ctx context.Context, jobID string) error {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	log := s.logger.With(logging.FieldJobID, job.ID, logging.FieldTalkID, job.ToolboxTalkID)
	if job.Status.IsTerminal() {
		log.Info("subtitle job already finished, nothing to do", "status", job.Status)
		return nil
	}

	run := s.track(job.ID)
	err = s.process(ctx, job, run, log)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errJobCancelled):
		log.Info("subtitle job stopped after cancellation")
		run.end(ctx, StageCancelled, "Cancelled")
		return nil
	case ctx.Err() != nil:
		// shutdown: leave the job for the next dispatch
		return ctx.Err()
	default:
		return err
	}
}

func (s *service) process(ctx context.Context, job *model.SubtitleJob, run *tracker, log *slog.Logger) error {
	title := s.talkTitle(ctx, job)

	english := job.Language(model.EnglishCode)
	if english == nil {
		// created outside StartProcessing
		rec, err := s.jobs.EnsureLanguage(ctx, job.ID, model.EnglishCode)
		if err != nil {
			return err
		}
		job.Languages = append([]*model.LanguageTranslationRecord{rec}, job.Languages...)
		english = rec
	}

	source, err := s.englishStage(ctx, job, english, title, run, log)
	if err != nil {
		return err
	}

	var pending []*model.LanguageTranslationRecord
	for _, rec := range job.Languages {
		if rec.LanguageCode != model.EnglishCode && rec.Status != model.TranslationStatusCompleted {
			pending = append(pending, rec)
		}
	}

	if err := s.setStatus(ctx, job.ID, model.JobStatusTranslating, nil); err != nil {
		return err
	}
	run.push(ctx, StageTranslating, percentTranslating, fmt.Sprintf("Translating %d languages", len(pending)))

	if err := s.translateAll(ctx, job, pending, source, title, run, log); err != nil {
		return err
	}

	if err := s.setStatus(ctx, job.ID, model.JobStatusCompleted, nil); err != nil {
		return err
	}
	log.Info("subtitle job completed")
	run.push(ctx, StageCompleted, percentDone, "Subtitles ready")
	return nil
}

// englishStage returns the English SRT, producing it only when the record is not completed yet
func (s *service) englishStage(ctx context.Context, job *model.SubtitleJob, english *model.LanguageTranslationRecord, title string, run *tracker, log *slog.Logger) (string, error) {
	if english.Status == model.TranslationStatusCompleted && english.SrtContent != nil {
		log.Debug("english subtitles already generated, skipping transcription")
		return *english.SrtContent, nil
	}

	if err := s.setStatus(ctx, job.ID, model.JobStatusTranscribing, nil); err != nil {
		return "", err
	}
	run.push(ctx, StageResolvingVideo, percentResolving, "Resolving video source")

	playable, err := s.resolver.ResolvePlayableURL(ctx, job.SourceVideoURL, job.SourceType)
	if err != nil {
		return "", s.failJob(ctx, job, run, log, "video resolution failed", err)
	}
	if err := s.checkCancelled(ctx, job.ID); err != nil {
		return "", err
	}

	run.push(ctx, StageTranscribing, percentTranscribing, "Transcribing audio")
	words, err := s.transcriber.Transcribe(ctx, playable)
	if err != nil {
		return "", s.failJob(ctx, job, run, log, "transcription failed", err)
	}

	if err := s.setStatus(ctx, job.ID, model.JobStatusGeneratingSrt, nil); err != nil {
		return "", err
	}
	run.push(ctx, StageGeneratingSrt, percentGenerating, "Generating English subtitles")

	content := srt.Generate(words, s.wordsPerCue)
	if content == "" {
		return "", s.failJob(ctx, job, run, log, "subtitle generation failed",
			apperrors.New(apperrors.CodeEmptyResult, "transcript contains no subtitle text"))
	}

	artifact, err := s.storage.UploadArtifact(ctx, job.TenantID, job.ToolboxTalkID, model.ArtifactSubtitles,
		[]byte(content), storage.ArtifactMetadata{Title: title, LanguageCode: model.EnglishCode})
	if err != nil {
		return "", s.failJob(ctx, job, run, log, "english subtitle upload failed", err)
	}

	english.Status = model.TranslationStatusCompleted
	english.SrtURL = &artifact.URL
	english.SrtContent = &content
	english.ErrorMessage = nil
	if err := s.jobs.UpdateLanguage(ctx, english); err != nil {
		return "", err
	}
	log.Info("english subtitles generated", "cues", srt.CountBlocks(content), "storage_key", artifact.StorageKey)
	return content, nil
}

// translateAll settles each record in order; one language failing does not stop the others
func (s *service) translateAll(ctx context.Context, job *model.SubtitleJob, records []*model.LanguageTranslationRecord, source, title string, run *tracker, log *slog.Logger) error {
	succeeded := 0
	for i, rec := range records {
		if err := s.checkCancelled(ctx, job.ID); err != nil {
			return err
		}

		err := s.translateLanguage(ctx, job, rec, source, title, log)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			succeeded++
		}
		run.push(ctx, StageTranslating, translationPercent(i+1, len(records)), languageOutcome(rec.LanguageCode, err))
	}
	if len(records) > 0 {
		log.Info("translations settled", "succeeded", succeeded, "failed", len(records)-succeeded)
	}
	return nil
}

// translateLanguage translates and uploads one language and records the outcome on its record
func (s *service) translateLanguage(ctx context.Context, job *model.SubtitleJob, rec *model.LanguageTranslationRecord, source, title string, log *slog.Logger) error {
	log = log.With(logging.FieldLanguage, rec.LanguageCode)

	err := s.completeLanguage(ctx, job, rec, source, title)
	if err == nil {
		log.Info("language completed", "retry_count", rec.RetryCount)
		return nil
	}

	msg := err.Error()
	rec.Status = model.TranslationStatusFailed
	rec.SrtURL = nil
	rec.SrtContent = nil
	rec.ErrorMessage = &msg
	if uerr := s.jobs.UpdateLanguage(context.WithoutCancel(ctx), rec); uerr != nil {
		log.Error("failed to record language failure", "error", uerr)
	}
	log.Warn("language failed", "error", err, "retryable", apperrors.IsRetryable(err))
	return err
}

// completeLanguage moves rec through InProgress to Completed. Any error leaves rec for the caller to fail.
func (s *service) completeLanguage(ctx context.Context, job *model.SubtitleJob, rec *model.LanguageTranslationRecord, source, title string) error {
	rec.Status = model.TranslationStatusInProgress
	rec.ErrorMessage = nil
	if err := s.jobs.UpdateLanguage(ctx, rec); err != nil {
		return err
	}

	translated, err := s.translator.TranslateSubtitles(ctx, source, language.NameFor(rec.LanguageCode))
	if err != nil {
		return err
	}
	artifact, err := s.storage.UploadArtifact(ctx, job.TenantID, job.ToolboxTalkID, model.ArtifactSubtitles,
		[]byte(translated), storage.ArtifactMetadata{Title: title, LanguageCode: rec.LanguageCode})
	if err != nil {
		return err
	}

	rec.Status = model.TranslationStatusCompleted
	rec.SrtURL = &artifact.URL
	rec.SrtContent = &translated
	return s.jobs.UpdateLanguage(ctx, rec)
}

// retryTargets returns the failed records of job and its completed English record.
// No failed records is not an error.
func retryTargets(job *model.SubtitleJob) ([]*model.LanguageTranslationRecord, *model.LanguageTranslationRecord, error) {
	if job.Status == model.JobStatusCancelled {
		return nil, nil, apperrors.New(apperrors.CodeValidation, "subtitle job was cancelled")
	}

	var failed []*model.LanguageTranslationRecord
	for _, rec := range job.Languages {
		if rec.Status == model.TranslationStatusFailed {
			failed = append(failed, rec)
		}
	}
	if len(failed) == 0 {
		return nil, nil, nil
	}

	english := job.Language(model.EnglishCode)
	if english == nil || english.Status != model.TranslationStatusCompleted || english.SrtContent == nil {
		return nil, nil, apperrors.New(apperrors.CodeValidation,
			"english subtitles were never generated; start a new processing job instead")
	}
	return failed, english, nil
}

// QueueRetry dispatches a retry when the job has failed languages and returns how many.
// Zero means there was nothing to retry and nothing was queued.
func (s *service) QueueRetry(ctx context.Context, jobID string) (int, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	failed, _, err := retryTargets(job)
	if err != nil || len(failed) == 0 {
		return 0, err
	}
	if s.dispatcher == nil {
		return 0, apperrors.New(apperrors.CodeInternal, "background processing is not available")
	}
	if err := s.dispatcher.Enqueue(ctx, TaskRetry, job.ID); err != nil {
		return 0, apperrors.Wrap(err, apperrors.CodeInternal, "failed to queue retry")
	}
	s.logger.Info("retry queued", logging.FieldJobID, job.ID, "languages", len(failed))
	return len(failed), nil
}

// ProcessRetry re-runs translation for failed languages only
func (s *service) ProcessRetry(ctx context.Context, jobID string) (int, error) {
	unlock := s.locks.Lock(jobID)
	defer unlock()

	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	log := s.logger.With(logging.FieldJobID, job.ID, logging.FieldTalkID, job.ToolboxTalkID)

	failed, english, err := retryTargets(job)
	if err != nil {
		return 0, err
	}
	if len(failed) == 0 {
		log.Info("no failed languages to retry")
		return 0, nil
	}

	run := s.track(job.ID)
	if err := s.setStatus(ctx, job.ID, model.JobStatusTranslating, nil); err != nil {
		return 0, s.retryExit(ctx, err, run, log)
	}
	run.push(ctx, StageTranslating, percentTranslating, fmt.Sprintf("Retrying %d languages", len(failed)))

	for _, rec := range failed {
		rec.RetryCount++
	}
	title := s.talkTitle(ctx, job)
	if err := s.translateAll(ctx, job, failed, *english.SrtContent, title, run, log); err != nil {
		return 0, s.retryExit(ctx, err, run, log)
	}

	succeeded := 0
	for _, rec := range failed {
		if rec.Status == model.TranslationStatusCompleted {
			succeeded++
		}
	}

	if err := s.setStatus(ctx, job.ID, model.JobStatusCompleted, nil); err != nil {
		return succeeded, s.retryExit(ctx, err, run, log)
	}
	run.push(ctx, StageCompleted, percentDone, fmt.Sprintf("Retried %d languages, %d succeeded", len(failed), succeeded))
	return succeeded, nil
}

func (s *service) retryExit(ctx context.Context, err error, run *tracker, log *slog.Logger) error {
	if errors.Is(err, errJobCancelled) {
		log.Info("retry stopped after cancellation")
		run.end(ctx, StageCancelled, "Cancelled")
		return nil
	}
	return err
}

// TranslateMissingLanguages adds languages to the latest completed job using its English SRT
func (s *service) TranslateMissingLanguages(ctx context.Context, talkID, tenantID string, languageCodes []string) (int, error) {
	codes, err := NormalizeLanguages(languageCodes)
	if err != nil {
		return 0, err
	}
	codes = codes[1:] // English is the source

	job, err := s.jobs.GetLatestCompletedJobWithSource(ctx, talkID)
	if apperrors.HasCode(err, apperrors.CodeNotFound) {
		return 0, apperrors.Wrap(err, apperrors.CodeValidation, "talk has no completed subtitle job with English subtitles")
	}
	if err != nil {
		return 0, err
	}
	if job.TenantID != tenantID {
		return 0, apperrors.New(apperrors.CodeValidation, "talk does not belong to this tenant")
	}
	if len(codes) == 0 {
		return 0, nil
	}

	unlock := s.locks.Lock(job.ID)
	defer unlock()

	log := s.logger.With(logging.FieldJobID, job.ID, logging.FieldTalkID, talkID)
	source := *job.Language(model.EnglishCode).SrtContent
	title := s.talkTitle(ctx, job)
	run := s.track(job.ID)

	succeeded := 0
	for i, code := range codes {
		rec, err := s.jobs.EnsureLanguage(ctx, job.ID, code)
		if err != nil {
			return succeeded, err
		}
		if rec.Status == model.TranslationStatusCompleted {
			log.Debug("language already available", logging.FieldLanguage, code)
			continue
		}
		if rec.Status == model.TranslationStatusFailed {
			rec.RetryCount++
		}
		err = s.translateLanguage(ctx, job, rec, source, title, log)
		if ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		run.push(ctx, StageTranslating, translationPercent(i+1, len(codes)), languageOutcome(code, err))
		if err == nil {
			succeeded++
		}
	}

	log.Info("missing languages translated", "requested", len(codes), "succeeded", succeeded)
	return succeeded, nil
}

// failJob records a stage failure on the job and every unfinished language
func (s *service) failJob(ctx context.Context, job *model.SubtitleJob, run *tracker, log *slog.Logger, stage string, cause error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	msg := stage + ": " + cause.Error()
	wctx := context.WithoutCancel(ctx)

	written, err := s.jobs.UpdateJobStatus(wctx, job.ID, model.JobStatusFailed, &msg)
	if err != nil {
		log.Error("failed to record job failure", "error", err)
		return cause
	}
	if !written {
		return errJobCancelled
	}

	for _, rec := range job.Languages {
		if rec.Status == model.TranslationStatusCompleted {
			continue
		}
		rec.Status = model.TranslationStatusFailed
		rec.ErrorMessage = &msg
		if err := s.jobs.UpdateLanguage(wctx, rec); err != nil {
			log.Error("failed to record language failure", logging.FieldLanguage, rec.LanguageCode, "error", err)
		}
	}

	log.Error("subtitle job failed", "error", cause, "retryable", apperrors.IsRetryable(cause))
	run.end(ctx, StageFailed, msg)

	code := apperrors.CodeOf(cause)
	if code == "" {
		code = apperrors.CodeExternal
	}
	return apperrors.Wrap(cause, code, stage)
}

// setStatus writes the job status, returning errJobCancelled when the job was cancelled meanwhile
func (s *service) setStatus(ctx context.Context, jobID string, status model.JobStatus, msg *string) error {
	written, err := s.jobs.UpdateJobStatus(ctx, jobID, status, msg)
	if err != nil {
		return err
	}
	if !written {
		return errJobCancelled
	}
	return nil
}

func (s *service) checkCancelled(ctx context.Context, jobID string) error {
	status, err := s.jobs.GetJobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if status == model.JobStatusCancelled {
		return errJobCancelled
	}
	return nil
}

// talkTitle is the slug source for uploaded files
func (s *service) talkTitle(ctx context.Context, job *model.SubtitleJob) string {
	t, err := s.talks.GetByID(ctx, job.ToolboxTalkID)
	if err != nil || t.Title == "" {
		return "subtitles"
	}
	return t.Title
}

//go:build integration

package subtitle

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/repository/common"
	"github.com/Taichi-iskw/talk-subtitles/internal/repository/talk"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSubtitleRepository_Integration tests the subtitle repository with real PostgreSQL
func TestSubtitleRepository_Integration(t *testing.T) {
	pool := common.SetupTestDB(t)

	repo := NewRepository(pool)
	talkRepo := talk.NewRepository(pool)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	testTalk := &model.ToolboxTalk{TenantID: uuid.NewString(), Title: "Confined spaces"}
	require.NoError(t, talkRepo.Create(ctx, testTalk))

	job := &model.SubtitleJob{
		TenantID:       testTalk.TenantID,
		ToolboxTalkID:  testTalk.ID,
		SourceVideoURL: "https://cdn.example.com/confined.mp4",
		SourceType:     model.SourceTypeDirect,
		Languages: []*model.LanguageTranslationRecord{
			{LanguageCode: "en"},
			{LanguageCode: "es"},
		},
	}

	t.Run("CreateJob and GetJob", func(t *testing.T) {
		require.NoError(t, repo.CreateJob(ctx, job))

		got, err := repo.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, got.Status)
		assert.Equal(t, []string{"en", "es"}, got.LanguageCodes())
	})

	t.Run("missing talk is a dependency error", func(t *testing.T) {
		orphan := &model.SubtitleJob{
			TenantID:       testTalk.TenantID,
			ToolboxTalkID:  uuid.NewString(),
			SourceVideoURL: "https://cdn.example.com/x.mp4",
			SourceType:     model.SourceTypeDirect,
		}
		err := repo.CreateJob(ctx, orphan)
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeDependency, apperrors.CodeOf(err))
	})

	t.Run("UpdateLanguage and latest completed source", func(t *testing.T) {
		en := job.Languages[0]
		content := "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n"
		url := "https://cdn.example.com/en.srt"
		en.Status = model.TranslationStatusCompleted
		en.SrtContent = &content
		en.SrtURL = &url
		require.NoError(t, repo.UpdateLanguage(ctx, en))

		ok, err := repo.UpdateJobStatus(ctx, job.ID, model.JobStatusCompleted, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		src, err := repo.GetLatestCompletedJobWithSource(ctx, testTalk.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, src.ID)
		assert.Equal(t, content, *src.Language("en").SrtContent)
	})

	t.Run("EnsureLanguage is idempotent", func(t *testing.T) {
		first, err := repo.EnsureLanguage(ctx, job.ID, "fr")
		require.NoError(t, err)
		second, err := repo.EnsureLanguage(ctx, job.ID, "fr")
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("cancel only affects active jobs", func(t *testing.T) {
		ok, err := repo.CancelJob(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok, "completed job cannot be cancelled")

		active := &model.SubtitleJob{
			TenantID:       testTalk.TenantID,
			ToolboxTalkID:  testTalk.ID,
			SourceVideoURL: "https://cdn.example.com/confined-v2.mp4",
			SourceType:     model.SourceTypeDirect,
			Languages:      []*model.LanguageTranslationRecord{{LanguageCode: "en"}},
		}
		require.NoError(t, repo.CreateJob(ctx, active))

		ok, err = repo.CancelJob(ctx, active.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		// the worker must not overwrite a cancellation
		ok, err = repo.UpdateJobStatus(ctx, active.ID, model.JobStatusTranscribing, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		status, err := repo.GetJobStatus(ctx, active.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCancelled, status)

		latest, err := repo.GetLatestJobForTalk(ctx, testTalk.ID)
		require.NoError(t, err)
		assert.Equal(t, active.ID, latest.ID)

		jobs, err := repo.ListJobsByTalk(ctx, testTalk.ID, 10, 0)
		require.NoError(t, err)
		assert.Len(t, jobs, 2)
	})

	t.Run("deleting the talk cascades", func(t *testing.T) {
		require.NoError(t, talkRepo.Delete(ctx, testTalk.ID))
		_, err := repo.GetJob(ctx, job.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	})
}

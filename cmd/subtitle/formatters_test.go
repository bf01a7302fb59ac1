package subtitle

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Taichi-iskw/talk-subtitles/internal/language"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

func TestTableFormatter_FormatStatus(t *testing.T) {
	status := completedStatus()
	status.Status = model.JobStatusFailed
	status.ErrorMessage = "translation stage failed"
	status.Languages[1].Status = model.TranslationStatusFailed
	status.Languages[1].ErrorMessage = strings.Repeat("x", 80)
	status.Languages[1].RetryCount = 3

	output, err := (&TableFormatter{}).FormatStatus(status)
	require.NoError(t, err)

	assert.Contains(t, output, "Status: failed")
	assert.Contains(t, output, "Error: translation stage failed")
	assert.Contains(t, output, "Updated: 2 hours ago")
	assert.Contains(t, output, strings.Repeat("x", 60)+"...")
	assert.NotContains(t, output, strings.Repeat("x", 61))
	assert.Contains(t, output, "https://cdn/en.srt")
}

func TestTableFormatter_FormatJobs(t *testing.T) {
	jobs := []*model.SubtitleJob{{
		ID:         "job-1",
		Status:     model.JobStatusTranslating,
		SourceType: model.SourceTypeYouTube,
		CreatedAt:  time.Now().Add(-3 * time.Minute),
		Languages: []*model.LanguageTranslationRecord{
			{LanguageCode: "en"}, {LanguageCode: "es"},
		},
	}}

	output, err := (&TableFormatter{}).FormatJobs(jobs)
	require.NoError(t, err)
	assert.Contains(t, output, "job-1")
	assert.Contains(t, output, "translating")
	assert.Contains(t, output, "en,es")
	assert.Contains(t, output, "3 minutes ago")
}

func TestJSONFormatter(t *testing.T) {
	f := &JSONFormatter{}

	output, err := f.FormatStatus(completedStatus())
	require.NoError(t, err)
	assert.Contains(t, output, `"status": "completed"`)
	assert.Contains(t, output, `"language_name": "Spanish"`)

	output, err = f.FormatJobs(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", output)
}

func TestGetFormatter(t *testing.T) {
	tests := []struct {
		format  string
		want    Formatter
		wantErr bool
	}{
		{"table", &TableFormatter{}, false},
		{"TEXT", &TableFormatter{}, false},
		{"json", &JSONFormatter{}, false},
		{"srt", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := GetFormatter(tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestFormatLanguages(t *testing.T) {
	output := formatLanguages(language.AllLanguages()[:2])
	assert.Contains(t, output, "English")
	assert.Contains(t, output, "Spanish")
	assert.Contains(t, output, "es")
	assert.Equal(t, 1, strings.Count(output, "English"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "ab...", truncateString("abcdef", 2))
}

package translation

import (
	"context"
	"testing"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/srt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateText(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		isHTML    bool
		reply     func(context.Context, string) (string, error)
		want      string
		wantCode  string
		wantCalls int
	}{
		{
			name:      "blank input short-circuits",
			text:      "   \n",
			want:      "",
			wantCalls: 0,
		},
		{
			name:      "plain text",
			text:      "Wear your hard hat.",
			reply:     replying("  Use su casco.  "),
			want:      "Use su casco.",
			wantCalls: 1,
		},
		{
			name:      "blank reply is a failure",
			text:      "Wear your hard hat.",
			reply:     replying(" \n "),
			wantCode:  apperrors.CodeEmptyResult,
			wantCalls: 1,
		},
		{
			name: "transport failure passes through",
			text: "Wear your hard hat.",
			reply: func(context.Context, string) (string, error) {
				return "", apperrors.New(apperrors.CodeTransport, "connection refused")
			},
			wantCode:  apperrors.CodeTransport,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGenerator{Generate: tt.reply}
			svc := NewTranslationService(fake.generator(), nil)

			got, err := svc.TranslateText(context.Background(), tt.text, "Spanish", tt.isHTML, "")

			assert.Equal(t, tt.wantCalls, fake.calls())
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateText_PromptContent(t *testing.T) {
	fake := &fakeGenerator{Generate: replying("<p>Hola</p>")}
	svc := NewTranslationService(fake.generator(), nil)

	_, err := svc.TranslateText(context.Background(), "<p>Hello</p>", "Spanish", true, "")
	require.NoError(t, err)

	prompt := fake.lastPrompt()
	assert.Contains(t, prompt, "English text into Spanish")
	assert.Contains(t, prompt, "Do not add, remove, reorder or rename any tag")
	assert.Contains(t, prompt, "<p>Hello</p>")

	_, err = svc.TranslateText(context.Background(), "Hello", "German", false, "French")
	require.NoError(t, err)
	assert.Contains(t, fake.lastPrompt(), "French text into German")
	assert.NotContains(t, fake.lastPrompt(), "HTML")
}

func TestTranslateText_NoProvider(t *testing.T) {
	svc := NewTranslationService(nil, nil)
	_, err := svc.TranslateText(context.Background(), "Hello", "Spanish", false, "")
	assert.Equal(t, apperrors.CodeConfiguration, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestTranslateBatch(t *testing.T) {
	items := []BatchItem{
		{Key: "title", Text: "Ladder safety"},
		{Key: "blank", Text: "  "},
		{Key: "body", Text: "<p>Check the <b>feet</b></p>", IsHTML: true, Context: "lesson body"},
		{Key: "summary", Text: "Three points of contact"},
	}

	tests := []struct {
		name   string
		reply  string
		assert func(t *testing.T, results map[string]ItemResult)
	}{
		{
			name:  "array wrapped in prose",
			reply: "Sure! Here you go:\n```json\n[\"Seguridad en escaleras\", \"<p>Revise las <b>patas</b></p>\", \"Tres puntos de apoyo\"]\n```",
			assert: func(t *testing.T, results map[string]ItemResult) {
				assert.Equal(t, "Seguridad en escaleras", results["title"].Text)
				assert.Equal(t, "<p>Revise las <b>patas</b></p>", results["body"].Text)
				assert.Equal(t, "Tres puntos de apoyo", results["summary"].Text)
				for _, r := range results {
					assert.NoError(t, r.Err)
				}
			},
		},
		{
			name:  "short array fails the missing items only",
			reply: `["Seguridad en escaleras"]`,
			assert: func(t *testing.T, results map[string]ItemResult) {
				assert.Equal(t, "Seguridad en escaleras", results["title"].Text)
				assert.Equal(t, apperrors.CodeMalformed, apperrors.CodeOf(results["body"].Err))
				assert.Equal(t, apperrors.CodeMalformed, apperrors.CodeOf(results["summary"].Err))
				assert.Empty(t, results["summary"].Text, "never falls back to the source text")
			},
		},
		{
			name:  "undecodable reply fails every item",
			reply: "I cannot help with that [sorry]",
			assert: func(t *testing.T, results map[string]ItemResult) {
				for _, key := range []string{"title", "body", "summary"} {
					assert.Equal(t, apperrors.CodeMalformed, apperrors.CodeOf(results[key].Err), key)
					assert.Empty(t, results[key].Text)
				}
			},
		},
		{
			name:  "empty element is an empty result",
			reply: `["Seguridad en escaleras", "", "Tres puntos de apoyo"]`,
			assert: func(t *testing.T, results map[string]ItemResult) {
				assert.Equal(t, apperrors.CodeEmptyResult, apperrors.CodeOf(results["body"].Err))
				assert.NoError(t, results["summary"].Err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGenerator{Generate: replying(tt.reply)}
			svc := NewTranslationService(fake.generator(), nil)

			results, err := svc.TranslateBatch(context.Background(), items, "Spanish", "")
			require.NoError(t, err)
			require.Len(t, results, 4)
			assert.Equal(t, 1, fake.calls())

			blank := results["blank"]
			assert.NoError(t, blank.Err)
			assert.Equal(t, "", blank.Text)

			tt.assert(t, results)
		})
	}
}

func TestTranslateBatch_PromptAndShortCircuit(t *testing.T) {
	fake := &fakeGenerator{Generate: replying(`["a"]`)}
	svc := NewTranslationService(fake.generator(), nil)

	results, err := svc.TranslateBatch(context.Background(), []BatchItem{{Key: "x", Text: ""}}, "Polish", "")
	require.NoError(t, err)
	assert.Equal(t, 0, fake.calls())
	assert.Contains(t, results, "x")

	_, err = svc.TranslateBatch(context.Background(), []BatchItem{{Key: "x", Text: "<i>hi</i>", IsHTML: true}}, "Polish", "")
	require.NoError(t, err)
	prompt := fake.lastPrompt()
	assert.Contains(t, prompt, "JSON array of exactly 1 strings")
	assert.Contains(t, prompt, `"html": true`)
	assert.Contains(t, prompt, "into Polish")
}

func TestTranslateBatch_CallFailure(t *testing.T) {
	fake := &fakeGenerator{Generate: func(context.Context, string) (string, error) {
		return "", apperrors.New(apperrors.CodeTransport, "timeout")
	}}
	svc := NewTranslationService(fake.generator(), nil)

	results, err := svc.TranslateBatch(context.Background(), []BatchItem{{Key: "a", Text: "hi"}}, "Polish", "")
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestTranslateSubtitles(t *testing.T) {
	english := "1\n00:00:00,000 --> 00:00:01,000\nHello\n\n2\n00:00:01,000 --> 00:00:02,000\nGoodbye\n\n"

	t.Run("keeps cue count", func(t *testing.T) {
		fake := &fakeGenerator{Generate: replying("```srt\n1\n00:00:00,000 --> 00:00:01,000\nHola\n\n2\n00:00:01,000 --> 00:00:02,000\nAdiós\n```")}
		svc := NewTranslationService(fake.generator(), nil)

		out, err := svc.TranslateSubtitles(context.Background(), english, "Spanish")
		require.NoError(t, err)
		assert.Equal(t, 2, srt.CountBlocks(out))
		assert.Contains(t, out, "Adiós")
		assert.NotContains(t, out, "```")
		assert.Contains(t, fake.lastPrompt(), "into Spanish")
	})

	t.Run("merged cues are malformed", func(t *testing.T) {
		fake := &fakeGenerator{Generate: replying("1\n00:00:00,000 --> 00:00:02,000\nHola adiós\n")}
		svc := NewTranslationService(fake.generator(), nil)

		_, err := svc.TranslateSubtitles(context.Background(), english, "Spanish")
		assert.Equal(t, apperrors.CodeMalformed, apperrors.CodeOf(err))
	})

	t.Run("empty source makes no call", func(t *testing.T) {
		fake := &fakeGenerator{}
		svc := NewTranslationService(fake.generator(), nil)

		out, err := svc.TranslateSubtitles(context.Background(), "", "Spanish")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Equal(t, 0, fake.calls())
	})
}

func TestSendCustomPrompt(t *testing.T) {
	fake := &fakeGenerator{Generate: replying("42")}
	svc := NewTranslationService(fake.generator(), nil)

	out, err := svc.SendCustomPrompt(context.Background(), "Answer with a number")
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, "Answer with a number", fake.lastPrompt())

	_, err = svc.SendCustomPrompt(context.Background(), " ")
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
	assert.Equal(t, 1, fake.calls())
}

func TestParseStringArray(t *testing.T) {
	out, err := parseStringArray(`noise ["a", "b"] trailing`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	out, err = parseStringArray(`[]`)
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = parseStringArray(`no array here`)
	assert.Equal(t, apperrors.CodeMalformed, apperrors.CodeOf(err))

	_, err = parseStringArray(`[1, 2]`)
	assert.Equal(t, apperrors.CodeMalformed, apperrors.CodeOf(err))
}

package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

const (
	defaultScribeURL   = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultScribeModel = "scribe_v1"
	scribeTimeout      = 15 * time.Minute
)

// ScribeConfig holds the speech-to-text API settings
type ScribeConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ScribeClient calls a speech-to-text API that fetches the media itself from a URL
type ScribeClient struct {
	cfg        ScribeConfig
	httpClient *http.Client
}

// NewScribeClient creates a client; httpClient may be nil
func NewScribeClient(cfg ScribeConfig, httpClient *http.Client) *ScribeClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultScribeURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultScribeModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: scribeTimeout}
	}
	return &ScribeClient{cfg: cfg, httpClient: httpClient}
}

type scribeResponse struct {
	LanguageCode string                 `json:"language_code"`
	Text         string                 `json:"text"`
	Words        []model.TranscriptWord `json:"words"`
}

// Transcribe submits the URL and returns the word list
func (c *ScribeClient) Transcribe(ctx context.Context, videoURL string) ([]model.TranscriptWord, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return nil, apperrors.New(apperrors.CodeConfiguration, "transcription api key is not configured")
	}
	if videoURL == "" {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video URL is required")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"model_id":               c.cfg.Model,
		"cloud_storage_url":      videoURL,
		"timestamps_granularity": "word",
		"tag_audio_events":       "true",
		"language_code":          model.EnglishCode,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build transcription request")
		}
	}
	if err := form.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build transcription request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, &body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build transcription request")
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransport, "transcription request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeTransport, "failed to read transcription response")
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.New(apperrors.CodeConfiguration,
			fmt.Sprintf("transcription service rejected the credentials (http %d)", resp.StatusCode))
	case resp.StatusCode >= http.StatusMultipleChoices:
		return nil, apperrors.New(apperrors.CodeTransport,
			fmt.Sprintf("transcription service returned http %d: %s", resp.StatusCode, snippet(raw)))
	}

	var parsed scribeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMalformed, "failed to parse transcription response")
	}
	if !hasSpokenWords(parsed.Words) {
		return nil, apperrors.New(apperrors.CodeEmptyResult, "transcription contains no spoken words")
	}
	return parsed.Words, nil
}

func hasSpokenWords(words []model.TranscriptWord) bool {
	for _, w := range words {
		if w.Type != model.WordTypeSpacing && w.Type != model.WordTypeAudioEvent && strings.TrimSpace(w.Text) != "" {
			return true
		}
	}
	return false
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

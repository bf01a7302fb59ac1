package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/srt"
)

// DefaultSourceLanguage is the language talks are transcribed in
const DefaultSourceLanguage = "English"

// BatchItem is one entry of a batch translation
type BatchItem struct {
	Key     string
	Text    string
	IsHTML  bool
	Context string // optional hint for the model, never translated
}

// ItemResult is the outcome for one batch item
type ItemResult struct {
	Text string
	Err  error
}

// Service defines the translation operations
type Service interface {
	// TranslateText translates plain text or HTML. Blank input returns "" without calling the model.
	TranslateText(ctx context.Context, text, targetLanguage string, isHTML bool, sourceLanguage string) (string, error)

	// TranslateBatch translates all items with one model call. A call failure is returned as err;
	// parse problems are reported per item.
	TranslateBatch(ctx context.Context, items []BatchItem, targetLanguage, sourceLanguage string) (map[string]ItemResult, error)

	// TranslateSubtitles translates SRT text keeping numbering and timestamps
	TranslateSubtitles(ctx context.Context, srtContent, targetLanguage string) (string, error)

	// SendCustomPrompt forwards a caller-built instruction
	SendCustomPrompt(ctx context.Context, prompt string) (string, error)
}

// translationService implements Service
type translationService struct {
	generator Generator
	logger    *slog.Logger
}

// NewTranslationService creates a new translation service
func NewTranslationService(generator Generator, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &translationService{
		generator: generator,
		logger:    logger.With("component", "translation"),
	}
}

// TranslateText translates a single text
func (s *translationService) TranslateText(ctx context.Context, text, targetLanguage string, isHTML bool, sourceLanguage string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	if sourceLanguage == "" {
		sourceLanguage = DefaultSourceLanguage
	}

	out, err := s.generate(ctx, buildTextPrompt(text, targetLanguage, isHTML, sourceLanguage))
	if err != nil {
		return "", err
	}
	return out, nil
}

// TranslateBatch packs the non-blank items into one instruction and maps the reply back by position
func (s *translationService) TranslateBatch(ctx context.Context, items []BatchItem, targetLanguage, sourceLanguage string) (map[string]ItemResult, error) {
	if sourceLanguage == "" {
		sourceLanguage = DefaultSourceLanguage
	}

	results := make(map[string]ItemResult, len(items))
	var pending []BatchItem
	for _, item := range items {
		if strings.TrimSpace(item.Text) == "" {
			results[item.Key] = ItemResult{}
			continue
		}
		pending = append(pending, item)
	}
	if len(pending) == 0 {
		return results, nil
	}

	prompt, err := buildBatchPrompt(pending, targetLanguage, sourceLanguage)
	if err != nil {
		return nil, err
	}

	reply, err := s.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	translated, parseErr := parseStringArray(reply)
	if parseErr != nil {
		s.logger.Warn("batch response could not be parsed",
			"items", len(pending), "target", targetLanguage, "error", parseErr)
	}

	for i, item := range pending {
		switch {
		case parseErr != nil:
			results[item.Key] = ItemResult{Err: parseErr}
		case i >= len(translated):
			results[item.Key] = ItemResult{Err: apperrors.New(apperrors.CodeMalformed,
				fmt.Sprintf("response has %d items, expected %d", len(translated), len(pending)))}
		case strings.TrimSpace(translated[i]) == "":
			results[item.Key] = ItemResult{Err: apperrors.New(apperrors.CodeEmptyResult, "empty translation for item")}
		default:
			results[item.Key] = ItemResult{Text: strings.TrimSpace(translated[i])}
		}
	}
	return results, nil
}

// TranslateSubtitles translates an SRT document and checks the cue count survived
func (s *translationService) TranslateSubtitles(ctx context.Context, srtContent, targetLanguage string) (string, error) {
	if strings.TrimSpace(srtContent) == "" {
		return "", nil
	}

	out, err := s.generate(ctx, buildSubtitlePrompt(srtContent, targetLanguage))
	if err != nil {
		return "", err
	}
	out = stripCodeFence(out)

	want, got := srt.CountBlocks(srtContent), srt.CountBlocks(out)
	if want != got {
		return "", apperrors.New(apperrors.CodeMalformed,
			fmt.Sprintf("translated subtitles have %d cues, expected %d", got, want))
	}
	return strings.TrimSpace(out) + "\n\n", nil
}

// SendCustomPrompt forwards the prompt as is
func (s *translationService) SendCustomPrompt(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", apperrors.New(apperrors.CodeValidation, "prompt is empty")
	}
	return s.generate(ctx, prompt)
}

// generate treats a nominal success with blank output as a failure
func (s *translationService) generate(ctx context.Context, prompt string) (string, error) {
	if s.generator == nil {
		return "", apperrors.New(apperrors.CodeConfiguration, "no translation provider configured")
	}
	out, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", apperrors.New(apperrors.CodeEmptyResult, "translation service returned empty output")
	}
	return strings.TrimSpace(out), nil
}

// parseStringArray decodes the span between the first '[' and the last ']'
func parseStringArray(reply string) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end <= start {
		return nil, apperrors.New(apperrors.CodeMalformed, "response does not contain a JSON array")
	}

	var out []string
	if err := json.Unmarshal([]byte(reply[start:end+1]), &out); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeMalformed, "response array is not a list of strings")
	}
	return out, nil
}

// stripCodeFence removes a surrounding ``` block some models add
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.Index(trimmed, "\n"); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
}

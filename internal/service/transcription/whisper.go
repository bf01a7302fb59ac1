package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/common"
)

const defaultWhisperModel = "large"

// whisperOutput is the subset of the whisper CLI json output we read
type whisperOutput struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
		Words []struct {
			Word  string  `json:"word"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"words"`
	} `json:"segments"`
}

// WhisperClient transcribes locally with the whisper CLI. ffmpeg inside whisper
// reads the video URL directly.
type WhisperClient struct {
	cmdRunner common.CmdRunner
	model     string
	tempRoot  string // parent for per-call output dirs; os.TempDir when empty
}

// NewWhisperClient creates a WhisperClient with default CmdRunner
func NewWhisperClient(model string) *WhisperClient {
	return NewWhisperClientWithCmdRunner(common.NewCmdRunner(), model, "")
}

// NewWhisperClientWithCmdRunner creates a WhisperClient with custom CmdRunner (for testing)
func NewWhisperClientWithCmdRunner(cmdRunner common.CmdRunner, model, tempRoot string) *WhisperClient {
	if model == "" {
		model = defaultWhisperModel
	}
	return &WhisperClient{cmdRunner: cmdRunner, model: model, tempRoot: tempRoot}
}

// Transcribe runs whisper with word timestamps and flattens segments into words
func (c *WhisperClient) Transcribe(ctx context.Context, videoURL string) ([]model.TranscriptWord, error) {
	if videoURL == "" {
		return nil, errors.New(errors.CodeInvalidArg, "video URL is required")
	}

	tempDir, err := os.MkdirTemp(c.tempRoot, "talksubs-whisper-*")
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to create temp directory")
	}
	defer os.RemoveAll(tempDir)

	args := []string{
		videoURL,
		"--model", c.model,
		"--output_format", "json",
		"--output_dir", tempDir,
		"--temperature", "0",
		"--word_timestamps", "True",
		"--language", model.EnglishCode,
	}

	if _, err := c.cmdRunner.Run(ctx, "whisper", args...); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, errors.CodeExternal, c.formatWhisperError(err))
	}

	jsonPath, err := findOutputJSON(tempDir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformed, "whisper produced no json output")
	}
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to read whisper output")
	}

	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, errors.CodeMalformed, "failed to parse whisper output")
	}

	words := toTranscriptWords(out)
	if !hasSpokenWords(words) {
		return nil, errors.New(errors.CodeEmptyResult, "transcription contains no spoken words")
	}
	return words, nil
}

// toTranscriptWords emits word/spacing pairs. Segments without word timings
// become a single word spanning the segment.
func toTranscriptWords(out whisperOutput) []model.TranscriptWord {
	var words []model.TranscriptWord
	emit := func(text string, start, end float64) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		if len(words) > 0 {
			prev := words[len(words)-1].End
			words = append(words, model.TranscriptWord{Text: " ", Type: model.WordTypeSpacing, Start: prev, End: start})
		}
		words = append(words, model.TranscriptWord{Text: text, Type: model.WordTypeWord, Start: start, End: end})
	}

	for _, seg := range out.Segments {
		if len(seg.Words) == 0 {
			emit(seg.Text, seg.Start, seg.End)
			continue
		}
		for _, w := range seg.Words {
			emit(w.Word, w.Start, w.End)
		}
	}
	return words
}

func findOutputJSON(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no json file in %s", dir)
	}
	return matches[0], nil
}

// formatWhisperError provides user-friendly error messages for Whisper failures
func (c *WhisperClient) formatWhisperError(err error) string {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "executable file not found") ||
		(strings.Contains(errMsg, "No such file or directory") && strings.Contains(errMsg, "whisper")):
		return "Whisper is not installed. Please install OpenAI Whisper: pip install openai-whisper"
	case strings.Contains(errMsg, "No module named"):
		return "Whisper dependencies missing. Please reinstall: pip install --upgrade openai-whisper"
	case strings.Contains(errMsg, "not enough memory") || strings.Contains(errMsg, "OutOfMemoryError"):
		return fmt.Sprintf("insufficient memory for model '%s'. Try using a smaller model (tiny, base, small)", c.model)
	case strings.Contains(errMsg, "Invalid model"):
		return fmt.Sprintf("unsupported model '%s'. Available models: tiny, base, small, medium, large", c.model)
	case strings.Contains(errMsg, "Could not load model"):
		return fmt.Sprintf("failed to load Whisper model '%s'. The model may need to be downloaded on first use", c.model)
	case strings.Contains(errMsg, "Server returned") || strings.Contains(errMsg, "HTTP error"):
		return "video URL could not be fetched for transcription"
	case strings.Contains(errMsg, "Invalid data found") || strings.Contains(errMsg, "format not supported"):
		return "video format could not be decoded for transcription"
	default:
		return fmt.Sprintf("transcription failed with model '%s' - %s", c.model, errMsg)
	}
}

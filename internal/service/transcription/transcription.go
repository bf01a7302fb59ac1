package transcription

import (
	"context"

	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

// Client transcribes a playable video URL into ordered timed words.
// Failures are *errors.AppError with CodeConfiguration, CodeTransport,
// CodeMalformed, CodeEmptyResult or CodeExternal.
type Client interface {
	Transcribe(ctx context.Context, videoURL string) ([]model.TranscriptWord, error)
}

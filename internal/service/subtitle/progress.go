package subtitle

import (
	"context"
	"fmt"
	"time"

	"github.com/Taichi-iskw/talk-subtitles/internal/language"
	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

// Stage labels carried by progress updates
const (
	StageQueued         = "queued"
	StageResolvingVideo = "resolving_video"
	StageTranscribing   = "transcribing"
	StageGeneratingSrt  = "generating_srt"
	StageTranslating    = "translating"
	StageCompleted      = "completed"
	StageFailed         = "failed"
	StageCancelled      = "cancelled"
)

const (
	percentResolving    = 5
	percentTranscribing = 10
	percentGenerating   = 40
	percentTranslating  = 50
	percentDone         = 100

	publishTimeout = 2 * time.Second
)

// translationPercent is the percent after i of n languages settled
func translationPercent(i, n int) int {
	if n <= 0 {
		return percentTranslating
	}
	return percentTranslating + 45*i/n
}

// languageOutcome is the progress message after one language settles
func languageOutcome(code string, err error) string {
	name := language.NameFor(code)
	if err != nil {
		return fmt.Sprintf("Translation to %s failed", name)
	}
	return "Translated " + name
}

// tracker remembers the last percent pushed for one job run
type tracker struct {
	s       *service
	jobID   string
	percent int
}

func (s *service) track(jobID string) *tracker {
	return &tracker{s: s, jobID: jobID}
}

// push reports a stage; a failed push is logged and never returned
func (t *tracker) push(ctx context.Context, stage string, percent int, message string) {
	t.percent = percent
	t.s.publish(ctx, model.SubtitleProgressUpdate{JobID: t.jobID, Stage: stage, Percent: percent, Message: message})
}

// end reports a terminal stage at the last percent reached
func (t *tracker) end(ctx context.Context, stage, message string) {
	t.s.publish(ctx, model.SubtitleProgressUpdate{JobID: t.jobID, Stage: stage, Percent: t.percent, Message: message})
}

func (s *service) publish(ctx context.Context, update model.SubtitleProgressUpdate) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.notifier.Publish(pctx, update); err != nil {
		s.logger.Warn("progress push failed",
			logging.FieldJobID, update.JobID,
			logging.FieldStage, update.Stage,
			"error", err)
	}
}

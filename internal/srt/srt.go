// Package srt builds SubRip subtitle text from timed transcript words.
package srt

import (
	"fmt"
	"strings"

	"github.com/Taichi-iskw/talk-subtitles/internal/model"
)

// DefaultWordsPerCue is the cue size used when callers pass a non-positive value
const DefaultWordsPerCue = 8

// cue accumulates words until it is closed
type cue struct {
	text  strings.Builder
	words int
	start float64
	end   float64
}

func (c *cue) add(w model.TranscriptWord) {
	text := strings.TrimSpace(w.Text)
	if c.words == 0 {
		c.start = w.Start
	} else if w.Type != model.WordTypePunctuation {
		c.text.WriteByte(' ')
	}
	c.text.WriteString(text)
	c.end = w.End
	c.words++
}

// Generate groups words into cues of at most wordsPerCue words. A word ending in
// '.', '?' or '!' closes the current cue early. Spacing and audio events are skipped.
func Generate(words []model.TranscriptWord, wordsPerCue int) string {
	if wordsPerCue < 1 {
		wordsPerCue = DefaultWordsPerCue
	}

	var out strings.Builder
	seq := 0
	current := &cue{}

	flush := func() {
		if current.words == 0 {
			return
		}
		seq++
		fmt.Fprintf(&out, "%d\n%s --> %s\n%s\n\n",
			seq, FormatTimestamp(current.start), FormatTimestamp(current.end), current.text.String())
		current = &cue{}
	}

	for _, w := range words {
		if w.Type == model.WordTypeSpacing || w.Type == model.WordTypeAudioEvent {
			continue
		}
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}

		current.add(w)

		if current.words >= wordsPerCue || endsSentence(text) {
			flush()
		}
	}
	flush()

	return out.String()
}

func endsSentence(text string) bool {
	return strings.HasSuffix(text, ".") || strings.HasSuffix(text, "?") || strings.HasSuffix(text, "!")
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm, truncating to whole milliseconds
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	// nudge past float error so 1.001 stays 1001ms
	totalMs := int64(seconds*1000 + 1e-6)

	hours := totalMs / 3_600_000
	minutes := (totalMs % 3_600_000) / 60_000
	secs := (totalMs % 60_000) / 1000
	ms := totalMs % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, ms)
}

// SplitIntoBlocks splits SRT text on blank lines, accepting LF or CRLF line endings
func SplitIntoBlocks(content string) []string {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")

	var blocks []string
	for _, part := range strings.Split(normalized, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		blocks = append(blocks, part)
	}
	return blocks
}

// CountBlocks returns the number of cues in SRT text
func CountBlocks(content string) int {
	return len(SplitIntoBlocks(content))
}

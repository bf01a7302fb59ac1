// Package video turns a talk's source URL into a URL the transcription service can fetch.
package video

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/common"
)

// Resolver defines operations for resolving playable video URLs
type Resolver interface {
	// ResolvePlayableURL returns a direct media URL for sourceURL
	ResolvePlayableURL(ctx context.Context, sourceURL string, sourceType model.SourceType) (string, error)
}

// resolver implements Resolver; hosted platforms go through yt-dlp
type resolver struct {
	cmdRunner common.CmdRunner
}

// NewResolver creates a new Resolver with default CmdRunner
func NewResolver() Resolver {
	return &resolver{cmdRunner: common.NewCmdRunner()}
}

// NewResolverWithCmdRunner creates a new Resolver with custom CmdRunner (for testing)
func NewResolverWithCmdRunner(cmdRunner common.CmdRunner) Resolver {
	return &resolver{cmdRunner: cmdRunner}
}

// ResolvePlayableURL returns direct URLs unchanged and asks yt-dlp for the
// best single-file stream of hosted videos
func (r *resolver) ResolvePlayableURL(ctx context.Context, sourceURL string, sourceType model.SourceType) (string, error) {
	if err := validateURL(sourceURL); err != nil {
		return "", err
	}

	switch sourceType {
	case model.SourceTypeDirect:
		return sourceURL, nil
	case model.SourceTypeYouTube, model.SourceTypeVimeo:
		return r.resolveHosted(ctx, sourceURL)
	default:
		return "", errors.New(errors.CodeValidation, fmt.Sprintf("unsupported source type %q", sourceType))
	}
}

func (r *resolver) resolveHosted(ctx context.Context, sourceURL string) (string, error) {
	args := []string{
		"--get-url",
		"--format", "best[ext=mp4]/best",
		"--no-playlist",
		"--no-warnings",
		sourceURL,
	}

	out, err := r.cmdRunner.Run(ctx, "yt-dlp", args...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrap(err, errors.CodeExternal, formatYtDlpError(err, sourceURL))
	}

	// yt-dlp prints one URL per selected format; merged formats print two
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}
	return "", errors.New(errors.CodeMalformed, "yt-dlp returned no playable URL")
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New(errors.CodeValidation, "video URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New(errors.CodeValidation, fmt.Sprintf("invalid video URL %q", raw))
	}
	return nil
}

// formatYtDlpError provides user-friendly error messages for yt-dlp failures
func formatYtDlpError(err error, videoURL string) string {
	errMsg := err.Error()

	switch {
	case strings.Contains(errMsg, "Video unavailable"):
		return "video is not available (may be private, deleted, or region-blocked)"
	case strings.Contains(errMsg, "Private video"):
		return "video is private and cannot be resolved"
	case strings.Contains(errMsg, "Video removed"):
		return "video has been removed by the uploader"
	case strings.Contains(errMsg, "executable file not found") ||
		(strings.Contains(errMsg, "No such file or directory") && strings.Contains(errMsg, "yt-dlp")):
		return "yt-dlp is not installed or not found in PATH. Please install yt-dlp"
	case strings.Contains(errMsg, "HTTP Error 404"):
		return "video not found - please check the video URL"
	case strings.Contains(errMsg, "403"):
		return "access denied - video may be region-blocked or require login"
	case strings.Contains(errMsg, "429"):
		return "rate limited by the video platform - please try again later"
	default:
		if id := extractVideoID(videoURL); id != "" {
			return fmt.Sprintf("failed to resolve video '%s' - %s", id, errMsg)
		}
		return fmt.Sprintf("video resolution failed - %s", errMsg)
	}
}

// extractVideoID pulls the id out of YouTube watch, youtu.be and Vimeo URLs
func extractVideoID(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host == "youtu.be" || host == "vimeo.com" {
		return strings.Trim(u.Path, "/")
	}
	return ""
}

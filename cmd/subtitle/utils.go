package subtitle

import (
	"context"
	"fmt"
	"io"

	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/progress"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// resolveService returns the injected service, or builds one from the configuration
// with progress printed to out
func resolveService(ctx context.Context, service subtitle.Service, out io.Writer) (subtitle.Service, func(), error) {
	if service != nil {
		return service, func() {}, nil
	}

	factory := NewServiceFactory()
	factory.Notifier = progressPrinter(out)
	svc, cleanup, err := factory.CreateService(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create subtitle service: %w", err)
	}
	return svc, cleanup, nil
}

// progressPrinter writes one line per progress update
func progressPrinter(out io.Writer) progress.Notifier {
	return progress.NotifierFunc(func(ctx context.Context, u model.SubtitleProgressUpdate) error {
		_, err := fmt.Fprintf(out, "[%3d%%] %-16s %s\n", u.Percent, u.Stage, u.Message)
		return err
	})
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

package subtitle

import (
	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// NewSubtitleCommand creates the main subtitle command. A nil service is built
// from the configuration file when a subcommand runs.
func NewSubtitleCommand(service subtitle.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtitle",
		Short: "Generate and translate toolbox talk subtitles",
		Long:  `Transcribe a talk video, build the English SRT and translate it into the requested languages.`,
	}

	// Add subcommands
	cmd.AddCommand(NewStartCommand(service))
	cmd.AddCommand(NewProcessCommand(service))
	cmd.AddCommand(NewRetryCommand(service))
	cmd.AddCommand(NewStatusCommand(service))
	cmd.AddCommand(NewCancelCommand(service))
	cmd.AddCommand(NewSrtCommand(service))
	cmd.AddCommand(NewTranslateMissingCommand(service))
	cmd.AddCommand(NewLanguagesCommand())

	return cmd
}

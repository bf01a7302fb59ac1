package subtitle

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/language"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// NewSrtCommand creates the srt command
func NewSrtCommand(service subtitle.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "srt [TALK_ID] [LANGUAGE]",
		Short: "Print the SRT of a completed language",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			talkID := args[0]
			code, ok := language.Resolve(args[1])
			if !ok {
				return fmt.Errorf("unsupported language: %s", args[1])
			}

			// Get flags
			outputPath, _ := cmd.Flags().GetString("output")

			ctx := cmd.Context()
			svc, cleanup, err := resolveService(ctx, service, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			content, found, err := svc.GetSrtContent(ctx, talkID, code)
			if err != nil {
				return fmt.Errorf("failed to get subtitles: %w", err)
			}
			if !found {
				return fmt.Errorf("no completed %s subtitles for talk %s", language.NameFor(code), talkID)
			}

			if outputPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}
			if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}
			cmd.Printf("Wrote %s subtitles to %s\n", language.NameFor(code), outputPath)
			return nil
		},
	}

	// Add flags
	cmd.Flags().StringP("output", "o", "", "Write the SRT to a file instead of stdout")

	return cmd
}

package subtitle

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// NewStartCommand creates the start command
func NewStartCommand(service subtitle.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [TALK_ID] [VIDEO_URL]",
		Short: "Create a subtitle job and run it",
		Long: `Create a subtitle job for a toolbox talk. English is always generated.
By default the job runs in this process; use --detach to only queue it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			talkID, videoURL := args[0], args[1]

			// Get flags
			rawSourceType, _ := cmd.Flags().GetString("source-type")
			languages, _ := cmd.Flags().GetStringSlice("languages")
			detach, _ := cmd.Flags().GetBool("detach")

			sourceType, ok := model.ParseSourceType(rawSourceType)
			if !ok {
				return fmt.Errorf("unsupported source type: %s", rawSourceType)
			}

			ctx := cmd.Context()
			svc, cleanup, err := resolveService(ctx, service, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			jobID, err := svc.StartProcessing(ctx, talkID, videoURL, sourceType, languages)
			if err != nil {
				return fmt.Errorf("failed to start processing: %w", err)
			}
			cmd.Printf("Subtitle job created (ID: %s)\n", jobID)

			if detach {
				cmd.Printf("Run 'talksubs subtitle process %s' to process it.\n", jobID)
				return nil
			}

			if err := svc.Process(ctx, jobID); err != nil {
				return fmt.Errorf("processing failed: %w", err)
			}

			status, err := svc.GetStatus(ctx, talkID)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			if status != nil {
				cmd.Printf("Job %s finished: %s (%d/%d languages)\n",
					jobID, status.Status, status.CompletedLanguages, status.TotalLanguages)
			}
			return nil
		},
	}

	// Add flags
	cmd.Flags().String("source-type", string(model.SourceTypeDirect), "Video source ("+strings.Join(sourceTypeNames(), ", ")+")")
	cmd.Flags().StringSlice("languages", nil, "Target languages as codes or names, e.g. es,pl,Romanian")
	cmd.Flags().Bool("detach", false, "Create the job without processing it")

	return cmd
}

func sourceTypeNames() []string {
	return []string{string(model.SourceTypeDirect), string(model.SourceTypeYouTube), string(model.SourceTypeVimeo)}
}

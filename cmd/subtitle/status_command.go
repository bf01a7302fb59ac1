package subtitle

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// NewStatusCommand creates the status command
func NewStatusCommand(service subtitle.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [TALK_ID]",
		Short: "Show the latest subtitle job of a talk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			talkID := args[0]

			// Get flags
			format, _ := cmd.Flags().GetString("format")
			all, _ := cmd.Flags().GetBool("all")
			limit, _ := cmd.Flags().GetInt("limit")

			formatter, err := GetFormatter(format)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			svc, cleanup, err := resolveService(ctx, service, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			if all {
				jobs, err := svc.ListJobs(ctx, talkID, limit, 0)
				if err != nil {
					return fmt.Errorf("failed to list jobs: %w", err)
				}
				output, err := formatter.FormatJobs(jobs)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), output)
				return nil
			}

			status, err := svc.GetStatus(ctx, talkID)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			if status == nil {
				cmd.Println("No subtitle jobs found for this talk.")
				return nil
			}

			output, err := formatter.FormatStatus(status)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), output)
			return nil
		},
	}

	// Add flags
	cmd.Flags().String("format", "table", "Output format (table, json)")
	cmd.Flags().Bool("all", false, "List every job of the talk instead of the latest status")
	cmd.Flags().Int("limit", 20, "Maximum number of jobs listed with --all")

	return cmd
}

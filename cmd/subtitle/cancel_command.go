package subtitle

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// NewCancelCommand creates the cancel command
func NewCancelCommand(service subtitle.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [TALK_ID]",
		Short: "Cancel the active subtitle job of a talk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			talkID := args[0]

			ctx := cmd.Context()
			svc, cleanup, err := resolveService(ctx, service, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			cancelled, err := svc.CancelProcessing(ctx, talkID)
			if err != nil {
				return fmt.Errorf("failed to cancel: %w", err)
			}
			if !cancelled {
				cmd.Println("No active subtitle job to cancel.")
				return nil
			}
			cmd.Println("Subtitle job cancelled.")
			return nil
		},
	}
}

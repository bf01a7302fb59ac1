package subtitle

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// NewProcessCommand creates the process command
func NewProcessCommand(service subtitle.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "process [JOB_ID]",
		Short: "Run or resume a subtitle job",
		Long:  `Run every stage of a job that has not completed yet. Completed jobs are left unchanged.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			ctx := cmd.Context()
			svc, cleanup, err := resolveService(ctx, service, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Process(ctx, jobID); err != nil {
				return fmt.Errorf("processing failed: %w", err)
			}
			cmd.Printf("Job %s processed\n", jobID)
			return nil
		},
	}
}

// NewRetryCommand creates the retry command
func NewRetryCommand(service subtitle.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [JOB_ID]",
		Short: "Retry the failed translations of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			ctx := cmd.Context()
			svc, cleanup, err := resolveService(ctx, service, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			succeeded, err := svc.ProcessRetry(ctx, jobID)
			if err != nil {
				return fmt.Errorf("retry failed: %w", err)
			}
			if succeeded == 0 {
				cmd.Println("No failed languages were recovered.")
				return nil
			}
			cmd.Printf("Recovered %d language(s) for job %s\n", succeeded, jobID)
			return nil
		},
	}
}

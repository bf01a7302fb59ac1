package subtitle

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
)

// NewTranslateMissingCommand creates the translate-missing command
func NewTranslateMissingCommand(service subtitle.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "translate-missing [TALK_ID]",
		Short: "Translate existing English subtitles into more languages",
		Long:  `Add languages to the latest completed job of a talk without transcribing again.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			talkID := args[0]

			// Get flags
			tenantID, _ := cmd.Flags().GetString("tenant")
			languages, _ := cmd.Flags().GetStringSlice("languages")
			if len(languages) == 0 {
				return fmt.Errorf("at least one language is required (--languages)")
			}

			ctx := cmd.Context()
			svc, cleanup, err := resolveService(ctx, service, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			succeeded, err := svc.TranslateMissingLanguages(ctx, talkID, tenantID, languages)
			if err != nil {
				return fmt.Errorf("failed to translate: %w", err)
			}
			cmd.Printf("Translated %d of %d language(s)\n", succeeded, len(languages))
			return nil
		},
	}

	// Add flags
	cmd.Flags().String("tenant", "", "Tenant that owns the talk")
	cmd.Flags().StringSlice("languages", nil, "Languages to add, as codes or names")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

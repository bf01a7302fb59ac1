package subtitle

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/language"
)

// NewLanguagesCommand creates the languages command
func NewLanguagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List supported subtitle languages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), formatLanguages(language.AllLanguages()))
			return nil
		},
	}
}

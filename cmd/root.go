package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/server"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:          "talksubs",
	Short:        "Subtitles for toolbox talk videos",
	Long:         `Transcribe toolbox talk videos, generate English SRT subtitles and translate them into the languages your crews speak.`,
	Version:      server.Version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package cmd

import (
	"github.com/Taichi-iskw/talk-subtitles/cmd/subtitle"
)

func init() {
	// Services are built from the configuration file when a subcommand runs
	rootCmd.AddCommand(subtitle.NewSubtitleCommand(nil))
}

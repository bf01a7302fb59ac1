package cmd

import (
	"fmt"
	"net/url"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Taichi-iskw/talk-subtitles/internal/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration settings",
	Long:  `Manage configuration settings for talksubs.`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init [DATABASE_URL]",
	Short: "Initialize configuration file",
	Long:  `Create a new configuration file with database connection settings.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var databaseURL string
		if len(args) > 0 {
			databaseURL = args[0]
		}

		if err := config.InitConfig(databaseURL); err != nil {
			return err
		}

		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		cmd.Printf("Created configuration file: %s\n", configPath)
		cmd.Println("Please edit database_url, storage and provider keys in this file.")

		return nil
	},
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration file path and settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.GetConfigPath()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file: %s\n\n", configPath)

		// Load and display current config
		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "DATABASE_URL: %s\n", redactURL(cfg.DatabaseURL))
		fmt.Fprintf(out, "Log: level=%s format=%s\n", cfg.Log.Level, cfg.Log.Format)
		fmt.Fprintf(out, "Storage: endpoint=%s bucket=%s ssl=%t access_key=%s\n",
			cfg.Storage.Endpoint, cfg.Storage.Bucket, cfg.Storage.UseSSL, maskSecret(cfg.Storage.AccessKey))
		fmt.Fprintf(out, "Transcription: provider=%s api_key=%s\n",
			cfg.Transcription.Provider, maskSecret(cfg.Transcription.APIKey))
		fmt.Fprintf(out, "Translation: provider=%s model=%s api_key=%s\n",
			cfg.Translation.Provider, cfg.Translation.Model, maskSecret(cfg.Translation.APIKey))
		fmt.Fprintf(out, "Limits: video=%s pdf=%s words_per_cue=%d\n",
			humanize.IBytes(uint64(cfg.Limits.MaxVideoBytes)), humanize.IBytes(uint64(cfg.Limits.MaxPDFBytes)), cfg.Limits.WordsPerCue)
		fmt.Fprintf(out, "Server: addr=%s workers=%d\n", cfg.Server.Addr, cfg.Server.Workers)

		return nil
	},
}

// maskSecret keeps the last four characters of a secret
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// redactURL hides the password of a connection URL
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	subtitleCmd "github.com/Taichi-iskw/talk-subtitles/cmd/subtitle"
	"github.com/Taichi-iskw/talk-subtitles/internal/model"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/talk"
)

// talkCmd represents the talk command
var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Toolbox talk operations",
	Long:  `Create and delete toolbox talks and manage their stored files.`,
}

// withTalkService builds the talk service from the configuration file
func withTalkService(ctx context.Context, fn func(talk.Service) error) error {
	components, cleanup, err := subtitleCmd.NewServiceFactory().CreateComponents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(components.Talks)
}

// talkCreateCmd creates a talk
var talkCreateCmd = &cobra.Command{
	Use:   "create [TITLE]",
	Short: "Create a toolbox talk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")

		return withTalkService(cmd.Context(), func(svc talk.Service) error {
			t, err := svc.Create(cmd.Context(), tenantID, args[0])
			if err != nil {
				return fmt.Errorf("failed to create talk: %w", err)
			}
			cmd.Printf("Toolbox talk created (ID: %s)\n", t.ID)
			return nil
		})
	},
}

// talkShowCmd prints a talk as JSON
var talkShowCmd = &cobra.Command{
	Use:   "show [TALK_ID]",
	Short: "Show a toolbox talk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTalkService(cmd.Context(), func(svc talk.Service) error {
			t, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get talk: %w", err)
			}
			result, err := json.MarshalIndent(t, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(result))
			return nil
		})
	},
}

// talkDeleteCmd deletes a talk and its stored files
var talkDeleteCmd = &cobra.Command{
	Use:   "delete [TALK_ID]",
	Short: "Delete a toolbox talk, its subtitle jobs and stored files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTalkService(cmd.Context(), func(svc talk.Service) error {
			removed, err := svc.Delete(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to delete talk: %w", err)
			}
			cmd.Printf("Toolbox talk deleted (%d stored file(s) removed)\n", removed)
			return nil
		})
	},
}

// talkAttachCmd uploads a video, PDF or certificate
var talkAttachCmd = &cobra.Command{
	Use:   "attach [TALK_ID] [FILE]",
	Short: "Upload a video, PDF or certificate for a talk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawKind, _ := cmd.Flags().GetString("kind")
		kind, err := parseAttachmentKind(rawKind)
		if err != nil {
			return err
		}

		content, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[1], err)
		}

		return withTalkService(cmd.Context(), func(svc talk.Service) error {
			artifact, err := svc.Attach(cmd.Context(), args[0], kind, content)
			if err != nil {
				return fmt.Errorf("failed to upload: %w", err)
			}
			cmd.Printf("Uploaded %s (%s)\n", artifact.StorageKey, humanize.IBytes(uint64(artifact.Size)))
			fmt.Fprintln(cmd.OutOrStdout(), artifact.URL)
			return nil
		})
	},
}

// talkDownloadCmd writes a stored file to disk
var talkDownloadCmd = &cobra.Command{
	Use:   "download [TALK_ID] [STORAGE_KEY]",
	Short: "Download a stored file of a talk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputPath, _ := cmd.Flags().GetString("output")

		return withTalkService(cmd.Context(), func(svc talk.Service) error {
			data, err := svc.Download(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("failed to download: %w", err)
			}
			if outputPath == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(outputPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}
			cmd.Printf("Wrote %s to %s\n", humanize.IBytes(uint64(len(data))), outputPath)
			return nil
		})
	},
}

// parseAttachmentKind accepts the kinds a user may upload directly
func parseAttachmentKind(s string) (model.ArtifactKind, error) {
	switch kind := model.ArtifactKind(s); kind {
	case model.ArtifactVideo, model.ArtifactPDF, model.ArtifactCertificate:
		return kind, nil
	default:
		return "", fmt.Errorf("unsupported file kind: %s (expected video, pdf or certificate)", s)
	}
}

func init() {
	rootCmd.AddCommand(talkCmd)
	talkCmd.AddCommand(talkCreateCmd)
	talkCmd.AddCommand(talkShowCmd)
	talkCmd.AddCommand(talkDeleteCmd)
	talkCmd.AddCommand(talkAttachCmd)
	talkCmd.AddCommand(talkDownloadCmd)

	talkCreateCmd.Flags().String("tenant", "", "Tenant that owns the talk")
	_ = talkCreateCmd.MarkFlagRequired("tenant")
	talkAttachCmd.Flags().String("kind", string(model.ArtifactVideo), "File kind (video, pdf, certificate)")
	talkDownloadCmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
}

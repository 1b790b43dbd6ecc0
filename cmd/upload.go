package cmd

import (
	"context"
	"fmt"

	appdist "vid2audio/application/distribution"
	"vid2audio/domain/distribution"
	"vid2audio/infrastructure/drive"
	"vid2audio/infrastructure/googleauth"

	"github.com/spf13/cobra"
)

var (
	uploadList       bool
	uploadCheckQuota bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [file]...",
	Short: "Upload files to Google Drive with link sharing",
	Long: `Upload audio files to the Google Drive folder named by drive_folder_id.

A file with the same name in the folder is replaced. Each upload is shared with
"anyone with the link" and its URL is printed.

Example:
  vid2audio upload ~/ConvertedAudio/talk.mp3
  vid2audio upload --list`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolVar(&uploadList, "list", false, "List the files already in the folder")
	uploadCmd.Flags().BoolVar(&uploadCheckQuota, "check-quota", true, "Refuse uploads that do not fit in the Drive quota")
}

func runUpload(cmd *cobra.Command, args []string) error {
	if !uploadList && len(args) == 0 {
		return fmt.Errorf("no files given; pass files to upload or --list")
	}

	s := GetSettings()
	if s.DriveFolderID == "" {
		return appdist.ErrNoFolder
	}

	ctx := cmd.Context()
	client, err := drive.NewClientWithOAuth(ctx, googleauth.Config{
		CredentialsFile: s.GoogleCredentialsFile,
		TokenFile:       s.GoogleTokenFile,
		Out:             DefaultOutput,
	})
	if err != nil {
		return fmt.Errorf("failed to create Google Drive client: %w", err)
	}

	return RunUploadWithDependencies(ctx, client, s.DriveFolderID, args, uploadList, uploadCheckQuota, DefaultOutput)
}

// RunUploadWithDependencies runs the upload command with injected dependencies (for testing)
func RunUploadWithDependencies(
	ctx context.Context,
	driveClient distribution.DriveClient,
	folderID string,
	paths []string,
	list bool,
	checkQuota bool,
	output OutputWriter,
) error {
	var opts []appdist.UploadOption
	if checkQuota {
		opts = append(opts, appdist.WithQuotaCheck())
	}
	service := appdist.NewUploadService(driveClient, folderID, output, opts...)

	if list {
		files, err := service.ListUploads(ctx)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Fprintln(output, "The folder is empty.")
		}
		for _, f := range files {
			fmt.Fprintf(output, "  %s (%.2f MB)\n", f.Name, float64(f.Size)/1024/1024)
		}
		if storage, err := driveClient.GetStorageQuota(ctx); err == nil {
			fmt.Fprintf(output, "Drive storage: %s\n", storage)
		}
	}

	if len(paths) == 0 {
		return nil
	}

	res := service.PublishFiles(ctx, paths)
	fmt.Fprintf(output, "Uploaded %d of %d file(s)\n", len(res.Uploaded), len(paths))
	if len(res.Errors) > 0 {
		return fmt.Errorf("%d upload(s) failed", len(res.Errors))
	}
	return nil
}

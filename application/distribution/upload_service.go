package distribution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vid2audio/domain/conversion"
	"vid2audio/domain/distribution"
)

var (
	// ErrNoFolder is returned when no Drive folder is configured
	ErrNoFolder = errors.New("no Drive folder configured (set drive_folder_id)")

	// ErrInsufficientStorage is returned when the Drive quota cannot hold a file
	ErrInsufficientStorage = errors.New("insufficient Drive storage")
)

// UploadService handles file upload operations to Google Drive
type UploadService struct {
	driveClient distribution.DriveClient
	folderID    string
	output      io.Writer
	checkQuota  bool
}

// UploadOption configures an UploadService
type UploadOption func(*UploadService)

// WithQuotaCheck verifies available storage before each upload
func WithQuotaCheck() UploadOption {
	return func(s *UploadService) {
		s.checkQuota = true
	}
}

// NewUploadService creates a new upload service
func NewUploadService(client distribution.DriveClient, folderID string, output io.Writer, opts ...UploadOption) *UploadService {
	if output == nil {
		output = io.Discard
	}
	s := &UploadService{
		driveClient: client,
		folderID:    folderID,
		output:      output,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PublishResult collects the outcome of uploading several files.
// Links and Errors are keyed by local path.
type PublishResult struct {
	Uploaded []distribution.UploadResult
	Links    map[string]string
	Errors   map[string]error
}

// Upload uploads one file, replacing a same-named file in the folder, and shares it by link
func (s *UploadService) Upload(ctx context.Context, filePath string) (*distribution.UploadResult, error) {
	if s.folderID == "" {
		return nil, ErrNoFolder
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("file does not exist: %s", filePath)
	}

	fileName := filepath.Base(filePath)

	existing, err := s.driveClient.FindFileByName(ctx, s.folderID, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to check for existing file: %w", err)
	}

	if s.checkQuota {
		needed := info.Size()
		if existing != nil {
			needed -= existing.Size
		}
		storage, err := s.driveClient.GetStorageQuota(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check storage: %w", err)
		}
		if !storage.HasSpaceFor(needed) {
			return nil, fmt.Errorf("%w: %s needs %d bytes but only %d available",
				ErrInsufficientStorage, fileName, needed, storage.AvailableBytes)
		}
	}

	if existing != nil {
		fmt.Fprintf(s.output, "      Replacing existing %s (%.1f MB)\n", existing.Name, float64(existing.Size)/1024/1024)
		if err := s.driveClient.DeletePermanently(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to delete existing file %s: %w", existing.Name, err)
		}
	}

	req := distribution.UploadRequest{
		LocalPath: filePath,
		FileName:  fileName,
		FolderID:  s.folderID,
		MimeType:  distribution.MimeTypeFor(filePath),
	}

	result, err := s.driveClient.UploadAndShare(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload and share %s: %w", fileName, err)
	}

	return result, nil
}

// PublishFiles uploads every path in order. A failed upload is recorded and the rest continue;
// a cancelled context stops the loop.
func (s *UploadService) PublishFiles(ctx context.Context, paths []string) PublishResult {
	res := PublishResult{
		Links:  make(map[string]string),
		Errors: make(map[string]error),
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			res.Errors[p] = err
			continue
		}
		fmt.Fprintf(s.output, "   Uploading %s...\n", filepath.Base(p))
		r, err := s.Upload(ctx, p)
		if err != nil {
			fmt.Fprintf(s.output, "      Failed: %v\n", err)
			res.Errors[p] = err
			continue
		}
		fmt.Fprintf(s.output, "      %s\n", r.ShareableURL)
		res.Uploaded = append(res.Uploaded, *r)
		res.Links[p] = r.ShareableURL
	}

	return res
}

// PublishOutputs uploads the output of every completed task. Task status is not affected.
func (s *UploadService) PublishOutputs(ctx context.Context, tasks []conversion.Task) PublishResult {
	var paths []string
	for _, t := range tasks {
		if t.Status == conversion.StatusCompleted {
			paths = append(paths, t.OutputPath)
		}
	}
	return s.PublishFiles(ctx, paths)
}

// ListUploads returns the files currently in the folder
func (s *UploadService) ListUploads(ctx context.Context) ([]distribution.FileInfo, error) {
	if s.folderID == "" {
		return nil, ErrNoFolder
	}
	return s.driveClient.ListFiles(ctx, s.folderID)
}

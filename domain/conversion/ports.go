package conversion

import (
	"context"
	"os"
)

// TranscodeRequest describes one invocation of the external conversion command
type TranscodeRequest struct {
	InputPath        string
	OutputPath       string
	Format           Format
	Bitrate          string
	PreserveMetadata bool
	Normalize        bool
	TargetDB         float64
}

// NewTranscodeRequest builds the request for a task under a run configuration
func NewTranscodeRequest(task Task, cfg BatchConfig) *TranscodeRequest {
	return &TranscodeRequest{
		InputPath:        task.InputPath,
		OutputPath:       task.OutputPath,
		Format:           cfg.Format,
		Bitrate:          cfg.Bitrate,
		PreserveMetadata: cfg.PreserveMetadata,
		Normalize:        cfg.Normalize,
		TargetDB:         cfg.TargetDB,
	}
}

// ProgressFunc receives percentage estimates while a conversion runs
type ProgressFunc func(percent int)

// Transcoder converts a media file to audio.
// A failing process is reported as *ExternalToolError.
type Transcoder interface {
	Transcode(ctx context.Context, req *TranscodeRequest, progress ProgressFunc) error
}

// FrameExtractor writes a single representative still frame of a video to imagePath
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, videoPath, imagePath string) error
}

// Artwork is an encoded cover image ready for embedding
type Artwork struct {
	MimeType string
	Data     []byte
}

// ArtworkPreparer turns an extracted frame into cover artwork
type ArtworkPreparer interface {
	Prepare(imagePath string) (Artwork, error)
}

// Tagger copies metadata and embeds cover art into converted files
type Tagger interface {
	// CopyTags copies title, artist, album, year, genre and track number
	CopyTags(sourcePath, destPath string) error
	// EmbedCover stores art as the destination's front cover
	EmbedCover(destPath string, art Artwork) error
}

// FileChecker inspects source files
type FileChecker interface {
	// Exists returns true if the file exists
	Exists(path string) bool
	// Stat returns file info or an error if the file cannot be read
	Stat(path string) (os.FileInfo, error)
}

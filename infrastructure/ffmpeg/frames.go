package ffmpeg

import (
	"context"
	"fmt"

	"vid2audio/domain/conversion"
)

// FrameExtractor implements conversion.FrameExtractor by letting ffmpeg decode the
// first video frame into a PNG
type FrameExtractor struct {
	ffmpegPath string
	runner     CommandRunner
}

// FrameExtractorOption configures a FrameExtractor
type FrameExtractorOption func(*FrameExtractor)

// WithFrameFFmpegPath sets a custom ffmpeg binary path
func WithFrameFFmpegPath(path string) FrameExtractorOption {
	return func(f *FrameExtractor) {
		f.ffmpegPath = path
	}
}

// WithFrameCommandRunner sets a custom command runner (for testing)
func WithFrameCommandRunner(runner CommandRunner) FrameExtractorOption {
	return func(f *FrameExtractor) {
		f.runner = runner
	}
}

// NewFrameExtractor creates a new ffmpeg frame extractor
func NewFrameExtractor(opts ...FrameExtractorOption) *FrameExtractor {
	f := &FrameExtractor{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ExtractFrame writes one frame of videoPath to imagePath as PNG
func (f *FrameExtractor) ExtractFrame(ctx context.Context, videoPath, imagePath string) error {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-i", videoPath,
		"-an",
		"-vcodec", "png",
		"-vframes", "1",
		"-y", imagePath,
	}

	res, err := f.runner.Run(ctx, nil, f.ffmpegPath, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("frame extraction interrupted: %w", ctxErr)
		}
		return &conversion.ExternalToolError{
			Tool:     "ffmpeg",
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}
	return nil
}

package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"

	"vid2audio/domain/conversion"
)

// Transcoder implements conversion.Transcoder using ffmpeg
type Transcoder struct {
	ffmpegPath string
	runner     CommandRunner
	prober     DurationProber
	logger     *slog.Logger
}

// TranscoderOption configures a Transcoder
type TranscoderOption func(*Transcoder)

// WithFFmpegPath sets a custom ffmpeg binary path
func WithFFmpegPath(path string) TranscoderOption {
	return func(t *Transcoder) {
		t.ffmpegPath = path
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) TranscoderOption {
	return func(t *Transcoder) {
		t.runner = runner
	}
}

// WithProber sets the prober used to estimate progress. Without one no intermediate
// progress is reported.
func WithProber(prober DurationProber) TranscoderOption {
	return func(t *Transcoder) {
		t.prober = prober
	}
}

// WithLogger sets the logger for non-fatal diagnostics
func WithLogger(logger *slog.Logger) TranscoderOption {
	return func(t *Transcoder) {
		t.logger = logger
	}
}

// NewTranscoder creates a new ffmpeg transcoder
func NewTranscoder(opts ...TranscoderOption) *Transcoder {
	t := &Transcoder{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transcode converts req.InputPath to req.OutputPath.
// A non-zero exit or a launch failure is returned as *conversion.ExternalToolError;
// cancellation of ctx is returned as ctx.Err() wrapped.
func (t *Transcoder) Transcode(ctx context.Context, req *conversion.TranscodeRequest, progress conversion.ProgressFunc) error {
	var tracker *progressTracker
	if progress != nil && t.prober != nil {
		total, err := t.prober.Duration(ctx, req.InputPath)
		if err != nil {
			t.logger.Debug("duration unknown, progress disabled", "input", req.InputPath, "error", err)
		}
		tracker = newProgressTracker(total, progress)
	}

	res, err := t.runner.Run(ctx, tracker.handleLine, t.ffmpegPath, BuildTranscodeArgs(req)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg conversion interrupted: %w", ctxErr)
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

// BuildTranscodeArgs builds the ffmpeg argument list for a request
func BuildTranscodeArgs(req *conversion.TranscodeRequest) []string {
	format := req.Format
	if format == "" {
		format = conversion.DefaultFormat
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-nostats",
		"-progress", "pipe:1",
		"-i", req.InputPath,
		"-vn",
		"-codec:a", format.Codec(),
	}

	if !format.Lossless() {
		bitrate := req.Bitrate
		if bitrate == "" {
			bitrate = conversion.DefaultAudioBitrate
		}
		args = append(args, "-b:a", bitrate)
	}

	if req.PreserveMetadata {
		args = append(args, "-map_metadata", "0")
		if format.SupportsID3() {
			args = append(args, "-id3v2_version", "4")
		}
	}

	if req.Normalize {
		args = append(args, "-af", fmt.Sprintf("volume=%.1fdB", req.TargetDB))
	}

	return append(args, "-y", req.OutputPath)
}

// VerifyInstalled checks if ffmpeg is available
func (t *Transcoder) VerifyInstalled(ctx context.Context) error {
	_, err := t.runner.Output(ctx, t.ffmpegPath, "-version")
	if err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", t.ffmpegPath, err)
	}
	return nil
}

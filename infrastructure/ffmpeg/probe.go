package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// DurationProber reports the playing time of a media file
type DurationProber interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Prober reads media information with ffprobe
type Prober struct {
	ffprobePath string
	runner      CommandRunner
}

// ProberOption configures a Prober
type ProberOption func(*Prober)

// WithFFprobePath sets a custom ffprobe binary path
func WithFFprobePath(path string) ProberOption {
	return func(p *Prober) {
		p.ffprobePath = path
	}
}

// WithProbeCommandRunner sets a custom command runner (for testing)
func WithProbeCommandRunner(runner CommandRunner) ProberOption {
	return func(p *Prober) {
		p.runner = runner
	}
}

// NewProber creates a new ffprobe-based prober
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		ffprobePath: "ffprobe",
		runner:      &ExecCommandRunner{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Duration returns the container duration of the file at path
func (p *Prober) Duration(ctx context.Context, path string) (time.Duration, error) {
	out, err := p.runner.Output(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if parsed.Format.Duration == "" || parsed.Format.Duration == "N/A" {
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}

	secs, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", parsed.Format.Duration, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// VerifyInstalled checks if ffprobe is available
func (p *Prober) VerifyInstalled(ctx context.Context) error {
	_, err := p.runner.Output(ctx, p.ffprobePath, "-version")
	if err != nil {
		return fmt.Errorf("ffprobe not found at %q: %w", p.ffprobePath, err)
	}
	return nil
}

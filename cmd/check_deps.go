package cmd

import (
	"context"
	"fmt"
	"time"

	"vid2audio/infrastructure/cover"
	"vid2audio/infrastructure/ffmpeg"

	"github.com/spf13/cobra"
)

// verifyTimeout bounds each "-version" probe
const verifyTimeout = 5 * time.Second

var checkDepsCmd = &cobra.Command{
	Use:   "check-deps",
	Short: "Verify that ffmpeg and ffprobe are installed",
	Long: `Runs the configured ffmpeg and ffprobe binaries with -version.

The binaries are looked up on PATH unless ffmpeg_path and ffprobe_path are set.

Example:
  vid2audio check-deps
  vid2audio settings set ffmpeg_path /opt/ffmpeg/bin/ffmpeg`,
	RunE: runCheckDeps,
}

func init() {
	rootCmd.AddCommand(checkDepsCmd)
}

// Verifier is a tool that can confirm it is installed
type Verifier interface {
	VerifyInstalled(ctx context.Context) error
}

// Dependency names a required tool
type Dependency struct {
	Name     string
	Verifier Verifier
}

func runCheckDeps(cmd *cobra.Command, args []string) error {
	s := GetSettings()
	deps := []Dependency{
		{Name: "ffmpeg (" + s.FFmpegPath + ")", Verifier: ffmpeg.NewTranscoder(ffmpeg.WithFFmpegPath(s.FFmpegPath))},
		{Name: "ffprobe (" + s.FFprobePath + ")", Verifier: ffmpeg.NewProber(ffmpeg.WithFFprobePath(s.FFprobePath))},
	}
	return RunCheckDepsWithDependencies(cmd.Context(), deps, cover.NewOpenCVGrabber().Available(), DefaultOutput)
}

// RunCheckDepsWithDependencies runs the check-deps command with injected dependencies (for testing)
func RunCheckDepsWithDependencies(ctx context.Context, deps []Dependency, opencv bool, output OutputWriter) error {
	missing := 0
	for _, d := range deps {
		verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
		err := d.Verifier.VerifyInstalled(verifyCtx)
		cancel()

		if err != nil {
			missing++
			fmt.Fprintf(output, "  missing  %s: %v\n", d.Name, err)
			continue
		}
		fmt.Fprintf(output, "  ok       %s\n", d.Name)
	}

	if opencv {
		fmt.Fprintln(output, "  ok       opencv cover grabber")
	} else {
		fmt.Fprintln(output, "  -        opencv cover grabber (build with -tags opencv)")
	}

	if missing > 0 {
		return fmt.Errorf("%d required tool(s) missing; install ffmpeg from https://ffmpeg.org/download.html", missing)
	}
	fmt.Fprintln(output, "All dependencies found.")
	return nil
}

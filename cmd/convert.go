package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	appdist "vid2audio/application/distribution"
	"vid2audio/application/events"
	appnotify "vid2audio/application/notification"
	"vid2audio/application/registry"
	"vid2audio/application/runner"
	"vid2audio/domain/conversion"
	"vid2audio/domain/notification"
	"vid2audio/infrastructure/config"
	"vid2audio/infrastructure/cover"
	"vid2audio/infrastructure/drive"
	"vid2audio/infrastructure/ffmpeg"
	"vid2audio/infrastructure/filesystem"
	"vid2audio/infrastructure/gmail"
	"vid2audio/infrastructure/googleauth"
	"vid2audio/infrastructure/tags"

	"github.com/spf13/cobra"
)

var (
	convertOutputDir        string
	convertFormat           string
	convertBitrate          string
	convertPreserveMetadata bool
	convertExtractCover     bool
	convertNormalize        bool
	convertTargetDB         float64
	convertConcurrency      int
	convertUpload           bool
	convertEventsFile       string
)

// ErrStopped is returned when a run was interrupted before every file was converted
var ErrStopped = errors.New("conversion stopped")

var convertCmd = &cobra.Command{
	Use:   "convert <file|dir>...",
	Short: "Convert video files to audio",
	Long: `Convert one or more video files to audio.

Directories are scanned recursively for .mp4, .avi, .mov, .wmv, .flv, .mkv and .webm
files. Output files keep the source name with the new extension and are written to
--output-dir (default from settings).

Press Ctrl-C once to stop the run (the running conversion is killed), twice to exit.

Example:
  vid2audio convert talk.mp4
  vid2audio convert ~/Videos --format flac --concurrency 4
  vid2audio convert a.mkv b.mov --bitrate 320k --upload`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	d := config.DefaultSettings()
	convertCmd.Flags().StringVarP(&convertOutputDir, "output-dir", "o", "", "Output directory (default from settings)")
	convertCmd.Flags().StringVarP(&convertFormat, "format", "f", d.DefaultFormat, "Output format: mp3, wav, flac, aac or ogg")
	convertCmd.Flags().StringVarP(&convertBitrate, "bitrate", "b", d.DefaultBitrate, "Bitrate for lossy formats: 64k, 128k, 192k, 256k or 320k")
	convertCmd.Flags().BoolVar(&convertPreserveMetadata, "preserve-metadata", d.PreserveMetadata, "Copy tags from the source file")
	convertCmd.Flags().BoolVar(&convertExtractCover, "extract-cover", d.ExtractCover, "Embed a video frame as cover art (mp3)")
	convertCmd.Flags().BoolVar(&convertNormalize, "normalize", d.Normalize, "Apply a volume adjustment")
	convertCmd.Flags().Float64Var(&convertTargetDB, "target-db", d.TargetDB, "Volume adjustment in dB (-30 to 0)")
	convertCmd.Flags().IntVarP(&convertConcurrency, "concurrency", "j", d.MaxConcurrent, "Number of simultaneous conversions (1 to 8)")
	convertCmd.Flags().BoolVar(&convertUpload, "upload", false, "Upload converted files to the configured Google Drive folder")
	convertCmd.Flags().StringVar(&convertEventsFile, "events", "", "Write the run's events to this file as JSON lines")
}

// Publisher uploads the outputs of completed tasks
type Publisher interface {
	PublishOutputs(ctx context.Context, tasks []conversion.Task) appdist.PublishResult
}

// Notifier announces a finished run
type Notifier interface {
	Notify(ctx context.Context, report notification.RunReport) error
}

// ConvertDependencies are the collaborators of the convert command
type ConvertDependencies struct {
	Registry   *registry.Registry // optional; a fresh registry is created when nil
	Files      conversion.FileChecker
	Transcoder conversion.Transcoder
	Frames     conversion.FrameExtractor
	Artwork    conversion.ArtworkPreparer
	Tagger     conversion.Tagger
	Publisher  Publisher // optional
	Notifier   Notifier  // optional
	Logger     *slog.Logger
}

// ConvertOptions are the per-invocation settings of the convert command
type ConvertOptions struct {
	Inputs    []string
	OutputDir string
	Config    conversion.BatchConfig
	AutoClear bool

	// EventsFile receives the run's events as JSON lines when set
	EventsFile string
}

// convertOptions resolves flags against the loaded settings; flags set on the command line win
func convertOptions(cmd *cobra.Command, s *config.Settings, inputs []string) ConvertOptions {
	cfg := s.BatchConfig()
	flags := cmd.Flags()
	if flags.Changed("format") {
		// Validate reports an unsupported name
		cfg.Format = conversion.Format(convertFormat)
		if f, err := conversion.ParseFormat(convertFormat); err == nil {
			cfg.Format = f
		}
	}
	if flags.Changed("bitrate") {
		cfg.Bitrate = convertBitrate
	}
	if flags.Changed("preserve-metadata") {
		cfg.PreserveMetadata = convertPreserveMetadata
	}
	if flags.Changed("extract-cover") {
		cfg.ExtractCover = convertExtractCover
	}
	if flags.Changed("normalize") {
		cfg.Normalize = convertNormalize
	}
	if flags.Changed("target-db") {
		cfg.TargetDB = convertTargetDB
	}
	if flags.Changed("concurrency") {
		cfg.MaxConcurrent = convertConcurrency
	}

	outputDir := s.OutputDirectory
	if flags.Changed("output-dir") {
		outputDir = convertOutputDir
	}

	return ConvertOptions{
		Inputs:     inputs,
		OutputDir:  outputDir,
		Config:     cfg,
		AutoClear:  s.AutoClearList,
		EventsFile: convertEventsFile,
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	s := GetSettings()
	opts := convertOptions(cmd, s, args)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// First interrupt stops the run, the second exits immediately
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		select {
		case <-sigs:
		case <-ctx.Done():
			return
		}
		fmt.Fprintln(os.Stderr, "\nStopping... press Ctrl-C again to exit immediately")
		cancel()
		select {
		case <-sigs:
			os.Exit(130)
		case <-cmd.Context().Done():
		}
	}()

	deps, err := productionConvertDependencies(ctx, s, DefaultOutput)
	if err != nil {
		return err
	}

	return RunConvertWithDependencies(ctx, deps, opts, DefaultOutput)
}

func productionConvertDependencies(ctx context.Context, s *config.Settings, out OutputWriter) (ConvertDependencies, error) {
	execRunner := &ffmpeg.ExecCommandRunner{}
	prober := ffmpeg.NewProber(ffmpeg.WithFFprobePath(s.FFprobePath), ffmpeg.WithProbeCommandRunner(execRunner))
	transcoder := ffmpeg.NewTranscoder(
		ffmpeg.WithFFmpegPath(s.FFmpegPath),
		ffmpeg.WithCommandRunner(execRunner),
		ffmpeg.WithProber(prober),
		ffmpeg.WithLogger(logger),
	)

	verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	if err := transcoder.VerifyInstalled(verifyCtx); err != nil {
		return ConvertDependencies{}, fmt.Errorf("ffmpeg verification failed: %w", err)
	}

	deps := ConvertDependencies{
		Files:      filesystem.NewChecker(),
		Transcoder: transcoder,
		Frames:     frameExtractor(s, execRunner),
		Artwork:    cover.NewProcessor(),
		Tagger:     tags.NewTagger(),
		Logger:     logger,
	}

	auth := googleauth.Config{
		CredentialsFile: s.GoogleCredentialsFile,
		TokenFile:       s.GoogleTokenFile,
		Out:             out,
	}

	if convertUpload {
		if s.DriveFolderID == "" {
			return ConvertDependencies{}, appdist.ErrNoFolder
		}
		client, err := drive.NewClientWithOAuth(ctx, auth)
		if err != nil {
			return ConvertDependencies{}, fmt.Errorf("failed to create Google Drive client: %w", err)
		}
		deps.Publisher = appdist.NewUploadService(client, s.DriveFolderID, out, appdist.WithQuotaCheck())
	}

	if s.Notifications {
		notifyOpts := []appnotify.ServiceOption{appnotify.WithLogger(logger)}
		if s.NotifyEmail != "" {
			if sender, recipients, err := emailSender(ctx, s, auth); err != nil {
				fmt.Fprintf(out, "Warning: run summary email disabled: %v\n", err)
			} else {
				notifyOpts = append(notifyOpts, appnotify.WithEmail(sender, recipients, s.NotifyFromName))
			}
		}
		deps.Notifier = appnotify.NewService(out, notifyOpts...)
	}

	return deps, nil
}

func frameExtractor(s *config.Settings, execRunner ffmpeg.CommandRunner) conversion.FrameExtractor {
	if s.CoverGrabber == "opencv" {
		if g := cover.NewOpenCVGrabber(); g.Available() {
			return g
		}
		logger.Warn("opencv cover grabber not built in, using ffmpeg")
	}
	return ffmpeg.NewFrameExtractor(ffmpeg.WithFrameFFmpegPath(s.FFmpegPath), ffmpeg.WithFrameCommandRunner(execRunner))
}

func emailSender(ctx context.Context, s *config.Settings, auth googleauth.Config) (notification.EmailSender, []notification.Recipient, error) {
	recipients, err := s.Recipients()
	if err != nil {
		return nil, nil, err
	}
	client, err := gmail.NewClientWithOAuth(ctx, auth, notification.Recipient{Name: s.NotifyFromName})
	if err != nil {
		return nil, nil, err
	}
	return client, recipients, nil
}

// RunConvertWithDependencies runs the convert command with injected dependencies (for testing)
func RunConvertWithDependencies(ctx context.Context, deps ConvertDependencies, opts ConvertOptions, output OutputWriter) error {
	if output == nil {
		output = io.Discard
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	cfg, err := opts.Config.Validate()
	if err != nil {
		return err
	}

	reg := deps.Registry
	if reg == nil {
		reg = registry.New(deps.Files)
	}
	addInputs(reg, opts.Inputs, output)
	if reg.Len() == 0 {
		return conversion.ErrNoTasks
	}

	if err := reg.ApplyOutputNaming(opts.OutputDir, cfg.Format.Extension()); err != nil {
		return err
	}

	fmt.Fprintf(output, "%d file(s) (%.1f MB)\n", reg.Len(), float64(reg.TotalSize())/1024/1024)

	bus := events.NewBus(events.DefaultHistory)
	stopPrinter := printEvents(bus, newEventPrinter(output, reg.List()))
	defer stopPrinter()

	r := runner.New(reg, bus, deps.Transcoder,
		runner.WithFrameExtractor(deps.Frames),
		runner.WithArtworkPreparer(deps.Artwork),
		runner.WithTagger(deps.Tagger),
		runner.WithLogger(log),
	)

	if _, err := r.Start(ctx, cfg); err != nil {
		return err
	}
	finished := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Info("stopping run", "run", r.RunID())
			r.Stop()
		case <-finished:
		}
	}()
	summary := r.Wait()
	close(finished)
	stopPrinter()
	log.Debug("run finished", "run", summary.RunID, "events", bus.LastSeq())

	if opts.EventsFile != "" {
		if err := writeEventLog(opts.EventsFile, bus, log); err != nil {
			fmt.Fprintf(output, "Warning: %v\n", err)
		}
	}

	tasks := reg.List()
	printSummary(output, summary, tasks)

	report := notification.NewRunReport(summary.RunID, tasks, summary.Elapsed)

	if deps.Publisher != nil && summary.Succeeded > 0 && ctx.Err() == nil {
		fmt.Fprintln(output, "Publishing to Google Drive...")
		res := deps.Publisher.PublishOutputs(ctx, tasks)
		report.AttachLinks(res.Links)
		for path, err := range res.Errors {
			log.Warn("upload failed", "path", path, "error", err)
		}
	}

	if deps.Notifier != nil {
		// The summary still goes out after an interrupt
		if err := deps.Notifier.Notify(context.WithoutCancel(ctx), report); err != nil {
			fmt.Fprintf(output, "Warning: notification failed: %v\n", err)
		}
	}

	if opts.AutoClear && summary.Total > 0 && summary.Failed == 0 {
		if err := reg.Clear(); err != nil {
			log.Warn("task list not cleared", "error", err)
		}
	}

	switch {
	case summary.Stopped:
		return fmt.Errorf("%w: %d of %d file(s) converted", ErrStopped, summary.Succeeded, summary.Total)
	case summary.Failed > 0:
		return fmt.Errorf("%d of %d file(s) failed", summary.Failed, summary.Total)
	}
	return nil
}

// addInputs registers files and scans directories. Problems are reported and skipped.
func addInputs(reg *registry.Registry, inputs []string, output OutputWriter) {
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			fmt.Fprintf(output, "Skipping %s: %v\n", in, err)
			continue
		}

		if info.IsDir() {
			ids, err := reg.AddFolder(in)
			if err != nil {
				fmt.Fprintf(output, "Some files in %s were skipped: %v\n", in, err)
			}
			if len(ids) == 0 {
				fmt.Fprintf(output, "No new video files found in %s\n", in)
			}
			continue
		}

		if _, err := reg.Add(in); err != nil {
			if errors.Is(err, conversion.ErrDuplicateTask) {
				fmt.Fprintf(output, "Skipping duplicate %s\n", in)
				continue
			}
			fmt.Fprintf(output, "Skipping %s: %v\n", in, err)
		}
	}
}

func printSummary(output OutputWriter, summary runner.Summary, tasks []conversion.Task) {
	fmt.Fprintln(output)
	fmt.Fprintf(output, "Converted %d of %d file(s) in %s\n", summary.Succeeded, summary.Total, summary.Elapsed.Round(100*time.Millisecond))
	for _, t := range tasks {
		switch {
		case t.Status == conversion.StatusCompleted:
			fmt.Fprintf(output, "  ok      %s\n", t.OutputPath)
			for _, w := range t.Warnings {
				fmt.Fprintf(output, "          warning: %s\n", w)
			}
		case t.Status == conversion.StatusFailed:
			fmt.Fprintf(output, "  failed  %s: %s\n", filepath.Base(t.InputPath), t.ErrorMessage)
		}
	}
}

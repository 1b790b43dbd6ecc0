package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"vid2audio/infrastructure/config"

	"github.com/spf13/cobra"
)

var (
	settingsFile string
	verbose      bool
	settings     *config.Settings
	logger       = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
)

// OutputWriter allows capturing output in tests
type OutputWriter = io.Writer

// DefaultOutput is the writer commands print to
var DefaultOutput OutputWriter = os.Stdout

var rootCmd = &cobra.Command{
	Use:   "vid2audio",
	Short: "Batch convert video files to audio",
	Long: `vid2audio converts video files to audio files with ffmpeg.

  - Convert many files at once with a bounded number of workers
  - Choose mp3, wav, flac, aac or ogg output
  - Copy title/artist/album tags and embed a cover frame into mp3 output
  - Optionally publish results to Google Drive and email a run summary

Example:
  vid2audio convert ~/Videos/lectures --format mp3 --bitrate 192k`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initSettings)
	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "settings file (default is <user config dir>/vid2audio/settings.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

func initSettings() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if settingsFile == "" {
		path, err := config.DefaultPath()
		if err != nil {
			logger.Warn("using default settings", "error", err)
			settings = config.DefaultSettings()
			return
		}
		settingsFile = path
	}

	var err error
	settings, err = config.Load(settingsFile)
	if err != nil {
		// Load still returned defaults
		var loadErr *config.SettingsLoadError
		if errors.As(err, &loadErr) {
			logger.Warn("settings file ignored, using defaults", "path", loadErr.Path, "error", loadErr.Err)
		} else {
			logger.Warn("settings file ignored, using defaults", "error", err)
		}
	}
	logger.Debug("settings loaded", "path", settingsFile)
}

// GetSettings returns the loaded settings
func GetSettings() *config.Settings {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	return settings
}

// SettingsPath returns the settings file in use
func SettingsPath() string {
	return settingsFile
}

// warnSave reports a settings save failure without aborting the surrounding action
func warnSave(out OutputWriter, err error) {
	var saveErr *config.SettingsSaveError
	if errors.As(err, &saveErr) {
		fmt.Fprintf(out, "Warning: %v\n", saveErr)
		logger.Warn("settings not saved", "path", saveErr.Path, "error", saveErr.Err)
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"vid2audio/domain/conversion"
)

// AppName names the per-user settings directory
const AppName = "vid2audio"

// SettingsFileName is the settings document inside the settings directory
const SettingsFileName = "settings.yaml"

// Themes lists the accepted values of Settings.Theme
var Themes = []string{"dark", "light", "system"}

// CoverGrabbers lists the accepted values of Settings.CoverGrabber
var CoverGrabbers = []string{"ffmpeg", "opencv"}

// Settings is the persisted user configuration, stored as a flat YAML document
type Settings struct {
	OutputDirectory       string  `yaml:"output_directory"`
	DefaultFormat         string  `yaml:"default_format"`
	DefaultBitrate        string  `yaml:"default_bitrate"`
	PreserveMetadata      bool    `yaml:"preserve_metadata"`
	ExtractCover          bool    `yaml:"extract_cover"`
	Normalize             bool    `yaml:"normalize"`
	TargetDB              float64 `yaml:"target_db"`
	MaxConcurrent         int     `yaml:"max_concurrent"`
	Theme                 string  `yaml:"theme"`
	AutoClearList         bool    `yaml:"auto_clear_list"`
	Notifications         bool    `yaml:"notifications"`
	FFmpegPath            string  `yaml:"ffmpeg_path"`
	FFprobePath           string  `yaml:"ffprobe_path"`
	CoverGrabber          string  `yaml:"cover_grabber"`
	DriveFolderID         string  `yaml:"drive_folder_id"`
	GoogleCredentialsFile string  `yaml:"google_credentials_file"`
	GoogleTokenFile       string  `yaml:"google_token_file"`
	NotifyEmail           string  `yaml:"notify_email"`
	NotifyFromName        string  `yaml:"notify_from_name"`
}

// DefaultSettings returns the settings used when no file exists
func DefaultSettings() *Settings {
	output := "ConvertedAudio"
	if home, err := os.UserHomeDir(); err == nil {
		output = filepath.Join(home, "ConvertedAudio")
	}

	return &Settings{
		OutputDirectory:  output,
		DefaultFormat:    string(conversion.DefaultFormat),
		DefaultBitrate:   conversion.DefaultAudioBitrate,
		PreserveMetadata: true,
		ExtractCover:     true,
		Normalize:        false,
		TargetDB:         conversion.DefaultTargetDB,
		MaxConcurrent:    2,
		Theme:            "dark",
		AutoClearList:    false,
		Notifications:    true,
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		CoverGrabber:     "ffmpeg",
		NotifyFromName:   AppName,
	}
}

// DefaultPath returns <user config dir>/vid2audio/settings.yaml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, AppName, SettingsFileName), nil
}

// SettingsLoadError reports a settings file that exists but could not be used.
// Load still returns defaults alongside it.
type SettingsLoadError struct {
	Path string
	Err  error
}

func (e *SettingsLoadError) Error() string {
	return fmt.Sprintf("failed to load settings from %s: %v", e.Path, e.Err)
}

func (e *SettingsLoadError) Unwrap() error {
	return e.Err
}

// SettingsSaveError reports a settings file that could not be written
type SettingsSaveError struct {
	Path string
	Err  error
}

func (e *SettingsSaveError) Error() string {
	return fmt.Sprintf("failed to save settings to %s: %v", e.Path, e.Err)
}

func (e *SettingsSaveError) Unwrap() error {
	return e.Err
}

// Load reads the settings file at path.
// A missing file yields defaults and no error. An unreadable or malformed file yields
// defaults and a *SettingsLoadError. Unknown keys are ignored, missing keys keep their
// defaults and invalid values are replaced by defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return DefaultSettings(), &SettingsLoadError{Path: path, Err: err}
	}

	s := DefaultSettings()
	if err := yaml.Unmarshal(data, s); err != nil {
		var typeErr *yaml.TypeError
		if !errors.As(err, &typeErr) {
			return DefaultSettings(), &SettingsLoadError{Path: path, Err: err}
		}
		// Fields with mismatched types were left at their defaults
	}

	s.Sanitize()
	return s, nil
}

// Save writes the settings to path, creating the parent directory.
// Failures are returned as *SettingsSaveError.
func Save(s *Settings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return &SettingsSaveError{Path: path, Err: fmt.Errorf("failed to serialize settings: %w", err)}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &SettingsSaveError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &SettingsSaveError{Path: path, Err: err}
	}

	return nil
}

// Sanitize replaces values outside their accepted range with defaults
func (s *Settings) Sanitize() {
	d := DefaultSettings()

	if strings.TrimSpace(s.OutputDirectory) == "" {
		s.OutputDirectory = d.OutputDirectory
	}
	if f, err := conversion.ParseFormat(s.DefaultFormat); err != nil {
		s.DefaultFormat = d.DefaultFormat
	} else {
		s.DefaultFormat = string(f)
	}
	if !conversion.IsValidBitrate(s.DefaultBitrate) {
		s.DefaultBitrate = d.DefaultBitrate
	}
	if s.TargetDB < conversion.MinTargetDB || s.TargetDB > conversion.MaxTargetDB {
		s.TargetDB = d.TargetDB
	}
	if s.MaxConcurrent < conversion.MinConcurrent || s.MaxConcurrent > conversion.MaxConcurrentCap {
		s.MaxConcurrent = d.MaxConcurrent
	}
	s.Theme = strings.ToLower(s.Theme)
	if !slices.Contains(Themes, s.Theme) {
		s.Theme = d.Theme
	}
	s.CoverGrabber = strings.ToLower(s.CoverGrabber)
	if !slices.Contains(CoverGrabbers, s.CoverGrabber) {
		s.CoverGrabber = d.CoverGrabber
	}
	if s.FFmpegPath == "" {
		s.FFmpegPath = d.FFmpegPath
	}
	if s.FFprobePath == "" {
		s.FFprobePath = d.FFprobePath
	}
	if s.NotifyFromName == "" {
		s.NotifyFromName = d.NotifyFromName
	}
}

// BatchConfig converts the conversion defaults into a run configuration
func (s *Settings) BatchConfig() conversion.BatchConfig {
	return conversion.BatchConfig{
		Format:           conversion.Format(s.DefaultFormat),
		Bitrate:          s.DefaultBitrate,
		PreserveMetadata: s.PreserveMetadata,
		ExtractCover:     s.ExtractCover,
		Normalize:        s.Normalize,
		TargetDB:         s.TargetDB,
		MaxConcurrent:    s.MaxConcurrent,
	}
}

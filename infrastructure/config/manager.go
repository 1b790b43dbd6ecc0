package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"vid2audio/domain/conversion"
)

// Errors for settings management
var (
	ErrUnknownKey   = errors.New("unknown settings key")
	ErrInvalidValue = errors.New("invalid settings value")
)

// SettingsManager reads and updates individual settings by key and persists each change
type SettingsManager struct {
	settings *Settings
	path     string
}

// NewSettingsManager creates a new settings manager
func NewSettingsManager(s *Settings, path string) *SettingsManager {
	return &SettingsManager{
		settings: s,
		path:     path,
	}
}

// Settings returns the managed settings
func (m *SettingsManager) Settings() *Settings {
	return m.settings
}

// Path returns the settings file location
func (m *SettingsManager) Path() string {
	return m.path
}

type field struct {
	key string
	get func(*Settings) string
	set func(*Settings, string) error
}

var fields = []field{
	stringField("output_directory", func(s *Settings) *string { return &s.OutputDirectory }, nonEmpty),
	{
		key: "default_format",
		get: func(s *Settings) string { return s.DefaultFormat },
		set: func(s *Settings, v string) error {
			f, err := conversion.ParseFormat(v)
			if err != nil {
				return err
			}
			s.DefaultFormat = string(f)
			return nil
		},
	},
	stringField("default_bitrate", func(s *Settings) *string { return &s.DefaultBitrate }, func(v string) error {
		if !conversion.IsValidBitrate(v) {
			return fmt.Errorf("expected one of %s", strings.Join(conversion.Bitrates, ", "))
		}
		return nil
	}),
	boolField("preserve_metadata", func(s *Settings) *bool { return &s.PreserveMetadata }),
	boolField("extract_cover", func(s *Settings) *bool { return &s.ExtractCover }),
	boolField("normalize", func(s *Settings) *bool { return &s.Normalize }),
	{
		key: "target_db",
		get: func(s *Settings) string { return strconv.FormatFloat(s.TargetDB, 'f', -1, 64) },
		set: func(s *Settings, v string) error {
			db, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("expected a number")
			}
			if db < conversion.MinTargetDB || db > conversion.MaxTargetDB {
				return fmt.Errorf("expected a level between %.0f and %.0f dB", conversion.MinTargetDB, conversion.MaxTargetDB)
			}
			s.TargetDB = db
			return nil
		},
	},
	{
		key: "max_concurrent",
		get: func(s *Settings) string { return strconv.Itoa(s.MaxConcurrent) },
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected a whole number")
			}
			if n < conversion.MinConcurrent || n > conversion.MaxConcurrentCap {
				return fmt.Errorf("expected a value between %d and %d", conversion.MinConcurrent, conversion.MaxConcurrentCap)
			}
			s.MaxConcurrent = n
			return nil
		},
	},
	stringField("theme", func(s *Settings) *string { return &s.Theme }, oneOf(Themes)),
	boolField("auto_clear_list", func(s *Settings) *bool { return &s.AutoClearList }),
	boolField("notifications", func(s *Settings) *bool { return &s.Notifications }),
	stringField("ffmpeg_path", func(s *Settings) *string { return &s.FFmpegPath }, nonEmpty),
	stringField("ffprobe_path", func(s *Settings) *string { return &s.FFprobePath }, nonEmpty),
	stringField("cover_grabber", func(s *Settings) *string { return &s.CoverGrabber }, oneOf(CoverGrabbers)),
	stringField("drive_folder_id", func(s *Settings) *string { return &s.DriveFolderID }, nil),
	stringField("google_credentials_file", func(s *Settings) *string { return &s.GoogleCredentialsFile }, nil),
	stringField("google_token_file", func(s *Settings) *string { return &s.GoogleTokenFile }, nil),
	stringField("notify_email", func(s *Settings) *string { return &s.NotifyEmail }, func(v string) error {
		if v == "" {
			return nil
		}
		_, err := ParseRecipients(v)
		return err
	}),
	stringField("notify_from_name", func(s *Settings) *string { return &s.NotifyFromName }, nonEmpty),
}

func stringField(key string, ptr func(*Settings) *string, validate func(string) error) field {
	return field{
		key: key,
		get: func(s *Settings) string { return *ptr(s) },
		set: func(s *Settings, v string) error {
			if validate != nil {
				if err := validate(v); err != nil {
					return err
				}
			}
			*ptr(s) = v
			return nil
		},
	}
}

func boolField(key string, ptr func(*Settings) *bool) field {
	return field{
		key: key,
		get: func(s *Settings) string { return strconv.FormatBool(*ptr(s)) },
		set: func(s *Settings, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected true or false")
			}
			*ptr(s) = b
			return nil
		},
	}
}

func nonEmpty(v string) error {
	if v == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

func oneOf(allowed []string) func(string) error {
	return func(v string) error {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("expected one of %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

func lookup(key string) (field, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range fields {
		if f.key == key {
			return f, nil
		}
	}
	return field{}, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}

// Keys returns every settings key in document order
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the value of a key as text
func (m *SettingsManager) Get(key string) (string, error) {
	f, err := lookup(key)
	if err != nil {
		return "", err
	}
	return f.get(m.settings), nil
}

// Set validates and stores a value, then saves the file.
// A rejected value leaves the settings unchanged.
func (m *SettingsManager) Set(key, value string) error {
	f, err := lookup(key)
	if err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	if err := f.set(m.settings, value); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidValue, f.key, err)
	}
	return Save(m.settings, m.path)
}

// Reset restores every default and saves the file
func (m *SettingsManager) Reset() error {
	*m.settings = *DefaultSettings()
	return Save(m.settings, m.path)
}

// Apply replaces all settings at once, as after an interactive edit, and saves the file
func (m *SettingsManager) Apply(s Settings) error {
	s.Sanitize()
	*m.settings = s
	return Save(m.settings, m.path)
}

package conversion

import (
	"fmt"
	"slices"
	"strings"
)

// DefaultAudioBitrate is the default bitrate for audio conversion
const DefaultAudioBitrate = "192k"

// DefaultTargetDB is the gain applied when normalization is requested without a level
const DefaultTargetDB = -1.0

// Bounds for BatchConfig.TargetDB and BatchConfig.MaxConcurrent
const (
	MinTargetDB      = -30.0
	MaxTargetDB      = 0.0
	MinConcurrent    = 1
	MaxConcurrentCap = 8
)

// Bitrates lists the accepted bitrate tokens, passed verbatim to the encoder
var Bitrates = []string{"64k", "128k", "192k", "256k", "320k"}

// IsValidBitrate reports whether b is one of Bitrates
func IsValidBitrate(b string) bool {
	return slices.Contains(Bitrates, b)
}

// Format is a target audio container
type Format string

const (
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatAAC  Format = "aac"
	FormatOGG  Format = "ogg"
)

// DefaultFormat is used when no format is configured
const DefaultFormat = FormatMP3

// Formats lists every supported output format
var Formats = []Format{FormatMP3, FormatWAV, FormatFLAC, FormatAAC, FormatOGG}

// ParseFormat parses a format name case-insensitively, with or without a leading dot
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("unsupported format %q: expected one of mp3, wav, flac, aac, ogg", s)
	}
	return f, nil
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	return string(f)
}

// Codec returns the ffmpeg audio encoder for the format
func (f Format) Codec() string {
	switch f {
	case FormatWAV:
		return "pcm_s16le"
	case FormatFLAC:
		return "flac"
	case FormatAAC:
		return "aac"
	case FormatOGG:
		return "libvorbis"
	default:
		return "libmp3lame"
	}
}

// Lossless reports whether the codec ignores a bitrate
func (f Format) Lossless() bool {
	return f == FormatWAV || f == FormatFLAC
}

// SupportsID3 reports whether cover art and tag copying can be applied to the output
func (f Format) SupportsID3() bool {
	return f == FormatMP3
}

// BatchConfig holds the per-run conversion options. It is passed by value and never
// changes while a run is in progress.
type BatchConfig struct {
	Format           Format
	Bitrate          string
	PreserveMetadata bool
	ExtractCover     bool
	Normalize        bool
	TargetDB         float64
	MaxConcurrent    int
}

// DefaultBatchConfig returns the configuration used when nothing is overridden
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Format:           DefaultFormat,
		Bitrate:          DefaultAudioBitrate,
		PreserveMetadata: true,
		ExtractCover:     true,
		TargetDB:         DefaultTargetDB,
		MaxConcurrent:    1,
	}
}

// Validate checks the configuration and fills in empty fields with defaults
func (c BatchConfig) Validate() (BatchConfig, error) {
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if _, err := ParseFormat(string(c.Format)); err != nil {
		return c, err
	}

	if c.Bitrate == "" {
		c.Bitrate = DefaultAudioBitrate
	}
	if !IsValidBitrate(c.Bitrate) {
		return c, fmt.Errorf("unsupported bitrate %q: expected one of %s", c.Bitrate, strings.Join(Bitrates, ", "))
	}

	if c.Normalize && (c.TargetDB < MinTargetDB || c.TargetDB > MaxTargetDB) {
		return c, fmt.Errorf("target level %.1f dB out of range [%.0f, %.0f]", c.TargetDB, MinTargetDB, MaxTargetDB)
	}

	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 1
	}
	if c.MaxConcurrent < MinConcurrent || c.MaxConcurrent > MaxConcurrentCap {
		return c, fmt.Errorf("concurrency %d out of range [%d, %d]", c.MaxConcurrent, MinConcurrent, MaxConcurrentCap)
	}

	return c, nil
}

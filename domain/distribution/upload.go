package distribution

import (
	"path/filepath"
	"strings"
)

// UploadRequest contains the parameters needed to upload a file to Google Drive
type UploadRequest struct {
	LocalPath string // Full path to the local file
	FileName  string // Target filename in Google Drive
	FolderID  string // Target folder ID in Google Drive
	MimeType  string // MIME type of the file
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	FileID       string // Google Drive file ID
	FileName     string // Name of the uploaded file
	ShareableURL string // URL for sharing the file
	Size         int64  // Size of the uploaded file in bytes
}

// MIME type constants for the audio formats we produce
const (
	MimeTypeMP3  = "audio/mpeg"
	MimeTypeWAV  = "audio/wav"
	MimeTypeFLAC = "audio/flac"
	MimeTypeAAC  = "audio/aac"
	MimeTypeOGG  = "audio/ogg"

	MimeTypeOctetStream = "application/octet-stream"
)

var mimeTypes = map[string]string{
	".mp3":  MimeTypeMP3,
	".wav":  MimeTypeWAV,
	".flac": MimeTypeFLAC,
	".aac":  MimeTypeAAC,
	".ogg":  MimeTypeOGG,
}

// MimeTypeFor returns the MIME type for a file based on its extension
func MimeTypeFor(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return MimeTypeOctetStream
}

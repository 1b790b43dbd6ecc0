package conversion

import (
	"path/filepath"
	"slices"
	"strings"
)

// VideoExtensions lists the source extensions picked up when adding a folder
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".wmv", ".flv", ".mkv", ".webm"}

// IsVideoFile returns true if the path has a known video extension
func IsVideoFile(path string) bool {
	return slices.Contains(VideoExtensions, strings.ToLower(filepath.Ext(path)))
}

// OutputPathFor derives the destination path from the input's stem and the target extension.
// An empty outputDir keeps the output beside the input.
func OutputPathFor(inputPath, outputDir, extension string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	return filepath.Join(outputDir, stem+"."+strings.TrimPrefix(extension, "."))
}

// CoverPathFor returns the temporary image path used while extracting a cover frame
func CoverPathFor(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "_cover.png"
}

package filesystem

import (
	"os"

	"vid2audio/domain/conversion"
)

// Checker implements conversion.FileChecker using the os package
type Checker struct{}

// NewChecker creates a new filesystem checker
func NewChecker() *Checker {
	return &Checker{}
}

// Exists returns true if the file exists
func (c *Checker) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Stat returns file info for path. Regular files are opened once so a file that
// exists but cannot be read is reported here rather than mid-run.
func (c *Checker) Stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return info, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f.Close()
	return info, nil
}

// Ensure Checker implements conversion.FileChecker
var _ conversion.FileChecker = (*Checker)(nil)

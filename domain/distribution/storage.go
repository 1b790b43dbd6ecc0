package distribution

import (
	"fmt"
	"math"
)

// StorageInfo is the Drive account quota. Accounts without a limit report
// TotalBytes 0 and AvailableBytes math.MaxInt64.
type StorageInfo struct {
	TotalBytes     int64
	UsedBytes      int64
	AvailableBytes int64
}

// Unlimited reports whether the account has no storage limit
func (s StorageInfo) Unlimited() bool {
	return s.TotalBytes == 0 && s.AvailableBytes == math.MaxInt64
}

// HasSpaceFor reports whether n more bytes fit. A non-positive n always fits.
func (s StorageInfo) HasSpaceFor(n int64) bool {
	return n <= 0 || s.AvailableBytes >= n
}

func (s StorageInfo) String() string {
	const mb = 1024 * 1024
	if s.Unlimited() {
		return fmt.Sprintf("%.1f MB used (no limit)", float64(s.UsedBytes)/mb)
	}
	return fmt.Sprintf("%.1f MB of %.1f MB used, %.1f MB free",
		float64(s.UsedBytes)/mb, float64(s.TotalBytes)/mb, float64(s.AvailableBytes)/mb)
}

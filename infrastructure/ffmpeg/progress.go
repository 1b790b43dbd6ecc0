package ffmpeg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"vid2audio/domain/conversion"
)

// clockRegex matches the HH:MM:SS[.fraction] positions ffmpeg writes to its progress stream
var clockRegex = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})(?:\.(\d+))?$`)

// ParseClock parses a position in HH:MM:SS[.fraction] format
func ParseClock(s string) (time.Duration, error) {
	matches := clockRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return 0, fmt.Errorf("invalid position %q: expected HH:MM:SS", s)
	}

	hours, _ := strconv.Atoi(matches[1])
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.Atoi(matches[3])

	if minutes > 59 {
		return 0, fmt.Errorf("invalid position %q: minutes must be 0-59", s)
	}
	if seconds > 59 {
		return 0, fmt.Errorf("invalid position %q: seconds must be 0-59", s)
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	if frac := matches[4]; frac != "" {
		// Normalise to nanoseconds
		if len(frac) > 9 {
			frac = frac[:9]
		}
		frac += strings.Repeat("0", 9-len(frac))
		ns, _ := strconv.Atoi(frac)
		d += time.Duration(ns)
	}
	return d, nil
}

// progressTracker turns "-progress pipe:1" key=value lines into percentages
type progressTracker struct {
	total  time.Duration
	report conversion.ProgressFunc
	last   int
}

func newProgressTracker(total time.Duration, report conversion.ProgressFunc) *progressTracker {
	return &progressTracker{total: total, report: report}
}

// handleLine consumes one progress line. Only increasing percentages are reported.
func (p *progressTracker) handleLine(line string) {
	if p == nil || p.report == nil || p.total <= 0 {
		return
	}

	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}

	var pos time.Duration
	switch key {
	case "out_time_us":
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return
		}
		pos = time.Duration(us) * time.Microsecond
	case "out_time":
		d, err := ParseClock(value)
		if err != nil {
			return
		}
		pos = d
	default:
		return
	}

	pct := int(pos * 100 / p.total)
	if pct > 100 {
		pct = 100
	}
	if pct > p.last {
		p.last = pct
		p.report(pct)
	}
}

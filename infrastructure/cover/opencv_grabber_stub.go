//go:build !opencv

package cover

import (
	"context"
	"errors"

	"vid2audio/domain/conversion"
)

// OpenCVGrabber is a stub when OpenCV is not available
type OpenCVGrabber struct{}

// OpenCVGrabberOption is a functional option for configuring OpenCVGrabber
type OpenCVGrabberOption func(*OpenCVGrabber)

// WithPosition is a no-op in stub mode
func WithPosition(fraction float64) OpenCVGrabberOption {
	return func(g *OpenCVGrabber) {}
}

// NewOpenCVGrabber creates a stub grabber (requires building with -tags=opencv)
func NewOpenCVGrabber(opts ...OpenCVGrabberOption) *OpenCVGrabber {
	return &OpenCVGrabber{}
}

// Available reports whether the binary was built with OpenCV
func (g *OpenCVGrabber) Available() bool {
	return false
}

// ExtractFrame returns an error indicating OpenCV is not available
func (g *OpenCVGrabber) ExtractFrame(ctx context.Context, videoPath, imagePath string) error {
	return errors.New("opencv cover grabber requires -tags=opencv build")
}

// Ensure OpenCVGrabber implements conversion.FrameExtractor
var _ conversion.FrameExtractor = (*OpenCVGrabber)(nil)

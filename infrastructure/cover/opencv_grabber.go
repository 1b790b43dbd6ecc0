//go:build opencv

package cover

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"vid2audio/domain/conversion"
)

// OpenCVGrabber implements conversion.FrameExtractor with OpenCV.
// It seeks into the video instead of taking the first frame, which is often black.
type OpenCVGrabber struct {
	position float64
}

// OpenCVGrabberOption configures an OpenCVGrabber
type OpenCVGrabberOption func(*OpenCVGrabber)

// WithPosition sets where to grab, as a fraction of the video length
func WithPosition(fraction float64) OpenCVGrabberOption {
	return func(g *OpenCVGrabber) {
		g.position = fraction
	}
}

// NewOpenCVGrabber creates a grabber that takes the frame at 10% of the video
func NewOpenCVGrabber(opts ...OpenCVGrabberOption) *OpenCVGrabber {
	g := &OpenCVGrabber{position: 0.1}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether the binary was built with OpenCV
func (g *OpenCVGrabber) Available() bool {
	return true
}

// ExtractFrame writes one frame of videoPath to imagePath
func (g *OpenCVGrabber) ExtractFrame(ctx context.Context, videoPath, imagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vc, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return fmt.Errorf("failed to open video %s: %w", videoPath, err)
	}
	defer vc.Close()

	frameCount := vc.Get(gocv.VideoCaptureFrameCount)
	if frameCount > 0 && g.position > 0 && g.position < 1 {
		vc.Set(gocv.VideoCapturePosFrames, frameCount*g.position)
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := vc.Read(&frame); !ok || frame.Empty() {
		return fmt.Errorf("no frame could be read from %s", videoPath)
	}

	if ok := gocv.IMWrite(imagePath, frame); !ok {
		return fmt.Errorf("failed to write frame to %s", imagePath)
	}
	return nil
}

// Ensure OpenCVGrabber implements conversion.FrameExtractor
var _ conversion.FrameExtractor = (*OpenCVGrabber)(nil)

package cover

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	"vid2audio/domain/conversion"
)

// DefaultMaxSize is the longest edge of embedded cover art in pixels
const DefaultMaxSize = 600

// DefaultJPEGQuality is the encoder quality for cover art
const DefaultJPEGQuality = 85

// Processor implements conversion.ArtworkPreparer.
// It shrinks an extracted frame to fit a square box and re-encodes it as JPEG.
type Processor struct {
	maxSize int
	quality int
}

// ProcessorOption configures a Processor
type ProcessorOption func(*Processor)

// WithMaxSize sets the bounding box edge in pixels
func WithMaxSize(px int) ProcessorOption {
	return func(p *Processor) {
		p.maxSize = px
	}
}

// WithJPEGQuality sets the JPEG quality (1-100)
func WithJPEGQuality(q int) ProcessorOption {
	return func(p *Processor) {
		p.quality = q
	}
}

// NewProcessor creates a new cover processor
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		maxSize: DefaultMaxSize,
		quality: DefaultJPEGQuality,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prepare loads imagePath and returns it as JPEG artwork no larger than the bounding box.
// Smaller images keep their size.
func (p *Processor) Prepare(imagePath string) (conversion.Artwork, error) {
	img, err := imaging.Open(imagePath)
	if err != nil {
		return conversion.Artwork{}, fmt.Errorf("failed to load frame %s: %w", imagePath, err)
	}

	img = imaging.Fit(img, p.maxSize, p.maxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return conversion.Artwork{}, fmt.Errorf("failed to encode cover: %w", err)
	}

	return conversion.Artwork{MimeType: "image/jpeg", Data: buf.Bytes()}, nil
}

// Ensure Processor implements conversion.ArtworkPreparer
var _ conversion.ArtworkPreparer = (*Processor)(nil)

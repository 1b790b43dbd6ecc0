package cover

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writeFrame(t *testing.T, w, h int) string {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	path := filepath.Join(t.TempDir(), "frame.png")
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save frame: %v", err)
	}
	return path
}

func TestProcessor_Prepare(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		opts  []ProcessorOption
		wantW int
		wantH int
	}{
		{name: "landscape is shrunk to fit", w: 1200, h: 600, wantW: 600, wantH: 300},
		{name: "portrait is shrunk to fit", w: 600, h: 1200, wantW: 300, wantH: 600},
		{name: "small frame keeps its size", w: 320, h: 240, wantW: 320, wantH: 240},
		{name: "custom box", w: 1000, h: 1000, opts: []ProcessorOption{WithMaxSize(100)}, wantW: 100, wantH: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFrame(t, tt.w, tt.h)

			art, err := NewProcessor(tt.opts...).Prepare(path)
			if err != nil {
				t.Fatalf("Prepare() error = %v", err)
			}
			if art.MimeType != "image/jpeg" {
				t.Errorf("MimeType = %q, want image/jpeg", art.MimeType)
			}

			img, err := jpeg.Decode(bytes.NewReader(art.Data))
			if err != nil {
				t.Fatalf("decode jpeg: %v", err)
			}
			if got := img.Bounds().Size(); got != (image.Point{X: tt.wantW, Y: tt.wantH}) {
				t.Errorf("size = %v, want %dx%d", got, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestProcessor_PrepareMissingFile(t *testing.T) {
	if _, err := NewProcessor().Prepare(filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Error("Prepare() error = nil, want error")
	}
}

func TestOpenCVGrabberStubReportsAvailability(t *testing.T) {
	g := NewOpenCVGrabber(WithPosition(0.25))
	if g.Available() {
		t.Skip("built with opencv")
	}
	if err := g.ExtractFrame(context.Background(), "in.mp4", "out.png"); err == nil {
		t.Error("ExtractFrame() error = nil, want error")
	}
}

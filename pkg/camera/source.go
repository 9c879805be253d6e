package camera

import (
	"bytes"
	"fmt"
	"image/jpeg"
)

// Source is a frame source for the detection loop. Implementations decide
// once, at wiring time, where frames come from (local webcam, static image,
// remote ingest); callers never sniff the concrete type per frame.
type Source interface {
	// CaptureJPEG returns the current frame as JPEG at native resolution.
	CaptureJPEG() ([]byte, error)

	// Resolution returns the native frame dimensions in pixels.
	Resolution() (width, height int)
}

// StaticImage is a Source backed by a fixed JPEG buffer. Useful for analyzing
// a single uploaded image and for tests.
type StaticImage struct {
	data   []byte
	width  int
	height int
}

// NewStaticImage wraps a JPEG buffer as a frame source. The image header is
// decoded once to learn the native dimensions.
func NewStaticImage(data []byte) (*StaticImage, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	return &StaticImage{
		data:   data,
		width:  cfg.Width,
		height: cfg.Height,
	}, nil
}

// CaptureJPEG returns the wrapped buffer.
func (s *StaticImage) CaptureJPEG() ([]byte, error) {
	return s.data, nil
}

// Resolution returns the image dimensions.
func (s *StaticImage) Resolution() (int, int) {
	return s.width, s.height
}

package camera

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/grovesy/watchpost/internal/log"
)

// Webcam is a Source backed by a local capture device through gocv.
type Webcam struct {
	mu     sync.Mutex
	cap    *gocv.VideoCapture
	config Config

	// Actual dimensions reported by the device, which may differ from the
	// requested configuration.
	width  int
	height int
}

// OpenWebcam opens the capture device described by cfg.
func OpenWebcam(cfg Config) (*Webcam, error) {
	cap, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("open capture device %d: %w", cfg.DeviceID, err)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	w := &Webcam{
		cap:    cap,
		config: cfg,
		width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
	}

	if w.width != cfg.Width || w.height != cfg.Height {
		log.Warn("device negotiated different resolution",
			"requested_width", cfg.Width, "requested_height", cfg.Height,
			"actual_width", w.width, "actual_height", w.height)
	}

	log.Info("webcam opened",
		"device", cfg.DeviceID, "width", w.width, "height", w.height,
		"framerate", cfg.Framerate)
	return w, nil
}

// CaptureJPEG grabs one frame and encodes it as JPEG.
func (w *Webcam) CaptureJPEG() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return nil, fmt.Errorf("webcam is closed")
	}

	frame := gocv.NewMat()
	defer frame.Close()

	if ok := w.cap.Read(&frame); !ok || frame.Empty() {
		return nil, fmt.Errorf("read frame from device %d", w.config.DeviceID)
	}

	if w.config.FlipHorizontal {
		gocv.Flip(frame, &frame, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame,
		[]int{gocv.IMWriteJpegQuality, w.config.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}

// Resolution returns the actual device dimensions.
func (w *Webcam) Resolution() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}

// Apply reconfigures the open device. Resolution changes reopen the device.
func (w *Webcam) Apply(cfg Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cap == nil {
		return fmt.Errorf("webcam is closed")
	}

	if cfg.DeviceID != w.config.DeviceID || cfg.Width != w.config.Width || cfg.Height != w.config.Height {
		w.cap.Close()
		cap, err := gocv.OpenVideoCapture(cfg.DeviceID)
		if err != nil {
			w.cap = nil
			return fmt.Errorf("reopen capture device %d: %w", cfg.DeviceID, err)
		}
		cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		w.cap = cap
		w.width = int(cap.Get(gocv.VideoCaptureFrameWidth))
		w.height = int(cap.Get(gocv.VideoCaptureFrameHeight))
	}

	w.cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	w.config = cfg
	return nil
}

// Close releases the capture device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cap == nil {
		return nil
	}
	err := w.cap.Close()
	w.cap = nil
	return err
}

package camera

import "sync"

// Mock implements Source for testing.
type Mock struct {
	// Frame is returned from CaptureJPEG unless CaptureFunc is set.
	Frame []byte

	// Width and Height are reported from Resolution.
	Width  int
	Height int

	// CaptureFunc overrides CaptureJPEG when set.
	CaptureFunc func() ([]byte, error)

	mu       sync.Mutex
	captures int
}

// NewMock creates a mock source with the given dimensions.
func NewMock(width, height int) *Mock {
	return &Mock{Width: width, Height: height, Frame: []byte("jpeg")}
}

// CaptureJPEG returns the configured frame.
func (m *Mock) CaptureJPEG() ([]byte, error) {
	m.mu.Lock()
	m.captures++
	m.mu.Unlock()

	if m.CaptureFunc != nil {
		return m.CaptureFunc()
	}
	return m.Frame, nil
}

// Resolution returns the configured dimensions.
func (m *Mock) Resolution() (int, int) {
	return m.Width, m.Height
}

// Captures returns how many frames have been requested.
func (m *Mock) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

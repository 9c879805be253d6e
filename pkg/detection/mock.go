package detection

import "sync"

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked. When nil, Detect returns
	// the next scripted result from Results (repeating the last one).
	DetectFunc func(jpeg []byte) ([]Detection, error)

	// Results are scripted detection frames consumed in order.
	Results [][]Detection

	mu    sync.Mutex
	calls int
}

// NewMock creates a mock detector that returns no detections.
func NewMock() *Mock {
	return &Mock{}
}

// Detect returns the scripted or computed detections.
func (m *Mock) Detect(jpeg []byte) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.DetectFunc != nil {
		return m.DetectFunc(jpeg)
	}
	if len(m.Results) == 0 {
		return nil, nil
	}
	idx := m.calls - 1
	if idx >= len(m.Results) {
		idx = len(m.Results) - 1
	}
	return m.Results[idx], nil
}

// Calls returns how many times Detect has been invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

package analyze

import (
	"context"
	"sync"
)

// MockProvider implements Provider for testing.
type MockProvider struct {
	// AnalyzeFunc is called when Analyze is invoked. When nil, Analyze
	// returns Analysis.
	AnalyzeFunc func(ctx context.Context, req *Request) (string, error)

	// Analysis is the canned response text.
	Analysis string

	mu       sync.Mutex
	requests []*Request
}

// NewMockProvider creates a mock with a canned response.
func NewMockProvider() *MockProvider {
	return &MockProvider{Analysis: "mock analysis"}
}

// Analyze records the request and returns the canned or computed response.
func (m *MockProvider) Analyze(ctx context.Context, req *Request) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, req)
	}
	return m.Analysis, nil
}

// Requests returns the recorded requests.
func (m *MockProvider) Requests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.requests))
	copy(out, m.requests)
	return out
}

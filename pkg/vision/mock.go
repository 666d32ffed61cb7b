package vision

import (
	"context"
	"sync"
)

// Mock implements Describer for testing.
type Mock struct {
	// DescribeFunc is called when Describe is invoked.
	// If nil, returns FallbackDescription.
	DescribeFunc func(ctx context.Context, imageB64 string) (string, error)

	mu     sync.Mutex
	images []string
}

// NewMock returns a mock that always answers with text.
func NewMock(text string) *Mock {
	return &Mock{
		DescribeFunc: func(ctx context.Context, imageB64 string) (string, error) {
			return text, nil
		},
	}
}

// Describe records the image and calls DescribeFunc.
func (m *Mock) Describe(ctx context.Context, imageB64 string) (string, error) {
	m.mu.Lock()
	m.images = append(m.images, imageB64)
	m.mu.Unlock()

	if m.DescribeFunc != nil {
		return m.DescribeFunc(ctx, imageB64)
	}
	return FallbackDescription, nil
}

// Calls returns the number of Describe calls.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}

// LastImage returns the most recent image, or "" if none.
func (m *Mock) LastImage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.images) == 0 {
		return ""
	}
	return m.images[len(m.images)-1]
}

var _ Describer = (*Mock)(nil)

package gemini

import (
	"context"
	"sync"
)

// MockClient for testing. Outcomes are returned in order; the last one repeats.
type MockClient struct {
	Outcomes []Outcome

	mu    sync.Mutex
	Calls []MockCall
}

// MockCall records one Analyze invocation.
type MockCall struct {
	Image        []byte
	Model        string
	SystemPrompt string
	Options      AnalyzeOptions
}

func (m *MockClient) Analyze(ctx context.Context, image []byte, model, systemPrompt string, opts AnalyzeOptions) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Image: image, Model: model, SystemPrompt: systemPrompt, Options: opts})
	if len(m.Outcomes) == 0 {
		return Outcome{Success: true, ModelUsed: model, Attempts: 1}
	}
	idx := len(m.Calls) - 1
	if idx >= len(m.Outcomes) {
		idx = len(m.Outcomes) - 1
	}
	return m.Outcomes[idx]
}

// CallCount returns the number of Analyze calls so far.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

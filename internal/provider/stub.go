package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// StubProvider is an offline provider for demos and tests. It replies with
// scripted responses in order, then echoes the last line of the prompt.
type StubProvider struct {
	Responses []Response
	Latency   time.Duration

	mu sync.Mutex
}

func NewStubProvider() *StubProvider {
	return &StubProvider{Latency: 300 * time.Millisecond}
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(m.Latency):
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.Responses) == 0 {
		return &Response{Content: m.echo(messages)}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

func (m *StubProvider) echo(messages []Message) string {
	if len(messages) == 0 {
		return "*nods* I'm listening."
	}
	return fmt.Sprintf("*nods* You asked: %s", lastQuery(messages[len(messages)-1].Content))
}

// lastQuery pulls the user query out of a composed prompt, falling back to
// the whole text.
func lastQuery(prompt string) string {
	const marker = "USER QUERY: "
	i := strings.LastIndex(prompt, marker)
	if i < 0 {
		return prompt
	}
	rest := prompt[i+len(marker):]
	if j := strings.IndexByte(rest, '\n'); j >= 0 {
		return rest[:j]
	}
	return rest
}

func (m *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *StubProvider) Name() string {
	return "stub"
}

package observability

import (
	"context"
	"time"

	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/llms"
)

// instrumentedProvider decorates an llms.Provider with request metrics.
type instrumentedProvider struct {
	llms.Provider
	metrics *Metrics
}

// InstrumentProvider wraps a provider so every Chat call records its
// duration, token usage and errors.
func InstrumentProvider(p llms.Provider, m *Metrics) llms.Provider {
	if m == nil {
		return p
	}
	return &instrumentedProvider{Provider: p, metrics: m}
}

func (p *instrumentedProvider) Chat(ctx context.Context, messages []chat.Message) (*llms.Completion, error) {
	started := time.Now()
	completion, err := p.Provider.Chat(ctx, messages)

	tokens := 0
	if completion != nil {
		tokens = completion.Tokens
	}
	p.metrics.RecordLLMRequest(ctx, p.ModelName(), time.Since(started), tokens, err)
	return completion, err
}

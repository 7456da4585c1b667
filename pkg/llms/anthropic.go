package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/httpclient"
)

const (
	defaultAnthropicHost    = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	defaultAnthropicTimeout = 120 * time.Second
)

// AnthropicProvider speaks the Anthropic messages API.
type AnthropicProvider struct {
	model       string
	baseURL     string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *httpclient.Client
}

// AnthropicOption configures an AnthropicProvider.
type AnthropicOption func(*AnthropicProvider)

// WithAnthropicBaseURL points the provider at a custom endpoint.
func WithAnthropicBaseURL(baseURL string) AnthropicOption {
	return func(p *AnthropicProvider) { p.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithAnthropicTemperature sets the sampling temperature.
func WithAnthropicTemperature(t float64) AnthropicOption {
	return func(p *AnthropicProvider) { p.temperature = t }
}

// WithAnthropicMaxTokens caps the completion length.
func WithAnthropicMaxTokens(n int) AnthropicOption {
	return func(p *AnthropicProvider) { p.maxTokens = n }
}

// WithAnthropicTimeout sets the request timeout.
func WithAnthropicTimeout(d time.Duration) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.httpClient = httpclient.New(
			httpclient.WithTimeout(d),
			httpclient.WithHeaderParser(parseAnthropicRateLimit),
		)
	}
}

// WithAnthropicHTTPClient replaces the underlying retrying client.
// Callers supplying one own its rate-limit header parser.
func WithAnthropicHTTPClient(c *httpclient.Client) AnthropicOption {
	return func(p *AnthropicProvider) { p.httpClient = c }
}

// NewAnthropicProvider creates a provider for the given model.
func NewAnthropicProvider(apiKey, model string, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		model:       model,
		baseURL:     defaultAnthropicHost,
		apiKey:      apiKey,
		temperature: 1.0,
		maxTokens:   4096,
		httpClient: httpclient.New(
			httpclient.WithTimeout(defaultAnthropicTimeout),
			httpclient.WithHeaderParser(parseAnthropicRateLimit),
		),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// parseAnthropicRateLimit reads Anthropic's rate-limit reset headers in
// addition to the standard Retry-After.
func parseAnthropicRateLimit(h http.Header) httpclient.RateLimit {
	info := httpclient.ParseRetryAfter(h)
	if v := h.Get("anthropic-ratelimit-requests-reset"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			info.ResetAt = t
		}
	}
	if info.RetryAfter == 0 {
		if v := h.Get("retry-after-ms"); v != "" {
			if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
				info.RetryAfter = time.Duration(ms) * time.Millisecond
			}
		}
	}
	return info
}

func (p *AnthropicProvider) ModelName() string { return p.model }

func (p *AnthropicProvider) Close() error { return nil }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat sends the transcript to the messages API. System messages are
// hoisted into the request's system field; the API rejects them inline.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []chat.Message) (*Completion, error) {
	payload := anthropicRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	}

	var system []string
	for _, msg := range messages {
		if msg.Role == chat.RoleSystem {
			system = append(system, msg.Text)
			continue
		}
		payload.Messages = append(payload.Messages, anthropicMessage{
			Role:    string(msg.Role),
			Content: msg.Text,
		})
	}
	payload.System = strings.Join(system, "\n\n")

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Provider: "anthropic", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Provider: "anthropic", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	// Do returns the response alongside a StatusError on non-2xx, so
	// the body must be closed on the error path too.
	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, anthropicAPIError(resp, err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Provider: "anthropic", Err: err}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &APIError{Provider: "anthropic", Message: fmt.Sprintf("invalid response: %v", err)}
	}
	if parsed.Error != nil {
		return nil, &APIError{Provider: "anthropic", Message: parsed.Error.Message}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, &APIError{Provider: "anthropic", Err: ErrEmptyResponse}
	}

	return &Completion{
		Text:   text.String(),
		Tokens: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
	}, nil
}

// anthropicAPIError folds the API's error body, when one came back,
// into the returned error so callers see more than the bare HTTP
// status.
func anthropicAPIError(resp *http.Response, cause error) *APIError {
	apiErr := &APIError{Provider: "anthropic", Err: cause}
	if resp == nil {
		return apiErr
	}
	var parsed anthropicResponse
	if data, err := io.ReadAll(resp.Body); err == nil &&
		json.Unmarshal(data, &parsed) == nil && parsed.Error != nil {
		apiErr.Message = fmt.Sprintf("%v: %s", cause, parsed.Error.Message)
	}
	return apiErr
}

var _ Provider = (*AnthropicProvider)(nil)

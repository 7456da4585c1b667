package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/httpclient"
)

const defaultOpenAIHost = "https://api.openai.com"

// OpenAIProvider speaks the OpenAI chat-completions API. Any
// OpenAI-compatible endpoint (Azure AI Foundry, Ollama, vLLM) works by
// pointing BaseURL at it.
type OpenAIProvider struct {
	model       string
	baseURL     string
	apiKey      string
	temperature float64
	maxTokens   int
	httpClient  *httpclient.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIBaseURL points the provider at a compatible endpoint.
func WithOpenAIBaseURL(baseURL string) OpenAIOption {
	return func(p *OpenAIProvider) { p.baseURL = strings.TrimSuffix(baseURL, "/") }
}

// WithOpenAITemperature sets the sampling temperature.
func WithOpenAITemperature(t float64) OpenAIOption {
	return func(p *OpenAIProvider) { p.temperature = t }
}

// WithOpenAIMaxTokens caps the completion length.
func WithOpenAIMaxTokens(n int) OpenAIOption {
	return func(p *OpenAIProvider) { p.maxTokens = n }
}

// WithOpenAITimeout sets the request timeout.
func WithOpenAITimeout(d time.Duration) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.httpClient = httpclient.New(httpclient.WithTimeout(d))
	}
}

// WithOpenAIHTTPClient replaces the underlying retrying client.
func WithOpenAIHTTPClient(c *httpclient.Client) OpenAIOption {
	return func(p *OpenAIProvider) { p.httpClient = c }
}

// NewOpenAIProvider creates a provider for the given model.
func NewOpenAIProvider(apiKey, model string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		model:       model,
		baseURL:     defaultOpenAIHost,
		apiKey:      apiKey,
		temperature: 0.7,
		maxTokens:   4096,
		httpClient:  httpclient.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) ModelName() string { return p.model }

func (p *OpenAIProvider) Close() error { return nil }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []chat.Message) (*Completion, error) {
	payload := openAIRequest{
		Model:       p.model,
		Temperature: p.temperature,
		MaxTokens:   p.maxTokens,
	}
	for _, msg := range messages {
		payload.Messages = append(payload.Messages, openAIMessage{
			Role:    string(msg.Role),
			Content: msg.Text,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Provider: "openai", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &APIError{Provider: "openai", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	// Do returns the response alongside a StatusError on non-2xx, so
	// the body must be closed on the error path too.
	resp, err := p.httpClient.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, openAIAPIError(resp, err)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Provider: "openai", Err: err}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &APIError{Provider: "openai", Message: fmt.Sprintf("invalid response: %v", err)}
	}
	if parsed.Error != nil {
		return nil, &APIError{Provider: "openai", Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, &APIError{Provider: "openai", Err: ErrEmptyResponse}
	}

	return &Completion{
		Text:   parsed.Choices[0].Message.Content,
		Tokens: parsed.Usage.TotalTokens,
	}, nil
}

// openAIAPIError folds the API's error body, when one came back, into
// the returned error so callers see more than the bare HTTP status.
func openAIAPIError(resp *http.Response, cause error) *APIError {
	apiErr := &APIError{Provider: "openai", Err: cause}
	if resp == nil {
		return apiErr
	}
	var parsed openAIResponse
	if data, err := io.ReadAll(resp.Body); err == nil &&
		json.Unmarshal(data, &parsed) == nil && parsed.Error != nil {
		apiErr.Message = fmt.Sprintf("%v: %s", cause, parsed.Error.Message)
	}
	return apiErr
}

var _ Provider = (*OpenAIProvider)(nil)

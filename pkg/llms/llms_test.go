package llms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kadirpekel/gateflow/pkg/chat"
	"github.com/kadirpekel/gateflow/pkg/httpclient"
)

func TestOpenAIChat(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq openAIRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "hello there"}},
			},
			"usage": map[string]int{"total_tokens": 42},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("test-key", "gpt-4o-mini", WithOpenAIBaseURL(srv.URL))
	completion, err := p.Chat(context.Background(), []chat.Message{
		chat.System("be brief"),
		chat.User("hi"),
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("auth = %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if completion.Text != "hello there" {
		t.Errorf("Text = %q", completion.Text)
	}
	if completion.Tokens != 42 {
		t.Errorf("Tokens = %d", completion.Tokens)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid model", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("key", "nope", WithOpenAIBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), []chat.Message{chat.User("hi")})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Provider != "openai" {
		t.Errorf("Provider = %q", apiErr.Provider)
	}
}

func TestOpenAIChatEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	p := NewOpenAIProvider("key", "m", WithOpenAIBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), []chat.Message{chat.User("hi")})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

// bodyCloseRecorder flags when the response body is closed.
type bodyCloseRecorder struct {
	io.ReadCloser
	closed *bool
}

func (b *bodyCloseRecorder) Close() error {
	*b.closed = true
	return b.ReadCloser.Close()
}

type recordingTransport struct {
	closed *bool
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := http.DefaultTransport.RoundTrip(req)
	if resp != nil {
		resp.Body = &bodyCloseRecorder{ReadCloser: resp.Body, closed: t.closed}
	}
	return resp, err
}

func trackedClient(closed *bool) *httpclient.Client {
	return httpclient.New(httpclient.WithHTTPClient(&http.Client{
		Transport: &recordingTransport{closed: closed},
	}))
}

func TestOpenAIChatClosesBodyOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"model not found","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	var closed bool
	p := NewOpenAIProvider("key", "nope",
		WithOpenAIBaseURL(srv.URL), WithOpenAIHTTPClient(trackedClient(&closed)))

	_, err := p.Chat(context.Background(), []chat.Message{chat.User("hi")})
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Errorf("error %q does not carry the API message", err)
	}
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError in chain, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", statusErr.StatusCode)
	}
	if !closed {
		t.Error("response body not closed")
	}
}

func TestAnthropicChatClosesBodyOnHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"max_tokens required"}}`)
	}))
	defer srv.Close()

	var closed bool
	p := NewAnthropicProvider("key", "m",
		WithAnthropicBaseURL(srv.URL), WithAnthropicHTTPClient(trackedClient(&closed)))

	_, err := p.Chat(context.Background(), []chat.Message{chat.User("hi")})
	if err == nil {
		t.Fatal("expected error for 400")
	}
	if !strings.Contains(err.Error(), "max_tokens required") {
		t.Errorf("error %q does not carry the API message", err)
	}
	if !closed {
		t.Error("response body not closed")
	}
}

func TestAnthropicChatHoistsSystemMessages(t *testing.T) {
	var gotReq anthropicRequest
	var gotKey, gotVersion string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "reply"}},
			"usage":   map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("secret", "claude-sonnet-4-20250514", WithAnthropicBaseURL(srv.URL))
	completion, err := p.Chat(context.Background(), []chat.Message{
		chat.System("be brief"),
		chat.User("hi"),
		chat.Assistant("hello"),
		chat.User("continue"),
	})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if gotKey != "secret" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotVersion != anthropicVersion {
		t.Errorf("anthropic-version = %q", gotVersion)
	}
	if gotReq.System != "be brief" {
		t.Errorf("system = %q", gotReq.System)
	}
	if len(gotReq.Messages) != 3 {
		t.Errorf("expected 3 inline messages, got %d", len(gotReq.Messages))
	}
	if completion.Text != "reply" {
		t.Errorf("Text = %q", completion.Text)
	}
	if completion.Tokens != 15 {
		t.Errorf("Tokens = %d", completion.Tokens)
	}
}

func TestAnthropicChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"type": "overloaded_error", "message": "try later"},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider("k", "m", WithAnthropicBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), []chat.Message{chat.User("hi")})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Provider != "anthropic" {
		t.Errorf("Provider = %q", apiErr.Provider)
	}
}

func TestRegistryCreatesKnownProviders(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"openai", "anthropic"} {
		p, err := r.Create(ProviderConfig{Name: name, Model: "m", APIKey: "k"})
		if err != nil {
			t.Fatalf("Create(%q) error = %v", name, err)
		}
		if p.ModelName() != "m" {
			t.Errorf("ModelName() = %q", p.ModelName())
		}
	}
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(ProviderConfig{Name: "cohere", Model: "m"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestRegistryRequiresModel(t *testing.T) {
	r := NewRegistry()
	_, err := r.Create(ProviderConfig{Name: "openai"})
	if err == nil {
		t.Fatal("expected error for missing model")
	}
}

func TestRegistryNames(t *testing.T) {
	names := NewRegistry().Names()
	if len(names) != 2 || names[0] != "anthropic" || names[1] != "openai" {
		t.Errorf("Names() = %v", names)
	}
}

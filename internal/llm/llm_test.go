package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/unalkalkan/podcaster/internal/apperrors"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "Plain", input: `{"a":1}`, want: `{"a":1}`},
		{name: "Fenced", input: "```json\n{\"a\": [1, 2]}\n```", want: `{"a": [1, 2]}`},
		{name: "Prose", input: `Here you go: {"a":{"b":"c"}} hope this helps`, want: `{"a":{"b":"c"}}`},
		{name: "BracesInString", input: `{"text":"a } b { c"}`, want: `{"text":"a } b { c"}`},
		{name: "EscapedQuote", input: `{"text":"say \"}\" now"}`, want: `{"text":"say \"}\" now"}`},
		{name: "NoObject", input: "no json here", wantErr: true},
		{name: "Unterminated", input: `{"a":1`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractJSON failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   apperrors.Kind
	}{
		{429, apperrors.KindRateLimit},
		{401, apperrors.KindAuth},
		{403, apperrors.KindAuth},
		{408, apperrors.KindTransient},
		{503, apperrors.KindTransient},
		{400, apperrors.KindBadRequest},
	}

	for _, tt := range tests {
		err := classifyStatus(tt.status, http.ErrBodyNotAllowed)
		if kind, _ := apperrors.KindOf(err); kind != tt.kind {
			t.Errorf("classifyStatus(%d) kind = %s, want %s", tt.status, kind, tt.kind)
		}
	}
}

func newOpenAITestModel(t *testing.T, handler http.HandlerFunc) *OpenAIModel {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	m, err := NewOpenAIModel(OpenAIConfig{
		APIKey:  "test-key",
		BaseURL: server.URL + "/v1",
		Model:   "gpt-test",
	})
	if err != nil {
		t.Fatalf("Failed to create model: %v", err)
	}
	return m
}

func TestOpenAIModel_Complete(t *testing.T) {
	t.Run("ToolCall", func(t *testing.T) {
		m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/chat/completions" {
				t.Errorf("Unexpected path: %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test-key" {
				t.Errorf("Unexpected auth header: %s", r.Header.Get("Authorization"))
			}

			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode request: %v", err)
			}
			if body["model"] != "gpt-test" {
				t.Errorf("Expected model gpt-test, got %v", body["model"])
			}
			tools, _ := body["tools"].([]any)
			if len(tools) != 1 {
				t.Errorf("Expected 1 tool, got %d", len(tools))
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"choices": [{
					"index": 0,
					"finish_reason": "tool_calls",
					"message": {
						"role": "assistant",
						"tool_calls": [{
							"id": "call_1",
							"type": "function",
							"function": {"name": "analyze_document", "arguments": "{\"reasoning\":\"ok\"}"}
						}]
					}
				}],
				"usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
			}`))
		})

		resp, err := m.Complete(context.Background(), ChatRequest{
			Messages:   []Message{SystemMessage("sys"), UserMessage("hello")},
			Tools:      []Tool{{Name: "analyze_document", Description: "Analyze", Parameters: json.RawMessage(`{"type":"object"}`)}},
			ToolChoice: "analyze_document",
		})
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}

		call, ok := resp.FindToolCall("analyze_document")
		if !ok {
			t.Fatalf("Expected analyze_document tool call, got %+v", resp.ToolCalls)
		}
		if call.ID != "call_1" || call.Arguments != `{"reasoning":"ok"}` {
			t.Errorf("Unexpected tool call: %+v", call)
		}
		if resp.Usage.PromptTokens != 120 || resp.Usage.CompletionTokens != 30 || resp.Usage.TotalTokens != 150 {
			t.Errorf("Unexpected usage: %+v", resp.Usage)
		}
	})

	t.Run("ResponseSchema", func(t *testing.T) {
		m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			format, _ := body["response_format"].(map[string]any)
			if format["type"] != "json_schema" {
				t.Errorf("Expected json_schema response format, got %v", format["type"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
		})

		resp, err := m.Complete(context.Background(), ChatRequest{
			Messages:       []Message{UserMessage("hello")},
			ResponseSchema: &ResponseSchema{Name: "result", Schema: json.RawMessage(`{"type":"object"}`), Strict: true},
		})
		if err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
		if resp.Content != `{"ok":true}` {
			t.Errorf("Unexpected content: %q", resp.Content)
		}
	})

	t.Run("ZeroTemperature", func(t *testing.T) {
		m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			temp, ok := body["temperature"].(float64)
			if !ok || temp > 1e-6 {
				t.Errorf("Expected a near-zero temperature to be sent, got %v", body["temperature"])
			}

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
		})

		if _, err := m.Complete(context.Background(), ChatRequest{Messages: []Message{UserMessage("hello")}}); err != nil {
			t.Fatalf("Complete failed: %v", err)
		}
	})

	t.Run("RateLimited", func(t *testing.T) {
		m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_exceeded"}}`))
		})

		_, err := m.Complete(context.Background(), ChatRequest{Messages: []Message{UserMessage("hello")}})
		if !apperrors.Is(err, apperrors.KindRateLimit) {
			t.Errorf("Expected rate limit error, got %v", err)
		}
		if !apperrors.IsRetryable(err) {
			t.Error("Expected rate limit error to be retryable")
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
		})

		_, err := m.Complete(context.Background(), ChatRequest{Messages: []Message{UserMessage("hello")}})
		if !apperrors.Is(err, apperrors.KindAuth) {
			t.Errorf("Expected auth error, got %v", err)
		}
		if apperrors.IsRetryable(err) {
			t.Error("Auth errors must not be retryable")
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		m := newOpenAITestModel(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("Request must not reach the server")
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := m.Complete(ctx, ChatRequest{Messages: []Message{UserMessage("hello")}})
		if !apperrors.IsCanceled(err) {
			t.Errorf("Expected canceled error, got %v", err)
		}
	})
}

func TestNewOpenAIModel_Validation(t *testing.T) {
	if _, err := NewOpenAIModel(OpenAIConfig{Model: "gpt-4o"}); !apperrors.Is(err, apperrors.KindConfiguration) {
		t.Errorf("Expected configuration error for missing key, got %v", err)
	}
	if _, err := NewOpenAIModel(OpenAIConfig{APIKey: "k", Model: "gpt-4o", Azure: true}); !apperrors.Is(err, apperrors.KindConfiguration) {
		t.Errorf("Expected configuration error for missing endpoint, got %v", err)
	}
}

func TestToAnthropicMessages(t *testing.T) {
	req := ChatRequest{
		Messages: []Message{
			SystemMessage("You are a producer."),
			UserMessage("Document text"),
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Name: "plan_podcast", Arguments: `{"a":1}`}}},
			ToolResultMessage("c1", "Plan recorded."),
			UserMessage("Now write section 1."),
		},
		Tools:      []Tool{{Name: "generate_section", Description: "Write a section", Parameters: json.RawMessage(`{"type":"object"}`)}},
		ToolChoice: "generate_section",
	}

	system, msgs := toAnthropicMessages(req)
	if !strings.HasPrefix(system, "You are a producer.") {
		t.Errorf("Unexpected system prompt: %q", system)
	}
	if !strings.Contains(system, "generate_section") {
		t.Errorf("Expected tool instructions in system prompt, got %q", system)
	}
	// user, assistant, merged tool result + user
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 alternating messages, got %d", len(msgs))
	}
}

func TestNewAnthropicModel_Validation(t *testing.T) {
	if _, err := NewAnthropicModel(AnthropicConfig{Model: "claude"}); !apperrors.Is(err, apperrors.KindConfiguration) {
		t.Errorf("Expected configuration error, got %v", err)
	}
	m, err := NewAnthropicModel(AnthropicConfig{APIKey: "k", Model: "claude"})
	if err != nil {
		t.Fatalf("NewAnthropicModel failed: %v", err)
	}
	if m.Name() != "anthropic" {
		t.Errorf("Unexpected name: %s", m.Name())
	}
}

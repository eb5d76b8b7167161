package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/pkg/types"
	"golang.org/x/time/rate"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ChatModel is a chat-completion backend
type ChatModel interface {
	// Name returns the backend name used in logs
	Name() string

	// Complete sends one chat request
	Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Close releases the underlying client
	Close() error
}

// Message is one turn of a chat transcript
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a structured function invocation emitted by the model
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool declares a callable function
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ResponseSchema constrains plain content to a JSON schema
type ResponseSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
	Strict      bool            `json:"strict"`
}

// ChatRequest is a provider-neutral chat completion request
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	Tools       []Tool
	// ToolChoice forces the named tool when set
	ToolChoice     string
	ResponseSchema *ResponseSchema
}

// ChatResponse is a provider-neutral chat completion response
type ChatResponse struct {
	Content      string
	ToolCalls    []ToolCall
	Usage        types.UsageMetrics
	FinishReason string
}

// SystemMessage creates a system turn
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user turn
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolResultMessage answers a tool call
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: content}
}

// FindToolCall returns the first call to the named tool
func (r *ChatResponse) FindToolCall(name string) (*ToolCall, bool) {
	for i := range r.ToolCalls {
		if r.ToolCalls[i].Name == name {
			return &r.ToolCalls[i], true
		}
	}
	return nil, false
}

// newLimiter returns nil when qps is not positive
func newLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(qps), 1)
}

func waitLimiter(ctx context.Context, l *rate.Limiter) error {
	if l == nil {
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return apperrors.New(apperrors.KindCanceled, "", ctx.Err())
		}
		return apperrors.Transient(fmt.Errorf("rate limiter: %w", err))
	}
	return nil
}

// classifyStatus maps an HTTP status onto an error kind
func classifyStatus(status int, err error) error {
	return apperrors.FromStatus(status, err)
}

// ExtractJSON returns the outermost JSON object embedded in text, tolerating
// markdown code fences and surrounding prose.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := s[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return "", fmt.Errorf("embedded JSON object is invalid")
				}
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON object in response")
}

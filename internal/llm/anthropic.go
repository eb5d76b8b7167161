package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
	"golang.org/x/time/rate"
)

// AnthropicConfig configures the Anthropic chat backend
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Timeout      time.Duration
	RateLimitQPS float64
}

// AnthropicModel implements ChatModel with the Anthropic Messages API.
// Structured output and tool calls are requested through instructions and
// the JSON object in the reply is surfaced as content or as a tool call.
type AnthropicModel struct {
	model   string
	client  anthropic.Client
	limiter *rate.Limiter
	calls   int
}

// AnthropicOptions declares the backend options of the Anthropic provider
func AnthropicOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.SecretOption("api_key", "ANTHROPIC_API_KEY", "Anthropic API key").Require(),
		provider.StringOption("base_url", "", "Custom API base URL").FromEnv("ANTHROPIC_BASE_URL"),
		provider.StringOption("model", "claude-sonnet-4-5", "Model name"),
		provider.IntOption("timeout", 120, 1, 3600, "HTTP timeout in seconds"),
		provider.FloatOption("rate_limit_qps", 0, 0, 100, "Maximum requests per second, 0 disables throttling"),
	}
}

// NewAnthropicModelFromOptions builds a backend from resolved provider options
func NewAnthropicModelFromOptions(opts provider.Options) (*AnthropicModel, error) {
	return NewAnthropicModel(AnthropicConfig{
		APIKey:       opts.String("api_key"),
		BaseURL:      opts.String("base_url"),
		Model:        opts.String("model"),
		Timeout:      time.Duration(opts.Int("timeout")) * time.Second,
		RateLimitQPS: opts.Float("rate_limit_qps"),
	})
}

// NewAnthropicModel creates a new Anthropic chat model
func NewAnthropicModel(cfg AnthropicConfig) (*AnthropicModel, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.Configuration("api_key is required for Anthropic")
	}
	if cfg.Model == "" {
		return nil, apperrors.Configuration("model is required for Anthropic")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
		// Retries are handled by the script generator
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicModel{
		model:   cfg.Model,
		client:  anthropic.NewClient(opts...),
		limiter: newLimiter(cfg.RateLimitQPS),
	}, nil
}

func (m *AnthropicModel) Name() string {
	return "anthropic"
}

// Complete sends a Messages API request
func (m *AnthropicModel) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := waitLimiter(ctx, m.limiter); err != nil {
		return nil, err
	}

	system, msgs := toAnthropicMessages(req)
	if len(msgs) == 0 {
		return nil, apperrors.BadRequest(fmt.Errorf("anthropic request has no messages"))
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 8000
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	// The Messages API caps temperature at 1
	params.Temperature = anthropic.Float(min(max(req.Temperature, 0), 1))

	start := time.Now()
	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		slog.Warn("chat request failed", "backend", "anthropic", "duration", time.Since(start), "error", err)
		return nil, classifyAnthropicError(ctx, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := &ChatResponse{
		FinishReason: string(resp.StopReason),
		Usage: types.UsageMetrics{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}

	switch {
	case req.ToolChoice != "":
		args, err := ExtractJSON(text.String())
		if err != nil {
			return nil, apperrors.Validation(fmt.Errorf("tool %s: %w", req.ToolChoice, err))
		}
		m.calls++
		out.ToolCalls = []ToolCall{{
			ID:        fmt.Sprintf("call_%d", m.calls),
			Name:      req.ToolChoice,
			Arguments: args,
		}}
	case req.ResponseSchema != nil:
		content, err := ExtractJSON(text.String())
		if err != nil {
			return nil, apperrors.Validation(err)
		}
		out.Content = content
	default:
		out.Content = text.String()
	}

	slog.Debug("chat response", "backend", "anthropic", "duration", time.Since(start),
		"prompt_tokens", out.Usage.PromptTokens, "completion_tokens", out.Usage.CompletionTokens)

	return out, nil
}

func (m *AnthropicModel) Close() error {
	return nil
}

// toAnthropicMessages flattens the transcript into alternating text turns
func toAnthropicMessages(req ChatRequest) (string, []anthropic.MessageParam) {
	var system []string
	type turn struct {
		role string
		text []string
	}
	var turns []turn

	push := func(role, text string) {
		if text == "" {
			return
		}
		if n := len(turns); n > 0 && turns[n-1].role == role {
			turns[n-1].text = append(turns[n-1].text, text)
			return
		}
		turns = append(turns, turn{role: role, text: []string{text}})
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleUser:
			push(RoleUser, msg.Content)
		case RoleAssistant:
			parts := []string{}
			if msg.Content != "" {
				parts = append(parts, msg.Content)
			}
			for _, call := range msg.ToolCalls {
				parts = append(parts, fmt.Sprintf("Called %s with:\n%s", call.Name, call.Arguments))
			}
			push(RoleAssistant, strings.Join(parts, "\n"))
		case RoleTool:
			push(RoleUser, "Tool result: "+msg.Content)
		}
	}

	if instructions := structuredInstructions(req); instructions != "" {
		system = append(system, instructions)
	}

	// The Messages API requires the first turn to come from the user
	if len(turns) > 0 && turns[0].role != RoleUser {
		turns = append([]turn{{role: RoleUser, text: []string{"Continue."}}}, turns...)
	}

	msgs := make([]anthropic.MessageParam, 0, len(turns))
	for _, t := range turns {
		block := anthropic.NewTextBlock(strings.Join(t.text, "\n\n"))
		if t.role == RoleAssistant {
			msgs = append(msgs, anthropic.NewAssistantMessage(block))
		} else {
			msgs = append(msgs, anthropic.NewUserMessage(block))
		}
	}

	return strings.Join(system, "\n\n"), msgs
}

func structuredInstructions(req ChatRequest) string {
	if req.ToolChoice != "" {
		for _, tool := range req.Tools {
			if tool.Name != req.ToolChoice {
				continue
			}
			return fmt.Sprintf("Respond by calling the function `%s` (%s). Output only one JSON object holding the function arguments, conforming to this JSON schema:\n%s",
				tool.Name, tool.Description, string(tool.Parameters))
		}
	}
	if req.ResponseSchema != nil {
		return fmt.Sprintf("Output only one JSON object conforming to this JSON schema (%s):\n%s",
			req.ResponseSchema.Name, string(req.ResponseSchema.Schema))
	}
	return ""
}

func classifyAnthropicError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.New(apperrors.KindCanceled, "", ctx.Err())
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, fmt.Errorf("anthropic API error (status %d): %w", apiErr.StatusCode, err))
	}
	return apperrors.Transient(fmt.Errorf("anthropic request failed: %w", err))
}

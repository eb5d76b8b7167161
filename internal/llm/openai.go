package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
	"golang.org/x/time/rate"
)

// Default Azure OpenAI REST API version
const AzureAPIVersion = "2024-10-21"

// OpenAIConfig configures an OpenAI-compatible chat backend
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Azure        bool
	APIVersion   string
	Timeout      time.Duration
	RateLimitQPS float64
}

// OpenAIModel implements ChatModel with go-openai, for both OpenAI and Azure OpenAI
type OpenAIModel struct {
	name       string
	model      string
	client     *openai.Client
	httpClient *http.Client
	limiter    *rate.Limiter
}

// AzureOpenAIOptions declares the backend options of the Azure OpenAI provider
func AzureOpenAIOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.StringOption("endpoint", "", "Azure OpenAI endpoint URL").FromEnv("AZURE_OPENAI_ENDPOINT").Require(),
		provider.SecretOption("api_key", "AZURE_OPENAI_KEY", "Azure OpenAI API key").Require(),
		provider.StringOption("model", "gpt-4o", "Model deployment name").FromEnv("AZURE_OPENAI_MODEL_DEPLOYMENT"),
		provider.StringOption("api_version", AzureAPIVersion, "REST API version"),
		provider.IntOption("timeout", 120, 1, 3600, "HTTP timeout in seconds"),
		provider.FloatOption("rate_limit_qps", 0, 0, 100, "Maximum requests per second, 0 disables throttling"),
	}
}

// OpenAIOptions declares the backend options of the OpenAI provider
func OpenAIOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.SecretOption("api_key", "OPENAI_API_KEY", "OpenAI API key").Require(),
		provider.StringOption("base_url", "https://api.openai.com/v1", "OpenAI-compatible base URL").FromEnv("OPENAI_BASE_URL"),
		provider.StringOption("model", "gpt-4o", "Model name"),
		provider.IntOption("timeout", 120, 1, 3600, "HTTP timeout in seconds"),
		provider.FloatOption("rate_limit_qps", 0, 0, 100, "Maximum requests per second, 0 disables throttling"),
	}
}

// NewOpenAIModelFromOptions builds a backend from resolved provider options
func NewOpenAIModelFromOptions(opts provider.Options, azure bool) (*OpenAIModel, error) {
	cfg := OpenAIConfig{
		APIKey:       opts.String("api_key"),
		Model:        opts.String("model"),
		Azure:        azure,
		APIVersion:   opts.String("api_version"),
		Timeout:      time.Duration(opts.Int("timeout")) * time.Second,
		RateLimitQPS: opts.Float("rate_limit_qps"),
	}
	if azure {
		cfg.BaseURL = opts.String("endpoint")
	} else {
		cfg.BaseURL = opts.String("base_url")
	}
	return NewOpenAIModel(cfg)
}

// NewOpenAIModel creates a new go-openai backed chat model
func NewOpenAIModel(cfg OpenAIConfig) (*OpenAIModel, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.Configuration("api_key is required for OpenAI chat models")
	}
	if cfg.Model == "" {
		return nil, apperrors.Configuration("model is required for OpenAI chat models")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	var config openai.ClientConfig
	name := "openai"
	if cfg.Azure {
		if cfg.BaseURL == "" {
			return nil, apperrors.Configuration("endpoint is required for Azure OpenAI")
		}
		config = openai.DefaultAzureConfig(cfg.APIKey, strings.TrimSuffix(cfg.BaseURL, "/"))
		if cfg.APIVersion != "" {
			config.APIVersion = cfg.APIVersion
		} else {
			config.APIVersion = AzureAPIVersion
		}
		// Deployment names are used verbatim
		config.AzureModelMapperFunc = func(model string) string { return model }
		name = "azure-openai"
	} else {
		config = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
		}
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	config.HTTPClient = httpClient

	return &OpenAIModel{
		name:       name,
		model:      cfg.Model,
		client:     openai.NewClientWithConfig(config),
		httpClient: httpClient,
		limiter:    newLimiter(cfg.RateLimitQPS),
	}, nil
}

func (m *OpenAIModel) Name() string {
	return m.name
}

// Complete sends a chat completion request
func (m *OpenAIModel) Complete(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := waitLimiter(ctx, m.limiter); err != nil {
		return nil, err
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if apiReq.Temperature == 0 {
		// go-openai omits a zero temperature, which the API reads as 1
		apiReq.Temperature = math.SmallestNonzeroFloat32
	}

	if req.ResponseSchema != nil {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:        req.ResponseSchema.Name,
				Description: req.ResponseSchema.Description,
				Schema:      req.ResponseSchema.Schema,
				Strict:      req.ResponseSchema.Strict,
			},
		}
	}

	for _, tool := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}
	if req.ToolChoice != "" {
		apiReq.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.ToolChoice},
		}
	}

	slog.Debug("chat request", "backend", m.name, "model", m.model, "messages", len(req.Messages), "tools", len(req.Tools), "tool_choice", req.ToolChoice)

	start := time.Now()
	resp, err := m.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		slog.Warn("chat request failed", "backend", m.name, "duration", time.Since(start), "error", err)
		return nil, m.classifyError(ctx, err)
	}

	if len(resp.Choices) == 0 {
		return nil, apperrors.Validation(fmt.Errorf("no choices in response"))
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: types.UsageMetrics{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}

	slog.Debug("chat response", "backend", m.name, "duration", time.Since(start),
		"prompt_tokens", out.Usage.PromptTokens, "completion_tokens", out.Usage.CompletionTokens,
		"tool_calls", len(out.ToolCalls), "finish_reason", out.FinishReason)

	return out, nil
}

func (m *OpenAIModel) Close() error {
	m.httpClient.CloseIdleConnections()
	return nil
}

func (m *OpenAIModel) classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.New(apperrors.KindCanceled, "", ctx.Err())
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, fmt.Errorf("%s API error (status %d): %s", m.name, apiErr.HTTPStatusCode, apiErr.Message))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, fmt.Errorf("%s request failed (status %d): %w", m.name, reqErr.HTTPStatusCode, reqErr.Err))
	}

	// Network failures and timeouts
	return apperrors.Transient(fmt.Errorf("%s request failed: %w", m.name, err))
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		m := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, m)
	}
	return out
}

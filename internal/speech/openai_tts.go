package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// OpenAIProviderKey is the registry key of the OpenAI speech provider
const OpenAIProviderKey = "openai-tts"

// OpenAIProvider synthesizes each turn through an OpenAI-compatible
// /audio/speech endpoint and joins the WAV responses
type OpenAIProvider struct {
	endpoint     string
	apiKey       string
	model        string
	instructions string
	voices       map[types.Speaker]string
	plan         chunkPlan
	httpClient   *http.Client
}

// OpenAIOptions declares the configuration of OpenAIProvider
func OpenAIOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.SecretOption("api_key", "OPENAI_API_KEY", "OpenAI API key").Require(),
		provider.StringOption("base_url", "https://api.openai.com/v1", "OpenAI-compatible API base URL").FromEnv("OPENAI_BASE_URL"),
		provider.StringOption("model", "gpt-4o-mini-tts", "Speech model"),
		provider.StringOption("speaker_1_voice", "onyx", "Voice of the first host"),
		provider.StringOption("speaker_2_voice", "nova", "Voice of the second host"),
		provider.StringOption("instructions", "", "Delivery instructions passed with every request"),
		provider.IntOption("timeout", 300, 1, 3600, "HTTP timeout in seconds"),
		provider.IntOption("concurrency", 4, 1, DefaultMaxConcurrency, "Turns synthesized in parallel"),
		provider.FloatOption(provider.OptCostPer1MChars, provider.OpenAISpeechPer1MCharacters, 0, 1000, "USD per 1M characters"),
	}
}

// NewOpenAIProvider creates a new OpenAI-compatible speech provider
func NewOpenAIProvider(opts provider.Options) (*OpenAIProvider, error) {
	apiKey := opts.String("api_key")
	if apiKey == "" {
		return nil, apperrors.Configuration("api_key is required for OpenAI speech")
	}

	model := opts.String("model")
	if model == "" {
		return nil, apperrors.Configuration("model is required for OpenAI speech")
	}

	endpoint := opts.String("base_url")
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}

	timeout := time.Duration(opts.Int("timeout")) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	return &OpenAIProvider{
		endpoint:     endpoint + "audio/speech",
		apiKey:       apiKey,
		model:        model,
		instructions: opts.String("instructions"),
		voices:       voiceMap(opts.String("speaker_1_voice"), opts.String("speaker_2_voice")),
		plan: chunkPlan{
			provider:    OpenAIProviderKey,
			unit:        "voice",
			limit:       1,
			concurrency: opts.Int("concurrency"),
			per1M:       opts.Float(provider.OptCostPer1MChars),
		},
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (o *OpenAIProvider) Name() string {
	return "OpenAI Speech"
}

func (o *OpenAIProvider) Description() string {
	return "Synthesize each turn with an OpenAI-compatible speech endpoint and join the audio."
}

func (o *OpenAIProvider) Options() []provider.OptionSpec {
	return OpenAIOptions()
}

// ScriptToMarkup renders the script as SSML, one voice element per turn.
// The markup only carries voice and text; prosody is not sent to the API.
func (o *OpenAIProvider) ScriptToMarkup(script *types.PodcastScript) (*provider.Markup, error) {
	doc, err := BuildSSML(script, o.voices)
	if err != nil {
		return nil, apperrors.SpeechSynthesis(err)
	}
	return newMarkup(doc, script, o.plan.per1M), nil
}

// Synthesize issues one request per voice element and joins the audio in turn order
func (o *OpenAIProvider) Synthesize(ctx context.Context, markup string) (*provider.SpeechResult, error) {
	return o.plan.synthesize(ctx, markup, o.synthesizeChunk)
}

func (o *OpenAIProvider) synthesizeChunk(ctx context.Context, chunk string) ([]byte, error) {
	segments, err := Segments(chunk, "voice")
	if err != nil {
		return nil, err
	}
	if len(segments) != 1 {
		return nil, fmt.Errorf("expected one voice element, got %d", len(segments))
	}
	seg := segments[0]
	return o.callTTSAPI(ctx, ttsAPIRequest{
		Model:          o.model,
		Input:          seg.Text,
		Voice:          seg.Attrs["name"],
		Instructions:   o.instructions,
		ResponseFormat: "wav",
	})
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// ttsAPIRequest represents the OpenAI TTS API request structure
type ttsAPIRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	Instructions   string `json:"instructions,omitempty"`
	ResponseFormat string `json:"response_format"`
}

// ttsAPIErrorResponse represents an error response from the TTS API
type ttsAPIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// callTTSAPI calls the OpenAI-compatible TTS endpoint
func (o *OpenAIProvider) callTTSAPI(ctx context.Context, req ttsAPIRequest) ([]byte, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	slog.Debug("speech request", "provider", OpenAIProviderKey, "model", req.Model, "voice", req.Voice, "input_chars", len(req.Input))

	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.New(apperrors.KindCanceled, "", ctx.Err())
		}
		return nil, apperrors.Transient(fmt.Errorf("failed to execute request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("failed to read response: %w", err))
	}

	slog.Debug("speech response", "provider", OpenAIProviderKey, "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		var errResp ttsAPIErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, apperrors.FromStatus(resp.StatusCode, fmt.Errorf("API error (status %d): %s", resp.StatusCode, errResp.Error.Message))
		}
		return nil, apperrors.FromStatus(resp.StatusCode, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, truncate(string(body), 500)))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}

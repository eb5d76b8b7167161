package speech

import (
	"context"
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

// AzureProviderKey is the registry key of the Azure Speech provider
const AzureProviderKey = "azure-speech"

// Output formats the WAV joiner can handle
var wavOutputFormats = []string{
	"riff-48khz-16bit-mono-pcm",
	"riff-24khz-16bit-mono-pcm",
	"riff-16khz-16bit-mono-pcm",
}

// azureClient calls the Azure Speech REST synthesis endpoint
type azureClient struct {
	endpoint     string
	apiKey       string
	outputFormat string
	httpClient   *http.Client
}

func azureClientOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.SecretOption("api_key", "AZURE_SPEECH_KEY", "Azure Speech resource key").Require(),
		provider.StringOption("region", "", "Azure region of the Speech resource").FromEnv("AZURE_SPEECH_REGION"),
		provider.StringOption("endpoint", "", "Synthesis endpoint URL, derived from the region when empty"),
		provider.StringOption("output_format", wavOutputFormats[0], "Audio output format").OneOf(wavOutputFormats...),
		provider.IntOption("max_voice_elements", DefaultMaxVoiceElements, 1, DefaultMaxVoiceElements, "Elements per synthesis request"),
		provider.IntOption("concurrency", 1, 1, DefaultMaxConcurrency, "Synthesis requests in flight"),
		provider.IntOption("timeout", 300, 1, 3600, "HTTP timeout in seconds"),
		provider.FloatOption(provider.OptCostPer1MChars, provider.SpeechHDPer1MCharacters, 0, 1000, "USD per 1M characters"),
	}
}

func newAzureClient(opts provider.Options) (*azureClient, error) {
	apiKey := opts.String("api_key")
	if apiKey == "" {
		return nil, apperrors.Configuration("api_key is required for Azure Speech")
	}

	endpoint := opts.String("endpoint")
	if endpoint == "" {
		region := opts.String("region")
		if region == "" {
			return nil, apperrors.Configuration("region or endpoint is required for Azure Speech")
		}
		endpoint = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region)
	}

	outputFormat := opts.String("output_format")
	if outputFormat == "" {
		outputFormat = wavOutputFormats[0]
	}

	timeout := time.Duration(opts.Int("timeout")) * time.Second
	if timeout <= 0 {
		timeout = 300 * time.Second
	}

	return &azureClient{
		endpoint:     endpoint,
		apiKey:       apiKey,
		outputFormat: outputFormat,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// synthesize posts one SSML document and returns the audio
func (c *azureClient) synthesize(ctx context.Context, ssml string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.outputFormat)
	req.Header.Set("User-Agent", "podcaster")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
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

	slog.Debug("azure speech response", "status", resp.StatusCode, "bytes", len(body), "duration", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		reason := strings.TrimSpace(string(body))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return nil, apperrors.FromStatus(resp.StatusCode, fmt.Errorf("synthesis canceled (status %d): %s", resp.StatusCode, reason))
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}
	return body, nil
}

func (c *azureClient) close() {
	c.httpClient.CloseIdleConnections()
}

// AzureProvider synthesizes SSML with one Azure voice per host
type AzureProvider struct {
	client *azureClient
	voices map[types.Speaker]string
	plan   chunkPlan
}

// AzureOptions declares the configuration of AzureProvider
func AzureOptions() []provider.OptionSpec {
	return append([]provider.OptionSpec{
		provider.StringOption("speaker_1_voice", "en-US-Andrew", "Voice of the first host, HD aliases are expanded"),
		provider.StringOption("speaker_2_voice", "en-US-Ava", "Voice of the second host, HD aliases are expanded"),
	}, azureClientOptions()...)
}

// NewAzureProvider creates a new Azure Speech provider
func NewAzureProvider(opts provider.Options) (*AzureProvider, error) {
	client, err := newAzureClient(opts)
	if err != nil {
		return nil, err
	}
	return &AzureProvider{
		client: client,
		voices: voiceMap(ResolveVoice(opts.String("speaker_1_voice")), ResolveVoice(opts.String("speaker_2_voice"))),
		plan: chunkPlan{
			provider:    AzureProviderKey,
			unit:        "voice",
			limit:       limitOrDefault(opts.Int("max_voice_elements")),
			concurrency: opts.Int("concurrency"),
			per1M:       opts.Float(provider.OptCostPer1MChars),
		},
	}, nil
}

func (a *AzureProvider) Name() string {
	return "Azure Speech"
}

func (a *AzureProvider) Description() string {
	return "Synthesize the dialogue with Azure Speech HD voices, one voice per host."
}

func (a *AzureProvider) Options() []provider.OptionSpec {
	return AzureOptions()
}

// ScriptToMarkup renders the script as SSML with one voice element per turn
func (a *AzureProvider) ScriptToMarkup(script *types.PodcastScript) (*provider.Markup, error) {
	doc, err := BuildSSML(script, a.voices)
	if err != nil {
		return nil, apperrors.SpeechSynthesis(err)
	}
	return newMarkup(doc, script, a.plan.per1M), nil
}

// Synthesize converts SSML to a single WAV buffer, chunking at the voice element limit
func (a *AzureProvider) Synthesize(ctx context.Context, markup string) (*provider.SpeechResult, error) {
	return a.plan.synthesize(ctx, markup, a.client.synthesize)
}

func (a *AzureProvider) Close() error {
	a.client.close()
	return nil
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return DefaultMaxVoiceElements
	}
	return n
}

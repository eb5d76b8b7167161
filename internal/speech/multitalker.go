package speech

import (
	"context"
	"strings"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// MultitalkerProviderKey is the registry key of the Azure multitalker provider
const MultitalkerProviderKey = "azure-speech-multitalker"

// DefaultMultitalkerVoice speaks both hosts in one dialog
const DefaultMultitalkerVoice = "en-US-MultiTalker-Ava-Andrew:DragonHDLatestNeural"

// MultitalkerProvider synthesizes the whole dialogue with a single
// multitalker voice, marking each turn with the host it belongs to
type MultitalkerProvider struct {
	client   *azureClient
	voice    string
	speakers map[types.Speaker]string
	plan     chunkPlan
}

// MultitalkerOptions declares the configuration of MultitalkerProvider
func MultitalkerOptions() []provider.OptionSpec {
	return append([]provider.OptionSpec{
		provider.StringOption("voice", DefaultMultitalkerVoice, "Multitalker voice name"),
		provider.StringOption("speaker_1_voice", "andrew", "Multitalker speaker of the first host"),
		provider.StringOption("speaker_2_voice", "ava", "Multitalker speaker of the second host"),
	}, azureClientOptions()...)
}

// NewMultitalkerProvider creates a new Azure multitalker provider
func NewMultitalkerProvider(opts provider.Options) (*MultitalkerProvider, error) {
	client, err := newAzureClient(opts)
	if err != nil {
		return nil, err
	}
	voice := opts.String("voice")
	if voice == "" {
		voice = DefaultMultitalkerVoice
	}
	return &MultitalkerProvider{
		client: client,
		voice:  voice,
		speakers: voiceMap(
			strings.ToLower(opts.String("speaker_1_voice")),
			strings.ToLower(opts.String("speaker_2_voice")),
		),
		plan: chunkPlan{
			provider:    MultitalkerProviderKey,
			unit:        "turn",
			limit:       limitOrDefault(opts.Int("max_voice_elements")),
			concurrency: opts.Int("concurrency"),
			per1M:       opts.Float(provider.OptCostPer1MChars),
		},
	}, nil
}

func (m *MultitalkerProvider) Name() string {
	return "Azure Speech Multitalker"
}

func (m *MultitalkerProvider) Description() string {
	return "Synthesize the dialogue as one natural conversation with an Azure multitalker HD voice."
}

func (m *MultitalkerProvider) Options() []provider.OptionSpec {
	return MultitalkerOptions()
}

// ScriptToMarkup wraps every turn in an mstts:turn element inside one dialog
func (m *MultitalkerProvider) ScriptToMarkup(script *types.PodcastScript) (*provider.Markup, error) {
	var sb strings.Builder
	sb.WriteString(speakOpen(language(script)))
	sb.WriteString("<voice name='")
	sb.WriteString(Escape(m.voice))
	sb.WriteString("'><mstts:dialog>")
	for _, turn := range script.Turns {
		speaker, ok := m.speakers[turn.Speaker]
		if !ok || speaker == "" {
			return nil, apperrors.SpeechSynthesis(errNoSpeaker(turn.Speaker))
		}
		sb.WriteString("<mstts:turn speaker='")
		sb.WriteString(Escape(speaker))
		sb.WriteString("'>")
		sb.WriteString(Escape(turn.Message))
		sb.WriteString("</mstts:turn>")
	}
	sb.WriteString("</mstts:dialog></voice></speak>")
	return newMarkup(sb.String(), script, m.plan.per1M), nil
}

// Synthesize converts the dialog to a single WAV buffer, chunking by turns
func (m *MultitalkerProvider) Synthesize(ctx context.Context, markup string) (*provider.SpeechResult, error) {
	return m.plan.synthesize(ctx, markup, m.client.synthesize)
}

func (m *MultitalkerProvider) Close() error {
	m.client.close()
	return nil
}

type errNoSpeaker types.Speaker

func (e errNoSpeaker) Error() string {
	return "no multitalker speaker configured for " + string(e)
}

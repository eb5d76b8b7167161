package speech

import (
	"context"
	"fmt"
	"strings"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// BasicProviderKey is the registry key of the markup-only provider
const BasicProviderKey = "basic"

// BasicProvider produces generic SSML 1.1 with prosody hints. It has no
// synthesis backend, so Synthesize always fails.
type BasicProvider struct {
	voices map[types.Speaker]string
	rate   string
	pitch  string
	per1M  float64
}

// BasicOptions declares the configuration of BasicProvider
func BasicOptions() []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.StringOption("speaker_1_voice", "en-US-Male-1", "Voice of the first host"),
		provider.StringOption("speaker_2_voice", "en-US-Female-1", "Voice of the second host"),
		provider.StringOption("rate", "medium", "Prosody rate").OneOf("x-slow", "slow", "medium", "fast", "x-fast"),
		provider.StringOption("pitch", "medium", "Prosody pitch").OneOf("x-low", "low", "medium", "high", "x-high"),
		provider.FloatOption(provider.OptCostPer1MChars, 0, 0, 1000, "USD per 1M characters"),
	}
}

// NewBasicProvider creates a new markup-only speech provider
func NewBasicProvider(opts provider.Options) (*BasicProvider, error) {
	return &BasicProvider{
		voices: voiceMap(opts.String("speaker_1_voice"), opts.String("speaker_2_voice")),
		rate:   firstNonEmpty(opts.String("rate"), "medium"),
		pitch:  firstNonEmpty(opts.String("pitch"), "medium"),
		per1M:  opts.Float(provider.OptCostPer1MChars),
	}, nil
}

func (b *BasicProvider) Name() string {
	return "Basic SSML"
}

func (b *BasicProvider) Description() string {
	return "Render standard SSML 1.1 for external synthesis engines. Audio synthesis is not available."
}

func (b *BasicProvider) Options() []provider.OptionSpec {
	return BasicOptions()
}

// ScriptToMarkup renders one voice element with a prosody wrapper per turn
func (b *BasicProvider) ScriptToMarkup(script *types.PodcastScript) (*provider.Markup, error) {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?>`)
	fmt.Fprintf(&sb, `<speak version="1.1" xmlns="%s" xml:lang="%s">`, ssmlNamespace, Escape(language(script)))
	for i, turn := range script.Turns {
		voice, ok := b.voices[turn.Speaker]
		if !ok || voice == "" {
			return nil, apperrors.SpeechSynthesis(fmt.Errorf("no voice configured for turn %d speaker %q", i, turn.Speaker))
		}
		fmt.Fprintf(&sb, `<voice name="%s"><prosody rate="%s" pitch="%s">%s</prosody></voice>`,
			Escape(voice), Escape(b.rate), Escape(b.pitch), Escape(turn.Message))
	}
	sb.WriteString("</speak>")
	return newMarkup(sb.String(), script, b.per1M), nil
}

func (b *BasicProvider) Synthesize(ctx context.Context, markup string) (*provider.SpeechResult, error) {
	return nil, apperrors.SpeechSynthesis(fmt.Errorf("the %s provider only renders markup and cannot synthesize audio", BasicProviderKey))
}

func (b *BasicProvider) Close() error {
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package provider

import (
	"context"
	"strings"

	"github.com/unalkalkan/podcaster/pkg/types"
)

// Kind names one of the three pipeline capabilities
type Kind string

const (
	KindDocument Kind = "document"
	KindLLM      Kind = "llm"
	KindSpeech   Kind = "speech"
)

// Kinds returns the capabilities in pipeline order
func Kinds() []Kind {
	return []Kind{KindDocument, KindLLM, KindSpeech}
}

// Describer is implemented by every provider
type Describer interface {
	// Name returns the display name
	Name() string

	// Description returns a human-readable summary
	Description() string

	// Options returns the declared configuration knobs
	Options() []OptionSpec
}

// DocumentProvider converts uploaded files into normalized text
type DocumentProvider interface {
	Describer

	// SupportedFileTypes lists the lowercase extensions accepted by Convert
	SupportedFileTypes() []string

	// Convert extracts text from the file. Identical input yields an identical result.
	Convert(ctx context.Context, data []byte, mediaType string) (*types.DocumentResult, error)

	// Close releases the backend client
	Close() error
}

// LLMProvider turns document text into a two-host podcast script
type LLMProvider interface {
	Describer

	// GenerateScript produces the dialogue plus usage, cost and generation steps.
	// A failed generation may still return a result carrying the steps so far.
	GenerateScript(ctx context.Context, req ScriptRequest) (*ScriptResult, error)

	// Close releases the backend client
	Close() error
}

// ScriptRequest is the input of a script generation
type ScriptRequest struct {
	DocumentText string
	Title        string
	Speaker1Name string
	Speaker2Name string
	Options      GenerationOptions
}

// GenerationOptions tune a single script generation.
// Zero values fall back to the provider's configured defaults; a nil
// Temperature does too, so that 0 stays expressible.
type GenerationOptions struct {
	TargetMinutes float64  `json:"target_minutes,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Style         string   `json:"style,omitempty"`
	Tone          string   `json:"tone,omitempty"`
	Depth         string   `json:"depth,omitempty"`
	Strategy      string   `json:"strategy,omitempty"`
	Language      string   `json:"language,omitempty"`
}

// Overrides returns the fields set on g as LLM options, named like the
// script generator's option schema
func (g GenerationOptions) Overrides() Options {
	opts := Options{}
	if g.TargetMinutes != 0 {
		opts["duration"] = g.TargetMinutes
	}
	if g.Temperature != nil {
		opts["temperature"] = *g.Temperature
	}
	if g.MaxTokens != 0 {
		opts["max_tokens"] = g.MaxTokens
	}
	for name, v := range map[string]string{
		"style":    g.Style,
		"tone":     g.Tone,
		"depth":    g.Depth,
		"strategy": g.Strategy,
		"language": g.Language,
	} {
		if v = strings.TrimSpace(v); v != "" {
			opts[name] = v
		}
	}
	return opts
}

// ScriptResult is the output of a script generation
type ScriptResult struct {
	Script *types.PodcastScript
	Usage  types.UsageMetrics
	Cost   float64
	Steps  []types.GenerationStep
}

// SpeechProvider renders a script to markup and synthesizes it
type SpeechProvider interface {
	Describer

	// ScriptToMarkup builds the synthesis markup and its estimated cost
	ScriptToMarkup(script *types.PodcastScript) (*Markup, error)

	// Synthesize converts markup into a single audio buffer
	Synthesize(ctx context.Context, markup string) (*SpeechResult, error)

	// Close releases the backend client
	Close() error
}

// Markup is a synthesis document plus its cost estimate
type Markup struct {
	Document      string
	Characters    int
	EstimatedCost float64
}

// SpeechResult holds synthesized audio
type SpeechResult struct {
	Audio      []byte
	Format     string
	Characters int
	Cost       float64
	Chunks     int
}

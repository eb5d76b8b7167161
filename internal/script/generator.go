package script

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/llm"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// Generation strategies
const (
	StrategyAuto      = "auto"
	StrategySingle    = "single"
	StrategySegmented = "segmented"
	StrategyReAct     = "react"
)

// DefaultTitle is used when the caller supplies no podcast title
const DefaultTitle = "AI in Action"

// Config holds the resolved generator settings
type Config struct {
	Speaker1       string
	Speaker2       string
	TargetMinutes  float64
	Temperature    float64
	MaxTokens      int
	Strategy       string
	Style          string
	Tone           string
	Depth          string
	Language       string
	MaxRetries     int
	RetryBaseDelay time.Duration
	InputRate      float64
	OutputRate     float64
}

// GeneratorOptions declares the script generation knobs shared by every chat backend
func GeneratorOptions(inputRate, outputRate float64) []provider.OptionSpec {
	return []provider.OptionSpec{
		provider.StringOption("speaker_1", "Andrew", "Name of the first host"),
		provider.StringOption("speaker_2", "Ava", "Name of the second host"),
		provider.FloatOption("duration", 5, 1, 60, "Target podcast length in minutes"),
		provider.FloatOption("temperature", 0.7, 0, 2, "Sampling temperature"),
		provider.IntOption("max_tokens", 8000, 1000, 128000, "Maximum tokens generated per request"),
		provider.StringOption("strategy", StrategyAuto, "Generation strategy").OneOf(StrategyAuto, StrategySingle, StrategySegmented, StrategyReAct),
		provider.StringOption("style", "conversational", "Narrative style"),
		provider.StringOption("tone", "friendly", "Tone of the hosts"),
		provider.StringOption("depth", "balanced", "Content depth").OneOf("overview", "balanced", "deep-dive"),
		provider.StringOption("language", "", "BCP-47 language of the script, detected from the document when empty"),
		provider.IntOption("max_retries", 3, 0, 10, "Retries per model call"),
		provider.IntOption("retry_base_delay_ms", 1000, 0, 60000, "Base delay of the exponential backoff"),
		provider.FloatOption(provider.OptInputCostPer1M, inputRate, 0, 1000, "USD per 1M prompt tokens"),
		provider.FloatOption(provider.OptOutputCostPer1M, outputRate, 0, 1000, "USD per 1M completion tokens"),
	}
}

// ConfigFromOptions reads a Config from resolved options
func ConfigFromOptions(opts provider.Options) Config {
	return Config{
		Speaker1:       opts.String("speaker_1"),
		Speaker2:       opts.String("speaker_2"),
		TargetMinutes:  opts.Float("duration"),
		Temperature:    opts.Float("temperature"),
		MaxTokens:      opts.Int("max_tokens"),
		Strategy:       opts.String("strategy"),
		Style:          opts.String("style"),
		Tone:           opts.String("tone"),
		Depth:          opts.String("depth"),
		Language:       opts.String("language"),
		MaxRetries:     opts.Int("max_retries"),
		RetryBaseDelay: time.Duration(opts.Int("retry_base_delay_ms")) * time.Millisecond,
		InputRate:      opts.Float(provider.OptInputCostPer1M),
		OutputRate:     opts.Float(provider.OptOutputCostPer1M),
	}
}

// Generator implements provider.LLMProvider on top of a chat model
type Generator struct {
	name        string
	description string
	specs       []provider.OptionSpec
	model       llm.ChatModel
	cfg         Config

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// NewGenerator creates a script generator. specs is the full option schema
// reported by Options, backend options included.
func NewGenerator(name, description string, specs []provider.OptionSpec, model llm.ChatModel, cfg Config) *Generator {
	if len(specs) == 0 {
		specs = GeneratorOptions(cfg.InputRate, cfg.OutputRate)
	}
	if cfg.Speaker1 == "" {
		cfg.Speaker1 = "Andrew"
	}
	if cfg.Speaker2 == "" {
		cfg.Speaker2 = "Ava"
	}
	if cfg.TargetMinutes <= 0 {
		cfg.TargetMinutes = 5
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8000
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyAuto
	}
	return &Generator{
		name:        name,
		description: description,
		specs:       specs,
		model:       model,
		cfg:         cfg,
		sleep:       sleepContext,
		jitter:      func() float64 { return 0.8 + 0.4*rand.Float64() },
	}
}

func (g *Generator) Name() string {
	return g.name
}

func (g *Generator) Description() string {
	return g.description
}

func (g *Generator) Options() []provider.OptionSpec {
	return g.specs
}

func (g *Generator) Close() error {
	return g.model.Close()
}

// params are the effective settings of one generation
type params struct {
	title         string
	speaker1      string
	speaker2      string
	targetMinutes float64
	temperature   float64
	maxTokens     int
	strategy      string
	style         string
	tone          string
	depth         string
	language      string
}

// params merges the request options over the configured defaults. Request
// options are checked against the same schema as the configured ones.
func (g *Generator) params(req provider.ScriptRequest) (params, error) {
	set, err := provider.CheckOptions(g.specs, req.Options.Overrides())
	if err != nil {
		return params{}, err
	}

	p := params{
		title:         strings.TrimSpace(req.Title),
		speaker1:      firstNonEmpty(req.Speaker1Name, g.cfg.Speaker1),
		speaker2:      firstNonEmpty(req.Speaker2Name, g.cfg.Speaker2),
		targetMinutes: g.cfg.TargetMinutes,
		temperature:   g.cfg.Temperature,
		maxTokens:     g.cfg.MaxTokens,
		strategy:      firstNonEmpty(set.String("strategy"), g.cfg.Strategy),
		style:         firstNonEmpty(set.String("style"), g.cfg.Style),
		tone:          firstNonEmpty(set.String("tone"), g.cfg.Tone),
		depth:         firstNonEmpty(set.String("depth"), g.cfg.Depth),
		language:      firstNonEmpty(set.String("language"), g.cfg.Language),
	}
	if p.title == "" {
		p.title = DefaultTitle
	}
	if _, ok := set["duration"]; ok {
		p.targetMinutes = set.Float("duration")
	}
	if _, ok := set["temperature"]; ok {
		p.temperature = set.Float("temperature")
	}
	if _, ok := set["max_tokens"]; ok {
		p.maxTokens = set.Int("max_tokens")
	}
	if p.strategy == StrategyAuto {
		if p.targetMinutes <= 5 {
			p.strategy = StrategySingle
		} else {
			p.strategy = StrategySegmented
		}
	}
	return p, nil
}

// session accumulates usage and steps of one generation
type session struct {
	g     *Generator
	p     params
	usage types.UsageMetrics
	steps []types.GenerationStep
}

// GenerateScript turns document text into a two-host dialogue
func (g *Generator) GenerateScript(ctx context.Context, req provider.ScriptRequest) (*provider.ScriptResult, error) {
	if strings.TrimSpace(req.DocumentText) == "" {
		return nil, apperrors.New(apperrors.KindScriptGeneration, "document text is empty", nil)
	}

	p, err := g.params(req)
	if err != nil {
		slog.Error("invalid generation options", "provider", g.name, "error", err)
		return nil, err
	}
	s := &session{g: g, p: p}
	start := time.Now()

	slog.Info("generating podcast script", "provider", g.name, "strategy", s.p.strategy,
		"target_minutes", s.p.targetMinutes, "document_chars", len(req.DocumentText))

	var script *types.PodcastScript
	switch s.p.strategy {
	case StrategySingle:
		script, err = s.singleShot(ctx, req.DocumentText)
	case StrategySegmented:
		script, err = s.segmented(ctx, req.DocumentText)
	case StrategyReAct:
		script, err = s.react(ctx, req.DocumentText)
	default:
		return nil, apperrors.Configuration(fmt.Sprintf("unknown script strategy %q", s.p.strategy))
	}
	if err != nil {
		slog.Error("script generation failed", "provider", g.name, "strategy", s.p.strategy,
			"steps", len(s.steps), "error", err)
		partial := &provider.ScriptResult{
			Usage: s.usage,
			Cost:  provider.TokenCost(s.usage, g.cfg.InputRate, g.cfg.OutputRate),
			Steps: s.steps,
		}
		if apperrors.IsCanceled(err) {
			return partial, err
		}
		return partial, apperrors.ScriptGeneration(err)
	}

	cost := provider.TokenCost(s.usage, g.cfg.InputRate, g.cfg.OutputRate)

	slog.Info("podcast script generated", "provider", g.name, "strategy", s.p.strategy,
		"turns", len(script.Turns), "steps", len(s.steps), "prompt_tokens", s.usage.PromptTokens,
		"completion_tokens", s.usage.CompletionTokens, "cost", cost, "duration", time.Since(start))

	return &provider.ScriptResult{
		Script: script,
		Usage:  s.usage,
		Cost:   cost,
		Steps:  s.steps,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

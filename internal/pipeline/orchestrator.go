package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/profile"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/internal/storage"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// Stage names one step of a pipeline run
type Stage string

const (
	StageConfigure Stage = "configure"
	StageDocument  Stage = "document"
	StageScript    Stage = "script"
	StageMarkup    Stage = "markup"
	StageSynthesis Stage = "synthesis"
	StagePublish   Stage = "publish"
)

// Error reports the stage a run failed in. A failed script stage keeps
// the generation steps recorded before the failure.
type Error struct {
	Stage Stage
	Err   error
	Steps []types.GenerationStep
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage of a pipeline error
func StageOf(err error) (Stage, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Stage, true
	}
	return "", false
}

// ProgressCallback is called when a run enters a stage
type ProgressCallback func(runID string, stage Stage)

// ProviderFactory builds the providers of a profile
type ProviderFactory interface {
	CreateProviders(name string, run profile.RunOptions) (*profile.Providers, error)
}

// Config holds orchestrator settings
type Config struct {
	DefaultProfile   string
	RunTimeout       time.Duration
	PublishArtifacts bool
}

// Orchestrator runs document conversion, script generation and speech
// synthesis in sequence
type Orchestrator struct {
	config  Config
	factory ProviderFactory
	storage storage.Adapter
	now     func() time.Time
}

// NewOrchestrator creates a new pipeline orchestrator. storageAdapter may be
// nil, in which case nothing is published.
func NewOrchestrator(config Config, factory ProviderFactory, storageAdapter storage.Adapter) *Orchestrator {
	if config.DefaultProfile == "" {
		config.DefaultProfile = profile.DefaultProfile
	}
	return &Orchestrator{
		config:  config,
		factory: factory,
		storage: storageAdapter,
		now:     time.Now,
	}
}

// Request is the input of a pipeline run
type Request struct {
	File      []byte
	MediaType string
	Title     string
	Profile   string

	Speaker1Name string
	Speaker2Name string
	Generation   provider.GenerationOptions

	// Per-kind option layers applied on top of the profile
	Defaults  map[provider.Kind]provider.Options
	Overrides map[provider.Kind]provider.Options

	// ScriptOnly stops after the markup stage
	ScriptOnly bool

	Progress ProgressCallback
}

// Timings records the wall time of every stage
type Timings struct {
	Document  time.Duration `json:"document"`
	Script    time.Duration `json:"script"`
	Markup    time.Duration `json:"markup"`
	Synthesis time.Duration `json:"synthesis"`
	Total     time.Duration `json:"total"`
}

// Result is the output of a pipeline run
type Result struct {
	RunID       string                 `json:"run_id"`
	Profile     string                 `json:"profile"`
	Title       string                 `json:"title"`
	Audio       []byte                 `json:"-"`
	AudioFormat string                 `json:"audio_format,omitempty"`
	Markup      *provider.Markup       `json:"-"`
	Document    *types.DocumentResult  `json:"-"`
	Script      *types.PodcastScript   `json:"script"`
	Steps       []types.GenerationStep `json:"steps,omitempty"`
	Usage       types.UsageMetrics     `json:"usage"`
	Cost        types.CostBreakdown    `json:"cost"`
	Timings     Timings                `json:"timings"`
	Artifacts   []string               `json:"artifacts,omitempty"`
}

// Run executes the pipeline for one document. A failing stage aborts the
// run with an *Error; no partial audio is returned.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if o.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.RunTimeout)
		defer cancel()
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = o.config.DefaultProfile
	}

	result := &Result{
		RunID:   uuid.NewString(),
		Profile: profileName,
		Title:   req.Title,
	}
	logger := slog.With("run_id", result.RunID, "profile", profileName)
	progress := func(stage Stage) {
		logger.Debug("pipeline stage started", "stage", stage)
		if req.Progress != nil {
			req.Progress(result.RunID, stage)
		}
	}
	start := time.Now()

	progress(StageConfigure)
	providers, err := o.factory.CreateProviders(profileName, profile.RunOptions{
		Defaults:  req.Defaults,
		Overrides: withGeneration(req.Overrides, req.Generation),
	})
	if err != nil {
		return nil, o.fail(logger, StageConfigure, err)
	}
	defer func() {
		if err := providers.Close(); err != nil {
			logger.Warn("failed to close providers", "error", err)
		}
	}()

	logger.Info("pipeline started", "bytes", len(req.File), "media_type", req.MediaType)

	progress(StageDocument)
	stageStart := time.Now()
	doc, err := providers.Document.Convert(ctx, req.File, req.MediaType)
	if err != nil {
		return nil, o.fail(logger, StageDocument, err)
	}
	result.Document = doc
	result.Cost.Document = doc.Cost
	result.Timings.Document = time.Since(stageStart)

	progress(StageScript)
	stageStart = time.Now()
	generated, err := providers.LLM.GenerateScript(ctx, provider.ScriptRequest{
		DocumentText: doc.Text,
		Title:        req.Title,
		Speaker1Name: req.Speaker1Name,
		Speaker2Name: req.Speaker2Name,
		Options:      req.Generation,
	})
	if err != nil {
		failure := o.fail(logger, StageScript, err)
		if generated != nil {
			failure.Steps = generated.Steps
		}
		return nil, failure
	}
	if err := generated.Script.Validate(); err != nil {
		return nil, o.fail(logger, StageScript, apperrors.ScriptGeneration(err))
	}
	result.Script = generated.Script
	result.Steps = generated.Steps
	result.Usage = generated.Usage
	result.Cost.Script = generated.Cost
	result.Timings.Script = time.Since(stageStart)

	progress(StageMarkup)
	stageStart = time.Now()
	markup, err := providers.Speech.ScriptToMarkup(generated.Script)
	if err != nil {
		return nil, o.fail(logger, StageMarkup, err)
	}
	result.Markup = markup
	result.Timings.Markup = time.Since(stageStart)

	if !req.ScriptOnly {
		progress(StageSynthesis)
		stageStart = time.Now()
		speech, err := providers.Speech.Synthesize(ctx, markup.Document)
		if err != nil {
			return nil, o.fail(logger, StageSynthesis, err)
		}
		result.Audio = speech.Audio
		result.AudioFormat = speech.Format
		result.Cost.Speech = speech.Cost
		result.Timings.Synthesis = time.Since(stageStart)
	}

	result.Timings.Total = time.Since(start)

	if o.storage != nil && o.config.PublishArtifacts {
		progress(StagePublish)
		artifacts, err := o.publish(ctx, result)
		if err != nil {
			// Publishing is best effort
			logger.Warn("failed to publish artifacts", "error", err)
		}
		result.Artifacts = artifacts
	}

	logger.Info("pipeline completed",
		"pages", doc.PageCount,
		"turns", len(result.Script.Turns),
		"audio_bytes", len(result.Audio),
		"total_tokens", result.Usage.TotalTokens,
		"cost", result.Cost.Total(),
		"duration", result.Timings.Total,
	)

	return result, nil
}

// withGeneration folds the per-run generation settings into the LLM
// override layer so they are resolved against the provider's option schema.
// Explicit LLM overrides win over the generation settings.
func withGeneration(overrides map[provider.Kind]provider.Options, gen provider.GenerationOptions) map[provider.Kind]provider.Options {
	fields := gen.Overrides()
	if len(fields) == 0 {
		return overrides
	}
	merged := make(map[provider.Kind]provider.Options, len(overrides)+1)
	for kind, opts := range overrides {
		merged[kind] = opts
	}
	merged[provider.KindLLM] = provider.MergeOptions(fields, overrides[provider.KindLLM])
	return merged
}

func (o *Orchestrator) fail(logger *slog.Logger, stage Stage, err error) *Error {
	if apperrors.IsCanceled(err) {
		logger.Warn("pipeline canceled", "stage", stage, "error", err)
	} else {
		logger.Error("pipeline failed", "stage", stage, "error", err)
	}
	return &Error{Stage: stage, Err: err}
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/unalkalkan/podcaster/internal/app"
	"github.com/unalkalkan/podcaster/internal/pipeline"
	"github.com/unalkalkan/podcaster/internal/provider"
)

type generateOptions struct {
	title       string
	profile     string
	strategy    string
	duration    float64
	temperature float64
	maxTokens   int
	speaker1    string
	speaker2    string
	style       string
	tone        string
	depth       string
	language    string
	out         string
	scriptOut   string
	scriptOnly  bool
	noPublish   bool
	sets        []string
}

func newGenerateCmd(global *globalOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <document>",
		Short: "Generate a podcast episode from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], global, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.title, "title", "", "Episode title (defaults to the file name)")
	f.StringVarP(&opts.profile, "profile", "p", "", "Provider profile (defaults to pipeline.default_profile)")
	f.StringVar(&opts.strategy, "strategy", "", "Script strategy: auto, single, segmented or react")
	f.Float64Var(&opts.duration, "duration", 0, "Target episode length in minutes")
	f.Float64Var(&opts.temperature, "temperature", 0, "Sampling temperature for the script model")
	f.IntVar(&opts.maxTokens, "max-tokens", 0, "Completion token limit for the script model")
	f.StringVar(&opts.speaker1, "speaker-1", "", "Display name of the first host")
	f.StringVar(&opts.speaker2, "speaker-2", "", "Display name of the second host")
	f.StringVar(&opts.style, "style", "", "Conversation style, e.g. casual or interview")
	f.StringVar(&opts.tone, "tone", "", "Conversation tone")
	f.StringVar(&opts.depth, "depth", "", "Level of technical depth")
	f.StringVar(&opts.language, "language", "", "Script language tag, e.g. en-US")
	f.StringVarP(&opts.out, "out", "o", "", "Audio output path (defaults to <document>.<format>)")
	f.StringVar(&opts.scriptOut, "script-out", "", "Write the script JSON to this path")
	f.BoolVar(&opts.scriptOnly, "script-only", false, "Stop after script generation")
	f.BoolVar(&opts.noPublish, "no-publish", false, "Do not write artifacts to the configured storage")
	f.StringArrayVar(&opts.sets, "set", nil, "Provider option override as kind.name=value (repeatable)")
	return cmd
}

func runGenerate(cmd *cobra.Command, path string, global *globalOptions, opts *generateOptions) error {
	overrides, err := parseSets(opts.sets)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	cfg, err := loadConfig(cmd, global)
	if err != nil {
		return err
	}
	if opts.noPublish {
		cfg.Pipeline.PublishArtifacts = false
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	title := opts.title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	generation := provider.GenerationOptions{
		TargetMinutes: opts.duration,
		MaxTokens:     opts.maxTokens,
		Style:         opts.style,
		Tone:          opts.tone,
		Depth:         opts.depth,
		Strategy:      opts.strategy,
		Language:      opts.language,
	}
	if cmd.Flags().Changed("temperature") {
		generation.Temperature = &opts.temperature
	}

	stderr := cmd.ErrOrStderr()
	result, err := a.Orchestrator.Run(ctx, pipeline.Request{
		File:         data,
		MediaType:    filepath.Base(path),
		Title:        title,
		Profile:      opts.profile,
		Speaker1Name: opts.speaker1,
		Speaker2Name: opts.speaker2,
		Generation:   generation,
		Overrides:    overrides,
		ScriptOnly:   opts.scriptOnly,
		Progress: func(runID string, stage pipeline.Stage) {
			fmt.Fprintf(stderr, "==> %s\n", stage)
		},
	})
	if err != nil {
		return err
	}

	if opts.scriptOut != "" {
		script, err := json.MarshalIndent(result.Script, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal script: %w", err)
		}
		if err := os.WriteFile(opts.scriptOut, script, 0644); err != nil {
			return fmt.Errorf("failed to write script: %w", err)
		}
	}

	audioPath := ""
	if len(result.Audio) > 0 {
		audioPath = opts.out
		if audioPath == "" {
			audioPath = strings.TrimSuffix(path, filepath.Ext(path)) + "." + result.AudioFormat
		}
		if err := os.WriteFile(audioPath, result.Audio, 0644); err != nil {
			return fmt.Errorf("failed to write audio: %w", err)
		}
	}

	printSummary(cmd, result, audioPath)
	return nil
}

func printSummary(cmd *cobra.Command, result *pipeline.Result, audioPath string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s (profile %s)\n", result.RunID, result.Profile)
	fmt.Fprintf(out, "Turns:    %d\n", len(result.Script.Turns))
	if audioPath != "" {
		fmt.Fprintf(out, "Audio:    %s (%d bytes)\n", audioPath, len(result.Audio))
	}
	fmt.Fprintf(out, "Tokens:   %d prompt, %d completion\n", result.Usage.PromptTokens, result.Usage.CompletionTokens)
	fmt.Fprintf(out, "Cost:     $%.4f (document $%.4f, script $%.4f, speech $%.4f)\n",
		result.Cost.Total(), result.Cost.Document, result.Cost.Script, result.Cost.Speech)
	fmt.Fprintf(out, "Duration: %s\n", result.Timings.Total.Round(time.Millisecond))
	for _, a := range result.Artifacts {
		fmt.Fprintf(out, "Stored:   %s\n", a)
	}
}

// parseSets turns kind.name=value flags into per-kind option overrides
func parseSets(sets []string) (map[provider.Kind]provider.Options, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[provider.Kind]provider.Options)
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: expected kind.name=value", s)
		}
		kindName, name, ok := strings.Cut(key, ".")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected kind.name=value", s)
		}
		kind := provider.Kind(kindName)
		if !validKind(kind) {
			return nil, fmt.Errorf("invalid --set %q: unknown kind %s", s, kindName)
		}
		if out[kind] == nil {
			out[kind] = provider.Options{}
		}
		out[kind][name] = value
	}
	return out, nil
}

func validKind(kind provider.Kind) bool {
	for _, k := range provider.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

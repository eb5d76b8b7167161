package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/profile"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/internal/script"
	"github.com/unalkalkan/podcaster/internal/storage"
	"github.com/unalkalkan/podcaster/internal/util"
	"github.com/unalkalkan/podcaster/pkg/types"
)

type stubBase struct{ closed bool }

func (s *stubBase) Name() string                   { return "stub" }
func (s *stubBase) Description() string            { return "" }
func (s *stubBase) Options() []provider.OptionSpec { return nil }
func (s *stubBase) Close() error {
	s.closed = true
	return nil
}

type stubDocument struct {
	stubBase
	err error
}

func (s *stubDocument) SupportedFileTypes() []string { return []string{"txt"} }
func (s *stubDocument) Convert(ctx context.Context, data []byte, mediaType string) (*types.DocumentResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &types.DocumentResult{Text: string(data), PageCount: 3, Cost: 0.03}, nil
}

type stubLLM struct {
	stubBase
	calls int
	req   provider.ScriptRequest
	err   error
}

func (s *stubLLM) GenerateScript(ctx context.Context, req provider.ScriptRequest) (*provider.ScriptResult, error) {
	s.calls++
	s.req = req
	if s.err != nil {
		return &provider.ScriptResult{
			Steps: []types.GenerationStep{{Name: "analyze", Status: types.StepSuccess, Attempts: 1}},
		}, s.err
	}
	return &provider.ScriptResult{
		Script: &types.PodcastScript{
			Language: "en-US",
			Turns: []types.DialogueTurn{
				{Speaker: types.Speaker1, DisplayName: "Andrew", Message: "Welcome to the show."},
				{Speaker: types.Speaker2, DisplayName: "Ava", Message: "Glad to be here."},
			},
		},
		Usage: types.UsageMetrics{PromptTokens: 1000, CompletionTokens: 500, TotalTokens: 1500},
		Cost:  0.00825,
		Steps: []types.GenerationStep{{Name: "analyze", Status: types.StepSuccess, Attempts: 1}},
	}, nil
}

type stubSpeech struct {
	stubBase
	err         error
	synthesized bool
}

func (s *stubSpeech) ScriptToMarkup(script *types.PodcastScript) (*provider.Markup, error) {
	chars := script.Characters()
	return &provider.Markup{Document: "<speak/>", Characters: chars, EstimatedCost: float64(chars) * 30 / 1e6}, nil
}

func (s *stubSpeech) Synthesize(ctx context.Context, markup string) (*provider.SpeechResult, error) {
	s.synthesized = true
	if s.err != nil {
		return nil, s.err
	}
	return &provider.SpeechResult{Audio: []byte("RIFFdata"), Format: "wav", Characters: 36, Cost: 36 * 30 / 1e6, Chunks: 1}, nil
}

type stubFactory struct {
	doc     *stubDocument
	llm     *stubLLM
	speech  *stubSpeech
	err     error
	profile string
	run     profile.RunOptions
}

func newStubFactory() *stubFactory {
	return &stubFactory{doc: &stubDocument{}, llm: &stubLLM{}, speech: &stubSpeech{}}
}

func (f *stubFactory) CreateProviders(name string, run profile.RunOptions) (*profile.Providers, error) {
	f.profile = name
	f.run = run
	if f.err != nil {
		return nil, f.err
	}
	return &profile.Providers{Profile: name, Document: f.doc, LLM: f.llm, Speech: f.speech}, nil
}

func TestOrchestrator_Run(t *testing.T) {
	factory := newStubFactory()
	o := NewOrchestrator(Config{}, factory, nil)

	var stages []Stage
	result, err := o.Run(context.Background(), Request{
		File:         []byte("Quantum computing explained."),
		MediaType:    "text/plain",
		Title:        "Quantum",
		Speaker1Name: "Sam",
		Generation:   provider.GenerationOptions{TargetMinutes: 3},
		Overrides:    map[provider.Kind]provider.Options{provider.KindLLM: {"temperature": 0.2}},
		Progress:     func(runID string, stage Stage) { stages = append(stages, stage) },
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if factory.profile != profile.DefaultProfile {
		t.Errorf("expected default profile, got %q", factory.profile)
	}
	if factory.run.Overrides[provider.KindLLM]["temperature"] != 0.2 {
		t.Errorf("run overrides were not passed to the factory")
	}
	if factory.llm.req.DocumentText != "Quantum computing explained." || factory.llm.req.Title != "Quantum" {
		t.Errorf("unexpected script request: %+v", factory.llm.req)
	}
	if factory.llm.req.Speaker1Name != "Sam" || factory.llm.req.Options.TargetMinutes != 3 {
		t.Errorf("generation options were not passed: %+v", factory.llm.req)
	}

	want := []Stage{StageConfigure, StageDocument, StageScript, StageMarkup, StageSynthesis}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("expected stages %v, got %v", want, stages)
			break
		}
	}

	if result.RunID == "" {
		t.Error("expected a run id")
	}
	if string(result.Audio) != "RIFFdata" || result.AudioFormat != "wav" {
		t.Errorf("unexpected audio: %q (%s)", result.Audio, result.AudioFormat)
	}
	if len(result.Steps) != 1 || result.Usage.TotalTokens != 1500 {
		t.Errorf("script metadata not propagated: %+v %+v", result.Steps, result.Usage)
	}

	wantCost := 0.03 + 0.00825 + 36*30/1e6
	if math.Abs(result.Cost.Total()-wantCost) > 1e-12 {
		t.Errorf("expected total cost %v, got %v", wantCost, result.Cost.Total())
	}
	if result.Cost.Total() != result.Cost.Document+result.Cost.Script+result.Cost.Speech {
		t.Error("total is not the sum of the stage costs")
	}

	if !factory.doc.closed || !factory.llm.closed || !factory.speech.closed {
		t.Error("expected providers to be closed after the run")
	}
}

func TestOrchestrator_StageFailures(t *testing.T) {
	t.Run("Configure", func(t *testing.T) {
		factory := newStubFactory()
		factory.err = apperrors.Configuration("unknown profile: nope")

		_, err := NewOrchestrator(Config{}, factory, nil).Run(context.Background(), Request{Profile: "nope"})
		if stage, _ := StageOf(err); stage != StageConfigure {
			t.Errorf("expected configure stage, got %v", err)
		}
		if !apperrors.Is(err, apperrors.KindConfiguration) {
			t.Errorf("expected configuration kind, got %v", err)
		}
	})

	t.Run("DocumentAborts", func(t *testing.T) {
		factory := newStubFactory()
		factory.doc.err = apperrors.UnsupportedFormat("unsupported file type: exe")

		result, err := NewOrchestrator(Config{}, factory, nil).Run(context.Background(), Request{File: []byte("MZ")})
		if result != nil {
			t.Error("expected no result")
		}
		var perr *Error
		if !errors.As(err, &perr) || perr.Stage != StageDocument {
			t.Fatalf("expected document stage error, got %v", err)
		}
		if !apperrors.Is(err, apperrors.KindUnsupportedFormat) {
			t.Errorf("expected unsupported format kind, got %v", err)
		}
		if factory.llm.calls != 0 || factory.speech.synthesized {
			t.Error("later stages must not run after a document failure")
		}
		if !factory.doc.closed {
			t.Error("expected providers to be closed")
		}
	})

	t.Run("ScriptKeepsSteps", func(t *testing.T) {
		factory := newStubFactory()
		factory.llm.err = apperrors.New(apperrors.KindCanceled, "", context.Canceled)

		result, err := NewOrchestrator(Config{}, factory, nil).Run(context.Background(), Request{File: []byte("text")})
		if result != nil {
			t.Error("expected no result")
		}
		var perr *Error
		if !errors.As(err, &perr) || perr.Stage != StageScript {
			t.Fatalf("expected script stage error, got %v", err)
		}
		if !apperrors.IsCanceled(err) {
			t.Errorf("expected canceled kind, got %v", err)
		}
		if len(perr.Steps) != 1 || perr.Steps[0].Name != "analyze" {
			t.Errorf("expected the recorded steps on the error, got %+v", perr.Steps)
		}
		if factory.speech.synthesized {
			t.Error("synthesis must not run after a script failure")
		}
	})

	t.Run("SynthesisAborts", func(t *testing.T) {
		factory := newStubFactory()
		factory.speech.err = apperrors.SpeechSynthesis(errors.New("voice not available"))

		result, err := NewOrchestrator(Config{}, factory, nil).Run(context.Background(), Request{File: []byte("text")})
		if result != nil {
			t.Error("expected no partial result")
		}
		if stage, _ := StageOf(err); stage != StageSynthesis {
			t.Errorf("expected synthesis stage, got %v", err)
		}
		if !apperrors.Is(err, apperrors.KindSpeechSynthesis) {
			t.Errorf("expected speech synthesis kind, got %v", err)
		}
	})
}

func TestOrchestrator_GenerationOverrides(t *testing.T) {
	factory := newStubFactory()
	zero := 0.0
	llmOverrides := provider.Options{"style": "interview"}

	_, err := NewOrchestrator(Config{}, factory, nil).Run(context.Background(), Request{
		File:       []byte("text"),
		Generation: provider.GenerationOptions{TargetMinutes: 12, Temperature: &zero, Style: "casual"},
		Overrides:  map[provider.Kind]provider.Options{provider.KindLLM: llmOverrides},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := factory.run.Overrides[provider.KindLLM]
	if got["duration"] != 12.0 || got["temperature"] != 0.0 {
		t.Errorf("expected generation settings in the llm layer, got %+v", got)
	}
	if got["style"] != "interview" {
		t.Errorf("expected explicit overrides to win, got %v", got["style"])
	}
	if _, ok := llmOverrides["duration"]; ok {
		t.Error("caller overrides must not be modified")
	}
}

// newSchemaRegistry binds the stub providers to a profile whose LLM entry
// declares the script generator schema
func newSchemaRegistry(t *testing.T, factory *stubFactory, resolved *provider.Options) *profile.Registry {
	t.Helper()
	r := profile.NewRegistry()
	errs := []error{
		r.RegisterDocument(profile.Entry[provider.DocumentProvider]{Key: "doc",
			New: func(provider.Options) (provider.DocumentProvider, error) { return factory.doc, nil }}),
		r.RegisterLLM(profile.Entry[provider.LLMProvider]{Key: "llm", Options: script.GeneratorOptions(1, 1),
			New: func(opts provider.Options) (provider.LLMProvider, error) {
				*resolved = opts
				return factory.llm, nil
			}}),
		r.RegisterSpeech(profile.Entry[provider.SpeechProvider]{Key: "speech",
			New: func(provider.Options) (provider.SpeechProvider, error) { return factory.speech, nil }}),
		r.SetProfile(profile.Profile{
			Name:     "test",
			Document: profile.Binding{Provider: "doc"},
			LLM:      profile.Binding{Provider: "llm"},
			Speech:   profile.Binding{Provider: "speech"},
		}),
	}
	for _, err := range errs {
		if err != nil {
			t.Fatalf("failed to build registry: %v", err)
		}
	}
	return r
}

func TestOrchestrator_GenerationSchema(t *testing.T) {
	t.Run("ZeroTemperature", func(t *testing.T) {
		factory := newStubFactory()
		var resolved provider.Options
		o := NewOrchestrator(Config{DefaultProfile: "test"}, newSchemaRegistry(t, factory, &resolved), nil)

		zero := 0.0
		if _, err := o.Run(context.Background(), Request{
			File:       []byte("text"),
			Generation: provider.GenerationOptions{Temperature: &zero},
		}); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if v, ok := resolved["temperature"]; !ok || v != 0.0 {
			t.Errorf("expected temperature 0 to be resolved, got %v", resolved["temperature"])
		}
	})

	nine := 9.0
	tests := []struct {
		name string
		gen  provider.GenerationOptions
	}{
		{"Temperature", provider.GenerationOptions{Temperature: &nine}},
		{"MaxTokens", provider.GenerationOptions{MaxTokens: 999999999}},
		{"Duration", provider.GenerationOptions{TargetMinutes: 100000}},
		{"Depth", provider.GenerationOptions{Depth: "bottomless"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := newStubFactory()
			var resolved provider.Options
			o := NewOrchestrator(Config{DefaultProfile: "test"}, newSchemaRegistry(t, factory, &resolved), nil)

			_, err := o.Run(context.Background(), Request{File: []byte("text"), Generation: tt.gen})
			if stage, _ := StageOf(err); stage != StageConfigure {
				t.Errorf("expected configure stage, got %v", err)
			}
			if !apperrors.Is(err, apperrors.KindConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
			if factory.llm.calls != 0 {
				t.Error("script generation must not run with invalid options")
			}
		})
	}
}

func TestOrchestrator_ScriptOnly(t *testing.T) {
	factory := newStubFactory()
	result, err := NewOrchestrator(Config{}, factory, nil).Run(context.Background(), Request{
		File:       []byte("text"),
		ScriptOnly: true,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if factory.speech.synthesized {
		t.Error("synthesis must be skipped")
	}
	if result.Audio != nil || result.Cost.Speech != 0 {
		t.Errorf("expected no audio and no speech cost, got %d bytes, %v", len(result.Audio), result.Cost.Speech)
	}
	if result.Markup == nil || result.Markup.Document != "<speak/>" {
		t.Error("expected the markup in the result")
	}
}

func TestOrchestrator_Timeout(t *testing.T) {
	factory := newStubFactory()
	factory.doc.err = apperrors.New(apperrors.KindCanceled, "", context.DeadlineExceeded)

	_, err := NewOrchestrator(Config{RunTimeout: time.Minute}, factory, nil).Run(context.Background(), Request{})
	if !apperrors.IsCanceled(err) {
		t.Errorf("expected canceled error, got %v", err)
	}
}

func TestOrchestrator_PublishArtifacts(t *testing.T) {
	adapter, err := storage.NewLocalAdapter(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	factory := newStubFactory()
	o := NewOrchestrator(Config{PublishArtifacts: true, DefaultProfile: "openai"}, factory, adapter)
	o.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := context.Background()
	result, err := o.Run(ctx, Request{File: []byte("text"), MediaType: "text/plain", Title: "Test"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	paths, err := adapter.List(ctx, util.RunPrefix(result.RunID))
	if err != nil {
		t.Fatalf("Failed to list artifacts: %v", err)
	}
	sort.Strings(paths)
	want := []string{"manifest.json", "markup.xml", "podcast.wav", "script.json", "steps.json", "transcript.txt"}
	if len(paths) != len(want) {
		t.Fatalf("expected %d artifacts, got %v", len(want), paths)
	}
	for i, name := range want {
		if paths[i] != util.RunPath(result.RunID, name) {
			t.Errorf("expected %s, got %s", name, paths[i])
		}
	}
	if len(result.Artifacts) != len(want) {
		t.Errorf("expected result to list %d artifacts, got %v", len(want), result.Artifacts)
	}

	data, err := storage.ReadAll(ctx, adapter, util.RunPath(result.RunID, util.ManifestFile))
	if err != nil {
		t.Fatalf("Failed to read manifest: %v", err)
	}
	var manifest types.RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		t.Fatalf("Failed to decode manifest: %v", err)
	}
	if manifest.RunID != result.RunID || manifest.Profile != "openai" || manifest.Turns != 2 || manifest.PageCount != 3 {
		t.Errorf("unexpected manifest: %+v", manifest)
	}
	if !manifest.CreatedAt.Equal(o.now()) {
		t.Errorf("unexpected creation time %v", manifest.CreatedAt)
	}

	transcript, err := storage.ReadAll(ctx, adapter, util.RunPath(result.RunID, util.TranscriptFile))
	if err != nil {
		t.Fatalf("Failed to read transcript: %v", err)
	}
	if string(transcript) != "Andrew: Welcome to the show.\nAva: Glad to be here.\n" {
		t.Errorf("unexpected transcript %q", transcript)
	}
}

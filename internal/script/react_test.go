package script

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/llm"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// reactResponder answers every stage with valid tool arguments
func reactResponder(req llm.ChatRequest) (*llm.ChatResponse, error) {
	switch req.ToolChoice {
	case toolAnalyze:
		return toolResponse(toolAnalyze, map[string]any{
			"reasoning":          "The document is about AI adoption.",
			"key_points":         []string{"AI is everywhere"},
			"themes":             []string{"adoption"},
			"audience_takeaways": []string{"Start small"},
		}), nil
	case toolPlan:
		return toolResponse(toolPlan, map[string]any{
			"reasoning": "Two sections fit five minutes.",
			"sections": []map[string]any{
				{"title": "Opening", "duration": 2, "description": "Intro"},
				{"title": "Deep dive", "duration": 3, "description": "Details"},
			},
			"total_duration": 5,
		}), nil
	case toolHosts:
		return toolResponse(toolHosts, map[string]any{
			"reasoning": "Contrast helps.",
			"host_1":    map[string]string{"name": "Someone", "personality": "calm", "role": "host"},
			"host_2":    map[string]string{"name": "Else", "personality": "witty", "role": "co-host"},
		}), nil
	case toolSection:
		return toolResponse(toolSection, map[string]any{
			"reasoning":     "Keep it lively.",
			"section_title": "Section",
			"dialogue": []map[string]string{
				{"speaker": "Andrew", "text": "Line A"},
				{"speaker": "Ava", "text": "Line B"},
			},
		}), nil
	case toolReview:
		return toolResponse(toolReview, map[string]any{
			"reasoning":    "Looks fine.",
			"improvements": []string{"More jokes"},
		}), nil
	case toolFinalize:
		return toolResponse(toolFinalize, map[string]any{
			"reasoning": "Assembled.",
			"config":    map[string]string{"language": "en-GB"},
			"script": []map[string]string{
				{"name": "Andrew", "message": "Hello and welcome."},
				{"name": "Ava", "message": "Great to be here."},
				{"name": "speaker_1", "message": "Goodbye."},
			},
		}), nil
	}
	return nil, fmt.Errorf("unexpected tool choice %q", req.ToolChoice)
}

func reactRequest() provider.ScriptRequest {
	return provider.ScriptRequest{
		DocumentText: "AI adoption is growing.",
		Title:        "AI in Action",
		Options:      provider.GenerationOptions{Strategy: StrategyReAct, TargetMinutes: 5},
	}
}

func stepNames(steps []types.GenerationStep) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestReAct_Success(t *testing.T) {
	model := &fakeModel{respond: func(n int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		return reactResponder(req)
	}}
	g := newTestGenerator(model, nil)

	result, err := g.GenerateScript(context.Background(), reactRequest())
	if err != nil {
		t.Fatalf("GenerateScript failed: %v", err)
	}

	want := []string{toolAnalyze, toolPlan, toolHosts, toolSection + "[1]", toolSection + "[2]", toolReview, toolFinalize}
	if got := stepNames(result.Steps); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Expected steps %v, got %v", want, got)
	}
	for _, step := range result.Steps {
		if step.Status != types.StepSuccess || step.Attempts != 1 {
			t.Errorf("Step %s: expected success in 1 attempt, got %s in %d", step.Name, step.Status, step.Attempts)
		}
		if step.Reasoning == "" || len(step.Action) == 0 {
			t.Errorf("Step %s: expected reasoning and action", step.Name)
		}
	}

	if model.calls() != 7 {
		t.Errorf("Expected 7 calls, got %d", model.calls())
	}
	if result.Usage != (types.UsageMetrics{PromptTokens: 70, CompletionTokens: 35, TotalTokens: 105}) {
		t.Errorf("Unexpected usage: %+v", result.Usage)
	}

	script := result.Script
	if script.Language != "en-GB" || len(script.Turns) != 3 {
		t.Fatalf("Unexpected script: %+v", script)
	}
	if script.Turns[2].Speaker != types.Speaker1 || script.Turns[2].DisplayName != "Andrew" {
		t.Errorf("Unexpected last turn: %+v", script.Turns[2])
	}

	// Every stage sees the tool calls and results of the previous ones
	final := model.requests[6]
	if final.ToolChoice != toolFinalize {
		t.Fatalf("Expected finalize as the last call, got %s", final.ToolChoice)
	}
	toolResults := 0
	for _, msg := range final.Messages {
		if msg.Role == llm.RoleTool {
			toolResults++
		}
	}
	if toolResults != 6 {
		t.Errorf("Expected 6 tool results in the final transcript, got %d", toolResults)
	}

	// Host names are fixed by the caller
	var h hosts
	json.Unmarshal(result.Steps[2].Action, &h)
	if h.Host1.Name != "Andrew" || h.Host2.Name != "Ava" {
		t.Errorf("Expected caller host names, got %s / %s", h.Host1.Name, h.Host2.Name)
	}
}

func TestReAct_PlanFallback(t *testing.T) {
	model := &fakeModel{respond: func(n int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.ToolChoice == toolPlan {
			return nil, apperrors.Transient(fmt.Errorf("connection reset"))
		}
		return reactResponder(req)
	}}
	g := newTestGenerator(model, func(c *Config) { c.MaxRetries = 2 })

	req := reactRequest()
	req.Options.TargetMinutes = 7
	result, err := g.GenerateScript(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateScript failed: %v", err)
	}

	step := result.Steps[1]
	if step.Name != toolPlan || step.Status != types.StepFallback {
		t.Fatalf("Expected plan fallback step, got %+v", step)
	}
	if step.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", step.Attempts)
	}
	if !strings.Contains(step.Error, "connection reset") {
		t.Errorf("Expected failure reason in step, got %q", step.Error)
	}

	var pl plan
	if err := json.Unmarshal(step.Action, &pl); err != nil {
		t.Fatalf("Failed to decode fallback plan: %v", err)
	}
	if len(pl.Sections) != 3 {
		t.Fatalf("Expected 3 fallback sections, got %d", len(pl.Sections))
	}
	sum := 0.0
	for _, s := range pl.Sections {
		sum += s.Duration
	}
	if math.Abs(sum-7) > 1e-9 {
		t.Errorf("Expected durations to sum to 7, got %v", sum)
	}
	if math.Abs(pl.Sections[0].Duration-1.4) > 1e-9 || math.Abs(pl.Sections[1].Duration-4.2) > 1e-9 {
		t.Errorf("Expected a 20/60/20 split, got %+v", pl.Sections)
	}

	sectionSteps := 0
	for _, s := range result.Steps {
		if strings.HasPrefix(s.Name, toolSection) {
			sectionSteps++
		}
	}
	if sectionSteps != 3 {
		t.Errorf("Expected one section step per fallback section, got %d", sectionSteps)
	}

	// The model is told about the default plan
	found := false
	for _, msg := range model.requests[len(model.requests)-1].Messages {
		if msg.Role == llm.RoleUser && strings.Contains(msg.Content, "could not be completed") {
			found = true
		}
	}
	if !found {
		t.Error("Expected a fallback note in the transcript")
	}
}

func TestReAct_AllStagesFail(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		attempts int
	}{
		{"Transient", apperrors.Transient(fmt.Errorf("503")), 3},
		{"RateLimit", apperrors.RateLimit(fmt.Errorf("429")), 3},
		{"Auth", apperrors.Auth(fmt.Errorf("401")), 1},
		{"Unclassified", fmt.Errorf("boom"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{respond: func(n int, req llm.ChatRequest) (*llm.ChatResponse, error) {
				return nil, tt.err
			}}
			g := newTestGenerator(model, func(c *Config) { c.MaxRetries = 2 })

			result, err := g.GenerateScript(context.Background(), reactRequest())
			if err != nil {
				t.Fatalf("ReAct must not fail, got %v", err)
			}
			if len(result.Script.Turns) == 0 {
				t.Fatal("Expected a non-empty fallback script")
			}
			if err := result.Script.Validate(); err != nil {
				t.Errorf("Fallback script is invalid: %v", err)
			}

			// analyze, plan, hosts, 3 sections, review, finalize
			if len(result.Steps) != 8 {
				t.Fatalf("Expected 8 steps, got %v", stepNames(result.Steps))
			}
			for _, step := range result.Steps {
				if step.Status != types.StepFallback {
					t.Errorf("Step %s: expected fallback, got %s", step.Name, step.Status)
				}
				if step.Attempts != tt.attempts {
					t.Errorf("Step %s: expected %d attempts, got %d", step.Name, tt.attempts, step.Attempts)
				}
			}

			// Three templated sections of four lines each
			if len(result.Script.Turns) != 12 {
				t.Errorf("Expected 12 rebuilt turns, got %d", len(result.Script.Turns))
			}
			if result.Usage != (types.UsageMetrics{}) || result.Cost != 0 {
				t.Errorf("Failed calls must not count, got %+v / %v", result.Usage, result.Cost)
			}
		})
	}
}

func TestReAct_UsageCountsAcceptedResponsesOnly(t *testing.T) {
	model := &fakeModel{respond: func(n int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		if n == 1 {
			// Wrong tool: rejected and retried
			resp := toolResponse(toolPlan, map[string]any{})
			resp.Usage = types.UsageMetrics{PromptTokens: 1000, CompletionTokens: 1000, TotalTokens: 2000}
			return resp, nil
		}
		return reactResponder(req)
	}}
	g := newTestGenerator(model, nil)

	result, err := g.GenerateScript(context.Background(), reactRequest())
	if err != nil {
		t.Fatalf("GenerateScript failed: %v", err)
	}
	if result.Steps[0].Attempts != 2 || result.Steps[0].Status != types.StepSuccess {
		t.Errorf("Expected analyze to succeed on the second attempt, got %+v", result.Steps[0])
	}
	if result.Usage != (types.UsageMetrics{PromptTokens: 70, CompletionTokens: 35, TotalTokens: 105}) {
		t.Errorf("Unexpected usage: %+v", result.Usage)
	}
}

func TestReAct_Panic(t *testing.T) {
	model := &fakeModel{respond: func(n int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.ToolChoice == toolHosts {
			panic("backend exploded")
		}
		return reactResponder(req)
	}}
	g := newTestGenerator(model, nil)

	result, err := g.GenerateScript(context.Background(), reactRequest())
	if err != nil {
		t.Fatalf("ReAct must not fail, got %v", err)
	}
	if len(result.Script.Turns) != 2 {
		t.Fatalf("Expected a two-turn apology script, got %d turns", len(result.Script.Turns))
	}
	if result.Script.Turns[0].Speaker != types.Speaker1 || result.Script.Turns[1].Speaker != types.Speaker2 {
		t.Errorf("Unexpected apology speakers: %+v", result.Script.Turns)
	}

	want := []string{toolAnalyze, toolPlan, "error"}
	if got := stepNames(result.Steps); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Expected steps %v, got %v", want, got)
	}
	last := result.Steps[2]
	if last.Status != types.StepError || !strings.Contains(last.Error, "backend exploded") {
		t.Errorf("Unexpected error step: %+v", last)
	}
}

func TestReAct_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	model := &fakeModel{respond: func(n int, req llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.ToolChoice == toolPlan {
			cancel()
			return nil, apperrors.Transient(fmt.Errorf("timeout"))
		}
		return reactResponder(req)
	}}
	g := newTestGenerator(model, nil)
	g.sleep = sleepContext

	result, err := g.GenerateScript(ctx, reactRequest())
	if !apperrors.IsCanceled(err) {
		t.Fatalf("Expected cancellation error, got %v", err)
	}
	if model.calls() != 2 {
		t.Errorf("Expected no calls after cancellation, got %d", model.calls())
	}
	if result == nil || len(result.Steps) == 0 || result.Steps[0].Name != toolAnalyze {
		t.Fatalf("Expected the steps recorded before cancellation, got %+v", result)
	}
	if result.Script != nil {
		t.Error("Expected no script after cancellation")
	}
	if result.Usage.TotalTokens != 15 {
		t.Errorf("Expected usage of the accepted analyze response, got %+v", result.Usage)
	}
}

func TestFallbackFinal(t *testing.T) {
	p := params{title: "AI in Action", speaker1: "Andrew", speaker2: "Ava"}

	t.Run("PadsShortScripts", func(t *testing.T) {
		sections := []section{{Dialogue: []dialogueLine{
			{Speaker: "Andrew", Text: "AI is cool."},
			{Speaker: "speaker_2", Text: "Totally."},
		}}}
		rv := review{DialogueRevisions: []revision{{Original: "cool", Revised: "fascinating"}}}

		f := fallbackFinal(p, sections, rv)
		script, err := f.toScript(p)
		if err != nil {
			t.Fatalf("toScript failed: %v", err)
		}
		if len(script.Turns) != 6 {
			t.Fatalf("Expected intro + 2 + outro = 6 turns, got %d", len(script.Turns))
		}
		if script.Turns[2].Message != "AI is fascinating." {
			t.Errorf("Expected revision applied, got %q", script.Turns[2].Message)
		}
		if !strings.Contains(script.Turns[0].Message, "AI in Action") {
			t.Errorf("Expected intro naming the show, got %q", script.Turns[0].Message)
		}
		if script.Language != types.DefaultLanguage {
			t.Errorf("Expected default language, got %s", script.Language)
		}
	})

	t.Run("KeepsLongScripts", func(t *testing.T) {
		sec := fallbackSection(p, planSection{Title: "Intro", Duration: 1})
		f := fallbackFinal(p, []section{sec, sec}, review{})
		if len(f.Script) != 8 {
			t.Errorf("Expected 8 lines without padding, got %d", len(f.Script))
		}
	})
}

func TestFallbackHosts(t *testing.T) {
	h := fallbackHosts(params{speaker1: "Emma", speaker2: "Davis"})
	if h.Host1.Name != "Emma" || h.Host1.Role != "friendly host" {
		t.Errorf("Unexpected host 1: %+v", h.Host1)
	}
	if h.Host2.Name != "Davis" || h.Host2.Role != "curious co-host" {
		t.Errorf("Unexpected host 2: %+v", h.Host2)
	}
}

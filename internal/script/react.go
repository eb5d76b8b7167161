package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/llm"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// Upper bound on planned sections, each costing one model call
const maxSections = 12

type analysis struct {
	Reasoning         string   `json:"reasoning"`
	KeyPoints         []string `json:"key_points"`
	Themes            []string `json:"themes"`
	AudienceTakeaways []string `json:"audience_takeaways"`
}

type planSection struct {
	Title       string  `json:"title"`
	Duration    float64 `json:"duration"`
	Description string  `json:"description"`
}

type plan struct {
	Reasoning     string        `json:"reasoning"`
	Sections      []planSection `json:"sections"`
	TotalDuration float64       `json:"total_duration"`
}

type host struct {
	Name        string `json:"name"`
	Personality string `json:"personality"`
	Role        string `json:"role"`
}

type hosts struct {
	Reasoning string `json:"reasoning"`
	Host1     host   `json:"host_1"`
	Host2     host   `json:"host_2"`
}

type dialogueLine struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type section struct {
	Reasoning    string         `json:"reasoning"`
	SectionTitle string         `json:"section_title"`
	Dialogue     []dialogueLine `json:"dialogue"`
}

type revision struct {
	Original string `json:"original"`
	Revised  string `json:"revised"`
}

type review struct {
	Reasoning         string     `json:"reasoning"`
	Improvements      []string   `json:"improvements"`
	DialogueRevisions []revision `json:"dialogue_revisions,omitempty"`
}

type finalLine struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type finalScript struct {
	Reasoning string `json:"reasoning"`
	Config    struct {
		Language string `json:"language"`
	} `json:"config"`
	Script []finalLine `json:"script"`
}

// stage describes one forced tool call of the ReAct workflow
type stage[T any] struct {
	step        string
	tool        llm.Tool
	instruction string
	validate    func(*T) error
	fallback    func() T
	reasoning   func(*T) string
}

// reactRun holds the transcript shared by every stage
type reactRun struct {
	*session
	messages []llm.Message
}

// react runs the six-stage workflow. Stage failures are absorbed by
// fallbacks, and anything escaping them, panics included, yields a minimal
// apology script. Only cancellation is returned as an error.
func (s *session) react(ctx context.Context, document string) (script *types.PodcastScript, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic during script generation: %v", rec)
		}
		if err == nil || apperrors.IsCanceled(err) {
			return
		}
		slog.Error("react generation failed, returning minimal script", "provider", s.g.name, "error", err)
		s.steps = append(s.steps, types.GenerationStep{
			Name:   "error",
			Status: types.StepError,
			Error:  err.Error(),
		})
		script, err = apologyScript(s.p), nil
	}()

	r := &reactRun{
		session: s,
		messages: []llm.Message{
			llm.SystemMessage(reactSystemPrompt(s.p)),
			llm.UserMessage(documentMessage(s.p.title, document)),
		},
	}

	if _, err := runStage(ctx, r, stage[analysis]{
		step:        toolAnalyze,
		tool:        analyzeTool,
		instruction: analyzeInstruction(),
		validate: func(a *analysis) error {
			if len(a.KeyPoints) == 0 {
				return fmt.Errorf("analysis has no key points")
			}
			return nil
		},
		fallback:  func() analysis { return fallbackAnalysis(s.p) },
		reasoning: func(a *analysis) string { return a.Reasoning },
	}); err != nil {
		return nil, err
	}

	pl, err := runStage(ctx, r, stage[plan]{
		step:        toolPlan,
		tool:        planTool,
		instruction: planInstruction(s.p),
		validate: func(pl *plan) error {
			if len(pl.Sections) == 0 {
				return fmt.Errorf("plan has no sections")
			}
			for i, sec := range pl.Sections {
				if strings.TrimSpace(sec.Title) == "" || sec.Duration <= 0 {
					return fmt.Errorf("plan section %d needs a title and a positive duration", i)
				}
			}
			return nil
		},
		fallback:  func() plan { return fallbackPlan(s.p) },
		reasoning: func(pl *plan) string { return pl.Reasoning },
	})
	if err != nil {
		return nil, err
	}
	if len(pl.Sections) > maxSections {
		pl.Sections = pl.Sections[:maxSections]
	}

	if _, err := runStage(ctx, r, stage[hosts]{
		step:        toolHosts,
		tool:        hostsTool,
		instruction: hostsInstruction(s.p),
		validate: func(h *hosts) error {
			// Host names are fixed by the caller
			h.Host1.Name, h.Host2.Name = s.p.speaker1, s.p.speaker2
			return nil
		},
		fallback:  func() hosts { return fallbackHosts(s.p) },
		reasoning: func(h *hosts) string { return h.Reasoning },
	}); err != nil {
		return nil, err
	}

	sections := make([]section, 0, len(pl.Sections))
	for i, planned := range pl.Sections {
		sec, err := runStage(ctx, r, stage[section]{
			step:        fmt.Sprintf("%s[%d]", toolSection, i+1),
			tool:        sectionTool,
			instruction: sectionInstruction(s.p, i, len(pl.Sections), planned),
			validate: func(sec *section) error {
				if len(sec.Dialogue) == 0 {
					return fmt.Errorf("section has no dialogue")
				}
				for j, line := range sec.Dialogue {
					if _, ok := resolveSpeaker(line.Speaker, s.p); !ok {
						return fmt.Errorf("dialogue line %d has unknown speaker %q", j, line.Speaker)
					}
				}
				if sec.SectionTitle == "" {
					sec.SectionTitle = planned.Title
				}
				return nil
			},
			fallback:  func() section { return fallbackSection(s.p, planned) },
			reasoning: func(sec *section) string { return sec.Reasoning },
		})
		if err != nil {
			return nil, err
		}
		sections = append(sections, sec)
	}

	rv, err := runStage(ctx, r, stage[review]{
		step:        toolReview,
		tool:        reviewTool,
		instruction: reviewInstruction(),
		validate:    func(*review) error { return nil },
		fallback:    func() review { return review{Improvements: []string{}} },
		reasoning:   func(rv *review) string { return rv.Reasoning },
	})
	if err != nil {
		return nil, err
	}

	final, err := runStage(ctx, r, stage[finalScript]{
		step:        toolFinalize,
		tool:        finalizeTool,
		instruction: finalizeInstruction(s.p),
		validate: func(f *finalScript) error {
			_, err := f.toScript(s.p)
			return err
		},
		fallback:  func() finalScript { return fallbackFinal(s.p, sections, rv) },
		reasoning: func(f *finalScript) string { return f.Reasoning },
	})
	if err != nil {
		return nil, err
	}

	return final.toScript(s.p)
}

// runStage performs one forced tool call with retries. On failure the
// stage fallback is recorded and announced to the model in the transcript.
func runStage[T any](ctx context.Context, r *reactRun, st stage[T]) (T, error) {
	req := llm.ChatRequest{
		Messages:    append([]llm.Message{}, r.messages...),
		Temperature: r.p.temperature,
		MaxTokens:   r.p.maxTokens,
		Tools:       []llm.Tool{st.tool},
		ToolChoice:  st.tool.Name,
	}
	req.Messages = append(req.Messages, llm.UserMessage(st.instruction))

	var (
		result T
		call   *llm.ToolCall
	)
	attempts, err := r.g.retry(ctx, st.step, func() error {
		resp, err := r.g.model.Complete(ctx, req)
		if err != nil {
			return err
		}
		if resp == nil {
			return apperrors.Validation(fmt.Errorf("empty response"))
		}
		c, ok := resp.FindToolCall(st.tool.Name)
		if !ok {
			return apperrors.Validation(fmt.Errorf("response has no %s call", st.tool.Name))
		}
		var out T
		if err := json.Unmarshal([]byte(c.Arguments), &out); err != nil {
			return apperrors.Validation(fmt.Errorf("invalid %s arguments: %w", st.tool.Name, err))
		}
		if err := st.validate(&out); err != nil {
			return apperrors.Validation(err)
		}
		r.usage.Add(resp.Usage)
		result, call = out, c
		return nil
	})

	r.messages = append(r.messages, llm.UserMessage(st.instruction))

	if err == nil {
		action, _ := json.Marshal(result)
		r.messages = append(r.messages,
			llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{*call}},
			llm.ToolResultMessage(call.ID, "Recorded."),
		)
		r.steps = append(r.steps, types.GenerationStep{
			Name:      st.step,
			Status:    types.StepSuccess,
			Attempts:  attempts,
			Reasoning: st.reasoning(&result),
			Action:    action,
		})
		slog.Debug("react step completed", "provider", r.g.name, "step", st.step, "attempts", attempts)
		return result, nil
	}

	if apperrors.IsCanceled(err) {
		return result, err
	}

	result = st.fallback()
	action, _ := json.Marshal(result)
	r.messages = append(r.messages, llm.UserMessage(fallbackNote(st.step, action)))
	r.steps = append(r.steps, types.GenerationStep{
		Name:     st.step,
		Status:   types.StepFallback,
		Attempts: attempts,
		Action:   action,
		Error:    err.Error(),
	})
	slog.Warn("react step fell back to default", "provider", r.g.name, "step", st.step, "attempts", attempts, "error", err)
	return result, nil
}

// toScript converts the finalize payload into a validated script
func (f *finalScript) toScript(p params) (*types.PodcastScript, error) {
	script := &types.PodcastScript{
		Language: firstNonEmpty(f.Config.Language, p.language, types.DefaultLanguage),
	}
	for i, line := range f.Script {
		speaker, ok := resolveSpeaker(line.Name, p)
		if !ok {
			return nil, fmt.Errorf("final line %d has unknown speaker %q", i, line.Name)
		}
		message := strings.TrimSpace(line.Message)
		if message == "" {
			continue
		}
		script.Turns = append(script.Turns, newTurn(speaker, message, p))
	}
	if err := script.Validate(); err != nil {
		return nil, err
	}
	return script, nil
}

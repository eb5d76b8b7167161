package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultLanguage is used when a script carries no language tag
const DefaultLanguage = "en-US"

// Speaker identifies one of the two canonical podcast hosts
type Speaker string

const (
	Speaker1 Speaker = "speaker_1"
	Speaker2 Speaker = "speaker_2"
)

// Valid reports whether the speaker is one of the two canonical roles
func (s Speaker) Valid() bool {
	return s == Speaker1 || s == Speaker2
}

// Other returns the opposite host
func (s Speaker) Other() Speaker {
	if s == Speaker1 {
		return Speaker2
	}
	return Speaker1
}

// DocumentResult is the normalized output of a document provider
type DocumentResult struct {
	Text      string  `json:"text"`
	PageCount int     `json:"page_count"`
	Cost      float64 `json:"cost"`
}

// DialogueTurn is one utterance of the podcast
type DialogueTurn struct {
	Speaker     Speaker `json:"speaker"`
	DisplayName string  `json:"name"`
	Message     string  `json:"message"`
}

// PodcastScript is the ordered two-host dialogue
type PodcastScript struct {
	Language string         `json:"language"`
	Turns    []DialogueTurn `json:"turns"`
}

// Validate checks the script invariants: a language tag, at least one turn,
// and only canonical speakers.
func (p *PodcastScript) Validate() error {
	if p == nil {
		return fmt.Errorf("script is nil")
	}
	if p.Language == "" {
		return fmt.Errorf("script language is empty")
	}
	if len(p.Turns) == 0 {
		return fmt.Errorf("script has no turns")
	}
	for i, turn := range p.Turns {
		if !turn.Speaker.Valid() {
			return fmt.Errorf("turn %d has invalid speaker %q", i, turn.Speaker)
		}
	}
	return nil
}

// Characters returns the total number of message characters (code points)
func (p *PodcastScript) Characters() int {
	total := 0
	for _, turn := range p.Turns {
		total += len([]rune(turn.Message))
	}
	return total
}

// StepStatus tags how a generation step was resolved
type StepStatus string

const (
	StepSuccess  StepStatus = "success"
	StepFallback StepStatus = "fallback"
	StepError    StepStatus = "error"
)

// GenerationStep is an audit record of one script generation sub-step
type GenerationStep struct {
	Name      string          `json:"name"`
	Status    StepStatus      `json:"status"`
	Attempts  int             `json:"attempts"`
	Reasoning string          `json:"reasoning,omitempty"`
	Action    json.RawMessage `json:"action,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// UsageMetrics counts LLM tokens
type UsageMetrics struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage record
func (u *UsageMetrics) Add(other UsageMetrics) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// CostBreakdown holds per-stage costs in USD
type CostBreakdown struct {
	Document float64 `json:"document"`
	Script   float64 `json:"script"`
	Speech   float64 `json:"speech"`
}

// Total returns the sum of all stage costs
func (c CostBreakdown) Total() float64 {
	return c.Document + c.Script + c.Speech
}

// MarshalJSON includes the derived total
func (c CostBreakdown) MarshalJSON() ([]byte, error) {
	type alias CostBreakdown
	return json.Marshal(struct {
		alias
		Total float64 `json:"total"`
	}{alias(c), c.Total()})
}

// RunManifest describes the artifacts published for a pipeline run
type RunManifest struct {
	RunID       string        `json:"run_id"`
	Title       string        `json:"title"`
	Profile     string        `json:"profile"`
	CreatedAt   time.Time     `json:"created_at"`
	Language    string        `json:"language"`
	Turns       int           `json:"turns"`
	PageCount   int           `json:"page_count"`
	AudioFormat string        `json:"audio_format"`
	AudioBytes  int           `json:"audio_bytes"`
	Usage       UsageMetrics  `json:"usage"`
	Cost        CostBreakdown `json:"cost"`
	Files       []string      `json:"files"`
}

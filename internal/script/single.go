package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/llm"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// scriptPayload is the structured output of the single-shot schema
type scriptPayload struct {
	Config struct {
		Language string `json:"language"`
	} `json:"config"`
	Script []struct {
		Speaker string `json:"speaker"`
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"script"`
}

// singleShot generates the whole script with one request
func (s *session) singleShot(ctx context.Context, document string) (*types.PodcastScript, error) {
	return s.generateSegment(ctx, document, 0, 1, nil)
}

// segmentCount picks how many sequential requests a target duration needs
func segmentCount(minutes float64) int {
	switch {
	case minutes <= 5:
		return 1
	case minutes <= 15:
		return 4
	default:
		return 8
	}
}

// segmented generates the script in sequential segments, each continuing
// from all previously generated turns
func (s *session) segmented(ctx context.Context, document string) (*types.PodcastScript, error) {
	total := segmentCount(s.p.targetMinutes)
	result := &types.PodcastScript{}

	for i := 0; i < total; i++ {
		part, err := s.generateSegment(ctx, document, i, total, result.Turns)
		if err != nil {
			return nil, fmt.Errorf("failed to generate segment %d of %d: %w", i+1, total, err)
		}
		if i == 0 {
			result.Language = part.Language
		}
		result.Turns = append(result.Turns, part.Turns...)
	}

	return result, nil
}

func (s *session) generateSegment(ctx context.Context, document string, index, total int, prior []types.DialogueTurn) (*types.PodcastScript, error) {
	messages := []llm.Message{
		llm.SystemMessage(systemPrompt(s.p) + segmentInstructions(s.p, index, total)),
		llm.UserMessage(documentMessage(s.p.title, document)),
	}
	if len(prior) > 0 {
		messages = append(messages, llm.UserMessage(previousDialogue(prior)))
	}

	req := llm.ChatRequest{
		Messages:       messages,
		Temperature:    s.p.temperature,
		MaxTokens:      s.p.maxTokens,
		ResponseSchema: podcastSchema,
	}

	var script *types.PodcastScript
	op := fmt.Sprintf("segment %d/%d", index+1, total)
	_, err := s.g.retry(ctx, op, func() error {
		resp, err := s.g.model.Complete(ctx, req)
		if err != nil {
			return err
		}
		if resp == nil {
			return apperrors.Validation(fmt.Errorf("empty response"))
		}
		parsed, err := parseScript(resp.Content, s.p)
		if err != nil {
			return apperrors.Validation(err)
		}
		s.usage.Add(resp.Usage)
		script = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return script, nil
}

// parseScript decodes and validates a structured script response
func parseScript(content string, p params) (*types.PodcastScript, error) {
	var payload scriptPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse script JSON: %w", err)
	}

	language := strings.TrimSpace(payload.Config.Language)
	if language == "" {
		return nil, fmt.Errorf("response is missing config.language")
	}

	script := &types.PodcastScript{Language: language}
	for i, line := range payload.Script {
		label := firstNonEmpty(line.Speaker, line.Name)
		speaker, ok := resolveSpeaker(label, p)
		if !ok {
			return nil, fmt.Errorf("turn %d has unknown speaker %q", i, label)
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

// resolveSpeaker maps a speaker key or host name onto one of the two roles
func resolveSpeaker(label string, p params) (types.Speaker, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "":
		return "", false
	case l == string(types.Speaker1) || l == strings.ToLower(p.speaker1):
		return types.Speaker1, true
	case l == string(types.Speaker2) || l == strings.ToLower(p.speaker2):
		return types.Speaker2, true
	}
	return "", false
}

func newTurn(speaker types.Speaker, message string, p params) types.DialogueTurn {
	return types.DialogueTurn{
		Speaker:     speaker,
		DisplayName: displayName(speaker, p),
		Message:     message,
	}
}

func displayName(speaker types.Speaker, p params) string {
	if speaker == types.Speaker2 {
		return p.speaker2
	}
	return p.speaker1
}

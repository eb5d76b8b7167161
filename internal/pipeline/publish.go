package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unalkalkan/podcaster/internal/util"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// publish writes the artifacts of a run to storage. The manifest is written
// last, so its presence marks a complete run.
func (o *Orchestrator) publish(ctx context.Context, result *Result) ([]string, error) {
	type artifact struct {
		name string
		data []byte
	}

	var files []artifact
	if len(result.Audio) > 0 {
		files = append(files, artifact{util.AudioFile(result.AudioFormat), result.Audio})
	}

	script, err := json.MarshalIndent(result.Script, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal script: %w", err)
	}
	files = append(files, artifact{util.ScriptFile, script})

	if result.Steps != nil {
		steps, err := json.MarshalIndent(result.Steps, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal steps: %w", err)
		}
		files = append(files, artifact{util.StepsFile, steps})
	}

	if result.Markup != nil {
		files = append(files, artifact{util.MarkupFile, []byte(result.Markup.Document)})
	}
	files = append(files, artifact{util.TranscriptFile, []byte(Transcript(result.Script))})

	names := make([]string, 0, len(files)+1)
	for _, f := range files {
		names = append(names, f.name)
	}
	names = append(names, util.ManifestFile)

	manifest := types.RunManifest{
		RunID:       result.RunID,
		Title:       result.Title,
		Profile:     result.Profile,
		CreatedAt:   o.now().UTC(),
		Language:    result.Script.Language,
		Turns:       len(result.Script.Turns),
		AudioFormat: result.AudioFormat,
		AudioBytes:  len(result.Audio),
		Usage:       result.Usage,
		Cost:        result.Cost,
		Files:       names,
	}
	if result.Document != nil {
		manifest.PageCount = result.Document.PageCount
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	files = append(files, artifact{util.ManifestFile, manifestData})

	written := make([]string, 0, len(files))
	for _, f := range files {
		p := util.RunPath(result.RunID, f.name)
		if err := o.storage.Put(ctx, p, bytes.NewReader(f.data)); err != nil {
			return written, fmt.Errorf("failed to store %s: %w", f.name, err)
		}
		written = append(written, p)
	}
	return written, nil
}

// Transcript renders a script as one "Name: message" line per turn
func Transcript(script *types.PodcastScript) string {
	var sb strings.Builder
	for _, turn := range script.Turns {
		name := turn.DisplayName
		if name == "" {
			name = string(turn.Speaker)
		}
		sb.WriteString(name)
		sb.WriteString(": ")
		sb.WriteString(turn.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

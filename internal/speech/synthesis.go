package speech

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
)

// DefaultMaxConcurrency bounds the requests in flight when a provider
// synthesizes chunks in parallel
const DefaultMaxConcurrency = 8

// chunkSynthesizer synthesizes one well-formed markup chunk to WAV
type chunkSynthesizer func(ctx context.Context, chunk string) ([]byte, error)

// chunkPlan describes how a provider splits and prices its markup
type chunkPlan struct {
	provider    string
	unit        string
	limit       int
	concurrency int
	per1M       float64
}

// synthesize splits markup at unit elements, synthesizes up to concurrency
// chunks at a time and joins the audio in document order into one WAV buffer
func (p chunkPlan) synthesize(ctx context.Context, markup string, synth chunkSynthesizer) (*provider.SpeechResult, error) {
	chars, units, err := markupCharacters(markup, p.unit)
	if err != nil {
		return nil, apperrors.SpeechSynthesis(err)
	}

	chunks, err := SplitMarkup(markup, p.unit, p.limit)
	if err != nil {
		return nil, apperrors.SpeechSynthesis(err)
	}

	concurrency := p.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	slog.Info("synthesizing speech",
		"provider", p.provider,
		"elements", units,
		"chunks", len(chunks),
		"characters", chars,
		"concurrency", concurrency)

	if err := ctx.Err(); err != nil {
		return nil, apperrors.New(apperrors.KindCanceled, "", err)
	}

	start := time.Now()
	audio := make([][]byte, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return apperrors.New(apperrors.KindCanceled, "", err)
			}
			data, err := synth(gctx, chunk)
			if err != nil {
				slog.Error("speech synthesis failed", "provider", p.provider, "chunk", i+1, "chunks", len(chunks), "error", err)
				if apperrors.IsCanceled(err) {
					return err
				}
				return apperrors.SpeechSynthesis(fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err))
			}
			slog.Debug("speech chunk synthesized", "provider", p.provider, "chunk", i+1, "bytes", len(data))
			audio[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil && !apperrors.IsCanceled(err) {
			return nil, apperrors.New(apperrors.KindCanceled, "", ctx.Err())
		}
		return nil, err
	}

	joined, err := ConcatWAV(audio)
	if err != nil {
		return nil, apperrors.SpeechSynthesis(err)
	}

	slog.Info("speech synthesized", "provider", p.provider, "bytes", len(joined), "duration", time.Since(start))

	return &provider.SpeechResult{
		Audio:      joined,
		Format:     "wav",
		Characters: chars,
		Cost:       provider.CharacterCost(chars, p.per1M),
		Chunks:     len(chunks),
	}, nil
}

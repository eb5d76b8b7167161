package packaging

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/unalkalkan/podcaster/internal/speech"
	"github.com/unalkalkan/podcaster/internal/storage"
	"github.com/unalkalkan/podcaster/internal/util"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// Service bundles the published artifacts of a run into ZIP archives
type Service struct {
	storage storage.Adapter
}

// NewService creates a new packaging service
func NewService(storage storage.Adapter) *Service {
	return &Service{
		storage: storage,
	}
}

// Summary is the top-level description written into every bundle
type Summary struct {
	RunID           string              `json:"run_id"`
	Title           string              `json:"title"`
	Language        string              `json:"language"`
	Turns           int                 `json:"turns"`
	DurationSeconds float64             `json:"duration_seconds"`
	Cost            types.CostBreakdown `json:"cost"`
	CreatedAt       time.Time           `json:"created_at"`
	Version         string              `json:"version"`
}

// LoadManifest reads the manifest of a published run
func (s *Service) LoadManifest(ctx context.Context, runID string) (*types.RunManifest, error) {
	if !util.ValidRunID(runID) {
		return nil, fmt.Errorf("%w: invalid run id %q", storage.ErrNotFound, runID)
	}
	data, err := storage.ReadAll(ctx, s.storage, util.RunPath(runID, util.ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest types.RunManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &manifest, nil
}

// PackageRun creates a ZIP archive with every artifact listed in the run manifest
func (s *Service) PackageRun(ctx context.Context, runID string) (io.Reader, error) {
	manifest, err := s.LoadManifest(ctx, runID)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)

	var audio []byte
	for _, name := range manifest.Files {
		data, err := storage.ReadAll(ctx, s.storage, util.RunPath(runID, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		if name == util.AudioFile(manifest.AudioFormat) {
			audio = data
		}
		if err := s.addFileFromReader(zipWriter, name, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", name, err)
		}
	}

	if err := s.addJSONFile(zipWriter, "summary.json", s.generateSummary(manifest, audio)); err != nil {
		return nil, fmt.Errorf("failed to add summary: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zip: %w", err)
	}

	return bytes.NewReader(buf.Bytes()), nil
}

// AudioPath finds the stored audio of a run, trying every known format
func (s *Service) AudioPath(ctx context.Context, runID string) (string, error) {
	if !util.ValidRunID(runID) {
		return "", fmt.Errorf("%w: invalid run id %q", storage.ErrNotFound, runID)
	}
	for _, format := range util.AudioFormats() {
		p := util.RunPath(runID, util.AudioFile(format))
		exists, err := s.storage.Exists(ctx, p)
		if err != nil {
			return "", err
		}
		if exists {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no audio for run %s", storage.ErrNotFound, runID)
}

// generateSummary creates the bundle summary. The duration is read from the
// WAV header and stays zero for other formats.
func (s *Service) generateSummary(manifest *types.RunManifest, audio []byte) *Summary {
	var duration float64
	if len(audio) > 0 && path.Ext(util.AudioFile(manifest.AudioFormat)) == ".wav" {
		if w, err := speech.DecodeWAV(audio); err == nil {
			duration = w.Duration().Seconds()
		}
	}

	return &Summary{
		RunID:           manifest.RunID,
		Title:           manifest.Title,
		Language:        manifest.Language,
		Turns:           manifest.Turns,
		DurationSeconds: duration,
		Cost:            manifest.Cost,
		CreatedAt:       manifest.CreatedAt,
		Version:         "1.0",
	}
}

// addJSONFile adds a JSON file to the ZIP
func (s *Service) addJSONFile(zipWriter *zip.Writer, name string, data any) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return s.addFileFromReader(zipWriter, name, bytes.NewReader(jsonData))
}

// addFileFromReader adds a file from an io.Reader to the ZIP
func (s *Service) addFileFromReader(zipWriter *zip.Writer, name string, reader io.Reader) error {
	writer, err := zipWriter.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create zip entry: %w", err)
	}

	if _, err := io.Copy(writer, reader); err != nil {
		return fmt.Errorf("failed to copy data: %w", err)
	}

	return nil
}

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/unalkalkan/podcaster/internal/packaging"
	"github.com/unalkalkan/podcaster/internal/pipeline"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/internal/script"
	"github.com/unalkalkan/podcaster/internal/storage"
	"github.com/unalkalkan/podcaster/internal/util"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// PodcastHandler handles podcast generation and artifact endpoints
type PodcastHandler struct {
	runner    Runner
	packaging *packaging.Service
	storage   storage.Adapter
	maxUpload int64
	slots     chan struct{}
}

// NewPodcastHandler creates a podcast handler. storageAdapter may be nil,
// in which case only inline audio responses are available. maxRuns bounds
// the number of concurrent generations.
func NewPodcastHandler(runner Runner, storageAdapter storage.Adapter, maxUploadMB int64, maxRuns int) *PodcastHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	if maxRuns <= 0 {
		maxRuns = 1
	}
	h := &PodcastHandler{
		runner:    runner,
		storage:   storageAdapter,
		maxUpload: maxUploadMB << 20,
		slots:     make(chan struct{}, maxRuns),
	}
	if storageAdapter != nil {
		h.packaging = packaging.NewService(storageAdapter)
	}
	return h
}

// CreateResponse is returned by a successful generation
type CreateResponse struct {
	RunID       string                 `json:"run_id"`
	Profile     string                 `json:"profile"`
	Title       string                 `json:"title"`
	AudioFormat string                 `json:"audio_format,omitempty"`
	AudioBytes  int                    `json:"audio_bytes"`
	AudioURL    string                 `json:"audio_url,omitempty"`
	DownloadURL string                 `json:"download_url,omitempty"`
	Script      *types.PodcastScript   `json:"script"`
	Steps       []types.GenerationStep `json:"steps,omitempty"`
	Usage       types.UsageMetrics     `json:"usage"`
	Cost        types.CostBreakdown    `json:"cost"`
	Timings     pipeline.Timings       `json:"timings"`
}

// CreatePodcast handles POST /api/v1/podcasts
func (h *PodcastHandler) CreatePodcast(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		respondError(w, fmt.Sprintf("File exceeds %d MB", h.maxUpload>>20), http.StatusRequestEntityTooLarge)
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	req, err := parseRunRequest(r)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.File = data
	req.MediaType = mediaTypeOf(header.Filename, header.Header.Get("Content-Type"))
	if req.Title == "" {
		req.Title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	select {
	case h.slots <- struct{}{}:
		defer func() { <-h.slots }()
	case <-r.Context().Done():
		respondError(w, "Request canceled while waiting for a free slot", http.StatusServiceUnavailable)
		return
	}

	slog.Info("podcast requested", "filename", header.Filename, "bytes", len(data), "profile", req.Profile)

	result, err := h.runner.Run(r.Context(), req)
	if err != nil {
		respondFailure(w, err)
		return
	}

	if r.FormValue("response") == "audio" && len(result.Audio) > 0 {
		w.Header().Set("Content-Type", util.AudioContentType(result.AudioFormat))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.%s",
			util.SafeFilename(result.Title, "podcast"), result.AudioFormat))
		w.Header().Set("X-Run-ID", result.RunID)
		w.Header().Set("X-Cost-Total", strconv.FormatFloat(result.Cost.Total(), 'f', 6, 64))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(result.Audio); err != nil {
			slog.Warn("failed to write audio response", "run_id", result.RunID, "error", err)
		}
		return
	}

	resp := CreateResponse{
		RunID:       result.RunID,
		Profile:     result.Profile,
		Title:       result.Title,
		AudioFormat: result.AudioFormat,
		AudioBytes:  len(result.Audio),
		Script:      result.Script,
		Steps:       result.Steps,
		Usage:       result.Usage,
		Cost:        result.Cost,
		Timings:     result.Timings,
	}
	if len(result.Artifacts) > 0 {
		if len(result.Audio) > 0 {
			resp.AudioURL = fmt.Sprintf("/api/v1/podcasts/%s/audio", result.RunID)
		}
		resp.DownloadURL = fmt.Sprintf("/api/v1/podcasts/%s/download", result.RunID)
	}
	respondJSON(w, resp, http.StatusCreated)
}

// parseRunRequest reads the generation settings from the form
func parseRunRequest(r *http.Request) (pipeline.Request, error) {
	req := pipeline.Request{
		Title:        strings.TrimSpace(r.FormValue("title")),
		Profile:      strings.TrimSpace(r.FormValue("profile")),
		Speaker1Name: strings.TrimSpace(r.FormValue("speaker_1")),
		Speaker2Name: strings.TrimSpace(r.FormValue("speaker_2")),
		ScriptOnly:   r.FormValue("script_only") == "true",
		Generation: provider.GenerationOptions{
			Style:    r.FormValue("style"),
			Tone:     r.FormValue("tone"),
			Depth:    r.FormValue("depth"),
			Language: r.FormValue("language"),
			Strategy: r.FormValue("strategy"),
		},
	}

	switch req.Generation.Strategy {
	case "", script.StrategyAuto, script.StrategySingle, script.StrategySegmented, script.StrategyReAct:
	default:
		return req, fmt.Errorf("unknown strategy: %s", req.Generation.Strategy)
	}

	var err error
	if req.Generation.TargetMinutes, err = formFloat(r, "duration"); err != nil {
		return req, err
	}
	if r.FormValue("temperature") != "" {
		temperature, err := formFloat(r, "temperature")
		if err != nil {
			return req, err
		}
		req.Generation.Temperature = &temperature
	}
	maxTokens, err := formFloat(r, "max_tokens")
	if err != nil {
		return req, err
	}
	req.Generation.MaxTokens = int(maxTokens)

	if raw := r.FormValue("options"); raw != "" {
		var byKind map[provider.Kind]provider.Options
		if err := json.Unmarshal([]byte(raw), &byKind); err != nil {
			return req, fmt.Errorf("invalid options: %v", err)
		}
		for kind := range byKind {
			if !validKind(kind) {
				return req, fmt.Errorf("invalid options: unknown provider kind %s", kind)
			}
		}
		req.Overrides = byKind
	}

	return req, nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %s", key, raw)
	}
	return v, nil
}

func validKind(kind provider.Kind) bool {
	for _, k := range provider.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}

// mediaTypeOf prefers the file extension over the declared content type
func mediaTypeOf(filename, contentType string) string {
	if filepath.Ext(filename) != "" {
		return filename
	}
	if contentType == "" || contentType == "application/octet-stream" {
		return filename
	}
	return contentType
}

// GetAudio handles GET /api/v1/podcasts/{id}/audio
func (h *PodcastHandler) GetAudio(w http.ResponseWriter, r *http.Request) {
	if h.packaging == nil {
		respondError(w, "Artifact storage is disabled", http.StatusNotFound)
		return
	}
	runID := chi.URLParam(r, "id")

	audioPath, err := h.packaging.AudioPath(r.Context(), runID)
	if err != nil {
		respondFailure(w, err)
		return
	}
	reader, err := h.storage.Get(r.Context(), audioPath)
	if err != nil {
		respondFailure(w, err)
		return
	}
	defer reader.Close()

	format := strings.TrimPrefix(filepath.Ext(audioPath), ".")
	w.Header().Set("Content-Type", util.AudioContentType(format))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		slog.Warn("failed to stream audio", "run_id", runID, "error", err)
	}
}

// GetScript handles GET /api/v1/podcasts/{id}/script
func (h *PodcastHandler) GetScript(w http.ResponseWriter, r *http.Request) {
	if h.packaging == nil {
		respondError(w, "Artifact storage is disabled", http.StatusNotFound)
		return
	}
	runID := chi.URLParam(r, "id")
	if !util.ValidRunID(runID) {
		respondError(w, "not found", http.StatusNotFound)
		return
	}

	data, err := storage.ReadAll(r.Context(), h.storage, util.RunPath(runID, util.ScriptFile))
	if err != nil {
		respondFailure(w, err)
		return
	}

	var podcastScript types.PodcastScript
	if err := json.Unmarshal(data, &podcastScript); err != nil {
		respondFailure(w, fmt.Errorf("failed to decode script: %w", err))
		return
	}
	respondJSON(w, podcastScript, http.StatusOK)
}

// GetManifest handles GET /api/v1/podcasts/{id}
func (h *PodcastHandler) GetManifest(w http.ResponseWriter, r *http.Request) {
	if h.packaging == nil {
		respondError(w, "Artifact storage is disabled", http.StatusNotFound)
		return
	}
	manifest, err := h.packaging.LoadManifest(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondFailure(w, err)
		return
	}
	respondJSON(w, manifest, http.StatusOK)
}

// Download handles GET /api/v1/podcasts/{id}/download
func (h *PodcastHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h.packaging == nil {
		respondError(w, "Artifact storage is disabled", http.StatusNotFound)
		return
	}
	runID := chi.URLParam(r, "id")

	manifest, err := h.packaging.LoadManifest(r.Context(), runID)
	if err != nil {
		respondFailure(w, err)
		return
	}
	zipReader, err := h.packaging.PackageRun(r.Context(), runID)
	if err != nil {
		respondFailure(w, err)
		return
	}

	filename := util.SafeFilename(manifest.Title, "podcast-"+runID) + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, zipReader); err != nil {
		slog.Warn("failed to stream bundle", "run_id", runID, "error", err)
	}
}

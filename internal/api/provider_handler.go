package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/profile"
	"github.com/unalkalkan/podcaster/internal/provider"
)

// ProviderHandler exposes the provider registry and the profiles
type ProviderHandler struct {
	registry       *profile.Registry
	defaultProfile string
}

// NewProviderHandler creates a new provider handler
func NewProviderHandler(registry *profile.Registry, defaultProfile string) *ProviderHandler {
	return &ProviderHandler{
		registry:       registry,
		defaultProfile: defaultProfile,
	}
}

// ProfilesResponse lists the profiles with secrets masked
type ProfilesResponse struct {
	Default  string            `json:"default"`
	Profiles []profile.Profile `json:"profiles"`
}

// ListProviders handles GET /api/v1/providers
func (h *ProviderHandler) ListProviders(w http.ResponseWriter, r *http.Request) {
	infos := h.registry.Providers()
	if kind := provider.Kind(r.URL.Query().Get("kind")); kind != "" {
		if !validKind(kind) {
			respondError(w, "Unknown provider kind: "+string(kind), http.StatusBadRequest)
			return
		}
		filtered := infos[:0]
		for _, info := range infos {
			if info.Kind == kind {
				filtered = append(filtered, info)
			}
		}
		infos = filtered
	}
	respondJSON(w, map[string]any{"providers": infos}, http.StatusOK)
}

// ListProfiles handles GET /api/v1/profiles
func (h *ProviderHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := h.registry.Profiles()
	for i := range profiles {
		profiles[i] = h.registry.Redact(profiles[i])
	}
	respondJSON(w, ProfilesResponse{Default: h.defaultProfile, Profiles: profiles}, http.StatusOK)
}

// GetProfile handles GET /api/v1/profiles/{name}
func (h *ProviderHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.registry.Profile(chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, apperrors.PublicMessage(err), http.StatusNotFound)
		return
	}
	respondJSON(w, h.registry.Redact(p), http.StatusOK)
}

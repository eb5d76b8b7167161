// Package app assembles the registry, storage and pipeline from configuration.
package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/unalkalkan/podcaster/internal/pipeline"
	"github.com/unalkalkan/podcaster/internal/profile"
	"github.com/unalkalkan/podcaster/internal/storage"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// Version is reported by the server and the CLI
const Version = "0.3.0"

// App holds the long-lived components shared by the server and the CLI
type App struct {
	Config       *types.Config
	Registry     *profile.Registry
	Storage      storage.Adapter
	Orchestrator *pipeline.Orchestrator
}

// New builds the components described by cfg
func New(cfg *types.Config) (*App, error) {
	registry := profile.NewDefaultRegistry()
	if err := registry.LoadProfiles(cfg.Profiles); err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	if _, err := registry.Profile(cfg.Pipeline.DefaultProfile); err != nil {
		return nil, fmt.Errorf("invalid default profile: %w", err)
	}

	storageAdapter, err := storage.NewAdapter(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage adapter: %w", err)
	}
	if storageAdapter == nil {
		slog.Info("artifact storage disabled")
	} else {
		slog.Info("storage adapter initialized", "adapter", cfg.Storage.Adapter)
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		DefaultProfile:   cfg.Pipeline.DefaultProfile,
		RunTimeout:       time.Duration(cfg.Pipeline.RunTimeout) * time.Second,
		PublishArtifacts: cfg.Pipeline.PublishArtifacts,
	}, registry, storageAdapter)

	slog.Info("providers registered", "providers", len(registry.Providers()), "profiles", len(registry.Profiles()),
		"default_profile", cfg.Pipeline.DefaultProfile)

	return &App{
		Config:       cfg,
		Registry:     registry,
		Storage:      storageAdapter,
		Orchestrator: orchestrator,
	}, nil
}

// Close releases the storage adapter
func (a *App) Close() error {
	if a.Storage == nil {
		return nil
	}
	return a.Storage.Close()
}

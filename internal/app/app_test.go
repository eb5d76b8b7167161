package app

import (
	"testing"

	"github.com/unalkalkan/podcaster/internal/config"
	"github.com/unalkalkan/podcaster/pkg/types"
)

func TestNew(t *testing.T) {
	cfg := config.GetDefault()
	cfg.Storage.Local.BasePath = t.TempDir()
	cfg.Profiles = []types.ProfileConfig{{
		Name:     "offline",
		Document: types.ProviderBinding{Provider: "local"},
		LLM:      types.ProviderBinding{Provider: "openai"},
		Speech:   types.ProviderBinding{Provider: "basic"},
	}}
	cfg.Pipeline.DefaultProfile = "offline"

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	if a.Storage == nil || a.Orchestrator == nil {
		t.Fatal("expected storage and orchestrator")
	}
	if _, err := a.Registry.Profile("offline"); err != nil {
		t.Errorf("configured profile missing: %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Run("UnknownDefaultProfile", func(t *testing.T) {
		cfg := config.GetDefault()
		cfg.Storage.Adapter = "none"
		cfg.Pipeline.DefaultProfile = "missing"
		if _, err := New(cfg); err == nil {
			t.Error("expected error for an unknown default profile")
		}
	})

	t.Run("InvalidProfile", func(t *testing.T) {
		cfg := config.GetDefault()
		cfg.Storage.Adapter = "none"
		cfg.Profiles = []types.ProfileConfig{{Name: "broken", Document: types.ProviderBinding{Provider: "fax"}}}
		if _, err := New(cfg); err == nil {
			t.Error("expected error for an invalid profile")
		}
	})

	t.Run("StorageDisabled", func(t *testing.T) {
		cfg := config.GetDefault()
		cfg.Storage.Adapter = "none"
		a, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if a.Storage != nil {
			t.Error("expected no storage adapter")
		}
		if err := a.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
}

package health

import (
	"context"
	"fmt"

	"github.com/unalkalkan/podcaster/internal/profile"
	"github.com/unalkalkan/podcaster/internal/storage"
)

// StorageCheck checks the artifact store. A nil adapter means publishing is
// disabled, which degrades the service without making it unready.
func StorageCheck(adapter storage.Adapter) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if adapter == nil {
			return StatusDegraded, fmt.Errorf("artifact storage disabled")
		}
		if _, err := adapter.Exists(ctx, ".healthcheck"); err != nil {
			return StatusUnhealthy, err
		}
		return StatusHealthy, nil
	}
}

// ProfileCheck verifies that the default profile resolves in the registry
func ProfileCheck(registry *profile.Registry, defaultProfile string) CheckFunc {
	return func(ctx context.Context) (Status, error) {
		if _, err := registry.Profile(defaultProfile); err != nil {
			return StatusUnhealthy, err
		}
		if len(registry.Profiles()) == 0 {
			return StatusDegraded, fmt.Errorf("no profiles registered")
		}
		return StatusHealthy, nil
	}
}

package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/logger"
)

// ProvideSettingsManager provides the runtime settings document manager.
func ProvideSettingsManager(i do.Injector) (*config.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	manager := config.NewManager(cfg.Settings.Path)
	if !manager.FileExists() {
		log.Info("No settings file found, using defaults", "path", cfg.Settings.Path)
		return manager, nil
	}

	settings, err := manager.Current()
	if err != nil {
		return nil, err
	}

	log.Info("Settings loaded",
		"path", cfg.Settings.Path,
		"audible_region", settings.Providers.Audible.Region,
		"enrichment_enabled", settings.Enrich.Enabled,
	)

	return manager, nil
}

// SettingsWatcherHandle wraps the settings file watcher with its context
// for lifecycle management.
type SettingsWatcherHandle struct {
	*config.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SettingsWatcherHandle) Shutdown() error {
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideSettingsWatcher provides the watcher that reloads the settings
// document when it changes on disk.
func ProvideSettingsWatcher(i do.Injector) (*SettingsWatcherHandle, error) {
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)
	hc := do.MustInvoke[*HardcoverClientHandle](i)

	watcher, err := config.NewWatcher(manager, log.Logger, func(settings *config.Settings) {
		// The Hardcover token is the one credential held by a running
		// client; push the reloaded value so it applies immediately.
		hc.SetToken(hardcoverAPIKey(settings))

		log.Info("Settings changed on disk",
			"audible_region", settings.Providers.Audible.Region,
			"enrichment_enabled", settings.Enrich.Enabled,
			"log_level", settings.Logging.Level,
		)
	})
	if err != nil {
		return nil, err
	}

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := watcher.Start(ctx); err != nil {
			log.Warn("Settings watcher stopped", "error", err)
		}
	}()

	log.Info("Settings watcher started", "path", manager.Path())

	return &SettingsWatcherHandle{Watcher: watcher, cancel: cancel}, nil
}

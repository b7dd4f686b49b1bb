package service

import (
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/config"
)

// SettingsSource yields the current runtime settings document. Services
// read through it on each call so a reloaded document takes effect
// without a restart. *config.Manager satisfies it.
type SettingsSource interface {
	Current() (*config.Settings, error)
}

// currentSettings reads the settings document, falling back to defaults
// when no source is wired or the document cannot be read.
func currentSettings(src SettingsSource, logger *slog.Logger) *config.Settings {
	if src == nil {
		return config.DefaultSettings()
	}
	settings, err := src.Current()
	if err != nil {
		logger.Warn("settings unavailable, using defaults", "error", err)
		return config.DefaultSettings()
	}
	return settings
}

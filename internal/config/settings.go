package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Settings is the user-editable settings document, persisted as TOML.
// Unlike Config (process-level, env/flag driven), Settings can be read and
// rewritten at runtime through the API.
type Settings struct {
	Providers ProviderSettings   `toml:"providers" json:"providers"`
	Enrich    EnrichmentSettings `toml:"enrichment" json:"enrichment"`
	Logging   LoggingSettings    `toml:"logging" json:"logging"`
}

// ProviderSettings configures the metadata providers.
type ProviderSettings struct {
	Hardcover   HardcoverSettings   `toml:"hardcover" json:"hardcover"`
	GoogleBooks GoogleBooksSettings `toml:"google_books" json:"google_books"`
	OpenLibrary OpenLibrarySettings `toml:"open_library" json:"open_library"`
	Audible     AudibleSettings     `toml:"audible" json:"audible"`
	Bookshop    BookshopSettings    `toml:"bookshop" json:"bookshop"`

	// RateLimitRPS caps outbound requests per second per provider host.
	RateLimitRPS float64 `toml:"rate_limit_rps" json:"rate_limit_rps"`
	// TimeoutSeconds caps each outbound request.
	TimeoutSeconds float64 `toml:"timeout_seconds" json:"timeout_seconds"`
}

// HardcoverSettings configures the Hardcover GraphQL client.
type HardcoverSettings struct {
	APIKey  string `toml:"api_key" json:"api_key"`
	Enabled bool   `toml:"enabled" json:"enabled"`
}

// GoogleBooksSettings configures the Google Books client.
type GoogleBooksSettings struct {
	APIKey  string `toml:"api_key" json:"api_key"`
	Enabled bool   `toml:"enabled" json:"enabled"`
}

// OpenLibrarySettings configures the OpenLibrary client.
type OpenLibrarySettings struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// AudibleSettings configures the Audible client.
type AudibleSettings struct {
	Region  string `toml:"region" json:"region"`
	Enabled bool   `toml:"enabled" json:"enabled"`
}

// BookshopSettings configures the Bookshop search client.
type BookshopSettings struct {
	Enabled bool `toml:"enabled" json:"enabled"`
}

// EnrichmentSettings configures background catalog enrichment.
type EnrichmentSettings struct {
	// Enabled toggles the background enrichment worker.
	Enabled bool `toml:"enabled" json:"enabled"`
	// MaxBooksPerAuthor caps how many works a single enrichment pass imports.
	MaxBooksPerAuthor int `toml:"max_books_per_author" json:"max_books_per_author"`
}

// LoggingSettings configures runtime-adjustable logging behavior.
type LoggingSettings struct {
	Level string `toml:"level" json:"level"`
}

// DefaultSettings returns the settings applied when no document exists yet.
func DefaultSettings() *Settings {
	return &Settings{
		Providers: ProviderSettings{
			Hardcover:      HardcoverSettings{Enabled: true},
			GoogleBooks:    GoogleBooksSettings{Enabled: true},
			OpenLibrary:    OpenLibrarySettings{Enabled: true},
			Audible:        AudibleSettings{Region: "us", Enabled: true},
			Bookshop:       BookshopSettings{Enabled: true},
			RateLimitRPS:   2,
			TimeoutSeconds: 30,
		},
		Enrich: EnrichmentSettings{
			Enabled:           true,
			MaxBooksPerAuthor: 100,
		},
		Logging: LoggingSettings{Level: "info"},
	}
}

// Validate checks settings for values that would break the catalog at runtime.
func (s *Settings) Validate() error {
	validRegions := map[string]bool{
		"us": true, "uk": true, "de": true, "fr": true, "au": true,
		"ca": true, "jp": true, "it": true, "in": true, "es": true,
	}
	if !validRegions[s.Providers.Audible.Region] {
		return fmt.Errorf("invalid audible region: %s", s.Providers.Audible.Region)
	}

	if s.Providers.RateLimitRPS <= 0 {
		return fmt.Errorf("rate_limit_rps must be positive, got %g", s.Providers.RateLimitRPS)
	}
	if s.Providers.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %g", s.Providers.TimeoutSeconds)
	}

	if s.Enrich.MaxBooksPerAuthor < 1 {
		return fmt.Errorf("max_books_per_author must be at least 1, got %d", s.Enrich.MaxBooksPerAuthor)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(s.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", s.Logging.Level)
	}

	return nil
}

// Masked returns the settings as a nested map with sensitive values obscured.
// Keys containing api_key, token, secret, or password are masked.
func (s *Settings) Masked() (map[string]any, error) {
	raw, err := toml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize settings: %w", err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to rebuild settings tree: %w", err)
	}

	maskSensitive(tree)
	return tree, nil
}

func maskSensitive(tree map[string]any) {
	for key, value := range tree {
		switch v := value.(type) {
		case map[string]any:
			maskSensitive(v)
		case string:
			if isSensitiveKey(key) && v != "" {
				tree[key] = maskValue(v)
			}
		}
	}
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, marker := range []string{"api_key", "token", "secret", "password"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

// maskValue keeps the first and last four characters of long values so the
// owner can still recognize which key is configured.
func maskValue(v string) string {
	if len(v) <= 8 {
		return strings.Repeat("*", len(v))
	}
	return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
}

// Manager owns the settings document: lazy loading, modification-time based
// reloading, deep-merge updates, and persistence back to disk.
type Manager struct {
	path string

	mu       sync.RWMutex
	settings *Settings
	mtime    time.Time
}

// NewManager creates a settings manager for the document at path. The file
// is not read until first use.
func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Path returns the settings document location.
func (m *Manager) Path() string {
	return m.path
}

// FileExists reports whether the settings document is present on disk.
func (m *Manager) FileExists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Current returns the active settings, reloading from disk if the file
// changed since the last read. A missing file yields defaults.
func (m *Manager) Current() (*Settings, error) {
	return m.load(false)
}

// Reload forces a re-read of the settings document.
func (m *Manager) Reload() (*Settings, error) {
	return m.load(true)
}

func (m *Manager) load(force bool) (*Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, statErr := os.Stat(m.path)

	if !force && m.settings != nil {
		if statErr != nil || info.ModTime().Equal(m.mtime) {
			return m.settings, nil
		}
	}

	if statErr != nil {
		// No document yet: serve defaults without persisting them.
		if m.settings == nil {
			m.settings = DefaultSettings()
		}
		return m.settings, nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := DefaultSettings()
	if err := toml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings file: %w", err)
	}

	m.settings = settings
	m.mtime = info.ModTime()
	return m.settings, nil
}

// Save validates and persists settings, making them the active document.
func (m *Manager) Save(settings *Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	m.settings = settings
	if info, err := os.Stat(m.path); err == nil {
		m.mtime = info.ModTime()
	}
	return nil
}

// Update deep-merges a partial settings tree into the active document,
// validates the result, and persists it. Nested tables merge field-wise;
// scalar values are replaced.
func (m *Manager) Update(patch map[string]any) (*Settings, error) {
	current, err := m.Current()
	if err != nil {
		return nil, err
	}

	raw, err := toml.Marshal(current)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize current settings: %w", err)
	}

	var tree map[string]any
	if err := toml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to rebuild settings tree: %w", err)
	}

	deepMerge(tree, patch)

	merged, err := toml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize merged settings: %w", err)
	}

	settings := DefaultSettings()
	if err := toml.Unmarshal(merged, settings); err != nil {
		return nil, fmt.Errorf("invalid settings update: %w", err)
	}

	if err := m.Save(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

func deepMerge(base, patch map[string]any) {
	for key, value := range patch {
		if patchTable, ok := value.(map[string]any); ok {
			if baseTable, ok := base[key].(map[string]any); ok {
				deepMerge(baseTable, patchTable)
				continue
			}
		}
		base[key] = value
	}
}

// String serializes the active settings document as TOML.
func (m *Manager) String() (string, error) {
	current, err := m.Current()
	if err != nil {
		return "", err
	}
	data, err := toml.Marshal(current)
	if err != nil {
		return "", fmt.Errorf("failed to serialize settings: %w", err)
	}
	return string(data), nil
}

// FromString parses, validates, and persists a raw TOML document.
func (m *Manager) FromString(doc string) (*Settings, error) {
	settings := DefaultSettings()
	if err := toml.Unmarshal([]byte(doc), settings); err != nil {
		return nil, fmt.Errorf("invalid TOML: %w", err)
	}
	if err := m.Save(settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// ValidateString checks a raw TOML document without persisting it. It
// reports TOML syntax validity and settings validity separately.
func (m *Manager) ValidateString(doc string) (tomlValid bool, settingsValid bool, errs []string) {
	settings := DefaultSettings()
	if err := toml.Unmarshal([]byte(doc), settings); err != nil {
		return false, false, []string{fmt.Sprintf("TOML syntax error: %v", err)}
	}
	if err := settings.Validate(); err != nil {
		return true, false, []string{fmt.Sprintf("settings validation error: %v", err)}
	}
	return true, true, nil
}

// ValidateFile checks the on-disk document without making it active.
func (m *Manager) ValidateFile() (bool, string) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return false, fmt.Sprintf("cannot read %s: %v", m.path, err)
	}
	settings := DefaultSettings()
	if err := toml.Unmarshal(data, settings); err != nil {
		return false, fmt.Sprintf("invalid TOML: %v", err)
	}
	if err := settings.Validate(); err != nil {
		return false, fmt.Sprintf("invalid settings: %v", err)
	}
	return true, "settings file is valid"
}

package providers

import (
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/logger"
	"github.com/inkwellapp/inkwell-server/internal/metadata/audible"
	"github.com/inkwellapp/inkwell-server/internal/metadata/bookshop"
	"github.com/inkwellapp/inkwell-server/internal/metadata/googlebooks"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/metadata/openlibrary"
)

// providerLimits extracts the outbound request rate and timeout from
// the settings document.
func providerLimits(settings *config.Settings) (float64, time.Duration) {
	return settings.Providers.RateLimitRPS,
		time.Duration(settings.Providers.TimeoutSeconds * float64(time.Second))
}

// hardcoverAPIKey resolves the Hardcover bearer token. The settings
// document wins; the env var covers deployments that never write one.
func hardcoverAPIKey(settings *config.Settings) string {
	if key := settings.Providers.Hardcover.APIKey; key != "" {
		return key
	}
	return os.Getenv("HARDCOVER_API_KEY")
}

// HardcoverClientHandle wraps the Hardcover client with shutdown capability.
type HardcoverClientHandle struct {
	*hardcover.Client
}

// Shutdown implements do.Shutdownable.
func (h *HardcoverClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideHardcoverClient provides the Hardcover GraphQL client.
func ProvideHardcoverClient(i do.Injector) (*HardcoverClientHandle, error) {
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	settings, err := manager.Current()
	if err != nil {
		return nil, err
	}

	apiKey := hardcoverAPIKey(settings)
	if apiKey == "" {
		log.Warn("Hardcover API key not configured, metadata lookups will fail until one is set")
	}

	client := hardcover.New(apiKey, log.Logger)
	client.SetLimits(providerLimits(settings))
	log.Info("Hardcover client initialized")

	return &HardcoverClientHandle{Client: client}, nil
}

// GoogleBooksClientHandle wraps the Google Books client with shutdown capability.
type GoogleBooksClientHandle struct {
	*googlebooks.Client
}

// Shutdown implements do.Shutdownable.
func (h *GoogleBooksClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideGoogleBooksClient provides the Google Books API client.
func ProvideGoogleBooksClient(i do.Injector) (*GoogleBooksClientHandle, error) {
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	settings, err := manager.Current()
	if err != nil {
		return nil, err
	}

	client := googlebooks.New(settings.Providers.GoogleBooks.APIKey, log.Logger)
	client.SetLimits(providerLimits(settings))
	log.Info("Google Books client initialized")

	return &GoogleBooksClientHandle{Client: client}, nil
}

// OpenLibraryClientHandle wraps the OpenLibrary client with shutdown capability.
type OpenLibraryClientHandle struct {
	*openlibrary.Client
}

// Shutdown implements do.Shutdownable.
func (h *OpenLibraryClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideOpenLibraryClient provides the OpenLibrary API client.
func ProvideOpenLibraryClient(i do.Injector) (*OpenLibraryClientHandle, error) {
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	settings, err := manager.Current()
	if err != nil {
		return nil, err
	}

	client := openlibrary.New(log.Logger)
	client.SetLimits(providerLimits(settings))
	log.Info("OpenLibrary client initialized")

	return &OpenLibraryClientHandle{Client: client}, nil
}

// AudibleClientHandle wraps the Audible client with shutdown capability.
type AudibleClientHandle struct {
	*audible.Client
	Region audible.Region
}

// Shutdown implements do.Shutdownable.
func (h *AudibleClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideAudibleClient provides the Audible API client.
func ProvideAudibleClient(i do.Injector) (*AudibleClientHandle, error) {
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	settings, err := manager.Current()
	if err != nil {
		return nil, err
	}

	region := audible.Region(settings.Providers.Audible.Region)
	if !region.Valid() {
		log.Warn("Invalid Audible region, falling back to US",
			"configured", settings.Providers.Audible.Region,
		)
		region = audible.RegionUS
	}

	client := audible.New(log.Logger)
	client.SetLimits(providerLimits(settings))
	log.Info("Audible client initialized", "region", region)

	return &AudibleClientHandle{Client: client, Region: region}, nil
}

// BookshopClientHandle wraps the Bookshop search client with shutdown capability.
type BookshopClientHandle struct {
	*bookshop.Client
}

// Shutdown implements do.Shutdownable.
func (h *BookshopClientHandle) Shutdown() error {
	h.Client.Close()
	return nil
}

// ProvideBookshopClient provides the Bookshop search client.
func ProvideBookshopClient(i do.Injector) (*BookshopClientHandle, error) {
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	settings, err := manager.Current()
	if err != nil {
		return nil, err
	}

	client := bookshop.New(log.Logger)
	client.SetLimits(providerLimits(settings))
	log.Info("Bookshop client initialized")

	return &BookshopClientHandle{Client: client}, nil
}

// Package di provides dependency injection configuration for the Inkwell server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/di/providers"
	"github.com/inkwellapp/inkwell-server/internal/logger"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Settings document
	do.Provide(injector, providers.ProvideSettingsManager)
	do.Provide(injector, providers.ProvideSettingsWatcher)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Metadata layer
	do.Provide(injector, providers.ProvideHardcoverClient)
	do.Provide(injector, providers.ProvideGoogleBooksClient)
	do.Provide(injector, providers.ProvideOpenLibraryClient)
	do.Provide(injector, providers.ProvideAudibleClient)
	do.Provide(injector, providers.ProvideBookshopClient)

	// Business services
	do.Provide(injector, providers.ProvideResolver)
	do.Provide(injector, providers.ProvideEnricher)
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideAuthorService)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideSeriesService)
	do.Provide(injector, providers.ProvideSearchService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*config.Manager](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)

	// Metadata clients
	_ = do.MustInvoke[*providers.HardcoverClientHandle](injector)
	_ = do.MustInvoke[*providers.GoogleBooksClientHandle](injector)
	_ = do.MustInvoke[*providers.OpenLibraryClientHandle](injector)
	_ = do.MustInvoke[*providers.AudibleClientHandle](injector)
	_ = do.MustInvoke[*providers.BookshopClientHandle](injector)

	// Business services
	_ = do.MustInvoke[*service.Resolver](injector)
	_ = do.MustInvoke[*providers.EnricherHandle](injector)
	_ = do.MustInvoke[*service.TagService](injector)
	_ = do.MustInvoke[*service.AuthorService](injector)
	_ = do.MustInvoke[*service.BookService](injector)
	_ = do.MustInvoke[*service.SeriesService](injector)
	_ = do.MustInvoke[*service.SearchService](injector)

	// Workers and server
	_ = do.MustInvoke[*providers.SettingsWatcherHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}

package providers

import (
	"github.com/samber/do/v2"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/logger"
	"github.com/inkwellapp/inkwell-server/internal/service"
)

// ProvideResolver provides the entity resolver shared by the catalog
// services and the enrichment worker.
func ProvideResolver(i do.Injector) (*service.Resolver, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewResolver(storeHandle.Store, log.Logger), nil
}

// EnricherHandle wraps the enrichment worker with shutdown capability.
type EnricherHandle struct {
	*service.Enricher
}

// Shutdown implements do.Shutdownable.
func (h *EnricherHandle) Shutdown() error {
	h.Enricher.Stop()
	return nil
}

// ProvideEnricher provides the background bibliography enrichment worker.
func ProvideEnricher(i do.Injector) (*EnricherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hcHandle := do.MustInvoke[*HardcoverClientHandle](i)
	resolver := do.MustInvoke[*service.Resolver](i)
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	enricher := service.NewEnricher(
		storeHandle.Store,
		hcHandle.Client,
		resolver,
		manager,
		cfg.Catalog.EnrichmentQueueSize,
		log.Logger,
	)
	enricher.Start()

	log.Info("Enrichment worker started", "queue_size", cfg.Catalog.EnrichmentQueueSize)

	return &EnricherHandle{Enricher: enricher}, nil
}

// ProvideAuthorService provides the author catalog service.
func ProvideAuthorService(i do.Injector) (*service.AuthorService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hcHandle := do.MustInvoke[*HardcoverClientHandle](i)
	resolver := do.MustInvoke[*service.Resolver](i)
	enricherHandle := do.MustInvoke[*EnricherHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthorService(
		storeHandle.Store,
		hcHandle.Client,
		resolver,
		enricherHandle.Enricher,
		log.Logger,
	), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTagService(storeHandle.Store, log.Logger), nil
}

// ProvideBookService provides the book catalog service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hcHandle := do.MustInvoke[*HardcoverClientHandle](i)
	resolver := do.MustInvoke[*service.Resolver](i)
	tags := do.MustInvoke[*service.TagService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(
		storeHandle.Store,
		hcHandle.Client,
		resolver,
		tags,
		log.Logger,
	), nil
}

// ProvideSeriesService provides the series catalog service.
func ProvideSeriesService(i do.Injector) (*service.SeriesService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	hcHandle := do.MustInvoke[*HardcoverClientHandle](i)
	resolver := do.MustInvoke[*service.Resolver](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSeriesService(
		storeHandle.Store,
		hcHandle.Client,
		resolver,
		log.Logger,
	), nil
}

// ProvideSearchService provides the multi-provider search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	hcHandle := do.MustInvoke[*HardcoverClientHandle](i)
	gbHandle := do.MustInvoke[*GoogleBooksClientHandle](i)
	olHandle := do.MustInvoke[*OpenLibraryClientHandle](i)
	auHandle := do.MustInvoke[*AudibleClientHandle](i)
	bsHandle := do.MustInvoke[*BookshopClientHandle](i)
	manager := do.MustInvoke[*config.Manager](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(
		hcHandle.Client,
		gbHandle.Client,
		olHandle.Client,
		auHandle.Client,
		bsHandle.Client,
		auHandle.Region,
		manager,
		log.Logger,
	), nil
}

package service

import (
	"context"
	"log/slog"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/metadata/audible"
	"github.com/inkwellapp/inkwell-server/internal/metadata/bookshop"
	"github.com/inkwellapp/inkwell-server/internal/metadata/googlebooks"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/metadata/openlibrary"
)

// Provider names accepted by the pass-through search surface.
const (
	ProviderHardcover   = "hardcover"
	ProviderGoogleBooks = "googlebooks"
	ProviderOpenLibrary = "openlibrary"
	ProviderAudible     = "audible"
	ProviderBookshop    = "bookshop"
)

// SearchService fans a free-text query out to a named provider and
// returns that provider's typed results untouched.
type SearchService struct {
	hardcover   *hardcover.Client
	googlebooks *googlebooks.Client
	openlibrary *openlibrary.Client
	audible     *audible.Client
	bookshop    *bookshop.Client

	audibleRegion audible.Region
	settings      SettingsSource
	logger        *slog.Logger
}

// NewSearchService creates a new pass-through search service. The
// settings source supplies per-provider enable flags and the Audible
// region on each call; the region argument is the fallback when the
// document carries no valid one.
func NewSearchService(
	hc *hardcover.Client,
	gb *googlebooks.Client,
	ol *openlibrary.Client,
	au *audible.Client,
	bs *bookshop.Client,
	region audible.Region,
	settings SettingsSource,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		hardcover:     hc,
		googlebooks:   gb,
		openlibrary:   ol,
		audible:       au,
		bookshop:      bs,
		audibleRegion: region,
		settings:      settings,
		logger:        logger,
	}
}

// Search runs a query against one provider. Provider no-data and
// provider failure both surface as upstream errors on this synchronous
// path.
func (s *SearchService) Search(ctx context.Context, provider, query string) (any, error) {
	if query == "" {
		return nil, errors.Validation("q query parameter is required")
	}

	settings := currentSettings(s.settings, s.logger)
	enabled, known := providerEnabled(settings, provider)
	if !known {
		return nil, errors.Validationf("unknown provider %q", provider)
	}
	if !enabled {
		return nil, errors.Validationf("provider %q is disabled", provider)
	}

	var (
		results any
		err     error
	)
	switch provider {
	case ProviderHardcover:
		results, err = s.hardcover.SearchBook(ctx, query)
	case ProviderGoogleBooks:
		results, err = s.googlebooks.Search(ctx, query)
	case ProviderOpenLibrary:
		results, err = s.openlibrary.SearchBooks(ctx, query)
	case ProviderAudible:
		results, err = s.audible.Search(ctx, s.audibleRegionFrom(settings), audible.SearchParams{Keywords: query})
	case ProviderBookshop:
		results, err = s.bookshop.Search(ctx, query)
	}

	if err != nil {
		s.logger.Warn("provider search failed", "provider", provider, "query", query, "error", err)
		return nil, errors.Wrapf(err, errors.CodeUpstream, "%s search failed", provider)
	}
	return results, nil
}

// providerEnabled reports whether the named provider exists and is
// enabled in the settings document.
func providerEnabled(settings *config.Settings, provider string) (enabled, known bool) {
	switch provider {
	case ProviderHardcover:
		return settings.Providers.Hardcover.Enabled, true
	case ProviderGoogleBooks:
		return settings.Providers.GoogleBooks.Enabled, true
	case ProviderOpenLibrary:
		return settings.Providers.OpenLibrary.Enabled, true
	case ProviderAudible:
		return settings.Providers.Audible.Enabled, true
	case ProviderBookshop:
		return settings.Providers.Bookshop.Enabled, true
	}
	return false, false
}

// audibleRegionFrom resolves the marketplace region, preferring the
// settings document over the construction-time fallback.
func (s *SearchService) audibleRegionFrom(settings *config.Settings) audible.Region {
	if r := audible.Region(settings.Providers.Audible.Region); r.Valid() {
		return r
	}
	return s.audibleRegion
}

// Package audible provides a client for the Audible catalog API.
package audible

import "time"

// Region represents an Audible marketplace.
type Region string

const (
	RegionUS Region = "us"
	RegionUK Region = "uk"
	RegionDE Region = "de"
	RegionFR Region = "fr"
	RegionAU Region = "au"
	RegionCA Region = "ca"
	RegionJP Region = "jp"
	RegionIT Region = "it"
	RegionIN Region = "in"
	RegionES Region = "es"
)

// AllRegions returns all supported Audible regions.
func AllRegions() []Region {
	return []Region{
		RegionUS, RegionUK, RegionDE, RegionFR, RegionAU,
		RegionCA, RegionJP, RegionIT, RegionIN, RegionES,
	}
}

// Host returns the API host for this region.
func (r Region) Host() string {
	hosts := map[Region]string{
		RegionUS: "api.audible.com",
		RegionUK: "api.audible.co.uk",
		RegionDE: "api.audible.de",
		RegionFR: "api.audible.fr",
		RegionAU: "api.audible.com.au",
		RegionCA: "api.audible.ca",
		RegionJP: "api.audible.co.jp",
		RegionIT: "api.audible.it",
		RegionIN: "api.audible.in",
		RegionES: "api.audible.es",
	}
	if host, ok := hosts[r]; ok {
		return host
	}
	return hosts[RegionUS]
}

// Valid returns true if this is a recognized region.
func (r Region) Valid() bool {
	switch r {
	case RegionUS, RegionUK, RegionDE, RegionFR, RegionAU,
		RegionCA, RegionJP, RegionIT, RegionIN, RegionES:
		return true
	}
	return false
}

// Contributor represents an author or narrator.
type Contributor struct {
	ASIN string `json:"asin,omitempty"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"` // "author", "narrator"
}

// SeriesEntry represents a title's position in a series. The position is
// kept as the raw catalog string since Audible uses ranges like "1-3".
type SeriesEntry struct {
	ASIN     string `json:"asin,omitempty"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
}

// Product is a normalized Audible catalog entry.
type Product struct {
	ASIN           string        `json:"asin"`
	Title          string        `json:"title"`
	Subtitle       string        `json:"subtitle,omitempty"`
	Authors        []Contributor `json:"authors"`
	Narrators      []Contributor `json:"narrators,omitempty"`
	Publisher      string        `json:"publisher,omitempty"`
	ReleaseDate    time.Time     `json:"release_date,omitempty"`
	RuntimeMinutes int           `json:"runtime_minutes,omitempty"`
	Description    string        `json:"description,omitempty"`
	Series         []SeriesEntry `json:"series,omitempty"`
	Language       string        `json:"language,omitempty"`
}

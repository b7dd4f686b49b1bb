package api

import (
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/metadata/audible"
	"github.com/inkwellapp/inkwell-server/internal/metadata/bookshop"
	"github.com/inkwellapp/inkwell-server/internal/metadata/googlebooks"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/metadata/openlibrary"
	"github.com/inkwellapp/inkwell-server/internal/service"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

type testServer struct {
	t        *testing.T
	server   *Server
	settings *config.Manager
}

// setupTestServer builds the full handler stack against a temp-file
// store, a stub Hardcover server, and a stub shared by the remaining
// providers. A nil hardcover handler answers every query with zero hits.
func setupTestServer(t *testing.T, hc http.HandlerFunc) *testServer {
	t.Helper()

	if hc == nil {
		hc = func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, searchEnvelope())
		}
	}
	hcServer := httptest.NewServer(hc)
	t.Cleanup(hcServer.Close)

	providers := httptest.NewServer(http.HandlerFunc(stubProviders))
	t.Cleanup(providers.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	hcClient := hardcover.NewWithEndpoint(hcServer.URL, "test-token", logger)
	t.Cleanup(hcClient.Close)
	gbClient := googlebooks.NewWithBaseURL(providers.URL, "test-key", logger)
	t.Cleanup(gbClient.Close)
	olClient := openlibrary.NewWithBaseURL(providers.URL, logger)
	t.Cleanup(olClient.Close)
	auClient := audible.NewWithBaseURL(providers.URL, logger)
	t.Cleanup(auClient.Close)
	bsClient := bookshop.NewWithBaseURL(providers.URL, logger)
	t.Cleanup(bsClient.Close)

	settings := config.NewManager(filepath.Join(t.TempDir(), "settings.toml"))

	resolver := service.NewResolver(st, logger)
	enricher := service.NewEnricher(st, hcClient, resolver, settings, 8, logger)
	t.Cleanup(enricher.Stop)

	tags := service.NewTagService(st, logger)

	server := NewServer(
		st,
		service.NewAuthorService(st, hcClient, resolver, enricher, logger),
		service.NewBookService(st, hcClient, resolver, tags, logger),
		service.NewSeriesService(st, hcClient, resolver, logger),
		tags,
		service.NewSearchService(hcClient, gbClient, olClient, auClient, bsClient, audible.RegionUS, settings, logger),
		settings,
		logger,
	)

	return &testServer{t: t, server: server, settings: settings}
}

// stubProviders serves canned responses for the non-GraphQL providers,
// dispatching on path the way each real API lays out its endpoints.
func stubProviders(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/volumes"):
		io.WriteString(w, `{"items":[{"id":"gb-1","volumeInfo":{"title":"Dune","authors":["Frank Herbert"],"publishedDate":"1965"}}]}`)
	case strings.HasPrefix(r.URL.Path, "/search/books.json"):
		io.WriteString(w, `{"docs":[{"key":"/works/OL1W","title":"Dune","author_name":["Frank Herbert"],"first_publish_year":1965}]}`)
	case strings.HasPrefix(r.URL.Path, "/1.0/catalog/products"):
		io.WriteString(w, `{"products":[{"asin":"B0DUNE0001","title":"Dune","authors":[{"name":"Frank Herbert"}]}]}`)
	default:
		io.WriteString(w, `{"results":[{"hits":[{"ean":"9780441013593","title":"Dune","primary_contributor":"Frank Herbert"}]}]}`)
	}
}

func (ts *testServer) do(method, path, contentType, body string) *httptest.ResponseRecorder {
	ts.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) Get(path string) *httptest.ResponseRecorder {
	return ts.do(http.MethodGet, path, "", "")
}

func (ts *testServer) Post(path, body string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, path, "application/json", body)
}

func (ts *testServer) Put(path, body string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPut, path, "application/json", body)
}

func (ts *testServer) Patch(path, body string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPatch, path, "application/json", body)
}

func (ts *testServer) Delete(path string) *httptest.ResponseRecorder {
	return ts.do(http.MethodDelete, path, "", "")
}

// decodeData unmarshals the data field of a response envelope.
func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var env struct {
		Data    T      `json:"data"`
		Error   string `json:"error"`
		Success bool   `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Data
}

// searchEnvelope builds a Hardcover search response from raw hit
// documents.
func searchEnvelope(docs ...string) string {
	hits := make([]string, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, `{"document":`+d+`}`)
	}
	return `{"data":{"search":{"results":{"hits":[` + strings.Join(hits, ",") + `]}}}}`
}

// stubHardcover answers search queries with searchBody and author works
// queries with worksBody.
func stubHardcover(t *testing.T, searchBody, worksBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.UnmarshalRead(r.Body, &req); err != nil {
			t.Errorf("decode graphql request: %v", err)
		}
		if strings.Contains(req.Query, "contributions") {
			io.WriteString(w, worksBody)
			return
		}
		io.WriteString(w, searchBody)
	}
}

const herbertWorks = `{"data":{"contributions":[
	{"book":{"id":201,"title":"Dune","description":"Spice.","editions":[{"isbn_13":"9780441013593"}],"book_series":[{"position":1,"series":{"id":77,"name":"Dune Saga"}}]}},
	{"book":{"id":202,"title":"Dune Messiah","description":"","editions":[],"book_series":[]}}
]}}`

type authorPayload struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Bio          string            `json:"bio"`
	ExternalRefs map[string]string `json:"external_refs"`
	Books        []struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Status  string `json:"status"`
		AStatus string `json:"a_status"`
		PStatus string `json:"p_status"`
	} `json:"books"`
}

type bookPayload struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Status  string `json:"status"`
	AStatus string `json:"a_status"`
	PStatus string `json:"p_status"`
	Authors []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"authors"`
	Tags []string `json:"tags"`
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Get("/health")
	assert.Equal(t, http.StatusOK, resp.Code)

	health := decodeData[HealthResponse](t, resp)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Components["database"].Status)
	assert.Equal(t, "healthy", health.Components["settings"].Status)
	assert.Equal(t, "using defaults, no settings file", health.Components["settings"].Message)
}

func TestCreateAuthorFromLookup(t *testing.T) {
	ts := setupTestServer(t, stubHardcover(t,
		searchEnvelope(`{"id":"42","name":"Frank Herbert","bio":"Ecology."}`),
		herbertWorks,
	))

	resp := ts.Post("/api/v1/authors", `{"name":"frank herbert"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	author := decodeData[authorPayload](t, resp)
	assert.Equal(t, "Frank Herbert", author.Name)
	assert.Equal(t, "Ecology.", author.Bio)
	assert.Equal(t, "42", author.ExternalRefs["hardcover_id"])
	require.NotEmpty(t, author.ID)

	resp = ts.Get("/api/v1/authors/" + author.ID)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, author.Name, decodeData[authorPayload](t, resp).Name)
}

func TestCreateAuthorNoProviderMatch(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Post("/api/v1/authors", `{"name":"Nobody At All"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.Get("/api/v1/authors")
	require.Equal(t, http.StatusOK, resp.Code)
	page := decodeData[struct {
		Items []authorPayload `json:"items"`
		Total int             `json:"total"`
	}](t, resp)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Items)
}

func TestCreateAuthorValidation(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Post("/api/v1/authors", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.Post("/api/v1/authors", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestRefreshAuthorBooks(t *testing.T) {
	ts := setupTestServer(t, stubHardcover(t,
		searchEnvelope(`{"id":"42","name":"Frank Herbert","bio":""}`),
		herbertWorks,
	))

	resp := ts.Post("/api/v1/authors", `{"name":"Frank Herbert"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	author := decodeData[authorPayload](t, resp)

	resp = ts.Post("/api/v1/authors/update_single_author_books/"+author.ID, "")
	require.Equal(t, http.StatusOK, resp.Code)

	refreshed := decodeData[authorPayload](t, resp)
	require.Len(t, refreshed.Books, 2)
	for _, b := range refreshed.Books {
		assert.Equal(t, "Wanted", b.Status)
		assert.Equal(t, "Wanted", b.AStatus)
		assert.Equal(t, "Wanted", b.PStatus)
	}

	// A second refresh must not duplicate anything.
	resp = ts.Post("/api/v1/authors/update_single_author_books/"+author.ID, "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decodeData[authorPayload](t, resp).Books, 2)

	resp = ts.Post("/api/v1/authors/update_single_author_books/auth-missing", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestFindAuthors(t *testing.T) {
	ts := setupTestServer(t, stubHardcover(t,
		searchEnvelope(`{"id":"42","name":"Frank Herbert","bio":""}`),
		herbertWorks,
	))

	resp := ts.Get("/api/v1/authors/find_authors?name=herbert")
	require.Equal(t, http.StatusOK, resp.Code)

	found := decodeData[[]struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Source string `json:"source"`
	}](t, resp)
	require.Len(t, found, 1)
	assert.Equal(t, "Frank Herbert", found[0].Name)
	assert.Equal(t, "hardcover", found[0].Source)
}

func TestBookLifecycle(t *testing.T) {
	ts := setupTestServer(t, stubHardcover(t,
		searchEnvelope(`{"id":"301","title":"Dune","description":"Spice.","author_names":["Frank Herbert"]}`),
		`{"data":{"contributions":[]}}`,
	))

	resp := ts.Post("/api/v1/books", `{"title":"dune"}`)
	require.Equal(t, http.StatusCreated, resp.Code)

	book := decodeData[bookPayload](t, resp)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "Wanted", book.Status)
	require.Len(t, book.Authors, 1)
	assert.Equal(t, "Frank Herbert", book.Authors[0].Name)

	resp = ts.Patch("/api/v1/books/"+book.ID, `{"a_status":"Have"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	patched := decodeData[bookPayload](t, resp)
	assert.Equal(t, "Wanted", patched.Status)
	assert.Equal(t, "Have", patched.AStatus)
	assert.Equal(t, "Wanted", patched.PStatus)

	resp = ts.Patch("/api/v1/books/"+book.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.Patch("/api/v1/books/"+book.ID, `{"a_status":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.Put("/api/v1/books/"+book.ID, `{"title":"Dune","description":"Updated.","tags":["Sci-Fi","Classics"]}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.ElementsMatch(t, []string{"Sci-Fi", "Classics"}, decodeData[bookPayload](t, resp).Tags)

	resp = ts.Delete("/api/v1/books/" + book.ID)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.Get("/api/v1/books/" + book.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTagEndpoints(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Post("/api/v1/tags", `{"name":"Fantasy","description":"Dragons and such"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	tag := decodeData[struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}](t, resp)
	assert.Equal(t, "Fantasy", tag.Name)

	resp = ts.Post("/api/v1/tags", `{"name":"Fantasy"}`)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = ts.Get("/api/v1/tags")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.Put("/api/v1/tags/"+tag.ID, `{"name":"Epic Fantasy"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	renamed := decodeData[struct {
		Name string `json:"name"`
	}](t, resp)
	assert.Equal(t, "Epic Fantasy", renamed.Name)

	resp = ts.Delete("/api/v1/tags/" + tag.ID)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp = ts.Get("/api/v1/tags/" + tag.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestSeriesEndpoints(t *testing.T) {
	ts := setupTestServer(t, stubHardcover(t,
		searchEnvelope(`{"id":"77","name":"Dune Saga"}`),
		`{"data":{"contributions":[]}}`,
	))

	resp := ts.Post("/api/v1/series", `{"name":"dune saga"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	created := decodeData[struct {
		ID           string            `json:"id"`
		Name         string            `json:"name"`
		ExternalRefs map[string]string `json:"external_refs"`
	}](t, resp)
	assert.Equal(t, "Dune Saga", created.Name)
	assert.Equal(t, "77", created.ExternalRefs["hardcover_id"])

	resp = ts.Patch("/api/v1/series/"+created.ID, `{"description":"Six books."}`)
	require.Equal(t, http.StatusOK, resp.Code)
	patched := decodeData[struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}](t, resp)
	assert.Equal(t, "Dune Saga", patched.Name)
	assert.Equal(t, "Six books.", patched.Description)

	resp = ts.Patch("/api/v1/series/"+created.ID, `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestProviderSearch(t *testing.T) {
	ts := setupTestServer(t, stubHardcover(t,
		searchEnvelope(`{"id":"301","title":"Dune","description":"","author_names":["Frank Herbert"]}`),
		`{"data":{"contributions":[]}}`,
	))

	// Hardcover returns the single best match; the rest return hit lists.
	resp := ts.Get("/api/v1/search/hardcover?q=dune")
	require.Equal(t, http.StatusOK, resp.Code)
	hit := decodeData[map[string]any](t, resp)
	assert.Equal(t, "Dune", hit["title"])

	for _, provider := range []string{"googlebooks", "openlibrary", "audible", "bookshop"} {
		resp := ts.Get("/api/v1/search/" + provider + "?q=dune")
		require.Equal(t, http.StatusOK, resp.Code, "provider %s", provider)

		results := decodeData[[]map[string]any](t, resp)
		require.Len(t, results, 1, "provider %s", provider)
		assert.Equal(t, "Dune", results[0]["title"], "provider %s", provider)
	}
}

func TestProviderSearchRejectsBadRequests(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Get("/api/v1/search/goodreads?q=dune")
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ts.Get("/api/v1/search/hardcover")
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetConfigMasksSecrets(t *testing.T) {
	ts := setupTestServer(t, nil)

	settings := config.DefaultSettings()
	settings.Providers.Hardcover.APIKey = "super-secret-key-123"
	require.NoError(t, ts.settings.Save(settings))

	resp := ts.Get("/api/v1/config")
	require.Equal(t, http.StatusOK, resp.Code)

	masked := decodeData[map[string]any](t, resp)
	providers, ok := masked["providers"].(map[string]any)
	require.True(t, ok)
	hc, ok := providers["hardcover"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "supe************-123", hc["api_key"])

	// The raw endpoint returns the document unmasked.
	resp = ts.Get("/api/v1/config/raw")
	require.Equal(t, http.StatusOK, resp.Code)
	raw := decodeData[RawConfigResponse](t, resp)
	assert.Contains(t, raw.TOML, "super-secret-key-123")
}

func TestUpdateConfigDeepMerge(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Put("/api/v1/config", `{"providers":{"audible":{"region":"uk"}}}`)
	require.Equal(t, http.StatusOK, resp.Code)

	masked := decodeData[map[string]any](t, resp)
	providers := masked["providers"].(map[string]any)
	audibleCfg := providers["audible"].(map[string]any)
	assert.Equal(t, "uk", audibleCfg["region"])
	// Untouched siblings keep their defaults.
	assert.Equal(t, float64(2), providers["rate_limit_rps"])

	settings, err := ts.settings.Current()
	require.NoError(t, err)
	assert.Equal(t, "uk", settings.Providers.Audible.Region)
	assert.True(t, ts.settings.FileExists())
}

func TestUpdateConfigRejectsInvalidSettings(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Put("/api/v1/config", `{"providers":{"audible":{"region":"zz"}}}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	settings, err := ts.settings.Current()
	require.NoError(t, err)
	assert.Equal(t, "us", settings.Providers.Audible.Region)
}

func TestValidateConfig(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.do(http.MethodPost, "/api/v1/config/validate", "application/toml", "not [valid toml")
	require.Equal(t, http.StatusOK, resp.Code)
	verdict := decodeData[ValidateConfigResponse](t, resp)
	assert.False(t, verdict.TOMLValid)
	assert.False(t, verdict.SettingsValid)
	assert.NotEmpty(t, verdict.Errors)

	doc := `
[providers]
rate_limit_rps = 2.0
timeout_seconds = 30.0
[providers.audible]
region = "zz"
[enrichment]
max_books_per_author = 10
[logging]
level = "info"
`
	resp = ts.do(http.MethodPost, "/api/v1/config/validate", "application/toml", doc)
	require.Equal(t, http.StatusOK, resp.Code)
	verdict = decodeData[ValidateConfigResponse](t, resp)
	assert.True(t, verdict.TOMLValid)
	assert.False(t, verdict.SettingsValid)
}

func TestConfigHealth(t *testing.T) {
	ts := setupTestServer(t, nil)

	resp := ts.Get("/api/v1/config/health")
	require.Equal(t, http.StatusOK, resp.Code)
	health := decodeData[ConfigHealthResponse](t, resp)
	assert.False(t, health.Exists)
	assert.False(t, health.Valid)

	require.NoError(t, ts.settings.Save(config.DefaultSettings()))

	resp = ts.Get("/api/v1/config/health")
	require.Equal(t, http.StatusOK, resp.Code)
	health = decodeData[ConfigHealthResponse](t, resp)
	assert.True(t, health.Exists)
	assert.True(t, health.Valid)
	assert.Empty(t, health.Error)
}

func TestReloadConfig(t *testing.T) {
	ts := setupTestServer(t, nil)

	settings := config.DefaultSettings()
	settings.Logging.Level = "debug"
	require.NoError(t, ts.settings.Save(settings))

	resp := ts.do(http.MethodPost, "/api/v1/config/reload", "", "")
	require.Equal(t, http.StatusOK, resp.Code)

	masked := decodeData[map[string]any](t, resp)
	logging := masked["logging"].(map[string]any)
	assert.Equal(t, "debug", logging["level"])
}

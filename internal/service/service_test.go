package service

import (
	"context"
	"encoding/json/v2"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/config"
	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/metadata/audible"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

type testEnv struct {
	store    *store.Store
	hc       *hardcover.Client
	resolver *Resolver
	enricher *Enricher
	authors  *AuthorService
	books    *BookService
	series   *SeriesService
	tags     *TagService
}

// staticSettings serves a fixed settings document.
type staticSettings struct {
	settings *config.Settings
}

func (s staticSettings) Current() (*config.Settings, error) {
	return s.settings, nil
}

// newTestEnv wires the full service stack against a temp-file store and
// a stub Hardcover server.
func newTestEnv(t *testing.T, handler http.HandlerFunc) *testEnv {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hc := hardcover.NewWithEndpoint(server.URL, "test-token", logger)
	t.Cleanup(hc.Close)

	resolver := NewResolver(st, logger)
	enricher := NewEnricher(st, hc, resolver, nil, 8, logger)
	t.Cleanup(enricher.Stop)

	tags := NewTagService(st, logger)

	return &testEnv{
		store:    st,
		hc:       hc,
		resolver: resolver,
		enricher: enricher,
		authors:  NewAuthorService(st, hc, resolver, enricher, logger),
		books:    NewBookService(st, hc, resolver, tags, logger),
		series:   NewSeriesService(st, hc, resolver, logger),
		tags:     tags,
	}
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// searchEnvelope builds the GraphQL response for a search query from raw
// hit documents.
func searchEnvelope(docs ...string) string {
	hits := make([]string, 0, len(docs))
	for _, d := range docs {
		hits = append(hits, `{"document":`+d+`}`)
	}
	return `{"data":{"search":{"results":{"hits":[` + strings.Join(hits, ",") + `]}}}}`
}

// stubHardcover answers search queries with searchBody and works queries
// with worksBody.
func stubHardcover(t *testing.T, searchBody, worksBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
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

const kingWorks = `{"data":{"contributions":[
	{"book":{"id":101,"title":"The Shining","description":"A hotel.","editions":[{"asin":"B002UZDRK8","isbn_10":"0385121679","isbn_13":"9780385121675"}],"book_series":[{"position":1,"series":{"id":55,"name":"The Shining"}}]}},
	{"book":{"id":102,"title":"Carrie","description":"","editions":[],"book_series":[]}}
]}}`

func TestAuthorCreateFromLookup(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"123","name":"Stephen King","bio":"Horror."}`),
		kingWorks,
	))
	ctx := context.Background()

	author, err := env.authors.CreateFromLookup(ctx, "stephen king")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}
	if author.Name != "Stephen King" {
		t.Errorf("Name = %q", author.Name)
	}
	if got := author.ExternalRefs[RefHardcover]; got != "123" {
		t.Errorf("external_refs[%s] = %q, want 123", RefHardcover, got)
	}
	if author.Bio != "Horror." {
		t.Errorf("Bio = %q", author.Bio)
	}

	// The synchronous step creates no books; the backfill does.
	if len(author.Books) != 0 {
		t.Errorf("got %d books before backfill", len(author.Books))
	}

	if err := env.authors.RefreshBooks(ctx, author.ID); err != nil {
		t.Fatalf("RefreshBooks: %v", err)
	}

	refreshed, err := env.authors.Get(ctx, author.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(refreshed.Books) != 2 {
		t.Fatalf("got %d books after backfill, want 2", len(refreshed.Books))
	}

	// Every backfilled book carries its provider reference and the
	// author link.
	for _, summary := range refreshed.Books {
		book, err := env.books.Get(ctx, summary.ID)
		if err != nil {
			t.Fatalf("Get book %s: %v", summary.ID, err)
		}
		if book.ExternalRefs[RefHardcover] == "" {
			t.Errorf("book %q missing provider ref", book.Title)
		}
		if len(book.Authors) != 1 || book.Authors[0].ID != author.ID {
			t.Errorf("book %q authors = %v", book.Title, book.Authors)
		}
		if book.Status != domain.StatusWanted {
			t.Errorf("book %q status = %q", book.Title, book.Status)
		}
	}

	// The Shining landed in its series with position 1.
	series, err := env.store.GetSeriesByName(ctx, "The Shining")
	if err != nil {
		t.Fatalf("series not created: %v", err)
	}
	if series.ExternalRefs[RefHardcover] != "55" {
		t.Errorf("series refs = %v", series.ExternalRefs)
	}
}

func TestAuthorCreateFromLookupNoMatch(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t, searchEnvelope(), ""))
	ctx := context.Background()

	_, err := env.authors.CreateFromLookup(ctx, "nobody at all")
	if !errors.Is(err, errors.ErrUpstream) {
		t.Fatalf("err = %v, want upstream", err)
	}

	page, err := env.store.ListAuthors(ctx, store.PaginationParams{})
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("got %d authors, want 0 after failed lookup", page.Total)
	}
}

func TestAuthorCreateFromLookupIdempotent(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"123","name":"Stephen King","bio":""}`),
		`{"data":{"contributions":[]}}`,
	))
	ctx := context.Background()

	first, err := env.authors.CreateFromLookup(ctx, "Stephen King")
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := env.authors.CreateFromLookup(ctx, "STEPHEN  KING")
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("got two rows (%s, %s) for the same author", first.ID, second.ID)
	}

	page, err := env.store.ListAuthors(ctx, store.PaginationParams{})
	if err != nil {
		t.Fatalf("ListAuthors: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("got %d authors, want 1", page.Total)
	}
}

func TestBackfillSkipsExistingTitles(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"123","name":"Stephen King","bio":""}`),
		kingWorks,
	))
	ctx := context.Background()

	author, err := env.authors.CreateFromLookup(ctx, "Stephen King")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}

	for range 2 {
		if err := env.authors.RefreshBooks(ctx, author.ID); err != nil {
			t.Fatalf("RefreshBooks: %v", err)
		}
	}

	books, err := env.store.ListBooksByAuthor(ctx, author.ID)
	if err != nil {
		t.Fatalf("ListBooksByAuthor: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("got %d books after double backfill, want 2", len(books))
	}
}

func TestBackfillKeepsFirstSeriesOnly(t *testing.T) {
	works := `{"data":{"contributions":[
		{"book":{"id":7,"title":"Crossover","description":"","editions":[],"book_series":[
			{"position":3,"series":{"id":1,"name":"First Saga"}},
			{"position":1,"series":{"id":2,"name":"Second Saga"}}
		]}}
	]}}`
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"9","name":"Prolific Writer","bio":""}`),
		works,
	))
	ctx := context.Background()

	author, err := env.authors.CreateFromLookup(ctx, "Prolific Writer")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}
	if err := env.authors.RefreshBooks(ctx, author.ID); err != nil {
		t.Fatalf("RefreshBooks: %v", err)
	}

	if _, err := env.store.GetSeriesByName(ctx, "First Saga"); err != nil {
		t.Errorf("first series not created: %v", err)
	}
	if _, err := env.store.GetSeriesByName(ctx, "Second Saga"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second series should have been dropped, got err %v", err)
	}

	books, err := env.store.ListBooksByAuthor(ctx, author.ID)
	if err != nil || len(books) != 1 {
		t.Fatalf("books = %v, err = %v", books, err)
	}
	memberships, err := env.store.GetBookSeries(ctx, books[0].ID)
	if err != nil {
		t.Fatalf("GetBookSeries: %v", err)
	}
	if len(memberships) != 1 || memberships[0].Position != 3 {
		t.Errorf("memberships = %v, want single entry at position 3", memberships)
	}
}

func TestBackfillMissingProviderRef(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t, searchEnvelope(), ""))
	ctx := context.Background()

	author, err := env.resolver.FindOrCreateAuthor(ctx, "Local Only", "", "")
	if err != nil {
		t.Fatalf("FindOrCreateAuthor: %v", err)
	}

	err = env.enricher.RunAuthorBackfill(ctx, author.ID)
	if !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestEnricherRunsAsync(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"123","name":"Stephen King","bio":""}`),
		kingWorks,
	))
	ctx := context.Background()

	env.enricher.Start()

	author, err := env.authors.CreateFromLookup(ctx, "Stephen King")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		books, err := env.store.ListBooksByAuthor(ctx, author.ID)
		if err != nil {
			t.Fatalf("ListBooksByAuthor: %v", err)
		}
		if len(books) == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("backfill did not finish, have %d books", len(books))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAuthorUpdateCorrectsProviderRef(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"123","name":"Stephen King","bio":""}`),
		kingWorks,
	))
	ctx := context.Background()

	author, err := env.authors.CreateFromLookup(ctx, "Stephen King")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}
	if author.ExternalRefs[RefHardcover] != "123" {
		t.Fatalf("initial ref = %q", author.ExternalRefs[RefHardcover])
	}

	// An explicit update replaces the wrong provider link.
	updated, err := env.authors.Update(ctx, author.ID, UpdateAuthorParams{
		Name:         author.Name,
		ExternalRefs: map[string]string{RefHardcover: "456"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := updated.ExternalRefs[RefHardcover]; got != "456" {
		t.Errorf("external_refs[%s] = %q, want 456", RefHardcover, got)
	}
}

func TestEnqueueHonorsEnrichmentToggle(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t, searchEnvelope(), ""))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	settings := config.DefaultSettings()
	settings.Enrich.Enabled = false

	enricher := NewEnricher(env.store, env.hc, env.resolver, staticSettings{settings}, 8, logger)

	// Never started, so enqueued jobs stay observable in the queue.
	enricher.Enqueue("auth-1")
	if got := len(enricher.queue); got != 0 {
		t.Fatalf("queue length with enrichment disabled = %d, want 0", got)
	}

	settings.Enrich.Enabled = true
	enricher.Enqueue("auth-1")
	if got := len(enricher.queue); got != 1 {
		t.Fatalf("queue length with enrichment enabled = %d, want 1", got)
	}
}

func TestBackfillHonorsMaxBooksPerAuthor(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"123","name":"Stephen King","bio":""}`),
		kingWorks,
	))
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	author, err := env.authors.CreateFromLookup(ctx, "Stephen King")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}

	settings := config.DefaultSettings()
	settings.Enrich.MaxBooksPerAuthor = 1

	capped := NewEnricher(env.store, env.hc, env.resolver, staticSettings{settings}, 8, logger)
	if err := capped.RunAuthorBackfill(ctx, author.ID); err != nil {
		t.Fatalf("RunAuthorBackfill: %v", err)
	}

	books, err := env.store.ListBooksByAuthor(ctx, author.ID)
	if err != nil {
		t.Fatalf("ListBooksByAuthor: %v", err)
	}
	if len(books) != 1 {
		t.Errorf("books = %d, want 1 (capped)", len(books))
	}
}

func TestStopLetsInflightJobFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		var req gqlRequest
		if err := json.UnmarshalRead(r.Body, &req); err != nil {
			t.Errorf("decode graphql request: %v", err)
		}
		if strings.Contains(req.Query, "contributions") {
			close(started)
			<-release
			io.WriteString(w, kingWorks)
			return
		}
		io.WriteString(w, searchEnvelope(`{"id":"123","name":"Stephen King","bio":""}`))
	})
	ctx := context.Background()

	env.enricher.Start()

	author, err := env.authors.CreateFromLookup(ctx, "Stephen King")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("backfill never reached the provider")
	}

	stopped := make(chan struct{})
	go func() {
		env.enricher.Stop()
		close(stopped)
	}()
	close(release)

	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	books, err := env.store.ListBooksByAuthor(ctx, author.ID)
	if err != nil {
		t.Fatalf("ListBooksByAuthor: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("books after shutdown = %d, want 2", len(books))
	}
}

func TestSearchSkipsDisabledProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	settings := config.DefaultSettings()
	settings.Providers.GoogleBooks.Enabled = false

	// Clients stay nil; the toggle is checked before any dispatch.
	svc := NewSearchService(nil, nil, nil, nil, nil, audible.RegionUS, staticSettings{settings}, logger)

	_, err := svc.Search(context.Background(), ProviderGoogleBooks, "dune")
	if !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}

	settings.Providers.GoogleBooks.Enabled = true
	if _, err := svc.Search(context.Background(), "nonsense", "dune"); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("unknown provider err = %v, want validation", err)
	}
}

func TestBookCreateFromLookupUnknownAuthor(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"200","title":"Anonymous Work","description":"","author_names":[]}`),
		"",
	))
	ctx := context.Background()

	book, err := env.books.CreateFromLookup(ctx, "Anonymous Work")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}
	if len(book.Authors) != 1 || book.Authors[0].Name != UnknownAuthor {
		t.Fatalf("Authors = %v, want single %q", book.Authors, UnknownAuthor)
	}
}

func TestBookCreateFromLookup(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"201","title":"Good Omens","description":"","author_names":["Terry Pratchett","Neil Gaiman"]}`),
		"",
	))
	ctx := context.Background()

	book, err := env.books.CreateFromLookup(ctx, "Good Omens")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}
	if got := book.ExternalRefs[RefHardcover]; got != "201" {
		t.Errorf("external_refs = %v", book.ExternalRefs)
	}
	if len(book.Authors) != 2 {
		t.Fatalf("got %d authors, want 2", len(book.Authors))
	}

	// Both contributors became local rows.
	if _, err := env.store.GetAuthorByName(ctx, "Terry Pratchett"); err != nil {
		t.Errorf("Pratchett not created: %v", err)
	}
	if _, err := env.store.GetAuthorByName(ctx, "Neil Gaiman"); err != nil {
		t.Errorf("Gaiman not created: %v", err)
	}
}

func TestBookPatchStatusesIsolated(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"300","title":"Patchable","description":"","author_names":["Someone"]}`),
		"",
	))
	ctx := context.Background()

	book, err := env.books.CreateFromLookup(ctx, "Patchable")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}

	have := domain.StatusHave
	patched, err := env.books.PatchStatuses(ctx, book.ID, PatchStatusParams{Status: &have})
	if err != nil {
		t.Fatalf("PatchStatuses: %v", err)
	}
	if patched.Status != domain.StatusHave {
		t.Errorf("Status = %q, want Have", patched.Status)
	}
	if patched.AStatus != domain.StatusWanted || patched.PStatus != domain.StatusWanted {
		t.Errorf("a_status/p_status changed: %q/%q", patched.AStatus, patched.PStatus)
	}
	if len(patched.Authors) != 1 {
		t.Errorf("authors changed: %v", patched.Authors)
	}

	_, err = env.books.PatchStatuses(ctx, book.ID, PatchStatusParams{})
	if !errors.Is(err, errors.ErrValidation) {
		t.Errorf("empty patch err = %v, want validation", err)
	}
}

func TestFindAuthorsMergesProvider(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"400","name":"Robin Hobb","bio":"Farseer."}`),
		"",
	))
	ctx := context.Background()

	if _, err := env.resolver.FindOrCreateAuthor(ctx, "Robin Hobbes", "", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	found, err := env.authors.FindAuthors(ctx, "robin")
	if err != nil {
		t.Fatalf("FindAuthors: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("got %d results, want local + provider", len(found))
	}
	if found[0].Source != "local" || found[1].Source != "hardcover" {
		t.Errorf("sources = %q, %q", found[0].Source, found[1].Source)
	}
}

func TestFindAuthorsDeduplicatesProviderHit(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"400","name":"Robin Hobb","bio":""}`),
		"",
	))
	ctx := context.Background()

	if _, err := env.resolver.FindOrCreateAuthor(ctx, "Robin Hobb", "", ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	found, err := env.authors.FindAuthors(ctx, "robin")
	if err != nil {
		t.Fatalf("FindAuthors: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("got %d results, want provider hit merged away", len(found))
	}
	if found[0].Source != "local" {
		t.Errorf("source = %q", found[0].Source)
	}
}

func TestSeriesCreateFromLookup(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"500","name":"Discworld"}`),
		"",
	))
	ctx := context.Background()

	series, err := env.series.CreateFromLookup(ctx, "discworld")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}
	if series.Name != "Discworld" {
		t.Errorf("Name = %q", series.Name)
	}
	if series.ExternalRefs[RefHardcover] != "500" {
		t.Errorf("refs = %v", series.ExternalRefs)
	}
}

func TestBookUpdateTags(t *testing.T) {
	env := newTestEnv(t, stubHardcover(t,
		searchEnvelope(`{"id":"600","title":"Taggable","description":"","author_names":["Someone"]}`),
		"",
	))
	ctx := context.Background()

	book, err := env.books.CreateFromLookup(ctx, "Taggable")
	if err != nil {
		t.Fatalf("CreateFromLookup: %v", err)
	}

	tags := []string{"fantasy", "to-read"}
	updated, err := env.books.Update(ctx, book.ID, UpdateBookParams{
		Title: book.Title,
		Tags:  &tags,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(updated.Tags) != 2 {
		t.Fatalf("Tags = %v", updated.Tags)
	}

	// Re-using a tag name must not create a second tag row.
	if _, err := env.tags.FindOrCreate(ctx, "Fantasy"); err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	all, err := env.tags.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d tags, want 2", len(all))
	}
}

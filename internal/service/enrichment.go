package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/errors"
	"github.com/inkwellapp/inkwell-server/internal/id"
	"github.com/inkwellapp/inkwell-server/internal/metadata/hardcover"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

// Enricher backfills an author's bibliography from the provider after
// the author has been created. Jobs run on a single worker goroutine
// fed by a bounded queue; enqueueing never blocks the caller and job
// failures are logged, never surfaced.
type Enricher struct {
	store     *store.Store
	hardcover *hardcover.Client
	resolver  *Resolver
	settings  SettingsSource
	logger    *slog.Logger

	queue chan enrichmentJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

type enrichmentJob struct {
	TaskID   string
	AuthorID string
}

// NewEnricher creates an enricher with the given queue capacity. The
// settings source gates automatic backfills and caps imports per
// author; nil means defaults.
func NewEnricher(st *store.Store, hc *hardcover.Client, resolver *Resolver, settings SettingsSource, queueSize int, logger *slog.Logger) *Enricher {
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Enricher{
		store:     st,
		hardcover: hc,
		resolver:  resolver,
		settings:  settings,
		logger:    logger,
		queue:     make(chan enrichmentJob, queueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the worker goroutine. Safe to call once.
func (e *Enricher) Start() {
	e.startOnce.Do(func() {
		e.wg.Add(1)
		go e.run()
	})
}

// Stop signals the worker to finish and waits for it. The job in
// flight, if any, runs to completion; queued jobs are dropped.
func (e *Enricher) Stop() {
	e.stopOnce.Do(func() {
		e.cancel()
		e.wg.Wait()
	})
}

// Enqueue schedules a bibliography backfill for an author. The call
// returns immediately; when the queue is full the job is dropped with
// a warning, since a later explicit refresh can always redo the work.
func (e *Enricher) Enqueue(authorID string) {
	if !currentSettings(e.settings, e.logger).Enrich.Enabled {
		e.logger.Info("enrichment disabled, skipping backfill", "author_id", authorID)
		return
	}

	job := enrichmentJob{
		TaskID:   uuid.NewString(),
		AuthorID: authorID,
	}

	select {
	case e.queue <- job:
		e.logger.Debug("enrichment queued", "task_id", job.TaskID, "author_id", authorID)
	default:
		e.logger.Warn("enrichment queue full, dropping job", "author_id", authorID)
	}
}

func (e *Enricher) run() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case job := <-e.queue:
			// The worker owns its own context; request contexts are
			// long gone by the time a job runs. Detached from cancel
			// so a job already started finishes during shutdown.
			if err := e.backfillAuthor(context.WithoutCancel(e.ctx), job.AuthorID); err != nil {
				e.logger.Error("enrichment failed",
					"task_id", job.TaskID,
					"author_id", job.AuthorID,
					"error", err,
				)
				continue
			}
			e.logger.Info("enrichment finished", "task_id", job.TaskID, "author_id", job.AuthorID)
		}
	}
}

// RunAuthorBackfill runs the backfill synchronously, reporting errors
// to the caller. Backs the explicit refresh endpoint.
func (e *Enricher) RunAuthorBackfill(ctx context.Context, authorID string) error {
	return e.backfillAuthor(ctx, authorID)
}

// backfillAuthor fetches the author's works from the provider and
// creates any missing books with their author and series links. Each
// work commits independently; a failure aborts the rest of the run but
// leaves committed progress in place.
func (e *Enricher) backfillAuthor(ctx context.Context, authorID string) error {
	author, err := e.store.GetAuthor(ctx, authorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errors.NotFoundf("author %s not found", authorID)
		}
		return fmt.Errorf("re-read author: %w", err)
	}

	providerID := author.ExternalRefs[RefHardcover]
	if providerID == "" {
		return errors.Validationf("author %s has no provider reference", authorID)
	}

	works, err := e.hardcover.GetWorks(ctx, providerID)
	if err != nil {
		return errors.Wrapf(err, errors.CodeUpstream, "fetch works for author %s", authorID)
	}
	if len(works) == 0 {
		e.logger.Info("no works returned for author", "author_id", authorID)
		return nil
	}

	if max := currentSettings(e.settings, e.logger).Enrich.MaxBooksPerAuthor; max > 0 && len(works) > max {
		e.logger.Info("truncating works to configured cap",
			"author_id", authorID,
			"works", len(works),
			"cap", max,
		)
		works = works[:max]
	}

	var created int
	for i := range works {
		work := &works[i]
		added, err := e.materializeWork(ctx, author, work)
		if err != nil {
			return fmt.Errorf("materialize %q: %w", work.Title, err)
		}
		if added {
			created++
		}
	}

	e.logger.Info("bibliography backfilled",
		"author_id", authorID,
		"works", len(works),
		"books_created", created,
	)
	return nil
}

// materializeWork creates the book for one provider work unless a book
// with the same title is already linked to the author.
func (e *Enricher) materializeWork(ctx context.Context, author *domain.Author, work *hardcover.Work) (bool, error) {
	if work.Title == "" {
		return false, nil
	}

	exists, err := e.store.BookExistsForAuthor(ctx, author.ID, work.Title)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	// Only the first listed series of a work is kept.
	var membership []domain.SeriesMembership
	if len(work.Series) > 0 {
		first := work.Series[0]
		series, err := e.resolver.FindOrCreateSeries(ctx, first.Name, "", first.SeriesID)
		if err != nil {
			return false, err
		}
		membership = []domain.SeriesMembership{{
			SeriesID: series.ID,
			Position: first.Position,
		}}
	}

	book := &domain.Book{
		ID:          id.MustGenerate("book"),
		Title:       work.Title,
		Description: work.Description,
		Status:      domain.StatusWanted,
		AStatus:     domain.StatusWanted,
		PStatus:     domain.StatusWanted,
		Editions:    editions(work.Editions),
	}
	if work.ID != "" {
		book.ExternalRefs = map[string]string{RefHardcover: work.ID}
	}

	if err := e.store.CreateBook(ctx, book); err != nil {
		return false, err
	}
	if err := e.store.SetBookAuthors(ctx, book.ID, []string{author.ID}); err != nil {
		return false, err
	}
	if len(membership) > 0 {
		if err := e.store.SetBookSeries(ctx, book.ID, membership); err != nil {
			return false, err
		}
	}

	e.logger.Debug("book created from backfill",
		"book_id", book.ID,
		"title", work.Title,
		"author_id", author.ID,
	)
	return true, nil
}

func editions(in []hardcover.Edition) []domain.Edition {
	out := make([]domain.Edition, 0, len(in))
	for _, ed := range in {
		if ed.ASIN == "" && ed.ISBN10 == "" && ed.ISBN13 == "" {
			continue
		}
		out = append(out, domain.Edition{
			ASIN:   ed.ASIN,
			ISBN10: ed.ISBN10,
			ISBN13: ed.ISBN13,
		})
	}
	return out
}

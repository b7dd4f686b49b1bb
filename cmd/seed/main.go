// Package main provides a tool to seed the catalog with sample data.
//
// This creates a handful of authors, books, series, and tags so the API
// has something to serve during development.
//
// Usage:
//
//	DATA_PATH=~/Inkwell/data go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/inkwellapp/inkwell-server/internal/domain"
	"github.com/inkwellapp/inkwell-server/internal/id"
	"github.com/inkwellapp/inkwell-server/internal/store"
)

type seedBook struct {
	title       string
	description string
	status      domain.BookStatus
	position    float64 // series position, 0 means standalone
	tags        []string
}

type seedAuthor struct {
	name   string
	bio    string
	series string
	books  []seedBook
}

var catalog = []seedAuthor{
	{
		name:   "Ursula K. Le Guin",
		bio:    "American author of speculative fiction.",
		series: "Earthsea Cycle",
		books: []seedBook{
			{title: "A Wizard of Earthsea", description: "A young mage learns the cost of power.", status: domain.StatusHave, position: 1, tags: []string{"Fantasy"}},
			{title: "The Tombs of Atuan", status: domain.StatusWanted, position: 2, tags: []string{"Fantasy"}},
			{title: "The Left Hand of Darkness", description: "An envoy on a planet of ambisexual humans.", status: domain.StatusHave, tags: []string{"Science Fiction"}},
		},
	},
	{
		name:   "Octavia E. Butler",
		bio:    "Pioneer of Afrofuturist science fiction.",
		series: "Patternist",
		books: []seedBook{
			{title: "Wild Seed", status: domain.StatusWanted, position: 1, tags: []string{"Science Fiction"}},
			{title: "Kindred", description: "A woman is pulled back to the antebellum South.", status: domain.StatusHave, tags: []string{"Science Fiction", "Classics"}},
		},
	},
	{
		name:  "John McPhee",
		bio:   "Longform nonfiction writer.",
		books: []seedBook{
			{title: "The Control of Nature", status: domain.StatusWanted, tags: []string{"Nonfiction"}},
			{title: "Annals of the Former World", description: "A geological history of North America.", status: domain.StatusIgnored, tags: []string{"Nonfiction"}},
		},
	},
}

func main() {
	dataPath := flag.String("data-path", "", "Base path for catalog storage (default: $DATA_PATH or ~/Inkwell/data)")
	flag.Parse()

	base := *dataPath
	if base == "" {
		base = os.Getenv("DATA_PATH")
	}
	if base == "" {
		base = os.ExpandEnv("$HOME/Inkwell/data")
	}

	dbPath := filepath.Join(base, "catalog.db")
	fmt.Printf("Opening database at: %s\n", dbPath)

	if err := os.MkdirAll(base, 0o750); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := store.Open(dbPath, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	tagIDs := make(map[string]string)

	for _, sa := range catalog {
		author := &domain.Author{
			ID:        id.MustGenerate("auth"),
			CreatedAt: now,
			UpdatedAt: now,
			Name:      sa.name,
			Bio:       sa.bio,
		}
		if err := s.CreateAuthor(ctx, author); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				fmt.Printf("Author %q already exists, skipping\n", sa.name)
				continue
			}
			log.Fatalf("Failed to create author %q: %v", sa.name, err)
		}
		fmt.Printf("Created author %s (%s)\n", sa.name, author.ID)

		var seriesID string
		if sa.series != "" {
			series := &domain.Series{
				ID:        id.MustGenerate("ser"),
				CreatedAt: now,
				UpdatedAt: now,
				Name:      sa.series,
			}
			if err := s.CreateSeries(ctx, series); err != nil {
				log.Fatalf("Failed to create series %q: %v", sa.series, err)
			}
			seriesID = series.ID
			fmt.Printf("  Created series %s (%s)\n", sa.series, seriesID)
		}

		for _, sb := range sa.books {
			book := &domain.Book{
				ID:          id.MustGenerate("book"),
				CreatedAt:   now,
				UpdatedAt:   now,
				Title:       sb.title,
				Description: sb.description,
				Status:      sb.status,
				AStatus:     sb.status,
				PStatus:     sb.status,
			}
			if err := s.CreateBook(ctx, book); err != nil {
				log.Fatalf("Failed to create book %q: %v", sb.title, err)
			}
			if err := s.SetBookAuthors(ctx, book.ID, []string{author.ID}); err != nil {
				log.Fatalf("Failed to link book %q to author: %v", sb.title, err)
			}
			if seriesID != "" && sb.position > 0 {
				memberships := []domain.SeriesMembership{{SeriesID: seriesID, Position: sb.position}}
				if err := s.SetBookSeries(ctx, book.ID, memberships); err != nil {
					log.Fatalf("Failed to link book %q to series: %v", sb.title, err)
				}
			}

			ids := make([]string, 0, len(sb.tags))
			for _, name := range sb.tags {
				ids = append(ids, ensureTag(ctx, s, tagIDs, name, now))
			}
			if len(ids) > 0 {
				if err := s.SetBookTags(ctx, book.ID, ids); err != nil {
					log.Fatalf("Failed to tag book %q: %v", sb.title, err)
				}
			}
			fmt.Printf("  Created book %s (%s)\n", sb.title, book.ID)
		}
	}

	fmt.Println("\nDone.")
}

func ensureTag(ctx context.Context, s *store.Store, cache map[string]string, name string, now time.Time) string {
	if tagID, ok := cache[name]; ok {
		return tagID
	}

	if existing, err := s.GetTagByName(ctx, name); err == nil {
		cache[name] = existing.ID
		return existing.ID
	}

	tag := &domain.Tag{
		ID:        id.MustGenerate("tag"),
		CreatedAt: now,
		UpdatedAt: now,
		Name:      name,
	}
	if err := s.CreateTag(ctx, tag); err != nil {
		log.Fatalf("Failed to create tag %q: %v", name, err)
	}
	cache[name] = tag.ID
	return tag.ID
}

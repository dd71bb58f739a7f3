package imdb

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"watchnext-suggestion-service/internal/metrics"
	"watchnext-suggestion-service/internal/models"
	"watchnext-suggestion-service/internal/repository"
)

// BatchSize is how many titles are upserted at once during an import.
const BatchSize = 1000

// Stats summarizes one import run.
type Stats struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Importer refreshes the catalog from the IMDb bulk datasets. Both dumps
// are ordered by tconst, so the basics and ratings files are merge-joined
// while streaming; titles without a rating row are imported with absent
// rating and votes.
type Importer struct {
	titles  repository.TitleRepository
	client  *http.Client
	limiter *rate.Limiter
}

// NewImporter creates a new Importer. Dataset downloads are rate limited
// to stay polite toward the dataset host.
func NewImporter(titles repository.TitleRepository) *Importer {
	return &Importer{
		titles:  titles,
		client:  &http.Client{Timeout: 10 * time.Minute},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Run imports the two datasets, given as local file paths or HTTP(S) URLs,
// optionally gzip-compressed. Returns the run's stats.
func (i *Importer) Run(ctx context.Context, basicsSrc, ratingsSrc string) (Stats, error) {
	slog.Info("starting IMDb import", "basics", basicsSrc, "ratings", ratingsSrc)

	basics, err := i.open(ctx, basicsSrc)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open title basics: %w", err)
	}
	defer basics.Close()

	ratings, err := i.open(ctx, ratingsSrc)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open title ratings: %w", err)
	}
	defer ratings.Close()

	stats, err := i.importStreams(ctx, basics, ratings)
	if err != nil {
		return stats, err
	}

	slog.Info("IMDb import completed", "imported", stats.Imported, "skipped", stats.Skipped)
	return stats, nil
}

func (i *Importer) importStreams(ctx context.Context, basics, ratings io.Reader) (Stats, error) {
	basicsR := newBasicsReader(basics)
	ratingsR := newRatingsReader(ratings)

	var stats Stats
	batch := make([]models.Title, 0, BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.titles.UpsertBatch(ctx, batch); err != nil {
			return err
		}
		stats.Imported += len(batch)
		metrics.ImportedTitlesTotal.Add(float64(len(batch)))
		batch = batch[:0]
		return nil
	}

	b, berr := basicsR.next()
	r, rerr := ratingsR.next()
	for berr == nil {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		title := models.Title{
			ID:        b.ID,
			Title:     b.Title,
			Type:      b.Type,
			Genres:    b.Genres,
			StartYear: b.StartYear,
			EndYear:   b.EndYear,
		}

		// Merge-join on ascending id: both dumps are ordered by tconst.
		for rerr == nil && r.ID < b.ID {
			r, rerr = ratingsR.next()
		}
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return stats, rerr
		}
		if rerr == nil && r.ID == b.ID {
			rating := r.Rating
			votes := r.Votes
			title.Rating = &rating
			title.Votes = &votes
		}

		batch = append(batch, title)
		if len(batch) == BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}

		b, berr = basicsR.next()
	}
	if !errors.Is(berr, io.EOF) {
		return stats, berr
	}

	if err := flush(); err != nil {
		return stats, err
	}
	stats.Skipped = basicsR.skipped + ratingsR.skipped
	return stats, nil
}

// open returns a decompressed stream for a local path or HTTP(S) URL.
func (i *Importer) open(ctx context.Context, src string) (io.ReadCloser, error) {
	var rc io.ReadCloser

	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := i.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("dataset host returned %d for %s", resp.StatusCode, src)
		}
		rc = resp.Body
	} else {
		f, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		rc = f
	}

	if strings.HasSuffix(src, ".gz") {
		gz, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("failed to decompress %s: %w", src, err)
		}
		return &gzipReadCloser{gz: gz, underlying: rc}, nil
	}
	return rc, nil
}

type gzipReadCloser struct {
	gz         *gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.gz.Read(p)
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	if err := g.underlying.Close(); err != nil {
		return err
	}
	return gzErr
}

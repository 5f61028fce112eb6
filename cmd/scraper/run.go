package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/go-scrape-venues/cache"
	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/models"
	"github.com/aluiziolira/go-scrape-venues/parser"
	"github.com/aluiziolira/go-scrape-venues/pipeline"
	"github.com/aluiziolira/go-scrape-venues/scraper"
)

const (
	entityVenues        = "venues"
	entityMarketplace   = "marketplace"
	entityBanquetPrices = "banquet-prices"
	entityAll           = "all"
)

type runner struct {
	cfg         *config.Config
	client      *scraper.Client
	withPricing bool
}

// run scrapes one entity type, or all of them in order. Only a failure to
// enumerate the input URLs is returned as an error.
func (r *runner) run(ctx context.Context, entity string) error {
	if entity != entityAll {
		return r.runEntity(ctx, entity)
	}

	var errs []error
	for _, e := range []string{entityVenues, entityMarketplace, entityBanquetPrices} {
		if ctx.Err() != nil {
			slog.Info("interrupted, skipping remaining entity types", slog.String("next", e))
			break
		}
		if err := r.runEntity(ctx, e); err != nil {
			slog.Error("entity run aborted", slog.String("entity", e), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *runner) runEntity(ctx context.Context, entity string) error {
	printBanner(entity)
	switch entity {
	case entityVenues:
		return r.runVenues(ctx)
	case entityMarketplace:
		return r.runMarketplace(ctx)
	case entityBanquetPrices:
		return r.runBanquetPrices(ctx)
	default:
		return fmt.Errorf("unknown entity type %q", entity)
	}
}

func (r *runner) runVenues(ctx context.Context) error {
	urls, err := r.discover(ctx, scraper.VenueSegment)
	if err != nil {
		return fmt.Errorf("venues: %w", err)
	}

	var pricing map[string]models.Pricing
	if r.withPricing {
		pricing = r.client.FetchPricing(ctx)
	}

	base := r.cfg.OutputBase("venues")
	cached := loadCache[*models.Venue](r.cfg, base)
	fetcher := scraper.NewVenueFetcher(r.client, pricing)

	result := pipeline.NewScheduler(r.schedulerOptions(entityVenues, scraper.VenueSegment), cached).
		Run(ctx, urls, fetcher.Fetch)

	paths, err := pipeline.Save(result.Records, base)
	if err != nil {
		slog.Error("saving venues failed", slog.Any("error", err))
	}
	printSummary(result.Summary, r.client.Stats(), paths, len(result.Records))
	printCategories(result.Records)
	return nil
}

func (r *runner) runMarketplace(ctx context.Context) error {
	urls, err := r.discover(ctx, scraper.PackageSegment)
	if err != nil {
		return fmt.Errorf("marketplace: %w", err)
	}

	base := r.cfg.OutputBase("marketplace")
	cached := loadCache[*models.Package](r.cfg, base)
	fetcher := scraper.NewPackageFetcher(r.client)

	result := pipeline.NewScheduler(r.schedulerOptions(entityMarketplace, scraper.PackageSegment), cached).
		Run(ctx, urls, fetcher.Fetch)

	paths, err := pipeline.Save(result.Records, base)
	if err != nil {
		slog.Error("saving marketplace packages failed", slog.Any("error", err))
	}
	printSummary(result.Summary, r.client.Stats(), paths, len(result.Records))
	return nil
}

func (r *runner) runBanquetPrices(ctx context.Context) error {
	rows, err := r.client.FetchPricingRows(ctx)
	if err != nil {
		slog.Warn("banquet price list unavailable", slog.Any("error", err))
	}

	paths, err := pipeline.Save(rows, r.cfg.OutputBase("banquet_prices"))
	if err != nil {
		slog.Error("saving banquet prices failed", slog.Any("error", err))
	}
	printPricingSample(rows, paths)
	return nil
}

func (r *runner) discover(ctx context.Context, pattern string) ([]string, error) {
	urls, err := r.client.FetchMatching(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if r.cfg.Limit > 0 && len(urls) > r.cfg.Limit {
		urls = urls[:r.cfg.Limit]
	}
	return urls, nil
}

func (r *runner) schedulerOptions(entity, segment string) pipeline.Options {
	return pipeline.Options{
		Entity:        entity,
		Concurrency:   r.cfg.Concurrency,
		Delay:         r.cfg.Delay,
		DedupeMaxSize: r.cfg.DedupeMaxSize,
		Identify: func(url string) string {
			id, _ := parser.PathIdentifier(url, segment)
			return id
		},
		Observer: r.client.Metrics,
	}
}

func loadCache[T models.Record](cfg *config.Config, base string) map[string]T {
	if cfg.Force {
		slog.Info("cache disabled by --force")
		return nil
	}
	return cache.Load[T](pipeline.PathsFor(base).JSON)
}

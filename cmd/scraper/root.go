package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-scrape-venues/config"
	"github.com/aluiziolira/go-scrape-venues/scraper"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type options struct {
	baseURL        string
	limit          int
	delay          time.Duration
	concurrency    int
	output         string
	attachmentsDir string
	force          bool
	noPricing      bool
	timeout        time.Duration
	maxRetries     int
	metricsAddr    string
	verbose        bool
}

func newRootCmd() *cobra.Command {
	defaultCfg := config.DefaultConfig()
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "scraper",
		Short: "Scrape wedding venue data from BlissfulBrides.sg",
		Long: `Scrape venue, marketplace and banquet pricing data from BlissfulBrides.sg.
Results are written to <output>/<entity>.json and .csv. Reruns skip records
already present in the previous JSON output unless --force is given.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", envString("SCRAPER_BASE_URL", defaultCfg.BaseURL), "Site base URL")
	flags.IntVar(&opts.limit, "limit", 0, "Maximum items to scrape (0 for all)")
	flags.DurationVar(&opts.delay, "delay", 0, "Fixed delay between sequential requests; implies --concurrency 1")
	flags.IntVar(&opts.concurrency, "concurrency", defaultCfg.Concurrency, "Number of concurrent detail fetches")
	flags.StringVar(&opts.output, "output", envString("SCRAPER_OUTPUT", defaultCfg.OutputDir), "Output directory")
	flags.StringVar(&opts.attachmentsDir, "attachments-dir", "", "Price list download directory (default <output>/price-lists)")
	flags.BoolVar(&opts.force, "force", false, "Ignore cached results and scrape every item")
	flags.BoolVar(&opts.noPricing, "no-pricing", false, "Skip the banquet pricing join for venues")
	flags.DurationVar(&opts.timeout, "timeout", defaultCfg.Timeout, "Per-request timeout")
	flags.IntVar(&opts.maxRetries, "max-retries", defaultCfg.MaxRetries, "Maximum retry attempts per detail page")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", envString("SCRAPER_METRICS_ADDR", defaultCfg.MetricsAddr), "Prometheus metrics listen address (e.g. :9090)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	for _, entity := range []string{entityVenues, entityMarketplace, entityBanquetPrices, entityAll} {
		cmd.AddCommand(newEntityCmd(entity, opts))
	}

	return cmd
}

func newEntityCmd(entity string, opts *options) *cobra.Command {
	short := map[string]string{
		entityVenues:        "Scrape venue detail pages with price lists and pricing",
		entityMarketplace:   "Scrape marketplace package pages",
		entityBanquetPrices: "Scrape the banquet price list table",
		entityAll:           "Scrape every entity type",
	}[entity]

	return &cobra.Command{
		Use:   entity,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			concurrencyChanged := cmd.Flags().Changed("concurrency")
			if concurrency, ok, err := config.EnvInt("SCRAPER_CONCURRENCY"); err != nil {
				return fmt.Errorf("invalid SCRAPER_CONCURRENCY: %w", err)
			} else if ok && !concurrencyChanged {
				opts.concurrency = concurrency
				concurrencyChanged = true
			}

			logger, level := newLogger(opts.verbose)
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())

			cfg := buildConfig(opts, concurrencyChanged)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			client, err := scraper.NewClient(cfg)
			if err != nil {
				return fmt.Errorf("initialising client: %w", err)
			}

			stopMetrics := startMetricsServer(cfg.MetricsAddr, client)
			defer stopMetrics()

			r := &runner{cfg: cfg, client: client, withPricing: !opts.noPricing}
			return r.run(cmd.Context(), entity)
		},
	}
}

func buildConfig(opts *options, concurrencyChanged bool) *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = opts.baseURL
	cfg.Limit = opts.limit
	cfg.Delay = opts.delay
	cfg.Concurrency = opts.concurrency
	if opts.delay > 0 && !concurrencyChanged {
		cfg.Concurrency = 1
	}
	cfg.OutputDir = opts.output
	cfg.AttachmentsDir = opts.attachmentsDir
	cfg.Force = opts.force
	cfg.Timeout = opts.timeout
	cfg.MaxRetries = opts.maxRetries
	cfg.MetricsAddr = opts.metricsAddr
	cfg.Verbose = opts.verbose
	return cfg
}

func envString(key, fallback string) string {
	if value, ok := config.EnvString(key); ok {
		return value
	}
	return fallback
}

func startMetricsServer(addr string, client *scraper.Client) func() {
	if addr == "" || client.Metrics == nil {
		return func() {}
	}

	server := &http.Server{
		Addr:    addr,
		Handler: promhttp.HandlerFor(client.Metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

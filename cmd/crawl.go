package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hkpdata/listings-crawler/internal/api"
	"github.com/hkpdata/listings-crawler/internal/config"
	"github.com/hkpdata/listings-crawler/internal/crawl"
	"github.com/hkpdata/listings-crawler/internal/export"
	"github.com/hkpdata/listings-crawler/internal/extract"
	"github.com/hkpdata/listings-crawler/internal/fetch"
	"github.com/hkpdata/listings-crawler/internal/logging"
	"github.com/hkpdata/listings-crawler/internal/progress"
	"github.com/hkpdata/listings-crawler/internal/progress/sinks"
	"github.com/hkpdata/listings-crawler/internal/sites"
)

// newCrawlCmd creates the 'crawl' subcommand. Flags override the equivalent
// config file settings for this invocation only.
func newCrawlCmd() *cobra.Command {
	var (
		siteIDs       []string
		category      string
		region        string
		maxPages      int
		maxProperties int
		outputDir     string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl across the enabled listing sites",
		Long: `Walks each enabled site's list pages, fetches every discovered
listing detail page, and exports the extracted records to the output
directory as timestamped JSON and CSV files.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("sites") {
				cfg.Crawl.Sites = siteIDs
			}
			if cmd.Flags().Changed("category") {
				cfg.Crawl.Category = category
			}
			if cmd.Flags().Changed("region") {
				cfg.Crawl.Region = region
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.Crawl.MaxPages = maxPages
			}
			if cmd.Flags().Changed("max-properties") {
				cfg.Crawl.MaxProperties = maxProperties
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.Output.Dir = outputDir
			}
			return runCrawl(cmd.Context(), cfg, logging.L)
		},
	}

	cmd.Flags().StringSliceVar(&siteIDs, "sites", nil, "site IDs to crawl (default: all enabled)")
	cmd.Flags().StringVar(&category, "category", "", "listing category: buy or rent")
	cmd.Flags().StringVar(&region, "region", "", "keep only records in this region, e.g. 九龍")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "list pages to walk per site")
	cmd.Flags().IntVar(&maxProperties, "max-properties", 0, "total detail pages to fetch across the run")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "directory for exported files")
	return cmd
}

func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build site registry: %w", err)
	}

	standard, rendering, err := buildFetchers(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := standard.Close(closeCtx); cerr != nil {
			logger.Warn("close fetcher", zap.Error(cerr))
		}
	}()

	snapshots := sinks.NewSnapshotSink(0)
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger),
		promSink,
		snapshots,
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("close progress hub", zap.Error(cerr))
		}
	}()

	if cfg.Server.Enabled {
		stop := startStatusServer(cfg.Server.Port, snapshots, logger)
		defer stop()
	}

	engine, err := crawl.NewEngine(crawl.EngineDeps{
		Registry:  registry,
		Standard:  standard,
		Rendering: rendering,
		Pacer:     fetch.NewPacer(),
		Robots:    fetch.NewRobotsPolicy(cfg.Fetch.RespectRobots, cfg.Fetch.UserAgent, logger),
		Retry: fetch.NewExponentialRetryPolicy(
			cfg.Fetch.BackoffAttempts, cfg.Fetch.BackoffInitial, cfg.Fetch.BackoffMax),
		Extractor: extract.New(logger),
		Emitter:   hub,
		Sink:      export.NewFSSink(cfg.Output.Dir, logger),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	summary, err := engine.Run(ctx, crawl.RunConfig{
		Sites:         cfg.Crawl.Sites,
		Category:      cfg.Crawl.Category,
		Region:        cfg.Crawl.Region,
		MaxPages:      cfg.Crawl.MaxPages,
		MaxProperties: cfg.Crawl.MaxProperties,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run crawl: %w", err)
	}

	logger.Info("crawl finished",
		zap.String("run_id", summary.RunID),
		zap.Int("records", summary.Records),
		zap.Int("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
		zap.String("json", summary.Manifest.JSONPath),
		zap.String("csv", summary.Manifest.CSVPath))
	for id, site := range summary.Sites {
		logger.Info("site summary",
			zap.String("site", id),
			zap.Int("pages", site.Pages),
			zap.Int("found", site.Found),
			zap.Int("records", site.Records),
			zap.Int("failed", site.Failed),
			zap.Bool("aborted", site.Aborted))
	}
	return nil
}

func buildRegistry(cfg config.Config) (*sites.Registry, error) {
	overrides := make(map[string]sites.Override, len(cfg.Sites))
	disabled := make(map[string]bool)
	for id, o := range cfg.Sites {
		if o.Disabled {
			disabled[id] = true
			continue
		}
		overrides[id] = sites.Override{
			ListURL:        o.ListURL,
			RateLimit:      o.RateLimit,
			MaxConcurrency: o.MaxConcurrency,
			Timeout:        o.Timeout,
			RetryCount:     o.RetryCount,
		}
	}
	return sites.NewRegistry(overrides, disabled)
}

// buildFetchers wires the static fetcher, the optional headless renderer, and
// the shell-detecting escalation between them. The returned standard fetcher
// owns both and closes the renderer with itself.
func buildFetchers(cfg config.Config, logger *zap.Logger) (standard, rendering fetch.Fetcher, err error) {
	static, err := fetch.NewStaticFetcher(fetch.StaticConfig{
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxPageBytes,
	}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("init static fetcher: %w", err)
	}

	var renderer *fetch.RenderingFetcher
	if cfg.Fetch.RenderEnabled {
		renderer, err = fetch.NewRenderingFetcher(fetch.RenderConfig{
			UserAgent:  cfg.Fetch.UserAgent,
			MaxTabs:    cfg.Fetch.RenderMaxTabs,
			NavTimeout: cfg.Fetch.NavTimeout,
		}, logger)
		switch {
		case err == nil:
		case errors.Is(err, fetch.ErrRenderingDisabled):
			logger.Warn("renderer disabled despite feature flag; script-driven sites will be skipped")
			renderer = nil
		default:
			return nil, nil, fmt.Errorf("init renderer: %w", err)
		}
	}

	detector := fetch.NewShellDetector(cfg.Fetch.ShellMinBytes, cfg.Fetch.ShellKeywords)
	standard = fetch.NewEscalatingFetcher(static, renderingOrNil(renderer), detector, logger)
	return standard, renderingOrNil(renderer), nil
}

// renderingOrNil avoids handing out a typed nil as the Fetcher interface.
func renderingOrNil(r *fetch.RenderingFetcher) fetch.Fetcher {
	if r == nil {
		return nil
	}
	return r
}

func startStatusServer(port int, snapshots *sinks.SnapshotSink, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           api.NewServer(snapshots, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("status server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	}
}

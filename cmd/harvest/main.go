package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/z3c0/metalharvest/pkg/archive"
	"github.com/z3c0/metalharvest/pkg/cache"
	"github.com/z3c0/metalharvest/pkg/config"
	"github.com/z3c0/metalharvest/pkg/fetch"
	"github.com/z3c0/metalharvest/pkg/harvest"
	"github.com/z3c0/metalharvest/pkg/logging"
	"github.com/z3c0/metalharvest/pkg/sink"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to a YAML config file")
	verbose := flag.Bool("verbose", false, "enable the run log")
	flag.Parse()

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("HARVEST_LOG_LEVEL", "info")),
		Pretty: os.Getenv("HARVEST_LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(*configPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to load config file")
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config from environment")
	}
	if *verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Page cache is optional; a missing Redis only costs re-fetches.
	var pageCache *cache.Manager
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, page cache disabled")
		} else {
			pageCache = cache.NewManager(redisClient, cfg.CacheTTL)
			logger.Info().Str("addr", cfg.RedisAddr).Msg("Page cache enabled")
		}
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	sinks, err := sink.NewSet(cfg.DataPath, cfg.ErrorPath, cfg.LogPath, archive.Header())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create output sinks")
	}

	client, err := fetch.New(fetch.Config{
		UserAgent: cfg.UserAgent,
		Headers:   cfg.Headers,
		Timeout:   cfg.RequestTimeout,
		Cache:     pageCache,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fetch client")
	}

	endpoint := func(segment string, offset, pageSize int) string {
		return archive.Endpoint(cfg.BaseURL, segment, offset, pageSize)
	}

	fetcher := harvest.NewSegmentFetcher(client, endpoint, archive.DecodePage, sinks, harvest.FetcherConfig{
		PageSize:    cfg.PageSize,
		MaxAttempts: cfg.RetryAttempts,
		Backoff:     cfg.Backoff,
	})

	coordinator, err := harvest.NewCoordinator(fetcher, sinks, harvest.CoordinatorConfig{
		Segments:      cfg.Segments,
		Workers:       cfg.Workers,
		QueueCapacity: cfg.QueueCapacity,
		Verbose:       cfg.Verbose,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create coordinator")
	}

	err = coordinator.Run(ctx)
	switch {
	case err == nil:
		logger.Info().Msg("Harvest complete")
	case errors.Is(err, context.Canceled):
		// Interrupted runs still shut down cleanly; partial data stands.
		logger.Warn().Msg("Harvest interrupted")
	default:
		logger.Error().Err(err).Msg("Harvest failed")
		os.Exit(1)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

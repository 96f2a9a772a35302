package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/mkravtsov/wb-review-scraper/internal/analyzer"
	"github.com/mkravtsov/wb-review-scraper/internal/api"
	"github.com/mkravtsov/wb-review-scraper/internal/browser"
	"github.com/mkravtsov/wb-review-scraper/internal/cache"
	"github.com/mkravtsov/wb-review-scraper/internal/config"
	"github.com/mkravtsov/wb-review-scraper/internal/database"
	"github.com/mkravtsov/wb-review-scraper/internal/scraper"
	"github.com/mkravtsov/wb-review-scraper/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("failed to prepare database schema", "error", err)
		os.Exit(1)
	}

	// Redis client for the bundle cache
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}

	bundleCache := cache.NewBundles(redisClient, cfg.Redis.TTL, logger)

	// Analysis pipeline with the CSV report sink
	reportWriter := storage.NewReportWriter(cfg.Analyzer.DataDir, logger)
	an := analyzer.New(
		analyzer.NewSentimentClient(cfg.Analyzer.SentimentURL, cfg.Analyzer.Timeout),
		analyzer.NewSummarizerClient(cfg.Analyzer.SummarizerURL, cfg.Analyzer.Timeout),
		reportWriter,
		logger,
	)

	// Scraper
	wb := scraper.NewWildberries(browserOptions(cfg.Browser), nil, scraperOptions(cfg.Scraper), logger)

	// Initialize API handlers
	handlers := api.NewHandlers(wb, db, bundleCache, an, logger)

	// Setup Chi router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", handlers.Health)

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reviews", handlers.ScrapeReviews)
		r.Get("/reviews/{article}", handlers.GetReviews)
		r.Get("/reviews/{article}/reports", handlers.GetArticleReports)
	})

	// Start server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func browserOptions(cfg config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.Timeout = cfg.Timeout
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.AcceptLanguage = cfg.AcceptLanguage
	opts.TimezoneID = cfg.TimezoneID
	opts.Locale = cfg.Locale
	opts.ProxyServer = cfg.ProxyServer
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	return opts
}

func scraperOptions(cfg config.ScraperConfig) scraper.Options {
	opts := scraper.DefaultParseOptions()
	opts.MaxScrolls = cfg.MaxScrolls
	opts.ScrollDelay = cfg.ScrollDelay
	opts.ElementTimeout = cfg.ElementTimeout
	opts.ReviewsWait = cfg.ReviewsWait
	opts.NavRetries = cfg.MaxRetries
	opts.MaxReviews = cfg.MaxReviews
	return opts
}

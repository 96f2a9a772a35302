package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mkravtsov/wb-review-scraper/internal/analyzer"
	"github.com/mkravtsov/wb-review-scraper/internal/browser"
	"github.com/mkravtsov/wb-review-scraper/internal/config"
	"github.com/mkravtsov/wb-review-scraper/internal/models"
	"github.com/mkravtsov/wb-review-scraper/internal/queue"
	"github.com/mkravtsov/wb-review-scraper/internal/ratelimit"
	"github.com/mkravtsov/wb-review-scraper/internal/scraper"
	"github.com/mkravtsov/wb-review-scraper/internal/storage"
)

func main() {
	var (
		articles  = flag.String("articles", "", "Comma-separated list of Wildberries article numbers")
		urls      = flag.String("urls", "", "Comma-separated list of Wildberries product URLs")
		inputFile = flag.String("file", "", "File containing article numbers or URLs (one per line)")
		output    = flag.String("output", "stdout", "Output format: stdout, json")
		analyze   = flag.Bool("analyze", false, "Run sentiment analysis and summarization on scraped reviews")
		headless  = flag.Bool("headless", true, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	logger.Info("Starting Wildberries review parser")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	browserOpts := browserOptions(cfg.Browser)
	browserOpts.Headless = *headless && cfg.Browser.Headless

	wb := scraper.NewWildberries(browserOpts, nil, scraperOptions(cfg.Scraper), logger)

	var an *analyzer.Analyzer
	if *analyze {
		an = analyzer.New(
			analyzer.NewSentimentClient(cfg.Analyzer.SentimentURL, cfg.Analyzer.Timeout),
			analyzer.NewSummarizerClient(cfg.Analyzer.SummarizerURL, cfg.Analyzer.Timeout),
			storage.NewReportWriter(cfg.Analyzer.DataDir, logger),
			logger,
		)
	}

	taskQueue := queue.NewInMemoryQueue()
	defer taskQueue.Close()

	if err := loadTasks(taskQueue, *articles, *urls, *inputFile); err != nil {
		logger.Error("Failed to load tasks", "error", err)
		os.Exit(1)
	}

	if taskQueue.Size() == 0 {
		fmt.Println("No tasks to process. Use -articles, -urls, or -file to specify products to scrape.")
		flag.Usage()
		os.Exit(1)
	}

	rateLimiter := ratelimit.NewAdaptiveRateLimiter(
		cfg.Scraper.RateLimitMin,
		cfg.Scraper.RateLimitMax,
	)

	logger.Info("Starting scraping", "tasks", taskQueue.Size())

	for taskQueue.Size() > 0 {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, exiting")
			return
		default:
		}

		task, err := taskQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrQueueEmpty) || errors.Is(err, queue.ErrQueueClosed) {
				break
			}
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("Failed to get task from queue", "error", err)
			continue
		}

		if err := rateLimiter.Wait(ctx); err != nil {
			logger.Error("Rate limiter error", "error", err)
			continue
		}

		logger.Info("Processing task", "identifier", task.Identifier)

		bundle, err := wb.Parse(ctx, task.Identifier)
		if err != nil {
			logger.Error("Failed to scrape reviews", "identifier", task.Identifier, "error", err)
			rateLimiter.RecordError()

			if !errors.Is(err, scraper.ErrInvalidArticle) && task.Attempts < cfg.Scraper.MaxRetries {
				task.Attempts++
				taskQueue.Push(task)
				logger.Info("Retrying task", "identifier", task.Identifier, "attempt", task.Attempts)
			}
			continue
		}

		rateLimiter.RecordSuccess()

		if an != nil {
			if _, err := an.AnalyzeBundle(ctx, bundle); err != nil {
				logger.Error("Failed to analyze reviews", "article", bundle.ArticleID, "error", err)
			}
		}

		if err := outputResult(bundle, *output); err != nil {
			logger.Error("Failed to output result", "error", err)
		}
	}

	logger.Info("Scraping completed")
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
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
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

func loadTasks(q queue.Queue, articles, urls, inputFile string) error {
	var items []string

	if articles != "" {
		items = append(items, strings.Split(articles, ",")...)
	}

	if urls != "" {
		items = append(items, strings.Split(urls, ",")...)
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				items = append(items, line)
			}
		}
	}

	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		// Reject unparseable identifiers up front so the worker loop only
		// sees tasks it can resolve.
		if _, err := scraper.ResolveArticle(item); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %q: not an article number or product URL\n", item)
			continue
		}

		if err := q.Push(queue.NewTask(item, 1)); err != nil {
			return err
		}
	}

	return nil
}

func outputResult(bundle *models.ReviewBundle, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(bundle)
	default:
		fmt.Printf("Товар: %s\n", bundle.ProductName)
		fmt.Printf("Артикул: %s\n", bundle.ArticleID)
		fmt.Printf("Средняя оценка: %.1f\n", bundle.AvgRating)
		fmt.Printf("Достоинства: %s\n", bundle.Advantages)
		fmt.Printf("Недостатки: %s\n", bundle.Disadvantages)
		fmt.Printf("Комментарии: %s\n", bundle.Comments)
		fmt.Println("---")
	}
	return nil
}

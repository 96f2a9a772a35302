package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/mkravtsov/wb-review-scraper/internal/browser"
	"github.com/mkravtsov/wb-review-scraper/internal/locator"
	"github.com/mkravtsov/wb-review-scraper/internal/models"
	"github.com/mkravtsov/wb-review-scraper/internal/normalize"
	"github.com/mkravtsov/wb-review-scraper/internal/parser"
)

const (
	wildberriesBaseURL = "https://www.wildberries.ru"
	articleURLPattern  = `catalog/(\d+)/`
)

var articleRe = regexp.MustCompile(articleURLPattern)

// reviewsButtonStrategy locates the "see all reviews" control across the
// known desktop and mobile markup variants.
var reviewsButtonStrategy = locator.Strategy{
	Target: "reviews button",
	Candidates: []locator.Candidate{
		{Kind: locator.KindCSS, Value: ".comments__btn-all"},
		{Kind: locator.KindCSS, Value: "a[data-link*='feedbacks']"},
		{Kind: locator.KindCSS, Value: "a[href*='feedbacks']"},
		{Kind: locator.KindCSS, Value: ".product-review__all-reviews"},
		{Kind: locator.KindCSS, Value: `button.btn-base:has-text("отзывы")`},
		{Kind: locator.KindText, Value: "Смотреть все отзывы"},
	},
}

// variantFilterStrategy locates the toggle restricting reviews to the
// opened product variant. It renders asynchronously, so callers wait for it.
var variantFilterStrategy = locator.Strategy{
	Target: "variant filter",
	Candidates: []locator.Candidate{
		{Kind: locator.KindText, Value: "Этот вариант товара"},
	},
}

// reviewContainerStrategy matches at least one rendered review block.
var reviewContainerStrategy = locator.Strategy{
	Target: "review container",
	Candidates: []locator.Candidate{
		{Kind: locator.KindCSS, Value: ".feedback__content, .comment__content, .product-feedbacks__block"},
	},
}

// Options bounds the page-state progression of a single parse call.
type Options struct {
	// FindScrollAttempts bounds the scroll-and-look loop for the reviews
	// button on the product page.
	FindScrollAttempts int
	// MaxScrolls bounds the lazy-load scroll loop on the reviews view.
	MaxScrolls int
	// ScrollDelay is the pause between scroll steps.
	ScrollDelay time.Duration
	// ElementTimeout bounds waits for asynchronously rendered elements.
	ElementTimeout time.Duration
	// ReviewsWait bounds the non-fatal wait for the first review block to
	// render before scrolling starts.
	ReviewsWait time.Duration
	// SettleDelay is the pause after heavyweight navigations.
	SettleDelay time.Duration
	// NavRetries bounds navigation retries per URL.
	NavRetries int
	// MaxReviews caps the review blocks extracted per page.
	MaxReviews int
}

func DefaultParseOptions() Options {
	return Options{
		FindScrollAttempts: 10,
		MaxScrolls:         15,
		ScrollDelay:        500 * time.Millisecond,
		ElementTimeout:     15 * time.Second,
		ReviewsWait:        15 * time.Second,
		SettleDelay:        5 * time.Second,
		NavRetries:         3,
		MaxReviews:         50,
	}
}

// Wildberries drives a full product page → reviews panel → extraction pass.
// Each Parse call owns exactly one browser session and releases it on every
// exit path.
type Wildberries struct {
	browserOpts *browser.Options
	parser      parser.Parser
	opts        Options
	logger      *slog.Logger
}

func NewWildberries(browserOpts *browser.Options, p parser.Parser, opts Options, logger *slog.Logger) *Wildberries {
	if p == nil {
		p = parser.NewWildberriesParser(opts.MaxReviews)
	}
	return &Wildberries{
		browserOpts: browserOpts,
		parser:      p,
		opts:        opts,
		logger:      logger.With("component", "scraper"),
	}
}

// ResolveArticle extracts the numeric article id from an identifier that is
// either a bare digit string or a product URL with a catalog/<id>/ segment.
func ResolveArticle(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)

	if matches := articleRe.FindStringSubmatch(identifier); len(matches) == 2 {
		return matches[1], nil
	}

	if identifier != "" && isDigits(identifier) {
		return identifier, nil
	}

	return "", fmt.Errorf("%q: %w", identifier, ErrInvalidArticle)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ProductURL returns the canonical product page URL for an article id.
func ProductURL(article string) string {
	return fmt.Sprintf("%s/catalog/%s/detail.aspx", wildberriesBaseURL, article)
}

// FeedbacksURL returns the deterministic reviews page URL for an article id.
func FeedbacksURL(article string) string {
	return fmt.Sprintf("%s/catalog/%s/feedbacks", wildberriesBaseURL, article)
}

// Parse runs the end-to-end extraction for one identifier. A nil error
// guarantees a non-nil bundle; an empty bundle (no fragments rendered) is a
// valid outcome, not an error.
func (w *Wildberries) Parse(ctx context.Context, identifier string) (*models.ReviewBundle, error) {
	article, err := ResolveArticle(identifier)
	if err != nil {
		return nil, err
	}

	session, err := browser.Open(w.browserOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInit, err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			w.logger.Warn("session close failed", "error", err)
		}
	}()

	log := w.logger.With("article", article, "session_id", session.ID())
	log.Info("opening product page", "url", ProductURL(article))

	if err := session.GotoWithRetry(ProductURL(article), w.opts.NavRetries); err != nil {
		return nil, fmt.Errorf("failed to open product page: %w", err)
	}
	if err := sleep(ctx, w.opts.SettleDelay); err != nil {
		return nil, err
	}

	session.Humanize()

	info := w.productInfo(session, log)

	if err := w.enterReviewsView(ctx, session, article, log); err != nil {
		return nil, err
	}

	w.applyVariantFilter(ctx, session, log)

	if err := w.loadReviews(ctx, session, log); err != nil {
		return nil, err
	}

	html, err := session.Page().Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read reviews page content: %w", err)
	}

	fragments, err := w.parser.ExtractFragments(html)
	if err != nil {
		return nil, fmt.Errorf("failed to extract reviews: %w", err)
	}
	log.Info("extracted review fragments", "count", len(fragments))

	combined := normalize.Combine(fragments)

	bundle := models.NewReviewBundle(article)
	bundle.ProductName = info.Name
	bundle.AvgRating = info.AvgRating
	bundle.Advantages = normalize.StripEmoji(combined.Advantages)
	bundle.Disadvantages = normalize.StripEmoji(combined.Disadvantages)
	bundle.Comments = normalize.StripEmoji(combined.Comments)

	return bundle, nil
}

// productInfo reads the product header before leaving the product page.
// Failures degrade to the placeholder name and a zero rating.
func (w *Wildberries) productInfo(session *browser.Session, log *slog.Logger) *models.ProductInfo {
	fallback := &models.ProductInfo{Name: "Неизвестный товар", AvgRating: 0.0}

	html, err := session.Page().Content()
	if err != nil {
		log.Warn("failed to read product page content", "error", err)
		return fallback
	}

	info, err := w.parser.ParseProductInfo(html)
	if err != nil {
		log.Warn("failed to parse product info", "error", err)
		return fallback
	}

	log.Info("product info", "name", info.Name, "rating", info.AvgRating)
	return info
}

// enterReviewsView scrolls the product page looking for the reviews control
// and clicks it; when no control turns up it navigates straight to the
// feedbacks URL. Only when both strategies fail is the call terminal.
func (w *Wildberries) enterReviewsView(ctx context.Context, session *browser.Session, article string, log *slog.Logger) error {
	page := session.Page()

	for i := 0; i < w.opts.FindScrollAttempts; i++ {
		if _, err := page.Evaluate(`window.scrollBy(0, window.innerHeight)`); err != nil {
			log.Warn("scroll failed", "error", err)
		}
		if err := sleep(ctx, w.opts.ScrollDelay); err != nil {
			return err
		}

		button, err := locator.Find(page, reviewsButtonStrategy)
		if err != nil {
			continue
		}

		log.Info("found reviews button", "attempt", i+1)
		if err := button.Click(); err != nil {
			log.Warn("reviews button click failed", "error", err)
			continue
		}
		return sleep(ctx, w.opts.SettleDelay)
	}

	log.Info("reviews button not found, navigating to feedbacks URL directly")
	if err := session.GotoWithRetry(FeedbacksURL(article), w.opts.NavRetries); err != nil {
		return fmt.Errorf("%w: %v", ErrReviewsUnreachable, err)
	}
	return sleep(ctx, w.opts.SettleDelay)
}

// applyVariantFilter clicks the "this product variant" toggle when it
// appears. Its absence is normal and never fails the parse.
func (w *Wildberries) applyVariantFilter(ctx context.Context, session *browser.Session, log *slog.Logger) {
	page := session.Page()

	button, err := locator.WaitFor(page, variantFilterStrategy, w.opts.ElementTimeout)
	if err != nil {
		log.Info("variant filter not present", "reason", err)
		return
	}

	if err := button.ScrollIntoViewIfNeeded(); err != nil {
		log.Warn("failed to scroll variant filter into view", "error", err)
	}
	if err := button.Click(); err != nil {
		log.Warn("variant filter click failed", "error", err)
		return
	}

	log.Info("applied variant filter")
	_ = sleep(ctx, 2*time.Second)
}

// sleep pauses without outliving the call's context.
func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

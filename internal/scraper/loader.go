package scraper

import (
	"context"
	"log/slog"

	"github.com/mkravtsov/wb-review-scraper/internal/browser"
	"github.com/mkravtsov/wb-review-scraper/internal/locator"
)

// loadReviews triggers the lazy rendering of review blocks by scrolling the
// viewport one screen height at a time, MaxScrolls times. It first waits,
// bounded and non-fatally, for at least one review container so scrolling
// does not run against a still-empty page. Fewer rendered reviews than
// expected is not a failure; extraction works with whatever is present.
func (w *Wildberries) loadReviews(ctx context.Context, session *browser.Session, log *slog.Logger) error {
	page := session.Page()

	if _, err := locator.WaitFor(page, reviewContainerStrategy, w.opts.ReviewsWait); err != nil {
		log.Warn("timed out waiting for review blocks, continuing anyway", "reason", err)
	}

	for i := 0; i < w.opts.MaxScrolls; i++ {
		if _, err := page.Evaluate(`window.scrollBy(0, window.innerHeight)`); err != nil {
			log.Warn("scroll failed during review loading", "error", err, "attempt", i+1)
		}
		if err := sleep(ctx, w.opts.ScrollDelay); err != nil {
			return err
		}
	}

	return nil
}

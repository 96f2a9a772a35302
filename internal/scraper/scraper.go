package scraper

import (
	"context"
	"errors"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
)

var (
	// ErrInvalidArticle rejects identifiers that are neither a bare numeric
	// article nor a product URL with a recognizable id segment. Raised
	// before any browser work starts.
	ErrInvalidArticle = errors.New("invalid article or product URL")
	// ErrSessionInit means the browser engine could not start.
	ErrSessionInit = errors.New("browser session could not start")
	// ErrReviewsUnreachable means neither the reviews control nor the
	// direct feedbacks URL produced a reviews view. Terminal for the call;
	// callers surface it as "no reviews found".
	ErrReviewsUnreachable = errors.New("reviews view unreachable")
)

// Scraper is the end-to-end parse operation. Implementations create and
// release all browser resources within a single call.
type Scraper interface {
	Parse(ctx context.Context, identifier string) (*models.ReviewBundle, error)
}

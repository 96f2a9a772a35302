package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkravtsov/wb-review-scraper/internal/analyzer"
	"github.com/mkravtsov/wb-review-scraper/internal/database"
	"github.com/mkravtsov/wb-review-scraper/internal/models"
	"github.com/mkravtsov/wb-review-scraper/internal/scraper"
)

// Store persists scraped bundles and their analysis reports.
type Store interface {
	SaveBundle(ctx context.Context, b *models.ReviewBundle) error
	GetBundle(ctx context.Context, articleID string) (*models.ReviewBundle, error)
	SaveReports(ctx context.Context, reports []models.CategoryReport) error
	GetReports(ctx context.Context, articleID string, limit int) ([]database.StoredReport, error)
	CountBundles(ctx context.Context) (int, error)
}

// Cache is the hot path in front of Store for repeat scrape requests.
type Cache interface {
	Get(ctx context.Context, articleID string) (*models.ReviewBundle, bool, error)
	Set(ctx context.Context, bundle *models.ReviewBundle) error
}

// Analyzer produces per-category sentiment and summary reports.
type Analyzer interface {
	AnalyzeBundle(ctx context.Context, bundle *models.ReviewBundle) ([]models.CategoryReport, error)
}

type Handlers struct {
	scraper  scraper.Scraper
	store    Store
	cache    Cache
	analyzer Analyzer
	logger   *slog.Logger
}

func NewHandlers(s scraper.Scraper, store Store, cache Cache, an Analyzer, logger *slog.Logger) *Handlers {
	return &Handlers{
		scraper:  s,
		store:    store,
		cache:    cache,
		analyzer: an,
		logger:   logger,
	}
}

// ScrapeRequest asks for reviews of one product, by article number or URL.
type ScrapeRequest struct {
	Article string `json:"article"`
	URL     string `json:"url"`
	Analyze bool   `json:"analyze"`
}

// ScrapeResponse is the scraped bundle plus optional analysis.
type ScrapeResponse struct {
	ArticleID        string                  `json:"article_id"`
	ProductName      string                  `json:"product_name"`
	AvgRating        float64                 `json:"avg_rating"`
	Advantages       string                  `json:"advantages"`
	Disadvantages    string                  `json:"disadvantages"`
	Comments         string                  `json:"comments"`
	ScrapedAt        time.Time               `json:"scraped_at"`
	Cached           bool                    `json:"cached"`
	Reports          []models.CategoryReport `json:"reports,omitempty"`
	OverallSentiment string                  `json:"overall_sentiment,omitempty"`
}

func bundleResponse(b *models.ReviewBundle, cached bool) ScrapeResponse {
	return ScrapeResponse{
		ArticleID:     b.ArticleID,
		ProductName:   b.ProductName,
		AvgRating:     b.AvgRating,
		Advantages:    b.Advantages,
		Disadvantages: b.Disadvantages,
		Comments:      b.Comments,
		ScrapedAt:     b.ScrapedAt,
		Cached:        cached,
	}
}

// ScrapeReviews handles scrape requests. A fresh cache entry short-circuits
// the browser session unless analysis is requested.
func (h *Handlers) ScrapeReviews(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identifier := req.Article
	if identifier == "" {
		identifier = req.URL
	}
	if identifier == "" {
		h.respondError(w, http.StatusBadRequest, "either article or url is required")
		return
	}

	articleID, err := scraper.ResolveArticle(identifier)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "could not resolve article number")
		return
	}

	bundle, cached := h.lookupCache(r.Context(), articleID)
	if bundle == nil {
		bundle, err = h.scraper.Parse(r.Context(), identifier)
		if err != nil {
			h.logger.Error("scrape failed", "article", articleID, "error", err)
			h.respondScrapeError(w, err)
			return
		}

		if h.store != nil {
			if err := h.store.SaveBundle(r.Context(), bundle); err != nil {
				h.logger.Error("failed to store bundle", "article", articleID, "error", err)
			}
		}
		if h.cache != nil {
			if err := h.cache.Set(r.Context(), bundle); err != nil {
				h.logger.Warn("failed to cache bundle", "article", articleID, "error", err)
			}
		}
	}

	resp := bundleResponse(bundle, cached)

	if req.Analyze && h.analyzer != nil {
		reports, err := h.analyzer.AnalyzeBundle(r.Context(), bundle)
		if err != nil {
			h.logger.Error("analysis failed", "article", articleID, "error", err)
		} else if len(reports) > 0 {
			resp.Reports = reports
			resp.OverallSentiment = analyzer.OverallSentiment(reports)
			if h.store != nil {
				if err := h.store.SaveReports(r.Context(), reports); err != nil {
					h.logger.Error("failed to store reports", "article", articleID, "error", err)
				}
			}
		}
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// GetReviews returns the stored bundle for an article without scraping.
func (h *Handlers) GetReviews(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "article")
	if articleID == "" {
		h.respondError(w, http.StatusBadRequest, "article is required")
		return
	}

	if bundle, cached := h.lookupCache(r.Context(), articleID); bundle != nil && cached {
		h.respondJSON(w, http.StatusOK, bundleResponse(bundle, true))
		return
	}

	if h.store == nil {
		h.respondError(w, http.StatusNotFound, "reviews not found")
		return
	}

	bundle, err := h.store.GetBundle(r.Context(), articleID)
	if err != nil {
		h.logger.Error("failed to load bundle", "article", articleID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load reviews")
		return
	}
	if bundle == nil {
		h.respondError(w, http.StatusNotFound, "reviews not found")
		return
	}

	h.respondJSON(w, http.StatusOK, bundleResponse(bundle, false))
}

// ReportsResponse is the stored analysis history for one article.
type ReportsResponse struct {
	ArticleID        string                  `json:"article_id"`
	Reports          []database.StoredReport `json:"reports"`
	OverallSentiment string                  `json:"overall_sentiment,omitempty"`
}

// GetArticleReports returns the stored analysis rows for an article,
// newest first.
func (h *Handlers) GetArticleReports(w http.ResponseWriter, r *http.Request) {
	articleID := chi.URLParam(r, "article")
	if articleID == "" {
		h.respondError(w, http.StatusBadRequest, "article is required")
		return
	}

	if h.store == nil {
		h.respondError(w, http.StatusNotFound, "reports not found")
		return
	}

	stored, err := h.store.GetReports(r.Context(), articleID, 50)
	if err != nil {
		h.logger.Error("failed to load reports", "article", articleID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to load reports")
		return
	}
	if len(stored) == 0 {
		h.respondError(w, http.StatusNotFound, "reports not found")
		return
	}

	recent := make([]models.CategoryReport, len(stored))
	for i, s := range stored {
		recent[i] = s.CategoryReport
	}

	h.respondJSON(w, http.StatusOK, ReportsResponse{
		ArticleID:        articleID,
		Reports:          stored,
		OverallSentiment: analyzer.OverallSentiment(recent),
	})
}

// Health reports service liveness, with the stored article count when a
// store is attached.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}

	if h.store != nil {
		if count, err := h.store.CountBundles(r.Context()); err == nil {
			health["bundles"] = count
		}
	}

	h.respondJSON(w, http.StatusOK, health)
}

func (h *Handlers) lookupCache(ctx context.Context, articleID string) (*models.ReviewBundle, bool) {
	if h.cache == nil {
		return nil, false
	}

	bundle, ok, err := h.cache.Get(ctx, articleID)
	if err != nil {
		h.logger.Warn("cache lookup failed", "article", articleID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	return bundle, true
}

func (h *Handlers) respondScrapeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scraper.ErrInvalidArticle):
		h.respondError(w, http.StatusBadRequest, "could not resolve article number")
	case errors.Is(err, scraper.ErrReviewsUnreachable):
		h.respondError(w, http.StatusBadGateway, "reviews page is unreachable")
	default:
		h.respondError(w, http.StatusInternalServerError, "scrape failed")
	}
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

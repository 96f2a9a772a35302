package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkravtsov/wb-review-scraper/internal/database"
	"github.com/mkravtsov/wb-review-scraper/internal/models"
	"github.com/mkravtsov/wb-review-scraper/internal/scraper"
)

type stubScraper struct {
	bundle *models.ReviewBundle
	err    error
	calls  int
}

func (s *stubScraper) Parse(ctx context.Context, identifier string) (*models.ReviewBundle, error) {
	s.calls++
	return s.bundle, s.err
}

type stubStore struct {
	bundles map[string]*models.ReviewBundle
	reports []models.CategoryReport
}

func newStubStore() *stubStore {
	return &stubStore{bundles: make(map[string]*models.ReviewBundle)}
}

func (s *stubStore) SaveBundle(ctx context.Context, b *models.ReviewBundle) error {
	s.bundles[b.ArticleID] = b
	return nil
}

func (s *stubStore) GetBundle(ctx context.Context, articleID string) (*models.ReviewBundle, error) {
	return s.bundles[articleID], nil
}

func (s *stubStore) SaveReports(ctx context.Context, reports []models.CategoryReport) error {
	s.reports = append(s.reports, reports...)
	return nil
}

func (s *stubStore) GetReports(ctx context.Context, articleID string, limit int) ([]database.StoredReport, error) {
	var out []database.StoredReport
	for _, r := range s.reports {
		if r.ArticleID == articleID {
			out = append(out, database.StoredReport{CategoryReport: r})
		}
	}
	return out, nil
}

func (s *stubStore) CountBundles(ctx context.Context) (int, error) {
	return len(s.bundles), nil
}

type stubCache struct {
	entries map[string]*models.ReviewBundle
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string]*models.ReviewBundle)}
}

func (c *stubCache) Get(ctx context.Context, articleID string) (*models.ReviewBundle, bool, error) {
	b, ok := c.entries[articleID]
	return b, ok, nil
}

func (c *stubCache) Set(ctx context.Context, b *models.ReviewBundle) error {
	c.entries[b.ArticleID] = b
	return nil
}

type stubAnalyzer struct {
	reports []models.CategoryReport
}

func (a *stubAnalyzer) AnalyzeBundle(ctx context.Context, b *models.ReviewBundle) ([]models.CategoryReport, error) {
	return a.reports, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRouter(h *Handlers) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", h.Health)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reviews", h.ScrapeReviews)
		r.Get("/reviews/{article}", h.GetReviews)
		r.Get("/reviews/{article}/reports", h.GetArticleReports)
	})
	return r
}

func sampleBundle(article string) *models.ReviewBundle {
	return &models.ReviewBundle{
		ArticleID:     article,
		ProductName:   "Куртка зимняя",
		AvgRating:     4.6,
		Advantages:    "Тёплая.",
		Disadvantages: "Дорогая.",
		ScrapedAt:     time.Now(),
	}
}

func postJSON(t *testing.T, router http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestScrapeReviews(t *testing.T) {
	sc := &stubScraper{bundle: sampleBundle("146972802")}
	store := newStubStore()
	h := NewHandlers(sc, store, nil, nil, testLogger())

	rec := postJSON(t, testRouter(h), "/api/v1/reviews", ScrapeRequest{Article: "146972802"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "146972802", resp.ArticleID)
	assert.Equal(t, "Куртка зимняя", resp.ProductName)
	assert.False(t, resp.Cached)
	assert.Empty(t, resp.Reports)

	// The bundle was persisted.
	assert.Contains(t, store.bundles, "146972802")
	assert.Equal(t, 1, sc.calls)
}

func TestScrapeReviewsServesFromCache(t *testing.T) {
	sc := &stubScraper{}
	cache := newStubCache()
	cache.Set(context.Background(), sampleBundle("146972802"))

	h := NewHandlers(sc, nil, cache, nil, testLogger())

	rec := postJSON(t, testRouter(h), "/api/v1/reviews", ScrapeRequest{Article: "146972802"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Cached)
	assert.Zero(t, sc.calls, "cache hit must not launch a scrape")
}

func TestScrapeReviewsWithAnalysis(t *testing.T) {
	sc := &stubScraper{bundle: sampleBundle("146972802")}
	store := newStubStore()
	an := &stubAnalyzer{reports: []models.CategoryReport{
		{ArticleID: "146972802", Category: "Достоинства", Sentiment: "положительная", Confidence: 90},
	}}
	h := NewHandlers(sc, store, nil, an, testLogger())

	rec := postJSON(t, testRouter(h), "/api/v1/reviews", ScrapeRequest{Article: "146972802", Analyze: true})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Reports, 1)
	assert.Equal(t, "положительная", resp.OverallSentiment)
	assert.Len(t, store.reports, 1)
}

func TestScrapeReviewsResolvesArticleFromURL(t *testing.T) {
	sc := &stubScraper{bundle: sampleBundle("146972802")}
	h := NewHandlers(sc, nil, nil, nil, testLogger())

	rec := postJSON(t, testRouter(h), "/api/v1/reviews", ScrapeRequest{
		URL: "https://www.wildberries.ru/catalog/146972802/detail.aspx",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, sc.calls)
}

func TestScrapeReviewsRejectsBadRequests(t *testing.T) {
	h := NewHandlers(&stubScraper{}, nil, nil, nil, testLogger())
	router := testRouter(h)

	rec := postJSON(t, router, "/api/v1/reviews", ScrapeRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/v1/reviews", ScrapeRequest{Article: "no digits here"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeReviewsMapsScrapeErrors(t *testing.T) {
	h := NewHandlers(&stubScraper{err: scraper.ErrReviewsUnreachable}, nil, nil, nil, testLogger())

	rec := postJSON(t, testRouter(h), "/api/v1/reviews", ScrapeRequest{Article: "146972802"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestGetReviews(t *testing.T) {
	store := newStubStore()
	store.SaveBundle(context.Background(), sampleBundle("146972802"))
	h := NewHandlers(&stubScraper{}, store, nil, nil, testLogger())
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews/146972802", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ScrapeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "Куртка зимняя", resp.ProductName)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reviews/999", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetArticleReports(t *testing.T) {
	store := newStubStore()
	store.SaveReports(context.Background(), []models.CategoryReport{
		{ArticleID: "146972802", Category: "Достоинства", Sentiment: "положительная", Confidence: 90},
		{ArticleID: "146972802", Category: "Недостатки", Sentiment: "негативная", Confidence: 70},
	})
	h := NewHandlers(&stubScraper{}, store, nil, nil, testLogger())
	router := testRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews/146972802/reports", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReportsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Reports, 2)
	assert.Equal(t, "положительная", resp.OverallSentiment)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reviews/999/reports", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h := NewHandlers(&stubScraper{}, nil, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthReportsBundleCount(t *testing.T) {
	store := newStubStore()
	store.SaveBundle(context.Background(), sampleBundle("1"))
	h := NewHandlers(&stubScraper{}, store, nil, nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	testRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","bundles":1}`, rec.Body.String())
}

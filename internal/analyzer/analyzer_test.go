package analyzer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sentimentServer(t *testing.T, label string, confidence int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze", r.URL.Path)

		var req struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Text)

		json.NewEncoder(w).Encode(Verdict{Label: label, Confidence: confidence})
	}))
}

func summarizerServer(t *testing.T, summary string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/summarize", r.URL.Path)

		var req struct {
			Text     string `json:"text"`
			Category string `json:"category"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Category)

		json.NewEncoder(w).Encode(map[string]string{"summary": summary})
	}))
}

type memorySink struct {
	bundles []*models.ReviewBundle
	reports [][]models.CategoryReport
}

func (m *memorySink) Append(bundle *models.ReviewBundle, reports []models.CategoryReport) error {
	m.bundles = append(m.bundles, bundle)
	m.reports = append(m.reports, reports)
	return nil
}

func TestAnalyzeBundle(t *testing.T) {
	sentSrv := sentimentServer(t, "положительная", 88)
	defer sentSrv.Close()
	sumSrv := summarizerServer(t, "Удобная и тёплая куртка.")
	defer sumSrv.Close()

	sink := &memorySink{}
	a := New(
		NewSentimentClient(sentSrv.URL, 5*time.Second),
		NewSummarizerClient(sumSrv.URL, 5*time.Second),
		sink,
		testLogger(),
	)

	bundle := models.NewReviewBundle("12345678")
	bundle.AvgRating = 4.7
	bundle.Advantages = "Тёплая. Удобная."
	bundle.Disadvantages = "Дорогая."
	// Comments left empty on purpose.

	reports, err := a.AnalyzeBundle(context.Background(), bundle)
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.Equal(t, "Достоинства", reports[0].Category)
	assert.Equal(t, "Недостатки", reports[1].Category)
	for _, r := range reports {
		assert.Equal(t, "12345678", r.ArticleID)
		assert.InDelta(t, 4.7, r.AvgRating, 1e-9)
		assert.Equal(t, "положительная", r.Sentiment)
		assert.Equal(t, 88, r.Confidence)
		assert.Equal(t, "Удобная и тёплая куртка.", r.Summary)
	}

	require.Len(t, sink.reports, 1)
	assert.Len(t, sink.reports[0], 2)
}

func TestAnalyzeBundleStripsEmojiBeforeAnalysis(t *testing.T) {
	var seenText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Text string `json:"text"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		seenText = req.Text
		json.NewEncoder(w).Encode(Verdict{Label: SentimentNeutral, Confidence: 50})
	}))
	defer srv.Close()
	sumSrv := summarizerServer(t, "ок.")
	defer sumSrv.Close()

	a := New(
		NewSentimentClient(srv.URL, 5*time.Second),
		NewSummarizerClient(sumSrv.URL, 5*time.Second),
		nil,
		testLogger(),
	)

	bundle := models.NewReviewBundle("1")
	bundle.Comments = "Отлично 👍!"

	_, err := a.AnalyzeBundle(context.Background(), bundle)
	require.NoError(t, err)
	assert.Equal(t, "Отлично !", seenText)
}

func TestAnalyzeBundleDegradesOnServiceFailure(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()

	a := New(
		NewSentimentClient(failing.URL, 5*time.Second),
		NewSummarizerClient(failing.URL, 5*time.Second),
		nil,
		testLogger(),
	)

	bundle := models.NewReviewBundle("2")
	bundle.Advantages = "Хорошее качество."

	reports, err := a.AnalyzeBundle(context.Background(), bundle)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, SentimentNeutral, reports[0].Sentiment)
	assert.Equal(t, 0, reports[0].Confidence)
	assert.Equal(t, SummaryFallback, reports[0].Summary)
}

func TestAnalyzeBundleEmptyBundleProducesNoReports(t *testing.T) {
	a := New(nil, nil, nil, testLogger())

	reports, err := a.AnalyzeBundle(context.Background(), models.NewReviewBundle("3"))
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSentimentClientClampsConfidence(t *testing.T) {
	srv := sentimentServer(t, "положительная", 150)
	defer srv.Close()

	verdict, err := NewSentimentClient(srv.URL, time.Second).Analyze(context.Background(), "текст")
	require.NoError(t, err)
	assert.Equal(t, 100, verdict.Confidence)
}

func TestSanitizeSummary(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		category string
		want     string
	}{
		{
			name:     "numbered list prefixes removed",
			in:       "1. Тёплая. 2. Удобная.",
			category: "Достоинства",
			want:     "Тёплая. Удобная.",
		},
		{
			name:     "whitespace collapsed",
			in:       "Хорошо   сидит.\n\nНе  жмёт.",
			category: "Комментарий",
			want:     "Хорошо сидит. Не жмёт.",
		},
		{
			name:     "sentence cap applied for disadvantages",
			in:       "Раз. Два. Три. Четыре. Пять.",
			category: "Недостатки",
			want:     "Раз. Два. Три.",
		},
		{
			name:     "no terminal punctuation kept as-is",
			in:       "просто текст без точки",
			category: "Достоинства",
			want:     "просто текст без точки",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeSummary(tt.in, tt.category))
		})
	}
}

func TestOverallSentiment(t *testing.T) {
	reports := func(labels ...string) []models.CategoryReport {
		var out []models.CategoryReport
		for _, l := range labels {
			out = append(out, models.CategoryReport{Sentiment: l})
		}
		return out
	}

	assert.Equal(t, SentimentNeutral, OverallSentiment(nil))
	assert.Equal(t, "положительная",
		OverallSentiment(reports("положительная", "положительная", "негативная")))
	// Ties resolve to the more positive label.
	assert.Equal(t, "положительная",
		OverallSentiment(reports("положительная", "негативная")))
	assert.Equal(t, "крайне отрицательная",
		OverallSentiment(reports("крайне отрицательная")))
}

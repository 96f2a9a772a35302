// Package analyzer runs the sentiment and summarization collaborators over
// a parsed review bundle, one call per non-empty category, and records the
// verdicts in the CSV artifact.
package analyzer

import (
	"context"
	"log/slog"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
	"github.com/mkravtsov/wb-review-scraper/internal/normalize"
)

// Sentiment and Summarizer are the external analysis collaborators. Both
// degrade instead of failing; the analyzer logs their errors and keeps going.
type Sentiment interface {
	Analyze(ctx context.Context, text string) (Verdict, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text, category string) (string, error)
}

// ReportSink persists finished category reports. The CSV writer implements
// it; tests substitute their own.
type ReportSink interface {
	Append(bundle *models.ReviewBundle, reports []models.CategoryReport) error
}

type Analyzer struct {
	sentiment  Sentiment
	summarizer Summarizer
	sink       ReportSink
	logger     *slog.Logger
}

func New(sentiment Sentiment, summarizer Summarizer, sink ReportSink, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		sentiment:  sentiment,
		summarizer: summarizer,
		sink:       sink,
		logger:     logger.With("component", "analyzer"),
	}
}

// analyzedCategories fixes the order categories are analyzed and reported in.
var analyzedCategories = []models.Category{
	models.CategoryAdvantages,
	models.CategoryDisadvantages,
	models.CategoryComment,
}

// AnalyzeBundle produces one report per non-empty category of the bundle and
// appends them to the sink. Collaborator failures degrade the affected
// category to a neutral verdict or the fallback summary; only sink failures
// propagate.
func (a *Analyzer) AnalyzeBundle(ctx context.Context, bundle *models.ReviewBundle) ([]models.CategoryReport, error) {
	var reports []models.CategoryReport

	for _, category := range analyzedCategories {
		text := normalize.StripEmoji(bundle.CategoryText(category))
		if text == "" {
			continue
		}

		label := category.Label()
		log := a.logger.With("article", bundle.ArticleID, "category", label)

		verdict, err := a.sentiment.Analyze(ctx, text)
		if err != nil {
			log.Warn("sentiment degraded", "error", err)
		}

		summary, err := a.summarizer.Summarize(ctx, text, label)
		if err != nil {
			log.Warn("summarization degraded", "error", err)
		}

		reports = append(reports, models.CategoryReport{
			ArticleID:  bundle.ArticleID,
			AvgRating:  bundle.AvgRating,
			Category:   label,
			Text:       text,
			Sentiment:  verdict.Label,
			Confidence: verdict.Confidence,
			Summary:    summary,
		})
	}

	if len(reports) > 0 && a.sink != nil {
		if err := a.sink.Append(bundle, reports); err != nil {
			return reports, err
		}
	}

	return reports, nil
}

// OverallSentiment is the majority label across reports; ties resolve to the
// more positive label. Empty input is neutral.
func OverallSentiment(reports []models.CategoryReport) string {
	if len(reports) == 0 {
		return SentimentNeutral
	}

	// Ordered from most positive to most negative so that on ties the
	// earlier (more positive) label wins.
	labels := []string{
		"крайне положительная",
		"положительная",
		SentimentNeutral,
		"негативная",
		"крайне отрицательная",
	}

	counts := make(map[string]int)
	for _, r := range reports {
		counts[r.Sentiment]++
	}

	best := SentimentNeutral
	bestCount := 0
	for _, label := range labels {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}

	return best
}

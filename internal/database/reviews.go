package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
)

// EnsureSchema creates the review tables if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS review_bundles (
			article_id    TEXT PRIMARY KEY,
			product_name  TEXT NOT NULL DEFAULT '',
			avg_rating    DOUBLE PRECISION NOT NULL DEFAULT 0,
			advantages    TEXT NOT NULL DEFAULT '',
			disadvantages TEXT NOT NULL DEFAULT '',
			comments      TEXT NOT NULL DEFAULT '',
			scraped_at    TIMESTAMPTZ NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS category_reports (
			id         BIGSERIAL PRIMARY KEY,
			article_id TEXT NOT NULL REFERENCES review_bundles(article_id),
			category   TEXT NOT NULL,
			text       TEXT NOT NULL,
			sentiment  TEXT NOT NULL,
			confidence INT NOT NULL,
			summary    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_category_reports_article
			ON category_reports(article_id)`

	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}

	return nil
}

// SaveBundle inserts a scraped bundle or replaces the stored one for the
// same article.
func (db *DB) SaveBundle(ctx context.Context, b *models.ReviewBundle) error {
	query := `
		INSERT INTO review_bundles
			(article_id, product_name, avg_rating, advantages, disadvantages, comments, scraped_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (article_id) DO UPDATE SET
			product_name  = EXCLUDED.product_name,
			avg_rating    = EXCLUDED.avg_rating,
			advantages    = EXCLUDED.advantages,
			disadvantages = EXCLUDED.disadvantages,
			comments      = EXCLUDED.comments,
			scraped_at    = EXCLUDED.scraped_at,
			updated_at    = CURRENT_TIMESTAMP`

	_, err := db.pool.Exec(ctx, query,
		b.ArticleID, b.ProductName, b.AvgRating,
		b.Advantages, b.Disadvantages, b.Comments, b.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save bundle: %w", err)
	}

	return nil
}

// GetBundle retrieves the stored bundle for an article. Returns nil when the
// article has not been scraped yet.
func (db *DB) GetBundle(ctx context.Context, articleID string) (*models.ReviewBundle, error) {
	query := `
		SELECT article_id, product_name, avg_rating, advantages, disadvantages, comments, scraped_at
		FROM review_bundles
		WHERE article_id = $1`

	b := &models.ReviewBundle{}
	err := db.pool.QueryRow(ctx, query, articleID).Scan(
		&b.ArticleID, &b.ProductName, &b.AvgRating,
		&b.Advantages, &b.Disadvantages, &b.Comments, &b.ScrapedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bundle: %w", err)
	}

	return b, nil
}

// SaveReports stores the analyzed reports for a bundle in one transaction.
func (db *DB) SaveReports(ctx context.Context, reports []models.CategoryReport) error {
	if len(reports) == 0 {
		return nil
	}

	query := `
		INSERT INTO category_reports (article_id, category, text, sentiment, confidence, summary)
		VALUES ($1, $2, $3, $4, $5, $6)`

	return db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, r := range reports {
			_, err := tx.Exec(ctx, query,
				r.ArticleID, r.Category, r.Text, r.Sentiment, r.Confidence, r.Summary,
			)
			if err != nil {
				return fmt.Errorf("failed to save report: %w", err)
			}
		}
		return nil
	})
}

// StoredReport is a category report row with its storage timestamp.
type StoredReport struct {
	models.CategoryReport
	CreatedAt time.Time
}

// GetReports returns the analysis history for an article, newest first.
func (db *DB) GetReports(ctx context.Context, articleID string, limit int) ([]StoredReport, error) {
	query := `
		SELECT article_id, category, text, sentiment, confidence, summary, created_at
		FROM category_reports
		WHERE article_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, articleID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []StoredReport
	for rows.Next() {
		var r StoredReport
		err := rows.Scan(
			&r.ArticleID, &r.Category, &r.Text,
			&r.Sentiment, &r.Confidence, &r.Summary, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, r)
	}

	return reports, nil
}

// CountBundles returns how many articles have a stored bundle.
func (db *DB) CountBundles(ctx context.Context) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM review_bundles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bundles: %w", err)
	}
	return count, nil
}

package storage

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
)

// csvHeader is the column set downstream tooling expects. The last column is
// a reference slot filled in later by human annotators.
var csvHeader = []string{
	"№", "Артикул", "Средняя оценка", "Тип отзыва",
	"Исходный отзыв", "Оценка", "Уровень уверенности",
	"Автосуммаризация", "Эталон",
}

// ReportWriter appends analyzed category reports to a per-article CSV file
// under the data directory. Files are append-only and row numbers continue
// across runs. Safe for concurrent use.
type ReportWriter struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

func NewReportWriter(dir string, logger *slog.Logger) *ReportWriter {
	return &ReportWriter{
		dir:    dir,
		logger: logger.With("component", "report_writer"),
	}
}

// Path returns the CSV file path for an article.
func (w *ReportWriter) Path(articleID string) string {
	return filepath.Join(w.dir, fmt.Sprintf("reviews_data_%s.csv", articleID))
}

// Append writes one row per report. A missing file is created with the
// header first.
func (w *ReportWriter) Append(bundle *models.ReviewBundle, reports []models.CategoryReport) error {
	if len(reports) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	path := w.Path(bundle.ArticleID)
	rowNum, writeHeader, err := w.nextRowNumber(path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	cw.Comma = ';'

	if writeHeader {
		if err := cw.Write(csvHeader); err != nil {
			f.Close()
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}

	for _, r := range reports {
		row := []string{
			strconv.Itoa(rowNum),
			r.ArticleID,
			strconv.FormatFloat(r.AvgRating, 'f', -1, 64),
			r.Category,
			r.Text,
			r.Sentiment,
			strconv.Itoa(r.Confidence),
			r.Summary,
			"",
		}
		if err := cw.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write csv row: %w", err)
		}
		rowNum++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	w.logger.Info("reports appended", "article", bundle.ArticleID, "rows", len(reports), "path", path)
	return nil
}

// nextRowNumber counts existing data rows so numbering continues across
// appends. A missing or empty file starts at 1 and needs the header.
func (w *ReportWriter) nextRowNumber(path string) (int, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 1, true, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 {
		return 1, true, nil
	}

	return len(records), false, nil
}

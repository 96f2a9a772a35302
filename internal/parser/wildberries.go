package parser

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mkravtsov/wb-review-scraper/internal/models"
)

const (
	// Review block containers, primary markup variant first.
	primaryBlockSelector  = ".feedback__content, .comment__content, .product-feedbacks__block"
	fallbackBlockSelector = ".comments__item, .feedback, .feedbacks__item"

	// Labeled text items inside a structured review block.
	textItemSelector = ".feedback__text--item, .comment__text--item"
	boldItemSelector = ".feedback__text--item-bold, .comment__text--item-bold"

	// Plain review text in the degraded single-field layout.
	plainTextSelector = ".feedback__text, .comment__text"

	unknownProductName = "Неизвестный товар"

	// defaultMaxBlocks bounds extraction cost on pages with very long
	// review lists.
	defaultMaxBlocks = 50
)

// categoryMarkers maps the literal in-block headings to categories. Order
// matters: the first marker contained in a heading wins; a heading matching
// none discards the item.
var categoryMarkers = []struct {
	marker   string
	category models.Category
}{
	{"Достоинства", models.CategoryAdvantages},
	{"Недостатки", models.CategoryDisadvantages},
	{"Комментарий", models.CategoryComment},
}

var productNameSelectors = []string{
	".product-page__header h1",
	".product-line__name",
	"h1.same-part-kt__header",
}

var ratingSelectors = []string{
	".address-rate-mini",
	".product-review__rating",
}

// WildberriesParser turns materialized page HTML into review fragments and
// product header data. It is a pure function of its input: no browser
// interaction, deterministic output.
type WildberriesParser struct {
	maxBlocks int
}

// NewWildberriesParser builds a parser processing at most maxBlocks review
// blocks per page. A non-positive value selects the default cap.
func NewWildberriesParser(maxBlocks int) *WildberriesParser {
	if maxBlocks <= 0 {
		maxBlocks = defaultMaxBlocks
	}
	return &WildberriesParser{
		maxBlocks: maxBlocks,
	}
}

// ExtractFragments parses review blocks into raw per-category fragments.
// Malformed blocks are skipped, never abort the extraction; zero fragments
// is a valid result.
func (p *WildberriesParser) ExtractFragments(html string) ([]models.Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	blocks := doc.Find(primaryBlockSelector)
	if blocks.Length() == 0 {
		blocks = doc.Find(fallbackBlockSelector)
	}

	var fragments []models.Fragment

	blocks.EachWithBreak(func(i int, block *goquery.Selection) bool {
		if i >= p.maxBlocks {
			return false
		}

		items := block.Find(textItemSelector)
		if items.Length() > 0 {
			items.Each(func(_ int, item *goquery.Selection) {
				if frag, ok := p.classifyItem(item); ok {
					fragments = append(fragments, frag)
				}
			})
			return true
		}

		// Degraded layout: no labeled items, the whole block is one
		// unlabeled review text.
		text := block.Find(plainTextSelector).First().Text()
		if strings.TrimSpace(text) == "" {
			text = block.Text()
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			fragments = append(fragments, models.Fragment{
				Category: models.CategoryUnclassified,
				Text:     trimmed,
			})
		}
		return true
	})

	return fragments, nil
}

// classifyItem buckets one labeled text item. Items without a bold heading
// are plain comments; items whose heading matches no known marker are
// dropped.
func (p *WildberriesParser) classifyItem(item *goquery.Selection) (models.Fragment, bool) {
	bold := item.Find(boldItemSelector).First()
	if bold.Length() == 0 {
		text := strings.TrimSpace(item.Text())
		if text == "" {
			return models.Fragment{}, false
		}
		return models.Fragment{Category: models.CategoryComment, Text: text}, true
	}

	heading := strings.TrimSpace(bold.Text())
	for _, m := range categoryMarkers {
		if strings.Contains(heading, m.marker) {
			text := strings.TrimSpace(strings.Replace(item.Text(), heading, "", 1))
			if text == "" {
				return models.Fragment{}, false
			}
			return models.Fragment{Category: m.category, Text: text}, true
		}
	}

	return models.Fragment{}, false
}

// ParseProductInfo extracts the product name and average rating from the
// product page. Missing markup degrades to the placeholder name and a zero
// rating rather than failing.
func (p *WildberriesParser) ParseProductInfo(html string) (*models.ProductInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	info := &models.ProductInfo{
		Name:      unknownProductName,
		AvgRating: 0.0,
	}

	for _, selector := range productNameSelectors {
		name := strings.TrimSpace(doc.Find(selector).First().Text())
		if name == "" {
			continue
		}
		// Headers sometimes carry "Brand / Product"; keep the product part.
		if idx := strings.Index(name, "/"); idx >= 0 {
			name = strings.TrimSpace(name[idx+1:])
		}
		if name != "" {
			info.Name = name
		}
		break
	}

	for _, selector := range ratingSelectors {
		raw := strings.TrimSpace(doc.Find(selector).First().Text())
		if raw == "" {
			continue
		}
		info.AvgRating = parseRating(raw)
		break
	}

	return info, nil
}

func parseRating(s string) float64 {
	s = strings.Replace(strings.TrimSpace(s), ",", ".", 1)
	val, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(val) || math.IsInf(val, 0) || val < 0 {
		return 0.0
	}
	return val
}

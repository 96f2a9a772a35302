package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/mkravtsov/wb-review-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reviewItem(heading, text string) string {
	if heading == "" {
		return fmt.Sprintf(`<div class="feedback__text--item">%s</div>`, text)
	}
	return fmt.Sprintf(
		`<div class="feedback__text--item"><span class="feedback__text--item-bold">%s</span>%s</div>`,
		heading, text)
}

func reviewBlock(items ...string) string {
	return `<div class="feedback__content">` + strings.Join(items, "") + `</div>`
}

func TestExtractFragmentsStructuredLayout(t *testing.T) {
	p := NewWildberriesParser(0)

	html := `<html><body>` + reviewBlock(
		reviewItem("Достоинства", "удобный"),
		reviewItem("Недостатки", "дорогой"),
	) + `</body></html>`

	fragments, err := p.ExtractFragments(html)
	require.NoError(t, err)
	require.Len(t, fragments, 2)

	assert.Equal(t, models.CategoryAdvantages, fragments[0].Category)
	assert.Equal(t, "удобный", fragments[0].Text)
	assert.Equal(t, models.CategoryDisadvantages, fragments[1].Category)
	assert.Equal(t, "дорогой", fragments[1].Text)
}

func TestExtractFragmentsHeadingVariants(t *testing.T) {
	p := NewWildberriesParser(0)

	tests := []struct {
		name     string
		heading  string
		text     string
		category models.Category
		skipped  bool
	}{
		{
			name:     "heading with trailing colon",
			heading:  "Достоинства:",
			text:     "быстрая доставка",
			category: models.CategoryAdvantages,
		},
		{
			name:     "heading with surrounding whitespace",
			heading:  "  Недостатки  ",
			text:     "мало расцветок",
			category: models.CategoryDisadvantages,
		},
		{
			name:     "comment heading",
			heading:  "Комментарий",
			text:     "в целом доволен",
			category: models.CategoryComment,
		},
		{
			name:    "unknown heading is discarded",
			heading: "Фото покупателя",
			text:    "текст",
			skipped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := reviewBlock(reviewItem(tt.heading, tt.text))

			fragments, err := p.ExtractFragments(html)
			require.NoError(t, err)

			if tt.skipped {
				assert.Empty(t, fragments)
				return
			}
			require.Len(t, fragments, 1)
			assert.Equal(t, tt.category, fragments[0].Category)
			assert.Equal(t, tt.text, fragments[0].Text)
		})
	}
}

func TestExtractFragmentsHeadinglessItemIsComment(t *testing.T) {
	p := NewWildberriesParser(0)

	html := reviewBlock(reviewItem("", "просто отзыв без заголовка"))

	fragments, err := p.ExtractFragments(html)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, models.CategoryComment, fragments[0].Category)
	assert.Equal(t, "просто отзыв без заголовка", fragments[0].Text)
}

func TestExtractFragmentsFallbackBlockSelectors(t *testing.T) {
	p := NewWildberriesParser(0)

	// No primary containers at all; the secondary markup variant still
	// yields fragments.
	html := `<div class="comments__item">
		<div class="comment__text">Отличная вещь</div>
	</div>`

	fragments, err := p.ExtractFragments(html)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, models.CategoryUnclassified, fragments[0].Category)
	assert.Equal(t, "Отличная вещь", fragments[0].Text)
}

func TestExtractFragmentsDegradedLayoutUsesBlockText(t *testing.T) {
	p := NewWildberriesParser(0)

	html := `<div class="feedback__content">Хороший товар, рекомендую</div>`

	fragments, err := p.ExtractFragments(html)
	require.NoError(t, err)
	require.Len(t, fragments, 1)
	assert.Equal(t, models.CategoryUnclassified, fragments[0].Category)
	assert.Equal(t, "Хороший товар, рекомендую", fragments[0].Text)
}

func TestExtractFragmentsCapsBlockCount(t *testing.T) {
	p := NewWildberriesParser(0)

	var sb strings.Builder
	for i := 0; i < 80; i++ {
		sb.WriteString(reviewBlock(reviewItem("Достоинства", fmt.Sprintf("пункт %d", i))))
	}

	fragments, err := p.ExtractFragments(sb.String())
	require.NoError(t, err)
	assert.Len(t, fragments, 50)
}

func TestExtractFragmentsConfigurableBlockCap(t *testing.T) {
	p := NewWildberriesParser(10)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString(reviewBlock(reviewItem("Достоинства", fmt.Sprintf("пункт %d", i))))
	}

	fragments, err := p.ExtractFragments(sb.String())
	require.NoError(t, err)
	assert.Len(t, fragments, 10)
}

func TestExtractFragmentsEmptyPage(t *testing.T) {
	p := NewWildberriesParser(0)

	fragments, err := p.ExtractFragments("<html><body><p>нет отзывов</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, fragments)
}

func TestParseProductInfo(t *testing.T) {
	p := NewWildberriesParser(0)

	tests := []struct {
		name       string
		html       string
		wantName   string
		wantRating float64
	}{
		{
			name: "standard header and rating",
			html: `<div class="product-page__header"><h1>Футболка хлопковая</h1></div>
				<span class="address-rate-mini">4,6</span>`,
			wantName:   "Футболка хлопковая",
			wantRating: 4.6,
		},
		{
			name: "brand slash is stripped",
			html: `<div class="product-page__header"><h1>BrandName / Кроссовки беговые</h1></div>
				<span class="address-rate-mini">4.2</span>`,
			wantName:   "Кроссовки беговые",
			wantRating: 4.2,
		},
		{
			name: "mobile layout fallbacks",
			html: `<h1 class="same-part-kt__header">Рюкзак городской</h1>
				<span class="product-review__rating">5</span>`,
			wantName:   "Рюкзак городской",
			wantRating: 5.0,
		},
		{
			name:       "missing markup degrades to defaults",
			html:       `<div>ничего полезного</div>`,
			wantName:   "Неизвестный товар",
			wantRating: 0.0,
		},
		{
			name: "garbage rating defaults to zero",
			html: `<div class="product-line__name">Носки</div>
				<span class="address-rate-mini">нет оценок</span>`,
			wantName:   "Носки",
			wantRating: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := p.ParseProductInfo(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, info.Name)
			assert.InDelta(t, tt.wantRating, info.AvgRating, 1e-9)
		})
	}
}

func TestParseRatingNeverNegative(t *testing.T) {
	assert.Equal(t, 0.0, parseRating("-3,5"))
	assert.Equal(t, 0.0, parseRating(""))
	assert.Equal(t, 4.9, parseRating(" 4,9 "))
}

package models

import (
	"time"
)

// Category classifies one raw review fragment before merging.
type Category int

const (
	CategoryUnclassified Category = iota
	CategoryAdvantages
	CategoryDisadvantages
	CategoryComment
)

// Label returns the site-facing Russian marker for the category.
func (c Category) Label() string {
	switch c {
	case CategoryAdvantages:
		return "Достоинства"
	case CategoryDisadvantages:
		return "Недостатки"
	case CategoryComment:
		return "Комментарий"
	default:
		return ""
	}
}

func (c Category) String() string {
	switch c {
	case CategoryAdvantages:
		return "advantages"
	case CategoryDisadvantages:
		return "disadvantages"
	case CategoryComment:
		return "comment"
	default:
		return "unclassified"
	}
}

// Fragment is one raw piece of review text attributed to a single category.
type Fragment struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// ReviewBundle is the canonical output record of the scraping engine.
// Each text field is the merged, emoji-stripped text of its category;
// empty categories are empty strings, never absent.
type ReviewBundle struct {
	ArticleID     string    `json:"article_id"`
	ProductName   string    `json:"product_name"`
	AvgRating     float64   `json:"avg_rating"`
	Advantages    string    `json:"advantages"`
	Disadvantages string    `json:"disadvantages"`
	Comments      string    `json:"comments"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

func NewReviewBundle(articleID string) *ReviewBundle {
	return &ReviewBundle{
		ArticleID: articleID,
		AvgRating: 0.0,
		ScrapedAt: time.Now(),
	}
}

// CategoryText returns the merged text stored for the given category.
func (b *ReviewBundle) CategoryText(c Category) string {
	switch c {
	case CategoryAdvantages:
		return b.Advantages
	case CategoryDisadvantages:
		return b.Disadvantages
	default:
		return b.Comments
	}
}

// IsEmpty reports whether no category collected any text.
func (b *ReviewBundle) IsEmpty() bool {
	return b.Advantages == "" && b.Disadvantages == "" && b.Comments == ""
}

// ProductInfo carries the product-page header data scraped alongside the
// reviews. AvgRating is always finite and non-negative; extraction failures
// default it to zero.
type ProductInfo struct {
	Name      string  `json:"name"`
	AvgRating float64 `json:"avg_rating"`
}

// CategoryReport is the verdict of the analysis collaborators for one
// category of a bundle.
type CategoryReport struct {
	ArticleID  string  `json:"article_id"`
	AvgRating  float64 `json:"avg_rating"`
	Category   string  `json:"category"`
	Text       string  `json:"text"`
	Sentiment  string  `json:"sentiment"`
	Confidence int     `json:"confidence"`
	Summary    string  `json:"summary"`
}

package parser

import (
	"github.com/mkravtsov/wb-review-scraper/internal/models"
)

type Parser interface {
	ExtractFragments(html string) ([]models.Fragment, error)
	ParseProductInfo(html string) (*models.ProductInfo, error)
}

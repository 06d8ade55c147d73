package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

// ErrNotDetailPage is returned by ParseDetail when the primary detail panel
// is missing, i.e. the HTML is not an entity detail page.
var ErrNotDetailPage = errors.New("not an entity detail page")

type RegistryParser interface {
	ParseSearch(html string) ([]models.SummaryRecord, error)
	ParseDetail(html string) (*models.DetailRecord, error)
}

type Options struct {
	// State is the origin tag stamped on every record.
	State string
	// DetailURLPattern is a fmt pattern with one %s for the canonical id.
	DetailURLPattern string
}

// Parser turns registry HTML into records. It holds no per-document state and
// is safe for concurrent use.
type Parser struct {
	state            string
	detailURLPattern string
}

func New(opts Options) *Parser {
	return &Parser{
		state:            opts.State,
		detailURLPattern: opts.DetailURLPattern,
	}
}

func newDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// cleanText returns the selection's text with runs of whitespace collapsed.
func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

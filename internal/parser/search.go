package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

const (
	searchRowsSelector = "#grid_businessList tbody tr"

	colName   = 0
	colStatus = 3
	colNumber = 8
)

// ParseSearch turns the business list grid into summary records, in row
// order. The first row is the header. Rows without a link in the name column
// (e.g. the "no results" placeholder) are skipped.
func (p *Parser) ParseSearch(html string) ([]models.SummaryRecord, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	records := make([]models.SummaryRecord, 0)

	doc.Find(searchRowsSelector).Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}

		cols := row.ChildrenFiltered("td")
		if cols.Length() == 0 {
			return
		}

		link := cols.Eq(colName).Find("a").First()
		if link.Length() == 0 {
			return
		}

		record := models.SummaryRecord{
			State:  p.state,
			Name:   cleanText(link),
			Status: columnText(cols, colStatus),
			ID:     columnText(cols, colNumber),
		}
		if record.ID != nil {
			url := fmt.Sprintf(p.detailURLPattern, CanonicalID(*record.ID))
			record.URL = &url
		}

		records = append(records, record)
	})

	return records, nil
}

// CanonicalID strips the suffix segment of a raw registration number
// ("1234567-0160" -> "1234567"). Applying it twice is a no-op.
func CanonicalID(raw string) string {
	if i := strings.Index(raw, "-"); i >= 0 {
		return raw[:i]
	}
	return raw
}

func columnText(cols *goquery.Selection, idx int) *string {
	if idx >= cols.Length() {
		return nil
	}
	return models.StringPtr(cleanText(cols.Eq(idx)))
}

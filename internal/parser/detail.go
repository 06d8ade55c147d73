package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

const (
	detailPanelSelector = "body div.white div section div.panel.panel-primary"
	principalTableID    = "#grid_principalList"
	agentHeading        = "REGISTERED AGENT INFORMATION"
)

// ParseDetail builds a DetailRecord from an entity detail page. It returns
// ErrNotDetailPage when the primary panel is absent; no partial record is
// built in that case.
func (p *Parser) ParseDetail(html string) (*models.DetailRecord, error) {
	doc, err := newDocument(html)
	if err != nil {
		return nil, err
	}

	if doc.Find(detailPanelSelector).Length() == 0 {
		return nil, ErrNotDetailPage
	}

	root := doc.Selection

	record := models.NewDetailRecord(p.state)
	record.Name = ExtractField(root, "Entity Name")
	record.RegistrationNumber = ExtractField(root, "Entity Number")
	record.EntityType = ExtractField(root, "Entity Type")
	record.Status = ExtractField(root, "Entity Status")
	record.DateRegistered = ExtractField(root, "Formation Date")
	record.MailingAddress = ExtractField(root, "Mailing Address")
	record.PrincipalAddress = ExtractField(root, "Physical Address")

	record.AgentName, record.AgentAddress = registeredAgent(root)
	record.Managers = principals(root)

	return record, nil
}

// registeredAgent reads the agent block, which follows the div holding the
// "REGISTERED AGENT INFORMATION" heading. A missing heading or block leaves
// both fields absent.
func registeredAgent(root *goquery.Selection) (name, address *string) {
	heading := root.Find("label").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(strings.ToUpper(s.Text()), agentHeading)
	}).First()
	if heading.Length() == 0 {
		return nil, nil
	}

	panel := heading.ParentsFiltered("div").First().NextAllFiltered("div").First()
	if panel.Length() == 0 {
		return nil, nil
	}

	return ExtractField(panel, "Name"), ExtractField(panel, "Street Address")
}

// principals reads the principal table in source order. Rows with fewer than
// three cells are dropped. Cell order is title, name, address.
func principals(root *goquery.Selection) []models.Principal {
	out := make([]models.Principal, 0)

	root.Find(principalTableID).First().Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}

		cols := row.Find("td")
		if cols.Length() < 3 {
			return
		}

		out = append(out, models.Principal{
			Title:   cleanText(cols.Eq(0)),
			Name:    cleanText(cols.Eq(1)),
			Address: cleanText(cols.Eq(2)),
		})
	})

	return out
}

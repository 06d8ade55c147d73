package parser

import (
	"fmt"
	"strings"

	"github.com/maltedev/business-registry-scraper/internal/models"
)

const testDetailURLPattern = "https://businessregistration.utah.gov/EntitySearch/BusinessInformation/%s"

func newTestParser() *Parser {
	return New(Options{State: "UT", DetailURLPattern: testDetailURLPattern})
}

func fieldRow(label, value string) string {
	return fmt.Sprintf(`<div class="row">
	<div class="col-md-3 label-side"><label>%s:</label></div>
	<div class="col-md-9 value-side">%s</div>
</div>`, label, value)
}

type detailFixture struct {
	panel      bool
	fields     map[string]string
	fieldOrder []string
	agent      string
	principals string
}

func defaultDetailFixture() *detailFixture {
	return &detailFixture{
		panel: true,
		fields: map[string]string{
			"Entity Name":      "Acme LLC",
			"Entity Number":    "1234567-0160",
			"Entity Type":      "LLC - Domestic",
			"Entity Status":    "Active",
			"Formation Date":   "01/02/2015",
			"Mailing Address":  "PO Box 1, Salt Lake City, UT 84101",
			"Physical Address": "1 Main St, Salt Lake City, UT 84101",
		},
		fieldOrder: []string{
			"Entity Name", "Entity Number", "Entity Type", "Entity Status",
			"Formation Date", "Mailing Address", "Physical Address",
		},
		agent: `<div class="panel-heading"><label>Registered Agent Information</label></div>
<div class="panel-body">` + fieldRow("Name", "Jane Agent") + fieldRow("Street Address", "2 Agent Way, Provo, UT 84601") + `</div>`,
		principals: `<table id="grid_principalList">
	<tr><th>Title</th><th>Name</th><th>Address</th></tr>
	<tr><td>Manager</td><td>John Smith</td><td>3 Oak Ave, Ogden, UT</td></tr>
	<tr><td>Member</td><td>Mary Major</td><td>4 Elm Ave, Ogden, UT</td></tr>
</table>`,
	}
}

func (f *detailFixture) without(label string) *detailFixture {
	delete(f.fields, label)
	return f
}

func (f *detailFixture) html() string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Business Information</title></head><body><div class="white"><div><section>`)
	if f.panel {
		b.WriteString(`<div class="panel panel-primary"><div class="panel-body"><div class="panel panel-primary">`)
	} else {
		b.WriteString(`<div class="panel"><div class="panel-body"><div class="panel">`)
	}
	for _, label := range f.fieldOrder {
		if value, ok := f.fields[label]; ok {
			b.WriteString(fieldRow(label, value))
		}
	}
	b.WriteString(`</div></div></div>`)
	if f.agent != "" {
		b.WriteString(`<div class="panel">` + f.agent + `</div>`)
	}
	b.WriteString(f.principals)
	b.WriteString(`</section></div></div></body></html>`)
	return b.String()
}

func searchRow(name, status, number string) string {
	link := ""
	if name != "" {
		link = fmt.Sprintf(`<a href="#" onclick="return false;">%s</a>`, name)
	}
	return fmt.Sprintf(`<tr><td>%s</td><td>Corporation</td><td>Utah</td><td>%s</td><td></td><td></td><td></td><td></td><td>%s</td></tr>`,
		link, status, number)
}

func searchTable(rows ...string) string {
	return `<table id="grid_businessList"><tbody>
<tr><td>Name</td><td>Type</td><td>Home</td><td>Status</td><td></td><td></td><td></td><td></td><td>Number</td></tr>` +
		strings.Join(rows, "\n") + `</tbody></table>`
}

func names(records []models.SummaryRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Name)
	}
	return out
}

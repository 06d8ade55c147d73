package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// searchFields is the full quick/advanced search form as the registry's own
// page submits it, in submission order.
var searchFields = []string{
	"QuickSearch.BusinessId",
	"QuickSearch.NVBusinessNumber",
	"QuickSearch.StartsWith",
	"QuickSearch.Contains",
	"QuickSearch.ExactMatch",
	"QuickSearch.Allwords",
	"QuickSearch.BusinessName",
	"QuickSearch.PrincipalName",
	"QuickSearch.DomicileName",
	"QuickSearch.AssumedName",
	"QuickSearch.AgentName",
	"QuickSearch.MarkNumber",
	"QuickSearch.Classification",
	"QuickSearch.FilingNumber",
	"QuickSearch.Goods",
	"QuickSearch.ApplicantName",
	"QuickSearch.All",
	"QuickSearch.EntitySearch",
	"QuickSearch.MarkSearch",
	"QuickSearch.SeqNo",
	"AdvancedSearch.BusinessTypeID",
	"AdvancedSearch.BusinessTypes",
	"AdvancedSearch.BusinessStatusID",
	"AdvancedSearch.StatusDetails",
	"AdvancedSearch.BusinessSubTypes",
	"AdvancedSearch.JurdisctionTypeID",
	"AdvancedSearch.IncludeInactive",
	"AdvancedSearch.EntityDateFrom",
	"AdvancedSearch.EntityDateTo",
	"AdvancedSearch.StatusDateFrom",
	"AdvancedSearch.StatusDateTo",
}

var searchDefaults = map[string]string{
	"QuickSearch.StartsWith":          "true",
	"QuickSearch.Contains":            "false",
	"QuickSearch.ExactMatch":          "false",
	"QuickSearch.EntitySearch":        "true",
	"QuickSearch.SeqNo":               "0",
	"AdvancedSearch.BusinessStatusID": "0",
	"AdvancedSearch.IncludeInactive":  "false",
}

// SearchForm builds the "starts with" entity-name search payload.
func SearchForm(query string) url.Values {
	form := make(url.Values, len(searchFields))
	for _, name := range searchFields {
		form.Set(name, searchDefaults[name])
	}
	form.Set("QuickSearch.BusinessName", query)
	return form
}

// EncodeSearchForm encodes SearchForm keeping the registry's field order.
func EncodeSearchForm(query string) string {
	form := SearchForm(query)
	var b strings.Builder
	for i, name := range searchFields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(form.Get(name)))
	}
	return b.String()
}

// DetailForm builds the payload that opens one entity's information page.
func DetailForm(entityID string) url.Values {
	return url.Values{
		"businessId":                {entityID},
		"businessReservationNumber": {"0"},
	}
}

// confirmationForm inspects a search response for the "too many results"
// interstitial. When present it returns the enclosing form's action and
// fields so the caller can resubmit them.
func confirmationForm(html string) (action string, form url.Values, ok bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", nil, false
	}
	if doc.Find(resultsGrid).Length() > 0 {
		return "", nil, false
	}
	button := doc.Find(confirmLimitButton).First()
	if button.Length() == 0 {
		return "", nil, false
	}
	enclosing := button.Closest("form")
	if enclosing.Length() == 0 {
		return "", nil, false
	}

	form = url.Values{}
	enclosing.Find("input[name], select[name], textarea[name]").Each(func(_ int, field *goquery.Selection) {
		name, _ := field.Attr("name")
		switch goquery.NodeName(field) {
		case "select":
			opt := field.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = field.Find("option").First()
			}
			if opt.Length() > 0 {
				form.Add(name, optionValue(opt))
			}
		case "textarea":
			form.Add(name, field.Text())
		default:
			typ := strings.ToLower(field.AttrOr("type", "text"))
			switch typ {
			case "checkbox", "radio":
				if _, checked := field.Attr("checked"); !checked {
					return
				}
			case "submit", "button", "image", "reset":
				if !field.Is(confirmLimitButton) {
					return
				}
			}
			form.Add(name, field.AttrOr("value", defaultInputValue(typ)))
		}
	})

	// A named confirm <button> is submitted like the browser would.
	if goquery.NodeName(button) == "button" {
		if name, exists := button.Attr("name"); exists && name != "" {
			form.Add(name, button.AttrOr("value", ""))
		}
	}

	return enclosing.AttrOr("action", ""), form, true
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(opt.Text())
}

func defaultInputValue(typ string) string {
	if typ == "checkbox" || typ == "radio" {
		return "on"
	}
	return ""
}

// resolveAction resolves a form action against the page it came from.
func resolveAction(base, action string) string {
	if action == "" {
		return base
	}
	b, err := url.Parse(base)
	if err != nil {
		return action
	}
	a, err := url.Parse(action)
	if err != nil {
		return base
	}
	return b.ResolveReference(a).String()
}

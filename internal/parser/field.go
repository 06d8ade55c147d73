package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// labelSideClass marks the wrapper holding a field label. The value sits in
// the wrapper's next sibling element.
const labelSideClass = ".label-side"

// ExtractField reads a labelled value from scope. The site renders fields as
// label/value sibling pairs in no fixed order, so lookup is anchored on the
// label text rather than on position. Any miss yields nil; a value element
// that is present but blank yields "".
func ExtractField(scope *goquery.Selection, label string) *string {
	lbl := findLabel(scope, label)
	if lbl.Length() == 0 {
		return nil
	}

	container := labelContainer(lbl)
	if container.Length() == 0 {
		return nil
	}

	value := valueSibling(container)
	if value.Length() == 0 {
		return nil
	}

	text := cleanText(value)
	return &text
}

// findLabel returns the first <label> in scope whose text contains text.
// Matching is case-sensitive.
func findLabel(scope *goquery.Selection, text string) *goquery.Selection {
	return scope.Find("label").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.Contains(s.Text(), text)
	}).First()
}

func labelContainer(label *goquery.Selection) *goquery.Selection {
	return label.ParentsFiltered(labelSideClass).First()
}

func valueSibling(container *goquery.Selection) *goquery.Selection {
	return container.Next()
}

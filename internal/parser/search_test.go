package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearch(t *testing.T) {
	p := newTestParser()

	t.Run("row without a name link is skipped", func(t *testing.T) {
		html := searchTable(
			searchRow("Acme LLC", "Active", "1234567-0160"),
			searchRow("", "Active", "7654321-0160"),
			searchRow("Acme Holdings Inc", "Expired", "2222222-0142"),
		)

		records, err := p.ParseSearch(html)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, []string{"Acme LLC", "Acme Holdings Inc"}, names(records))

		first := records[0]
		assert.Equal(t, "UT", first.State)
		assert.Equal(t, strPtr("Active"), first.Status)
		assert.Equal(t, strPtr("1234567-0160"), first.ID)
		assert.Equal(t, strPtr("https://businessregistration.utah.gov/EntitySearch/BusinessInformation/1234567"), first.URL)
	})

	t.Run("no results placeholder", func(t *testing.T) {
		html := searchTable(`<tr><td colspan="9">No records found.</td></tr>`)

		records, err := p.ParseSearch(html)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("short row keeps record without id", func(t *testing.T) {
		html := searchTable(`<tr><td><a href="#">Short Co</a></td><td>LLC</td><td>Utah</td><td>Active</td></tr>`)

		records, err := p.ParseSearch(html)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "Short Co", records[0].Name)
		assert.Equal(t, strPtr("Active"), records[0].Status)
		assert.Nil(t, records[0].ID)
		assert.Nil(t, records[0].URL)
	})

	t.Run("blank status and number are absent", func(t *testing.T) {
		html := searchTable(searchRow("Blank Co", "  ", ""))

		records, err := p.ParseSearch(html)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Nil(t, records[0].Status)
		assert.Nil(t, records[0].ID)
		assert.Nil(t, records[0].URL)
	})

	t.Run("id without suffix", func(t *testing.T) {
		html := searchTable(searchRow("Plain Co", "Active", "998877"))

		records, err := p.ParseSearch(html)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, strPtr("https://businessregistration.utah.gov/EntitySearch/BusinessInformation/998877"), records[0].URL)
	})

	t.Run("grid fragment without tbody", func(t *testing.T) {
		html := `<table id="grid_businessList">
<tr><th>Name</th></tr>` + searchRow("Fragment LLC", "Active", "1111111-0160") + `</table>`

		records, err := p.ParseSearch(html)
		require.NoError(t, err)
		assert.Equal(t, []string{"Fragment LLC"}, names(records))
	})

	t.Run("empty document", func(t *testing.T) {
		records, err := p.ParseSearch("")
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"1234567-0160", "1234567"},
		{"1234567", "1234567"},
		{"12-34-56", "12"},
		{"-0160", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := CanonicalID(tt.raw)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, CanonicalID(got), "canonical id must be idempotent")
		})
	}
}

package parser

import (
	"testing"

	"github.com/maltedev/business-registry-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetail(t *testing.T) {
	p := newTestParser()

	t.Run("full detail page", func(t *testing.T) {
		record, err := p.ParseDetail(defaultDetailFixture().html())
		require.NoError(t, err)
		require.NotNil(t, record)

		assert.Equal(t, "UT", record.State)
		assert.Equal(t, strPtr("Acme LLC"), record.Name)
		assert.Equal(t, strPtr("1234567-0160"), record.RegistrationNumber)
		assert.Equal(t, strPtr("LLC - Domestic"), record.EntityType)
		assert.Equal(t, strPtr("Active"), record.Status)
		assert.Equal(t, strPtr("01/02/2015"), record.DateRegistered)
		assert.Equal(t, strPtr("PO Box 1, Salt Lake City, UT 84101"), record.MailingAddress)
		assert.Equal(t, strPtr("1 Main St, Salt Lake City, UT 84101"), record.PrincipalAddress)
		assert.Equal(t, strPtr("Jane Agent"), record.AgentName)
		assert.Equal(t, strPtr("2 Agent Way, Provo, UT 84601"), record.AgentAddress)
		assert.Equal(t, []models.Principal{
			{Title: "Manager", Name: "John Smith", Address: "3 Oak Ave, Ogden, UT"},
			{Title: "Member", Name: "Mary Major", Address: "4 Elm Ave, Ogden, UT"},
		}, record.Managers)
		assert.NotNil(t, record.Documents)
		assert.Empty(t, record.Documents)
	})

	t.Run("missing panel marker yields sentinel", func(t *testing.T) {
		f := defaultDetailFixture()
		f.panel = false

		record, err := p.ParseDetail(f.html())
		assert.ErrorIs(t, err, ErrNotDetailPage)
		assert.Nil(t, record)
	})

	t.Run("unrelated page yields sentinel", func(t *testing.T) {
		record, err := p.ParseDetail(`<html><body><h1>Service Unavailable</h1></body></html>`)
		assert.ErrorIs(t, err, ErrNotDetailPage)
		assert.Nil(t, record)
	})

	t.Run("no registered agent block", func(t *testing.T) {
		f := defaultDetailFixture()
		f.agent = ""
		f.principals = ""
		f.fields = map[string]string{"Entity Name": "Acme LLC", "Entity Status": "Active"}

		record, err := p.ParseDetail(f.html())
		require.NoError(t, err)
		require.NotNil(t, record)

		assert.Equal(t, strPtr("Acme LLC"), record.Name)
		assert.Equal(t, strPtr("Active"), record.Status)
		assert.Nil(t, record.AgentName)
		assert.Nil(t, record.AgentAddress)
		assert.NotNil(t, record.Managers)
		assert.Empty(t, record.Managers)
	})

	t.Run("agent heading without following block", func(t *testing.T) {
		f := defaultDetailFixture()
		f.agent = `<div class="panel-heading"><label>REGISTERED AGENT INFORMATION</label></div>`

		record, err := p.ParseDetail(f.html())
		require.NoError(t, err)
		assert.Nil(t, record.AgentName)
		assert.Nil(t, record.AgentAddress)
	})

	t.Run("malformed principal rows are dropped", func(t *testing.T) {
		f := defaultDetailFixture()
		f.principals = `<table id="grid_principalList">
	<tr><th>Title</th><th>Name</th><th>Address</th></tr>
	<tr><td>Manager</td><td>Only Two</td></tr>
	<tr><td>Member</td><td>Kept Person</td><td>5 Pine St</td><td>extra</td></tr>
	<tr><td colspan="3">No principals</td></tr>
</table>`

		record, err := p.ParseDetail(f.html())
		require.NoError(t, err)
		assert.Equal(t, []models.Principal{
			{Title: "Member", Name: "Kept Person", Address: "5 Pine St"},
		}, record.Managers)
	})
}

func TestParseDetailFieldsAreIndependent(t *testing.T) {
	p := newTestParser()

	full, err := p.ParseDetail(defaultDetailFixture().html())
	require.NoError(t, err)

	fields := func(r *models.DetailRecord) map[string]*string {
		return map[string]*string{
			"Entity Name":      r.Name,
			"Entity Number":    r.RegistrationNumber,
			"Entity Type":      r.EntityType,
			"Entity Status":    r.Status,
			"Formation Date":   r.DateRegistered,
			"Mailing Address":  r.MailingAddress,
			"Physical Address": r.PrincipalAddress,
		}
	}
	want := fields(full)

	for _, removed := range defaultDetailFixture().fieldOrder {
		t.Run(removed, func(t *testing.T) {
			record, err := p.ParseDetail(defaultDetailFixture().without(removed).html())
			require.NoError(t, err)

			got := fields(record)
			for label, value := range got {
				if label == removed {
					assert.Nil(t, value)
					continue
				}
				assert.Equal(t, want[label], value, "field %q changed after removing %q", label, removed)
			}
		})
	}
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maltedev/business-registry-scraper/internal/models"
)

func TestJobFromLine(t *testing.T) {
	tests := []struct {
		line string
		want *models.Job
	}{
		{"", nil},
		{"   ", nil},
		{"# comment", nil},
		{"acme widgets", &models.Job{Type: models.JobTypeSearch, Query: "acme widgets"}},
		{
			" https://businessregistration.utah.gov/EntitySearch/BusinessInformation/1234 ",
			&models.Job{Type: models.JobTypeDetail, URL: "https://businessregistration.utah.gov/EntitySearch/BusinessInformation/1234"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, jobFromLine(tt.line))
		})
	}
}

func TestRunWithoutInputReturnsUsageError(t *testing.T) {
	assert.ErrorIs(t, run(), errUsage)
}

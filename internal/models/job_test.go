package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"search with query", Job{Type: JobTypeSearch, Query: "acme"}, false},
		{"search without query", Job{Type: JobTypeSearch}, true},
		{"detail with url", Job{Type: JobTypeDetail, URL: "https://example.test/x/1"}, false},
		{"detail without url", Job{Type: JobTypeDetail, Query: "acme"}, true},
		{"unknown type", Job{Type: "history", Query: "acme"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJob)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetailRecordJSONKeyOrder(t *testing.T) {
	rec := NewDetailRecord("UT")
	rec.Name = StringPtr("Acme LLC")

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	assert.Equal(t,
		`{"state":"UT","name":"Acme LLC","status":null,"registration_number":null,"date_registered":null,`+
			`"entity_type":null,"agent_name":null,"agent_address":null,"principal_address":null,`+
			`"mailing_address":null,"managers":[],"documents":[]}`,
		string(data))
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, StringPtr(""))
	assert.Equal(t, "x", Deref(StringPtr("x")))
	assert.Equal(t, "", Deref(nil))
}

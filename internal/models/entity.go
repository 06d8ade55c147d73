package models

// SummaryRecord is one row of a registry search result.
type SummaryRecord struct {
	State  string  `json:"state"`
	Name   string  `json:"name"`
	Status *string `json:"status"`
	ID     *string `json:"id"`
	URL    *string `json:"url"`
}

// DetailRecord is the full registration record of one entity.
// A nil *DetailRecord is the canonical "no detail found" value.
type DetailRecord struct {
	State              string      `json:"state"`
	Name               *string     `json:"name"`
	Status             *string     `json:"status"`
	RegistrationNumber *string     `json:"registration_number"`
	DateRegistered     *string     `json:"date_registered"`
	EntityType         *string     `json:"entity_type"`
	AgentName          *string     `json:"agent_name"`
	AgentAddress       *string     `json:"agent_address"`
	PrincipalAddress   *string     `json:"principal_address"`
	MailingAddress     *string     `json:"mailing_address"`
	Managers           []Principal `json:"managers"`
	Documents          []Document  `json:"documents"`
}

// Principal is one row of an entity's principal/manager table.
type Principal struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Address string `json:"address"`
}

// Document is reserved for filing documents. Nothing populates it yet.
type Document struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RetrievalRequest is the input of a retrieval strategy. Param is the entity
// id for detail lookups and the free-text query for searches.
type RetrievalRequest struct {
	URL       string
	Param     string
	UserAgent string
}

// NewDetailRecord returns a record with empty, non-nil collections so that
// managers and documents always serialize as arrays.
func NewDetailRecord(state string) *DetailRecord {
	return &DetailRecord{
		State:     state,
		Managers:  make([]Principal, 0),
		Documents: make([]Document, 0),
	}
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

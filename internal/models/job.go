package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidJob = errors.New("invalid job")

type JobType string

const (
	JobTypeSearch JobType = "search"
	JobTypeDetail JobType = "detail"
)

// Job is one scrape request taken off the job queue.
type Job struct {
	ID         string    `json:"id"`
	Type       JobType   `json:"type"`
	Query      string    `json:"query,omitempty"`
	URL        string    `json:"url,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at,omitempty"`
}

func (j *Job) Validate() error {
	switch j.Type {
	case JobTypeSearch:
		if j.Query == "" {
			return fmt.Errorf("%w: search job without query", ErrInvalidJob)
		}
	case JobTypeDetail:
		if j.URL == "" {
			return fmt.Errorf("%w: detail job without url", ErrInvalidJob)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidJob, j.Type)
	}
	return nil
}

// Result is what a processed job produces. Found is false when a search
// matched nothing or a lookup yielded no detail page.
type Result struct {
	JobID       string          `json:"job_id"`
	Type        JobType         `json:"type"`
	Query       string          `json:"query,omitempty"`
	URL         string          `json:"url,omitempty"`
	Found       bool            `json:"found"`
	Records     []SummaryRecord `json:"records,omitempty"`
	Detail      *DetailRecord   `json:"detail"`
	Strategy    string          `json:"strategy"`
	CompletedAt time.Time       `json:"completed_at"`
}

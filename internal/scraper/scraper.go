package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/business-registry-scraper/internal/models"
)

var (
	ErrUnknownStrategy = errors.New("unknown retrieval strategy")
	ErrInvalidURL      = errors.New("invalid registry URL")
)

// Strategy fetches raw registry HTML. An empty string with a nil error means
// the page could not be reached and is treated as "no data".
type Strategy interface {
	Name() string
	FetchDetail(ctx context.Context, req models.RetrievalRequest) (string, error)
	FetchSearch(ctx context.Context, req models.RetrievalRequest) (string, error)
}

type Kind string

const (
	KindBrowser Kind = "browser"
	KindForm    Kind = "form"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindBrowser, KindForm:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Site holds the registry endpoints both strategies talk to.
type Site struct {
	OriginURL     string
	SearchURL     string
	SearchReferer string
	DetailReferer string
}

// Origin returns scheme://host of the origin URL for the Origin header.
func (s Site) Origin() string {
	u, err := url.Parse(s.OriginURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(s.OriginURL, "/")
	}
	return u.Scheme + "://" + u.Host
}

// StatusError is returned when the registry answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// EntityIDFromURL returns the last path segment of a detail URL.
func EntityIDFromURL(rawURL string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 || i == len(trimmed)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	id := trimmed[i+1:]
	if q := strings.IndexAny(id, "?#"); q >= 0 {
		id = id[:q]
	}
	if id == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return id, nil
}

// DetailEndpoint splits a detail URL into the POST endpoint (the URL up to
// its last segment) and the entity id.
func DetailEndpoint(rawURL string) (endpoint, id string, err error) {
	id, err = EntityIDFromURL(rawURL)
	if err != nil {
		return "", "", err
	}
	trimmed := strings.TrimRight(strings.TrimSpace(rawURL), "/")
	return trimmed[:strings.LastIndex(trimmed, "/")], id, nil
}

// Timeouts bounds every wait a strategy performs.
type Timeouts struct {
	Wait    time.Duration
	Confirm time.Duration
	Request time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Wait:    10 * time.Second,
		Confirm: 5 * time.Second,
		Request: 30 * time.Second,
	}
}

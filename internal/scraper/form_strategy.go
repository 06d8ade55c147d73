package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/business-registry-scraper/internal/metrics"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

const (
	formContentType = "application/x-www-form-urlencoded"
	acceptHTML      = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptLanguage  = "en-GB,en;q=0.9"
)

// FormStrategy replays the registry's HTML form posts directly.
type FormStrategy struct {
	site      Site
	timeouts  Timeouts
	transport http.RoundTripper
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewFormStrategy(site Site, timeouts Timeouts, m *metrics.Metrics, logger *slog.Logger) *FormStrategy {
	return &FormStrategy{
		site:      site,
		timeouts:  timeouts,
		transport: http.DefaultTransport.(*http.Transport).Clone(),
		metrics:   m,
		logger:    logger.With("component", "form_strategy"),
	}
}

func (s *FormStrategy) Name() string { return string(KindForm) }

// FetchDetail posts the entity id taken from req.URL to the information
// endpoint (req.URL without its last segment).
func (s *FormStrategy) FetchDetail(ctx context.Context, req models.RetrievalRequest) (string, error) {
	endpoint, id, err := DetailEndpoint(req.URL)
	if err != nil {
		return "", err
	}
	if req.Param != "" {
		id = req.Param
	}

	client := s.newClient(req.UserAgent, s.site.DetailReferer)
	return s.post(ctx, client, endpoint, DetailForm(id).Encode())
}

// FetchSearch posts the entity-name search. If the registry answers with the
// result-limit interstitial, its form is submitted once more and that
// response is returned instead.
func (s *FormStrategy) FetchSearch(ctx context.Context, req models.RetrievalRequest) (string, error) {
	client := s.newClient(req.UserAgent, s.site.SearchReferer)

	html, err := s.post(ctx, client, s.site.SearchURL, EncodeSearchForm(req.Param))
	if err != nil {
		return "", err
	}

	action, form, ok := confirmationForm(html)
	if !ok {
		return html, nil
	}

	target := resolveAction(s.site.SearchURL, action)
	s.logger.Info("search hit result limit, confirming", "query", req.Param, "action", target)
	s.metrics.IncConfirmation(s.Name())

	return s.post(ctx, client, target, form.Encode())
}

// newClient returns a client with its own cookie jar so concurrent requests
// never share a registry session.
func (s *FormStrategy) newClient(userAgent, referer string) *resty.Client {
	return resty.New().
		SetTransport(s.transport).
		SetTimeout(s.timeouts.Request).
		SetHeaders(map[string]string{
			"Content-Type":    formContentType,
			"User-Agent":      userAgent,
			"Referer":         referer,
			"Accept":          acceptHTML,
			"Accept-Language": acceptLanguage,
			"Sec-Fetch-Site":  "same-origin",
			"Sec-Fetch-Mode":  "navigate",
			"Origin":          s.site.Origin(),
		})
}

func (s *FormStrategy) post(ctx context.Context, client *resty.Client, endpoint, body string) (string, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return "", fmt.Errorf("post %s: %w", endpoint, err)
	}
	if !resp.IsSuccess() {
		return "", &StatusError{StatusCode: resp.StatusCode(), URL: endpoint}
	}
	return resp.String(), nil
}

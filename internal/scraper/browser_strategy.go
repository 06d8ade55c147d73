package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maltedev/business-registry-scraper/internal/browser"
	"github.com/maltedev/business-registry-scraper/internal/metrics"
	"github.com/maltedev/business-registry-scraper/internal/models"
)

const (
	searchEntryLink    = "text=Search Business Entity Records"
	searchFormReady    = "#frm_BusinessSearch > div"
	entityNumberInput  = "#BusinessSearch_Index_txtEntityNumber"
	entityNameInput    = "#BusinessSearch_Index_txtEntityName"
	resultsGrid        = "#grid_businessList"
	firstResultLink    = "xpath=//table[@id='grid_businessList']//a[text()]"
	confirmLimitButton = "#btnConfirmLimit"
	detailPanel        = "body > div.white > div > section > div.panel.panel-primary > div.panel-body > div.panel.panel-primary"
)

// Session is the slice of a browser session the strategy drives.
type Session interface {
	Goto(url string) error
	WaitFor(selector string, timeout time.Duration) error
	Click(selector string, timeout time.Duration) error
	Fill(selector, value string, timeout time.Duration) error
	Press(selector, key string, timeout time.Duration) error
	Content() (string, error)
	OuterHTML(selector string) (string, error)
	Close() error
}

// SessionOpener starts a fresh session presenting the given user agent.
type SessionOpener func(userAgent string) (Session, error)

// LauncherOpener adapts a browser.Launcher to a SessionOpener.
func LauncherOpener(l *browser.Launcher) SessionOpener {
	return func(userAgent string) (Session, error) {
		s, err := l.Open(userAgent)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// BrowserStrategy drives the registry's search UI in a real browser.
type BrowserStrategy struct {
	open     SessionOpener
	site     Site
	timeouts Timeouts
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewBrowserStrategy(open SessionOpener, site Site, timeouts Timeouts, m *metrics.Metrics, logger *slog.Logger) *BrowserStrategy {
	return &BrowserStrategy{
		open:     open,
		site:     site,
		timeouts: timeouts,
		metrics:  m,
		logger:   logger.With("component", "browser_strategy"),
	}
}

func (s *BrowserStrategy) Name() string { return string(KindBrowser) }

// FetchDetail searches by entity number, opens the first hit and returns the
// full page source. req.URL is not navigated to; every flow starts at the
// site origin.
func (s *BrowserStrategy) FetchDetail(ctx context.Context, req models.RetrievalRequest) (string, error) {
	return s.run(ctx, "detail", req, func(sess Session) (string, error) {
		if err := s.submitSearch(sess, entityNumberInput, req.Param); err != nil {
			return "", err
		}
		if err := sess.WaitFor(resultsGrid, s.timeouts.Wait); err != nil {
			return "", err
		}
		if err := sess.Click(firstResultLink, s.timeouts.Wait); err != nil {
			return "", err
		}
		if err := sess.WaitFor(detailPanel, s.timeouts.Wait); err != nil {
			return "", err
		}
		return sess.Content()
	})
}

// FetchSearch searches by entity name and returns the results table markup.
func (s *BrowserStrategy) FetchSearch(ctx context.Context, req models.RetrievalRequest) (string, error) {
	return s.run(ctx, "search", req, func(sess Session) (string, error) {
		if err := s.submitSearch(sess, entityNameInput, req.Param); err != nil {
			return "", err
		}
		if err := sess.WaitFor(resultsGrid, s.timeouts.Wait); err != nil {
			s.logger.Info("results grid not shown, trying limit confirmation", "query", req.Param, "error", err)
			if err := sess.Click(confirmLimitButton, s.timeouts.Confirm); err != nil {
				return "", err
			}
			s.metrics.IncConfirmation(s.Name())
			if err := sess.WaitFor(resultsGrid, s.timeouts.Wait); err != nil {
				return "", err
			}
		}
		return sess.OuterHTML(resultsGrid)
	})
}

func (s *BrowserStrategy) submitSearch(sess Session, input, value string) error {
	if err := sess.Goto(s.site.OriginURL); err != nil {
		return err
	}
	if err := sess.Click(searchEntryLink, s.timeouts.Wait); err != nil {
		return err
	}
	if err := sess.WaitFor(searchFormReady, s.timeouts.Wait); err != nil {
		return err
	}
	if err := sess.Fill(input, value, s.timeouts.Wait); err != nil {
		return err
	}
	return sess.Press(input, "Enter", s.timeouts.Wait)
}

// run opens a session, executes flow and always closes the session. Browser
// failures are logged and reported as an empty page.
func (s *BrowserStrategy) run(ctx context.Context, op string, req models.RetrievalRequest, flow func(Session) (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	sess, err := s.open(req.UserAgent)
	if err != nil {
		s.logger.Error("failed to open browser session", "op", op, "param", req.Param, "error", err)
		return "", nil
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Warn("failed to close browser session", "op", op, "error", cerr)
		}
	}()

	html, err := flow(sess)
	if err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			s.logger.Error("page load timed out", "op", op, "url", s.site.OriginURL, "param", req.Param, "error", err)
		} else {
			s.logger.Error("browser automation failed", "op", op, "url", s.site.OriginURL, "param", req.Param, "error", err)
		}
		return "", nil
	}
	return html, nil
}

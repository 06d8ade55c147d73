package browser

import (
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Session is one browser, context and page used by a single request.
type Session struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func (s *Session) Goto(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return wrapErr("goto "+url, err)
}

// WaitFor blocks until selector is attached to the DOM.
func (s *Session) WaitFor(selector string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: millis(timeout),
	})
	return wrapErr("wait for "+selector, err)
}

func (s *Session) Click(selector string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().Click(playwright.LocatorClickOptions{
		Timeout: millis(timeout),
	})
	return wrapErr("click "+selector, err)
}

func (s *Session) Fill(selector, value string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().Fill(value, playwright.LocatorFillOptions{
		Timeout: millis(timeout),
	})
	return wrapErr("fill "+selector, err)
}

func (s *Session) Press(selector, key string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().Press(key, playwright.LocatorPressOptions{
		Timeout: millis(timeout),
	})
	return wrapErr("press "+key+" on "+selector, err)
}

// Content returns the full page source.
func (s *Session) Content() (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", wrapErr("content", err)
	}
	return html, nil
}

func (s *Session) OuterHTML(selector string) (string, error) {
	v, err := s.page.Locator(selector).First().Evaluate("el => el.outerHTML", nil)
	if err != nil {
		return "", wrapErr("outerHTML "+selector, err)
	}
	html, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("outerHTML %s: unexpected result %T", selector, v)
	}
	return html, nil
}

// Close tears down page, context and browser. For a remote browser this
// also ends the remote process.
func (s *Session) Close() error {
	var errs []error

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}

	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	return errors.Join(errs...)
}

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%s: %w: %v", op, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func millis(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ErrTimeout marks a bounded wait or navigation that ran out of time.
var ErrTimeout = errors.New("browser wait timed out")

type Options struct {
	// RemoteURL is the websocket endpoint of a remote playwright server.
	// When empty a local Chromium is launched per session.
	RemoteURL         string
	Headless          bool
	NavigationTimeout time.Duration
	ViewportWidth     int
	ViewportHeight    int
	Locale            string
	AcceptLanguage    string
	TimezoneID        string
	ExtraHeaders      map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		Locale:            "en-US",
		AcceptLanguage:    "en-US,en;q=0.9",
		TimezoneID:        "America/Denver",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		},
	}
}

// LaunchArgs is the Chromium hardening profile: no automation fingerprint,
// no WebRTC address leakage, fixed window size.
func LaunchArgs(opts *Options, userAgent string) []string {
	args := []string{
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-dev-shm-usage",
		"--disable-blink-features=AutomationControlled",
		"--disable-webrtc",
		"--disable-features=WebRtcHideLocalIpsWithMdns,DnsOverHttps",
		"--force-webrtc-ip-handling-policy=default_public_interface_only",
		fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		"--start-maximized",
		"--lang=" + opts.Locale,
	}
	if userAgent != "" {
		args = append(args, "--user-agent="+userAgent)
	}
	return args
}

// stealthScript runs before any page script. Remote browsers ignore launch
// args, so the fingerprint and WebRTC hardening is repeated here.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.RTCPeerConnection = undefined;
window.webkitRTCPeerConnection = undefined;
`

// Launcher owns the playwright driver and opens one isolated Session per
// request. The driver is shared; browsers are not.
type Launcher struct {
	pw     *playwright.Playwright
	opts   *Options
	logger *slog.Logger
}

func NewLauncher(opts *Options, logger *slog.Logger) (*Launcher, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	return &Launcher{
		pw:     pw,
		opts:   opts,
		logger: logger.With("component", "browser"),
	}, nil
}

// Open starts a fresh browser with its own context and page. The caller must
// Close the session on every path.
func (l *Launcher) Open(userAgent string) (*Session, error) {
	b, err := l.connect(userAgent)
	if err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &l.opts.Locale,
		TimezoneId:        &l.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  l.opts.ViewportWidth,
			Height: l.opts.ViewportHeight,
		},
		ExtraHttpHeaders: l.headers(),
	}
	if userAgent != "" {
		contextOpts.UserAgent = &userAgent
	}

	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		bctx.Close()
		b.Close()
		return nil, fmt.Errorf("failed to install init script: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		b.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	page.SetDefaultNavigationTimeout(float64(l.opts.NavigationTimeout.Milliseconds()))

	return &Session{
		browser: b,
		context: bctx,
		page:    page,
	}, nil
}

func (l *Launcher) connect(userAgent string) (playwright.Browser, error) {
	if l.opts.RemoteURL != "" {
		b, err := l.pw.Chromium.Connect(l.opts.RemoteURL, playwright.BrowserTypeConnectOptions{
			Timeout: playwright.Float(float64(l.opts.NavigationTimeout.Milliseconds())),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to remote browser: %w", err)
		}
		return b, nil
	}

	b, err := l.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &l.opts.Headless,
		Args:     LaunchArgs(l.opts, userAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return b, nil
}

func (l *Launcher) headers() map[string]string {
	h := make(map[string]string, len(l.opts.ExtraHeaders)+1)
	for k, v := range l.opts.ExtraHeaders {
		h[k] = v
	}
	if l.opts.AcceptLanguage != "" {
		h["Accept-Language"] = l.opts.AcceptLanguage
	}
	return h
}

func (l *Launcher) Close() error {
	if l.pw == nil {
		return nil
	}
	if err := l.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	return nil
}

package browser

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
)

// stealthScript overrides the navigator properties headless Chromium leaks.
// Best-effort evasion only; it is applied as a payload at session creation
// and can be swapped without touching session logic.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
	get: () => false,
});
Object.defineProperty(navigator, 'plugins', {
	get: () => [1, 2, 3, 4, 5],
});
Object.defineProperty(navigator, 'languages', {
	get: () => ['ru-RU', 'ru', 'en-US', 'en'],
});
window.chrome = {
	runtime: {},
	loadTimes: function() {},
	csi: function() {},
	app: {}
};
`

// Session owns one browser process, one isolated context and one page.
// Exactly one Session exists per parse call; Close must run on every exit
// path of its owner.
type Session struct {
	id      string
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	BlockResources bool
	InitScript     string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "ru-RU,ru;q=0.9,en-US;q=0.8,en;q=0.7",
		TimezoneID:     "Europe/Moscow",
		Locale:         "ru-RU",
		BlockResources: true,
		InitScript:     stealthScript,
	}
}

// Open launches an isolated browser session configured to minimize automation
// fingerprints. The caller owns the returned session and must Close it.
func Open(opts *Options) (*Session, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-features=IsolateOrigins,site-per-process",
			"--disable-site-isolation-trials",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--ignore-certificate-errors",
			"--window-size=1920,1080",
			"--user-agent=" + opts.UserAgent,
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		ColorScheme:       playwright.ColorSchemeLight,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{
			"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
			"Accept-Language":           opts.AcceptLanguage,
			"Cache-Control":             "max-age=0",
			"Sec-Ch-Ua":                 `"Not.A/Brand";v="8", "Chromium";v="114", "Google Chrome";v="114"`,
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Ch-Ua-Platform":        `"Windows"`,
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Sec-Fetch-Site":            "none",
			"Sec-Fetch-User":            "?1",
			"Upgrade-Insecure-Requests": "1",
		},
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if opts.BlockResources {
		// Images, fonts and analytics only inflate load time and the
		// fingerprint surface.
		if err := context.Route("**/*.{png,jpg,jpeg,gif,svg,webp,woff,woff2}", func(route playwright.Route) {
			route.Abort()
		}); err != nil {
			context.Close()
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to install resource blocking: %w", err)
		}
		context.Route("**/analytics.js", func(route playwright.Route) {
			route.Abort()
		})
	}

	if opts.InitScript != "" {
		if err := context.AddInitScript(playwright.Script{
			Content: playwright.String(opts.InitScript),
		}); err != nil {
			context.Close()
			browser.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to add init script: %w", err)
		}
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))

	sessionID := uuid.New().String()

	return &Session{
		id:      sessionID,
		pw:      pw,
		browser: browser,
		context: context,
		page:    page,
		logger:  slog.Default().With("component", "browser", "session_id", sessionID),
	}, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Page() playwright.Page {
	return s.page
}

func (s *Session) Close() error {
	var errs []error

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

	if s.pw != nil {
		if err := s.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

// Goto loads a URL and waits for DOM content to settle.
func (s *Session) Goto(url string) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(30000),
	})
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// GotoWithRetry retries failed navigations with a linear backoff. A single
// timeout is not fatal; the last error is returned once retries run out.
func (s *Session) GotoWithRetry(url string, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			s.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		if err := s.Goto(url); err != nil {
			lastErr = err
			s.logger.Warn("navigation failed", "error", err, "attempt", i+1)
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// Humanize injects a small amount of randomized pointer and scroll activity.
// Errors are swallowed and logged; this is an evasion aid, not a correctness
// step.
func (s *Session) Humanize() {
	for i := 0; i < 3; i++ {
		x := float64(100 + rand.Intn(700))
		y := float64(100 + rand.Intn(500))
		if err := s.page.Mouse().Move(x, y); err != nil {
			s.logger.Warn("mouse move failed", "error", err)
			return
		}
		time.Sleep(time.Duration(100+rand.Intn(200)) * time.Millisecond)
	}

	for i := 0; i < 2; i++ {
		if err := s.page.Mouse().Wheel(0, float64(100+rand.Intn(200))); err != nil {
			s.logger.Warn("mouse wheel failed", "error", err)
			return
		}
		time.Sleep(time.Duration(200+rand.Intn(300)) * time.Millisecond)
	}
}

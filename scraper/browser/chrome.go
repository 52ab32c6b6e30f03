package browser

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"travel-monitor/config"
	"travel-monitor/utils"
)

// Chrome launches one headless Chrome process per session, so sessions
// share no cookies, storage or emulation state.
type Chrome struct {
	ExecPath    string
	Headless    bool
	NavTimeout  time.Duration
	SettleDelay time.Duration
	Retry       *utils.RetryConfig
	Logger      *utils.Logger
}

// NewChrome builds a launcher from the process configuration.
func NewChrome(cfg *config.Config, logger *utils.Logger) *Chrome {
	bin := findChromeBinary(cfg.ChromeBin)
	if bin != "" {
		logger.Debug("[browser] Using browser binary: %s", bin)
	}
	return &Chrome{
		ExecPath:    bin,
		Headless:    cfg.Headless,
		NavTimeout:  cfg.NavTimeout,
		SettleDelay: cfg.SettleDelay,
		Retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		Logger: logger,
	}
}

// Open starts a browser with the emulation described by opts. The session
// is torn down by Close or when ctx ends.
func (c *Chrome) Open(ctx context.Context, opts Options) (Session, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(ua),
	)
	if opts.Locale != "" {
		allocOpts = append(allocOpts, chromedp.Flag("lang", opts.Locale))
	}
	if c.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	s := &chromeSession{
		ctx:     tabCtx,
		timeout: c.NavTimeout,
		settle:  c.SettleDelay,
		retry:   c.Retry,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	s.stop = context.AfterFunc(ctx, s.cancel)

	// The first Run starts the browser; it must not carry a timeout or the
	// browser dies with it.
	if err := chromedp.Run(tabCtx, emulationActions(ua, opts)...); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("browser: start session: %w", err)
	}
	return s, nil
}

func emulationActions(ua string, opts Options) []chromedp.Action {
	actions := []chromedp.Action{
		emulation.SetUserAgentOverride(ua).WithAcceptLanguage(opts.Locale),
	}
	if opts.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(opts.Timezone))
	}
	if opts.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(strings.ReplaceAll(opts.Locale, "-", "_")))
	}
	if opts.Geolocation {
		actions = append(actions,
			cdpbrowser.GrantPermissions([]cdpbrowser.PermissionType{cdpbrowser.PermissionTypeGeolocation}),
			emulation.SetGeolocationOverride().
				WithLatitude(opts.Latitude).
				WithLongitude(opts.Longitude).
				WithAccuracy(100),
		)
	}
	return actions
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	settle  time.Duration
	retry   *utils.RetryConfig

	cancel    func()
	stop      func() bool
	closeOnce sync.Once
}

// run executes actions on the tab with the per-call timeout, aborting early
// when the caller's ctx ends.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, rawURL string) error {
	op := "navigate"
	if u, err := url.Parse(rawURL); err == nil {
		op += " " + u.Host
	}
	nav := func() error { return s.run(ctx, chromedp.Navigate(rawURL)) }

	var err error
	if s.retry != nil {
		err = s.retry.Do(ctx, op, nav)
	} else {
		err = nav()
	}
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	return Pause(ctx, s.settle)
}

func (s *chromeSession) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("browser: wait %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("browser: read body: %w", err)
	}
	return text, nil
}

func (s *chromeSession) ClickFirst(ctx context.Context, selectors ...string) (bool, error) {
	return s.clickFirstMatch(ctx, selectors, chromedp.ByQueryAll)
}

func (s *chromeSession) ClickText(ctx context.Context, tag string, texts ...string) (bool, error) {
	queries := make([]string, 0, len(texts))
	for _, t := range texts {
		queries = append(queries, textXPath(tag, t))
	}
	return s.clickFirstMatch(ctx, queries, chromedp.BySearch)
}

func (s *chromeSession) clickFirstMatch(ctx context.Context, queries []string, by chromedp.QueryOption) (bool, error) {
	var lastErr error
	for _, q := range queries {
		var nodes []*cdp.Node
		if err := s.run(ctx, chromedp.Nodes(q, &nodes, by, chromedp.AtLeast(0))); err != nil {
			lastErr = err
			continue
		}
		if len(nodes) == 0 {
			continue
		}
		if err := s.run(ctx, chromedp.MouseClickNode(nodes[0])); err != nil {
			lastErr = err
			continue
		}
		return true, nil
	}
	if lastErr != nil {
		return false, fmt.Errorf("browser: click: %w", lastErr)
	}
	return false, nil
}

func (s *chromeSession) Fill(ctx context.Context, selector, text string) error {
	err := s.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("browser: fill %q: %w", selector, err)
	}
	return nil
}

func (s *chromeSession) Press(ctx context.Context, key string) error {
	k := key
	switch key {
	case KeyEnter:
		k = kb.Enter
	case KeyArrowDown:
		k = kb.ArrowDown
	case KeyTab:
		k = kb.Tab
	}
	if err := s.run(ctx, chromedp.KeyEvent(k)); err != nil {
		return fmt.Errorf("browser: press %s: %w", key, err)
	}
	return nil
}

func (s *chromeSession) Pause(ctx context.Context, d time.Duration) error {
	return Pause(ctx, d)
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.cancel()
	})
	return nil
}

// findChromeBinary returns configured first, then the first Chrome or
// Chromium found on PATH or in the usual install locations. An empty result
// lets chromedp use its own lookup.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

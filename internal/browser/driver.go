// Package browser drives a shared headless-browser session over CDP. One
// session (and one page) serves an entire crawl; per-page navigation failures
// are the caller's to recover from.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/onthisday/racewinners/internal/crawl"
)

// ErrNoAutomation indicates no automation strategy is usable in the current
// deployment: no remote endpoint is configured and launching a local browser
// is not permitted. This is a configuration failure, never a silent degrade.
var ErrNoAutomation = errors.New(
	"no browser automation available: set browser.remote_endpoint to a remote CDP endpoint or permit local launch")

// Strategy selects how a browser session is obtained. Resolved once at
// startup, not at each call site.
type Strategy int

// Automation strategies in priority order.
const (
	StrategyNone Strategy = iota
	StrategyRemote
	StrategyLocal
)

// String renders the strategy for logs.
func (s Strategy) String() string {
	switch s {
	case StrategyRemote:
		return "remote"
	case StrategyLocal:
		return "local"
	default:
		return "none"
	}
}

// Config controls driver behavior.
type Config struct {
	RemoteEndpoint   string
	AllowLocalLaunch bool
	UserAgent        string
	NavTimeout       time.Duration
	SettleDelay      time.Duration
}

// ResolveStrategy picks the automation strategy for a deployment: a remote
// endpoint wins, local launch is second, otherwise none.
func ResolveStrategy(cfg Config) Strategy {
	if cfg.RemoteEndpoint != "" {
		return StrategyRemote
	}
	if cfg.AllowLocalLaunch {
		return StrategyLocal
	}
	return StrategyNone
}

// Driver creates scoped browser sessions according to the resolved strategy.
type Driver struct {
	cfg      Config
	strategy Strategy
	logger   *zap.Logger
}

// NewDriver constructs a Driver. Construction always succeeds so the service
// can start and report the configuration failure per request; WithSession is
// where StrategyNone fails fast.
func NewDriver(cfg Config, logger *zap.Logger) *Driver {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 300 * time.Millisecond
	}
	return &Driver{
		cfg:      cfg,
		strategy: ResolveStrategy(cfg),
		logger:   logger,
	}
}

// Strategy returns the resolved automation strategy.
func (d *Driver) Strategy() Strategy {
	return d.strategy
}

// Flags reports the automation capabilities of this deployment for crawl
// diagnostics.
func (d *Driver) Flags() crawl.Flags {
	return crawl.Flags{
		RemoteEndpoint:   d.cfg.RemoteEndpoint != "",
		LocalLaunch:      d.cfg.AllowLocalLaunch,
		BrowserAvailable: d.strategy != StrategyNone,
	}
}

// WithSession acquires a browser session, runs fn with it, and releases the
// session on all exit paths. Remote sessions leave the remote browser itself
// running; local sessions tear the whole process down.
func (d *Driver) WithSession(ctx context.Context, fn func(*Session) error) error {
	switch d.strategy {
	case StrategyRemote:
		return d.withRemoteSession(ctx, fn)
	case StrategyLocal:
		return d.withLocalSession(ctx, fn)
	default:
		return ErrNoAutomation
	}
}

func (d *Driver) withRemoteSession(ctx context.Context, fn func(*Session) error) error {
	d.logger.Info("connecting to remote browser", zap.String("endpoint", d.cfg.RemoteEndpoint))
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(ctx, d.cfg.RemoteEndpoint)
	defer allocCancel()

	// Cancelling the tab context detaches from the remote browser without
	// terminating it; it may be shared with other clients.
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	return d.runSession(browserCtx, fn)
}

func (d *Driver) withLocalSession(ctx context.Context, fn func(*Session) error) error {
	d.logger.Info("launching local headless browser")
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(d.cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	// Warm up so a broken Chrome install fails here, not on first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		return fmt.Errorf("browser warmup: %w", err)
	}

	return d.runSession(browserCtx, fn)
}

func (d *Driver) runSession(browserCtx context.Context, fn func(*Session) error) error {
	session := &Session{
		browserCtx:  browserCtx,
		navTimeout:  d.cfg.NavTimeout,
		settleDelay: d.cfg.SettleDelay,
		userAgent:   d.cfg.UserAgent,
		logger:      d.logger,
	}
	if err := session.setup(); err != nil {
		return fmt.Errorf("session setup: %w", err)
	}
	return fn(session)
}

// Session is one browser page reused across a whole crawl.
type Session struct {
	browserCtx  context.Context
	navTimeout  time.Duration
	settleDelay time.Duration
	userAgent   string
	logger      *zap.Logger
}

// setup fixes the page's user agent, viewport and locale headers once, before
// any navigation.
func (s *Session) setup() error {
	setupCtx, cancel := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancel()

	tasks := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(s.userAgent),
		emulation.SetDeviceMetricsOverride(1366, 900, 1.0, false),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
	}
	if err := chromedp.Run(setupCtx, tasks); err != nil {
		return fmt.Errorf("chromedp setup: %w", err)
	}
	return nil
}

// Navigate loads a URL in the shared page and returns the rendered outer
// HTML. Failures are per-page: the session stays usable for the next call.
func (s *Session) Navigate(ctx context.Context, rawURL string) (string, error) {
	taskCtx, cancelTask := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	var html string
	tasks := chromedp.Tasks{
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return "", fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	return html, nil
}

// forwardCancel propagates cancellation from the caller's context into a
// chromedp task context.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// Package orchestrate runs the crawl pipeline end to end for one target day:
// category calendars, link discovery, race detail pages, winner extraction.
package orchestrate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/onthisday/racewinners/internal/browser"
	"github.com/onthisday/racewinners/internal/crawl"
	"github.com/onthisday/racewinners/internal/extract"
	"github.com/onthisday/racewinners/internal/metrics"
	"github.com/onthisday/racewinners/internal/parse"
)

// Navigator loads pages in a live browser session and returns rendered HTML.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) (string, error)
}

// Browser hands out a scoped session for one crawl run.
type Browser interface {
	WithSession(ctx context.Context, fn func(Navigator) error) error
	Flags() crawl.Flags
}

// Fetcher performs the direct-then-relay HTTP fetch used when the browser
// cannot load a page.
type Fetcher interface {
	Smart(ctx context.Context, rawURL string) crawl.FetchOutcome
}

// DriverBrowser adapts *browser.Driver to the Browser interface.
type DriverBrowser struct {
	*browser.Driver
}

// WithSession narrows the driver's concrete session to the Navigator
// interface.
func (b DriverBrowser) WithSession(ctx context.Context, fn func(Navigator) error) error {
	return b.Driver.WithSession(ctx, func(s *browser.Session) error {
		return fn(s)
	})
}

// Config holds the crawl pacing and breadth knobs.
type Config struct {
	BaseURL             string
	Categories          int
	MaxLinksPerCategory int
	RaceDelay           time.Duration
	CategoryDelay       time.Duration
}

// Orchestrator coordinates one crawl per request. It holds no per-run state;
// Run is safe for concurrent use.
type Orchestrator struct {
	cfg     Config
	browser Browser
	fetcher Fetcher
	parser  *parse.Parser
	logger  *zap.Logger
}

// New constructs an Orchestrator, filling in defaults for zero-valued knobs.
func New(cfg Config, b Browser, f Fetcher, p *parse.Parser, logger *zap.Logger) *Orchestrator {
	if cfg.Categories <= 0 {
		cfg.Categories = crawl.CategoryCount
	}
	if cfg.MaxLinksPerCategory <= 0 {
		cfg.MaxLinksPerCategory = 50
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Orchestrator{
		cfg:     cfg,
		browser: b,
		fetcher: f,
		parser:  p,
		logger:  logger,
	}
}

// Run crawls every category calendar for the given edition year, visits the
// discovered race pages, and returns the deduplicated winners for the target
// day plus diagnostics. A browser-driver hard failure (including a missing
// automation strategy) aborts the run; category-level trouble is logged and
// skipped.
func (o *Orchestrator) Run(ctx context.Context, target crawl.TargetDate, year int) (crawl.Report, error) {
	meta := crawl.Meta{
		Year:           year,
		RaceLinksByCat: make(map[int][]string),
		Flags:          o.browser.Flags(),
	}
	var results []crawl.WinnerResult

	// One limiter spans all categories so the pacing holds across category
	// boundaries too.
	limiter := rate.NewLimiter(rate.Every(o.cfg.RaceDelay), 1)

	err := o.browser.WithSession(ctx, func(nav Navigator) error {
		return o.crawlAll(ctx, nav, target, year, limiter, &results, &meta)
	})
	if err != nil {
		return crawl.Report{Meta: meta}, err
	}

	report := crawl.Report{Results: crawl.Finalize(results), Meta: meta}
	o.logger.Info("crawl finished",
		zap.Int("year", year),
		zap.Int("categories", meta.CategoriesTried),
		zap.Int("racePages", meta.RacePagesVisited),
		zap.Int("winners", len(report.Results)))
	return report, nil
}

func (o *Orchestrator) crawlAll(
	ctx context.Context,
	nav Navigator,
	target crawl.TargetDate,
	year int,
	limiter *rate.Limiter,
	results *[]crawl.WinnerResult,
	meta *crawl.Meta,
) error {
	for t := 1; t <= o.cfg.Categories; t++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.crawlCategory(ctx, nav, t, target, year, limiter, results, meta); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			o.logger.Warn("category skipped", zap.Int("t", t), zap.Error(err))
			metrics.ObserveCategorySkipped()
		}
		meta.CategoriesTried++
		if t < o.cfg.Categories {
			if err := sleepCtx(ctx, o.cfg.CategoryDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Orchestrator) crawlCategory(
	ctx context.Context,
	nav Navigator,
	t int,
	target crawl.TargetDate,
	year int,
	limiter *rate.Limiter,
	results *[]crawl.WinnerResult,
	meta *crawl.Meta,
) error {
	calURL := fmt.Sprintf("%s/race.php?y=%d&t=%d", o.cfg.BaseURL, year, t)
	meta.CalendarURLsTried = append(meta.CalendarURLsTried, calURL)

	links, entry := o.discoverLinks(ctx, nav, calURL, t)
	meta.CalendarLog = append(meta.CalendarLog, entry)
	meta.RaceLinksByCat[t] = links

	for _, raceURL := range links {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		o.visitRace(ctx, nav, raceURL, t, target, year, results, meta)
	}
	return nil
}

// discoverLinks loads one category calendar and extracts race-detail links,
// falling back from the live browser to the smart fetch, and from DOM
// extraction to a raw href scan.
func (o *Orchestrator) discoverLinks(
	ctx context.Context,
	nav Navigator,
	calURL string,
	t int,
) ([]string, crawl.CalendarLogEntry) {
	entry := crawl.CalendarLogEntry{T: t}
	var set map[string]struct{}

	html, err := nav.Navigate(ctx, calURL)
	if err == nil {
		entry.Status = http.StatusOK
		entry.OK = true
		set = extract.RaceLinks(html, o.cfg.BaseURL)
		metrics.ObserveFetch("browser", "ok")
	} else {
		o.logger.Debug("calendar navigation failed", zap.String("url", calURL), zap.Error(err))
		metrics.ObserveFetch("browser", "error")
	}

	if len(set) == 0 {
		out := o.fetcher.Smart(ctx, calURL)
		entry.Status = out.Status
		entry.OK = out.OK
		entry.ViaProxy = out.ViaProxy
		if out.OK && !crawl.LooksBlocked(out.Text) {
			set = extract.RaceLinks(out.Text, o.cfg.BaseURL)
			if len(set) == 0 {
				set = extract.RaceLinksRaw(out.Text, o.cfg.BaseURL)
			}
		}
	}

	links := make([]string, 0, len(set))
	for u := range set {
		links = append(links, u)
	}
	// Map order is random; sort before capping so the cap is deterministic.
	sort.Strings(links)
	if len(links) > o.cfg.MaxLinksPerCategory {
		links = links[:o.cfg.MaxLinksPerCategory]
	}
	entry.LinkCount = len(links)
	return links, entry
}

// visitRace loads one race detail page and runs the winner heuristics against
// it. All failures here are per-page; the crawl moves on.
func (o *Orchestrator) visitRace(
	ctx context.Context,
	nav Navigator,
	raceURL string,
	t int,
	target crawl.TargetDate,
	year int,
	results *[]crawl.WinnerResult,
	meta *crawl.Meta,
) {
	meta.VisitedRaceURLs = append(meta.VisitedRaceURLs, raceURL)

	entry := crawl.RaceFetchLogEntry{URL: raceURL}
	var html string
	rendered, err := nav.Navigate(ctx, raceURL)
	if err == nil {
		html = rendered
		entry.Status = http.StatusOK
		entry.OK = true
		metrics.ObserveFetch("browser", "ok")
	} else {
		metrics.ObserveFetch("browser", "error")
		out := o.fetcher.Smart(ctx, raceURL)
		entry.Status = out.Status
		entry.OK = out.OK
		entry.ViaProxy = out.ViaProxy
		if out.OK {
			html = out.Text
		}
	}
	meta.RaceFetchLog = append(meta.RaceFetchLog, entry)
	meta.RacePagesVisited++

	if html == "" || crawl.LooksBlocked(html) {
		metrics.ObserveRacePage("skipped-error")
		return
	}

	if res := o.parser.ForDate(html, target, year, raceURL); res != nil {
		res.CategoryT = t
		*results = append(*results, *res)
		metrics.ObserveMatch()
		metrics.ObserveRacePage("matched")
		o.logger.Info("winner matched",
			zap.String("race", res.RaceName),
			zap.String("winner", res.Winner),
			zap.Int("t", t))
		return
	}
	metrics.ObserveRacePage("no-match")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

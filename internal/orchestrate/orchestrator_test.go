package orchestrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onthisday/racewinners/internal/browser"
	"github.com/onthisday/racewinners/internal/crawl"
	"github.com/onthisday/racewinners/internal/metrics"
	"github.com/onthisday/racewinners/internal/parse"
)

const baseURL = "https://firstcycling.com"

const calendarPage = `<html><body>
<a href="race.php?id=1">Tour of Elm</a>
<a href="rider.php?r=9">Some rider</a>
<a href="race.php?y=1992&t=1">Calendar nav</a>
</body></html>`

const detailPage = `<html><head><title>Tour of Elm | Results</title></head><body>
<h1>Tour of Elm</h1>
<h2>Edition 1995</h2>
<table>
<tr><th>Date</th><th>Winner</th></tr>
<tr><td>04 May 1995</td><td><a href="rider.php?r=42">J. Doe</a></td></tr>
</table>
</body></html>`

const noMatchPage = `<html><body>
<table><tr><td>01 Jan 1990</td><td>Nobody</td></tr></table>
</body></html>`

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeNavigator struct {
	pages   map[string]string
	failAll bool
	visits  []string
}

func (n *fakeNavigator) Navigate(_ context.Context, rawURL string) (string, error) {
	n.visits = append(n.visits, rawURL)
	if n.failAll {
		return "", errors.New("net::ERR_CONNECTION_RESET")
	}
	html, ok := n.pages[rawURL]
	if !ok {
		return "", errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	return html, nil
}

type fakeBrowser struct {
	nav   *fakeNavigator
	err   error
	flags crawl.Flags
}

func (b *fakeBrowser) WithSession(_ context.Context, fn func(Navigator) error) error {
	if b.err != nil {
		return b.err
	}
	return fn(b.nav)
}

func (b *fakeBrowser) Flags() crawl.Flags { return b.flags }

type fakeFetcher struct {
	outcomes map[string]crawl.FetchOutcome
	calls    []string
}

func (f *fakeFetcher) Smart(_ context.Context, rawURL string) crawl.FetchOutcome {
	f.calls = append(f.calls, rawURL)
	if out, ok := f.outcomes[rawURL]; ok {
		return out
	}
	return crawl.FetchOutcome{Status: 404}
}

func newOrchestrator(t *testing.T, cfg Config, b Browser, f Fetcher) *Orchestrator {
	t.Helper()
	metrics.Init()
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	clock := fixedClock{now: time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)}
	return New(cfg, b, f, parse.New(baseURL, clock), zap.NewNop())
}

func TestRun_FullPipelineMatch(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{pages: map[string]string{
		baseURL + "/race.php?y=1992&t=1": calendarPage,
		baseURL + "/race.php?y=1992&t=2": "<html><body>nothing here</body></html>",
		baseURL + "/race.php?id=1":       detailPage,
	}}
	b := &fakeBrowser{nav: nav, flags: crawl.Flags{LocalLaunch: true, BrowserAvailable: true}}
	f := &fakeFetcher{}

	o := newOrchestrator(t, Config{Categories: 2}, b, f)
	report, err := o.Run(context.Background(), crawl.TargetDate{Month: 5, Day: 4}, 1992)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	res := report.Results[0]
	require.Equal(t, "Tour of Elm", res.RaceName)
	require.Equal(t, baseURL+"/race.php?id=1", res.RaceURL)
	require.Equal(t, 1995, res.EditionYear)
	require.Equal(t, "1995-05-04", res.Date)
	require.Equal(t, "J. Doe", res.Winner)
	require.Equal(t, baseURL+"/rider.php?r=42", res.WinnerURL)
	require.Equal(t, 1, res.CategoryT)

	meta := report.Meta
	require.Equal(t, 1992, meta.Year)
	require.Equal(t, 2, meta.CategoriesTried)
	require.Equal(t, 1, meta.RacePagesVisited)
	require.Len(t, meta.CalendarURLsTried, 2)
	require.Equal(t, []string{baseURL + "/race.php?id=1"}, meta.RaceLinksByCat[1])
	require.Empty(t, meta.RaceLinksByCat[2])
	require.Len(t, meta.CalendarLog, 2)
	require.Equal(t, 1, meta.CalendarLog[0].LinkCount)
	require.Len(t, meta.RaceFetchLog, 1)
	require.True(t, meta.RaceFetchLog[0].OK)
	require.True(t, meta.Flags.BrowserAvailable)
}

func TestRun_FallsBackToSmartFetchAndRawScan(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{failAll: true}
	b := &fakeBrowser{nav: nav, flags: crawl.Flags{BrowserAvailable: true}}
	f := &fakeFetcher{outcomes: map[string]crawl.FetchOutcome{
		baseURL + "/race.php?y=1992&t=1": {
			OK: true, Status: 200, ViaProxy: true,
			Text: `markdown noise href="race.php?id=9" more noise`,
		},
		baseURL + "/race.php?id=9": {
			OK: true, Status: 200, ViaProxy: true,
			Text: detailPage,
		},
	}}

	o := newOrchestrator(t, Config{Categories: 1}, b, f)
	report, err := o.Run(context.Background(), crawl.TargetDate{Month: 5, Day: 4}, 1992)
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	require.Equal(t, "J. Doe", report.Results[0].Winner)
	require.True(t, report.Meta.CalendarLog[0].ViaProxy)
	require.True(t, report.Meta.RaceFetchLog[0].ViaProxy)
	require.Contains(t, f.calls, baseURL+"/race.php?y=1992&t=1")
	require.Contains(t, f.calls, baseURL+"/race.php?id=9")
}

func TestRun_SkipsBlockedRacePage(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{pages: map[string]string{
		baseURL + "/race.php?y=1992&t=1": calendarPage,
		baseURL + "/race.php?id=1":       "<html><body>Access Denied</body></html>",
	}}
	b := &fakeBrowser{nav: nav}
	f := &fakeFetcher{}

	o := newOrchestrator(t, Config{Categories: 1}, b, f)
	report, err := o.Run(context.Background(), crawl.TargetDate{Month: 5, Day: 4}, 1992)
	require.NoError(t, err)

	require.Empty(t, report.Results)
	require.Equal(t, 1, report.Meta.RacePagesVisited)
}

func TestRun_NoAutomationFailsFast(t *testing.T) {
	t.Parallel()

	b := &fakeBrowser{err: browser.ErrNoAutomation}
	o := newOrchestrator(t, Config{Categories: 1}, b, &fakeFetcher{})

	_, err := o.Run(context.Background(), crawl.TargetDate{Month: 5, Day: 4}, 1992)
	require.ErrorIs(t, err, browser.ErrNoAutomation)
}

func TestRun_CanceledContextAborts(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{pages: map[string]string{}}
	b := &fakeBrowser{nav: nav}
	o := newOrchestrator(t, Config{Categories: 3}, b, &fakeFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Run(ctx, crawl.TargetDate{Month: 5, Day: 4}, 1992)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, nav.visits)
}

func TestRun_CapsLinksPerCategory(t *testing.T) {
	t.Parallel()

	nav := &fakeNavigator{pages: map[string]string{
		baseURL + "/race.php?y=1992&t=1": `<html><body>
<a href="race.php?id=1">a</a>
<a href="race.php?id=2">b</a>
<a href="race.php?id=3">c</a>
</body></html>`,
		baseURL + "/race.php?id=1": noMatchPage,
		baseURL + "/race.php?id=2": noMatchPage,
	}}
	b := &fakeBrowser{nav: nav}

	o := newOrchestrator(t, Config{Categories: 1, MaxLinksPerCategory: 2}, b, &fakeFetcher{})
	report, err := o.Run(context.Background(), crawl.TargetDate{Month: 5, Day: 4}, 1992)
	require.NoError(t, err)

	require.Empty(t, report.Results)
	require.Len(t, report.Meta.RaceLinksByCat[1], 2)
	require.Equal(t, 2, report.Meta.RacePagesVisited)
	require.NotContains(t, nav.visits, baseURL+"/race.php?id=3")
}

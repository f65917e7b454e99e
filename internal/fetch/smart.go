// Package fetch implements the multi-strategy page fetcher: a direct HTTP GET
// with a browser-like request signature, falling back to a text-extraction
// relay when the direct attempt fails or looks bot-blocked.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/onthisday/racewinners/internal/crawl"
	"github.com/onthisday/racewinners/internal/metrics"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent string
	BaseURL   string // referer for direct requests
	RelayBase string // text-extraction relay, e.g. https://r.jina.ai
	Timeout   time.Duration
}

// Client is the multi-strategy fetcher.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Client with a pooled transport shared by all fetches.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Client{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Smart fetches a URL directly first and through the relay second. A direct
// response that is successful and does not look blocked is returned with
// ViaProxy=false; anything else, including transport errors, falls through to
// the relay, whose outcome is returned with ViaProxy=true regardless of its
// own success. The caller decides how to interpret failure.
func (c *Client) Smart(ctx context.Context, rawURL string) crawl.FetchOutcome {
	direct, err := c.get(ctx, rawURL, true)
	if err == nil && direct.OK && !crawl.LooksBlocked(direct.Text) {
		metrics.ObserveFetch("direct", "ok")
		return direct
	}
	if err != nil {
		c.logger.Debug("direct fetch failed, using relay", zap.String("url", rawURL), zap.Error(err))
		metrics.ObserveFetch("direct", "error")
	} else {
		c.logger.Debug("direct fetch blocked or unsuccessful, using relay",
			zap.String("url", rawURL), zap.Int("status", direct.Status))
		metrics.ObserveFetch("direct", "blocked")
	}

	proxy, err := c.get(ctx, c.relayURL(rawURL), false)
	proxy.ViaProxy = true
	if err != nil {
		c.logger.Debug("relay fetch failed", zap.String("url", rawURL), zap.Error(err))
		metrics.ObserveFetch("proxy", "error")
		return crawl.FetchOutcome{ViaProxy: true}
	}
	if proxy.OK {
		metrics.ObserveFetch("proxy", "ok")
	} else {
		metrics.ObserveFetch("proxy", "blocked")
	}
	return proxy
}

// relayURL rewrites a target URL into its relay form: the relay fetches and
// reflows the page server-side.
func (c *Client) relayURL(rawURL string) string {
	withoutScheme := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	return fmt.Sprintf("%s/http://%s", strings.TrimRight(c.cfg.RelayBase, "/"), withoutScheme)
}

func (c *Client) get(ctx context.Context, rawURL string, browserHeaders bool) (crawl.FetchOutcome, error) {
	collector := c.baseCollector.Clone()
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)

	var (
		outcome  crawl.FetchOutcome
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		if !browserHeaders {
			return
		}
		r.Headers.Set("Accept",
			"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Referer", strings.TrimRight(c.cfg.BaseURL, "/")+"/")
		r.Headers.Set("Upgrade-Insecure-Requests", "1")
		r.Headers.Set("Cache-Control", "no-cache")
	})

	collector.OnResponse(func(r *colly.Response) {
		outcome = crawl.FetchOutcome{
			OK:     r.StatusCode >= 200 && r.StatusCode < 300,
			Status: r.StatusCode,
			Text:   string(r.Body),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			outcome = crawl.FetchOutcome{Status: r.StatusCode, Text: string(r.Body)}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return crawl.FetchOutcome{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil && outcome.Status == 0 {
			return crawl.FetchOutcome{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if fetchErr != nil && outcome.Status == 0 {
			return crawl.FetchOutcome{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		return outcome, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}

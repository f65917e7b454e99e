package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onthisday/racewinners/internal/config"
)

func testConfig() config.Config {
	return config.Config{
		Environment: "development",
		Server:      config.ServerConfig{Port: 0, RequestTimeoutSeconds: 5},
		Crawler: config.CrawlerConfig{
			BaseURL:             "https://firstcycling.com",
			UserAgent:           "test-agent",
			Categories:          24,
			MaxLinksPerCategory: 50,
		},
		Browser: config.BrowserConfig{NavTimeoutSeconds: 5},
		Proxy:   config.ProxyConfig{RelayBase: "https://r.jina.ai"},
		HTTP:    config.HTTPConfig{TimeoutSeconds: 5},
	}
}

func TestBuild(t *testing.T) {
	app, err := Build(testConfig())
	require.NoError(t, err)
	require.NotNil(t, app.apiServer)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app, err := Build(testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	// Give the listener a moment before asking it to stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

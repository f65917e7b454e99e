package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/onthisday/racewinners/internal/metrics"
)

func newTestClient(t *testing.T, relayBase string) *Client {
	t.Helper()
	metrics.Init()
	return New(Config{
		UserAgent: "test-agent",
		BaseURL:   "https://firstcycling.com",
		RelayBase: relayBase,
		Timeout:   5 * time.Second,
	}, zap.NewNop())
}

func TestSmart_DirectSuccess(t *testing.T) {
	t.Parallel()

	var gotReferer, gotUA string
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReferer = r.Header.Get("Referer")
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body>race results</body></html>")) //nolint:errcheck
	}))
	defer target.Close()

	c := newTestClient(t, "https://r.example")
	out := c.Smart(context.Background(), target.URL)

	require.True(t, out.OK)
	require.False(t, out.ViaProxy)
	require.Equal(t, 200, out.Status)
	require.Contains(t, out.Text, "race results")
	require.Equal(t, "https://firstcycling.com/", gotReferer)
	require.Equal(t, "test-agent", gotUA)
}

func TestSmart_BlockedBodyFallsThroughToRelay(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("<html>Checking with Cloudflare</html>")) //nolint:errcheck
	}))
	defer target.Close()

	var relayPath string
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		relayPath = r.URL.String()
		w.Write([]byte("reflowed race page")) //nolint:errcheck
	}))
	defer relay.Close()

	c := newTestClient(t, relay.URL)
	out := c.Smart(context.Background(), target.URL)

	require.True(t, out.OK)
	require.True(t, out.ViaProxy)
	require.Contains(t, out.Text, "reflowed race page")
	require.True(t, strings.HasPrefix(relayPath, "/http://"), "relay path %q", relayPath)
}

func TestSmart_DirectErrorStatusFallsThroughToRelay(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer target.Close()

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("relay body")) //nolint:errcheck
	}))
	defer relay.Close()

	c := newTestClient(t, relay.URL)
	out := c.Smart(context.Background(), target.URL)

	require.True(t, out.ViaProxy)
	require.Contains(t, out.Text, "relay body")
}

func TestSmart_RelayFailureStillReturnsViaProxy(t *testing.T) {
	t.Parallel()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer target.Close()

	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer relay.Close()

	c := newTestClient(t, relay.URL)
	out := c.Smart(context.Background(), target.URL)

	require.True(t, out.ViaProxy)
	require.False(t, out.OK)
	require.Equal(t, http.StatusBadGateway, out.Status)
}

func TestRelayURL(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, "https://r.jina.ai")
	require.Equal(t,
		"https://r.jina.ai/http://firstcycling.com/race.php?id=1",
		c.relayURL("https://firstcycling.com/race.php?id=1"))
	require.Equal(t,
		"https://r.jina.ai/http://plain.example/x",
		c.relayURL("http://plain.example/x"))
}

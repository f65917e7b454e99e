package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	require.NotPanics(t, func() {
		ObserveRacePage("matched")
		ObserveFetch("direct", "ok")
		ObserveMatch()
		ObserveCategorySkipped()
		ObserveHTTPRequest("GET", "/v1/winners", 200, 50*time.Millisecond)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	Init()
	ObserveFetch("proxy", "ok")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), "winners_fetch_total")
}

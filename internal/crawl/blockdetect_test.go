package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLooksBlocked_Cloudflare(t *testing.T) {
	t.Parallel()

	require.True(t, LooksBlocked("<html><body>Checking with Cloudflare...</body></html>"))
	require.True(t, LooksBlocked("CLOUDFLARE"))
}

func TestLooksBlocked_Markers(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"403 Forbidden",
		"Access Denied",
		"Your IP has been blocked",
		"please solve this CAPTCHA",
	} {
		require.True(t, LooksBlocked(text), "expected %q to look blocked", text)
	}
}

func TestLooksBlocked_OrdinaryHTML(t *testing.T) {
	t.Parallel()

	html := `<html><body><table><tr><td>04 May 1995</td><td><a href="rider.php?r=1">J. Doe</a></td></tr></table></body></html>`
	require.False(t, LooksBlocked(html))
}

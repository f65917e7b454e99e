package crawl

import "strings"

// AbsoluteURL resolves an href against the site base. Hrefs that already carry
// a scheme pass through untouched.
func AbsoluteURL(base, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}

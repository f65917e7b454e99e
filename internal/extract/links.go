// Package extract discovers race-detail links on category calendar pages.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/onthisday/racewinners/internal/crawl"
)

var (
	yearParamRe = regexp.MustCompile(`(^|[?&])y=\d{4}(&|$)`)
	catParamRe  = regexp.MustCompile(`(^|[?&])t=\d{1,2}(&|$)`)
	idParamRe   = regexp.MustCompile(`(?i)[?&](raceid|id|race|r)=`)
	yearOrCatRe = regexp.MustCompile(`(?i)[?&](y|t)=`)
	rawHrefRe   = regexp.MustCompile(`(?i)href="([^"]*race\.php[^"]*)"`)
)

// IsRaceDetailHref reports whether an href points at a specific race detail
// page rather than another calendar/listing view. An href carrying both a year
// and a category parameter is a calendar navigation and is rejected; an
// id-like parameter marks a resolved detail link, as does the absence of any
// year/category parameter.
func IsRaceDetailHref(href string) bool {
	h := strings.TrimSpace(href)
	if h == "" {
		return false
	}
	if !strings.Contains(h, "race.php") {
		return false
	}
	if yearParamRe.MatchString(h) && catParamRe.MatchString(h) {
		return false
	}
	if idParamRe.MatchString(h) {
		return true
	}
	return !yearOrCatRe.MatchString(h)
}

// RaceLinks parses calendar HTML and returns the set of absolutized
// race-detail URLs found in its anchors. Order is irrelevant; uniqueness is
// the point of the set.
func RaceLinks(html, baseURL string) map[string]struct{} {
	links := make(map[string]struct{})
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return links
	}
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if IsRaceDetailHref(href) {
			links[crawl.AbsoluteURL(baseURL, href)] = struct{}{}
		}
	})
	return links
}

// RaceLinksRaw scans raw text for race.php hrefs with a regex, applying the
// same accept/reject predicate. Last-resort path for pages whose DOM yielded
// nothing.
func RaceLinksRaw(text, baseURL string) map[string]struct{} {
	links := make(map[string]struct{})
	for _, m := range rawHrefRe.FindAllStringSubmatch(text, -1) {
		if IsRaceDetailHref(m[1]) {
			links[crawl.AbsoluteURL(baseURL, m[1])] = struct{}{}
		}
	}
	return links
}

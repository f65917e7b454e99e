package parse

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/onthisday/racewinners/internal/crawl"
)

// riderLinkSelector finds anchors pointing at rider profile pages.
const riderLinkSelector = `a[href*="rider.php"]`

var whitespaceRe = regexp.MustCompile(`\s+`)

// Parser turns race detail HTML into a WinnerResult for a target day.
type Parser struct {
	baseURL string
	clock   crawl.Clock
}

// New constructs a Parser. The clock supplies the default edition year when a
// page carries none.
func New(baseURL string, clock crawl.Clock) *Parser {
	return &Parser{baseURL: baseURL, clock: clock}
}

// ForDate extracts a winner row matching the target month/day from a race
// page. Two independent heuristics are tried in order: a table-row scan for
// multi-edition result tables, then a single-day info-block scan for pages
// describing one fixed event. The first non-nil result wins; pages with no
// match return nil, never an error. seedYear is the edition year being
// searched and backs the single-day heuristic when the page has no year.
func (p *Parser) ForDate(html string, target crawl.TargetDate, seedYear int, fallbackURL string) *crawl.WinnerResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	if res := p.tableRowScan(doc, target, fallbackURL); res != nil {
		return res
	}
	return p.singleDayScan(doc, target, seedYear, fallbackURL)
}

// tableRowScan is the multi-edition heuristic: walk every table row, pull a
// date out of the row text, and take the first row whose month/day equals the
// target. No ranking across rows; whichever row the scan visits first wins,
// even when several rows carry the same day across different years.
func (p *Parser) tableRowScan(doc *goquery.Document, target crawl.TargetDate, fallbackURL string) *crawl.WinnerResult {
	var match *crawl.WinnerResult

	doc.Find("table tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		tds := tr.Find("td")
		if tds.Length() < 1 {
			return true
		}

		rowText := squashSpace(tr.Text())
		md := findRowDate(rowText)
		if md == nil || !target.Matches(md.month, md.day) {
			return true
		}

		winner, winnerURL := p.riderFromRow(tr, tds)
		editionYear := headingYear(doc.Find("h1, h2, .season, .year").Text())
		if editionYear == 0 {
			editionYear = p.clock.Now().Year()
		}

		raceURL := fallbackURL
		if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok && canonical != "" {
			raceURL = canonical
		}

		match = &crawl.WinnerResult{
			RaceName:    p.raceName(doc),
			RaceURL:     raceURL,
			EditionYear: editionYear,
			Date:        target.ISO(editionYear),
			Winner:      winner,
			WinnerURL:   winnerURL,
		}
		return false
	})

	return match
}

// singleDayScan is the fixed-event heuristic: find the page's one date in the
// body text, and if it matches the target, read the first-place finisher from
// the results table.
func (p *Parser) singleDayScan(doc *goquery.Document, target crawl.TargetDate, seedYear int, fallbackURL string) *crawl.WinnerResult {
	info := findSingleDayDate(squashSpace(doc.Find("body").Text()))
	if info == nil || !target.Matches(info.month, info.day) {
		return nil
	}

	winner, winnerURL := p.firstPlaceFinisher(doc)
	if winner == "" {
		return nil
	}

	editionYear := info.year
	if editionYear == 0 {
		editionYear = seedYear
	}

	return &crawl.WinnerResult{
		RaceName:    p.raceName(doc),
		RaceURL:     fallbackURL,
		EditionYear: editionYear,
		Date:        target.ISO(editionYear),
		Winner:      winner,
		WinnerURL:   winnerURL,
	}
}

// riderFromRow reads winner name/URL from a matched row: the first rider
// profile anchor when present, otherwise the second cell's text.
func (p *Parser) riderFromRow(tr, tds *goquery.Selection) (string, string) {
	link := tr.Find(riderLinkSelector).First()
	winner := squashSpace(link.Text())
	if winner == "" {
		cell := tds.Eq(1)
		if cell.Length() == 0 {
			cell = tds.Eq(0)
		}
		winner = squashSpace(cell.Text())
	}

	winnerURL := ""
	if href, ok := link.Attr("href"); ok && href != "" {
		winnerURL = crawl.AbsoluteURL(p.baseURL, href)
	}
	return winner, winnerURL
}

// firstPlaceFinisher locates the row whose position cell reads "1", falling
// back to the second table row when no explicit position column exists.
func (p *Parser) firstPlaceFinisher(doc *goquery.Document) (string, string) {
	var row *goquery.Selection
	doc.Find("table tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		pos := strings.TrimSpace(tr.Find("td").Eq(0).Text())
		if pos == "1" {
			row = tr
			return false
		}
		return true
	})
	if row == nil {
		row = doc.Find("table tr").Eq(1)
	}
	if row == nil || row.Length() == 0 {
		return "", ""
	}

	link := row.Find(riderLinkSelector).First()
	name := squashSpace(link.Text())
	if name == "" {
		name = strings.TrimSpace(strings.SplitN(row.Text(), "\n", 2)[0])
	}

	url := ""
	if href, ok := link.Attr("href"); ok && href != "" {
		url = crawl.AbsoluteURL(p.baseURL, href)
	}
	return name, url
}

// raceName prefers the first h1, falls back to the title, and strips any
// "| site name" suffix.
func (p *Parser) raceName(doc *goquery.Document) string {
	name := strings.TrimSpace(doc.Find("h1").First().Text())
	if name == "" {
		name = strings.TrimSpace(doc.Find("title").Text())
	}
	if idx := strings.Index(name, "|"); idx >= 0 {
		name = strings.TrimSpace(name[:idx])
	}
	if name == "" {
		name = "Race"
	}
	return name
}

func squashSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

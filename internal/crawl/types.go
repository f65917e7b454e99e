// Package crawl defines core types shared across the crawl pipeline.
package crawl

import (
	"fmt"
	"time"
)

// CategoryCount is the number of competition categories the site partitions
// races into. Category handles run from 1 to CategoryCount inclusive.
const CategoryCount = 24

// TargetDate is the month/day pair the crawl matches against. The year of the
// input date is independent; it only seeds the default edition year.
type TargetDate struct {
	Month int
	Day   int
}

// NewTargetDate derives a TargetDate from a calendar date.
func NewTargetDate(t time.Time) TargetDate {
	return TargetDate{Month: int(t.Month()), Day: t.Day()}
}

// Matches reports whether the given month/day equals the target.
func (d TargetDate) Matches(month, day int) bool {
	return month == d.Month && day == d.Day
}

// ISO renders the target date with the given edition year as YYYY-MM-DD.
func (d TargetDate) ISO(year int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, d.Month, d.Day)
}

// WinnerResult is one matched race edition for the target day.
type WinnerResult struct {
	RaceName    string `json:"raceName"`
	RaceURL     string `json:"raceUrl"`
	EditionYear int    `json:"editionYear"`
	Date        string `json:"date"`
	Winner      string `json:"winner"`
	WinnerURL   string `json:"winnerUrl,omitempty"`
	CategoryT   int    `json:"categoryT"`
}

// FetchOutcome is the result of one smart fetch. It is consumed immediately by
// the caller and never persisted.
type FetchOutcome struct {
	OK       bool
	Status   int
	Text     string
	ViaProxy bool
}

// CalendarLogEntry records the outcome of one category listing fetch.
type CalendarLogEntry struct {
	T         int  `json:"t"`
	Status    int  `json:"status"`
	OK        bool `json:"ok"`
	ViaProxy  bool `json:"viaProxy"`
	LinkCount int  `json:"linkCount"`
}

// RaceFetchLogEntry records the outcome of one race detail fetch.
type RaceFetchLogEntry struct {
	URL      string `json:"url"`
	Status   int    `json:"status"`
	OK       bool   `json:"ok"`
	ViaProxy bool   `json:"viaProxy"`
}

// Flags describes the automation capabilities of the current deployment.
type Flags struct {
	RemoteEndpoint   bool `json:"remoteEndpoint"`
	LocalLaunch      bool `json:"localLaunch"`
	BrowserAvailable bool `json:"browserAvailable"`
}

// Meta carries crawl diagnostics back to the caller. It is observational, not
// authoritative.
type Meta struct {
	Year               int                 `json:"year"`
	CategoriesTried    int                 `json:"categoriesTried"`
	RacePagesVisited   int                 `json:"racePagesVisited"`
	RaceLinksByCat     map[int][]string    `json:"raceLinksByCategory"`
	VisitedRaceURLs    []string            `json:"visitedRaceUrls"`
	CalendarURLsTried  []string            `json:"calendarUrlsTried"`
	CalendarLog        []CalendarLogEntry  `json:"calendarLog"`
	RaceFetchLog       []RaceFetchLogEntry `json:"raceFetchLog"`
	Flags              Flags               `json:"flags"`
}

// Report is the full payload of one crawl run: the deduplicated results plus
// the diagnostics accumulated along the way.
type Report struct {
	Results []WinnerResult `json:"results"`
	Meta    Meta           `json:"meta"`
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

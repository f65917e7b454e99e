// Package parse extracts winner rows matching a target calendar day from
// loosely structured race pages. The markup has no stable schema, so every
// extraction here is heuristic: ordered matchers, first hit wins, malformed
// input is a non-match rather than an error.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// monthsByName maps English month names and common abbreviations to month
// numbers.
var monthsByName = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// monthDay is a month/day pair pulled out of free text.
type monthDay struct {
	month int
	day   int
}

// dateMatcher attempts to extract a month/day pair from text. A nil return
// means the matcher found nothing; matchers never fail loudly.
type dateMatcher func(text string) *monthDay

// rowDateMatchers are tried in order against a table row's text. Numeric forms
// win over textual ones so that "2024-05-04" is not misread as "20 ..." by a
// textual matcher.
var rowDateMatchers = []dateMatcher{
	matchISODate,
	matchNumericDate,
	matchDayMonthName,
	matchMonthNameDay,
}

var (
	isoDateRe     = regexp.MustCompile(`(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})`)
	numericDateRe = regexp.MustCompile(`(\d{1,2})[/.](\d{1,2})`)
	dayMonthRe    = regexp.MustCompile(`\b(\d{1,2})\s*([A-Za-z]{3,9})\b`)
	monthDayRe    = regexp.MustCompile(`\b([A-Za-z]{3,9})\s*(\d{1,2})\b`)
	dottedDateRe  = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})(?:\.(\d{2,4}))?\b`)
	ordinalDateRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+([A-Za-z]{3,9})(?:\s+(\d{4}))?\b`)
	headingYearRe = regexp.MustCompile(`(19|20)\d{2}`)
)

// findRowDate runs the row matchers in order and returns the first hit.
func findRowDate(text string) *monthDay {
	for _, match := range rowDateMatchers {
		if md := match(text); md != nil {
			return md
		}
	}
	return nil
}

// matchISODate normalizes YYYY-MM-DD (also slashed or dotted) to month/day.
func matchISODate(text string) *monthDay {
	m := isoDateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &monthDay{month: atoi(m[2]), day: atoi(m[3])}
}

// matchNumericDate reads MM/DD or MM.DD.
func matchNumericDate(text string) *monthDay {
	m := numericDateRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &monthDay{month: atoi(m[1]), day: atoi(m[2])}
}

// matchDayMonthName reads "4 May" style dates.
func matchDayMonthName(text string) *monthDay {
	m := dayMonthRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	mon, ok := monthsByName[strings.ToLower(m[2])]
	if !ok {
		return nil
	}
	return &monthDay{month: mon, day: atoi(m[1])}
}

// matchMonthNameDay reads "May 4" style dates.
func matchMonthNameDay(text string) *monthDay {
	m := monthDayRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	mon, ok := monthsByName[strings.ToLower(m[1])]
	if !ok {
		return nil
	}
	return &monthDay{month: mon, day: atoi(m[2])}
}

// singleDayDate is the one fixed date of a single-day race page.
type singleDayDate struct {
	monthDay
	year int // 0 when the page carries no year
}

// findSingleDayDate scans free text for one date occurrence in dotted numeric
// D.M[.YY[YY]] form or ordinal "Dth Month [Year]" form.
func findSingleDayDate(text string) *singleDayDate {
	if m := dottedDateRe.FindStringSubmatch(text); m != nil {
		return &singleDayDate{
			monthDay: monthDay{month: atoi(m[2]), day: atoi(m[1])},
			year:     expandYear(m[3]),
		}
	}
	if m := ordinalDateRe.FindStringSubmatch(text); m != nil {
		mon, ok := monthsByName[strings.ToLower(m[2])]
		if !ok {
			return nil
		}
		return &singleDayDate{
			monthDay: monthDay{month: mon, day: atoi(m[1])},
			year:     expandYear(m[3]),
		}
	}
	return nil
}

// expandYear parses an optional 2- or 4-digit year. Two-digit years 70-99 land
// in the 1900s, the rest in the 2000s.
func expandYear(s string) int {
	if s == "" {
		return 0
	}
	y := atoi(s)
	switch {
	case y >= 100:
		return y
	case y >= 70:
		return 1900 + y
	default:
		return 2000 + y
	}
}

// headingYear pulls the first plausible 4-digit year out of heading text.
// Returns 0 when none is present.
func headingYear(text string) int {
	m := headingYearRe.FindString(text)
	if m == "" {
		return 0
	}
	return atoi(m)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

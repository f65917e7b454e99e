package crawl

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Finalize deduplicates results by (raceUrl, date, winner), last write winning
// on key collision, and sorts by category then race name. The ordering is a
// presentation contract for the caller.
func Finalize(results []WinnerResult) []WinnerResult {
	byKey := make(map[string]WinnerResult, len(results))
	order := make([]string, 0, len(results))
	for _, r := range results {
		key := fmt.Sprintf("%s|%s|%s", r.RaceURL, r.Date, r.Winner)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = r
	}

	deduped := make([]WinnerResult, 0, len(byKey))
	for _, key := range order {
		deduped = append(deduped, byKey[key])
	}

	coll := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].CategoryT != deduped[j].CategoryT {
			return deduped[i].CategoryT < deduped[j].CategoryT
		}
		return coll.CompareString(deduped[i].RaceName, deduped[j].RaceName) < 0
	})
	return deduped
}

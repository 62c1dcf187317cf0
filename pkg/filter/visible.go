package filter

import (
	"strings"

	"golang.org/x/text/cases"

	"labmap/pkg/facets"
	"labmap/pkg/labs"
)

// searchFields lists what the text query is matched against, in order.
func searchFields(rec labs.Record) [6]string {
	return [6]string{rec.Name, rec.ACC, rec.APA, rec.Address, rec.Suburb, rec.Network}
}

// Visible returns the records passing both the facet and the text
// predicate, in source order. It never fails and keeps no state between
// calls. Records without geometry are included; projecting onto the map
// is the caller's job.
func Visible(records []labs.Record, s State, strategy facets.Strategy) []labs.Record {
	// A Caser carries state, so every call folds with its own.
	fold := cases.Fold()
	query := fold.String(strings.TrimSpace(s.Query))

	facetOn := strategy != nil && strategy.Name() != facets.None().Name() && !s.All
	var selected map[string]struct{}
	if facetOn {
		selected = s.selection()
	}

	out := make([]labs.Record, 0, len(records))
	for _, rec := range records {
		if facetOn && !facets.Matches(rec, strategy, selected) {
			continue
		}
		if query != "" && !matchesQuery(fold, rec, query) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func matchesQuery(fold cases.Caser, rec labs.Record, query string) bool {
	for _, field := range searchFields(rec) {
		if field == "" {
			continue
		}
		if strings.Contains(fold.String(field), query) {
			return true
		}
	}
	return false
}

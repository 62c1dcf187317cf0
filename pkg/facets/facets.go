// Package facets derives the categorical filter options offered next to
// the search box.
//
// One dashboard build serves three layouts: network multi-select,
// region single-select, and search only. They differ in how a record's
// facet values are extracted (Strategy) and in how many values may be
// selected at once (Cardinality).
package facets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"labmap/pkg/labs"
)

// All is the synthetic "every facet" option. Build never returns it;
// the UI prepends it.
const All = "all"

// Strategy extracts facet values from a canonical record.
type Strategy interface {
	// Name identifies the strategy in configuration and in the UI.
	Name() string
	// Values returns the record's facet values, already normalized.
	// A record may carry none.
	Values(rec labs.Record) []string
}

// Cardinality bounds how many specific facets can be selected together.
type Cardinality int

const (
	Multi Cardinality = iota
	Single
)

func (c Cardinality) String() string {
	if c == Single {
		return "single"
	}
	return "multi"
}

// ParseCardinality accepts "single" or "multi" (the default).
func ParseCardinality(s string) (Cardinality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "multi", "multiple":
		return Multi, nil
	case "single", "one":
		return Single, nil
	}
	return Multi, fmt.Errorf("facets: unknown cardinality %q", s)
}

// Network facets on the lab network label, trimmed with case preserved.
func Network() Strategy { return networkStrategy{} }

type networkStrategy struct{}

func (networkStrategy) Name() string { return "network" }

func (networkStrategy) Values(rec labs.Record) []string {
	if v := strings.TrimSpace(rec.Network); v != "" {
		return []string{v}
	}
	return nil
}

// AustralianStates is the closed code set used by the region layout.
var AustralianStates = []string{"ACT", "NSW", "NT", "QLD", "SA", "TAS", "VIC", "WA"}

// Regions facets on short region codes found in the free-text location
// (suburb/town, then address). Matching is case-insensitive on word
// boundaries; values come back upper-cased in the order found.
func Regions(codes ...string) Strategy {
	if len(codes) == 0 {
		codes = AustralianStates
	}
	quoted := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c != "" {
			quoted = append(quoted, regexp.QuoteMeta(c))
		}
	}
	return regionStrategy{re: regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)}
}

type regionStrategy struct {
	re *regexp.Regexp
}

func (regionStrategy) Name() string { return "region" }

func (s regionStrategy) Values(rec labs.Record) []string {
	for _, text := range []string{rec.Suburb, rec.Address} {
		matches := s.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		out := make([]string, 0, len(matches))
		seen := make(map[string]struct{}, len(matches))
		for _, m := range matches {
			code := strings.ToUpper(m)
			if _, dup := seen[code]; dup {
				continue
			}
			seen[code] = struct{}{}
			out = append(out, code)
		}
		return out
	}
	return nil
}

// None disables the facet control; only text search remains.
func None() Strategy { return noneStrategy{} }

type noneStrategy struct{}

func (noneStrategy) Name() string { return "none" }
func (noneStrategy) Values(labs.Record) []string { return nil }

// Parse maps a configuration name onto a strategy.
func Parse(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "network":
		return Network(), nil
	case "region", "state":
		return Regions(), nil
	case "none", "off":
		return None(), nil
	}
	return nil, fmt.Errorf("facets: unknown strategy %q", name)
}

// Build returns the distinct facet values of records, sorted. It runs once
// after normalization; the record set does not change afterwards.
func Build(records []labs.Record, s Strategy) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for _, v := range s.Values(rec) {
			if v == "" {
				continue
			}
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Matches reports whether any of the record's facet values is selected.
func Matches(rec labs.Record, s Strategy, selected map[string]struct{}) bool {
	if len(selected) == 0 {
		return false
	}
	for _, v := range s.Values(rec) {
		if _, ok := selected[v]; ok {
			return true
		}
	}
	return false
}

// Package filter holds the per-session filter state (text query plus facet
// selection) and the pure function that maps it onto the visible set.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"labmap/pkg/facets"
)

// EmptyPolicy decides what an empty specific selection means once the
// user has cleared every facet without picking "all" again.
type EmptyPolicy int

const (
	// KeepEmpty matches nothing: the map and the result list go blank.
	KeepEmpty EmptyPolicy = iota
	// RevertToAll flips the state back to "all" as soon as the last
	// specific facet is removed.
	RevertToAll
)

func (p EmptyPolicy) String() string {
	if p == RevertToAll {
		return "revert"
	}
	return "keep"
}

// ParseEmptyPolicy accepts "keep" (default) or "revert".
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "keep", "empty", "none":
		return KeepEmpty, nil
	case "revert", "all", "revert-to-all":
		return RevertToAll, nil
	}
	return KeepEmpty, fmt.Errorf("filter: unknown empty-selection policy %q", s)
}

// Rules bind a State's transitions to the dashboard layout.
type Rules struct {
	Cardinality facets.Cardinality
	Empty       EmptyPolicy
}

// State is a value: every transition returns a new State and never
// aliases the receiver's selection.
//
// All and Selected are alternate representations of one choice: when All
// is set Selected is empty, and any specific selection clears All.
type State struct {
	Query    string   `json:"q,omitempty"`
	All      bool     `json:"a,omitempty"`
	Selected []string `json:"s,omitempty"`
}

// New is the state at map-ready time: no query, everything selected.
func New() State { return State{All: true} }

// SelectAll clears every specific facet.
func (s State) SelectAll() State {
	return State{Query: s.Query, All: true}
}

// Toggle applies one checkbox change. The synthetic facets.All value is
// accepted too: checking it selects all, unchecking it leaves an empty
// selection subject to r.Empty.
func (s State) Toggle(value string, on bool, r Rules) State {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.clone()
	}
	if value == facets.All {
		if on {
			return s.SelectAll()
		}
		next := State{Query: s.Query, Selected: slices.Clone(s.Selected)}
		return next.settle(r)
	}

	next := s.clone()
	if on {
		next.All = false
		if r.Cardinality == facets.Single {
			next.Selected = []string{value}
			return next
		}
		if !slices.Contains(next.Selected, value) {
			next.Selected = append(next.Selected, value)
		}
		return next
	}

	next.Selected = slices.DeleteFunc(next.Selected, func(v string) bool { return v == value })
	return next.settle(r)
}

// WithQuery replaces the raw text query. It is stored as typed; trimming
// and case folding happen in Visible.
func (s State) WithQuery(q string) State {
	next := s.clone()
	next.Query = q
	return next
}

// Normalize repairs a stored state so it obeys
// the All/Selected invariant and the cardinality.
func (s State) Normalize(r Rules) State {
	next := s.clone()
	if next.All {
		next.Selected = nil
		return next
	}
	out := next.Selected[:0]
	for _, v := range next.Selected {
		v = strings.TrimSpace(v)
		if v == "" || v == facets.All || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	next.Selected = out
	if r.Cardinality == facets.Single && len(next.Selected) > 1 {
		next.Selected = next.Selected[len(next.Selected)-1:]
	}
	return next.settle(r)
}

// IsSelected reports whether value is checked in the facet dropdown.
func (s State) IsSelected(value string) bool {
	if value == facets.All {
		return s.All
	}
	return !s.All && slices.Contains(s.Selected, value)
}

// Label is the text of the facet dropdown button. An empty selection
// reads like "all" as it always has, even though it matches nothing
// under KeepEmpty.
func (s State) Label(noun string) string {
	if noun == "" {
		noun = "Network"
	}
	n := len(s.Selected)
	if s.All || n == 0 {
		return "Watch all labs"
	}
	if n > 1 {
		noun += "s"
	}
	return fmt.Sprintf("%d %s selected", n, noun)
}

func (s State) settle(r Rules) State {
	if len(s.Selected) == 0 {
		s.Selected = nil
		if r.Empty == RevertToAll {
			s.All = true
		}
	}
	return s
}

func (s State) clone() State {
	s.Selected = slices.Clone(s.Selected)
	return s
}

func (s State) selection() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Selected))
	for _, v := range s.Selected {
		set[v] = struct{}{}
	}
	return set
}

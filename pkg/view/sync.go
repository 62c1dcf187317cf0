// Package view keeps the map geometry, the search result list and the
// record counter consistent with the visible set.
package view

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"labmap/pkg/filter"
	"labmap/pkg/labs"
	"labmap/pkg/mapview"
)

// Display fallbacks for result list entries.
const (
	NoName          = "No name"
	NoLocation      = "Location not available"
	NoResultsText   = "No results found"
	DefaultMaxItems = 50
)

// Options tunes a Synchronizer.
type Options struct {
	// MaxItems caps the result list. Zero means DefaultMaxItems.
	MaxItems int
	// Language formats the counter; zero means English grouping.
	Language language.Tag
}

// Item is one result list row. Name and Location are HTML-safe since the
// browser inserts them as markup; ID is raw and only travels as data.
type Item struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
}

// ResultList is the dropdown under the search box. Visible is false while
// the query is empty, which is different from an empty list: NoResults is
// only set when a non-empty query matched nothing.
type ResultList struct {
	Visible   bool   `json:"visible"`
	NoResults bool   `json:"noResults"`
	Items     []Item `json:"items"`
	// Matches counts every visible record; Items stops at the cap.
	Matches int `json:"matches"`
}

// View is the outcome of one synchronization.
type View struct {
	Results   ResultList `json:"results"`
	Plotted   int        `json:"plotted"`
	Total     int        `json:"total"`
	TotalText string     `json:"totalText"`
}

// Synchronizer pushes visible sets into a renderer. It holds no state that
// depends on previous calls, so repeated syncs of the same input produce
// the same view and the same geometry.
type Synchronizer struct {
	renderer mapview.Renderer
	total    int
	maxItems int
	lang     language.Tag
	policy   *bluemonday.Policy
}

// New binds a synchronizer to a renderer and the size of the loaded set.
func New(r mapview.Renderer, total int, opts Options) *Synchronizer {
	if opts.MaxItems <= 0 {
		opts.MaxItems = DefaultMaxItems
	}
	if opts.Language == language.Und {
		opts.Language = language.English
	}
	return &Synchronizer{
		renderer: r,
		total:    total,
		maxItems: opts.MaxItems,
		lang:     opts.Language,
		policy:   bluemonday.StrictPolicy(),
	}
}

// Sync replaces the renderer geometry with the plottable part of visible
// and rebuilds the list. The counter always reports the whole loaded set.
func (s *Synchronizer) Sync(visible []labs.Record, state filter.State) (View, error) {
	fc := labs.Collection(visible)
	if err := s.renderer.SetData(fc); err != nil {
		return View{}, err
	}

	return View{
		Results:   s.results(visible, state),
		Plotted:   len(fc.Features),
		Total:     s.total,
		TotalText: message.NewPrinter(s.lang).Sprintf("%d", s.total),
	}, nil
}

func (s *Synchronizer) results(visible []labs.Record, state filter.State) ResultList {
	if strings.TrimSpace(state.Query) == "" {
		return ResultList{Items: []Item{}}
	}
	if len(visible) == 0 {
		return ResultList{Visible: true, NoResults: true, Items: []Item{}}
	}

	n := min(len(visible), s.maxItems)
	items := make([]Item, 0, n)
	for _, rec := range visible[:n] {
		items = append(items, s.item(rec))
	}
	return ResultList{Visible: true, Items: items, Matches: len(visible)}
}

func (s *Synchronizer) item(rec labs.Record) Item {
	name := rec.Name
	if name == "" {
		name = NoName
	}
	loc := rec.Suburb
	if loc == "" {
		loc = NoLocation
	}
	return Item{
		ID:       rec.ID,
		Name:     s.policy.Sanitize(name),
		Location: s.policy.Sanitize(loc),
	}
}

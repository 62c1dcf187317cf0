// Package dashboard is the application state object. Dashboard owns what
// is fixed for the process (dataset, facet options, layout); Session is
// the working copy for one browser event, restored from and saved back to
// the session's working state.
package dashboard

import (
	"errors"
	"strconv"

	"golang.org/x/text/language"

	"labmap/pkg/facets"
	"labmap/pkg/filter"
	"labmap/pkg/labs"
	"labmap/pkg/mapview"
	"labmap/pkg/navigation"
	"labmap/pkg/view"
)

// Config is the layout of one deployment.
type Config struct {
	Strategy facets.Strategy
	Rules    filter.Rules
	// FacetNoun labels the filter button; "Network" when empty.
	FacetNoun string
	MaxItems  int
	Language  language.Tag
	Map       mapview.Options
}

// Dashboard is read-only after Bootstrap and safe for concurrent use.
type Dashboard struct {
	data   *labs.Dataset
	cfg    Config
	facets []string
}

// Bootstrap builds the facet index once the dataset is loaded.
func Bootstrap(ds *labs.Dataset, cfg Config) *Dashboard {
	if cfg.Strategy == nil {
		cfg.Strategy = facets.Network()
	}
	if cfg.FacetNoun == "" {
		cfg.FacetNoun = "Network"
	}
	return &Dashboard{
		data:   ds,
		cfg:    cfg,
		facets: facets.Build(ds.Records, cfg.Strategy),
	}
}

// Dataset is the loaded record set.
func (d *Dashboard) Dataset() *labs.Dataset { return d.data }

// Facets are the selectable values without the synthetic "all".
func (d *Dashboard) Facets() []string { return d.facets }

// Open starts an event on a stored state. A nil state means a fresh
// session at map-ready time.
func (d *Dashboard) Open(state *filter.State, card navigation.Card) *Session {
	st := filter.New()
	if state != nil {
		st = state.Normalize(d.cfg.Rules)
	}
	canvas := mapview.NewCanvas(d.cfg.Map)
	return &Session{
		d:      d,
		State:  st,
		Card:   card,
		canvas: canvas,
		sync: view.New(canvas, d.data.Total(), view.Options{
			MaxItems: d.cfg.MaxItems,
			Language: d.cfg.Language,
		}),
		nav: navigation.New(d.data, canvas),
	}
}

// Session applies one event and reports the synchronized result.
type Session struct {
	d      *Dashboard
	State  filter.State
	Card   navigation.Card
	canvas *mapview.Canvas
	sync   *view.Synchronizer
	nav    *navigation.Controller

	view   view.View
	synced bool
}

// Search sets the text query.
func (s *Session) Search(q string) (Snapshot, error) {
	s.State = s.State.WithQuery(q)
	return s.Snapshot()
}

// ToggleFacet checks or unchecks one facet value (facets.All included).
func (s *Session) ToggleFacet(value string, on bool) (Snapshot, error) {
	s.State = s.State.Toggle(value, on, s.d.cfg.Rules)
	return s.Snapshot()
}

// SelectAll checks "all".
func (s *Session) SelectAll() (Snapshot, error) {
	s.State = s.State.SelectAll()
	return s.Snapshot()
}

// Navigate handles a result list click. A miss leaves everything as it
// was and is reported through Snapshot.Miss, not as an error.
func (s *Session) Navigate(id string) (Snapshot, error) {
	st, card, err := s.nav.NavigateTo(id, s.State, s.Card)
	if err != nil && !errors.Is(err, navigation.ErrNotFound) {
		return Snapshot{}, err
	}
	s.State, s.Card = st, card
	snap, serr := s.Snapshot()
	snap.Miss = err != nil
	return snap, serr
}

// ClickPoint handles a click on a plotted point.
func (s *Session) ClickPoint(id string, at *labs.Location) (Snapshot, error) {
	card, err := s.nav.ClickPoint(id, at, s.Card)
	if err != nil && !errors.Is(err, navigation.ErrNotFound) {
		return Snapshot{}, err
	}
	s.Card = card
	snap, serr := s.Snapshot()
	snap.Miss = err != nil
	return snap, serr
}

// ClickCluster zooms into a cluster of the current geometry.
func (s *Session) ClickCluster(id string, at labs.Location) (Snapshot, error) {
	if err := s.ensureSynced(); err != nil {
		return Snapshot{}, err
	}
	_, err := s.nav.ClickCluster(id, at)
	if err != nil && !errors.Is(err, mapview.ErrUnknownCluster) {
		return Snapshot{}, err
	}
	snap, serr := s.Snapshot()
	snap.Miss = err != nil
	return snap, serr
}

// CloseCard hides the detail card.
func (s *Session) CloseCard() (Snapshot, error) {
	s.Card = s.Card.Close()
	return s.Snapshot()
}

// Clusters returns the glyphs of the current visible set at zoom.
func (s *Session) Clusters(zoom int, bbox *mapview.BBox) ([]mapview.Glyph, error) {
	if err := s.ensureSynced(); err != nil {
		return nil, err
	}
	return s.canvas.Clusters(zoom, bbox), nil
}

// Snapshot recomputes the visible set from the current state and
// returns everything the page shows.
func (s *Session) Snapshot() (Snapshot, error) {
	s.synced = false
	if err := s.ensureSynced(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Filter: s.filterView(),
		View:   s.view,
		Geometry: Geometry{
			Fingerprint: strconv.FormatUint(s.canvas.Fingerprint(), 16),
			Plotted:     s.view.Plotted,
			MaxZoom:     s.canvas.MaxZoom(),
		},
	}
	if f, ok := s.nav.Detail(s.Card); ok {
		snap.Card = &f
	} else {
		// A stored card may name a record this dataset lacks.
		s.Card = s.Card.Close()
	}
	if cam, ok := s.canvas.Camera(); ok {
		snap.Camera = &cam
	}
	return snap, nil
}

func (s *Session) ensureSynced() error {
	if s.synced {
		return nil
	}
	visible := filter.Visible(s.d.data.Records, s.State, s.d.cfg.Strategy)
	v, err := s.sync.Sync(visible, s.State)
	if err != nil {
		return err
	}
	s.view, s.synced = v, true
	return nil
}

func (s *Session) filterView() FilterView {
	enabled := s.d.cfg.Strategy.Name() != facets.None().Name()
	fv := FilterView{
		Enabled:     enabled,
		Strategy:    s.d.cfg.Strategy.Name(),
		Cardinality: s.d.cfg.Rules.Cardinality.String(),
		Query:       s.State.Query,
		Label:       s.State.Label(s.d.cfg.FacetNoun),
		Options:     []FacetOption{},
	}
	if !enabled {
		return fv
	}
	fv.Options = make([]FacetOption, 0, len(s.d.facets)+1)
	fv.Options = append(fv.Options, FacetOption{Value: facets.All, Label: "Watch all labs", Checked: s.State.All})
	for _, v := range s.d.facets {
		fv.Options = append(fv.Options, FacetOption{Value: v, Label: v, Checked: s.State.IsSelected(v)})
	}
	return fv
}

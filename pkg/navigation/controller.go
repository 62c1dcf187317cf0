// Package navigation moves the camera to a laboratory and fills the
// detail card.
package navigation

import (
	"errors"
	"fmt"

	"labmap/pkg/filter"
	"labmap/pkg/labs"
	"labmap/pkg/mapview"
)

// Camera targets. List navigation lands closer than a click on the map.
const (
	ListZoom     = 14
	ListDuration = 2000 // ms
	PointZoom    = 12
)

// ErrNotFound covers unknown ids and records without geometry. Callers
// treat it as a no-op.
var ErrNotFound = errors.New("laboratory not found")

// Controller resolves ids against the loaded dataset and drives the
// renderer's camera.
type Controller struct {
	data     *labs.Dataset
	renderer mapview.Renderer
}

// New returns a controller over ds.
func New(ds *labs.Dataset, r mapview.Renderer) *Controller {
	return &Controller{data: ds, renderer: r}
}

// NavigateTo handles a click in the result list. On success the camera
// flies to the record, the card shows it, and the query is cleared so
// the list closes. On ErrNotFound the inputs come back unchanged.
func (c *Controller) NavigateTo(id string, state filter.State, card Card) (filter.State, Card, error) {
	rec, _, ok := c.data.Lookup(id)
	if !ok || !rec.HasGeometry() {
		return state, card, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	c.renderer.FlyTo(mapview.Camera{
		Lon:      rec.Location.Lon,
		Lat:      rec.Location.Lat,
		Zoom:     ListZoom,
		Duration: ListDuration,
	})
	return state.WithQuery(""), card.Show(rec.ID), nil
}

// ClickPoint handles a click on a plotted point. The camera goes to the
// clicked coordinates when the map reported them, else to the record.
// The query is left alone.
func (c *Controller) ClickPoint(id string, at *labs.Location, card Card) (Card, error) {
	rec, _, ok := c.data.Lookup(id)
	if !ok || !rec.HasGeometry() {
		return card, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	target := *rec.Location
	if at != nil {
		target = *at
	}
	c.renderer.FlyTo(mapview.Camera{Lon: target.Lon, Lat: target.Lat, Zoom: PointZoom})
	return card.Show(rec.ID), nil
}

// ClickCluster zooms into a cluster glyph far enough for it to split.
func (c *Controller) ClickCluster(clusterID string, at labs.Location) (int, error) {
	zoom, err := c.renderer.ClusterExpansionZoom(clusterID)
	if err != nil {
		return 0, err
	}
	c.renderer.EaseTo(mapview.Camera{Lon: at.Lon, Lat: at.Lat, Zoom: float64(zoom)})
	return zoom, nil
}

// Detail renders the card's fields, or false while the card is hidden or
// its record has gone.
func (c *Controller) Detail(card Card) (Fields, bool) {
	if !card.Shown() {
		return Fields{}, false
	}
	rec, raw, ok := c.data.Lookup(card.RecordID)
	if !ok {
		return Fields{}, false
	}
	return fieldsFor(rec, raw), true
}

package dashboard

import (
	"labmap/pkg/mapview"
	"labmap/pkg/navigation"
	"labmap/pkg/view"
)

// Snapshot is the JSON body of every dashboard response.
type Snapshot struct {
	Filter   FilterView         `json:"filter"`
	View     view.View          `json:"view"`
	Geometry Geometry           `json:"geometry"`
	Card     *navigation.Fields `json:"card"`
	Camera   *mapview.Camera    `json:"camera,omitempty"`
	// Miss is set when a navigation or cluster click resolved to nothing.
	// Nothing else changed in that case.
	Miss bool `json:"miss,omitempty"`
}

// Geometry tells the browser whether its cluster glyphs are stale.
type Geometry struct {
	Fingerprint string `json:"fingerprint"`
	Plotted     int    `json:"plotted"`
	MaxZoom     int    `json:"maxZoom"`
}

// FilterView drives the search box and the facet dropdown.
type FilterView struct {
	Enabled     bool          `json:"enabled"`
	Strategy    string        `json:"strategy"`
	Cardinality string        `json:"cardinality"`
	Query       string        `json:"query"`
	Label       string        `json:"label"`
	Options     []FacetOption `json:"options"`
}

// FacetOption is one checkbox; the first one is always "all".
type FacetOption struct {
	Value   string `json:"value"`
	Label   string `json:"label"`
	Checked bool   `json:"checked"`
}

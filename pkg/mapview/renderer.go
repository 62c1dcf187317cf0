// Package mapview is the map rendering collaborator seen from the server.
//
// The browser draws tiles and animates the camera. Everything it needs to
// decide (which points are on the map, how they cluster at a zoom, where a
// cluster click should zoom to, where the camera goes next) is computed
// here and shipped with each view.
package mapview

import (
	"errors"

	"labmap/pkg/labs"
)

// ErrUnknownCluster is returned for cluster ids that do not exist in the
// current geometry, usually because the data changed after the click.
var ErrUnknownCluster = errors.New("unknown cluster")

// Move is the kind of camera transition the browser should animate.
type Move string

const (
	MoveFly  Move = "fly"
	MoveEase Move = "ease"
)

// Camera is one requested transition. A zero Duration means the map's
// default animation.
type Camera struct {
	Move     Move    `json:"move"`
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Zoom     float64 `json:"zoom"`
	Duration int     `json:"durationMs,omitempty"`
}

// Renderer is what the synchronizer and the navigation controller drive.
type Renderer interface {
	// SetData replaces the displayed geometry wholesale.
	SetData(fc labs.FeatureCollection) error
	FlyTo(c Camera)
	EaseTo(c Camera)
	// ClusterExpansionZoom answers the zoom at which a cluster falls apart.
	ClusterExpansionZoom(clusterID string) (int, error)
}

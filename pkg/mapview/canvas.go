package mapview

import (
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"labmap/pkg/labs"
)

// Options configures a Canvas. Zero values fall back to the defaults.
type Options struct {
	MaxZoom int
	Radius  float64
	Cache   *ClusterCache
}

// BBox is a lon/lat window. West > East means it crosses the antimeridian.
type BBox struct {
	West, South, East, North float64
}

// Contains reports whether the point lies in the box, edges included.
func (b BBox) Contains(lon, lat float64) bool {
	if lat < b.South || lat > b.North {
		return false
	}
	if b.West <= b.East {
		return lon >= b.West && lon <= b.East
	}
	return lon >= b.West || lon <= b.East
}

// Glyph is one thing to draw: a cluster bubble or a single point.
type Glyph struct {
	ID      string `json:"id"`
	Cluster bool   `json:"cluster"`
	Count   int    `json:"count"`
	// Label is the abbreviated count for clusters.
	Label      string           `json:"label,omitempty"`
	Lon        float64          `json:"lon"`
	Lat        float64          `json:"lat"`
	Properties *labs.Properties `json:"properties,omitempty"`
}

// Canvas is the server side Renderer. It lives for one event: the
// synchronizer sets data, the controller queues camera moves, and the
// HTTP layer ships both to the browser.
type Canvas struct {
	maxZoom int
	cell    float64
	cache   *ClusterCache

	data        labs.FeatureCollection
	fingerprint uint64
	camera      *Camera
}

// NewCanvas returns an empty canvas.
func NewCanvas(opts Options) *Canvas {
	if opts.MaxZoom <= 0 {
		opts.MaxZoom = DefaultMaxZoom
	}
	if opts.Radius <= 0 {
		opts.Radius = DefaultRadius
	}
	return &Canvas{
		maxZoom:     opts.MaxZoom,
		cell:        opts.Radius,
		cache:       opts.Cache,
		data:        labs.FeatureCollection{Type: "FeatureCollection", Features: []labs.Feature{}},
		fingerprint: fingerprint(nil),
	}
}

// MaxZoom is the last zoom at which points still cluster.
func (c *Canvas) MaxZoom() int { return c.maxZoom }

// SetData replaces the geometry. Nothing from the previous collection
// survives.
func (c *Canvas) SetData(fc labs.FeatureCollection) error {
	if fc.Type == "" {
		fc.Type = "FeatureCollection"
	}
	if fc.Type != "FeatureCollection" {
		return fmt.Errorf("mapview: unexpected geojson type %q", fc.Type)
	}
	if fc.Features == nil {
		fc.Features = []labs.Feature{}
	}
	c.data = fc
	c.fingerprint = fingerprint(fc.Features)
	return nil
}

// Data is the geometry last set.
func (c *Canvas) Data() labs.FeatureCollection { return c.data }

// Fingerprint identifies the current geometry; equal collections share it.
func (c *Canvas) Fingerprint() uint64 { return c.fingerprint }

// FlyTo queues a long animated transition.
func (c *Canvas) FlyTo(cam Camera) {
	cam.Move = MoveFly
	c.camera = &cam
}

// EaseTo queues a short transition.
func (c *Canvas) EaseTo(cam Camera) {
	cam.Move = MoveEase
	c.camera = &cam
}

// Camera returns the last queued move, if any. Only the last one matters:
// the browser would cut an earlier animation short anyway.
func (c *Canvas) Camera() (Camera, bool) {
	if c.camera == nil {
		return Camera{}, false
	}
	return *c.camera, true
}

// Clusters returns what to draw at zoom inside bbox. Above MaxZoom every
// point is drawn on its own. A nil bbox means the whole world.
func (c *Canvas) Clusters(zoom int, bbox *BBox) []Glyph {
	if zoom < 0 {
		zoom = 0
	}
	feats := c.data.Features
	out := make([]Glyph, 0)

	if zoom > c.maxZoom {
		for i := range feats {
			if g := pointGlyph(&feats[i]); bbox == nil || bbox.Contains(g.Lon, g.Lat) {
				out = append(out, g)
			}
		}
		return out
	}

	idx := c.cache.index(c.fingerprint, feats, zoom, c.cell)
	for _, k := range idx.order {
		b := idx.cells[k]
		var g Glyph
		if len(b.members) == 1 {
			g = pointGlyph(&feats[b.members[0]])
		} else {
			n := len(b.members)
			g = Glyph{
				ID:      clusterID(zoom, k),
				Cluster: true,
				Count:   n,
				Label:   Abbreviate(n),
				Lon:     b.sumLon / float64(n),
				Lat:     b.sumLat / float64(n),
			}
		}
		if bbox == nil || bbox.Contains(g.Lon, g.Lat) {
			out = append(out, g)
		}
	}
	return out
}

// ClusterExpansionZoom is the smallest zoom at which the cluster's
// members stop sharing one cell. Members at identical coordinates never
// split; for them the answer is MaxZoom+1, where clustering is off.
func (c *Canvas) ClusterExpansionZoom(id string) (int, error) {
	zoom, key, err := parseClusterID(id)
	if err != nil {
		return 0, err
	}
	if zoom < 0 || zoom > c.maxZoom {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCluster, id)
	}
	feats := c.data.Features
	idx := c.cache.index(c.fingerprint, feats, zoom, c.cell)
	b, ok := idx.cells[key]
	if !ok || len(b.members) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCluster, id)
	}

	for z := zoom + 1; z <= c.maxZoom; z++ {
		first := true
		var seen cellKey
		for _, m := range b.members {
			coords := feats[m].Geometry.Coordinates
			cx, cy := cellOf(coords[0], coords[1], z, c.cell)
			k := cellKey{cx, cy}
			if first {
				seen, first = k, false
				continue
			}
			if k != seen {
				return z, nil
			}
		}
	}
	return c.maxZoom + 1, nil
}

func pointGlyph(f *labs.Feature) Glyph {
	props := f.Properties
	return Glyph{
		ID:         props.ID,
		Count:      1,
		Lon:        f.Geometry.Coordinates[0],
		Lat:        f.Geometry.Coordinates[1],
		Properties: &props,
	}
}

func fingerprint(features []labs.Feature) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, f := range features {
		_, _ = h.WriteString(f.Properties.ID)
		_, _ = h.Write([]byte{0})
		for _, v := range f.Geometry.Coordinates {
			bits := math.Float64bits(v)
			for i := range buf {
				buf[i] = byte(bits >> (8 * i))
			}
			_, _ = h.Write(buf[:])
		}
	}
	return h.Sum64()
}

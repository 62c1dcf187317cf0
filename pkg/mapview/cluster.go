package mapview

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"labmap/pkg/labs"
)

// Clustering defaults of the lab map source layer.
const (
	DefaultMaxZoom = 14
	DefaultRadius  = 50.0
	defaultEntries = 256
)

type cellKey struct{ x, y int }

// bucket is one occupied grid cell. members index into the feature slice.
type bucket struct {
	key     cellKey
	members []int
	sumLon  float64
	sumLat  float64
}

// zoomIndex groups the features of one geometry at one zoom.
type zoomIndex struct {
	zoom  int
	cells map[cellKey]*bucket
	// order lists cells by their first member so output follows the data.
	order []cellKey
}

// buildIndex is a single pass over the features: each point lands in the
// grid cell under it and the cell keeps a running centroid.
func buildIndex(features []labs.Feature, zoom int, cell float64) *zoomIndex {
	idx := &zoomIndex{zoom: zoom, cells: make(map[cellKey]*bucket)}
	for i, f := range features {
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		cx, cy := cellOf(lon, lat, zoom, cell)
		k := cellKey{cx, cy}
		b := idx.cells[k]
		if b == nil {
			b = &bucket{key: k}
			idx.cells[k] = b
			idx.order = append(idx.order, k)
		}
		b.members = append(b.members, i)
		b.sumLon += lon
		b.sumLat += lat
	}
	return idx
}

func clusterID(zoom int, k cellKey) string {
	return fmt.Sprintf("%d:%d:%d", zoom, k.x, k.y)
}

func parseClusterID(id string) (int, cellKey, error) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return 0, cellKey{}, fmt.Errorf("%w: %q", ErrUnknownCluster, id)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, cellKey{}, fmt.Errorf("%w: %q", ErrUnknownCluster, id)
		}
		nums[i] = n
	}
	return nums[0], cellKey{nums[1], nums[2]}, nil
}

// Abbreviate renders a point count the way cluster glyphs show it:
// 950, 1.2k, 12k.
func Abbreviate(n int) string {
	switch {
	case n >= 10000:
		return strconv.Itoa(int(math.Round(float64(n)/1000))) + "k"
	case n >= 1000:
		v := math.Round(float64(n)/100) / 10
		return strconv.FormatFloat(v, 'f', -1, 64) + "k"
	default:
		return strconv.Itoa(n)
	}
}

// ClusterCache shares cluster indexes between requests. Keys combine the
// geometry fingerprint and the zoom, so two sessions looking at the same
// filtered set reuse one index. It is safe for concurrent use.
type ClusterCache struct {
	entries *lru.Cache[string, *zoomIndex]
	// OnBuild, when set, is told how long each missing index took.
	OnBuild func(zoom int, elapsed time.Duration)
}

// NewClusterCache keeps at most size indexes; size <= 0 picks a default.
func NewClusterCache(size int) (*ClusterCache, error) {
	if size <= 0 {
		size = defaultEntries
	}
	c, err := lru.New[string, *zoomIndex](size)
	if err != nil {
		return nil, err
	}
	return &ClusterCache{entries: c}, nil
}

// Len is the number of cached indexes.
func (c *ClusterCache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *ClusterCache) index(fp uint64, features []labs.Feature, zoom int, cell float64) *zoomIndex {
	if c == nil {
		return buildIndex(features, zoom, cell)
	}
	key := strconv.FormatUint(fp, 16) + "/" + strconv.Itoa(zoom)
	if idx, ok := c.entries.Get(key); ok {
		return idx
	}
	start := time.Now()
	idx := buildIndex(features, zoom, cell)
	if c.OnBuild != nil {
		c.OnBuild(zoom, time.Since(start))
	}
	c.entries.Add(key, idx)
	return idx
}

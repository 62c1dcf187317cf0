package mapview

import "math"

const (
	earthRadius = 6378137.0
	originShift = math.Pi * earthRadius
	tileSize    = 256.0
	// Web Mercator is undefined at the poles; tiles stop here.
	maxLatitude = 85.05112878
)

// lonLatToPixel projects decimal degrees onto the global pixel plane of
// the given zoom (256 px tiles).
func lonLatToPixel(lon, lat float64, zoom int) (px, py float64) {
	lat = math.Max(-maxLatitude, math.Min(maxLatitude, lat))

	x := lon * originShift / 180.0
	y := math.Log(math.Tan((90.0+lat)*math.Pi/360.0)) / (math.Pi / 180.0)
	y = y * originShift / 180.0

	scale := math.Exp2(float64(zoom))
	px = (x + originShift) / (2 * originShift) * tileSize * scale
	py = (originShift - y) / (2 * originShift) * tileSize * scale
	return px, py
}

// cellOf returns the grid cell of a point for the given cell size.
func cellOf(lon, lat float64, zoom int, cell float64) (cx, cy int) {
	px, py := lonLatToPixel(lon, lat, zoom)
	return int(math.Floor(px / cell)), int(math.Floor(py / cell))
}

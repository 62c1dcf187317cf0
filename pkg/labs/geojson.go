package labs

import "strconv"

// FeatureCollection is the GeoJSON document handed to the map.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is one plotted laboratory.
type Feature struct {
	Type       string     `json:"type"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

// Geometry is always a Point; coordinates are [lon, lat] at full precision.
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// Properties is the property bag shown on hover and in the detail card.
// Latitude and Longitude are display strings with six decimals.
type Properties struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	APA        string `json:"apa"`
	LabNetwork string `json:"labNetwork"`
	Address    string `json:"address"`
	Suburb     string `json:"suburb"`
	Latitude   string `json:"latitude"`
	Longitude  string `json:"longitude"`
}

// FormatDegrees renders a coordinate for display.
func FormatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// FeatureFor projects a record onto a point feature. The second result is
// false for records without geometry.
func FeatureFor(rec Record) (Feature, bool) {
	if rec.Location == nil {
		return Feature{}, false
	}
	loc := *rec.Location
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: [2]float64{loc.Lon, loc.Lat},
		},
		Properties: Properties{
			ID:         rec.ID,
			Name:       rec.Name,
			APA:        rec.APA,
			LabNetwork: rec.Network,
			Address:    rec.Address,
			Suburb:     rec.Suburb,
			Latitude:   FormatDegrees(loc.Lat),
			Longitude:  FormatDegrees(loc.Lon),
		},
	}, true
}

// Collection builds the point collection for records, skipping the ones
// that cannot be plotted. Order follows the input.
func Collection(records []Record) FeatureCollection {
	features := make([]Feature, 0, len(records))
	for _, rec := range records {
		if f, ok := FeatureFor(rec); ok {
			features = append(features, f)
		}
	}
	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

// Package labs turns the raw laboratory list into canonical records and
// map-ready point features.
//
// The source list is hand maintained, so keys arrive with inconsistent
// casing and values flip between strings and numbers. Everything that
// leaves this package is null-safe: empty strings instead of missing
// values, and a Location pointer only when both coordinates parsed.
package labs

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Source keys as they appear in the published lab list.
const (
	KeyLaboratory = "laboratory"
	KeyName       = "ACC Name"
	KeyAPA        = "APA Number"
	KeyNetwork    = "Lab Network"
	KeyAddress    = "Address"
	KeySuburb     = "Suburb / Town"
	KeyACC        = "ACC"
	KeyFromDate   = "From Date"
	KeyToDate     = "To Date"
	KeyLongitude  = "longitude"
	KeyLatitude   = "latitude"
)

// DefaultNotAvailable is the address placeholder used when a deployment
// does not configure its own wording.
const DefaultNotAvailable = "Not available"

// RawRecord is one object of the source JSON array. It is never mutated.
type RawRecord map[string]any

// Location holds decimal degrees at full precision.
type Location struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Validity is the accreditation period exactly as published.
type Validity struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// IsZero reports whether neither bound was published.
func (v Validity) IsZero() bool { return v.From == "" && v.To == "" }

// Record is the canonical, immutable view of one laboratory.
type Record struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Suburb   string    `json:"suburb"`
	Network  string    `json:"network"`
	ACC      string    `json:"acc"`
	APA      string    `json:"apa"`
	Validity Validity  `json:"validity"`
	Location *Location `json:"location,omitempty"`
	// Row is the zero-based position in the source list. Result lists
	// keep this order instead of ranking by relevance.
	Row int `json:"row"`
}

// HasGeometry reports whether the record can be plotted or flown to.
func (r Record) HasGeometry() bool { return r.Location != nil }

// field returns the value stored under key. Exact matches win; otherwise
// keys are compared after lowercasing and dropping everything that is not
// a letter or digit, so "suburb/town" and "Suburb / Town" meet.
func (raw RawRecord) field(key string) (any, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	want := foldKey(key)
	for k, v := range raw {
		if foldKey(k) == want {
			return v, true
		}
	}
	return nil, false
}

// String returns the value under key rendered as text and trimmed.
func (raw RawRecord) String(key string) string {
	v, ok := raw.field(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringify(v))
}

func foldKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	case []byte:
		return string(t)
	default:
		return ""
	}
}

// parseCoordinate accepts numbers or numeric strings and rejects NaN and
// infinities. Comma decimals ("151,2") are tolerated because a few rows
// were exported from a spreadsheet with a European locale.
func parseCoordinate(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string, []byte:
		s := strings.TrimSpace(stringify(t))
		if s == "" {
			return 0, false
		}
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

package labs

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNoGeometry marks a record whose coordinates did not parse. Such a
// record is still searchable; it just never reaches the map.
var ErrNoGeometry = errors.New("coordinates missing or not numeric")

// Options tunes Normalize.
type Options struct {
	// NotAvailable replaces a missing address. Empty means
	// DefaultNotAvailable.
	NotAvailable string
	// OnSkip is told about every record left out of the point collection.
	OnSkip func(row int, id string, err error)
}

// Dataset is the session-wide, read-only result of normalization.
type Dataset struct {
	Records  []Record
	Features []Feature

	raw  []RawRecord
	byID map[string]int
}

// Normalize converts raw rows in one pass. It never fails: per-row
// problems only affect that row's geometry.
func Normalize(raw []RawRecord, opts Options) *Dataset {
	notAvailable := opts.NotAvailable
	if notAvailable == "" {
		notAvailable = DefaultNotAvailable
	}

	ds := &Dataset{
		Records:  make([]Record, 0, len(raw)),
		Features: make([]Feature, 0, len(raw)),
		raw:      raw,
		byID:     make(map[string]int, len(raw)),
	}

	for row, r := range raw {
		rec := canonical(r, row, notAvailable)
		if _, dup := ds.byID[rec.ID]; !dup {
			ds.byID[rec.ID] = row
		}
		ds.Records = append(ds.Records, rec)

		if f, ok := FeatureFor(rec); ok {
			ds.Features = append(ds.Features, f)
		} else if opts.OnSkip != nil {
			opts.OnSkip(row, rec.ID, fmt.Errorf("row %d (%s): %w", row, rec.ID, ErrNoGeometry))
		}
	}
	return ds
}

func canonical(r RawRecord, row int, notAvailable string) Record {
	id := r.String(KeyLaboratory)
	if id == "" {
		id = r.String(KeyAPA)
	}
	if id == "" {
		id = "row-" + strconv.Itoa(row)
	}

	address := r.String(KeyAddress)
	if address == "" {
		address = notAvailable
	}

	rec := Record{
		ID:      id,
		Name:    r.String(KeyName),
		Address: address,
		Suburb:  r.String(KeySuburb),
		Network: r.String(KeyNetwork),
		ACC:     r.String(KeyACC),
		APA:     r.String(KeyAPA),
		Validity: Validity{
			From: r.String(KeyFromDate),
			To:   r.String(KeyToDate),
		},
		Row: row,
	}

	lonRaw, okLon := r.field(KeyLongitude)
	latRaw, okLat := r.field(KeyLatitude)
	if okLon && okLat {
		lon, lonValid := parseCoordinate(lonRaw)
		lat, latValid := parseCoordinate(latRaw)
		if lonValid && latValid {
			rec.Location = &Location{Lon: lon, Lat: lat}
		}
	}
	return rec
}

// Total is the number of loaded records, plotted or not.
func (d *Dataset) Total() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Plotted is the number of records that have geometry.
func (d *Dataset) Plotted() int {
	if d == nil {
		return 0
	}
	return len(d.Features)
}

// Unplotted returns the ids of records without geometry in source order,
// at most limit of them (all when limit <= 0), and how many there are.
func (d *Dataset) Unplotted(limit int) (ids []string, total int) {
	if d == nil {
		return nil, 0
	}
	for _, rec := range d.Records {
		if rec.HasGeometry() {
			continue
		}
		total++
		if limit <= 0 || len(ids) < limit {
			ids = append(ids, rec.ID)
		}
	}
	return ids, total
}

// Lookup resolves an id to its canonical and raw record. Both share the
// same key so a list click can be traced back to its source row.
func (d *Dataset) Lookup(id string) (Record, RawRecord, bool) {
	if d == nil {
		return Record{}, nil, false
	}
	row, ok := d.byID[id]
	if !ok {
		return Record{}, nil, false
	}
	return d.Records[row], d.raw[row], true
}

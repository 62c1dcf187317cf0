package navigation

import (
	"strings"

	"labmap/pkg/labs"
)

// Card placeholders.
const (
	NotAvailable = "N/A"
	NoNetwork    = "-"
)

// Card is the detail card state machine: Hidden, or Shown with one
// record. Showing another record replaces the content in place.
type Card struct {
	RecordID string `json:"id,omitempty"`
}

// Shown reports whether the card is open.
func (c Card) Shown() bool { return c.RecordID != "" }

// Show opens the card on id, replacing whatever it showed.
func (c Card) Show(id string) Card { return Card{RecordID: id} }

// Close hides the card.
func (c Card) Close() Card { return Card{} }

// Fields is what the card prints. Empty values are already replaced by
// placeholders.
type Fields struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ACCName   string `json:"accName"`
	ACC       string `json:"acc"`
	APA       string `json:"apa"`
	Network   string `json:"network"`
	Address   string `json:"address"`
	Suburb    string `json:"suburb"`
	Validity  string `json:"validity"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

// postcodeKeys are looked up on the raw record; the canonical record
// does not carry a postcode.
var postcodeKeys = []string{"Postcode", "Post Code", "postal_code"}

func fieldsFor(rec labs.Record, raw labs.RawRecord) Fields {
	suburb := rec.Suburb
	for _, k := range postcodeKeys {
		if pc := raw.String(k); pc != "" {
			if !strings.Contains(suburb, pc) {
				suburb = strings.TrimSpace(suburb + " " + pc)
			}
			break
		}
	}

	f := Fields{
		ID:       rec.ID,
		Name:     orNA(rec.Name),
		ACCName:  orNA(rec.Name),
		ACC:      orNA(rec.ACC),
		APA:      orNA(rec.APA),
		Network:  rec.Network,
		Address:  orNA(rec.Address),
		Suburb:   orNA(suburb),
		Validity: orNA(validity(rec.Validity)),
	}
	if f.Network == "" {
		f.Network = NoNetwork
	}
	f.Latitude, f.Longitude = NotAvailable, NotAvailable
	if rec.Location != nil {
		f.Latitude = labs.FormatDegrees(rec.Location.Lat)
		f.Longitude = labs.FormatDegrees(rec.Location.Lon)
	}
	return f
}

func validity(v labs.Validity) string {
	switch {
	case v.From != "" && v.To != "":
		return v.From + " to " + v.To
	case v.From != "":
		return "from " + v.From
	case v.To != "":
		return "until " + v.To
	}
	return ""
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}

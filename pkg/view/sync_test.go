package view

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"labmap/pkg/facets"
	"labmap/pkg/filter"
	"labmap/pkg/labs"
	"labmap/pkg/mapview"
)

type fakeRenderer struct {
	sets []labs.FeatureCollection
	err  error
}

func (f *fakeRenderer) SetData(fc labs.FeatureCollection) error {
	if f.err != nil {
		return f.err
	}
	f.sets = append(f.sets, fc)
	return nil
}

func (f *fakeRenderer) FlyTo(mapview.Camera)  {}
func (f *fakeRenderer) EaseTo(mapview.Camera) {}

func (f *fakeRenderer) ClusterExpansionZoom(string) (int, error) { return 0, nil }

func dataset(n int) *labs.Dataset {
	rows := make([]labs.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		row := labs.RawRecord{
			"laboratory":    fmt.Sprintf("L%d", i),
			"ACC Name":      fmt.Sprintf("Lab %d", i),
			"Suburb / Town": "Sydney",
		}
		if i%2 == 0 {
			row["longitude"] = "151.2"
			row["latitude"] = "-33.8"
		}
		rows = append(rows, row)
	}
	return labs.Normalize(rows, labs.Options{})
}

func TestSyncHidesListWithoutQuery(t *testing.T) {
	ds := dataset(4)
	r := &fakeRenderer{}
	s := New(r, ds.Total(), Options{})

	state := filter.New()
	v, err := s.Sync(filter.Visible(ds.Records, state, facets.Network()), state)
	require.NoError(t, err)
	assert.False(t, v.Results.Visible)
	assert.False(t, v.Results.NoResults)
	assert.Empty(t, v.Results.Items)
	assert.Equal(t, 2, v.Plotted)
	require.Len(t, r.sets, 1)
	assert.Len(t, r.sets[0].Features, 2)
}

func TestSyncCapsListAndKeepsTotal(t *testing.T) {
	ds := dataset(1234)
	r := &fakeRenderer{}
	s := New(r, ds.Total(), Options{})

	state := filter.New().WithQuery("lab")
	visible := filter.Visible(ds.Records, state, facets.Network())
	v, err := s.Sync(visible, state)
	require.NoError(t, err)

	assert.True(t, v.Results.Visible)
	assert.Len(t, v.Results.Items, DefaultMaxItems)
	assert.Equal(t, 1234, v.Results.Matches)
	assert.Equal(t, "L0", v.Results.Items[0].ID)
	assert.Equal(t, "L49", v.Results.Items[49].ID)
	assert.Equal(t, 1234, v.Total)
	assert.Equal(t, "1,234", v.TotalText)

	// The counter ignores filters.
	state = state.WithQuery("Lab 7")
	v, err = s.Sync(filter.Visible(ds.Records, state, facets.Network()), state)
	require.NoError(t, err)
	assert.Equal(t, 1234, v.Total)
	assert.Less(t, v.Results.Matches, 1234)
}

func TestSyncNoResults(t *testing.T) {
	ds := dataset(3)
	r := &fakeRenderer{}
	s := New(r, ds.Total(), Options{})

	state := filter.New().WithQuery("zzz")
	v, err := s.Sync(filter.Visible(ds.Records, state, facets.Network()), state)
	require.NoError(t, err)
	assert.True(t, v.Results.Visible)
	assert.True(t, v.Results.NoResults)
	assert.Empty(t, v.Results.Items)
	assert.Empty(t, r.sets[0].Features)
}

func TestSyncIsIdempotent(t *testing.T) {
	ds := dataset(10)
	r := &fakeRenderer{}
	s := New(r, ds.Total(), Options{})

	state := filter.New().WithQuery("1")
	visible := filter.Visible(ds.Records, state, facets.Network())
	first, err := s.Sync(visible, state)
	require.NoError(t, err)
	second, err := s.Sync(visible, state)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, r.sets, 2)
	assert.Equal(t, r.sets[0], r.sets[1])
}

func TestSyncFallbacksAndSanitizing(t *testing.T) {
	r := &fakeRenderer{}
	s := New(r, 2, Options{Language: language.German})
	recs := []labs.Record{
		{ID: "x1"},
		{ID: "x2", Name: `<b onclick="x()">Lab</b> & Co`, Suburb: "<script>alert(1)</script>Perth"},
	}
	v, err := s.Sync(recs, filter.New().WithQuery("x"))
	require.NoError(t, err)
	require.Len(t, v.Results.Items, 2)
	assert.Equal(t, Item{ID: "x1", Name: NoName, Location: NoLocation}, v.Results.Items[0])
	assert.Equal(t, "Lab &amp; Co", v.Results.Items[1].Name)
	assert.NotContains(t, v.Results.Items[1].Location, "<script>")
	assert.Contains(t, v.Results.Items[1].Location, "Perth")
}

func TestSyncPropagatesRendererError(t *testing.T) {
	r := &fakeRenderer{err: errors.New("style not loaded")}
	s := New(r, 0, Options{})
	_, err := s.Sync(nil, filter.New())
	assert.Error(t, err)
}

func TestSyncDrivesCanvas(t *testing.T) {
	ds := dataset(6)
	c := mapview.NewCanvas(mapview.Options{})
	s := New(c, ds.Total(), Options{})

	state := filter.New()
	_, err := s.Sync(filter.Visible(ds.Records, state, facets.Network()), state)
	require.NoError(t, err)
	assert.Len(t, c.Data().Features, 3)
}

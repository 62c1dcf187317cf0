package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labmap/pkg/facets"
	"labmap/pkg/filter"
	"labmap/pkg/labs"
	"labmap/pkg/mapview"
	"labmap/pkg/navigation"
)

func fixture() *labs.Dataset {
	return labs.Normalize([]labs.RawRecord{
		{"laboratory": "A1", "ACC Name": "Lab A", "Lab Network": "Net1", "Suburb / Town": "Sydney NSW", "longitude": "151.2", "latitude": "-33.8"},
		{"laboratory": "A2", "ACC Name": "Lab B", "Lab Network": "Net2", "Suburb / Town": "Hobart TAS", "longitude": "bad", "latitude": "-30"},
		{"laboratory": "A3", "ACC Name": "Lab C", "Lab Network": "Net1", "Suburb / Town": "Perth WA", "longitude": "115.86", "latitude": "-31.95"},
	}, labs.Options{})
}

func networkDashboard() *Dashboard {
	return Bootstrap(fixture(), Config{Rules: filter.Rules{Cardinality: facets.Multi}})
}

func TestBootstrapState(t *testing.T) {
	d := networkDashboard()
	assert.Equal(t, []string{"Net1", "Net2"}, d.Facets())

	snap, err := d.Open(nil, navigation.Card{}).Snapshot()
	require.NoError(t, err)
	assert.True(t, snap.Filter.Enabled)
	assert.Equal(t, "Watch all labs", snap.Filter.Label)
	require.Len(t, snap.Filter.Options, 3)
	assert.Equal(t, FacetOption{Value: facets.All, Label: "Watch all labs", Checked: true}, snap.Filter.Options[0])
	assert.Equal(t, 3, snap.View.Total)
	assert.Equal(t, 2, snap.Geometry.Plotted)
	assert.Equal(t, mapview.DefaultMaxZoom, snap.Geometry.MaxZoom)
	assert.False(t, snap.View.Results.Visible)
	assert.Nil(t, snap.Card)
	assert.Nil(t, snap.Camera)
}

func TestSearchAndFacetScenario(t *testing.T) {
	d := networkDashboard()
	s := d.Open(nil, navigation.Card{})

	snap, err := s.Search("lab")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.View.Results.Matches)
	assert.Equal(t, 2, snap.Geometry.Plotted)
	all := snap.Geometry.Fingerprint

	snap, err = s.ToggleFacet("Net1", true)
	require.NoError(t, err)
	assert.Equal(t, "1 Network selected", snap.Filter.Label)
	assert.Equal(t, 2, snap.View.Results.Matches)
	assert.False(t, snap.Filter.Options[0].Checked)
	assert.True(t, snap.Filter.Options[1].Checked)

	snap, err = s.ToggleFacet("Net1", false)
	require.NoError(t, err)
	assert.True(t, snap.View.Results.NoResults)
	assert.Equal(t, 0, snap.Geometry.Plotted)
	assert.Equal(t, 3, snap.View.Total)

	snap, err = s.SelectAll()
	require.NoError(t, err)
	assert.Equal(t, all, snap.Geometry.Fingerprint)
}

func TestNavigateClearsQuery(t *testing.T) {
	d := networkDashboard()
	s := d.Open(nil, navigation.Card{})
	_, err := s.Search("lab c")
	require.NoError(t, err)

	snap, err := s.Navigate("A3")
	require.NoError(t, err)
	assert.False(t, snap.Miss)
	assert.Equal(t, "", snap.Filter.Query)
	assert.False(t, snap.View.Results.Visible)
	require.NotNil(t, snap.Card)
	assert.Equal(t, "Lab C", snap.Card.Name)
	require.NotNil(t, snap.Camera)
	assert.Equal(t, mapview.MoveFly, snap.Camera.Move)
	assert.Equal(t, float64(navigation.ListZoom), snap.Camera.Zoom)
	assert.Equal(t, "A3", s.Card.RecordID)
}

func TestNavigateMissIsNoop(t *testing.T) {
	d := networkDashboard()
	s := d.Open(nil, navigation.Card{})
	_, err := s.Search("lab b")
	require.NoError(t, err)

	snap, err := s.Navigate("A2")
	require.NoError(t, err)
	assert.True(t, snap.Miss)
	assert.Equal(t, "lab b", snap.Filter.Query)
	assert.True(t, snap.View.Results.Visible)
	assert.Nil(t, snap.Card)
	assert.Nil(t, snap.Camera)
}

func TestClickPointKeepsQuery(t *testing.T) {
	d := networkDashboard()
	s := d.Open(nil, navigation.Card{})
	_, err := s.Search("lab")
	require.NoError(t, err)

	snap, err := s.ClickPoint("A1", &labs.Location{Lon: 151.2, Lat: -33.8})
	require.NoError(t, err)
	assert.Equal(t, "lab", snap.Filter.Query)
	require.NotNil(t, snap.Card)
	assert.Equal(t, "A1", snap.Card.ID)
	assert.Equal(t, float64(navigation.PointZoom), snap.Camera.Zoom)

	snap, err = s.CloseCard()
	require.NoError(t, err)
	assert.Nil(t, snap.Card)
}

func TestClustersAndClusterClick(t *testing.T) {
	ds := labs.Normalize([]labs.RawRecord{
		{"laboratory": "S1", "longitude": "151.20", "latitude": "-33.80"},
		{"laboratory": "S2", "longitude": "151.21", "latitude": "-33.81"},
	}, labs.Options{})
	d := Bootstrap(ds, Config{})
	s := d.Open(nil, navigation.Card{})

	glyphs, err := s.Clusters(4, nil)
	require.NoError(t, err)
	require.Len(t, glyphs, 1)
	require.True(t, glyphs[0].Cluster)

	snap, err := s.ClickCluster(glyphs[0].ID, labs.Location{Lon: glyphs[0].Lon, Lat: glyphs[0].Lat})
	require.NoError(t, err)
	assert.False(t, snap.Miss)
	require.NotNil(t, snap.Camera)
	assert.Equal(t, mapview.MoveEase, snap.Camera.Move)
	assert.Greater(t, snap.Camera.Zoom, 4.0)

	snap, err = s.ClickCluster("3:0:0", labs.Location{})
	require.NoError(t, err)
	assert.True(t, snap.Miss)
}

func TestOpenRepairsStoredState(t *testing.T) {
	d := Bootstrap(fixture(), Config{
		Strategy:  facets.Regions(),
		Rules:     filter.Rules{Cardinality: facets.Single},
		FacetNoun: "State",
	})
	assert.Equal(t, []string{"NSW", "TAS", "WA"}, d.Facets())

	stored := filter.State{Selected: []string{"NSW", "WA"}}
	s := d.Open(&stored, navigation.Card{}.Show("gone"))
	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"WA"}, s.State.Selected)
	assert.Equal(t, "1 State selected", snap.Filter.Label)
	assert.Equal(t, 1, snap.Geometry.Plotted)
	assert.Nil(t, snap.Card)
	assert.False(t, s.Card.Shown())
}

func TestSearchOnlyLayout(t *testing.T) {
	d := Bootstrap(fixture(), Config{Strategy: facets.None()})
	assert.Empty(t, d.Facets())

	snap, err := d.Open(nil, navigation.Card{}).Search("hobart")
	require.NoError(t, err)
	assert.False(t, snap.Filter.Enabled)
	assert.Empty(t, snap.Filter.Options)
	assert.Equal(t, 1, snap.View.Results.Matches)
}

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labmap/pkg/facets"
	"labmap/pkg/labs"
)

func scenario() []labs.Record {
	ds := labs.Normalize([]labs.RawRecord{
		{"laboratory": "A1", "ACC Name": "Lab A", "Lab Network": "Net1", "longitude": "151.2", "latitude": "-33.8"},
		{"laboratory": "A2", "ACC Name": "Lab B", "Lab Network": "Net2", "longitude": "bad", "latitude": "-30"},
	}, labs.Options{})
	return ds.Records
}

func ids(recs []labs.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

var multi = Rules{Cardinality: facets.Multi}

func TestVisibleScenario(t *testing.T) {
	recs := scenario()

	s := New().WithQuery("lab")
	assert.Equal(t, []string{"A1", "A2"}, ids(Visible(recs, s, facets.Network())))

	s = s.Toggle("Net1", true, multi)
	assert.Equal(t, []string{"A1"}, ids(Visible(recs, s, facets.Network())))

	assert.Equal(t, []string{"A1", "A2"}, ids(Visible(recs, New(), facets.Network())))
}

func TestVisibleIsDeterministic(t *testing.T) {
	recs := scenario()
	s := New().WithQuery("  LAB b ")
	first := Visible(recs, s, facets.Network())
	_ = Visible(recs, New().Toggle("Net1", true, multi), facets.Network())
	second := Visible(recs, s, facets.Network())
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"A2"}, ids(first))
}

func TestVisibleEmptySelectionMatchesNothing(t *testing.T) {
	recs := scenario()
	s := New().Toggle("Net1", true, multi).Toggle("Net1", false, multi)
	assert.False(t, s.All)
	assert.Empty(t, s.Selected)
	assert.Empty(t, Visible(recs, s, facets.Network()))
	assert.Empty(t, Visible(recs, s.WithQuery("lab"), facets.Network()))
}

func TestVisibleSearchFieldsAndFolding(t *testing.T) {
	recs := []labs.Record{
		{ID: "1", Name: "Straße Pathology"},
		{ID: "2", ACC: "1234"},
		{ID: "3", APA: "2001"},
		{ID: "4", Address: "12 Main Rd"},
		{ID: "5", Suburb: "Wagga Wagga"},
		{ID: "6", Network: "Douglass Hanly Moir"},
	}
	cases := map[string][]string{
		"STRASSE": {"1"},
		"123":     {"2"},
		"2001":    {"3"},
		"main":    {"4"},
		"WAGGA":   {"5"},
		"hanly":   {"6"},
		"zzz":     {},
	}
	for q, want := range cases {
		got := ids(Visible(recs, New().WithQuery(q), facets.Network()))
		assert.Equal(t, want, got, q)
	}
}

func TestVisibleIgnoresFacetsForSearchOnlyLayout(t *testing.T) {
	recs := scenario()
	s := New().Toggle("Net1", true, multi).Toggle("Net1", false, multi)
	assert.Len(t, Visible(recs, s, facets.None()), 2)
}

func TestToggleTransitions(t *testing.T) {
	s := New()
	require.True(t, s.IsSelected(facets.All))

	s = s.Toggle("Net1", true, multi)
	assert.False(t, s.All)
	assert.Equal(t, []string{"Net1"}, s.Selected)

	s = s.Toggle("Net2", true, multi).Toggle("Net2", true, multi)
	assert.Equal(t, []string{"Net1", "Net2"}, s.Selected)
	assert.Equal(t, "2 Networks selected", s.Label(""))

	all := s.Toggle(facets.All, true, multi)
	assert.True(t, all.All)
	assert.Empty(t, all.Selected)
	assert.Equal(t, "Watch all labs", all.Label(""))

	// The receiver is a value and keeps its own selection.
	assert.Equal(t, []string{"Net1", "Net2"}, s.Selected)

	s = s.Toggle("Net1", false, multi)
	assert.Equal(t, "1 Network selected", s.Label(""))
	assert.False(t, s.IsSelected("Net1"))
	assert.True(t, s.IsSelected("Net2"))
}

func TestToggleSingleCardinalityReplaces(t *testing.T) {
	r := Rules{Cardinality: facets.Single}
	s := New().Toggle("NSW", true, r).Toggle("VIC", true, r)
	assert.Equal(t, []string{"VIC"}, s.Selected)
	assert.Equal(t, "1 State selected", s.Label("State"))
}

func TestRevertToAllPolicy(t *testing.T) {
	r := Rules{Cardinality: facets.Multi, Empty: RevertToAll}
	s := New().Toggle("Net1", true, r).Toggle("Net1", false, r)
	assert.True(t, s.All)
	assert.Len(t, Visible(scenario(), s, facets.Network()), 2)

	s = New().Toggle(facets.All, false, r)
	assert.True(t, s.All)

	s = New().Toggle(facets.All, false, multi)
	assert.False(t, s.All)
}

func TestQuerySurvivesFacetChanges(t *testing.T) {
	s := New().WithQuery("lab").Toggle("Net1", true, multi).SelectAll()
	assert.Equal(t, "lab", s.Query)
}

func TestNormalizeRepairsDecodedState(t *testing.T) {
	s := State{All: true, Selected: []string{"Net1"}}.Normalize(multi)
	assert.True(t, s.All)
	assert.Empty(t, s.Selected)

	s = State{Selected: []string{" Net1 ", "all", "Net1", "", "Net2"}}.Normalize(multi)
	assert.Equal(t, []string{"Net1", "Net2"}, s.Selected)

	s = State{Selected: []string{"NSW", "VIC"}}.Normalize(Rules{Cardinality: facets.Single})
	assert.Equal(t, []string{"VIC"}, s.Selected)

	s = State{}.Normalize(Rules{Empty: RevertToAll})
	assert.True(t, s.All)
}

func TestParseEmptyPolicy(t *testing.T) {
	p, err := ParseEmptyPolicy("revert")
	require.NoError(t, err)
	assert.Equal(t, RevertToAll, p)

	p, err = ParseEmptyPolicy("")
	require.NoError(t, err)
	assert.Equal(t, KeepEmpty, p)

	_, err = ParseEmptyPolicy("sometimes")
	assert.Error(t, err)
}

package facets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labmap/pkg/labs"
)

func records() []labs.Record {
	return []labs.Record{
		{ID: "1", Network: " Net2 ", Suburb: "Parramatta NSW"},
		{ID: "2", Network: "Net1", Suburb: "Hobart tas 7000"},
		{ID: "3", Network: "", Suburb: "Darwin", Address: "1 Smith St, Darwin NT 0800"},
		{ID: "4", Network: "Net1", Suburb: "Albury NSW / Wodonga VIC"},
		{ID: "5", Network: "net1", Suburb: "SAVANNAH way"},
	}
}

func TestBuildNetworkFacets(t *testing.T) {
	got := Build(records(), Network())
	// Case is preserved, so "net1" and "Net1" are distinct options.
	assert.Equal(t, []string{"Net1", "Net2", "net1"}, got)
}

func TestBuildRegionFacets(t *testing.T) {
	got := Build(records(), Regions())
	assert.Equal(t, []string{"NSW", "NT", "TAS", "VIC"}, got)
}

func TestRegionValuesUseWordBoundaries(t *testing.T) {
	s := Regions()
	assert.Empty(t, s.Values(labs.Record{Suburb: "SAVANNAH way"}))
	assert.Equal(t, []string{"NSW", "VIC"}, s.Values(labs.Record{Suburb: "Albury nsw / Wodonga VIC nsw"}))
	// Address is only consulted when the suburb carries no code.
	assert.Equal(t, []string{"NT"}, s.Values(labs.Record{Suburb: "Darwin", Address: "Darwin NT"}))
}

func TestBuildNoneStrategyIsEmpty(t *testing.T) {
	assert.Empty(t, Build(records(), None()))
	assert.NotContains(t, Build(records(), Network()), All)
}

func TestParse(t *testing.T) {
	for name, want := range map[string]string{
		"":        "network",
		"Network": "network",
		"state":   "region",
		"region":  "region",
		"none":    "none",
	} {
		s, err := Parse(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, s.Name(), name)
	}
	_, err := Parse("postcode")
	assert.Error(t, err)

	c, err := ParseCardinality("single")
	require.NoError(t, err)
	assert.Equal(t, Single, c)
	c, err = ParseCardinality("")
	require.NoError(t, err)
	assert.Equal(t, Multi, c)
	_, err = ParseCardinality("three")
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	sel := map[string]struct{}{"Net2": {}}
	assert.True(t, Matches(labs.Record{Network: "Net2 "}, Network(), sel))
	assert.False(t, Matches(labs.Record{Network: "Net1"}, Network(), sel))
	assert.False(t, Matches(labs.Record{Network: "Net2"}, Network(), nil))
}

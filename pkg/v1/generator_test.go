package easyogr

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squaresFixture writes a two-feature GeoJSON layer: square "a" (zone R1)
// covering (0,0)-(2,2) and square "b" (zone C4) covering (10,10)-(12,12).
func squaresFixture(t *testing.T) string {
	t.Helper()
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"name":"a","pop":100,"zone":"R1"},
		 "geometry":{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}},
		{"type":"Feature","properties":{"name":"b","pop":250,"zone":"C4"},
		 "geometry":{"type":"Polygon","coordinates":[[[10,10],[12,10],[12,12],[10,12],[10,10]]]}}
	]}`
	path := filepath.Join(t.TempDir(), "squares.geojson")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func drain(t *testing.T, gen *FeatureGenerator) []*Feature {
	t.Helper()
	var out []*Feature
	for {
		f, err := gen.Next()
		require.NoError(t, err)
		if f == nil {
			return out
		}
		out = append(out, f)
	}
}

func TestGeneratorYieldsAllFeatures(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	feats := drain(t, gen)
	require.Len(t, feats, 2)

	name, ok := feats[0].Attribute("name")
	require.True(t, ok)
	assert.Equal(t, "a", name)
}

func TestGeneratorExhaustionSemantics(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		f, err := gen.Next()
		require.NoError(t, err)
		require.NotNil(t, f)
	}

	// The first call past the end is the (nil, nil) end marker.
	f, err := gen.Next()
	require.NoError(t, err)
	assert.Nil(t, f)

	// Everything after that reports the closed state.
	_, err = gen.Next()
	var closed *GeneratorClosedError
	require.True(t, errors.As(err, &closed))
	assert.Equal(t, "Next", closed.Op)

	err = gen.AddField("x", 1)
	assert.True(t, errors.As(err, &closed))
}

func TestGeneratorCloseIsTerminal(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	require.NoError(t, gen.Close())

	_, err = gen.Next()
	var closed *GeneratorClosedError
	assert.True(t, errors.As(err, &closed))

	err = gen.Close()
	assert.True(t, errors.As(err, &closed))
}

func TestGeneratorClauseAndFields(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{
		Clause: "zone = 'R1' && pop < 200",
		Fields: []string{"zone"},
	}, ResolveOptions{})
	require.NoError(t, err)

	feats := drain(t, gen)
	require.Len(t, feats, 1)
	assert.Equal(t, []string{"zone"}, feats[0].Attributes().Names())
	zone, _ := feats[0].Attribute("zone")
	assert.Equal(t, "R1", zone)
}

func TestGeneratorIntersectsFilter(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{
		Intersects: "POLYGON((1 1, 3 1, 3 3, 1 3, 1 1))",
	}, ResolveOptions{})
	require.NoError(t, err)

	feats := drain(t, gen)
	require.Len(t, feats, 1)
	name, _ := feats[0].Attribute("name")
	assert.Equal(t, "a", name)
}

func TestGeneratorPipelineStages(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	require.NoError(t, gen.AddField("flag", 1))
	require.NoError(t, gen.CalculateField("zone", "X", "name = 'a'"))
	require.NoError(t, gen.AttributeFilter("pop < 300"))

	feats := drain(t, gen)
	require.Len(t, feats, 2)

	flag, ok := feats[0].Attribute("flag")
	require.True(t, ok)
	assert.Equal(t, 1, flag)

	zoneA, _ := feats[0].Attribute("zone")
	assert.Equal(t, "X", zoneA, "calculated where the clause matched")
	zoneB, _ := feats[1].Attribute("zone")
	assert.Equal(t, "C4", zoneB, "untouched where it did not")
}

func TestGeneratorDropFields(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	require.NoError(t, gen.DropFields("pop"))

	feats := drain(t, gen)
	require.Len(t, feats, 2)
	_, ok := feats[0].Attribute("pop")
	assert.False(t, ok)
}

func TestGeneratorBufferStage(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{Clause: "name = 'a'"}, ResolveOptions{})
	require.NoError(t, err)
	require.NoError(t, gen.Buffer(1))

	feats := drain(t, gen)
	require.Len(t, feats, 1)
	assert.Greater(t, feats[0].Area(), 4.0)
}

func TestGeneratorSave(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	require.NoError(t, gen.AddField("flag", 1))
	require.NoError(t, gen.CalculateField("zone", "X", "name = 'a'"))

	out := filepath.Join(t.TempDir(), "out.geojson")
	require.NoError(t, gen.Save(OutputSpec{Path: out}))

	// The generator is closed after Save.
	var closed *GeneratorClosedError
	_, err = gen.Next()
	assert.True(t, errors.As(err, &closed))

	layer, err := NewFeatureLayer(out, SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	defer layer.Close()
	assert.Equal(t, 2, layer.Count())

	feats := layer.Features()
	flag, ok := feats[0].Attribute("flag")
	require.True(t, ok)
	assert.EqualValues(t, 1, flag)
}

func TestGeneratorSaveSkipsConsumedFeatures(t *testing.T) {
	gen, err := NewFeatureGenerator(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)

	f, err := gen.Next()
	require.NoError(t, err)
	require.NotNil(t, f)

	out := filepath.Join(t.TempDir(), "rest.geojson")
	require.NoError(t, gen.Save(OutputSpec{Path: out}))

	layer, err := NewFeatureLayer(out, SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	defer layer.Close()
	assert.Equal(t, 1, layer.Count())
}

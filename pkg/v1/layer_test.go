package easyogr

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssast/easyogr/internal/driver"
)

func openSquares(t *testing.T) *FeatureLayer {
	t.Helper()
	layer, err := NewFeatureLayer(squaresFixture(t), SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { layer.Close() })
	return layer
}

func selectedNames(layer *FeatureLayer) []string {
	var names []string
	layer.Each(func(f *Feature) bool {
		name, _ := f.Attribute("name")
		names = append(names, name.(string))
		return true
	})
	return names
}

func TestLayerLoadsEverything(t *testing.T) {
	layer := openSquares(t)
	assert.Equal(t, 2, layer.Count())
	assert.Equal(t, []string{"name", "pop", "zone"}, layer.FieldNames())

	minX, minY, maxX, maxY, ok := layer.Bounds()
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 12, 12}, []float64{minX, minY, maxX, maxY})
}

func TestLayerEachIsRestartable(t *testing.T) {
	layer := openSquares(t)
	assert.Equal(t, []string{"a", "b"}, selectedNames(layer))
	assert.Equal(t, []string{"a", "b"}, selectedNames(layer), "second walk sees the same features")
}

func TestSetSelectionIgnoresCurrentSelection(t *testing.T) {
	layer := openSquares(t)
	require.NoError(t, layer.SetSelection(SelectionSpec{Clause: "zone = 'R1'"}))
	assert.Equal(t, []string{"a"}, selectedNames(layer))

	// SetSelection evaluates over the whole layer, not the current selection.
	require.NoError(t, layer.SetSelection(SelectionSpec{Clause: "zone = 'C4'"}))
	assert.Equal(t, []string{"b"}, selectedNames(layer))
}

func TestSelectionAlgebra(t *testing.T) {
	layer := openSquares(t)

	require.NoError(t, layer.AttributeFilter("zone = 'R1'", SelectionNew))
	assert.Equal(t, []string{"a"}, selectedNames(layer))

	require.NoError(t, layer.AttributeFilter("zone = 'C4'", SelectionUnion))
	assert.Equal(t, []string{"a", "b"}, selectedNames(layer))

	require.NoError(t, layer.AttributeFilter("pop > 200", SelectionIntersection))
	assert.Equal(t, []string{"b"}, selectedNames(layer))

	require.NoError(t, layer.AttributeFilter("zone = 'C4'", SelectionDifference))
	assert.Empty(t, selectedNames(layer))

	layer.ClearSelection()
	assert.Equal(t, 2, layer.Count())
}

func TestSpatialFilter(t *testing.T) {
	layer := openSquares(t)
	err := layer.SpatialFilter("POLYGON((1 1, 3 1, 3 3, 1 3, 1 1))", PredIntersects, SelectionNew)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, selectedNames(layer))

	err = layer.SpatialFilter("POINT(50 50)", PredDisjoint, SelectionNew)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, selectedNames(layer))
}

func TestLayerExportWithFields(t *testing.T) {
	layer, err := NewFeatureLayer(squaresFixture(t), SelectionSpec{Fields: []string{"zone"}}, ResolveOptions{})
	require.NoError(t, err)
	defer layer.Close()

	out := filepath.Join(t.TempDir(), "zones.geojson")
	require.NoError(t, layer.Export(OutputSpec{Path: out}))

	copied, err := NewFeatureLayer(out, SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	defer copied.Close()
	assert.Equal(t, 2, copied.Count())
	assert.Equal(t, []string{"zone"}, copied.FieldNames())
}

func TestLayerClip(t *testing.T) {
	layer := openSquares(t)
	out := filepath.Join(t.TempDir(), "clipped.geojson")
	require.NoError(t, layer.Clip("POLYGON((1 1, 3 1, 3 3, 1 3, 1 1))", OutputSpec{Path: out}))

	clipped, err := NewFeatureLayer(out, SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	defer clipped.Close()
	require.Equal(t, 1, clipped.Count())
	assert.InDelta(t, 1.0, clipped.Features()[0].Area(), 1e-9)
}

func TestLayerSelectionDrivesExport(t *testing.T) {
	layer := openSquares(t)
	require.NoError(t, layer.SetSelection(SelectionSpec{Clause: "name = 'b'"}))

	out := filepath.Join(t.TempDir(), "only_b.geojson")
	require.NoError(t, layer.Export(OutputSpec{Path: out}))

	copied, err := NewFeatureLayer(out, SelectionSpec{}, ResolveOptions{})
	require.NoError(t, err)
	defer copied.Close()
	assert.Equal(t, []string{"b"}, selectedNames(copied))
}

func TestResolveUnknownDriver(t *testing.T) {
	_, err := Resolve("data.xyz", ResolveOptions{})
	require.Error(t, err)
	var unknown *UnknownDriverError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, ".xyz", unknown.Ext)

	_, err = Resolve("data.geojson", ResolveOptions{Driver: "NoSuchDriver"})
	require.Error(t, err)
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "NoSuchDriver", unknown.Driver)
}

func TestResolveAmbiguousLayer(t *testing.T) {
	d, ok := driver.ByName("SQLite")
	require.True(t, ok)
	path := filepath.Join(t.TempDir(), "multi.sqlite")
	for _, name := range []string{"first", "second"} {
		ds, err := d.Create(path)
		require.NoError(t, err)
		w, err := ds.CreateLayer(driver.LayerMeta{Name: name, GeometryType: "Point"})
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, ds.Close())
	}

	_, err := Resolve(path, ResolveOptions{})
	require.Error(t, err)
	var ambiguous *AmbiguousLayerError
	require.True(t, errors.As(err, &ambiguous))
	assert.ElementsMatch(t, []string{"first", "second"}, ambiguous.Available)

	// Naming the layer resolves it.
	handle, err := Resolve(path, ResolveOptions{Layer: "second"})
	require.NoError(t, err)
	assert.Equal(t, "second", handle.LayerName)
	require.NoError(t, handle.Close())
}

func TestResolveBasenameMatchedLayer(t *testing.T) {
	d, ok := driver.ByName("SQLite")
	require.True(t, ok)
	path := filepath.Join(t.TempDir(), "multi.sqlite")
	for _, name := range []string{"multi", "other"} {
		ds, err := d.Create(path)
		require.NoError(t, err)
		w, err := ds.CreateLayer(driver.LayerMeta{Name: name, GeometryType: "Point"})
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, ds.Close())
	}

	// A layer named like the path basename wins over ambiguity.
	handle, err := Resolve(path, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "multi", handle.LayerName)
	require.NoError(t, handle.Close())
}

func TestResolveSingleLayer(t *testing.T) {
	handle, err := Resolve(squaresFixture(t), ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "GeoJSON", handle.Driver)
	assert.Equal(t, "squares", handle.LayerName)
	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close(), "closing twice is safe")
}

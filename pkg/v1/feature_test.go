package easyogr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFeatureFromWKT(t *testing.T) {
	f, err := NewFeature("POINT(1 2)", nil)
	require.NoError(t, err)
	assert.Equal(t, "Point", f.GeometryType())
	assert.Equal(t, 0, f.Attributes().Len())
}

func TestNewFeatureFromCoords(t *testing.T) {
	f, err := NewFeature([]float64{3, 4}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Point", f.GeometryType())

	poly, err := NewFeature([][][]float64{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Polygon", poly.GeometryType())
	assert.InDelta(t, 4.0, poly.Area(), 1e-9)
}

func TestNewFeatureFromGeoJSON(t *testing.T) {
	f, err := NewFeature([]byte(`{"type":"Point","coordinates":[10,20]}`), nil)
	require.NoError(t, err)
	require.NotNil(t, f.SpatialRef())
	assert.Equal(t, 4326, f.SpatialRef().SRID())
}

func TestNewFeatureFromFeature(t *testing.T) {
	attrs := NewAttributes()
	attrs.Set("name", "a")
	src, err := NewFeature("POINT(1 1)", attrs)
	require.NoError(t, err)

	dup, err := NewFeature(src, nil)
	require.NoError(t, err)
	assert.Equal(t, src.WKT(), dup.WKT())
}

func TestNewFeatureUnrecognized(t *testing.T) {
	_, err := NewFeature(struct{}{}, nil)
	require.Error(t, err)
	var unrec *UnrecognizedFormatError
	assert.True(t, errors.As(err, &unrec))
}

func TestFeatureDistance(t *testing.T) {
	f, err := NewFeature("POINT(0 0)", nil)
	require.NoError(t, err)
	d, err := f.Distance("POINT(3 4)")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestFeatureIntersectionKeepsAttributes(t *testing.T) {
	attrs := NewAttributes()
	attrs.Set("zone", "R1")
	outer, err := NewFeature("POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))", attrs)
	require.NoError(t, err)

	// Operand entirely inside the receiver: the intersection is the operand.
	got, err := outer.Intersection("POLYGON((2 2, 4 2, 4 4, 2 4, 2 2))")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, got.Area(), 1e-9)
	zone, ok := got.Attribute("zone")
	require.True(t, ok)
	assert.Equal(t, "R1", zone)
}

func TestFeatureIntersectionEmptyIsNotAnError(t *testing.T) {
	f, err := NewFeature("POINT(0 0)", nil)
	require.NoError(t, err)
	got, err := f.Intersection("POINT(5 5)")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestFeaturePredicates(t *testing.T) {
	outer, err := NewFeature("POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))", nil)
	require.NoError(t, err)
	inner := "POLYGON((2 2, 4 2, 4 4, 2 4, 2 2))"

	contains, err := outer.Contains(inner)
	require.NoError(t, err)
	assert.True(t, contains)

	disjoint, err := outer.Disjoint("POINT(100 100)")
	require.NoError(t, err)
	assert.True(t, disjoint)

	intersects, err := outer.Intersects(inner)
	require.NoError(t, err)
	assert.True(t, intersects)
}

func TestFeatureBuffer(t *testing.T) {
	f, err := NewFeature("POINT(0 0)", nil)
	require.NoError(t, err)
	buffered, err := f.Buffer(1)
	require.NoError(t, err)
	contains, err := buffered.Contains(f)
	require.NoError(t, err)
	assert.True(t, contains)
}

func TestFeatureTransform(t *testing.T) {
	f, err := NewFeature("POINT(10 53.5)", nil, WithSpatialRef(4326))
	require.NoError(t, err)
	out, err := f.Transform(3857)
	require.NoError(t, err)
	require.NotNil(t, out.SpatialRef())
	assert.Equal(t, 3857, out.SpatialRef().SRID())
	// The receiver is untouched.
	assert.Equal(t, 4326, f.SpatialRef().SRID())
}

func TestFeatureTransformMismatch(t *testing.T) {
	f, err := NewFeature("POINT(1 2)", nil, WithSpatialRef(4326))
	require.NoError(t, err)
	_, err = f.Transform(27700)
	require.Error(t, err)
	var mismatch *ReferenceMismatchError
	assert.True(t, errors.As(err, &mismatch))
}

func TestExportGeometry(t *testing.T) {
	f, err := NewFeature("POINT(1 2)", nil)
	require.NoError(t, err)

	text, err := f.ExportGeometry(FormatWKT)
	require.NoError(t, err)
	assert.Contains(t, text.(string), "POINT")

	doc, err := f.ExportGeometry(FormatGeoJSON)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"Point","coordinates":[1,2]}`, string(doc.([]byte)))
}

func TestFeatureCopyIsIndependent(t *testing.T) {
	attrs := NewAttributes()
	attrs.Set("name", "a")
	f, err := NewFeature("POINT(1 2)", attrs)
	require.NoError(t, err)

	dup := f.Copy()
	dup.SetAttribute("name", "b")
	name, _ := f.Attribute("name")
	assert.Equal(t, "a", name)
}

func TestAttributesPreserveOrder(t *testing.T) {
	a := NewAttributes()
	a.Set("z", 1)
	a.Set("a", 2)
	a.Set("m", 3)
	assert.Equal(t, []string{"z", "a", "m"}, a.Names())

	a.Set("a", 9)
	assert.Equal(t, []string{"z", "a", "m"}, a.Names(), "updating must not reorder")

	v, ok := a.Get("a")
	require.True(t, ok)
	assert.Equal(t, 9, v)
}

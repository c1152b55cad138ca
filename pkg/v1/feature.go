package easyogr

import (
	"github.com/ssast/easyogr/internal/geometry"
)

// Feature pairs a geometry with an ordered attribute set. The geometry is
// owned exclusively by the feature; operations return new features and leave
// their receivers untouched.
type Feature struct {
	geom  geometry.Geometry
	attrs *Attributes
}

// NewFeature builds a feature from a geometry in any coercible form. A nil
// attrs starts the feature with an empty attribute set.
func NewFeature(geomInput any, attrs *Attributes, opts ...CoerceOption) (*Feature, error) {
	g, err := coerceGeometry(geomInput, applyCoerceOptions(opts))
	if err != nil {
		return nil, err
	}
	if attrs == nil {
		attrs = NewAttributes()
	}
	return &Feature{geom: g, attrs: attrs.Copy()}, nil
}

// coerceGeometry normalizes any coercible input, unwrapping features first
// so they count as native geometry handles.
func coerceGeometry(input any, c *coerceConfig) (geometry.Geometry, error) {
	if feat, ok := input.(*Feature); ok {
		input = feat.geom
	}
	ref, err := c.reference()
	if err != nil {
		return geometry.Geometry{}, err
	}
	return geometry.Coerce(input, c.format, ref)
}

func newFeature(g geometry.Geometry, attrs *Attributes) *Feature {
	if attrs == nil {
		attrs = NewAttributes()
	}
	return &Feature{geom: g, attrs: attrs}
}

// Attributes returns the feature's attribute set. Mutating it mutates the
// feature.
func (f *Feature) Attributes() *Attributes { return f.attrs }

// Attribute returns one attribute value and whether the field exists.
func (f *Feature) Attribute(name string) (any, bool) {
	return f.attrs.Get(name)
}

// SetAttribute stores one attribute value, appending the field when new.
func (f *Feature) SetAttribute(name string, value any) {
	f.attrs.Set(name, value)
}

// SpatialRef returns the feature's spatial reference, nil when unknown.
func (f *Feature) SpatialRef() *SpatialRef { return f.geom.Ref() }

// IsEmpty reports whether the feature's geometry contains no points.
func (f *Feature) IsEmpty() bool { return f.geom.IsEmpty() }

// GeometryType returns the GeoJSON-style geometry type name, empty for an
// empty geometry.
func (f *Feature) GeometryType() string { return f.geom.Type() }

// WKT renders the feature's geometry as well-known text.
func (f *Feature) WKT() string { return f.geom.WKT() }

// GeoJSON renders the feature's geometry as a GeoJSON geometry object.
func (f *Feature) GeoJSON() ([]byte, error) { return f.geom.GeoJSON() }

// ExportGeometry renders the geometry in the requested representation:
// FormatWKT yields a string, FormatGeoJSON a []byte document, FormatNative
// (or auto) the canonical geometry value.
func (f *Feature) ExportGeometry(format GeometryFormat) (any, error) {
	switch format {
	case FormatWKT:
		return f.geom.WKT(), nil
	case FormatGeoJSON:
		return f.geom.GeoJSON()
	case FormatNative, FormatAuto:
		return f.geom, nil
	}
	return nil, &UnrecognizedFormatError{Value: f.geom, Format: format, Reason: "unsupported export format"}
}

// Envelope returns the geometry's bounding box. ok is false for an empty
// geometry.
func (f *Feature) Envelope() (minX, minY, maxX, maxY float64, ok bool) {
	bound, ok := f.geom.Bound()
	if !ok {
		return 0, 0, 0, 0, false
	}
	return bound.Min[0], bound.Min[1], bound.Max[0], bound.Max[1], true
}

// Copy returns an independent feature with the same geometry and attributes.
func (f *Feature) Copy() *Feature {
	return &Feature{geom: f.geom, attrs: f.attrs.Copy()}
}

// Area returns the planar area of the geometry, 0 for non-areal geometries.
func (f *Feature) Area() float64 { return f.geom.Area() }

// Centroid returns a new feature at the geometry's centroid, carrying a copy
// of the attributes.
func (f *Feature) Centroid() *Feature {
	return &Feature{geom: f.geom.Centroid(), attrs: f.attrs.Copy()}
}

// Buffer returns a new feature whose geometry is expanded by dist in
// reference units.
func (f *Feature) Buffer(dist float64) (*Feature, error) {
	g, err := f.geom.Buffer(dist)
	if err != nil {
		return nil, err
	}
	return &Feature{geom: g, attrs: f.attrs.Copy()}, nil
}

// Transform returns a new feature reprojected into the given spatial
// reference. An unresolvable pair of references yields
// ReferenceMismatchError.
func (f *Feature) Transform(ref any, opts ...CoerceOption) (*Feature, error) {
	c := applyCoerceOptions(opts)
	c.spatialRef = ref
	to, err := c.reference()
	if err != nil {
		return nil, err
	}
	g, err := f.geom.Transform(to)
	if err != nil {
		return nil, err
	}
	return &Feature{geom: g, attrs: f.attrs.Copy()}, nil
}

// coerceOther normalizes a binary-operation operand into the receiver's
// spatial reference.
func (f *Feature) coerceOther(other any, opts []CoerceOption) (geometry.Geometry, error) {
	g, err := coerceGeometry(other, applyCoerceOptions(opts))
	if err != nil {
		return geometry.Geometry{}, err
	}
	if f.geom.Ref() != nil && g.Ref() != nil && !f.geom.Ref().Equal(g.Ref()) {
		return g.Transform(f.geom.Ref())
	}
	return g, nil
}

// Intersection returns a new feature holding the geometric intersection with
// other, carrying the receiver's attributes. An empty result is an empty
// feature, not an error.
func (f *Feature) Intersection(other any, opts ...CoerceOption) (*Feature, error) {
	return f.binary(other, opts, geometry.Geometry.Intersection)
}

// Difference returns the parts of the receiver not covered by other.
func (f *Feature) Difference(other any, opts ...CoerceOption) (*Feature, error) {
	return f.binary(other, opts, geometry.Geometry.Difference)
}

// Union returns the combined extent of the receiver and other.
func (f *Feature) Union(other any, opts ...CoerceOption) (*Feature, error) {
	return f.binary(other, opts, geometry.Geometry.Union)
}

// SymmetricDifference returns the parts covered by exactly one of the
// receiver and other.
func (f *Feature) SymmetricDifference(other any, opts ...CoerceOption) (*Feature, error) {
	return f.binary(other, opts, geometry.Geometry.SymmetricDifference)
}

func (f *Feature) binary(other any, opts []CoerceOption, op func(geometry.Geometry, geometry.Geometry) (geometry.Geometry, error)) (*Feature, error) {
	g, err := f.coerceOther(other, opts)
	if err != nil {
		return nil, err
	}
	result, err := op(f.geom, g)
	if err != nil {
		return nil, err
	}
	return &Feature{geom: result, attrs: f.attrs.Copy()}, nil
}

// Distance returns the planar distance to other in reference units, 0 when
// either geometry is empty.
func (f *Feature) Distance(other any, opts ...CoerceOption) (float64, error) {
	g, err := f.coerceOther(other, opts)
	if err != nil {
		return 0, err
	}
	return f.geom.Distance(g)
}

// Intersects reports whether the feature shares any point with other.
func (f *Feature) Intersects(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredIntersects, other, opts)
}

// Disjoint reports whether the feature shares no point with other.
func (f *Feature) Disjoint(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredDisjoint, other, opts)
}

// Contains reports whether other lies entirely inside the feature.
func (f *Feature) Contains(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredContains, other, opts)
}

// Within reports whether the feature lies entirely inside other.
func (f *Feature) Within(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredWithin, other, opts)
}

// Touches reports whether the feature and other meet only at their
// boundaries.
func (f *Feature) Touches(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredTouches, other, opts)
}

// Overlaps reports whether the feature and other partially cover each other.
func (f *Feature) Overlaps(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredOverlaps, other, opts)
}

// Crosses reports whether the feature and other cross.
func (f *Feature) Crosses(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredCrosses, other, opts)
}

// Equals reports whether the feature and other cover the same point set.
func (f *Feature) Equals(other any, opts ...CoerceOption) (bool, error) {
	return f.relate(geometry.PredEquals, other, opts)
}

func (f *Feature) relate(predicate string, other any, opts []CoerceOption) (bool, error) {
	g, err := f.coerceOther(other, opts)
	if err != nil {
		return false, err
	}
	return f.geom.Relate(predicate, g)
}

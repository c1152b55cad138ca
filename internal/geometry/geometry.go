// Package geometry adapts the underlying vector-geometry engine
// (simplefeatures) behind a canonical Geometry value that pairs a shape with
// its spatial reference.
//
// All geometric algorithms (set operations, predicates, distance) delegate to
// the engine. orb supplies the codec bridge: GeoJSON and coordinate-sequence
// inputs are built as orb geometries and crossed into the engine through WKT,
// and bounding boxes are computed on the orb side.
package geometry

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/peterstace/simplefeatures/geom"

	"github.com/ssast/easyogr/internal/sref"
)

// Format identifies the representation of a raw geometry input.
type Format string

const (
	// FormatAuto sniffs the representation structurally, in priority order:
	// native handle, structured mapping, WKT text.
	FormatAuto    Format = ""
	FormatNative  Format = "native"
	FormatWKT     Format = "wkt"
	FormatGeoJSON Format = "geojson"
	FormatCoords  Format = "coords"
)

// UnrecognizedFormatError indicates a geometry input matched no known
// representation.
type UnrecognizedFormatError struct {
	Value  any
	Format Format
	Reason string
}

func (e *UnrecognizedFormatError) Error() string {
	if e.Format != FormatAuto {
		return fmt.Sprintf("unrecognized geometry input of type %T for format %q: %s", e.Value, e.Format, e.Reason)
	}
	return fmt.Sprintf("unrecognized geometry input of type %T: %s", e.Value, e.Reason)
}

// Geometry is the canonical unit handed between drivers, features and
// geoprocessing: an engine shape plus the reference its coordinates are
// expressed in. A nil reference means unknown.
//
// Geometry values are immutable; operations return new values.
type Geometry struct {
	g   geom.Geometry
	ref *sref.Reference
}

// Empty returns an empty geometry carrying the given reference.
func Empty(ref *sref.Reference) Geometry {
	return Geometry{ref: ref}
}

// New wraps an engine geometry.
func New(g geom.Geometry, ref *sref.Reference) Geometry {
	return Geometry{g: g, ref: ref}
}

// FromWKT parses well-known text.
func FromWKT(text string, ref *sref.Reference) (Geometry, error) {
	g, err := geom.UnmarshalWKT(text)
	if err != nil {
		return Geometry{}, fmt.Errorf("parse WKT: %w", err)
	}
	return Geometry{g: g, ref: ref}, nil
}

// FromOrb crosses an orb geometry into the engine.
func FromOrb(o orb.Geometry, ref *sref.Reference) (Geometry, error) {
	if o == nil {
		return Geometry{ref: ref}, nil
	}
	return FromWKT(wkt.MarshalString(o), ref)
}

// Engine exposes the underlying engine geometry.
func (g Geometry) Engine() geom.Geometry { return g.g }

// Ref returns the spatial reference, nil when unknown.
func (g Geometry) Ref() *sref.Reference { return g.ref }

// WithRef relabels the geometry's reference without touching coordinates.
// Use Transform to actually reproject.
func (g Geometry) WithRef(ref *sref.Reference) Geometry {
	return Geometry{g: g.g, ref: ref}
}

// IsEmpty reports whether the geometry contains no points.
func (g Geometry) IsEmpty() bool { return g.g.IsEmpty() }

// WKT renders the geometry as well-known text.
func (g Geometry) WKT() string { return g.g.AsText() }

// Orb converts the geometry to its orb representation.
func (g Geometry) Orb() (orb.Geometry, error) {
	if g.g.IsEmpty() {
		return nil, nil
	}
	o, err := wkt.Unmarshal(g.g.AsText())
	if err != nil {
		return nil, fmt.Errorf("convert geometry: %w", err)
	}
	return o, nil
}

// GeoJSON renders the geometry as a GeoJSON geometry object.
func (g Geometry) GeoJSON() ([]byte, error) {
	o, err := g.Orb()
	if err != nil {
		return nil, err
	}
	if o == nil {
		return []byte(`{"type":"GeometryCollection","geometries":[]}`), nil
	}
	return geojson.NewGeometry(o).MarshalJSON()
}

// Type returns the GeoJSON-style geometry type name ("Point", "Polygon", ...)
// or "" for an empty geometry.
func (g Geometry) Type() string {
	o, err := g.Orb()
	if err != nil || o == nil {
		return ""
	}
	return o.GeoJSONType()
}

// Bound returns the bounding box. The second result is false for empty
// geometries.
func (g Geometry) Bound() (orb.Bound, bool) {
	o, err := g.Orb()
	if err != nil || o == nil {
		return orb.Bound{}, false
	}
	return o.Bound(), true
}

// Transform reprojects the geometry to another reference. Transforming to
// the current reference (or between two nil references) is a no-op copy.
func (g Geometry) Transform(to *sref.Reference) (Geometry, error) {
	fn, err := sref.Transform(g.ref, to)
	if err != nil {
		return Geometry{}, err
	}
	out := g.g.TransformXY(func(xy geom.XY) geom.XY {
		x, y := fn(xy.X, xy.Y)
		return geom.XY{X: x, Y: y}
	})
	return Geometry{g: out, ref: to}, nil
}

// align reprojects other onto g's reference, the convention for every binary
// operation: the first operand's reference wins. An unknown reference on
// either side is taken as compatible coordinates.
func (g Geometry) align(other Geometry) (geom.Geometry, error) {
	if g.ref == nil || other.ref == nil || g.ref.Equal(other.ref) {
		return other.g, nil
	}
	t, err := other.Transform(g.ref)
	if err != nil {
		return geom.Geometry{}, err
	}
	return t.g, nil
}

// Intersection computes the geometric intersection. Disjoint operands yield
// an empty geometry, not an error.
func (g Geometry) Intersection(other Geometry) (Geometry, error) {
	return g.binary(other, geom.Intersection)
}

// Difference computes the part of g not covered by other.
func (g Geometry) Difference(other Geometry) (Geometry, error) {
	return g.binary(other, geom.Difference)
}

// Union merges g with other.
func (g Geometry) Union(other Geometry) (Geometry, error) {
	return g.binary(other, geom.Union)
}

// SymmetricDifference computes the parts of either operand not shared by
// both.
func (g Geometry) SymmetricDifference(other Geometry) (Geometry, error) {
	return g.binary(other, geom.SymmetricDifference)
}

func (g Geometry) binary(other Geometry, op func(_, _ geom.Geometry) (geom.Geometry, error)) (Geometry, error) {
	aligned, err := g.align(other)
	if err != nil {
		return Geometry{}, err
	}
	out, err := op(g.g, aligned)
	if err != nil {
		return Geometry{}, fmt.Errorf("geometry operation: %w", err)
	}
	return Geometry{g: out, ref: g.ref}, nil
}

// Distance returns the minimum distance between the operands in the units of
// g's reference. The distance to an empty geometry is 0.
func (g Geometry) Distance(other Geometry) (float64, error) {
	aligned, err := g.align(other)
	if err != nil {
		return 0, err
	}
	d, ok := geom.Distance(g.g, aligned)
	if !ok {
		return 0, nil
	}
	return d, nil
}

// Predicate names accepted by Relate.
const (
	PredContains   = "CONTAINS"
	PredCrosses    = "CROSSES"
	PredDisjoint   = "DISJOINT"
	PredEquals     = "EQUALS"
	PredIntersects = "INTERSECTS"
	PredOverlaps   = "OVERLAPS"
	PredTouches    = "TOUCHES"
	PredWithin     = "WITHIN"
)

// Relate evaluates a named spatial predicate of g against other.
func (g Geometry) Relate(predicate string, other Geometry) (bool, error) {
	aligned, err := g.align(other)
	if err != nil {
		return false, err
	}
	switch predicate {
	case PredIntersects:
		return geom.Intersects(g.g, aligned), nil
	case PredDisjoint:
		return !geom.Intersects(g.g, aligned), nil
	case PredContains:
		return geom.Contains(g.g, aligned)
	case PredWithin:
		return geom.Within(g.g, aligned)
	case PredTouches:
		return geom.Touches(g.g, aligned)
	case PredOverlaps:
		return geom.Overlaps(g.g, aligned)
	case PredCrosses:
		return geom.Crosses(g.g, aligned)
	case PredEquals:
		return geom.Equals(g.g, aligned)
	}
	return false, fmt.Errorf("unknown spatial predicate %q", predicate)
}

// Centroid returns the geometry's centroid, keeping the reference.
func (g Geometry) Centroid() Geometry {
	return Geometry{g: g.g.Centroid().AsGeometry(), ref: g.ref}
}

// Area returns the planar area, 0 for non-areal geometries.
func (g Geometry) Area() float64 { return g.g.Area() }

// Coerce normalizes a raw input of unknown representation into a canonical
// Geometry. See Format for accepted representations. ref, when non-nil,
// attaches to geometries with no reference of their own and reprojects
// geometries that already carry a different one.
func Coerce(input any, format Format, ref *sref.Reference) (Geometry, error) {
	g, err := coerceValue(input, format)
	if err != nil {
		return Geometry{}, err
	}
	if ref == nil {
		return g, nil
	}
	if g.ref == nil {
		return g.WithRef(ref), nil
	}
	return g.Transform(ref)
}

func coerceValue(input any, format Format) (Geometry, error) {
	switch format {
	case FormatAuto:
		return sniff(input)
	case FormatNative:
		if g, ok := nativeGeometry(input); ok {
			return g, nil
		}
		return Geometry{}, &UnrecognizedFormatError{Value: input, Format: format, Reason: "not a native geometry handle"}
	case FormatWKT:
		s, ok := input.(string)
		if !ok {
			return Geometry{}, &UnrecognizedFormatError{Value: input, Format: format, Reason: "WKT input must be a string"}
		}
		g, err := FromWKT(s, nil)
		if err != nil {
			return Geometry{}, &UnrecognizedFormatError{Value: input, Format: format, Reason: err.Error()}
		}
		return g, nil
	case FormatGeoJSON:
		g, err := coerceGeoJSON(input)
		if err != nil {
			return Geometry{}, &UnrecognizedFormatError{Value: input, Format: format, Reason: err.Error()}
		}
		return g, nil
	case FormatCoords:
		g, err := coerceCoords(input)
		if err != nil {
			return Geometry{}, &UnrecognizedFormatError{Value: input, Format: format, Reason: err.Error()}
		}
		return g, nil
	}
	return Geometry{}, &UnrecognizedFormatError{Value: input, Format: format, Reason: "unknown format hint"}
}

// sniff probes representations in a fixed priority order: native handle,
// structured mapping, coordinate sequence, WKT text.
func sniff(input any) (Geometry, error) {
	if g, ok := nativeGeometry(input); ok {
		return g, nil
	}
	switch v := input.(type) {
	case map[string]any, json.RawMessage, []byte:
		g, err := coerceGeoJSON(v)
		if err != nil {
			return Geometry{}, &UnrecognizedFormatError{Value: input, Reason: err.Error()}
		}
		return g, nil
	case []float64, [][]float64, [][][]float64:
		g, err := coerceCoords(v)
		if err != nil {
			return Geometry{}, &UnrecognizedFormatError{Value: input, Reason: err.Error()}
		}
		return g, nil
	case string:
		g, err := FromWKT(v, nil)
		if err != nil {
			return Geometry{}, &UnrecognizedFormatError{Value: input, Reason: "string is not valid WKT"}
		}
		return g, nil
	}
	return Geometry{}, &UnrecognizedFormatError{Value: input, Reason: "no known representation matched"}
}

func nativeGeometry(input any) (Geometry, bool) {
	switch v := input.(type) {
	case Geometry:
		return v, true
	case *Geometry:
		return *v, true
	case geom.Geometry:
		return Geometry{g: v}, true
	case orb.Geometry:
		g, err := FromOrb(v, nil)
		if err != nil {
			return Geometry{}, false
		}
		return g, true
	}
	return Geometry{}, false
}

func coerceGeoJSON(input any) (Geometry, error) {
	var data []byte
	switch v := input.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		data = []byte(v)
	case map[string]any:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return Geometry{}, err
		}
	default:
		return Geometry{}, fmt.Errorf("GeoJSON input must be a mapping or raw JSON, got %T", input)
	}

	// A Feature object wraps its geometry; unwrap before decoding.
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Geometry{}, err
	}
	if probe.Type == "Feature" {
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return Geometry{}, err
		}
		return FromOrb(f.Geometry, sref.FromEPSG(4326))
	}
	gj, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return Geometry{}, err
	}
	return FromOrb(gj.Geometry(), sref.FromEPSG(4326))
}

func coerceCoords(input any) (Geometry, error) {
	switch v := input.(type) {
	case []float64:
		if len(v) < 2 {
			return Geometry{}, fmt.Errorf("coordinate pair needs at least 2 values, got %d", len(v))
		}
		return FromOrb(orb.Point{v[0], v[1]}, nil)
	case [][]float64:
		pts, err := toPoints(v)
		if err != nil {
			return Geometry{}, err
		}
		if len(pts) == 1 {
			return FromOrb(pts[0], nil)
		}
		return FromOrb(orb.LineString(pts), nil)
	case [][][]float64:
		rings := make([]orb.Ring, 0, len(v))
		for _, raw := range v {
			pts, err := toPoints(raw)
			if err != nil {
				return Geometry{}, err
			}
			ring := orb.Ring(pts)
			if !ring.Closed() && len(ring) > 0 {
				ring = append(ring, ring[0])
			}
			rings = append(rings, ring)
		}
		return FromOrb(orb.Polygon(rings), nil)
	}
	return Geometry{}, fmt.Errorf("coordinate input must be []float64, [][]float64 or [][][]float64, got %T", input)
}

func toPoints(raw [][]float64) ([]orb.Point, error) {
	pts := make([]orb.Point, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			return nil, fmt.Errorf("coordinate pair needs at least 2 values, got %d", len(pair))
		}
		pts = append(pts, orb.Point{pair[0], pair[1]})
	}
	return pts, nil
}

package geometry

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/peterstace/simplefeatures/geom"
)

// circleSegments controls how finely buffer caps approximate a circle.
const circleSegments = 32

// Buffer expands the geometry by dist in reference units. The result is
// composed from disc and capsule primitives merged through the engine's
// union, so only positive (outward) distances are supported; the engine
// itself carries no buffer primitive.
func (g Geometry) Buffer(dist float64) (Geometry, error) {
	if dist < 0 {
		return Geometry{}, fmt.Errorf("negative buffer distance %v not supported", dist)
	}
	if dist == 0 || g.IsEmpty() {
		return g, nil
	}
	o, err := g.Orb()
	if err != nil {
		return Geometry{}, err
	}
	parts, err := bufferParts(o, dist)
	if err != nil {
		return Geometry{}, err
	}
	out := geom.Geometry{}
	for _, part := range parts {
		pg, err := geom.UnmarshalWKT(part)
		if err != nil {
			return Geometry{}, fmt.Errorf("assemble buffer: %w", err)
		}
		out, err = geom.Union(out, pg)
		if err != nil {
			return Geometry{}, fmt.Errorf("assemble buffer: %w", err)
		}
	}
	return Geometry{g: out, ref: g.ref}, nil
}

// bufferParts decomposes a geometry into WKT polygon primitives covering its
// buffer: discs around points and vertices, capsules along segments, and the
// areal body itself.
func bufferParts(o orb.Geometry, dist float64) ([]string, error) {
	switch v := o.(type) {
	case orb.Point:
		return []string{polygonWKT(disc(v, dist))}, nil
	case orb.MultiPoint:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, polygonWKT(disc(p, dist)))
		}
		return parts, nil
	case orb.LineString:
		return lineParts(v, dist), nil
	case orb.MultiLineString:
		var parts []string
		for _, ls := range v {
			parts = append(parts, lineParts(ls, dist)...)
		}
		return parts, nil
	case orb.Ring:
		return lineParts(orb.LineString(v), dist), nil
	case orb.Polygon:
		return polygonParts(v, dist), nil
	case orb.MultiPolygon:
		var parts []string
		for _, poly := range v {
			parts = append(parts, polygonParts(poly, dist)...)
		}
		return parts, nil
	case orb.Collection:
		var parts []string
		for _, member := range v {
			sub, err := bufferParts(member, dist)
			if err != nil {
				return nil, err
			}
			parts = append(parts, sub...)
		}
		return parts, nil
	}
	return nil, fmt.Errorf("cannot buffer geometry type %T", o)
}

func lineParts(ls orb.LineString, dist float64) []string {
	if len(ls) == 1 {
		return []string{polygonWKT(disc(ls[0], dist))}
	}
	var parts []string
	for i := 0; i+1 < len(ls); i++ {
		parts = append(parts, capsule(ls[i], ls[i+1], dist)...)
	}
	return parts
}

func polygonParts(poly orb.Polygon, dist float64) []string {
	parts := []string{polygonWKT(flattenRings(poly))}
	for _, ring := range poly {
		parts = append(parts, lineParts(orb.LineString(ring), dist)...)
	}
	return parts
}

// capsule covers one segment: an oriented rectangle plus end discs.
func capsule(a, b orb.Point, dist float64) []string {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return []string{polygonWKT(disc(a, dist))}
	}
	nx, ny := -dy/length*dist, dx/length*dist
	rect := []orb.Point{
		{a[0] + nx, a[1] + ny},
		{b[0] + nx, b[1] + ny},
		{b[0] - nx, b[1] - ny},
		{a[0] - nx, a[1] - ny},
		{a[0] + nx, a[1] + ny},
	}
	return []string{
		polygonWKT([][]orb.Point{rect}),
		polygonWKT(disc(a, dist)),
		polygonWKT(disc(b, dist)),
	}
}

func disc(center orb.Point, radius float64) [][]orb.Point {
	ring := make([]orb.Point, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		angle := 2 * math.Pi * float64(i) / circleSegments
		ring = append(ring, orb.Point{
			center[0] + radius*math.Cos(angle),
			center[1] + radius*math.Sin(angle),
		})
	}
	// Close with the first vertex itself; recomputing cos/sin at 2π leaves
	// the ring open by a rounding error and the engine rejects it.
	ring = append(ring, ring[0])
	return [][]orb.Point{ring}
}

func flattenRings(poly orb.Polygon) [][]orb.Point {
	rings := make([][]orb.Point, 0, len(poly))
	for _, ring := range poly {
		pts := make([]orb.Point, len(ring))
		copy(pts, ring)
		if len(pts) > 0 && pts[0] != pts[len(pts)-1] {
			pts = append(pts, pts[0])
		}
		rings = append(rings, pts)
	}
	return rings
}

func polygonWKT(rings [][]orb.Point) string {
	out := "POLYGON ("
	for i, ring := range rings {
		if i > 0 {
			out += ", "
		}
		out += "("
		for j, pt := range ring {
			if j > 0 {
				out += ", "
			}
			out += fmt.Sprintf("%v %v", pt[0], pt[1])
		}
		out += ")"
	}
	return out + ")"
}

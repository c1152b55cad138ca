package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/ssast/easyogr/internal/sref"
)

func TestCoerceWKTRoundTrip(t *testing.T) {
	wktTexts := []string{
		"POINT(1 2)",
		"LINESTRING(0 0, 1 1, 2 0)",
		"POLYGON((0 0, 4 0, 4 4, 0 4, 0 0))",
	}
	for _, text := range wktTexts {
		g, err := Coerce(text, FormatAuto, nil)
		if err != nil {
			t.Fatalf("Coerce(%q) failed: %v", text, err)
		}
		again, err := Coerce(g.WKT(), FormatWKT, nil)
		if err != nil {
			t.Fatalf("re-coerce of %q failed: %v", text, err)
		}
		ok, err := g.Relate(PredEquals, again)
		if err != nil {
			t.Fatalf("Relate failed: %v", err)
		}
		if !ok {
			t.Errorf("WKT round trip of %q changed the geometry", text)
		}
	}
}

func TestCoerceCoords(t *testing.T) {
	point, err := Coerce([]float64{3, 4}, FormatCoords, nil)
	if err != nil {
		t.Fatalf("point coercion failed: %v", err)
	}
	if point.Type() != "Point" {
		t.Errorf("expected Point, got %s", point.Type())
	}

	line, err := Coerce([][]float64{{0, 0}, {1, 1}}, FormatCoords, nil)
	if err != nil {
		t.Fatalf("line coercion failed: %v", err)
	}
	if line.Type() != "LineString" {
		t.Errorf("expected LineString, got %s", line.Type())
	}

	// An unclosed ring is closed implicitly.
	poly, err := Coerce([][][]float64{{{0, 0}, {2, 0}, {2, 2}, {0, 2}}}, FormatCoords, nil)
	if err != nil {
		t.Fatalf("polygon coercion failed: %v", err)
	}
	if poly.Type() != "Polygon" {
		t.Errorf("expected Polygon, got %s", poly.Type())
	}
	if math.Abs(poly.Area()-4) > 1e-9 {
		t.Errorf("expected area 4, got %v", poly.Area())
	}
}

func TestCoerceGeoJSONPinsWGS84(t *testing.T) {
	doc := []byte(`{"type":"Point","coordinates":[10,20]}`)
	g, err := Coerce(doc, FormatGeoJSON, nil)
	if err != nil {
		t.Fatalf("GeoJSON coercion failed: %v", err)
	}
	if g.Ref().SRID() != 4326 {
		t.Errorf("GeoJSON input should pin EPSG:4326, got %v", g.Ref())
	}
}

func TestCoerceGeoJSONFeatureUnwraps(t *testing.T) {
	doc := []byte(`{"type":"Feature","properties":{"name":"x"},"geometry":{"type":"Point","coordinates":[1,2]}}`)
	g, err := Coerce(doc, FormatGeoJSON, nil)
	if err != nil {
		t.Fatalf("Feature coercion failed: %v", err)
	}
	if g.Type() != "Point" {
		t.Errorf("expected the feature's geometry, got %s", g.Type())
	}
}

func TestCoerceUnrecognized(t *testing.T) {
	_, err := Coerce(struct{ X int }{1}, FormatAuto, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown input type")
	}
	var unrec *UnrecognizedFormatError
	if !errors.As(err, &unrec) {
		t.Fatalf("expected UnrecognizedFormatError, got %T: %v", err, err)
	}
}

func TestDistance(t *testing.T) {
	a, _ := FromWKT("POINT(0 0)", nil)
	b, _ := FromWKT("POINT(3 4)", nil)
	d, err := a.Distance(b)
	if err != nil {
		t.Fatalf("Distance failed: %v", err)
	}
	if math.Abs(d-5.0) > 1e-9 {
		t.Errorf("expected distance 5.0, got %v", d)
	}
}

func TestIntersectionOfOverlappingSquares(t *testing.T) {
	a, _ := FromWKT("POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))", nil)
	b, _ := FromWKT("POLYGON((1 1, 3 1, 3 3, 1 3, 1 1))", nil)
	got, err := a.Intersection(b)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	if math.Abs(got.Area()-1.0) > 1e-9 {
		t.Errorf("expected overlap area 1.0, got %v", got.Area())
	}
}

func TestIntersectionDisjointIsEmpty(t *testing.T) {
	a, _ := FromWKT("POINT(0 0)", nil)
	b, _ := FromWKT("POINT(10 10)", nil)
	got, err := a.Intersection(b)
	if err != nil {
		t.Fatalf("Intersection failed: %v", err)
	}
	if !got.IsEmpty() {
		t.Errorf("expected empty geometry, got %s", got.WKT())
	}
}

func TestRelateContainedFeature(t *testing.T) {
	outer, _ := FromWKT("POLYGON((0 0, 10 0, 10 10, 0 10, 0 0))", nil)
	inner, _ := FromWKT("POLYGON((2 2, 4 2, 4 4, 2 4, 2 2))", nil)

	contains, err := outer.Relate(PredContains, inner)
	if err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	if !contains {
		t.Error("outer should contain inner")
	}
	within, err := inner.Relate(PredWithin, outer)
	if err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	if !within {
		t.Error("inner should be within outer")
	}
}

func TestTransform(t *testing.T) {
	g, _ := FromWKT("POINT(10 53.5)", sref.FromEPSG(4326))
	out, err := g.Transform(sref.FromEPSG(3857))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if out.Ref().SRID() != 3857 {
		t.Errorf("expected reference 3857, got %v", out.Ref())
	}
	back, err := out.Transform(sref.FromEPSG(4326))
	if err != nil {
		t.Fatalf("inverse transform failed: %v", err)
	}
	d, err := back.Distance(g)
	if err != nil {
		t.Fatalf("Distance failed: %v", err)
	}
	if d > 1e-9 {
		t.Errorf("round trip drifted by %v", d)
	}
}

func TestBufferPoint(t *testing.T) {
	g, _ := FromWKT("POINT(0 0)", nil)
	buffered, err := g.Buffer(2)
	if err != nil {
		t.Fatalf("Buffer failed: %v", err)
	}
	// A 32-segment disc slightly underestimates the true circle area.
	want := math.Pi * 4
	if buffered.Area() > want || buffered.Area() < want*0.98 {
		t.Errorf("expected area near %v, got %v", want, buffered.Area())
	}
	contains, err := buffered.Relate(PredContains, g)
	if err != nil {
		t.Fatalf("Relate failed: %v", err)
	}
	if !contains {
		t.Error("buffer should contain its source point")
	}
}

func TestDiscRingClosesExactly(t *testing.T) {
	// Off-origin centers expose rounding drift between the first vertex and
	// one recomputed at the full angle; the ring must close bit for bit.
	rings := disc(orb.Point{2, 0}, 1)
	ring := rings[0]
	if ring[0] != ring[len(ring)-1] {
		t.Errorf("disc ring not closed: first %v, last %v", ring[0], ring[len(ring)-1])
	}
}

func TestBufferNegative(t *testing.T) {
	g, _ := FromWKT("POINT(0 0)", nil)
	if _, err := g.Buffer(-1); err == nil {
		t.Fatal("expected an error for a negative distance")
	}
}

func TestBufferLineCoversEndpoints(t *testing.T) {
	g, _ := FromWKT("LINESTRING(0 0, 10 0)", nil)
	buffered, err := g.Buffer(1)
	if err != nil {
		t.Fatalf("Buffer failed: %v", err)
	}
	start, _ := FromWKT("POINT(0 0)", nil)
	end, _ := FromWKT("POINT(10 0)", nil)
	for _, p := range []Geometry{start, end} {
		ok, err := buffered.Relate(PredContains, p)
		if err != nil {
			t.Fatalf("Relate failed: %v", err)
		}
		if !ok {
			t.Errorf("buffer should contain endpoint %s", p.WKT())
		}
	}
}

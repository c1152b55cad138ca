package sref

import (
	"errors"
	"math"
	"testing"
)

func TestParseEPSGInt(t *testing.T) {
	ref, err := Parse(4326, "")
	if err != nil {
		t.Fatalf("Parse(4326) failed: %v", err)
	}
	if ref.SRID() != 4326 {
		t.Errorf("Expected SRID=4326, got %d", ref.SRID())
	}
	if !ref.Resolvable() {
		t.Error("EPSG:4326 should be resolvable")
	}
}

func TestParseEPSGString(t *testing.T) {
	for _, input := range []string{"epsg:3857", "EPSG:3857", "3857"} {
		ref, err := Parse(input, "")
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", input, err)
		}
		if ref.SRID() != 3857 {
			t.Errorf("Parse(%q): expected SRID=3857, got %d", input, ref.SRID())
		}
	}
}

func TestParseWKT(t *testing.T) {
	ref, err := Parse(FromEPSG(4326).WKT(), "wkt")
	if err != nil {
		t.Fatalf("Parse(WKT) failed: %v", err)
	}
	if ref.SRID() != 4326 {
		t.Errorf("Expected SRID=4326, got %d", ref.SRID())
	}
}

func TestParseProj4(t *testing.T) {
	cases := []struct {
		input string
		srid  int
	}{
		{"+init=epsg:3857", 3857},
		{"+proj=longlat +datum=WGS84 +no_defs", 4326},
		{"+proj=merc +a=6378137 +b=6378137 +units=m +no_defs", 3857},
	}
	for _, tc := range cases {
		ref, err := Parse(tc.input, "proj4")
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", tc.input, err)
		}
		if ref.SRID() != tc.srid {
			t.Errorf("Parse(%q): expected SRID=%d, got %d", tc.input, tc.srid, ref.SRID())
		}
	}
}

func TestWKTRoundTrip(t *testing.T) {
	for _, code := range []int{4326, 3857} {
		ref, err := Parse(FromEPSG(code).WKT(), "wkt")
		if err != nil {
			t.Fatalf("round-trip of EPSG:%d failed: %v", code, err)
		}
		if ref.SRID() != code {
			t.Errorf("round-trip of EPSG:%d yielded SRID=%d", code, ref.SRID())
		}
	}
}

func TestTransformIdentity(t *testing.T) {
	fn, err := Transform(FromEPSG(4326), FromEPSG(4326))
	if err != nil {
		t.Fatalf("identity transform failed: %v", err)
	}
	x, y := fn(12.5, -45.25)
	if x != 12.5 || y != -45.25 {
		t.Errorf("identity transform moved the point: (%v, %v)", x, y)
	}
}

func TestTransformWebMercatorRoundTrip(t *testing.T) {
	forward, err := Transform(FromEPSG(4326), FromEPSG(3857))
	if err != nil {
		t.Fatalf("4326->3857 transform failed: %v", err)
	}
	back, err := Transform(FromEPSG(3857), FromEPSG(4326))
	if err != nil {
		t.Fatalf("3857->4326 transform failed: %v", err)
	}

	lon, lat := 10.0, 53.5
	x, y := forward(lon, lat)
	if math.Abs(x-1113194.91) > 1.0 {
		t.Errorf("forward x: expected ~1113194.91, got %v", x)
	}
	lon2, lat2 := back(x, y)
	if math.Abs(lon2-lon) > 1e-9 || math.Abs(lat2-lat) > 1e-9 {
		t.Errorf("round trip drifted: (%v, %v)", lon2, lat2)
	}
}

func TestTransformOriginIsFixed(t *testing.T) {
	forward, err := Transform(FromEPSG(4326), FromEPSG(3857))
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}
	x, y := forward(0, 0)
	if math.Abs(x) > 1e-9 || math.Abs(y) > 1e-9 {
		t.Errorf("origin should map to origin, got (%v, %v)", x, y)
	}
}

func TestTransformMismatch(t *testing.T) {
	_, err := Transform(FromEPSG(4326), FromEPSG(27700))
	if err == nil {
		t.Fatal("expected a mismatch error for an unresolvable target")
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected MismatchError, got %T: %v", err, err)
	}
	if mismatch.To != "EPSG:27700" {
		t.Errorf("expected To=EPSG:27700, got %s", mismatch.To)
	}
}

func TestEqual(t *testing.T) {
	if !FromEPSG(4326).Equal(FromEPSG(4326)) {
		t.Error("same code should be equal")
	}
	if FromEPSG(4326).Equal(FromEPSG(3857)) {
		t.Error("different codes should not be equal")
	}
	if FromEPSG(4326).Equal(nil) {
		t.Error("nil reference should not be equal")
	}
}

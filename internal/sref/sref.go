// Package sref handles spatial reference descriptors and coordinate
// transforms between them.
//
// References are keyed by authority code (EPSG). Transforms route through
// WGS-84 longitude/latitude, so any pair of supported references can be
// converted without a dedicated pairwise implementation.
package sref

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Reference identifies the coordinate system a geometry's coordinates are
// expressed in.
//
// A Reference with no registered projection still carries its authority code
// and can be attached to geometries, compared, and serialized; it just cannot
// participate in coordinate transforms.
type Reference struct {
	Authority string
	Code      int
	proj      Projection
}

// Projection converts between a coordinate system and WGS-84
// longitude/latitude in decimal degrees.
type Projection interface {
	ToWGS84(x, y float64) (lon, lat float64)
	FromWGS84(lon, lat float64) (x, y float64)
}

// MismatchError indicates a coordinate transform was required between two
// references but at least one of them is unresolvable.
type MismatchError struct {
	From string
	To   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("spatial reference mismatch: cannot transform %s to %s", e.From, e.To)
}

// FromEPSG returns the Reference for an EPSG code.
func FromEPSG(code int) *Reference {
	return &Reference{Authority: "EPSG", Code: code, proj: projectionFor(code)}
}

func projectionFor(code int) Projection {
	switch code {
	case 4326:
		return wgs84{}
	case 3857, 900913:
		return webMercator{}
	}
	return nil
}

// SRID returns the numeric authority code, or 0 for a nil reference.
func (r *Reference) SRID() int {
	if r == nil {
		return 0
	}
	return r.Code
}

// Resolvable reports whether the reference can participate in transforms.
func (r *Reference) Resolvable() bool {
	return r != nil && r.proj != nil
}

// Equal reports whether two references describe the same coordinate system.
// Two nil references are equal; nil never equals non-nil.
func (r *Reference) Equal(other *Reference) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Authority == other.Authority && r.Code == other.Code
}

func (r *Reference) String() string {
	if r == nil {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", r.Authority, r.Code)
}

// Transform returns a coordinate-pair mapping from one reference to another.
// Identical references return an identity mapping. A transform between
// differing references where either side is unresolvable fails with
// MismatchError.
func Transform(from, to *Reference) (func(x, y float64) (float64, float64), error) {
	if from.Equal(to) {
		return func(x, y float64) (float64, float64) { return x, y }, nil
	}
	if !from.Resolvable() || !to.Resolvable() {
		return nil, &MismatchError{From: from.String(), To: to.String()}
	}
	return func(x, y float64) (float64, float64) {
		lon, lat := from.proj.ToWGS84(x, y)
		return to.proj.FromWGS84(lon, lat)
	}, nil
}

var (
	epsgPrefix = regexp.MustCompile(`(?i)^(?:urn:ogc:def:crs:)?epsg:+(\d+)$`)
	authority  = regexp.MustCompile(`AUTHORITY\s*\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
)

// Parse builds a Reference from a caller-supplied descriptor. Supported
// formats are "epsg" (integer code, "4326", or "EPSG:4326"), "wkt" (the
// trailing AUTHORITY node is read), and "proj4". An empty format sniffs the
// value. A *Reference passes through unchanged, nil input yields nil.
func Parse(value any, format string) (*Reference, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *Reference:
		return v, nil
	case int:
		return FromEPSG(v), nil
	case int32:
		return FromEPSG(int(v)), nil
	case int64:
		return FromEPSG(int(v)), nil
	case float64:
		return FromEPSG(int(v)), nil
	case string:
		return parseString(v, strings.ToLower(format))
	}
	return nil, fmt.Errorf("unsupported spatial reference value of type %T", value)
}

func parseString(value, format string) (*Reference, error) {
	value = strings.TrimSpace(value)
	switch format {
	case "", "epsg":
		if m := epsgPrefix.FindStringSubmatch(value); m != nil {
			code, _ := strconv.Atoi(m[1])
			return FromEPSG(code), nil
		}
		if code, err := strconv.Atoi(value); err == nil {
			return FromEPSG(code), nil
		}
		if format == "epsg" {
			return nil, fmt.Errorf("invalid EPSG descriptor %q", value)
		}
		// Sniff the remaining encodings.
		if strings.HasPrefix(value, "+") {
			return parseString(value, "proj4")
		}
		return parseString(value, "wkt")
	case "wkt":
		if m := authority.FindAllStringSubmatch(value, -1); m != nil {
			code, _ := strconv.Atoi(m[len(m)-1][1])
			return FromEPSG(code), nil
		}
		return nil, fmt.Errorf("no EPSG authority found in spatial reference WKT")
	case "proj4":
		return parseProj4(value)
	}
	return nil, fmt.Errorf("unsupported spatial reference format %q", format)
}

func parseProj4(value string) (*Reference, error) {
	if idx := strings.Index(value, "+init=epsg:"); idx >= 0 {
		rest := value[idx+len("+init=epsg:"):]
		if sp := strings.IndexByte(rest, ' '); sp >= 0 {
			rest = rest[:sp]
		}
		code, err := strconv.Atoi(rest)
		if err != nil {
			return nil, fmt.Errorf("invalid +init directive in proj4 string %q", value)
		}
		return FromEPSG(code), nil
	}
	switch {
	case strings.Contains(value, "+proj=longlat"):
		return FromEPSG(4326), nil
	case strings.Contains(value, "+proj=merc") && strings.Contains(value, "+a=6378137"):
		return FromEPSG(3857), nil
	}
	return nil, fmt.Errorf("unrecognized proj4 string %q", value)
}

const earthRadius = 6378137.0

type wgs84 struct{}

func (wgs84) ToWGS84(x, y float64) (float64, float64)       { return x, y }
func (wgs84) FromWGS84(lon, lat float64) (float64, float64) { return lon, lat }

type webMercator struct{}

func (webMercator) ToWGS84(x, y float64) (float64, float64) {
	lon := x / earthRadius * 180 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2) * 180 / math.Pi
	return lon, lat
}

func (webMercator) FromWGS84(lon, lat float64) (float64, float64) {
	x := lon * math.Pi / 180 * earthRadius
	y := math.Log(math.Tan(math.Pi/4+lat*math.Pi/360)) * earthRadius
	return x, y
}

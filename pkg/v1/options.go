package easyogr

import (
	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/sref"
)

// GeometryFormat pins the representation of a raw geometry input.
type GeometryFormat = geometry.Format

const (
	FormatAuto    = geometry.FormatAuto
	FormatNative  = geometry.FormatNative
	FormatWKT     = geometry.FormatWKT
	FormatGeoJSON = geometry.FormatGeoJSON
	FormatCoords  = geometry.FormatCoords
)

// SpatialRef describes a coordinate reference system by EPSG authority code.
type SpatialRef = sref.Reference

// coerceConfig collects the optional knobs of geometry coercion.
type coerceConfig struct {
	format     GeometryFormat
	spatialRef any
	srFormat   string
}

// CoerceOption adjusts how a raw geometry input is interpreted.
type CoerceOption func(*coerceConfig)

// WithFormat pins the input representation instead of sniffing it.
func WithFormat(format GeometryFormat) CoerceOption {
	return func(c *coerceConfig) { c.format = format }
}

// WithSpatialRef supplies the spatial reference of the input: an EPSG code,
// a *SpatialRef, or a WKT / proj4 / "epsg:n" string. When the input already
// carries a different resolvable reference it is reprojected, never
// relabeled.
func WithSpatialRef(ref any) CoerceOption {
	return func(c *coerceConfig) { c.spatialRef = ref }
}

// WithSRFormat pins how the WithSpatialRef value is parsed ("epsg", "wkt",
// "proj4"); empty sniffs.
func WithSRFormat(format string) CoerceOption {
	return func(c *coerceConfig) { c.srFormat = format }
}

func applyCoerceOptions(opts []CoerceOption) *coerceConfig {
	c := &coerceConfig{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *coerceConfig) reference() (*SpatialRef, error) {
	if c.spatialRef == nil {
		return nil, nil
	}
	return sref.Parse(c.spatialRef, c.srFormat)
}

// ResolveOptions configures source resolution.
type ResolveOptions struct {
	// Driver forces a registered driver name instead of extension inference.
	Driver string
	// Layer names the layer within a multi-layer source.
	Layer string
}

// OutputSpec names where a generator or layer operation writes its result.
type OutputSpec struct {
	Path   string
	Driver string
	Layer  string
	// SpatialRef, when set, reprojects output features into this reference.
	SpatialRef any
	SRFormat   string
}

// Options configures the one-call geoprocessing functions. The zero value
// (or nil) runs the operation over whole layers with full schemas.
type Options struct {
	// Fields restricts the output schema to these input fields.
	Fields []string
	// Clause filters input features by attribute before the operation.
	Clause string
	// Intersects filters input features to those intersecting this geometry,
	// given in any coercible form.
	Intersects any

	InLayer  string
	OpLayer  string
	OutLayer string

	InDriver  string
	OpDriver  string
	OutDriver string

	// SpatialRef reprojects output features into this reference.
	SpatialRef any
	SRFormat   string
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return &Options{}
	}
	return o
}

func (o *Options) selection() SelectionSpec {
	return SelectionSpec{
		Clause:     o.Clause,
		Intersects: o.Intersects,
		Fields:     o.Fields,
	}
}

func (o *Options) output(path string) OutputSpec {
	return OutputSpec{
		Path:       path,
		Driver:     o.OutDriver,
		Layer:      o.OutLayer,
		SpatialRef: o.SpatialRef,
		SRFormat:   o.SRFormat,
	}
}

package driver

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/sref"
)

// The GeoJSON driver reads and writes FeatureCollection documents. GeoJSON
// carries no reference of its own, so layers are pinned to EPSG:4326.
//
// JSON objects do not preserve key order, so the layer schema lists property
// names lexically sorted.

func init() {
	Register(&geojsonDriver{})
}

type geojsonDriver struct{}

func (d *geojsonDriver) Name() string { return "GeoJSON" }

func (d *geojsonDriver) Open(path string) (DataSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open geojson %s: %w", path, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("open geojson %s: %w", path, err)
	}
	return &geojsonSource{path: path, fc: fc}, nil
}

func (d *geojsonDriver) Create(path string) (DataSource, error) {
	return &geojsonSource{path: path, fc: geojson.NewFeatureCollection()}, nil
}

type geojsonSource struct {
	path string
	fc   *geojson.FeatureCollection
}

func (s *geojsonSource) Name() string { return s.path }

func (s *geojsonSource) LayerNames() ([]string, error) {
	return []string{LayerNameFromPath(s.path)}, nil
}

func (s *geojsonSource) Layer(name string) (Layer, error) {
	if want := LayerNameFromPath(s.path); name != want {
		return nil, fmt.Errorf("geojson source %s has no layer %q", s.path, name)
	}
	return &geojsonLayer{src: s}, nil
}

func (s *geojsonSource) CreateLayer(meta LayerMeta) (Writer, error) {
	return &geojsonWriter{src: s, meta: meta, fc: geojson.NewFeatureCollection()}, nil
}

func (s *geojsonSource) Close() error { return nil }

type geojsonLayer struct {
	src *geojsonSource
}

func (l *geojsonLayer) Meta() LayerMeta {
	meta := LayerMeta{
		Name:   LayerNameFromPath(l.src.path),
		Schema: geojsonSchema(l.src.fc),
		Ref:    sref.FromEPSG(4326),
	}
	for _, f := range l.src.fc.Features {
		if f.Geometry != nil {
			meta.GeometryType = f.Geometry.GeoJSONType()
			break
		}
	}
	return meta
}

// geojsonSchema unions property keys across every feature, sorted lexically.
func geojsonSchema(fc *geojson.FeatureCollection) Schema {
	types := map[string]FieldType{}
	for _, f := range fc.Features {
		for key, value := range f.Properties {
			if _, seen := types[key]; seen && types[key] != "" {
				continue
			}
			types[key] = geojsonFieldType(value)
		}
	}
	names := make([]string, 0, len(types))
	for name := range types {
		names = append(names, name)
	}
	sort.Strings(names)
	schema := make(Schema, 0, len(names))
	for _, name := range names {
		ft := types[name]
		if ft == "" {
			ft = FieldString
		}
		schema = append(schema, Field{Name: name, Type: ft})
	}
	return schema
}

func geojsonFieldType(value any) FieldType {
	switch value.(type) {
	case float64, float32, int, int64:
		return FieldReal
	case nil:
		return ""
	default:
		return FieldString
	}
}

func (l *geojsonLayer) Open() (Cursor, error) {
	return &geojsonCursor{
		features: l.src.fc.Features,
		schema:   l.Meta().Schema,
	}, nil
}

type geojsonCursor struct {
	features []*geojson.Feature
	schema   Schema
	pos      int
}

func (c *geojsonCursor) Next() (*Record, error) {
	if c.pos >= len(c.features) {
		return nil, io.EOF
	}
	f := c.features[c.pos]
	fid := c.pos
	c.pos++

	geomVal := geometry.Empty(sref.FromEPSG(4326))
	if f.Geometry != nil {
		var err error
		geomVal, err = geometry.FromOrb(f.Geometry, sref.FromEPSG(4326))
		if err != nil {
			return nil, err
		}
	}
	values := make([]any, len(c.schema))
	for i, field := range c.schema {
		if v, ok := f.Properties[field.Name]; ok {
			values[i] = v
		}
	}
	return &Record{FID: fid, Geom: geomVal, Values: values}, nil
}

func (c *geojsonCursor) Close() error { return nil }

type geojsonWriter struct {
	src  *geojsonSource
	meta LayerMeta
	fc   *geojson.FeatureCollection
}

func (w *geojsonWriter) Write(rec *Record) error {
	o, err := rec.Geom.Orb()
	if err != nil {
		return err
	}
	f := &geojson.Feature{Type: "Feature", Geometry: o, Properties: geojson.Properties{}}
	for i, field := range w.meta.Schema {
		if i < len(rec.Values) {
			f.Properties[field.Name] = rec.Values[i]
		}
	}
	w.fc.Append(f)
	return nil
}

// Close marshals the collection and writes the file.
func (w *geojsonWriter) Close() error {
	data, err := w.fc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("write geojson %s: %w", w.src.path, err)
	}
	if err := os.WriteFile(w.src.path, data, 0o644); err != nil {
		return fmt.Errorf("write geojson %s: %w", w.src.path, err)
	}
	w.src.fc = w.fc
	return nil
}

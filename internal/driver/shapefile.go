package driver

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"

	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/sref"
)

// The Shapefile driver wraps go-shp. The spatial reference travels in a .prj
// sidecar next to the .shp file; a missing sidecar leaves the layer reference
// unset. Shapefiles hold exactly one geometry type per file, so output
// writers pick the shape type from the layer metadata or, failing that, from
// the first written record.

func init() {
	Register(&shapefileDriver{})
}

type shapefileDriver struct{}

func (d *shapefileDriver) Name() string { return "Shapefile" }

func (d *shapefileDriver) Open(path string) (DataSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	return &shapefileSource{path: path}, nil
}

func (d *shapefileDriver) Create(path string) (DataSource, error) {
	return &shapefileSource{path: path}, nil
}

type shapefileSource struct {
	path string
}

func (s *shapefileSource) Name() string { return s.path }

func (s *shapefileSource) LayerNames() ([]string, error) {
	return []string{LayerNameFromPath(s.path)}, nil
}

func (s *shapefileSource) Layer(name string) (Layer, error) {
	if want := LayerNameFromPath(s.path); name != want {
		return nil, fmt.Errorf("shapefile %s has no layer %q", s.path, name)
	}
	return &shapefileLayer{src: s}, nil
}

func (s *shapefileSource) CreateLayer(meta LayerMeta) (Writer, error) {
	return &shapefileWriter{src: s, meta: meta}, nil
}

func (s *shapefileSource) Close() error { return nil }

// prjPath swaps the .shp extension for .prj.
func prjPath(path string) string {
	return strings.TrimSuffix(path, ".shp") + ".prj"
}

func readSidecarRef(path string) *sref.Reference {
	data, err := os.ReadFile(prjPath(path))
	if err != nil {
		return nil
	}
	ref, err := sref.Parse(string(data), "wkt")
	if err != nil {
		return nil
	}
	return ref
}

type shapefileLayer struct {
	src *shapefileSource
}

func (l *shapefileLayer) Meta() LayerMeta {
	meta := LayerMeta{
		Name: LayerNameFromPath(l.src.path),
		Ref:  readSidecarRef(l.src.path),
	}
	r, err := shp.Open(l.src.path)
	if err != nil {
		return meta
	}
	defer r.Close()
	meta.GeometryType = shapeTypeName(r.GeometryType)
	for _, f := range r.Fields() {
		meta.Schema = append(meta.Schema, dbfField(f))
	}
	return meta
}

func (l *shapefileLayer) Open() (Cursor, error) {
	r, err := shp.Open(l.src.path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", l.src.path, err)
	}
	return &shapefileCursor{
		path:   l.src.path,
		reader: r,
		fields: r.Fields(),
		ref:    readSidecarRef(l.src.path),
	}, nil
}

type shapefileCursor struct {
	path   string
	reader *shp.Reader
	fields []shp.Field
	ref    *sref.Reference
	pos    int
}

func (c *shapefileCursor) Next() (*Record, error) {
	if c.reader == nil || !c.reader.Next() {
		if c.reader != nil {
			if err := c.reader.Err(); err != nil && err != io.EOF {
				return nil, fmt.Errorf("read shapefile %s: %w", c.path, err)
			}
		}
		return nil, io.EOF
	}
	n, shape := c.reader.Shape()
	o := shapeToOrb(shape)

	geomVal := geometry.Empty(c.ref)
	if o != nil {
		var err error
		geomVal, err = geometry.FromOrb(o, c.ref)
		if err != nil {
			return nil, err
		}
	}
	values := make([]any, len(c.fields))
	for i, f := range c.fields {
		values[i] = dbfValue(f, c.reader.ReadAttribute(n, i))
	}
	c.pos = n + 1
	return &Record{FID: n, Geom: geomVal, Values: values}, nil
}

func (c *shapefileCursor) Close() error {
	if c.reader == nil {
		return nil
	}
	err := c.reader.Close()
	c.reader = nil
	return err
}

type shapefileWriter struct {
	src    *shapefileSource
	meta   LayerMeta
	writer *shp.Writer
	row    int
}

func (w *shapefileWriter) Write(rec *Record) error {
	if w.writer == nil {
		st, err := w.shapeType(rec)
		if err != nil {
			return err
		}
		sw, err := shp.Create(w.src.path, st)
		if err != nil {
			return fmt.Errorf("create shapefile %s: %w", w.src.path, err)
		}
		sw.SetFields(dbfSchema(w.meta.Schema))
		w.writer = sw
	}
	shape, err := orbToShape(rec.Geom)
	if err != nil {
		return err
	}
	w.writer.Write(shape)
	for i := range w.meta.Schema {
		var value any
		if i < len(rec.Values) {
			value = rec.Values[i]
		}
		if value == nil {
			value = ""
		}
		if err := w.writer.WriteAttribute(w.row, i, value); err != nil {
			return fmt.Errorf("write shapefile %s attribute %d: %w", w.src.path, i, err)
		}
	}
	w.row++
	return nil
}

func (w *shapefileWriter) shapeType(rec *Record) (shp.ShapeType, error) {
	name := w.meta.GeometryType
	if name == "" {
		name = rec.Geom.Type()
	}
	switch name {
	case "Point":
		return shp.POINT, nil
	case "MultiPoint":
		return shp.MULTIPOINT, nil
	case "LineString", "MultiLineString":
		return shp.POLYLINE, nil
	case "Polygon", "MultiPolygon":
		return shp.POLYGON, nil
	case "":
		return shp.NULL, nil
	}
	return shp.NULL, fmt.Errorf("shapefile cannot store geometry type %q", name)
}

// Close finalizes the .shp/.shx/.dbf trio and writes the .prj sidecar. An
// empty layer still produces a file, typed from the metadata.
func (w *shapefileWriter) Close() error {
	if w.writer == nil {
		st, err := w.shapeType(&Record{Geom: geometry.Empty(nil)})
		if err != nil {
			return err
		}
		sw, err := shp.Create(w.src.path, st)
		if err != nil {
			return fmt.Errorf("create shapefile %s: %w", w.src.path, err)
		}
		sw.SetFields(dbfSchema(w.meta.Schema))
		w.writer = sw
	}
	w.writer.Close()
	// go-shp derives the attribute table name by dropping ".shp" including
	// the dot, so the DBF lands at <base>dbf where no reader finds it.
	base := strings.TrimSuffix(w.src.path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return fmt.Errorf("place dbf for %s: %w", w.src.path, err)
		}
	}
	if w.meta.Ref != nil {
		if err := os.WriteFile(prjPath(w.src.path), []byte(w.meta.Ref.WKT()), 0o644); err != nil {
			return fmt.Errorf("write prj sidecar for %s: %w", w.src.path, err)
		}
	}
	return nil
}

func shapeTypeName(st shp.ShapeType) string {
	switch st {
	case shp.POINT, shp.POINTZ, shp.POINTM:
		return "Point"
	case shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		return "MultiPoint"
	case shp.POLYLINE, shp.POLYLINEZ, shp.POLYLINEM:
		return "LineString"
	case shp.POLYGON, shp.POLYGONZ, shp.POLYGONM:
		return "Polygon"
	}
	return ""
}

func dbfField(f shp.Field) Field {
	out := Field{Name: f.String(), Width: int(f.Size), Precision: int(f.Precision)}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			out.Type = FieldInteger
		} else {
			out.Type = FieldReal
		}
	case 'F':
		out.Type = FieldReal
	case 'D':
		out.Type = FieldDate
	default:
		out.Type = FieldString
	}
	return out
}

func dbfValue(f shp.Field, raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				return n
			}
			return nil
		}
		if x, err := strconv.ParseFloat(raw, 64); err == nil {
			return x
		}
		return nil
	case 'F':
		if x, err := strconv.ParseFloat(raw, 64); err == nil {
			return x
		}
		return nil
	}
	return raw
}

func dbfSchema(schema Schema) []shp.Field {
	fields := make([]shp.Field, 0, len(schema))
	for _, f := range schema {
		width := f.Width
		switch f.Type {
		case FieldInteger:
			if width == 0 {
				width = 18
			}
			fields = append(fields, shp.NumberField(f.Name, uint8(width)))
		case FieldReal:
			if width == 0 {
				width = 24
			}
			precision := f.Precision
			if precision == 0 {
				precision = 8
			}
			fields = append(fields, shp.FloatField(f.Name, uint8(width), uint8(precision)))
		case FieldDate:
			fields = append(fields, shp.DateField(f.Name))
		default:
			if width == 0 {
				width = 64
			}
			fields = append(fields, shp.StringField(f.Name, uint8(width)))
		}
	}
	return fields
}

func partsOf(points []shp.Point, parts []int32) [][]shp.Point {
	if len(parts) == 0 {
		return [][]shp.Point{points}
	}
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		out = append(out, points[start:end])
	}
	return out
}

func shapeToOrb(shape shp.Shape) orb.Geometry {
	switch v := shape.(type) {
	case *shp.Point:
		return orb.Point{v.X, v.Y}
	case *shp.MultiPoint:
		mp := make(orb.MultiPoint, len(v.Points))
		for i, p := range v.Points {
			mp[i] = orb.Point{p.X, p.Y}
		}
		return mp
	case *shp.PolyLine:
		parts := partsOf(v.Points, v.Parts)
		if len(parts) == 1 {
			return lineOf(parts[0])
		}
		mls := make(orb.MultiLineString, len(parts))
		for i, part := range parts {
			mls[i] = lineOf(part)
		}
		return mls
	case *shp.Polygon:
		return ringsToPolygons(partsOf(v.Points, v.Parts))
	}
	return nil
}

func lineOf(points []shp.Point) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = orb.Point{p.X, p.Y}
	}
	return ls
}

// ringsToPolygons groups shapefile rings into polygons. Outer rings are
// clockwise in the shapefile convention; each one starts a new polygon and
// counter-clockwise rings become holes of the current one.
func ringsToPolygons(parts [][]shp.Point) orb.Geometry {
	var polys orb.MultiPolygon
	var current orb.Polygon
	for _, part := range parts {
		ring := orb.Ring(lineOf(part))
		if ring.Orientation() == orb.CW || current == nil {
			if current != nil {
				polys = append(polys, current)
			}
			current = orb.Polygon{ring}
			continue
		}
		current = append(current, ring)
	}
	if current != nil {
		polys = append(polys, current)
	}
	if len(polys) == 1 {
		return polys[0]
	}
	return polys
}

func orbToShape(g geometry.Geometry) (shp.Shape, error) {
	if g.IsEmpty() {
		return &shp.Null{}, nil
	}
	o, err := g.Orb()
	if err != nil {
		return nil, err
	}
	switch v := o.(type) {
	case orb.Point:
		return &shp.Point{X: v[0], Y: v[1]}, nil
	case orb.MultiPoint:
		return multiPointShape(v), nil
	case orb.LineString:
		return shp.NewPolyLine([][]shp.Point{shpPoints(v)}), nil
	case orb.MultiLineString:
		parts := make([][]shp.Point, len(v))
		for i, ls := range v {
			parts[i] = shpPoints(ls)
		}
		return shp.NewPolyLine(parts), nil
	case orb.Polygon:
		return polygonShape(orb.MultiPolygon{v}), nil
	case orb.MultiPolygon:
		return polygonShape(v), nil
	}
	return nil, fmt.Errorf("shapefile cannot store geometry type %q", g.Type())
}

func shpPoints(ls orb.LineString) []shp.Point {
	pts := make([]shp.Point, len(ls))
	for i, p := range ls {
		pts[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return pts
}

func multiPointShape(mp orb.MultiPoint) *shp.MultiPoint {
	bound := mp.Bound()
	points := make([]shp.Point, len(mp))
	for i, p := range mp {
		points[i] = shp.Point{X: p[0], Y: p[1]}
	}
	return &shp.MultiPoint{
		Box:       shp.Box{MinX: bound.Min[0], MinY: bound.Min[1], MaxX: bound.Max[0], MaxY: bound.Max[1]},
		NumPoints: int32(len(points)),
		Points:    points,
	}
}

// polygonShape writes all rings as parts of one polygon record, outer rings
// clockwise and holes counter-clockwise.
func polygonShape(mp orb.MultiPolygon) *shp.Polygon {
	var parts [][]shp.Point
	for _, poly := range mp {
		for i, ring := range poly {
			r := make(orb.Ring, len(ring))
			copy(r, ring)
			if i == 0 && r.Orientation() == orb.CCW {
				r.Reverse()
			}
			if i > 0 && r.Orientation() == orb.CW {
				r.Reverse()
			}
			parts = append(parts, shpPoints(orb.LineString(r)))
		}
	}
	pl := shp.NewPolyLine(parts)
	poly := shp.Polygon(*pl)
	return &poly
}

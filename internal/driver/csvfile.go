package driver

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ssast/easyogr/internal/geometry"
)

// The CSV driver reads and writes delimited text with geometries in a WKT
// column. The geometry column is found by name (WKT, case-insensitive);
// every other column is a string field. CSV carries no spatial reference,
// so layer metadata leaves it unset.

const csvGeometryColumn = "WKT"

func init() {
	Register(&csvDriver{})
}

type csvDriver struct{}

func (d *csvDriver) Name() string { return "CSV" }

func (d *csvDriver) Open(path string) (DataSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("open csv %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("open csv %s: missing header row", path)
	}
	return &csvSource{path: path, header: rows[0], rows: rows[1:]}, nil
}

func (d *csvDriver) Create(path string) (DataSource, error) {
	return &csvSource{path: path}, nil
}

type csvSource struct {
	path   string
	header []string
	rows   [][]string
}

func (s *csvSource) Name() string { return s.path }

func (s *csvSource) LayerNames() ([]string, error) {
	return []string{LayerNameFromPath(s.path)}, nil
}

func (s *csvSource) Layer(name string) (Layer, error) {
	if want := LayerNameFromPath(s.path); name != want {
		return nil, fmt.Errorf("csv source %s has no layer %q", s.path, name)
	}
	return &csvLayer{src: s}, nil
}

func (s *csvSource) CreateLayer(meta LayerMeta) (Writer, error) {
	return &csvWriter{src: s, meta: meta}, nil
}

func (s *csvSource) Close() error { return nil }

type csvLayer struct {
	src *csvSource
}

func (l *csvLayer) Meta() LayerMeta {
	schema := make(Schema, 0, len(l.src.header))
	for _, name := range l.src.header {
		if strings.EqualFold(name, csvGeometryColumn) {
			continue
		}
		schema = append(schema, Field{Name: name, Type: FieldString})
	}
	return LayerMeta{Name: LayerNameFromPath(l.src.path), Schema: schema}
}

func (l *csvLayer) geometryColumn() int {
	for i, name := range l.src.header {
		if strings.EqualFold(name, csvGeometryColumn) {
			return i
		}
	}
	return -1
}

func (l *csvLayer) Open() (Cursor, error) {
	return &csvCursor{layer: l, geomCol: l.geometryColumn()}, nil
}

type csvCursor struct {
	layer   *csvLayer
	geomCol int
	pos     int
}

func (c *csvCursor) Next() (*Record, error) {
	if c.pos >= len(c.layer.src.rows) {
		return nil, io.EOF
	}
	row := c.layer.src.rows[c.pos]
	fid := c.pos
	c.pos++

	geomVal := geometry.Empty(nil)
	if c.geomCol >= 0 && c.geomCol < len(row) && strings.TrimSpace(row[c.geomCol]) != "" {
		var err error
		geomVal, err = geometry.FromWKT(row[c.geomCol], nil)
		if err != nil {
			return nil, fmt.Errorf("csv %s row %d: %w", c.layer.src.path, fid, err)
		}
	}
	var values []any
	for i, cell := range row {
		if i == c.geomCol {
			continue
		}
		values = append(values, cell)
	}
	return &Record{FID: fid, Geom: geomVal, Values: values}, nil
}

func (c *csvCursor) Close() error { return nil }

type csvWriter struct {
	src  *csvSource
	meta LayerMeta
	rows [][]string
}

func (w *csvWriter) Write(rec *Record) error {
	row := make([]string, 0, len(w.meta.Schema)+1)
	if rec.Geom.IsEmpty() {
		row = append(row, "")
	} else {
		row = append(row, rec.Geom.WKT())
	}
	for i := range w.meta.Schema {
		if i < len(rec.Values) && rec.Values[i] != nil {
			row = append(row, fmt.Sprintf("%v", rec.Values[i]))
		} else {
			row = append(row, "")
		}
	}
	w.rows = append(w.rows, row)
	return nil
}

func (w *csvWriter) Close() error {
	f, err := os.Create(w.src.path)
	if err != nil {
		return fmt.Errorf("write csv %s: %w", w.src.path, err)
	}
	cw := csv.NewWriter(f)
	header := append([]string{csvGeometryColumn}, w.meta.Schema.Names()...)
	if err := cw.Write(header); err != nil {
		f.Close()
		return err
	}
	if err := cw.WriteAll(w.rows); err != nil {
		f.Close()
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return err
	}
	w.src.header = header
	w.src.rows = w.rows
	return f.Close()
}

// Package driver defines the data-source contracts the convenience layer
// sits on top of, the driver registry with its extension table, and the
// built-in drivers: Shapefile, GeoJSON, SQLite, CSV and Memory.
package driver

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/sref"
)

// FieldType describes an attribute column.
type FieldType string

const (
	FieldInteger FieldType = "Integer"
	FieldReal    FieldType = "Real"
	FieldString  FieldType = "String"
	FieldDate    FieldType = "Date"
	FieldBinary  FieldType = "Binary"
)

// Field is one attribute column definition.
type Field struct {
	Name      string
	Type      FieldType
	Width     int
	Precision int
}

// Schema is the ordered attribute column set of a layer.
type Schema []Field

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of a field by case-insensitive name, or -1.
func (s Schema) Index(name string) int {
	for i, f := range s {
		if strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Project returns the sub-schema for the given field names, preserving the
// requested order. Unknown names fail.
func (s Schema) Project(fields []string) (Schema, error) {
	out := make(Schema, 0, len(fields))
	for _, name := range fields {
		i := s.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("field %q not present in layer schema", name)
		}
		out = append(out, s[i])
	}
	return out, nil
}

// Record is one feature as it crosses the driver boundary: geometry plus
// attribute values aligned with the layer schema.
type Record struct {
	FID    int
	Geom   geometry.Geometry
	Values []any
}

// LayerMeta describes a layer independent of its records.
type LayerMeta struct {
	Name         string
	Schema       Schema
	GeometryType string
	Ref          *sref.Reference
}

// Cursor is a forward-only record reader. Next returns io.EOF after the last
// record. Cursors must be closed; closing twice is safe.
type Cursor interface {
	Next() (*Record, error)
	Close() error
}

// Layer is a named, readable feature collection within a data source. Open
// returns a fresh cursor each call, so iteration is restartable.
type Layer interface {
	Meta() LayerMeta
	Open() (Cursor, error)
}

// Writer receives the records of one output layer. Close flushes and
// finalizes the layer; a layer is not durable until Close returns.
type Writer interface {
	Write(rec *Record) error
	Close() error
}

// DataSource is an opened file or connection exposing one or more layers.
type DataSource interface {
	Name() string
	LayerNames() ([]string, error)
	Layer(name string) (Layer, error)
	// CreateLayer creates (or replaces) an output layer. Single-layer
	// formats accept exactly one layer per data source.
	CreateLayer(meta LayerMeta) (Writer, error)
	Close() error
}

// Driver opens data sources of one format. Open requires the source to
// exist; Create may build a new one.
type Driver interface {
	Name() string
	Open(path string) (DataSource, error)
	Create(path string) (DataSource, error)
}

var registry = map[string]Driver{}

// extensionTable maps file extensions to driver names. Connection strings
// without a recognized extension require an explicit driver.
var extensionTable = map[string]string{
	".shp":     "Shapefile",
	".geojson": "GeoJSON",
	".json":    "GeoJSON",
	".sqlite":  "SQLite",
	".db":      "SQLite",
	".gpkg":    "SQLite",
	".csv":     "CSV",
}

// Register adds a driver to the registry. Built-in drivers register from
// their init functions.
func Register(d Driver) {
	registry[strings.ToLower(d.Name())] = d
}

// ByName looks a driver up by its registry name.
func ByName(name string) (Driver, bool) {
	d, ok := registry[strings.ToLower(name)]
	return d, ok
}

// InferName resolves a path to a driver name purely from its extension,
// without touching the source. The boolean is false when the extension is
// absent or unrecognized.
func InferName(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return "", false
	}
	name, ok := extensionTable[ext]
	return name, ok
}

// LayerNameFromPath derives the default layer name for single-layer formats:
// the path basename without its extension.
func LayerNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DrainCursor reads a cursor to exhaustion, closing it on all paths.
func DrainCursor(c Cursor) ([]*Record, error) {
	defer c.Close()
	var recs []*Record
	for {
		rec, err := c.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
}

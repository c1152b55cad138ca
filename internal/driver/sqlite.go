package driver

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/sref"
)

// The SQLite driver stores one table per layer with geometries in a WKT text
// column named geom, plus an easyogr_layers catalog table recording each
// layer's geometry type and SRID. A database created by other tooling, with
// no catalog table, is still readable: every user table counts as a layer
// and the reference is unknown.

const (
	sqliteGeomColumn   = "geom"
	sqliteCatalogTable = "easyogr_layers"
)

func init() {
	Register(&sqliteDriver{})
}

type sqliteDriver struct{}

func (d *sqliteDriver) Name() string { return "SQLite" }

func (d *sqliteDriver) Open(path string) (DataSource, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return openSQLite(path)
}

func (d *sqliteDriver) Create(path string) (DataSource, error) {
	return openSQLite(path)
}

func openSQLite(path string) (DataSource, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &sqliteSource{path: path, db: db}, nil
}

type sqliteSource struct {
	path string
	db   *gorm.DB
}

func (s *sqliteSource) Name() string { return s.path }

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *sqliteSource) hasCatalog() bool {
	var n int64
	s.db.Raw(
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		sqliteCatalogTable,
	).Scan(&n)
	return n > 0
}

func (s *sqliteSource) LayerNames() ([]string, error) {
	var names []string
	var err error
	if s.hasCatalog() {
		err = s.db.Raw(
			`SELECT name FROM ` + sqliteCatalogTable + ` ORDER BY name`,
		).Scan(&names).Error
	} else {
		err = s.db.Raw(
			`SELECT name FROM sqlite_master
			 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			 ORDER BY name`,
		).Scan(&names).Error
	}
	if err != nil {
		return nil, fmt.Errorf("list layers of %s: %w", s.path, err)
	}
	return names, nil
}

func (s *sqliteSource) Layer(name string) (Layer, error) {
	names, err := s.LayerNames()
	if err != nil {
		return nil, err
	}
	for _, have := range names {
		if have == name {
			return &sqliteLayer{src: s, name: name}, nil
		}
	}
	return nil, fmt.Errorf("sqlite source %s has no layer %q", s.path, name)
}

func (s *sqliteSource) CreateLayer(meta LayerMeta) (Writer, error) {
	if err := s.db.Exec(
		`CREATE TABLE IF NOT EXISTS ` + sqliteCatalogTable + ` (
			name TEXT PRIMARY KEY,
			geometry_type TEXT,
			srid INTEGER
		)`,
	).Error; err != nil {
		return nil, fmt.Errorf("create layer catalog in %s: %w", s.path, err)
	}
	if err := s.db.Exec(`DROP TABLE IF EXISTS ` + quoteIdent(meta.Name)).Error; err != nil {
		return nil, err
	}

	cols := []string{
		"fid INTEGER PRIMARY KEY AUTOINCREMENT",
		quoteIdent(sqliteGeomColumn) + " TEXT",
	}
	for _, f := range meta.Schema {
		cols = append(cols, quoteIdent(f.Name)+" "+sqliteColumnType(f.Type))
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(meta.Name), strings.Join(cols, ", "))
	if err := s.db.Exec(create).Error; err != nil {
		return nil, fmt.Errorf("create layer %q in %s: %w", meta.Name, s.path, err)
	}

	srid := 0
	if meta.Ref != nil {
		srid = meta.Ref.SRID()
	}
	if err := s.db.Exec(
		`INSERT INTO `+sqliteCatalogTable+` (name, geometry_type, srid)
		 VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET geometry_type = excluded.geometry_type, srid = excluded.srid`,
		meta.Name, meta.GeometryType, srid,
	).Error; err != nil {
		return nil, fmt.Errorf("register layer %q in %s: %w", meta.Name, s.path, err)
	}
	return &sqliteWriter{src: s, meta: meta}, nil
}

func (s *sqliteSource) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

func sqliteColumnType(ft FieldType) string {
	switch ft {
	case FieldInteger:
		return "INTEGER"
	case FieldReal:
		return "REAL"
	case FieldBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

func sqliteFieldType(columnType string) FieldType {
	switch strings.ToUpper(columnType) {
	case "INTEGER", "INT", "BIGINT":
		return FieldInteger
	case "REAL", "FLOAT", "DOUBLE":
		return FieldReal
	case "BLOB":
		return FieldBinary
	default:
		return FieldString
	}
}

type sqliteLayer struct {
	src  *sqliteSource
	name string
}

type sqliteColumn struct {
	Name string
	Type string
}

func (l *sqliteLayer) columns() ([]sqliteColumn, error) {
	var cols []sqliteColumn
	err := l.src.db.Raw(
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, l.name,
	).Scan(&cols).Error
	if err != nil {
		return nil, fmt.Errorf("describe layer %q of %s: %w", l.name, l.src.path, err)
	}
	return cols, nil
}

func (l *sqliteLayer) Meta() LayerMeta {
	meta := LayerMeta{Name: l.name}
	cols, err := l.columns()
	if err != nil {
		return meta
	}
	for _, col := range cols {
		if col.Name == "fid" || col.Name == sqliteGeomColumn {
			continue
		}
		meta.Schema = append(meta.Schema, Field{Name: col.Name, Type: sqliteFieldType(col.Type)})
	}
	if l.src.hasCatalog() {
		var row struct {
			GeometryType string
			Srid         int
		}
		l.src.db.Raw(
			`SELECT geometry_type, srid FROM `+sqliteCatalogTable+` WHERE name = ?`, l.name,
		).Scan(&row)
		meta.GeometryType = row.GeometryType
		if row.Srid != 0 {
			meta.Ref = sref.FromEPSG(row.Srid)
		}
	}
	return meta
}

func (l *sqliteLayer) Open() (Cursor, error) {
	meta := l.Meta()
	cols, err := l.columns()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cols))
	hasGeom := false
	for _, col := range cols {
		if col.Name == "fid" {
			continue
		}
		if col.Name == sqliteGeomColumn {
			hasGeom = true
			continue
		}
		names = append(names, quoteIdent(col.Name))
	}
	selected := "rowid"
	if hasGeom {
		selected += ", " + quoteIdent(sqliteGeomColumn)
	} else {
		selected += ", NULL"
	}
	if len(names) > 0 {
		selected += ", " + strings.Join(names, ", ")
	}
	rows, err := l.src.db.Raw(
		"SELECT " + selected + " FROM " + quoteIdent(l.name) + " ORDER BY rowid",
	).Rows()
	if err != nil {
		return nil, fmt.Errorf("read layer %q of %s: %w", l.name, l.src.path, err)
	}
	return &sqliteCursor{rows: rows, nattrs: len(names), ref: meta.Ref}, nil
}

type sqliteCursor struct {
	rows   *sql.Rows
	nattrs int
	ref    *sref.Reference
}

func (c *sqliteCursor) Next() (*Record, error) {
	if c.rows == nil || !c.rows.Next() {
		if c.rows != nil {
			if err := c.rows.Err(); err != nil {
				return nil, err
			}
		}
		return nil, io.EOF
	}
	var rowid int64
	var wktText *string
	dest := make([]any, 0, c.nattrs+2)
	dest = append(dest, &rowid, &wktText)
	raw := make([]any, c.nattrs)
	for i := range raw {
		dest = append(dest, &raw[i])
	}
	if err := c.rows.Scan(dest...); err != nil {
		return nil, err
	}

	geomVal := geometry.Empty(c.ref)
	if wktText != nil && strings.TrimSpace(*wktText) != "" {
		var err error
		geomVal, err = geometry.FromWKT(*wktText, c.ref)
		if err != nil {
			return nil, err
		}
	}
	values := make([]any, c.nattrs)
	for i, v := range raw {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		values[i] = v
	}
	return &Record{FID: int(rowid) - 1, Geom: geomVal, Values: values}, nil
}

func (c *sqliteCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	return err
}

type sqliteWriter struct {
	src  *sqliteSource
	meta LayerMeta
}

func (w *sqliteWriter) Write(rec *Record) error {
	cols := []string{quoteIdent(sqliteGeomColumn)}
	args := make([]any, 0, len(w.meta.Schema)+1)
	if rec.Geom.IsEmpty() {
		args = append(args, nil)
	} else {
		args = append(args, rec.Geom.WKT())
	}
	for i, f := range w.meta.Schema {
		cols = append(cols, quoteIdent(f.Name))
		if i < len(rec.Values) {
			args = append(args, rec.Values[i])
		} else {
			args = append(args, nil)
		}
	}
	insert := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(w.meta.Name),
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
	)
	if err := w.src.db.Exec(insert, args...).Error; err != nil {
		return fmt.Errorf("insert into layer %q of %s: %w", w.meta.Name, w.src.path, err)
	}
	return nil
}

func (w *sqliteWriter) Close() error { return nil }

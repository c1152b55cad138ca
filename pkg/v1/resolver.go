package easyogr

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ssast/easyogr/internal/driver"
)

// SourceHandle is a resolved connection to exactly one layer of a data
// source. It owns the underlying source: Close releases it, and every
// consumer in this package releases handles on all exit paths, including
// errors.
type SourceHandle struct {
	Path      string
	Driver    string
	LayerName string

	ds    driver.DataSource
	layer driver.Layer
}

// Resolve opens a source path as exactly one layer. The driver is inferred
// from the path extension alone, never by probing the source; an
// unrecognized extension without an explicit driver is UnknownDriverError.
// A multi-layer source without an explicit layer name is
// AmbiguousLayerError, listing the available names.
func Resolve(path string, opts ResolveOptions) (*SourceHandle, error) {
	drv, name, err := resolveDriver(path, opts.Driver)
	if err != nil {
		return nil, err
	}
	ds, err := drv.Open(path)
	if err != nil {
		return nil, err
	}
	layer, layerName, err := resolveLayer(ds, path, opts.Layer)
	if err != nil {
		ds.Close()
		return nil, err
	}
	return &SourceHandle{
		Path:      path,
		Driver:    name,
		LayerName: layerName,
		ds:        ds,
		layer:     layer,
	}, nil
}

func resolveDriver(path, explicit string) (driver.Driver, string, error) {
	name := explicit
	if name == "" {
		inferred, ok := driver.InferName(path)
		if !ok {
			return nil, "", &UnknownDriverError{Path: path, Ext: strings.ToLower(filepath.Ext(path))}
		}
		name = inferred
	}
	drv, ok := driver.ByName(name)
	if !ok {
		return nil, "", &UnknownDriverError{Path: path, Driver: name}
	}
	return drv, drv.Name(), nil
}

// resolveLayer picks the single layer a handle binds to: the explicit name,
// the only layer, or the layer matching the path basename.
func resolveLayer(ds driver.DataSource, path, explicit string) (driver.Layer, string, error) {
	if explicit != "" {
		layer, err := ds.Layer(explicit)
		if err != nil {
			return nil, "", err
		}
		return layer, explicit, nil
	}
	names, err := ds.LayerNames()
	if err != nil {
		return nil, "", err
	}
	pick := ""
	switch len(names) {
	case 0:
		return nil, "", &AmbiguousLayerError{Path: path}
	case 1:
		pick = names[0]
	default:
		base := driver.LayerNameFromPath(path)
		for _, name := range names {
			if name == base {
				pick = name
				break
			}
		}
		if pick == "" {
			return nil, "", &AmbiguousLayerError{Path: path, Available: names}
		}
	}
	layer, err := ds.Layer(pick)
	if err != nil {
		return nil, "", err
	}
	return layer, pick, nil
}

// resolveOutput opens (or creates) a destination source for writing. The
// layer is not created here; the sink creates it once the schema is known.
func resolveOutput(out OutputSpec) (*SourceHandle, error) {
	drv, name, err := resolveDriver(out.Path, out.Driver)
	if err != nil {
		return nil, err
	}
	ds, err := drv.Create(out.Path)
	if err != nil {
		return nil, err
	}
	layerName := out.Layer
	if layerName == "" {
		layerName = driver.LayerNameFromPath(out.Path)
	}
	return &SourceHandle{
		Path:      out.Path,
		Driver:    name,
		LayerName: layerName,
		ds:        ds,
	}, nil
}

// Meta describes the bound layer.
func (h *SourceHandle) Meta() driver.LayerMeta {
	if h.layer == nil {
		return driver.LayerMeta{Name: h.LayerName}
	}
	return h.layer.Meta()
}

// open starts a fresh cursor over the bound layer.
func (h *SourceHandle) open() (driver.Cursor, error) {
	if h.layer == nil {
		return nil, fmt.Errorf("source %s is write-only", h.Path)
	}
	return h.layer.Open()
}

// Close releases the underlying source. Closing twice is safe.
func (h *SourceHandle) Close() error {
	if h.ds == nil {
		return nil
	}
	err := h.ds.Close()
	h.ds = nil
	h.layer = nil
	return err
}

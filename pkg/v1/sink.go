package easyogr

import (
	"io"

	"github.com/ssast/easyogr/internal/driver"
	"github.com/ssast/easyogr/internal/sref"
)

// writeLayer creates (or replaces) the output layer described by out and
// drains next into it. next returns io.EOF when done. Records whose
// reference differs from the requested output reference are reprojected on
// the way through. The destination handle is released on every path.
func writeLayer(out OutputSpec, meta driver.LayerMeta, next func() (*driver.Record, error)) error {
	handle, err := resolveOutput(out)
	if err != nil {
		return err
	}
	defer handle.Close()

	var outRef *sref.Reference
	if out.SpatialRef != nil {
		outRef, err = sref.Parse(out.SpatialRef, out.SRFormat)
		if err != nil {
			return err
		}
		meta.Ref = outRef
	}
	meta.Name = handle.LayerName

	writer, err := handle.ds.CreateLayer(meta)
	if err != nil {
		return err
	}
	for {
		rec, err := next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if outRef != nil && rec.Geom.Ref() != nil && !rec.Geom.Ref().Equal(outRef) {
			g, err := rec.Geom.Transform(outRef)
			if err != nil {
				return err
			}
			clone := *rec
			clone.Geom = g
			rec = &clone
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return writer.Close()
}

// sliceSource adapts a materialized record slice to the sink's pull
// interface.
func sliceSource(recs []*driver.Record) func() (*driver.Record, error) {
	i := 0
	return func() (*driver.Record, error) {
		if i >= len(recs) {
			return nil, io.EOF
		}
		rec := recs[i]
		i++
		return rec, nil
	}
}

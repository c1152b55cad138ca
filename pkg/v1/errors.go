package easyogr

import (
	"fmt"
	"strings"

	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/query"
	"github.com/ssast/easyogr/internal/sref"
)

// UnrecognizedFormatError indicates a geometry input matched no known
// representation.
type UnrecognizedFormatError = geometry.UnrecognizedFormatError

// InvalidClauseError indicates the expression engine rejected an attribute
// clause.
type InvalidClauseError = query.InvalidClauseError

// ReferenceMismatchError indicates two geometries are expressed in spatial
// references that cannot be reconciled by reprojection.
type ReferenceMismatchError = sref.MismatchError

// UnknownDriverError indicates no driver could be inferred for a path, or a
// requested driver is not registered.
type UnknownDriverError struct {
	Path   string
	Ext    string
	Driver string
}

func (e *UnknownDriverError) Error() string {
	if e.Driver != "" {
		return fmt.Sprintf("no driver named %q for %s", e.Driver, e.Path)
	}
	if e.Ext == "" {
		return fmt.Sprintf("cannot infer driver for %s: path has no extension", e.Path)
	}
	return fmt.Sprintf("cannot infer driver for %s: unrecognized extension %q", e.Path, e.Ext)
}

// AmbiguousLayerError indicates a data source holds zero or several layers
// and no explicit layer name was given. Available lists the layer names so
// the caller can retry with one.
type AmbiguousLayerError struct {
	Path      string
	Available []string
}

func (e *AmbiguousLayerError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("source %s has no layers", e.Path)
	}
	return fmt.Sprintf("source %s requires an explicit layer name, available: %s",
		e.Path, strings.Join(e.Available, ", "))
}

// GeneratorClosedError indicates a method was called on a FeatureGenerator
// after it was exhausted, saved or closed.
type GeneratorClosedError struct {
	Op string
}

func (e *GeneratorClosedError) Error() string {
	return fmt.Sprintf("%s called on a closed feature generator", e.Op)
}

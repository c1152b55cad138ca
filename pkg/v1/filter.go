package easyogr

import (
	"github.com/paulmach/orb"

	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/query"
)

// SelectionSpec describes which features a generator or layer yields and
// which fields appear on them. Clause and Intersects are per-feature tests,
// AND-ed together; an absent test passes everything. Fields restricts the
// output schema only: the clause still sees the full attribute set.
type SelectionSpec struct {
	// Clause is an attribute predicate in the expression engine's dialect,
	// with SQL-style = and <> accepted.
	Clause string
	// Intersects keeps only features intersecting this geometry, given in
	// any coercible form.
	Intersects any
	// Fields projects the output attribute set, in the given order.
	Fields []string
	// SpatialRef and SRFormat describe the reference of the Intersects
	// geometry when it does not carry one of its own.
	SpatialRef any
	SRFormat   string
}

func (s SelectionSpec) isZero() bool {
	return s.Clause == "" && s.Intersects == nil && len(s.Fields) == 0
}

// featureFilter is a compiled SelectionSpec.
type featureFilter struct {
	clause    *query.Clause
	mask      geometry.Geometry
	maskBound orb.Bound
	hasMask   bool
	fields    []string
}

// compileFilter validates the spec once so per-feature evaluation cannot
// fail on syntax.
func compileFilter(spec SelectionSpec) (*featureFilter, error) {
	f := &featureFilter{fields: spec.Fields}
	if spec.Clause != "" {
		clause, err := query.Compile(spec.Clause)
		if err != nil {
			return nil, err
		}
		f.clause = clause
	}
	if spec.Intersects != nil {
		mask, err := coerceGeometry(spec.Intersects, &coerceConfig{
			spatialRef: spec.SpatialRef,
			srFormat:   spec.SRFormat,
		})
		if err != nil {
			return nil, err
		}
		f.mask = mask
		f.hasMask = true
		if bound, ok := mask.Bound(); ok {
			f.maskBound = bound
		}
	}
	return f, nil
}

// match tests one feature. The bounding-box test runs before the exact
// intersection test.
func (f *featureFilter) match(g geometry.Geometry, attrs map[string]any) (bool, error) {
	if f.clause != nil {
		ok, err := f.clause.Eval(attrs)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	if f.hasMask {
		mask := f.mask
		if g.Ref() != nil && mask.Ref() != nil && !g.Ref().Equal(mask.Ref()) {
			var err error
			mask, err = mask.Transform(g.Ref())
			if err != nil {
				return false, err
			}
		} else {
			bound, ok := g.Bound()
			if !ok {
				return false, nil
			}
			if !bound.Intersects(f.maskBound) {
				return false, nil
			}
		}
		ok, err := g.Relate(geometry.PredIntersects, mask)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

package easyogr

import (
	"io"

	"github.com/ssast/easyogr/internal/driver"
	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/query"
	"github.com/ssast/easyogr/internal/sref"
)

type generatorState int

const (
	stateOpen generatorState = iota
	stateClosed
)

// pipelineStage transforms or filters one feature. keep=false drops the
// feature without error.
type pipelineStage func(f *Feature) (out *Feature, keep bool, err error)

// FeatureGenerator is a one-shot forward cursor over a source layer with an
// attached transformation pipeline. Stages registered while the generator is
// open apply, in registration order, to every subsequently yielded feature.
//
// The generator owns its source handle. Exhaustion, Save and Close all
// release it; after that every method reports GeneratorClosedError. The
// first Next call past the last feature returns (nil, nil) as the end
// marker.
type FeatureGenerator struct {
	handle    *SourceHandle
	cursor    driver.Cursor
	filter    *featureFilter
	fullNames []string
	schema    driver.Schema
	geomType  string
	ref       *sref.Reference
	stages    []pipelineStage
	state     generatorState
}

// NewFeatureGenerator resolves a source path and opens a generator over its
// single layer, filtered and projected by spec.
func NewFeatureGenerator(path string, spec SelectionSpec, opts ResolveOptions) (*FeatureGenerator, error) {
	filter, err := compileFilter(spec)
	if err != nil {
		return nil, err
	}
	handle, err := Resolve(path, opts)
	if err != nil {
		return nil, err
	}
	meta := handle.Meta()
	schema := meta.Schema
	if len(spec.Fields) > 0 {
		schema, err = meta.Schema.Project(spec.Fields)
		if err != nil {
			handle.Close()
			return nil, err
		}
	}
	cursor, err := handle.open()
	if err != nil {
		handle.Close()
		return nil, err
	}
	return &FeatureGenerator{
		handle:    handle,
		cursor:    cursor,
		filter:    filter,
		fullNames: meta.Schema.Names(),
		schema:    schema,
		geomType:  meta.GeometryType,
		ref:       meta.Ref,
	}, nil
}

// Next yields the next feature passing the selection and pipeline. The call
// after the last feature returns (nil, nil) and closes the generator; any
// call after that returns GeneratorClosedError.
func (g *FeatureGenerator) Next() (*Feature, error) {
	if g.state == stateClosed {
		return nil, &GeneratorClosedError{Op: "Next"}
	}
	feat, err := g.fetch()
	if err == io.EOF {
		g.release()
		return nil, nil
	}
	if err != nil {
		g.release()
		return nil, err
	}
	return feat, nil
}

// fetch advances the cursor to the next passing feature without touching the
// generator's terminal state. io.EOF marks exhaustion.
func (g *FeatureGenerator) fetch() (*Feature, error) {
	for {
		rec, err := g.cursor.Next()
		if err != nil {
			return nil, err
		}
		attrs := AttributesFrom(g.fullNames, rec.Values)
		ok, err := g.filter.match(rec.Geom, attrs.Map())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		feat := newFeature(rec.Geom, g.projectAttrs(attrs))
		feat, keep, err := g.applyStages(feat)
		if err != nil {
			return nil, err
		}
		if !keep {
			continue
		}
		return feat, nil
	}
}

// projectAttrs narrows a full attribute set to the selection's fields.
func (g *FeatureGenerator) projectAttrs(attrs *Attributes) *Attributes {
	if len(g.filter.fields) == 0 {
		return attrs
	}
	out := NewAttributes()
	for _, name := range g.filter.fields {
		v, _ := attrs.Get(name)
		out.Set(name, v)
	}
	return out
}

func (g *FeatureGenerator) applyStages(feat *Feature) (*Feature, bool, error) {
	for _, stage := range g.stages {
		out, keep, err := stage(feat)
		if err != nil {
			return nil, false, err
		}
		if !keep {
			return nil, false, nil
		}
		feat = out
	}
	return feat, true, nil
}

// AddField appends a field to every subsequent feature with the given
// default value. The field joins the output schema, typed from the value.
func (g *FeatureGenerator) AddField(name string, value any) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "AddField"}
	}
	if g.schema.Index(name) < 0 {
		g.schema = append(g.schema, driver.Field{Name: name, Type: inferFieldType(value)})
	}
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		f.attrs.Set(name, value)
		return f, true, nil
	})
	return nil
}

// DropFields removes fields from every subsequent feature and from the
// output schema.
func (g *FeatureGenerator) DropFields(names ...string) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "DropFields"}
	}
	drop := map[string]struct{}{}
	for _, name := range names {
		drop[name] = struct{}{}
	}
	kept := make(driver.Schema, 0, len(g.schema))
	for _, f := range g.schema {
		if _, gone := drop[f.Name]; !gone {
			kept = append(kept, f)
		}
	}
	g.schema = kept
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		for _, name := range names {
			f.attrs.Delete(name)
		}
		return f, true, nil
	})
	return nil
}

// CalculateField sets a field to value on every subsequent feature matching
// clause; an empty clause matches everything. A new field name joins the
// output schema.
func (g *FeatureGenerator) CalculateField(field string, value any, clause string) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "CalculateField"}
	}
	var compiled *query.Clause
	if clause != "" {
		c, err := query.Compile(clause)
		if err != nil {
			return err
		}
		compiled = c
	}
	if g.schema.Index(field) < 0 {
		g.schema = append(g.schema, driver.Field{Name: field, Type: inferFieldType(value)})
	}
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		if compiled != nil {
			ok, err := compiled.Eval(f.attrs.Map())
			if err != nil {
				return nil, false, err
			}
			if !ok {
				return f, true, nil
			}
		}
		f.attrs.Set(field, value)
		return f, true, nil
	})
	return nil
}

// AttributeFilter drops subsequent features whose attributes fail clause.
func (g *FeatureGenerator) AttributeFilter(clause string) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "AttributeFilter"}
	}
	compiled, err := query.Compile(clause)
	if err != nil {
		return err
	}
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		ok, err := compiled.Eval(f.attrs.Map())
		if err != nil {
			return nil, false, err
		}
		return f, ok, nil
	})
	return nil
}

// FilterIntersects drops subsequent features not intersecting other.
func (g *FeatureGenerator) FilterIntersects(other any, opts ...CoerceOption) error {
	return g.FilterRelate(geometry.PredIntersects, other, opts...)
}

// FilterWithin drops subsequent features not lying entirely inside other.
func (g *FeatureGenerator) FilterWithin(other any, opts ...CoerceOption) error {
	return g.FilterRelate(geometry.PredWithin, other, opts...)
}

// FilterRelate drops subsequent features failing the named spatial predicate
// against other (CONTAINS, CROSSES, DISJOINT, EQUALS, INTERSECTS, OVERLAPS,
// TOUCHES, WITHIN).
func (g *FeatureGenerator) FilterRelate(predicate string, other any, opts ...CoerceOption) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "FilterRelate"}
	}
	mask, err := coerceGeometry(other, applyCoerceOptions(opts))
	if err != nil {
		return err
	}
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		ok, err := f.geom.Relate(predicate, mask)
		if err != nil {
			return nil, false, err
		}
		return f, ok, nil
	})
	return nil
}

// Buffer expands the geometry of every subsequent feature by dist. The
// output geometry type becomes Polygon.
func (g *FeatureGenerator) Buffer(dist float64) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "Buffer"}
	}
	g.geomType = "Polygon"
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		out, err := f.Buffer(dist)
		if err != nil {
			return nil, false, err
		}
		return out, true, nil
	})
	return nil
}

// Intersection replaces the geometry of every subsequent feature with its
// intersection against other. Features reduced to nothing keep flowing with
// an empty geometry.
func (g *FeatureGenerator) Intersection(other any, opts ...CoerceOption) error {
	return g.mapGeometry("Intersection", other, opts, geometry.Geometry.Intersection)
}

// Difference replaces the geometry of every subsequent feature with its
// parts not covered by other.
func (g *FeatureGenerator) Difference(other any, opts ...CoerceOption) error {
	return g.mapGeometry("Difference", other, opts, geometry.Geometry.Difference)
}

// Union replaces the geometry of every subsequent feature with its combined
// extent with other.
func (g *FeatureGenerator) Union(other any, opts ...CoerceOption) error {
	return g.mapGeometry("Union", other, opts, geometry.Geometry.Union)
}

func (g *FeatureGenerator) mapGeometry(op string, other any, opts []CoerceOption, apply func(geometry.Geometry, geometry.Geometry) (geometry.Geometry, error)) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: op}
	}
	mask, err := coerceGeometry(other, applyCoerceOptions(opts))
	if err != nil {
		return err
	}
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		operand := mask
		if f.geom.Ref() != nil && mask.Ref() != nil && !f.geom.Ref().Equal(mask.Ref()) {
			transformed, err := mask.Transform(f.geom.Ref())
			if err != nil {
				return nil, false, err
			}
			operand = transformed
		}
		result, err := apply(f.geom, operand)
		if err != nil {
			return nil, false, err
		}
		return newFeature(result, f.attrs), true, nil
	})
	return nil
}

// Transform reprojects every subsequent feature into the given reference,
// which also becomes the output layer reference.
func (g *FeatureGenerator) Transform(ref any, opts ...CoerceOption) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "Transform"}
	}
	c := applyCoerceOptions(opts)
	c.spatialRef = ref
	to, err := c.reference()
	if err != nil {
		return err
	}
	g.ref = to
	g.stages = append(g.stages, func(f *Feature) (*Feature, bool, error) {
		out, err := f.geom.Transform(to)
		if err != nil {
			return nil, false, err
		}
		return newFeature(out, f.attrs), true, nil
	})
	return nil
}

// Save drains the remaining features into the destination and closes the
// generator. Features already consumed through Next are not written.
func (g *FeatureGenerator) Save(out OutputSpec) error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "Save"}
	}
	meta := driver.LayerMeta{
		Schema:       g.schema,
		GeometryType: g.geomType,
		Ref:          g.ref,
	}
	err := writeLayer(out, meta, func() (*driver.Record, error) {
		feat, err := g.fetch()
		if err != nil {
			return nil, err
		}
		return g.record(feat), nil
	})
	g.release()
	return err
}

// record lays a feature's attributes out in output schema order.
func (g *FeatureGenerator) record(feat *Feature) *driver.Record {
	values := make([]any, len(g.schema))
	for i, field := range g.schema {
		values[i], _ = feat.attrs.Get(field.Name)
	}
	return &driver.Record{Geom: feat.geom, Values: values}
}

// Close releases the source handle before exhaustion. Closing a generator
// that already reached a terminal state reports GeneratorClosedError.
func (g *FeatureGenerator) Close() error {
	if g.state == stateClosed {
		return &GeneratorClosedError{Op: "Close"}
	}
	g.release()
	return nil
}

func (g *FeatureGenerator) release() {
	if g.state == stateClosed {
		return
	}
	g.state = stateClosed
	if g.cursor != nil {
		g.cursor.Close()
		g.cursor = nil
	}
	if g.handle != nil {
		g.handle.Close()
	}
}

func inferFieldType(value any) driver.FieldType {
	switch value.(type) {
	case int, int32, int64:
		return driver.FieldInteger
	case float32, float64:
		return driver.FieldReal
	default:
		return driver.FieldString
	}
}

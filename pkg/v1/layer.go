package easyogr

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/ssast/easyogr/internal/driver"
	"github.com/ssast/easyogr/internal/geometry"
	"github.com/ssast/easyogr/internal/query"
)

// Spatial predicate names accepted by SpatialFilter and FilterRelate.
const (
	PredContains   = geometry.PredContains
	PredCrosses    = geometry.PredCrosses
	PredDisjoint   = geometry.PredDisjoint
	PredEquals     = geometry.PredEquals
	PredIntersects = geometry.PredIntersects
	PredOverlaps   = geometry.PredOverlaps
	PredTouches    = geometry.PredTouches
	PredWithin     = geometry.PredWithin
)

// SelectionMode says how a new filter result combines with a layer's active
// selection.
type SelectionMode int

const (
	// SelectionNew replaces the active selection.
	SelectionNew SelectionMode = iota
	// SelectionIntersection keeps features in both the active selection and
	// the filter result.
	SelectionIntersection
	// SelectionUnion adds the filter result to the active selection.
	SelectionUnion
	// SelectionDifference removes the filter result from the active
	// selection.
	SelectionDifference
)

// layerRecord wraps a record for R-tree storage.
type layerRecord struct {
	rec      *driver.Record
	bound    orb.Bound
	hasBound bool
}

// Bounds implements the rtreego.Spatial interface.
func (r *layerRecord) Bounds() rtreego.Rect {
	return boundRect(r.bound)
}

// boundRect converts a bounding box into an R-tree rect, padding degenerate
// dimensions because the R-tree requires non-zero extents.
func boundRect(bound orb.Bound) rtreego.Rect {
	point := rtreego.Point{bound.Min[0], bound.Min[1]}
	xLength := bound.Max[0] - bound.Min[0]
	yLength := bound.Max[1] - bound.Min[1]

	const epsilon = 1e-9
	if xLength < epsilon {
		xLength = epsilon
	}
	if yLength < epsilon {
		yLength = epsilon
	}
	rect, _ := rtreego.NewRect(point, []float64{xLength, yLength})
	return rect
}

// FeatureLayer is a restartable, read-only view over one source layer with a
// non-destructive active selection. Features load eagerly and a spatial
// index is built automatically; iteration, filtering and the layer
// geoprocessing methods never modify the underlying source.
type FeatureLayer struct {
	handle  *SourceHandle
	meta    driver.LayerMeta
	records []*layerRecord
	byFID   map[int]*layerRecord
	rtree   *rtreego.Rtree

	// selection holds selected fids; nil means every feature is selected.
	selection map[int]struct{}
	fields    []string
}

// NewFeatureLayer resolves a source path and loads its single layer. A
// non-zero spec becomes the initial selection.
func NewFeatureLayer(path string, spec SelectionSpec, opts ResolveOptions) (*FeatureLayer, error) {
	handle, err := Resolve(path, opts)
	if err != nil {
		return nil, err
	}
	cursor, err := handle.open()
	if err != nil {
		handle.Close()
		return nil, err
	}
	recs, err := driver.DrainCursor(cursor)
	if err != nil {
		handle.Close()
		return nil, err
	}

	l := &FeatureLayer{
		handle: handle,
		meta:   handle.Meta(),
		byFID:  make(map[int]*layerRecord, len(recs)),
		rtree:  rtreego.NewTree(2, 25, 50),
	}
	for _, rec := range recs {
		wrapped := &layerRecord{rec: rec}
		if bound, ok := rec.Geom.Bound(); ok {
			wrapped.bound = bound
			wrapped.hasBound = true
			l.rtree.Insert(wrapped)
		}
		l.records = append(l.records, wrapped)
		l.byFID[rec.FID] = wrapped
	}
	if !spec.isZero() {
		if err := l.SetSelection(spec); err != nil {
			handle.Close()
			return nil, err
		}
	}
	return l, nil
}

// Close releases the source handle. The loaded view stays readable.
func (l *FeatureLayer) Close() error {
	return l.handle.Close()
}

// Name returns the resolved layer name.
func (l *FeatureLayer) Name() string { return l.handle.LayerName }

// FieldNames returns the layer's attribute field names in schema order.
func (l *FeatureLayer) FieldNames() []string { return l.meta.Schema.Names() }

// SpatialRef returns the layer's spatial reference, nil when unknown.
func (l *FeatureLayer) SpatialRef() *SpatialRef { return l.meta.Ref }

// Count returns the number of selected features.
func (l *FeatureLayer) Count() int {
	if l.selection == nil {
		return len(l.records)
	}
	return len(l.selection)
}

// Bounds returns the bounding box of the selected features. ok is false when
// no selected feature has a geometry.
func (l *FeatureLayer) Bounds() (minX, minY, maxX, maxY float64, ok bool) {
	var total orb.Bound
	for _, r := range l.selectedRecords() {
		if !r.hasBound {
			continue
		}
		if !ok {
			total = r.bound
			ok = true
			continue
		}
		total = total.Union(r.bound)
	}
	if !ok {
		return 0, 0, 0, 0, false
	}
	return total.Min[0], total.Min[1], total.Max[0], total.Max[1], true
}

func (l *FeatureLayer) selected(fid int) bool {
	if l.selection == nil {
		return true
	}
	_, ok := l.selection[fid]
	return ok
}

func (l *FeatureLayer) selectedRecords() []*layerRecord {
	if l.selection == nil {
		return l.records
	}
	out := make([]*layerRecord, 0, len(l.selection))
	for _, r := range l.records {
		if l.selected(r.rec.FID) {
			out = append(out, r)
		}
	}
	return out
}

// materialize builds a Feature for a record, applying the field projection.
func (l *FeatureLayer) materialize(r *layerRecord) *Feature {
	attrs := AttributesFrom(l.meta.Schema.Names(), r.rec.Values)
	if len(l.fields) > 0 {
		projected := NewAttributes()
		for _, name := range l.fields {
			v, _ := attrs.Get(name)
			projected.Set(name, v)
		}
		attrs = projected
	}
	return newFeature(r.rec.Geom, attrs)
}

// Each walks the selected features in source order until fn returns false.
// The walk is restartable: each call re-evaluates the active selection.
func (l *FeatureLayer) Each(fn func(f *Feature) bool) {
	for _, r := range l.records {
		if !l.selected(r.rec.FID) {
			continue
		}
		if !fn(l.materialize(r)) {
			return
		}
	}
}

// Features returns the selected features in source order.
func (l *FeatureLayer) Features() []*Feature {
	out := make([]*Feature, 0, l.Count())
	l.Each(func(f *Feature) bool {
		out = append(out, f)
		return true
	})
	return out
}

// SetSelection replaces the active selection with the features matching
// spec, evaluated over the whole layer regardless of the previous selection.
// The spec's Fields become the layer's output projection.
func (l *FeatureLayer) SetSelection(spec SelectionSpec) error {
	filter, err := compileFilter(spec)
	if err != nil {
		return err
	}
	matches := map[int]struct{}{}
	for _, r := range l.records {
		attrs := AttributesFrom(l.meta.Schema.Names(), r.rec.Values)
		ok, err := filter.match(r.rec.Geom, attrs.Map())
		if err != nil {
			return err
		}
		if ok {
			matches[r.rec.FID] = struct{}{}
		}
	}
	l.selection = matches
	if len(spec.Fields) > 0 {
		l.fields = spec.Fields
	}
	return nil
}

// ClearSelection selects every feature and drops the field projection.
func (l *FeatureLayer) ClearSelection() {
	l.selection = nil
	l.fields = nil
}

// AttributeFilter combines the features matching clause with the active
// selection according to mode. The clause is always evaluated over the whole
// layer; mode decides the set algebra.
func (l *FeatureLayer) AttributeFilter(clause string, mode SelectionMode) error {
	compiled, err := query.Compile(clause)
	if err != nil {
		return err
	}
	matches := map[int]struct{}{}
	for _, r := range l.records {
		attrs := AttributesFrom(l.meta.Schema.Names(), r.rec.Values)
		ok, err := compiled.Eval(attrs.Map())
		if err != nil {
			return err
		}
		if ok {
			matches[r.rec.FID] = struct{}{}
		}
	}
	l.apply(matches, mode)
	return nil
}

// SpatialFilter combines the features satisfying the named predicate against
// other with the active selection according to mode. All predicates except
// DISJOINT prune candidates through the spatial index first.
func (l *FeatureLayer) SpatialFilter(other any, predicate string, mode SelectionMode, opts ...CoerceOption) error {
	mask, err := coerceGeometry(other, applyCoerceOptions(opts))
	if err != nil {
		return err
	}
	candidates := l.records
	if predicate != geometry.PredDisjoint {
		candidates = l.candidates(mask)
	}
	matches := map[int]struct{}{}
	for _, r := range candidates {
		ok, err := r.rec.Geom.Relate(predicate, mask)
		if err != nil {
			return err
		}
		if ok {
			matches[r.rec.FID] = struct{}{}
		}
	}
	l.apply(matches, mode)
	return nil
}

// candidates returns records whose bounding boxes intersect the mask's,
// through the R-tree.
func (l *FeatureLayer) candidates(mask geometry.Geometry) []*layerRecord {
	bound, ok := mask.Bound()
	if !ok {
		return nil
	}
	spatials := l.rtree.SearchIntersect(boundRect(bound))
	out := make([]*layerRecord, 0, len(spatials))
	for _, spatial := range spatials {
		out = append(out, spatial.(*layerRecord))
	}
	return out
}

// apply folds a filter result into the active selection.
func (l *FeatureLayer) apply(matches map[int]struct{}, mode SelectionMode) {
	switch mode {
	case SelectionNew:
		l.selection = matches
	case SelectionIntersection:
		next := map[int]struct{}{}
		for fid := range matches {
			if l.selected(fid) {
				next[fid] = struct{}{}
			}
		}
		l.selection = next
	case SelectionUnion:
		if l.selection == nil {
			return
		}
		for fid := range matches {
			l.selection[fid] = struct{}{}
		}
	case SelectionDifference:
		next := map[int]struct{}{}
		for _, r := range l.records {
			fid := r.rec.FID
			if !l.selected(fid) {
				continue
			}
			if _, drop := matches[fid]; drop {
				continue
			}
			next[fid] = struct{}{}
		}
		l.selection = next
	}
}

// outputSchema projects the layer schema by the active field projection and
// returns the source value index of each output field.
func (l *FeatureLayer) outputSchema() (driver.Schema, []int, error) {
	if len(l.fields) == 0 {
		idx := make([]int, len(l.meta.Schema))
		for i := range idx {
			idx[i] = i
		}
		return l.meta.Schema, idx, nil
	}
	schema, err := l.meta.Schema.Project(l.fields)
	if err != nil {
		return nil, nil, err
	}
	idx := make([]int, len(schema))
	for i, f := range schema {
		idx[i] = l.meta.Schema.Index(f.Name)
	}
	return schema, idx, nil
}

func projectValues(values []any, idx []int) []any {
	out := make([]any, len(idx))
	for i, j := range idx {
		if j >= 0 && j < len(values) {
			out[i] = values[j]
		}
	}
	return out
}

func nullValues(n int) []any { return make([]any, n) }

// Export writes the selected features to the destination unchanged.
func (l *FeatureLayer) Export(out OutputSpec) error {
	return l.exportMapped(out, l.meta.GeometryType, func(g geometry.Geometry) (geometry.Geometry, error) {
		return g, nil
	})
}

// Buffer writes the selected features with geometries expanded by dist.
func (l *FeatureLayer) Buffer(dist float64, out OutputSpec) error {
	return l.exportMapped(out, "Polygon", func(g geometry.Geometry) (geometry.Geometry, error) {
		return g.Buffer(dist)
	})
}

// Transform writes the selected features reprojected into ref, which becomes
// the output layer's reference.
func (l *FeatureLayer) Transform(ref any, out OutputSpec, opts ...CoerceOption) error {
	c := applyCoerceOptions(opts)
	c.spatialRef = ref
	to, err := c.reference()
	if err != nil {
		return err
	}
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	var recs []*driver.Record
	for _, r := range l.selectedRecords() {
		g, err := r.rec.Geom.Transform(to)
		if err != nil {
			return err
		}
		recs = append(recs, &driver.Record{Geom: g, Values: projectValues(r.rec.Values, idx)})
	}
	meta := driver.LayerMeta{
		Schema:       schema,
		GeometryType: l.meta.GeometryType,
		Ref:          to,
	}
	return writeLayer(out, meta, sliceSource(recs))
}

// Clip writes the parts of the selected features lying inside a single mask
// geometry. Features entirely outside the mask are dropped.
func (l *FeatureLayer) Clip(mask any, out OutputSpec, opts ...CoerceOption) error {
	m, err := coerceGeometry(mask, applyCoerceOptions(opts))
	if err != nil {
		return err
	}
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	var recs []*driver.Record
	for _, r := range l.selectedRecords() {
		piece, err := r.rec.Geom.Intersection(m)
		if err != nil {
			return err
		}
		if piece.IsEmpty() {
			continue
		}
		recs = append(recs, &driver.Record{Geom: piece, Values: projectValues(r.rec.Values, idx)})
	}
	return l.write(out, schema, l.meta.GeometryType, recs)
}

func (l *FeatureLayer) exportMapped(out OutputSpec, geomType string, mapGeom func(geometry.Geometry) (geometry.Geometry, error)) error {
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	var recs []*driver.Record
	for _, r := range l.selectedRecords() {
		g, err := mapGeom(r.rec.Geom)
		if err != nil {
			return err
		}
		recs = append(recs, &driver.Record{Geom: g, Values: projectValues(r.rec.Values, idx)})
	}
	return l.write(out, schema, geomType, recs)
}

func (l *FeatureLayer) write(out OutputSpec, schema driver.Schema, geomType string, recs []*driver.Record) error {
	meta := driver.LayerMeta{
		Schema:       schema,
		GeometryType: geomType,
		Ref:          l.meta.Ref,
	}
	return writeLayer(out, meta, sliceSource(recs))
}

// intersecting returns this layer's selected records whose geometries
// actually intersect g: spatial-index candidates first, exact test second.
func (l *FeatureLayer) intersecting(g geometry.Geometry) ([]*layerRecord, error) {
	bound, ok := g.Bound()
	if !ok {
		return nil, nil
	}
	var out []*layerRecord
	for _, spatial := range l.rtree.SearchIntersect(boundRect(bound)) {
		r := spatial.(*layerRecord)
		if !l.selected(r.rec.FID) {
			continue
		}
		hit, err := g.Relate(geometry.PredIntersects, r.rec.Geom)
		if err != nil {
			return nil, err
		}
		if hit {
			out = append(out, r)
		}
	}
	return out, nil
}

// residual subtracts every intersecting op geometry from g.
func residual(g geometry.Geometry, against []*layerRecord) (geometry.Geometry, error) {
	out := g
	for _, r := range against {
		next, err := out.Difference(r.rec.Geom)
		if err != nil {
			return geometry.Geometry{}, err
		}
		out = next
		if out.IsEmpty() {
			break
		}
	}
	return out, nil
}

// Intersection writes the pairwise intersections of this layer's selected
// features with op's, carrying this layer's attributes.
func (l *FeatureLayer) Intersection(op *FeatureLayer, out OutputSpec) error {
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	var recs []*driver.Record
	for _, r := range l.selectedRecords() {
		hits, err := op.intersecting(r.rec.Geom)
		if err != nil {
			return err
		}
		for _, hit := range hits {
			piece, err := r.rec.Geom.Intersection(hit.rec.Geom)
			if err != nil {
				return err
			}
			if piece.IsEmpty() {
				continue
			}
			recs = append(recs, &driver.Record{Geom: piece, Values: projectValues(r.rec.Values, idx)})
		}
	}
	return l.write(out, schema, l.meta.GeometryType, recs)
}

// Erase writes the parts of this layer's selected features not covered by
// op's features.
func (l *FeatureLayer) Erase(op *FeatureLayer, out OutputSpec) error {
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	recs, err := l.eraseRecords(op, idx)
	if err != nil {
		return err
	}
	return l.write(out, schema, l.meta.GeometryType, recs)
}

func (l *FeatureLayer) eraseRecords(op *FeatureLayer, idx []int) ([]*driver.Record, error) {
	var recs []*driver.Record
	for _, r := range l.selectedRecords() {
		hits, err := op.intersecting(r.rec.Geom)
		if err != nil {
			return nil, err
		}
		rest, err := residual(r.rec.Geom, hits)
		if err != nil {
			return nil, err
		}
		if rest.IsEmpty() {
			continue
		}
		recs = append(recs, &driver.Record{Geom: rest, Values: projectValues(r.rec.Values, idx)})
	}
	return recs, nil
}

// Difference writes the layer-level symmetric difference: this layer's
// residuals with their attributes, then op's residuals with null attributes.
func (l *FeatureLayer) Difference(op *FeatureLayer, out OutputSpec) error {
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	recs, err := l.eraseRecords(op, idx)
	if err != nil {
		return err
	}
	opRecs, err := op.eraseRecords(l, nil)
	if err != nil {
		return err
	}
	for _, r := range opRecs {
		recs = append(recs, &driver.Record{Geom: r.Geom, Values: nullValues(len(schema))})
	}
	return l.write(out, schema, l.meta.GeometryType, recs)
}

// Identity writes the pairwise intersections plus this layer's residuals, so
// every part of this layer's features survives exactly once.
func (l *FeatureLayer) Identity(op *FeatureLayer, out OutputSpec) error {
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	var recs []*driver.Record
	for _, r := range l.selectedRecords() {
		hits, err := op.intersecting(r.rec.Geom)
		if err != nil {
			return err
		}
		values := projectValues(r.rec.Values, idx)
		for _, hit := range hits {
			piece, err := r.rec.Geom.Intersection(hit.rec.Geom)
			if err != nil {
				return err
			}
			if piece.IsEmpty() {
				continue
			}
			recs = append(recs, &driver.Record{Geom: piece, Values: values})
		}
		rest, err := residual(r.rec.Geom, hits)
		if err != nil {
			return err
		}
		if !rest.IsEmpty() {
			recs = append(recs, &driver.Record{Geom: rest, Values: values})
		}
	}
	return l.write(out, schema, l.meta.GeometryType, recs)
}

// Union writes the pairwise intersections, this layer's residuals, and op's
// residuals (with null attributes), covering the combined extent exactly
// once.
func (l *FeatureLayer) Union(op *FeatureLayer, out OutputSpec) error {
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	var recs []*driver.Record
	for _, r := range l.selectedRecords() {
		hits, err := op.intersecting(r.rec.Geom)
		if err != nil {
			return err
		}
		values := projectValues(r.rec.Values, idx)
		for _, hit := range hits {
			piece, err := r.rec.Geom.Intersection(hit.rec.Geom)
			if err != nil {
				return err
			}
			if piece.IsEmpty() {
				continue
			}
			recs = append(recs, &driver.Record{Geom: piece, Values: values})
		}
		rest, err := residual(r.rec.Geom, hits)
		if err != nil {
			return err
		}
		if !rest.IsEmpty() {
			recs = append(recs, &driver.Record{Geom: rest, Values: values})
		}
	}
	opRecs, err := op.eraseRecords(l, nil)
	if err != nil {
		return err
	}
	for _, r := range opRecs {
		recs = append(recs, &driver.Record{Geom: r.Geom, Values: nullValues(len(schema))})
	}
	return l.write(out, schema, l.meta.GeometryType, recs)
}

// Update writes op's selected features over this layer: op features keep
// their geometry and the attribute values of fields shared with this layer's
// schema, and this layer contributes only the parts op does not cover.
func (l *FeatureLayer) Update(op *FeatureLayer, out OutputSpec) error {
	schema, idx, err := l.outputSchema()
	if err != nil {
		return err
	}
	var recs []*driver.Record
	for _, r := range op.selectedRecords() {
		values := make([]any, len(schema))
		for i, field := range schema {
			if j := op.meta.Schema.Index(field.Name); j >= 0 && j < len(r.rec.Values) {
				values[i] = r.rec.Values[j]
			}
		}
		recs = append(recs, &driver.Record{Geom: r.rec.Geom, Values: values})
	}
	rest, err := l.eraseRecords(op, idx)
	if err != nil {
		return err
	}
	recs = append(recs, rest...)
	return l.write(out, schema, l.meta.GeometryType, recs)
}

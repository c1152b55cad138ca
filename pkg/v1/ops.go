package easyogr

// The one-call geoprocessing functions open their inputs, run the operation,
// write the output layer and release every handle, on success and on error
// alike. The selection options (Clause, Intersects, Fields) apply to the
// input layer; the operation layer always participates whole.

// Buffer expands every selected feature of in by dist and writes the result
// to out.
func Buffer(in string, dist float64, out string, opts *Options) error {
	o := opts.orDefault()
	layer, err := NewFeatureLayer(in, o.selection(), ResolveOptions{Driver: o.InDriver, Layer: o.InLayer})
	if err != nil {
		return err
	}
	defer layer.Close()
	return layer.Buffer(dist, o.output(out))
}

// CopyLayer writes the selected features of in to out unchanged, reprojected
// when the options request an output reference.
func CopyLayer(in, out string, opts *Options) error {
	o := opts.orDefault()
	layer, err := NewFeatureLayer(in, o.selection(), ResolveOptions{Driver: o.InDriver, Layer: o.InLayer})
	if err != nil {
		return err
	}
	defer layer.Close()
	return layer.Export(o.output(out))
}

// Intersection writes the pairwise intersections of in and op features to
// out, carrying in's attributes.
func Intersection(in, op, out string, opts *Options) error {
	return twoLayer(in, op, out, opts, (*FeatureLayer).Intersection)
}

// Erase writes the parts of in's features not covered by op to out.
func Erase(in, op, out string, opts *Options) error {
	return twoLayer(in, op, out, opts, (*FeatureLayer).Erase)
}

// Difference writes the symmetric difference of in and op to out: in's
// uncovered parts with their attributes, op's uncovered parts with nulls.
func Difference(in, op, out string, opts *Options) error {
	return twoLayer(in, op, out, opts, (*FeatureLayer).Difference)
}

// Identity writes in's features split by op to out: intersection pieces plus
// in's residuals, all with in's attributes.
func Identity(in, op, out string, opts *Options) error {
	return twoLayer(in, op, out, opts, (*FeatureLayer).Identity)
}

// Union writes the combined extent of in and op to out, each part exactly
// once.
func Union(in, op, out string, opts *Options) error {
	return twoLayer(in, op, out, opts, (*FeatureLayer).Union)
}

// Update writes op's features over in's to out: op wins where they overlap.
func Update(in, op, out string, opts *Options) error {
	return twoLayer(in, op, out, opts, (*FeatureLayer).Update)
}

func twoLayer(in, op, out string, opts *Options, run func(*FeatureLayer, *FeatureLayer, OutputSpec) error) error {
	o := opts.orDefault()
	inLayer, err := NewFeatureLayer(in, o.selection(), ResolveOptions{Driver: o.InDriver, Layer: o.InLayer})
	if err != nil {
		return err
	}
	defer inLayer.Close()
	opLayer, err := NewFeatureLayer(op, SelectionSpec{}, ResolveOptions{Driver: o.OpDriver, Layer: o.OpLayer})
	if err != nil {
		return err
	}
	defer opLayer.Close()
	return run(inLayer, opLayer, o.output(out))
}

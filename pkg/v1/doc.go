// Package easyogr removes the boilerplate of vector-geometry I/O: driver
// selection, layer-name disambiguation, spatial-reference handling, resource
// lifecycle, and repetitive geoprocessing call sequences.
//
// # Basic Usage
//
//	gen, err := easyogr.NewFeatureGenerator("parcels.shp", easyogr.SelectionSpec{
//	    Clause: "zone = 'R1'",
//	}, easyogr.ResolveOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer gen.Close()
//
//	for {
//	    feature, err := gen.Next()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if feature == nil {
//	        break
//	    }
//	    fmt.Println(feature.WKT())
//	}
//
// # Geoprocessing
//
// One-call layer operations open their inputs, run the operation, write the
// output and release every handle:
//
//	err := easyogr.Intersection("parcels.shp", "floodzone.geojson", "at_risk.shp", nil)
//
// # Generators and Layers
//
// FeatureGenerator is a one-shot forward cursor: once exhausted, saved or
// closed, every method reports GeneratorClosedError. FeatureLayer is a
// restartable view with a non-destructive active selection; selections
// combine with NEW, INTERSECTION, UNION and DIFFERENCE modes and never
// modify the underlying source.
//
// # Geometry Inputs
//
// Anywhere a geometry is accepted (feature construction, spatial filters,
// operation masks) the input may be an existing Feature, a WKT string, a
// GeoJSON document or mapping, or a bare coordinate sequence. The
// representation is sniffed structurally; WithFormat pins it explicitly.
package easyogr

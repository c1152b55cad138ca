package sref

import "strconv"

// Canonical WKT bodies for the references this package can project. Used for
// shapefile .prj sidecars; anything else round-trips through the AUTHORITY
// node only.
var prjText = map[int]string{
	4326: `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`,
	3857: `PROJCS["WGS 84 / Pseudo-Mercator",GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Mercator_1SP"],PARAMETER["central_meridian",0],PARAMETER["scale_factor",1],PARAMETER["false_easting",0],PARAMETER["false_northing",0],UNIT["metre",1],AUTHORITY["EPSG","3857"]]`,
}

// WKT renders the reference as well-known text suitable for a .prj sidecar.
// References without a canonical body get a minimal AUTHORITY-only stub that
// Parse can still recover the code from.
func (r *Reference) WKT() string {
	if r == nil {
		return ""
	}
	if text, ok := prjText[r.Code]; ok {
		return text
	}
	return `GEOGCS["unnamed",AUTHORITY["EPSG","` + strconv.Itoa(r.Code) + `"]]`
}

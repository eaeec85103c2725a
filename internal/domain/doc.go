// Package domain models circum-Antarctic raster layers and the map objects
// built from them.
//
// # Datasets
//
// Four datasets are supported, identified by [DatasetID]:
//
//	bioregions            classified raster, 12 categories
//	habitat_importance    continuous index
//	primary_productivity  continuous estimate
//	habitat_suitability   continuous score
//
// Any other identifier is rejected with [ErrUnknownDataset].
//
// # Coordinate Conventions
//
// Source rasters arrive in geographic WGS84 (longitude/latitude degrees) or
// already projected. Every renderable layer lives in the south polar
// stereographic frame [SouthPolarStereographic] (EPSG:3031: true scale at
// 71°S, central meridian 0°, metres).
//
// Affine transforms follow the GDAL ordering:
//
//	x = t[0] + col*t[1] + row*t[2]
//	y = t[3] + col*t[4] + row*t[5]
//
// where (col, row) address the upper-left corner of a cell. Cell centres are
// at (col+0.5, row+0.5).
//
// # No-data
//
// No-data cells hold NaN in [GeoRaster] bands. After tabulation they are kept
// as [Cell] records with Missing set, and every palette resolves them to a
// fully transparent fill. They stay in the data drawable but are invisible.
//
// # Categorical Rasters
//
// Classified rasters store ordinal category indices 1..N. Index k selects the
// k-th entry of the palette's category table, whatever its label text. Values
// outside 1..N resolve to the missing colour.
//
// # Layer Composition
//
// A [StyledMapLayer] is an ordered list of [Drawable] values painted first to
// last:
//
//	bathymetry, ice, coastline, graticule, border   (copied from the BaseMap)
//	background                                      (bioregions only)
//	data                                            (tabulated raster)
//	legend
//
// The [BaseMap] template is never mutated; [BaseMap.Compose] always returns a
// fresh slice of deep copies.
package domain

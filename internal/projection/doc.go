// Package projection implements spherical Web Mercator at a given zoom level.
//
// It converts between geographic coordinates, world-pixel coordinates and
// slippy-map tile indices, and derives the pixel and ground densities the
// calibration and tiling packages need. Every function is pure.
//
// World pixels are measured from the top-left corner of the zoom level's
// tile grid: tile (x, y) covers pixels [256x, 256x+256) × [256y, 256y+256).
package projection

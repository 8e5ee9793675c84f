// Package tilestore persists encoded tiles.
//
// DirStore writes the slippy-map directory layout {root}/{slug}/{z}/{x}/{y}.png
// that static file servers and Leaflet read directly. MBTilesStore writes
// one SQLite MBTiles 1.3 file per map.
package tilestore

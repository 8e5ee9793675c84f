// Package viewer serves a tile root over HTTP together with a Leaflet page
// that overlays every map of the manifest on an OpenStreetMap base layer.
//
// Tiles are read from {root}/{slug}/{z}/{x}/{y}.png, or from
// {root}/{slug}.mbtiles when no tile directory exists for the slug.
package viewer

// Package raster holds the pixel operations of the tiler: decoding source
// scans, resampling, rotation with canvas expansion, padded crops and
// deterministic PNG encoding.
//
// Rectify combines them: a source image is scaled per axis and then rotated
// so that it lines up with the Web Mercator pixel grid of one zoom level.
// Resampling uses golang.org/x/image/draw; the interpolation kernel is
// selectable.
//
// Decoders for JPEG, PNG, GIF, TIFF, BMP and WebP are registered by this
// package.
package raster

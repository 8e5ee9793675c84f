// Package extent resolves where a rectified raster lies on the ground.
//
// A rectified raster is north-up and sampled at the pixel density of its
// zoom level, so a single known pixel (anchor a after scaling, canvas
// expansion and rotation) pins every other pixel to a geographic position.
package extent

// Package calibrate derives the scale and rotation that align a historical
// map with Web Mercator from two control points.
//
// Anchor a is the pivot and the a->b baseline fixes both scale and
// rotation. Anchor c is not needed for the transform; AnchorResidual uses it
// to measure how well the derived transform fits the third point.
package calibrate

// Package database provides the SQLite render catalog of oldmaps.
//
// Every completed (map, zoom) job is recorded with its calibration, bounding
// box, tile range and the SHA3-256 digest of every tile written. The
// catalog lets the compare command show which tiles changed between two
// renders of the same map.
//
// The catalog uses modernc.org/sqlite, a CGO-free driver, and lives in a
// single file under the XDG data directory unless configured otherwise.
package database

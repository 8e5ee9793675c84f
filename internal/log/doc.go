// Package log builds the slog loggers used by oldmaps.
//
// The console logger prints warnings and errors, or everything with
// --verbose. With --log-file a FanoutHandler additionally writes every
// record as JSON to a size-rotated file.
package log

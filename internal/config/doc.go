// Package config provides the run options and the project document of oldmaps.
//
// Config carries the options of one invocation, built from CLI flags. File
// is the project document: the three reference anchors, the maps calibrated
// against them and optional defaults. Documents are YAML or JSON and are
// searched for in the working directory and the XDG config directory.
package config

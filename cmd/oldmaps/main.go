// Package main provides the entry point for the oldmaps CLI.
//
// oldmaps georeferences scanned historical maps against three control
// points and cuts them into slippy-map tiles.
//
// Usage:
//
//	oldmaps init
//	oldmaps tile --zoom 15-17
//	oldmaps serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for oldmaps.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oldmaps",
		Short: "Georeference historical maps and cut them into web map tiles",
		Long: `oldmaps aligns scanned historical maps with the modern world using three
control points (anchors a, b and c) and slices them into 256x256 slippy-map
tiles that Leaflet, OpenLayers or MapLibre can overlay on a base map.

Maps and anchors are described in a project document (oldmaps.yaml).
Run 'oldmaps init' to create one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file (rotated)")

	cmd.AddCommand(NewTileCmd())
	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

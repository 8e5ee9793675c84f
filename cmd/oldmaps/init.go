package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/oldmaps/internal/config"
)

//go:embed templates/oldmaps.yaml
var configTemplate embed.FS

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new oldmaps project document",
		Long: `Init writes an oldmaps.yaml project document to the current directory.

The generated file includes:
- Three reference anchors with their real-world coordinates
- One example map with the pixel positions of the same anchors
- Run defaults for zoom levels, tile format and resampling

Examples:
  # Create oldmaps.yaml in the current directory
  oldmaps init

  # Create the document at a specific path
  oldmaps init -o survey/oldmaps.yaml

  # Overwrite an existing document
  oldmaps init -f`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the project document")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite an existing project document")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("project document already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/oldmaps.yaml")
	if err != nil {
		return fmt.Errorf("failed to read project template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write project document: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created project document: %s\n", outputPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  - Set the real-world coordinates of anchors a, b and c")
	fmt.Fprintln(out, "  - List your scanned maps with the pixel position of each anchor")
	fmt.Fprintln(out, "  - Run 'oldmaps plan' to check the calibration, then 'oldmaps tile'")
	return nil
}

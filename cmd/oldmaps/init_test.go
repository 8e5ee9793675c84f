package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/oldmaps/internal/config"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.DefValue != "false" {
			t.Errorf("expected default 'false', got %q", flag.DefValue)
		}
	})
}

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates project document", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "survey", config.DefaultConfigFile)
		out, err := runInit(t, "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, outputPath) {
			t.Errorf("expected output to name the file, got %q", out)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		for _, want := range []string{"anchors:", "maps:", "defaults:"} {
			if !strings.Contains(string(content), want) {
				t.Errorf("expected template to contain %q", want)
			}
		}
	})

	t.Run("template is a valid project document", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if _, err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cf, err := config.LoadConfigFile(outputPath)
		if err != nil {
			t.Fatalf("load template: %v", err)
		}
		if _, err := cf.ReferenceAnchors(); err != nil {
			t.Errorf("template reference anchors: %v", err)
		}
		if len(cf.Maps) != 1 {
			t.Errorf("expected one example map, got %d", len(cf.Maps))
		}
		if _, err := config.ParseZooms(cf.Defaults.Zooms); err != nil {
			t.Errorf("template zooms: %v", err)
		}
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := runInit(t, "-o", outputPath); err == nil {
			t.Fatal("expected error for existing file")
		}
		content, _ := os.ReadFile(outputPath)
		if string(content) != "existing" {
			t.Error("existing file was modified")
		}
	})

	t.Run("force overwrites", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0o600); err != nil {
			t.Fatal(err)
		}

		if _, err := runInit(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, _ := os.ReadFile(outputPath)
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})
}

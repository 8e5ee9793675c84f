package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nao1215/oldmaps/internal/model"
	"github.com/nao1215/oldmaps/internal/report"
)

func TestNewPlanCmd(t *testing.T) {
	t.Parallel()

	cmd := NewPlanCmd()
	if cmd.Use != "plan" {
		t.Errorf("expected Use 'plan', got %q", cmd.Use)
	}
	for _, name := range []string{"output", "format", "no-db", "rectified"} {
		if cmd.Flags().Lookup(name) != nil {
			t.Errorf("plan must not register the %s flag", name)
		}
	}
}

func TestPlanCommand(t *testing.T) {
	project := writeProject(t)

	t.Run("json", func(t *testing.T) {
		stdout, err := execute(t, "plan", "-c", project, "--json", "-z", "13-14")
		if err != nil {
			t.Fatalf("plan failed: %v", err)
		}

		var doc report.JSONReport
		if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, stdout)
		}
		s := doc.Summary
		if s == nil {
			t.Fatal("expected summary")
		}
		if s.Mode != model.ModePlan {
			t.Errorf("Mode = %q, want %q", s.Mode, model.ModePlan)
		}
		if len(s.Jobs) != 2 || s.CompletedCount != 2 {
			t.Fatalf("expected 2 completed jobs, got %d/%d", s.CompletedCount, len(s.Jobs))
		}
		if s.TileCount == 0 {
			t.Error("expected planned tiles")
		}
	})

	t.Run("text", func(t *testing.T) {
		stdout, err := execute(t, "plan", "-c", project, "-z", "14")
		if err != nil {
			t.Fatalf("plan failed: %v", err)
		}
		for _, want := range []string{"OLDMAPS TILE PLAN", "oakland-1912", "planned"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected %q in plan output", want)
			}
		}
	})
}

package model

import (
	"errors"
	"testing"
)

func TestNewJob(t *testing.T) {
	t.Parallel()

	job := NewJob(SourceMap{Name: "Oakland", Slug: "oakland"}, 14)

	if job.Status != JobPending || job.StatusText != "PENDING" {
		t.Errorf("expected pending job, got %v / %q", job.Status, job.StatusText)
	}
	if job.ResidualMeters != -1 {
		t.Errorf("expected unknown residual, got %v", job.ResidualMeters)
	}
	if job.Key() != "oakland@14" {
		t.Errorf("Key() = %q", job.Key())
	}
}

func TestJobFailKeepsFirstError(t *testing.T) {
	t.Parallel()

	job := NewJob(SourceMap{}, 1)
	first := errors.New("first")
	job.Fail(first)
	job.Fail(errors.New("second"))

	if !errors.Is(job.Error, first) {
		t.Errorf("expected first error to be kept, got %v", job.Error)
	}
	if job.ErrorMessage != "first" {
		t.Errorf("ErrorMessage = %q", job.ErrorMessage)
	}
}

func TestJobSortTileRecords(t *testing.T) {
	t.Parallel()

	job := NewJob(SourceMap{}, 3)
	job.TileRecords = []TileRecord{
		{Address: TileAddress{Zoom: 3, X: 2, Y: 1}},
		{Address: TileAddress{Zoom: 3, X: 1, Y: 1}},
		{Address: TileAddress{Zoom: 3, X: 5, Y: 0}},
	}
	job.SortTileRecords()

	want := []TileAddress{{3, 5, 0}, {3, 1, 1}, {3, 2, 1}}
	for i, r := range job.TileRecords {
		if r.Address != want[i] {
			t.Errorf("record %d = %v, want %v", i, r.Address, want[i])
		}
	}
}

func TestTileRange(t *testing.T) {
	t.Parallel()

	r := TileRange{
		UpperLeft:  TileAddress{Zoom: 14, X: 10, Y: 20},
		LowerRight: TileAddress{Zoom: 14, X: 12, Y: 21},
	}
	if r.Columns() != 3 || r.Rows() != 2 || r.Count() != 6 {
		t.Errorf("unexpected range size: %d x %d = %d", r.Columns(), r.Rows(), r.Count())
	}
}

func TestDegenerateGeometryError(t *testing.T) {
	t.Parallel()

	err := error(NewDegenerateGeometryError("oakland", 14, "zero pixel baseline"))

	if !errors.Is(err, ErrDegenerateGeometry) {
		t.Error("expected errors.Is to match ErrDegenerateGeometry")
	}
	var dge *DegenerateGeometryError
	if !errors.As(err, &dge) || dge.Map != "oakland" || dge.Zoom != 14 {
		t.Errorf("unexpected errors.As result: %+v", dge)
	}
}

package db

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mscrnt/cantiming/pkg/timing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func solved(t *testing.T, name string, clk, bitrate uint32) *Solve {
	t.Helper()
	res, err := timing.Solve(clk, bitrate)
	if err != nil {
		t.Fatalf("Solve(%d, %d) error = %v", clk, bitrate, err)
	}
	reg, err := res.Timing.BxCAN()
	if err != nil {
		t.Fatalf("BxCAN() error = %v", err)
	}
	return NewSolve(name, "bxcan", res.Input, res, reg, nil)
}

func TestCreateAndGetSolve(t *testing.T) {
	database := openTestDB(t)

	s := solved(t, "body", 10_000_000, 250_000)
	s.Params = JSONData{"source": "test"}
	if err := database.CreateSolve(s); err != nil {
		t.Fatalf("CreateSolve() error = %v", err)
	}
	if s.ID == 0 {
		t.Fatal("CreateSolve() did not set ID")
	}

	got, err := database.GetSolve(s.ID)
	if err != nil {
		t.Fatalf("GetSolve() error = %v", err)
	}

	if got.Name != "body" || got.ClockHz != 10_000_000 || got.Bitrate != 250_000 {
		t.Errorf("GetSolve() = %+v", got)
	}
	if !got.Success {
		t.Error("expected success")
	}
	if got.Register != 0x002F0001 {
		t.Errorf("Register = %#08x, want 0x002f0001", got.Register)
	}
	want := timing.Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 2}
	if got.Timing() != want {
		t.Errorf("Timing() = %v, want %v", got.Timing(), want)
	}
	if got.Params["source"] != "test" {
		t.Errorf("Params = %v", got.Params)
	}
	if got.Status() != "ok" {
		t.Errorf("Status() = %q", got.Status())
	}
}

func TestFailedSolveIsStored(t *testing.T) {
	database := openTestDB(t)

	in := timing.Input{Clock: 8_000_000, Bitrate: 1_000_000, Midpoint: timing.DefaultMidpoint, TolerancePct: timing.DefaultTolerancePct}
	_, solveErr := timing.Solve(in.Clock, in.Bitrate)
	if solveErr == nil {
		t.Fatal("expected solve error")
	}

	s := NewSolve("", "bxcan", in, timing.Result{}, 0, solveErr)
	if err := database.CreateSolve(s); err != nil {
		t.Fatalf("CreateSolve() error = %v", err)
	}

	got, err := database.GetSolve(s.ID)
	if err != nil {
		t.Fatalf("GetSolve() error = %v", err)
	}
	if got.Success {
		t.Error("expected failure")
	}
	if got.ErrorCode != "tolerance_exceeded" {
		t.Errorf("ErrorCode = %q", got.ErrorCode)
	}
	if got.Status() != "tolerance_exceeded" {
		t.Errorf("Status() = %q", got.Status())
	}
	if got.ErrorPct < 12.4 || got.ErrorPct > 12.6 {
		t.Errorf("ErrorPct = %g, want 12.5", got.ErrorPct)
	}
	if !strings.Contains(got.Error, "error is too high") {
		t.Errorf("Error = %q", got.Error)
	}
}

func TestGetSolveNotFound(t *testing.T) {
	database := openTestDB(t)

	_, err := database.GetSolve(42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSolve() error = %v, want ErrNotFound", err)
	}
	if err := database.DeleteSolve(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteSolve() error = %v, want ErrNotFound", err)
	}
}

func TestListSolvesFilters(t *testing.T) {
	database := openTestDB(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	solves := []*Solve{
		solved(t, "body", 10_000_000, 500_000),
		solved(t, "chassis", 10_000_000, 250_000),
		solved(t, "body", 10_000_000, 125_000),
	}
	for i, s := range solves {
		s.CreatedAt = base.Add(time.Duration(i) * time.Hour)
	}
	failed := NewSolve("diag", "mcan",
		timing.Input{Clock: 1_000_000, Bitrate: 1_000_000, Midpoint: 0.175, TolerancePct: 0.5},
		timing.Result{}, 0, &timing.SolveError{Err: timing.ErrBitrateTooHigh})
	failed.CreatedAt = base.Add(3 * time.Hour)
	solves = append(solves, failed)

	if err := database.CreateSolves(solves); err != nil {
		t.Fatalf("CreateSolves() error = %v", err)
	}

	all, err := database.ListSolves(SolveFilter{})
	if err != nil {
		t.Fatalf("ListSolves() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("got %d solves, want 4", len(all))
	}
	if all[0].Name != "diag" {
		t.Errorf("expected newest first, got %q", all[0].Name)
	}

	yes, no := true, false
	since := base.Add(90 * time.Minute)
	tests := []struct {
		name   string
		filter SolveFilter
		want   int
	}{
		{"by name", SolveFilter{Name: "body"}, 2},
		{"by encoder", SolveFilter{Encoder: "mcan"}, 1},
		{"successful", SolveFilter{Success: &yes}, 3},
		{"failed", SolveFilter{Success: &no}, 1},
		{"since", SolveFilter{Since: &since}, 2},
		{"limit", SolveFilter{Limit: 2}, 2},
		{"offset", SolveFilter{Limit: 10, Offset: 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := database.ListSolves(tt.filter)
			if err != nil {
				t.Fatalf("ListSolves() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d solves, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDeleteSolve(t *testing.T) {
	database := openTestDB(t)

	s := solved(t, "body", 10_000_000, 1_000_000)
	if err := database.CreateSolve(s); err != nil {
		t.Fatalf("CreateSolve() error = %v", err)
	}
	if err := database.DeleteSolve(s.ID); err != nil {
		t.Fatalf("DeleteSolve() error = %v", err)
	}
	if _, err := database.GetSolve(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSolve() after delete error = %v", err)
	}
}

func TestDeleteSolvesBefore(t *testing.T) {
	database := openTestDB(t)

	old := solved(t, "body", 10_000_000, 1_000_000)
	old.CreatedAt = time.Now().Add(-48 * time.Hour)
	recent := solved(t, "body", 10_000_000, 500_000)
	for _, s := range []*Solve{old, recent} {
		if err := database.CreateSolve(s); err != nil {
			t.Fatalf("CreateSolve() error = %v", err)
		}
	}

	n, err := database.DeleteSolvesBefore(time.Now().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteSolvesBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteSolvesBefore() removed %d, want 1", n)
	}
	if _, err := database.GetSolve(old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old solve still present: %v", err)
	}
	if _, err := database.GetSolve(recent.ID); err != nil {
		t.Errorf("recent solve removed: %v", err)
	}
}

func TestExport(t *testing.T) {
	database := openTestDB(t)

	s := solved(t, "body", 10_000_000, 125_000)
	if err := database.CreateSolve(s); err != nil {
		t.Fatalf("CreateSolve() error = %v", err)
	}

	var buf bytes.Buffer
	if err := database.ExportCSV(&buf, s.ID); err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d CSV records, want 2", len(records))
	}
	if records[0][0] != "ID" {
		t.Errorf("unexpected header %v", records[0])
	}
	if reg := records[1][len(records[1])-1]; reg != "0x002F0003" {
		t.Errorf("register column = %q", reg)
	}

	buf.Reset()
	if err := database.ExportJSON(&buf, s.ID); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}
	var got Solve
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("parse JSON: %v", err)
	}
	if got.Prescaler != 4 || got.BS1 != 16 || got.BS2 != 3 {
		t.Errorf("exported timing = %v", got.Timing())
	}

	buf.Reset()
	if err := database.ExportAllJSON(&buf, SolveFilter{Name: "missing"}); err != nil {
		t.Fatalf("ExportAllJSON() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty export = %q", buf.String())
	}

	buf.Reset()
	if err := database.ExportAllCSV(&buf, SolveFilter{}); err != nil {
		t.Fatalf("ExportAllCSV() error = %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 2 {
		t.Errorf("got %d CSV lines, want 2", n)
	}
}

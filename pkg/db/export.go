package db

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

var csvHeaders = []string{
	"ID", "Name", "Created", "Clock (Hz)", "Bitrate", "Midpoint", "Tolerance (%)",
	"Encoder", "Success", "Error Code", "BS1", "BS2", "SJW", "Prescaler",
	"Error (%)", "Register",
}

func csvRow(s *Solve) []string {
	reg := ""
	if s.Success {
		reg = fmt.Sprintf("0x%08X", s.Register)
	}
	return []string{
		strconv.FormatInt(s.ID, 10),
		s.Name,
		s.CreatedAt.Format("2006-01-02 15:04:05"),
		strconv.FormatUint(uint64(s.ClockHz), 10),
		strconv.FormatUint(uint64(s.Bitrate), 10),
		strconv.FormatFloat(s.Midpoint, 'g', -1, 64),
		strconv.FormatFloat(s.TolerancePct, 'g', -1, 64),
		s.Encoder,
		strconv.FormatBool(s.Success),
		s.ErrorCode,
		strconv.Itoa(int(s.BS1)),
		strconv.Itoa(int(s.BS2)),
		strconv.Itoa(int(s.SJW)),
		strconv.Itoa(int(s.Prescaler)),
		fmt.Sprintf("%.6f", s.ErrorPct),
		reg,
	}
}

// ExportCSV exports a single solve to CSV format
func (db *DB) ExportCSV(w io.Writer, id int64) error {
	s, err := db.GetSolve(id)
	if err != nil {
		return fmt.Errorf("failed to get solve: %w", err)
	}
	return writeCSV(w, []*Solve{s})
}

// ExportJSON exports a single solve to JSON format
func (db *DB) ExportJSON(w io.Writer, id int64) error {
	s, err := db.GetSolve(id)
	if err != nil {
		return fmt.Errorf("failed to get solve: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(s); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// ExportAllCSV exports every solve matching filter to CSV format
func (db *DB) ExportAllCSV(w io.Writer, filter SolveFilter) error {
	solves, err := db.ListSolves(filter)
	if err != nil {
		return fmt.Errorf("failed to list solves: %w", err)
	}
	return writeCSV(w, solves)
}

// ExportAllJSON exports every solve matching filter as a JSON array
func (db *DB) ExportAllJSON(w io.Writer, filter SolveFilter) error {
	solves, err := db.ListSolves(filter)
	if err != nil {
		return fmt.Errorf("failed to list solves: %w", err)
	}
	if solves == nil {
		solves = []*Solve{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(solves); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

func writeCSV(w io.Writer, solves []*Solve) error {
	csvWriter := csv.NewWriter(w)

	if err := csvWriter.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, s := range solves {
		if err := csvWriter.Write(csvRow(s)); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

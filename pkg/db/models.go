package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mscrnt/cantiming/pkg/timing"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Solve represents one stored solver invocation, successful or not
type Solve struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name,omitempty"`
	ClockHz      uint32    `json:"clock_hz"`
	Bitrate      uint32    `json:"bitrate"`
	Midpoint     float64   `json:"midpoint"`
	TolerancePct float64   `json:"tolerance_pct"`
	Encoder      string    `json:"encoder"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	ErrorCode    string    `json:"error_code,omitempty"`
	BS1          uint8     `json:"bs1"`
	BS2          uint8     `json:"bs2"`
	SJW          uint8     `json:"sjw"`
	Prescaler    uint16    `json:"prescaler"`
	TotalQuanta  int       `json:"total_quanta"`
	ErrorPct     float64   `json:"error_pct"`
	Register     uint32    `json:"register"`
	Params       JSONData  `json:"params,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewSolve builds a record from the outcome of timing.Solve. reg is the
// packed register and is ignored when solveErr is set.
func NewSolve(name, encoder string, in timing.Input, res timing.Result, reg uint32, solveErr error) *Solve {
	s := &Solve{
		Name:         name,
		ClockHz:      in.Clock,
		Bitrate:      in.Bitrate,
		Midpoint:     in.Midpoint,
		TolerancePct: in.TolerancePct,
		Encoder:      encoder,
	}

	if solveErr != nil {
		s.Error = solveErr.Error()
		s.ErrorCode = timing.Code(solveErr)
		var se *timing.SolveError
		if errors.As(solveErr, &se) {
			s.ErrorPct = se.ErrorPct
			s.setTiming(se.Timing)
		}
		return s
	}

	s.Success = true
	s.setTiming(res.Timing)
	s.TotalQuanta = res.TotalQuanta
	s.ErrorPct = res.ErrorPct
	s.Register = reg
	return s
}

func (s *Solve) setTiming(t timing.Timing) {
	s.BS1, s.BS2, s.SJW, s.Prescaler = t.BS1, t.BS2, t.SJW, t.Prescaler
}

// Timing returns the stored segment values
func (s *Solve) Timing() timing.Timing {
	return timing.Timing{BS1: s.BS1, BS2: s.BS2, SJW: s.SJW, Prescaler: s.Prescaler}
}

// Input returns the stored solver parameters
func (s *Solve) Input() timing.Input {
	return timing.Input{
		Clock:        s.ClockHz,
		Bitrate:      s.Bitrate,
		Midpoint:     s.Midpoint,
		TolerancePct: s.TolerancePct,
	}
}

// Status returns a short label for listings
func (s *Solve) Status() string {
	if s.Success {
		return "ok"
	}
	if s.ErrorCode != "" {
		return s.ErrorCode
	}
	return "failed"
}

// JSONData is a custom type for storing JSON in SQLite
type JSONData map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSONData) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSONData) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into JSONData", value)
	}

	return json.Unmarshal(data, j)
}

// SolveFilter represents filters for querying solves
type SolveFilter struct {
	Name    string
	Encoder string
	Since   *time.Time
	Success *bool
	Limit   int
	Offset  int
}

// ExportFormat represents the format for exporting data
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatJSON ExportFormat = "json"
)

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/mscrnt/cantiming/pkg/encoder"
	"github.com/mscrnt/cantiming/pkg/timing"
	"github.com/mscrnt/cantiming/pkg/units"
)

// maxBodySize bounds /solve request bodies
const maxBodySize = 64 << 10

// Request is the body of POST /solve. Frequencies and ratios accept the
// same notations as the command line.
type Request struct {
	Name      string          `json:"name,omitempty"`
	Clock     units.Frequency `json:"clock"`
	Bitrate   units.Frequency `json:"bitrate"`
	Midpoint  *units.Ratio    `json:"midpoint,omitempty"`
	Tolerance *units.Percent  `json:"tolerance,omitempty"`
	Encoder   string          `json:"encoder,omitempty"`
}

// Response is a successful solve
type Response struct {
	encoder.Packed
	RegisterHex string  `json:"register_hex"`
	SamplePoint float64 `json:"sample_point"`
}

// ErrorResponse is returned for every rejected request
type ErrorResponse struct {
	Error    string  `json:"error"`
	Code     string  `json:"code,omitempty"`
	ErrorPct float64 `json:"error_pct,omitempty"`
}

// Error codes that do not come from the solver
const (
	CodeBadRequest     = "bad_request"
	CodeUnknownEncoder = "unknown_encoder"
	CodeFieldRange     = "field_out_of_range"
)

// SolveStore records served solves
type SolveStore interface {
	CreateSolve(s *db.Solve) error
}

func (s *Server) solveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("invalid request body: %v", err),
			Code:  CodeBadRequest,
		})
		return
	}

	enc, err := encoder.Get(req.Encoder)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeUnknownEncoder})
		return
	}

	opts := []timing.Option{timing.WithLogger(s.logger)}
	if req.Midpoint != nil {
		opts = append(opts, timing.WithMidpoint(float64(*req.Midpoint)))
	}
	if req.Tolerance != nil {
		opts = append(opts, timing.WithTolerance(float64(*req.Tolerance)))
	}

	res, err := timing.Solve(req.Clock.Hz(), req.Bitrate.Hz(), opts...)
	if err != nil {
		s.record(req, enc.Name(), timing.Result{}, 0, err)
		writeSolveError(w, err)
		return
	}

	packed, err := encoder.Pack(enc, res)
	if err != nil {
		s.record(req, enc.Name(), res, 0, err)
		writeError(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    err.Error(),
			Code:     CodeFieldRange,
			ErrorPct: res.ErrorPct,
		})
		return
	}
	s.record(req, enc.Name(), res, packed.Register, nil)

	writeJSON(w, http.StatusOK, Response{
		Packed:      packed,
		RegisterHex: fmt.Sprintf("0x%08X", packed.Register),
		SamplePoint: res.Timing.SamplePoint(),
	})
}

// record stores the outcome when a history store is attached. Storage
// failures are logged and never fail the request.
func (s *Server) record(req Request, enc string, res timing.Result, reg uint32, solveErr error) {
	if s.store == nil {
		return
	}

	in := res.Input
	var se *timing.SolveError
	if errors.As(solveErr, &se) {
		in = se.Input
	}

	rec := db.NewSolve(req.Name, enc, in, res, reg, solveErr)
	if solveErr != nil && se == nil {
		// encoding failures keep the solved segments
		rec.ErrorCode = CodeFieldRange
		rec.ErrorPct = res.ErrorPct
		rec.BS1, rec.BS2, rec.SJW, rec.Prescaler = res.Timing.BS1, res.Timing.BS2, res.Timing.SJW, res.Timing.Prescaler
	}
	rec.Params = db.JSONData{"source": "server"}
	if err := s.store.CreateSolve(rec); err != nil {
		s.logger.Warnf("failed to record solve: %v", err)
	}
}

func encodersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, encoder.GetInfo())
}

// healthHandler returns server health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK\n")
}

// writeSolveError maps solver errors to HTTP statuses. Bad parameters are
// the caller's fault; everything else means no timing exists for them.
func writeSolveError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: timing.Code(err)}

	var se *timing.SolveError
	if errors.As(err, &se) {
		resp.ErrorPct = se.ErrorPct
	}

	status := http.StatusUnprocessableEntity
	if errors.Is(err, timing.ErrInvalidInput) || errors.Is(err, timing.ErrInvalidMidpoint) {
		status = http.StatusBadRequest
	}
	writeError(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package timing

import (
	"errors"
	"fmt"
	"math"

	"github.com/mscrnt/cantiming/internal/logging"
)

// Defaults applied by Solve when no option overrides them.
const (
	DefaultMidpoint     = 0.175
	DefaultTolerancePct = 0.5

	// MinTimeQuanta is the smallest bs1+bs2 searched. Shorter bits cannot
	// absorb normal oscillator drift.
	MinTimeQuanta = 8
)

// Errors returned by Solve. They are wrapped in *SolveError.
var (
	ErrInvalidInput        = errors.New("invalid solver input")
	ErrInvalidMidpoint     = errors.New("midpoint must lie in (0,1)")
	ErrBitrateTooHigh      = errors.New("CAN bitrate is too high for standard bit timings")
	ErrPrescalerOutOfRange = errors.New("prescaler value too large")
	ErrToleranceExceeded   = errors.New("error is too high for this configuration")
	ErrSegmentOutOfRange   = errors.New("segment split outside register limits")
)

// Input is the complete parameter set of one solve.
type Input struct {
	Clock        uint32  `json:"clock_hz" yaml:"clock_hz"`
	Bitrate      uint32  `json:"bitrate" yaml:"bitrate"`
	Midpoint     float64 `json:"midpoint" yaml:"midpoint"`
	TolerancePct float64 `json:"tolerance_pct" yaml:"tolerance_pct"`
}

// Result is a successful solve.
type Result struct {
	Timing Timing `json:"timing"`
	// ErrorPct is the achieved prescaler quantization error in percent.
	ErrorPct float64 `json:"error_pct"`
	// TotalQuanta is the winning bs1+bs2.
	TotalQuanta int   `json:"total_quanta"`
	Input       Input `json:"input"`
}

// SolveError reports why a solve was rejected. Err is one of the package
// sentinel errors.
type SolveError struct {
	Input    Input
	Timing   Timing  // best candidate found, zero for input errors
	ErrorPct float64 // achieved error of that candidate
	Err      error
}

func (e *SolveError) Error() string {
	switch {
	case errors.Is(e.Err, ErrToleranceExceeded):
		return fmt.Sprintf("solve %d Hz / %d bit/s: %v (%g %% > %g %%)",
			e.Input.Clock, e.Input.Bitrate, e.Err, e.ErrorPct, e.Input.TolerancePct)
	case errors.Is(e.Err, ErrPrescalerOutOfRange), errors.Is(e.Err, ErrSegmentOutOfRange):
		return fmt.Sprintf("solve %d Hz / %d bit/s: %v (%s)",
			e.Input.Clock, e.Input.Bitrate, e.Err, e.Timing)
	default:
		return fmt.Sprintf("solve %d Hz / %d bit/s: %v", e.Input.Clock, e.Input.Bitrate, e.Err)
	}
}

func (e *SolveError) Unwrap() error {
	return e.Err
}

// Option tunes a single Solve call
type Option func(*solveOptions)

type solveOptions struct {
	midpoint  float64
	tolerance float64
	logger    logging.Logger
}

// WithMidpoint sets the fraction of the bit quanta given to bs2. Larger
// values move the sample point earlier.
func WithMidpoint(m float64) Option {
	return func(o *solveOptions) { o.midpoint = m }
}

// WithTolerance sets the largest acceptable quantization error in percent.
func WithTolerance(pct float64) Option {
	return func(o *solveOptions) { o.tolerance = pct }
}

// WithLogger traces the selected candidate at debug level.
func WithLogger(l logging.Logger) Option {
	return func(o *solveOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Candidate is one entry of the search table: a bs1+bs2 length and the
// prescaler that comes closest to the target bitrate with it.
type Candidate struct {
	TotalQuanta    int     `json:"total_quanta"`
	IdealPrescaler float64 `json:"ideal_prescaler"`
	Prescaler      uint32  `json:"prescaler"`
	// Error is the relative error |1 - prescaler/ideal|.
	Error float64 `json:"error"`
}

// ErrorPct returns Error in percent
func (c Candidate) ErrorPct() float64 {
	return c.Error * 100
}

// Candidates returns the search table for clk and bitrate, ordered by
// ascending TotalQuanta.
func Candidates(clk, bitrate uint32) []Candidate {
	out := make([]Candidate, 0, MaxTimeQuanta-MinTimeQuanta+1)
	search(clk, bitrate, func(c Candidate) { out = append(out, c) })
	return out
}

func search(clk, bitrate uint32, visit func(Candidate)) {
	for tq := MinTimeQuanta; tq <= MaxTimeQuanta; tq++ {
		ideal := float64(clk) / (float64(bitrate) * float64(1+tq))
		psc := roundHalfUp(ideal)
		visit(Candidate{
			TotalQuanta:    tq,
			IdealPrescaler: ideal,
			Prescaler:      psc,
			Error:          math.Abs(1 - float64(psc)/ideal),
		})
	}
}

// roundHalfUp rounds to the nearest integer, 0.5 going up.
func roundHalfUp(f float64) uint32 {
	r := math.Floor(f + 0.5)
	if r >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(r)
}

// best picks the candidate with the lowest error. Equal errors are won by
// the later, longer candidate.
func best(clk, bitrate uint32) Candidate {
	winner := Candidate{Error: math.Inf(1)}
	search(clk, bitrate, func(c Candidate) {
		if c.Error <= winner.Error {
			winner = c
		}
	})
	return winner
}

// Solve finds the bit timing that realizes bitrate from a clk Hz peripheral
// clock with the smallest prescaler quantization error.
//
// The search is exhaustive over bs1+bs2 in [MinTimeQuanta, MaxTimeQuanta];
// the winner is split into bs2 = floor(midpoint*(bs1+bs2+1)) and the rest
// for bs1. sjw is always 1. Solve is pure and safe for concurrent use.
func Solve(clk, bitrate uint32, opts ...Option) (Result, error) {
	o := solveOptions{
		midpoint:  DefaultMidpoint,
		tolerance: DefaultTolerancePct,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	in := Input{Clock: clk, Bitrate: bitrate, Midpoint: o.midpoint, TolerancePct: o.tolerance}
	if err := in.validate(); err != nil {
		return Result{}, &SolveError{Input: in, Err: err}
	}

	c := best(clk, bitrate)
	errPct := c.ErrorPct()

	bs2 := int(math.Floor(o.midpoint * float64(c.TotalQuanta+1)))
	bs1 := c.TotalQuanta - bs2

	o.logger.Debugf("selecting for %d Hz %d Hz tqs: %d %d, psc: %d err: %g",
		clk, bitrate, bs1, bs2, c.Prescaler, c.Error)

	if c.Prescaler == 0 {
		return Result{}, &SolveError{Input: in, ErrorPct: errPct, Err: ErrBitrateTooHigh}
	}

	t := Timing{SJW: 1}
	if c.Prescaler > MaxPrescaler {
		t.Prescaler = math.MaxUint16
		if c.Prescaler < math.MaxUint16 {
			t.Prescaler = uint16(c.Prescaler)
		}
		return Result{}, &SolveError{Input: in, Timing: t, ErrorPct: errPct, Err: ErrPrescalerOutOfRange}
	}
	t.Prescaler = uint16(c.Prescaler)

	t.BS1, t.BS2 = uint8(bs1), uint8(bs2)

	if errPct > o.tolerance {
		return Result{}, &SolveError{Input: in, Timing: t, ErrorPct: errPct, Err: ErrToleranceExceeded}
	}

	if bs1 < MinBS1 || bs1 > MaxBS1 || bs2 < MinBS2 || bs2 > MaxBS2 {
		return Result{}, &SolveError{Input: in, Timing: t, ErrorPct: errPct, Err: ErrSegmentOutOfRange}
	}

	return Result{Timing: t, ErrorPct: errPct, TotalQuanta: c.TotalQuanta, Input: in}, nil
}

func (in Input) validate() error {
	if in.Clock == 0 {
		return fmt.Errorf("%w: clock must be positive", ErrInvalidInput)
	}
	if in.Bitrate == 0 {
		return fmt.Errorf("%w: bitrate must be positive", ErrInvalidInput)
	}
	if math.IsNaN(in.Midpoint) || in.Midpoint <= 0 || in.Midpoint >= 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidMidpoint, in.Midpoint)
	}
	if math.IsNaN(in.TolerancePct) || in.TolerancePct < 0 {
		return fmt.Errorf("%w: tolerance must be a non-negative percentage, got %g", ErrInvalidInput, in.TolerancePct)
	}
	return nil
}

// Code returns a stable, machine readable name for a solver error, or ""
// when err is not one.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidMidpoint):
		return "invalid_midpoint"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrBitrateTooHigh):
		return "bitrate_too_high"
	case errors.Is(err, ErrPrescalerOutOfRange):
		return "prescaler_out_of_range"
	case errors.Is(err, ErrToleranceExceeded):
		return "tolerance_exceeded"
	case errors.Is(err, ErrSegmentOutOfRange):
		return "segment_out_of_range"
	default:
		return ""
	}
}

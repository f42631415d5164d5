// Package units parses the human friendly frequency, ratio and percentage
// notations accepted on the command line and in bus description files.
//
// Frequencies may be written as plain integers (10000000, 10_000_000), with
// a unit suffix (10 MHz, 1000kHz, 500 kbps, 125k) or in method-call form
// (10.mhz(), 1000.khz()).
package units

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Parse errors
var (
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidRatio     = errors.New("invalid ratio")
	ErrInvalidPercent   = errors.New("invalid percentage")
)

// multipliers maps lower-case unit suffixes to their factor in Hz
var multipliers = map[string]float64{
	"":     1,
	"hz":   1,
	"bps":  1,
	"k":    1e3,
	"khz":  1e3,
	"kbps": 1e3,
	"kbit": 1e3,
	"m":    1e6,
	"mhz":  1e6,
	"mbps": 1e6,
	"mbit": 1e6,
}

// Frequency is a positive integer number of Hz (or bit/s).
type Frequency uint32

// ParseFrequency converts s into Hz. Fractional values are allowed as long
// as the scaled result is a whole number.
func ParseFrequency(s string) (Frequency, error) {
	num, unit, err := split(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidFrequency, s, err)
	}

	mul, ok := multipliers[unit]
	if !ok {
		return 0, fmt.Errorf("%w %q: unknown multiplier %q", ErrInvalidFrequency, s, unit)
	}

	// integers are parsed exactly so large values keep every digit
	if n, err := strconv.ParseUint(num, 10, 64); err == nil {
		v := n * uint64(mul)
		if n != 0 && v/n != uint64(mul) || v > math.MaxUint32 {
			return 0, fmt.Errorf("%w %q: does not fit in 32 bits", ErrInvalidFrequency, s)
		}
		if v == 0 {
			return 0, fmt.Errorf("%w %q: must be positive", ErrInvalidFrequency, s)
		}
		return Frequency(v), nil
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidFrequency, s, err)
	}
	v := f * mul
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, fmt.Errorf("%w %q: not a number", ErrInvalidFrequency, s)
	case v <= 0:
		return 0, fmt.Errorf("%w %q: must be positive", ErrInvalidFrequency, s)
	case v > math.MaxUint32:
		return 0, fmt.Errorf("%w %q: does not fit in 32 bits", ErrInvalidFrequency, s)
	}
	r := math.Round(v)
	if math.Abs(v-r) > 1e-6 {
		return 0, fmt.Errorf("%w %q: %g Hz is not a whole number", ErrInvalidFrequency, s, v)
	}
	return Frequency(r), nil
}

// Hz returns the frequency as a plain integer
func (f Frequency) Hz() uint32 {
	return uint32(f)
}

// String renders the frequency with the largest unit that keeps it whole.
func (f Frequency) String() string {
	switch {
	case f != 0 && f%1_000_000 == 0:
		return fmt.Sprintf("%d MHz", f/1_000_000)
	case f != 0 && f%1_000 == 0:
		return fmt.Sprintf("%d kHz", f/1_000)
	default:
		return fmt.Sprintf("%d Hz", uint32(f))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Frequency) UnmarshalText(b []byte) error {
	v, err := ParseFrequency(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Frequency) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// split separates the numeric part of s from its unit suffix. Both the
// "10 MHz" and the "10.mhz()" spellings are recognised.
func split(s string) (num, unit string, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", errors.New("empty value")
	}

	// method-call form: <number>.<unit>()
	if strings.HasSuffix(s, "()") {
		body := strings.TrimSuffix(s, "()")
		dot := strings.LastIndexByte(body, '.')
		if dot <= 0 || dot == len(body)-1 {
			return "", "", errors.New("expected <number>.<unit>()")
		}
		num, unit = body[:dot], body[dot+1:]
		if !isIdent(unit) {
			return "", "", fmt.Errorf("bad unit %q", unit)
		}
		return strings.ReplaceAll(num, "_", ""), strings.ToLower(unit), nil
	}

	i := len(s)
	for i > 0 && isLetter(s[i-1]) {
		i--
	}
	if i == 0 {
		return "", "", errors.New("missing number")
	}
	num = strings.TrimSpace(s[:i])
	unit = strings.ToLower(s[i:])
	if num == "" {
		return "", "", errors.New("missing number")
	}
	return strings.ReplaceAll(num, "_", ""), unit, nil
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isLetter(s[i]) {
			return false
		}
	}
	return s != ""
}

package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Ratio is a plain fraction, e.g. the bs2 share of a bit.
type Ratio float64

// Percent is a value in percent, e.g. a quantization error tolerance.
type Percent float64

// percentSuffixes are the accepted spellings of "this number is already in
// percent".
var percentSuffixes = []string{".pct()", "pct", "%"}

// ParseRatio reads a fraction. "0.175", "17.5%" and "17.5 pct" are the same
// ratio.
func ParseRatio(s string) (Ratio, error) {
	num, isPct := trimPercent(s)
	f, err := parseFloat(num)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidRatio, s, err)
	}
	if isPct {
		f /= 100
	}
	return Ratio(f), nil
}

// ParsePercent reads a percentage. A bare number is taken as a ratio and
// scaled by 100, so "0.005" and "0.5 pct" both mean half a percent.
func ParsePercent(s string) (Percent, error) {
	num, isPct := trimPercent(s)
	f, err := parseFloat(num)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %v", ErrInvalidPercent, s, err)
	}
	if !isPct {
		f *= 100
	}
	return Percent(f), nil
}

// Percent converts a ratio to percent
func (r Ratio) Percent() Percent {
	return Percent(float64(r) * 100)
}

// Ratio converts a percentage to a fraction
func (p Percent) Ratio() Ratio {
	return Ratio(float64(p) / 100)
}

func (r Ratio) String() string {
	return strconv.FormatFloat(float64(r), 'g', -1, 64)
}

func (p Percent) String() string {
	return strconv.FormatFloat(float64(p), 'g', -1, 64) + " %"
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Ratio) UnmarshalText(b []byte) error {
	v, err := ParseRatio(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Percent) UnmarshalText(b []byte) error {
	v, err := ParsePercent(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Percent) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(p), 'g', -1, 64) + " pct"), nil
}

func trimPercent(s string) (string, bool) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, suf := range percentSuffixes {
		if strings.HasSuffix(lower, suf) {
			return strings.TrimSpace(s[:len(s)-len(suf)]), true
		}
	}
	return s, false
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, "_", ""), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}

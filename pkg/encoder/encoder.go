// Package encoder packs solved bit timings into controller specific
// bit-timing register layouts.
package encoder

import (
	"fmt"

	"github.com/mscrnt/cantiming/pkg/timing"
)

// Encoder is the interface every register layout implements
type Encoder interface {
	// Name returns the unique name of the layout
	Name() string

	// Description returns a human-readable description
	Description() string

	// Encode packs t into the register. Fields the layout cannot hold are
	// reported as an error.
	Encode(t timing.Timing) (uint32, error)

	// Decode extracts the timing fields from a register value
	Decode(reg uint32) timing.Timing
}

// FieldInfo describes one register field
type FieldInfo struct {
	Name  string `json:"name"`
	Shift uint   `json:"shift"`
	Width uint   `json:"width"`
}

// Mask returns the in-place mask of the field
func (f FieldInfo) Mask() uint32 {
	return (1<<f.Width - 1) << f.Shift
}

// Extract returns the raw field value of reg
func (f FieldInfo) Extract(reg uint32) uint32 {
	return (reg & f.Mask()) >> f.Shift
}

// Info provides metadata about an encoder
type Info struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Register    string      `json:"register"`
	Fields      []FieldInfo `json:"fields"`
}

// FieldValue is a field of a packed register with its raw and decoded value
type FieldValue struct {
	FieldInfo
	Raw   uint32 `json:"raw"`
	Value uint32 `json:"value"`
}

// Breakdown splits reg into the fields of enc. Encoders that do not publish
// field metadata yield nil.
func Breakdown(enc Encoder, reg uint32) []FieldValue {
	ie, ok := enc.(interface{ Info() Info })
	if !ok {
		return nil
	}
	fields := ie.Info().Fields
	out := make([]FieldValue, 0, len(fields))
	for _, f := range fields {
		raw := f.Extract(reg)
		// every timing field is stored minus one
		out = append(out, FieldValue{FieldInfo: f, Raw: raw, Value: raw + 1})
	}
	return out
}

// checkWidth rejects values that do not fit a zero-based field of width bits
func checkWidth(field string, value int, width uint) error {
	if value < 1 || value > 1<<width {
		return fmt.Errorf("%w: %s=%d does not fit %d-bit field", timing.ErrFieldRange, field, value, width)
	}
	return nil
}

// Packed is a solve result together with its register value
type Packed struct {
	timing.Result
	Encoder  string       `json:"encoder"`
	Register uint32       `json:"register"`
	Fields   []FieldValue `json:"fields,omitempty"`
}

// Pack encodes res.Timing with enc
func Pack(enc Encoder, res timing.Result) (Packed, error) {
	reg, err := enc.Encode(res.Timing)
	if err != nil {
		return Packed{}, fmt.Errorf("%s: %w", enc.Name(), err)
	}
	return Packed{
		Result:   res,
		Encoder:  enc.Name(),
		Register: reg,
		Fields:   Breakdown(enc, reg),
	}, nil
}

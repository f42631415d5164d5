// Package timing computes CAN bit-timing parameters and packs them into
// controller bit-timing registers.
package timing

import (
	"errors"
	"fmt"
)

// Hardware limits of a classic CAN bit-timing register.
const (
	MinBS1       = 1
	MaxBS1       = 16
	MinBS2       = 1
	MaxBS2       = 8
	MinPrescaler = 1
	MaxPrescaler = 1024 // 10-bit field, stored minus one

	// MaxTimeQuanta is the largest bs1+bs2 a controller supports. One more
	// quantum is always spent in the synchronization segment.
	MaxTimeQuanta = 25
)

// bxCAN BTR field positions
const (
	bxcanBRPMask  = 0x3FF
	bxcanTS1Shift = 16
	bxcanTS1Mask  = 0xF
	bxcanTS2Shift = 20
	bxcanTS2Mask  = 0x7
	bxcanSJWShift = 24
	bxcanSJWMask  = 0x7
)

// ErrFieldRange is returned when a Timing field lies outside what the
// hardware can represent.
var ErrFieldRange = errors.New("timing field out of range")

// FieldError describes which field of a Timing failed validation
type FieldError struct {
	Field string
	Value int
	Min   int
	Max   int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s=%d outside [%d,%d]", e.Field, e.Value, e.Min, e.Max)
}

// Unwrap lets errors.Is match ErrFieldRange
func (e *FieldError) Unwrap() error {
	return ErrFieldRange
}

// Timing is one hardware-ready bit-timing configuration. All lengths are in
// time quanta.
type Timing struct {
	BS1       uint8  `json:"bs1" yaml:"bs1"`
	BS2       uint8  `json:"bs2" yaml:"bs2"`
	SJW       uint8  `json:"sjw" yaml:"sjw"`
	Prescaler uint16 `json:"prescaler" yaml:"prescaler"`
}

// TotalTimeQuanta returns bs1 + bs2 + sjw.
func (t Timing) TotalTimeQuanta() int {
	return int(t.BS1) + int(t.BS2) + int(t.SJW)
}

// Validate checks every field against the register limits.
func (t Timing) Validate() error {
	checks := []FieldError{
		{Field: "bs1", Value: int(t.BS1), Min: MinBS1, Max: MaxBS1},
		{Field: "bs2", Value: int(t.BS2), Min: MinBS2, Max: MaxBS2},
		{Field: "sjw", Value: int(t.SJW), Min: 1, Max: min(int(t.BS1), int(t.BS2))},
		{Field: "prescaler", Value: int(t.Prescaler), Min: MinPrescaler, Max: MaxPrescaler},
	}
	for i := range checks {
		c := checks[i]
		if c.Value < c.Min || c.Value > c.Max {
			return &c
		}
	}
	if total := t.TotalTimeQuanta(); total > MaxTimeQuanta+1 {
		return &FieldError{Field: "total_time_quanta", Value: total, Min: MinBS1 + MinBS2 + 1, Max: MaxTimeQuanta + 1}
	}
	return nil
}

// BxCAN packs the timing into the layout of the bxCAN BTR register:
//
//	bits 24-26  SJW-1
//	bits 20-22  BS2-1
//	bits 16-19  BS1-1
//	bits  0-9   BRP-1
//
// Out-of-range fields are rejected rather than wrapped into neighbouring
// bits. A Timing returned by Solve always encodes.
func (t Timing) BxCAN() (uint32, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	return (uint32(t.SJW)-1)<<bxcanSJWShift |
		(uint32(t.BS1)-1)<<bxcanTS1Shift |
		(uint32(t.BS2)-1)<<bxcanTS2Shift |
		(uint32(t.Prescaler) - 1), nil
}

// DecodeBxCAN is the inverse of BxCAN. Bits outside the timing fields
// (loopback, silent mode) are ignored.
func DecodeBxCAN(reg uint32) Timing {
	return Timing{
		BS1:       uint8((reg>>bxcanTS1Shift)&bxcanTS1Mask) + 1,
		BS2:       uint8((reg>>bxcanTS2Shift)&bxcanTS2Mask) + 1,
		SJW:       uint8((reg>>bxcanSJWShift)&bxcanSJWMask) + 1,
		Prescaler: uint16(reg&bxcanBRPMask) + 1,
	}
}

// SamplePoint returns the nominal sample point as a percentage of the bit
// time. The sample is taken at the end of bs1.
func (t Timing) SamplePoint() float64 {
	bit := 1 + int(t.BS1) + int(t.BS2)
	if bit == 0 {
		return 0
	}
	return float64(1+int(t.BS1)) * 100 / float64(bit)
}

// BitrateFor returns the bitrate this timing produces from clock clk (Hz).
func (t Timing) BitrateFor(clk uint32) float64 {
	if t.Prescaler == 0 {
		return 0
	}
	return float64(clk) / (float64(t.Prescaler) * float64(1+int(t.BS1)+int(t.BS2)))
}

func (t Timing) String() string {
	return fmt.Sprintf("bs1=%d bs2=%d sjw=%d prescaler=%d", t.BS1, t.BS2, t.SJW, t.Prescaler)
}

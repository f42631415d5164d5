package encoder

import (
	"errors"
	"testing"

	"github.com/mscrnt/cantiming/pkg/timing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		encoder Encoder
		timing  timing.Timing
		want    uint32
	}{
		{"bxcan 1M", BxCAN{}, timing.Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1}, 0x00070000},
		{"bxcan 125k", BxCAN{}, timing.Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 4}, 0x002F0003},
		{"mcan 1M", MCAN{}, timing.Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1}, 0x00000700},
		{"mcan 125k", MCAN{}, timing.Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 4}, 0x00030F02},
		{"mcan sjw", MCAN{}, timing.Timing{BS1: 13, BS2: 4, SJW: 2, Prescaler: 512}, 0x03FF0C03},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.encoder.Encode(tt.timing)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode() = %#08x, want %#08x", got, tt.want)
			}
			if back := tt.encoder.Decode(got); back != tt.timing {
				t.Errorf("Decode(%#08x) = %v, want %v", got, back, tt.timing)
			}
		})
	}
}

func TestEncodeRejectsWideFields(t *testing.T) {
	tests := []struct {
		name    string
		encoder Encoder
		timing  timing.Timing
	}{
		{"bxcan bs1", BxCAN{}, timing.Timing{BS1: 19, BS2: 4, SJW: 1, Prescaler: 3}},
		{"mcan prescaler", MCAN{}, timing.Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 600}},
		{"mcan bs2", MCAN{}, timing.Timing{BS1: 8, BS2: 9, SJW: 1, Prescaler: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.encoder.Encode(tt.timing)
			if !errors.Is(err, timing.ErrFieldRange) {
				t.Errorf("Encode() error = %v, want ErrFieldRange", err)
			}
		})
	}
}

func TestBreakdown(t *testing.T) {
	fields := Breakdown(BxCAN{}, 0x002F0003)
	want := map[string]uint32{"SJW": 1, "TS2": 3, "TS1": 16, "BRP": 4}
	if len(fields) != len(want) {
		t.Fatalf("Breakdown() returned %d fields, want %d", len(fields), len(want))
	}
	for _, f := range fields {
		if f.Value != want[f.Name] {
			t.Errorf("field %s = %d, want %d", f.Name, f.Value, want[f.Name])
		}
		if f.Raw != f.Value-1 {
			t.Errorf("field %s raw = %d, want %d", f.Name, f.Raw, f.Value-1)
		}
	}

	if got := Breakdown(&mockEncoder{name: "x"}, 0); got != nil {
		t.Errorf("Breakdown() of encoder without Info = %v, want nil", got)
	}
}

func TestFieldMask(t *testing.T) {
	f := FieldInfo{Name: "TS1", Shift: 16, Width: 4}
	if got := f.Mask(); got != 0x000F0000 {
		t.Errorf("Mask() = %#08x", got)
	}
	if got := f.Extract(0x002F0003); got != 0xF {
		t.Errorf("Extract() = %#x", got)
	}
}

func TestPack(t *testing.T) {
	res, err := timing.Solve(10_000_000, 125_000)
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}

	p, err := Pack(MCAN{}, res)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if p.Register != 0x00030F02 || p.Encoder != "mcan" {
		t.Errorf("Pack() = %s %#08x", p.Encoder, p.Register)
	}
	if len(p.Fields) != 4 || p.Fields[1].Name != "NBRP" || p.Fields[1].Value != 4 {
		t.Errorf("Fields = %+v", p.Fields)
	}

	// 100 MHz / 5 kbit needs prescaler 800, beyond the 9-bit NBRP
	wide, err := timing.Solve(100_000_000, 5_000, timing.WithMidpoint(0.33))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if _, err := Pack(MCAN{}, wide); !errors.Is(err, timing.ErrFieldRange) {
		t.Errorf("Pack() error = %v, want ErrFieldRange", err)
	}
}

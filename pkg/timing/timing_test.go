package timing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalTimeQuanta(t *testing.T) {
	tm := Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1}
	assert.Equal(t, 10, tm.TotalTimeQuanta())
}

func TestBxCAN(t *testing.T) {
	tests := []struct {
		name   string
		timing Timing
		want   uint32
	}{
		{"10MHz 1Mbit", Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1}, 0x00070000},
		{"10MHz 500k", Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 1}, 0x002F0000},
		{"10MHz 250k", Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 2}, 0x002F0001},
		{"10MHz 125k", Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 4}, 0x002F0003},
		{"max prescaler", Timing{BS1: 1, BS2: 1, SJW: 1, Prescaler: 1024}, 0x000003FF},
		{"sjw 4", Timing{BS1: 13, BS2: 4, SJW: 4, Prescaler: 6}, 0x033C0005},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.timing.BxCAN()
			require.NoError(t, err)
			assert.Equalf(t, tt.want, got, "BxCAN() = %#08x, want %#08x", got, tt.want)
		})
	}
}

func TestBxCANRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		timing Timing
		field  string
	}{
		{"bs1 zero", Timing{BS1: 0, BS2: 1, SJW: 1, Prescaler: 1}, "bs1"},
		{"bs1 too long", Timing{BS1: 19, BS2: 4, SJW: 1, Prescaler: 3}, "bs1"},
		{"bs2 too long", Timing{BS1: 8, BS2: 9, SJW: 1, Prescaler: 1}, "bs2"},
		{"sjw wider than bs2", Timing{BS1: 8, BS2: 1, SJW: 2, Prescaler: 1}, "sjw"},
		{"sjw zero", Timing{BS1: 8, BS2: 1, SJW: 0, Prescaler: 1}, "sjw"},
		{"prescaler zero", Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 0}, "prescaler"},
		{"prescaler too large", Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1025}, "prescaler"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.timing.BxCAN()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFieldRange))

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestDecodeBxCANRoundTrip(t *testing.T) {
	for bs1 := MinBS1; bs1 <= MaxBS1; bs1++ {
		for bs2 := MinBS2; bs2 <= MaxBS2; bs2++ {
			for _, psc := range []uint16{1, 2, 3, 64, 511, 1023, 1024} {
				for sjw := 1; sjw <= min(bs1, bs2, 4); sjw++ {
					tm := Timing{BS1: uint8(bs1), BS2: uint8(bs2), SJW: uint8(sjw), Prescaler: psc}
					if tm.TotalTimeQuanta() > MaxTimeQuanta+1 {
						continue
					}
					reg, err := tm.BxCAN()
					require.NoError(t, err, tm.String())
					require.Equal(t, tm, DecodeBxCAN(reg), "register %#08x", reg)
				}
			}
		}
	}
}

func TestDecodeBxCANIgnoresModeBits(t *testing.T) {
	// LBKM and SILM live in bits 30 and 31
	got := DecodeBxCAN(0xC0070000)
	assert.Equal(t, Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1}, got)
}

func TestSamplePoint(t *testing.T) {
	assert.InDelta(t, 90.0, Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1}.SamplePoint(), 1e-9)
	assert.InDelta(t, 85.0, Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 1}.SamplePoint(), 1e-9)
	assert.InDelta(t, 87.5, Timing{BS1: 13, BS2: 2, SJW: 1, Prescaler: 5}.SamplePoint(), 1e-9)
}

func TestBitrateFor(t *testing.T) {
	tm := Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 4}
	assert.InDelta(t, 125000.0, tm.BitrateFor(10_000_000), 1e-6)
	assert.Zero(t, Timing{}.BitrateFor(10_000_000))
}

func TestString(t *testing.T) {
	assert.Equal(t, "bs1=7 bs2=2 sjw=1 prescaler=1", Timing{BS1: 7, BS2: 2, SJW: 1, Prescaler: 1}.String())
}

package encoder

import "github.com/mscrnt/cantiming/pkg/timing"

// M_CAN NBTP field positions
const (
	mcanNSJWShift   = 25
	mcanNSJWWidth   = 7
	mcanNBRPShift   = 16
	mcanNBRPWidth   = 9
	mcanNTSEG1Shift = 8
	mcanNTSEG1Width = 8
	mcanNTSEG2Shift = 0
	mcanNTSEG2Width = 7
)

// MCAN is the nominal bit timing and prescaler register (NBTP) of the Bosch
// M_CAN core, as found on SAM E5x and STM32 FDCAN parts. Only the nominal
// phase is encoded.
type MCAN struct{}

func (MCAN) Name() string { return "mcan" }

func (MCAN) Description() string {
	return "Bosch M_CAN NBTP (NSJW 31:25, NBRP 24:16, NTSEG1 15:8, NTSEG2 6:0)"
}

func (MCAN) Encode(t timing.Timing) (uint32, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	if err := checkWidth("prescaler", int(t.Prescaler), mcanNBRPWidth); err != nil {
		return 0, err
	}
	return (uint32(t.SJW)-1)<<mcanNSJWShift |
		(uint32(t.Prescaler)-1)<<mcanNBRPShift |
		(uint32(t.BS1)-1)<<mcanNTSEG1Shift |
		(uint32(t.BS2)-1)<<mcanNTSEG2Shift, nil
}

func (m MCAN) Decode(reg uint32) timing.Timing {
	f := m.Info().Fields
	return timing.Timing{
		SJW:       uint8(f[0].Extract(reg) + 1),
		Prescaler: uint16(f[1].Extract(reg) + 1),
		BS1:       uint8(f[2].Extract(reg) + 1),
		BS2:       uint8(f[3].Extract(reg) + 1),
	}
}

func (m MCAN) Info() Info {
	return Info{
		Name:        m.Name(),
		Description: m.Description(),
		Register:    "NBTP",
		Fields: []FieldInfo{
			{Name: "NSJW", Shift: mcanNSJWShift, Width: mcanNSJWWidth},
			{Name: "NBRP", Shift: mcanNBRPShift, Width: mcanNBRPWidth},
			{Name: "NTSEG1", Shift: mcanNTSEG1Shift, Width: mcanNTSEG1Width},
			{Name: "NTSEG2", Shift: mcanNTSEG2Shift, Width: mcanNTSEG2Width},
		},
	}
}

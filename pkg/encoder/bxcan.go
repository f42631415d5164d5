package encoder

import "github.com/mscrnt/cantiming/pkg/timing"

// BxCAN is the bit-timing register of the STM32 bxCAN peripheral (CAN_BTR).
type BxCAN struct{}

func (BxCAN) Name() string { return "bxcan" }

func (BxCAN) Description() string {
	return "STM32 bxCAN CAN_BTR (SJW 26:24, TS2 22:20, TS1 19:16, BRP 9:0)"
}

func (BxCAN) Encode(t timing.Timing) (uint32, error) {
	return t.BxCAN()
}

func (BxCAN) Decode(reg uint32) timing.Timing {
	return timing.DecodeBxCAN(reg)
}

func (b BxCAN) Info() Info {
	return Info{
		Name:        b.Name(),
		Description: b.Description(),
		Register:    "CAN_BTR",
		Fields: []FieldInfo{
			{Name: "SJW", Shift: 24, Width: 3},
			{Name: "TS2", Shift: 20, Width: 3},
			{Name: "TS1", Shift: 16, Width: 4},
			{Name: "BRP", Shift: 0, Width: 10},
		},
	}
}

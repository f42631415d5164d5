package codegen

import (
	"bytes"
	"errors"
	"go/parser"
	"go/token"
	"strings"
	"testing"

	"github.com/mscrnt/cantiming/pkg/timing"
)

func TestGenerate(t *testing.T) {
	entries := []Entry{
		{
			Name:     "chassis",
			Clock:    10_000_000,
			Bitrate:  500_000,
			Encoder:  "bxcan",
			Register: 0x002F0000,
			Timing:   timing.Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 1},
		},
		{
			Name:        "body",
			Description: "comfort bus\nbehind the gateway",
			Clock:       10_000_000,
			Bitrate:     125_000,
			Encoder:     "bxcan",
			Register:    0x002F0003,
			Timing:      timing.Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 4},
		},
	}

	var buf bytes.Buffer
	if err := Generate(&buf, "canconf", entries); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	src := buf.String()

	if !strings.HasPrefix(src, "// Code generated by cantiming generate; DO NOT EDIT.") {
		t.Errorf("missing generated header:\n%s", src)
	}

	for _, want := range []string{
		"package canconf",
		"var ChassisTiming = timing.Timing{BS1: 16, BS2: 3, SJW: 1, Prescaler: 1}",
		"const ChassisRegister uint32 = 0x002F0000",
		"const BodyRegister uint32 = 0x002F0003",
		"// behind the gateway",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("output does not contain %q:\n%s", want, src)
		}
	}

	// the result must be valid Go
	if _, err := parser.ParseFile(token.NewFileSet(), "timings_gen.go", src, parser.ParseComments); err != nil {
		t.Errorf("generated source does not parse: %v", err)
	}
}

func TestGenerateRejectsBadNames(t *testing.T) {
	good := Entry{Name: "bus", Timing: timing.Timing{BS1: 8, BS2: 1, SJW: 1, Prescaler: 1}}

	tests := []struct {
		name    string
		pkg     string
		entries []Entry
	}{
		{"bad package", "can-conf", []Entry{good}},
		{"bad bus", "canconf", []Entry{{Name: "2fast"}}},
		{"collision", "canconf", []Entry{good, {Name: "Bus"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Generate(&buf, tt.pkg, tt.entries)
			if !errors.Is(err, ErrInvalidName) {
				t.Errorf("Generate() error = %v, want ErrInvalidName", err)
			}
			if buf.Len() != 0 {
				t.Error("nothing should be written on error")
			}
		})
	}
}

func TestGenerateEmpty(t *testing.T) {
	if err := Generate(&bytes.Buffer{}, "canconf", nil); err == nil {
		t.Error("expected error for empty entry list")
	}
}

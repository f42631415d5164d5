package main

import (
	"fmt"
	"strings"

	"github.com/mscrnt/cantiming/pkg/encoder"
	"github.com/spf13/cobra"
)

func encodersCmd() *cobra.Command {
	var decode string

	cmd := &cobra.Command{
		Use:   "encoders [NAME]",
		Short: "List register layouts",
		Long: `List the available register layouts, or show the fields of one.

Examples:
  cantiming encoders
  cantiming encoders mcan
  cantiming encoders bxcan --decode 0x002F0003`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 0 && decode == "" {
				for _, info := range encoder.GetInfo() {
					def := ""
					if info.Name == encoder.DefaultName {
						def = " (default)"
					}
					fmt.Fprintf(out, "%-8s %s%s\n", info.Name, info.Description, def)
				}
				return nil
			}

			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			enc, err := encoder.Get(name)
			if err != nil {
				return err
			}

			if decode == "" {
				for _, info := range encoder.GetInfo() {
					if info.Name != enc.Name() {
						continue
					}
					fmt.Fprintf(out, "%s: %s\n", info.Register, info.Description)
					for _, f := range info.Fields {
						fmt.Fprintf(out, "  %-7s bits %d:%d\n", f.Name, f.Shift+f.Width-1, f.Shift)
					}
				}
				return nil
			}

			reg, err := parseRegister(decode)
			if err != nil {
				return err
			}
			t := enc.Decode(reg)
			fmt.Fprintf(out, "%s\n", t)
			for _, f := range encoder.Breakdown(enc, reg) {
				fmt.Fprintf(out, "  %-7s raw=%-4d value=%d\n", f.Name, f.Raw, f.Value)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&decode, "decode", "d", "", "Decode a register value (hex with 0x prefix or decimal)")

	return cmd
}

func parseRegister(s string) (uint32, error) {
	var v uint64
	var err error
	s = strings.ReplaceAll(strings.TrimSpace(s), "_", "")
	if strings.HasPrefix(strings.ToLower(s), "0x") {
		_, err = fmt.Sscanf(s[2:], "%x", &v)
	} else {
		_, err = fmt.Sscanf(s, "%d", &v)
	}
	if err != nil || v > 0xFFFFFFFF {
		return 0, fmt.Errorf("invalid register value %q", s)
	}
	return uint32(v), nil
}

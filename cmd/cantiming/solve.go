package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/mscrnt/cantiming/pkg/encoder"
	"github.com/mscrnt/cantiming/pkg/timing"
	"github.com/mscrnt/cantiming/pkg/units"
	"github.com/spf13/cobra"
)

func solveCmd() *cobra.Command {
	var (
		flags  solveFlags
		name   string
		save   bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "solve [CLOCK BITRATE]",
		Short: "Compute the bit timing for a clock and bitrate",
		Long: `Compute the CAN bit timing for a peripheral clock and target bitrate and
print the packed register.

Examples:
  # 500 kbit/s from a 10 MHz clock
  cantiming solve 10MHz 500k

  # Move the sample point earlier and pack for M_CAN
  cantiming solve --clock 80MHz --bitrate 1Mbps --midpoint 25% --encoder mcan

  # Accept up to 1 % error and record the result
  cantiming solve 16MHz 33.333kbps --tolerance 1pct --save --name diag`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clk, bitrate, opts, err := flags.parse(args)
			if err != nil {
				return err
			}

			enc, err := encoder.Get(flags.encoder)
			if err != nil {
				return err
			}

			res, solveErr := timing.Solve(clk, bitrate, opts...)
			var packed encoder.Packed
			if solveErr == nil {
				packed, solveErr = encoder.Pack(enc, res)
			}

			if save {
				if err := saveSolve(name, enc.Name(), clk, bitrate, res, packed.Register, solveErr); err != nil {
					return err
				}
			}

			if solveErr != nil {
				return solveErr
			}

			out := cmd.OutOrStdout()
			if asJSON {
				je := json.NewEncoder(out)
				je.SetIndent("", "  ")
				return je.Encode(packed)
			}
			printPacked(out, enc, packed)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&name, "name", "n", "", "Name recorded with --save")
	cmd.Flags().BoolVar(&save, "save", false, "Record the solve in the history database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

// saveSolve records an outcome; failures are stored too
func saveSolve(name, enc string, clk, bitrate uint32, res timing.Result, reg uint32, solveErr error) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	in := res.Input
	var se *timing.SolveError
	if errors.As(solveErr, &se) {
		in = se.Input
	} else if solveErr != nil && in.Clock == 0 {
		in = timing.Input{Clock: clk, Bitrate: bitrate}
	}

	rec := db.NewSolve(name, enc, in, res, reg, solveErr)
	rec.Params = db.JSONData{"source": "cli"}
	if err := database.CreateSolve(rec); err != nil {
		return fmt.Errorf("failed to save solve: %w", err)
	}
	logger.Infof("saved solve #%d", rec.ID)
	return nil
}

func printPacked(w io.Writer, enc encoder.Encoder, p encoder.Packed) {
	t := p.Timing
	register := enc.Name()
	if ie, ok := enc.(interface{ Info() encoder.Info }); ok {
		register = ie.Info().Register
	}

	fmt.Fprintf(w, "Clock:        %s\n", units.Frequency(p.Input.Clock))
	fmt.Fprintf(w, "Bitrate:      %d bit/s\n", p.Input.Bitrate)
	fmt.Fprintf(w, "BS1/BS2/SJW:  %d/%d/%d\n", t.BS1, t.BS2, t.SJW)
	fmt.Fprintf(w, "Prescaler:    %d\n", t.Prescaler)
	fmt.Fprintf(w, "Time quanta:  %d per bit\n", t.TotalTimeQuanta())
	fmt.Fprintf(w, "Sample point: %.1f %%\n", t.SamplePoint())
	fmt.Fprintf(w, "Error:        %.4f %%\n", p.ErrorPct)
	fmt.Fprintf(w, "%-13s 0x%08X\n", register+":", p.Register)
	for _, f := range p.Fields {
		fmt.Fprintf(w, "  %-7s %5d:%-2d raw=%-4d value=%d\n", f.Name, f.Shift+f.Width-1, f.Shift, f.Raw, f.Value)
	}
}

func candidatesCmd() *cobra.Command {
	var flags solveFlags

	cmd := &cobra.Command{
		Use:   "candidates CLOCK BITRATE",
		Short: "Show the full search table",
		Long: `Show every BS1+BS2 length the solver considers, with the rounded prescaler
and its error. The row marked with * is the one solve picks.

Example:
  cantiming candidates 36MHz 500k`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clk, bitrate, _, err := flags.parse(args)
			if err != nil {
				return err
			}
			cands := timing.Candidates(clk, bitrate)
			winner := -1
			for i, c := range cands {
				if winner < 0 || c.Error <= cands[winner].Error {
					winner = i
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-3s %-8s %-16s %-10s %s\n", "", "BS1+BS2", "Ideal prescaler", "Prescaler", "Error")
			fmt.Fprintln(out, strings.Repeat("-", 52))
			for i, c := range cands {
				mark := ""
				if i == winner {
					mark = "*"
				}
				fmt.Fprintf(out, "%-3s %-8d %-16.4f %-10d %.4f %%\n", mark, c.TotalQuanta, c.IdealPrescaler, c.Prescaler, c.ErrorPct())
			}
			return nil
		},
	}

	flags.register(cmd)
	for _, name := range []string{"midpoint", "tolerance", "encoder"} {
		_ = cmd.Flags().MarkHidden(name)
	}

	return cmd
}

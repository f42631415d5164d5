package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mscrnt/cantiming/pkg/codegen"
	"github.com/mscrnt/cantiming/pkg/config"
	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/mscrnt/cantiming/pkg/encoder"
	"github.com/mscrnt/cantiming/pkg/timing"
	"github.com/spf13/cobra"
)

// busResult is the outcome of solving one bus of a file
type busResult struct {
	Params config.BusParams `json:"params"`
	Packed *encoder.Packed  `json:"result,omitempty"`
	Err    error            `json:"-"`
	Error  string           `json:"error,omitempty"`
	Code   string           `json:"code,omitempty"`
}

// solveFile solves every bus of f in file order
func solveFile(f *config.File) []busResult {
	results := make([]busResult, 0, len(f.Buses))
	for _, p := range f.ResolveAll() {
		r := busResult{Params: p}

		enc, err := encoder.Get(p.Encoder)
		if err == nil {
			var res timing.Result
			opts := append(p.Options(), timing.WithLogger(logger))
			if res, err = timing.Solve(p.Clock, p.Bitrate, opts...); err == nil {
				var packed encoder.Packed
				if packed, err = encoder.Pack(enc, res); err == nil {
					r.Packed = &packed
				}
			}
		}

		if err != nil {
			r.Err = err
			r.Error = err.Error()
			r.Code = timing.Code(err)
			logger.Warnf("bus %s: %v", p.Name, err)
		}
		results = append(results, r)
	}
	return results
}

func batchCmd() *cobra.Command {
	var (
		file   string
		save   bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Solve every bus in a bus description file",
		Long: `Solve every bus listed in a YAML bus description file.

Example file:
  package: canconf
  defaults:
    clock: 36 MHz
    midpoint: 17.5%
    tolerance: 0.5 pct
  buses:
    - name: chassis
      bitrate: 500 kbps
    - name: body
      clock: 10MHz
      bitrate: 125k
      encoder: mcan

Examples:
  cantiming batch -f buses.yaml
  cantiming batch -f buses.yaml --save --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := config.Load(file)
			if err != nil {
				return err
			}

			results := solveFile(f)

			if save {
				if err := saveResults(results); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if asJSON {
				je := json.NewEncoder(out)
				je.SetIndent("", "  ")
				if err := je.Encode(results); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%-16s %-10s %-10s %-8s %-12s %-8s %-9s %s\n",
					"Bus", "Clock", "Bitrate", "Encoder", "BS1/BS2/SJW", "Presc.", "Error", "Register")
				fmt.Fprintln(out, strings.Repeat("-", 90))
				for _, r := range results {
					p := r.Params
					if r.Err != nil {
						fmt.Fprintf(out, "%-16s %-10d %-10d %-8s %s\n", p.Name, p.Clock, p.Bitrate, p.Encoder, r.Error)
						continue
					}
					t := r.Packed.Timing
					fmt.Fprintf(out, "%-16s %-10d %-10d %-8s %-12s %-8d %-9s 0x%08X\n",
						p.Name, p.Clock, p.Bitrate, p.Encoder,
						fmt.Sprintf("%d/%d/%d", t.BS1, t.BS2, t.SJW), t.Prescaler,
						fmt.Sprintf("%.4f%%", r.Packed.ErrorPct), r.Packed.Register)
				}
			}

			return failures(results)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Bus description file (required)")
	cmd.Flags().BoolVar(&save, "save", false, "Record every solve in the history database")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the results as JSON")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func failures(results []busResult) error {
	var failed []string
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Params.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d buses failed: %s", len(failed), len(results), strings.Join(failed, ", "))
	}
	return nil
}

func saveResults(results []busResult) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	records := make([]*db.Solve, 0, len(results))
	for _, r := range results {
		p := r.Params
		in := timing.Input{Clock: p.Clock, Bitrate: p.Bitrate, Midpoint: p.Midpoint, TolerancePct: p.TolerancePct}

		var rec *db.Solve
		if r.Packed != nil {
			rec = db.NewSolve(p.Name, p.Encoder, in, r.Packed.Result, r.Packed.Register, nil)
		} else {
			rec = db.NewSolve(p.Name, p.Encoder, in, timing.Result{}, 0, r.Err)
		}
		rec.Params = db.JSONData{"source": "batch"}
		records = append(records, rec)
	}

	if err := database.CreateSolves(records); err != nil {
		return fmt.Errorf("failed to save solves: %w", err)
	}
	logger.Infof("saved %d solves", len(records))
	return nil
}

func generateCmd() *cobra.Command {
	var (
		file   string
		output string
		pkg    string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Go source with solved timings",
		Long: `Solve every bus in a bus description file and write a Go source file
holding a timing.Timing variable and a register constant per bus.

Suitable for go:generate:
  //go:generate cantiming generate -f buses.yaml -o timings_gen.go

Examples:
  cantiming generate -f buses.yaml -o timings_gen.go
  cantiming generate -f buses.yaml --package firmware`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := config.Load(file)
			if err != nil {
				return err
			}

			results := solveFile(f)
			if err := failures(results); err != nil {
				return err
			}

			entries := make([]codegen.Entry, 0, len(results))
			for _, r := range results {
				entries = append(entries, codegen.Entry{
					Name:        r.Params.Name,
					Description: r.Params.Description,
					Clock:       r.Params.Clock,
					Bitrate:     r.Params.Bitrate,
					Encoder:     r.Packed.Encoder,
					Register:    r.Packed.Register,
					ErrorPct:    r.Packed.ErrorPct,
					Timing:      r.Packed.Timing,
				})
			}

			if pkg == "" {
				pkg = f.Package
			}
			if pkg == "" {
				pkg = os.Getenv("GOPACKAGE")
			}
			if pkg == "" {
				pkg = "cantimings"
			}

			var buf bytes.Buffer
			if err := codegen.Generate(&buf, pkg, entries); err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err := cmd.OutOrStdout().Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil { // #nosec G306 -- generated source is not secret
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			logger.Infof("wrote %d buses to %s", len(entries), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Bus description file (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&pkg, "package", "p", "", "Package name (default: file package, $GOPACKAGE, then cantimings)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded solves",
		Long:  "Export recorded solves in various formats",
	}

	cmd.AddCommand(exportFormatCmd(db.ExportFormatCSV))
	cmd.AddCommand(exportFormatCmd(db.ExportFormatJSON))

	return cmd
}

func exportFormatCmd(format db.ExportFormat) *cobra.Command {
	var (
		id     int64
		output string
		all    bool
		name   string
	)

	cmd := &cobra.Command{
		Use:   string(format),
		Short: fmt.Sprintf("Export solves to %s format", format),
		Long: fmt.Sprintf(`Export recorded solves to %[1]s format.

Examples:
  # Export one solve to a file
  cantiming export %[1]s --id 42 --out solve.%[1]s

  # Export every solve of the chassis bus to stdout
  cantiming export %[1]s --all --name chassis`, format),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !all && id == 0 {
				return fmt.Errorf("either --id or --all must be specified")
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output) // #nosec G304 -- output is a user-specified file path
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			filter := db.SolveFilter{Name: name}
			switch {
			case format == db.ExportFormatCSV && all:
				err = database.ExportAllCSV(out, filter)
			case format == db.ExportFormatCSV:
				err = database.ExportCSV(out, id)
			case all:
				err = database.ExportAllJSON(out, filter)
			default:
				err = database.ExportJSON(out, id)
			}
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", format, err)
			}

			if output != "" {
				logger.Infof("exported to %s", output)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Solve ID to export")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&all, "all", false, "Export all solves")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Only export solves of this bus with --all")

	return cmd
}

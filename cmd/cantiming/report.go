package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/mscrnt/cantiming/pkg/report"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate solve reports",
		Long:  "Generate HTML and PDF reports from recorded solves",
	}

	cmd.AddCommand(reportGenerateCmd())

	return cmd
}

func reportGenerateCmd() *cobra.Command {
	var (
		format    string
		output    string
		id        int64
		latest    bool
		name      string
		landscape bool
		pageSize  string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a report",
		Long: `Generate an HTML or PDF report for a recorded solve. PDF output needs a
local Chrome or Chromium.

Examples:
  # HTML report for the latest solve
  cantiming report generate --latest

  # PDF report for a specific solve
  cantiming report generate --id 42 --format pdf --output report.pdf

  # Latest solve of one bus on A4 paper
  cantiming report generate --latest --name chassis --format pdf --page-size A4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !latest && id == 0 {
				return fmt.Errorf("either --latest or --id must be specified")
			}

			if format != "html" && format != "pdf" {
				return fmt.Errorf("format must be either 'html' or 'pdf'")
			}

			options := report.DefaultPDFOptions()
			options.Landscape = landscape
			options.Timeout = timeout
			if err := options.SetPaper(pageSize); err != nil {
				return err
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if latest {
				solves, err := database.ListSolves(db.SolveFilter{Name: name, Limit: 1})
				if err != nil {
					return fmt.Errorf("failed to list solves: %w", err)
				}
				if len(solves) == 0 {
					return fmt.Errorf("no solves found")
				}
				id = solves[0].ID
			}

			s, err := database.GetSolve(id)
			if err != nil {
				return err
			}

			generator := report.NewGenerator(database)

			if output == "" {
				timestamp := time.Now().Format("20060102_150405")
				output = fmt.Sprintf("cantiming_report_%d_%s.%s", id, timestamp, format)
			}

			switch format {
			case "html":
				html, err := generator.GenerateHTML(id)
				if err != nil {
					return fmt.Errorf("failed to generate HTML report: %w", err)
				}
				if err := os.WriteFile(output, []byte(html), 0o600); err != nil {
					return fmt.Errorf("failed to write HTML file: %w", err)
				}

			case "pdf":
				if err := generator.GeneratePDF(cmd.Context(), id, output, options); err != nil {
					return fmt.Errorf("failed to generate PDF report: %w", err)
				}
			}

			absPath, _ := filepath.Abs(output)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %s report for solve #%d\n", strings.ToUpper(format), id)
			if s.Name != "" {
				fmt.Fprintf(out, "Bus: %s\n", s.Name)
			}
			fmt.Fprintf(out, "Date: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Status: %s\n", formatStatus(s.Success))
			fmt.Fprintf(out, "Output: %s\n", absPath)

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "html", "Output format (html or pdf)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	cmd.Flags().Int64Var(&id, "id", 0, "Solve ID to generate report for")
	cmd.Flags().BoolVar(&latest, "latest", false, "Use the latest solve")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Filter by bus name when using --latest")
	cmd.Flags().BoolVar(&landscape, "landscape", false, "Generate PDF in landscape mode")
	cmd.Flags().StringVar(&pageSize, "page-size", "LETTER", "PDF page size (A3, A4, A5, LETTER, LEGAL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "PDF rendering timeout")

	return cmd
}

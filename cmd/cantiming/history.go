package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded solves",
		Long:  "List, show, delete and prune solves recorded with --save or by the service",
	}

	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())
	cmd.AddCommand(historyDeleteCmd())
	cmd.AddCommand(historyPruneCmd())

	return cmd
}

func historyListCmd() *cobra.Command {
	var (
		name    string
		enc     string
		success bool
		failed  bool
		limit   int
		since   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded solves",
		Long: `List recorded solves, newest first.

Examples:
  # List all solves
  cantiming history list

  # Failed solves of the last week
  cantiming history list --failed --since 7d

  # Solves for one bus
  cantiming history list --name chassis`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			filter := db.SolveFilter{
				Name:    name,
				Encoder: enc,
				Limit:   limit,
			}

			if success {
				val := true
				filter.Success = &val
			} else if failed {
				val := false
				filter.Success = &val
			}

			if since != "" {
				duration, err := parseDuration(since)
				if err != nil {
					return fmt.Errorf("invalid duration: %w", err)
				}
				sinceTime := time.Now().Add(-duration)
				filter.Since = &sinceTime
			}

			solves, err := database.ListSolves(filter)
			if err != nil {
				return fmt.Errorf("failed to list solves: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(solves) == 0 {
				fmt.Fprintln(out, "No solves found")
				return nil
			}

			fmt.Fprintf(out, "%-6s %-14s %-20s %-10s %-10s %-8s %-22s %s\n",
				"ID", "Name", "Created", "Clock", "Bitrate", "Encoder", "Status", "Register")
			fmt.Fprintln(out, strings.Repeat("-", 104))

			for _, s := range solves {
				reg := "-"
				if s.Success {
					reg = fmt.Sprintf("0x%08X", s.Register)
				}
				fmt.Fprintf(out, "%-6d %-14s %-20s %-10d %-10d %-8s %-22s %s\n",
					s.ID,
					s.Name,
					s.CreatedAt.Format("2006-01-02 15:04:05"),
					s.ClockHz,
					s.Bitrate,
					s.Encoder,
					s.Status(),
					reg,
				)
			}

			fmt.Fprintf(out, "\nTotal: %d solves\n", len(solves))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Filter by bus name")
	cmd.Flags().StringVarP(&enc, "encoder", "e", "", "Filter by encoder")
	cmd.Flags().BoolVar(&success, "success", false, "Show only successful solves")
	cmd.Flags().BoolVar(&failed, "failed", false, "Show only failed solves")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of solves to show")
	cmd.Flags().StringVar(&since, "since", "", "Show solves since duration (e.g., 24h, 7d)")
	cmd.MarkFlagsMutuallyExclusive("success", "failed")

	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one recorded solve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid solve ID: %s", args[0])
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			s, err := database.GetSolve(id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Solve #%d\n", s.ID)
			fmt.Fprintln(out, strings.Repeat("=", 40))
			if s.Name != "" {
				fmt.Fprintf(out, "Name:         %s\n", s.Name)
			}
			fmt.Fprintf(out, "Created:      %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Clock:        %d Hz\n", s.ClockHz)
			fmt.Fprintf(out, "Bitrate:      %d bit/s\n", s.Bitrate)
			fmt.Fprintf(out, "Midpoint:     %g\n", s.Midpoint)
			fmt.Fprintf(out, "Tolerance:    %g %%\n", s.TolerancePct)
			fmt.Fprintf(out, "Encoder:      %s\n", s.Encoder)
			fmt.Fprintf(out, "Status:       %s\n", formatStatus(s.Success))

			if !s.Success {
				fmt.Fprintf(out, "Error:        %s\n", s.Error)
				return nil
			}

			t := s.Timing()
			fmt.Fprintf(out, "BS1/BS2/SJW:  %d/%d/%d\n", t.BS1, t.BS2, t.SJW)
			fmt.Fprintf(out, "Prescaler:    %d\n", t.Prescaler)
			fmt.Fprintf(out, "Sample point: %.1f %%\n", t.SamplePoint())
			fmt.Fprintf(out, "Error:        %.4f %%\n", s.ErrorPct)
			fmt.Fprintf(out, "Register:     0x%08X\n", s.Register)

			if len(s.Params) > 0 {
				fmt.Fprintln(out, "\nParameters:")
				for k, v := range s.Params {
					fmt.Fprintf(out, "  %s: %v\n", k, v)
				}
			}
			return nil
		},
	}
}

func historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete recorded solves",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid solve ID: %s", arg)
				}
				if err := database.DeleteSolve(id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted solve #%d\n", id)
			}
			return nil
		},
	}
}

func historyPruneCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete solves older than a given age",
		Long: `Delete every recorded solve older than --older-than.

Examples:
  cantiming history prune --older-than 30d
  cantiming history prune --older-than 12h`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			age, err := parseDuration(olderThan)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			if age <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			database, err := openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			n, err := database.DeleteSolvesBefore(time.Now().Add(-age))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d solves\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "30d", "Age of the oldest solve to keep (e.g., 30d, 12h)")

	return cmd
}

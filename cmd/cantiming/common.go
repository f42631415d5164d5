package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mscrnt/cantiming/internal/logging"
	"github.com/mscrnt/cantiming/pkg/config"
	"github.com/mscrnt/cantiming/pkg/db"
	"github.com/mscrnt/cantiming/pkg/timing"
	"github.com/mscrnt/cantiming/pkg/units"
	"github.com/spf13/cobra"
)

var (
	logLevelFlag string
	dbPathFlag   string

	// set by initGlobals before any command runs
	env    config.Env
	logger logging.Logger = logging.Nop()
)

// initGlobals loads the environment and sets up logging. Flags win over
// environment variables.
func initGlobals(cmd *cobra.Command) error {
	var err error
	if env, err = config.LoadEnv(); err != nil {
		return err
	}

	level := env.LogLevel
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	if logger, err = logging.New(cmd.ErrOrStderr(), "", level); err != nil {
		return err
	}
	return nil
}

// getDBPath returns the path to the history database file
func getDBPath() string {
	if dbPathFlag != "" {
		return dbPathFlag
	}
	return env.DatabasePath()
}

func openDB() (*db.DB, error) {
	path := getDBPath()
	logger.Debugf("opening history database %s", path)
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// solveFlags are the solver parameters shared by several commands
type solveFlags struct {
	clock     string
	bitrate   string
	midpoint  string
	tolerance string
	encoder   string
}

func (f *solveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.clock, "clock", "c", "", "Peripheral clock, e.g. 36MHz or 36_000_000 (required)")
	cmd.Flags().StringVarP(&f.bitrate, "bitrate", "b", "", "Target bitrate, e.g. 500kbps or 500000 (required)")
	cmd.Flags().StringVarP(&f.midpoint, "midpoint", "m", "", "Share of the bit given to BS2, e.g. 0.175 or 17.5% (default 17.5%)")
	cmd.Flags().StringVarP(&f.tolerance, "tolerance", "t", "", "Largest acceptable error, e.g. 0.5pct or 0.005 (default 0.5%)")
	cmd.Flags().StringVarP(&f.encoder, "encoder", "e", "", "Register layout (default bxcan)")
}

// parse converts the flags, with positional CLOCK BITRATE as an alternative
// to --clock and --bitrate
func (f *solveFlags) parse(args []string) (clk, bitrate uint32, opts []timing.Option, err error) {
	v, err := f.values(args)
	if err != nil {
		return 0, 0, nil, err
	}

	opts = []timing.Option{timing.WithLogger(logger)}
	if v.midpoint != nil {
		opts = append(opts, timing.WithMidpoint(float64(*v.midpoint)))
	}
	if v.tolerance != nil {
		opts = append(opts, timing.WithTolerance(float64(*v.tolerance)))
	}
	return v.clock.Hz(), v.bitrate.Hz(), opts, nil
}

// solveValues are parsed solve flags. Unset options stay nil.
type solveValues struct {
	clock     units.Frequency
	bitrate   units.Frequency
	midpoint  *units.Ratio
	tolerance *units.Percent
}

func (f *solveFlags) values(args []string) (solveValues, error) {
	var v solveValues

	clockStr, bitrateStr := f.clock, f.bitrate
	if len(args) > 0 {
		clockStr = args[0]
	}
	if len(args) > 1 {
		bitrateStr = args[1]
	}
	if clockStr == "" || bitrateStr == "" {
		return v, fmt.Errorf("clock and bitrate are required")
	}

	var err error
	if v.clock, err = units.ParseFrequency(clockStr); err != nil {
		return v, fmt.Errorf("clock: %w", err)
	}
	if v.bitrate, err = units.ParseFrequency(bitrateStr); err != nil {
		return v, fmt.Errorf("bitrate: %w", err)
	}
	if f.midpoint != "" {
		m, err := units.ParseRatio(f.midpoint)
		if err != nil {
			return v, fmt.Errorf("midpoint: %w", err)
		}
		v.midpoint = &m
	}
	if f.tolerance != "" {
		p, err := units.ParsePercent(f.tolerance)
		if err != nil {
			return v, fmt.Errorf("tolerance: %w", err)
		}
		v.tolerance = &p
	}
	return v, nil
}

func formatStatus(success bool) string {
	if success {
		return "OK"
	}
	return "FAILED"
}

func parseDuration(s string) (time.Duration, error) {
	// Handle simple formats like "24h", "7d"
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}

	return time.ParseDuration(s)
}

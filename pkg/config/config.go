// Package config loads bus description files and the environment settings
// of the cantiming tools.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/mscrnt/cantiming/pkg/encoder"
	"github.com/mscrnt/cantiming/pkg/timing"
	"github.com/mscrnt/cantiming/pkg/units"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFile is wrapped by every validation failure of a bus file
var ErrInvalidFile = errors.New("invalid bus file")

var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Defaults are applied to every bus that leaves a field unset
type Defaults struct {
	Clock     units.Frequency `yaml:"clock,omitempty"`
	Midpoint  units.Ratio     `yaml:"midpoint,omitempty"`
	Tolerance units.Percent   `yaml:"tolerance,omitempty"`
	Encoder   string          `yaml:"encoder,omitempty"`
}

// Bus describes one CAN bus to solve
type Bus struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Clock       units.Frequency `yaml:"clock,omitempty"`
	Bitrate     units.Frequency `yaml:"bitrate"`
	Midpoint    units.Ratio     `yaml:"midpoint,omitempty"`
	Tolerance   units.Percent   `yaml:"tolerance,omitempty"`
	Encoder     string          `yaml:"encoder,omitempty"`
}

// File is a parsed bus description file
type File struct {
	// Package names the Go package emitted by code generation
	Package  string   `yaml:"package,omitempty"`
	Defaults Defaults `yaml:"defaults,omitempty"`
	Buses    []Bus    `yaml:"buses"`

	path string
}

// BusParams is a bus with every default applied
type BusParams struct {
	Name         string
	Description  string
	Clock        uint32
	Bitrate      uint32
	Midpoint     float64
	TolerancePct float64
	Encoder      string
}

// Options converts the parameters to solver options
func (p BusParams) Options() []timing.Option {
	return []timing.Option{
		timing.WithMidpoint(p.Midpoint),
		timing.WithTolerance(p.TolerancePct),
	}
}

// Load reads and validates the bus file at path
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is a user-specified bus file
	if err != nil {
		return nil, fmt.Errorf("failed to read bus file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f.path = path
	return f, nil
}

// Parse decodes and validates a bus file
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Path returns the file the configuration was loaded from, if any
func (f *File) Path() string {
	return f.path
}

// Validate checks that every bus can be handed to the solver
func (f *File) Validate() error {
	if f.Package != "" && !identRe.MatchString(f.Package) {
		return fmt.Errorf("%w: package %q is not a valid identifier", ErrInvalidFile, f.Package)
	}
	if len(f.Buses) == 0 {
		return fmt.Errorf("%w: no buses defined", ErrInvalidFile)
	}

	seen := make(map[string]bool, len(f.Buses))
	for i, b := range f.Buses {
		if !identRe.MatchString(b.Name) {
			return fmt.Errorf("%w: bus %d: name %q must start with a letter and contain only letters, digits and '_'", ErrInvalidFile, i, b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate bus %q", ErrInvalidFile, b.Name)
		}
		seen[b.Name] = true

		p := f.Resolve(b)
		if p.Clock == 0 {
			return fmt.Errorf("%w: bus %q: clock is required", ErrInvalidFile, b.Name)
		}
		if p.Bitrate == 0 {
			return fmt.Errorf("%w: bus %q: bitrate is required", ErrInvalidFile, b.Name)
		}
		if p.Midpoint <= 0 || p.Midpoint >= 1 {
			return fmt.Errorf("%w: bus %q: midpoint %g outside (0,1)", ErrInvalidFile, b.Name, p.Midpoint)
		}
		if p.TolerancePct < 0 {
			return fmt.Errorf("%w: bus %q: negative tolerance", ErrInvalidFile, b.Name)
		}
		if _, err := encoder.Get(p.Encoder); err != nil {
			return fmt.Errorf("%w: bus %q: %v", ErrInvalidFile, b.Name, err)
		}
	}
	return nil
}

// Resolve applies the file defaults, then the solver defaults, to b
func (f *File) Resolve(b Bus) BusParams {
	p := BusParams{
		Name:         b.Name,
		Description:  b.Description,
		Clock:        b.Clock.Hz(),
		Bitrate:      b.Bitrate.Hz(),
		Midpoint:     float64(b.Midpoint),
		TolerancePct: float64(b.Tolerance),
		Encoder:      b.Encoder,
	}

	if p.Clock == 0 {
		p.Clock = f.Defaults.Clock.Hz()
	}
	if p.Midpoint == 0 {
		p.Midpoint = float64(f.Defaults.Midpoint)
	}
	if p.Midpoint == 0 {
		p.Midpoint = timing.DefaultMidpoint
	}
	if p.TolerancePct == 0 {
		p.TolerancePct = float64(f.Defaults.Tolerance)
	}
	if p.TolerancePct == 0 {
		p.TolerancePct = timing.DefaultTolerancePct
	}
	if p.Encoder == "" {
		p.Encoder = f.Defaults.Encoder
	}
	if p.Encoder == "" {
		p.Encoder = encoder.DefaultName
	}
	return p
}

// ResolveAll returns the resolved parameters of every bus in file order
func (f *File) ResolveAll() []BusParams {
	out := make([]BusParams, 0, len(f.Buses))
	for _, b := range f.Buses {
		out = append(out, f.Resolve(b))
	}
	return out
}

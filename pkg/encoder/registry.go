package encoder

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownEncoder is returned by Get for names nobody registered
var ErrUnknownEncoder = errors.New("unknown encoder")

// DefaultName is the layout used when none is requested
const DefaultName = "bxcan"

// Registry manages the available register layouts
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]Encoder
}

// globalRegistry holds the built-in layouts
var globalRegistry = NewRegistry()

func init() {
	_ = Register(BxCAN{})
	_ = Register(MCAN{})
}

// Register adds an encoder to the global registry
func Register(enc Encoder) error {
	return globalRegistry.Register(enc)
}

// Get retrieves an encoder from the global registry
func Get(name string) (Encoder, error) {
	return globalRegistry.Get(name)
}

// List returns all registered encoder names
func List() []string {
	return globalRegistry.List()
}

// NewRegistry creates an empty encoder registry
func NewRegistry() *Registry {
	return &Registry{
		encoders: make(map[string]Encoder),
	}
}

// Register adds an encoder to the registry
func (r *Registry) Register(enc Encoder) error {
	if enc == nil {
		return fmt.Errorf("encoder cannot be nil")
	}

	name := enc.Name()
	if name == "" {
		return fmt.Errorf("encoder name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.encoders[name]; exists {
		return fmt.Errorf("encoder %q already registered", name)
	}

	r.encoders[name] = enc
	return nil
}

// Get retrieves an encoder by name. An empty name selects DefaultName.
func (r *Registry) Get(name string) (Encoder, error) {
	if name == "" {
		name = DefaultName
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	enc, exists := r.encoders[name]
	if !exists {
		return nil, fmt.Errorf("%w %q", ErrUnknownEncoder, name)
	}

	return enc, nil
}

// List returns all registered encoder names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.encoders))
	for name := range r.encoders {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// GetAll returns a copy of all registered encoders
func (r *Registry) GetAll() map[string]Encoder {
	r.mu.RLock()
	defer r.mu.RUnlock()

	encoders := make(map[string]Encoder, len(r.encoders))
	for name, enc := range r.encoders {
		encoders[name] = enc
	}

	return encoders
}

// Clear removes all encoders from the registry
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.encoders = make(map[string]Encoder)
}

// GetInfo returns information about all encoders in the global registry
func GetInfo() []Info {
	return globalRegistry.GetInfo()
}

// GetInfo returns information about all registered encoders sorted by name
func (r *Registry) GetInfo() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []Info
	for _, enc := range r.encoders {
		info := Info{
			Name:        enc.Name(),
			Description: enc.Description(),
		}

		// Encoders may publish their field layout
		if ext, ok := enc.(interface{ Info() Info }); ok {
			info = ext.Info()
		}

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

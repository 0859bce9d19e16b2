package scope

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/filipexyz/keygate/internal/domain"
	"gopkg.in/yaml.v3"
)

// Registry maps human-readable scope names to bit positions so the CLI and
// HTTP surface can speak names while records store a uint64. Bit semantics
// beyond read/write/admin are policy, loaded from a YAML file.
type Registry struct {
	bits  map[string]uint
	names map[uint]string
}

type registryFile struct {
	Scopes []struct {
		Name string `yaml:"name"`
		Bit  uint   `yaml:"bit"`
	} `yaml:"scopes"`
}

// DefaultRegistry returns the built-in read/write/admin convention.
func DefaultRegistry() *Registry {
	r := &Registry{bits: map[string]uint{}, names: map[uint]string{}}
	r.add("read", 0)
	r.add("write", 1)
	r.add("admin", 2)
	return r
}

// LoadRegistry reads a scope registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scope registry: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scope registry: %w", err)
	}
	if len(f.Scopes) > 64 {
		return nil, domain.ErrTooManyScopes
	}
	r := &Registry{bits: map[string]uint{}, names: map[uint]string{}}
	for _, s := range f.Scopes {
		if s.Bit > 63 {
			return nil, fmt.Errorf("scope %q: %w", s.Name, domain.ErrTooManyScopes)
		}
		if s.Name == "" {
			return nil, fmt.Errorf("scope at bit %d has no name", s.Bit)
		}
		if prev, ok := r.names[s.Bit]; ok {
			return nil, fmt.Errorf("bit %d assigned to both %q and %q", s.Bit, prev, s.Name)
		}
		if _, ok := r.bits[s.Name]; ok {
			return nil, fmt.Errorf("duplicate scope name %q", s.Name)
		}
		r.add(s.Name, s.Bit)
	}
	return r, nil
}

func (r *Registry) add(name string, bit uint) {
	r.bits[name] = bit
	r.names[bit] = name
}

// Parse converts a list of scope names into a bitmask.
func (r *Registry) Parse(names []string) (uint64, error) {
	if len(names) > 64 {
		return 0, domain.ErrTooManyScopes
	}
	var mask uint64
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		bit, ok := r.bits[name]
		if !ok {
			return 0, fmt.Errorf("unknown scope %q", name)
		}
		mask |= 1 << bit
	}
	return mask, nil
}

// Names expands a bitmask into sorted scope names. Bits without a registered
// name render as bit:N so nothing is silently dropped.
func (r *Registry) Names(mask uint64) []string {
	var names []string
	for bit := uint(0); bit < 64; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		if name, ok := r.names[bit]; ok {
			names = append(names, name)
		} else {
			names = append(names, fmt.Sprintf("bit:%d", bit))
		}
	}
	sort.Strings(names)
	return names
}

package option

import (
	"fmt"
	"strings"
)

// Set is an ordered collection of options keyed by name.
// A Set is built once per option load and then only read.
type Set struct {
	order  []string
	byName map[string]Option
}

// NewSet creates a set holding opts in the given order.
func NewSet(opts ...Option) *Set {
	s := &Set{byName: make(map[string]Option, len(opts))}
	for _, o := range opts {
		s.Add(o)
	}
	return s
}

// Add inserts o, replacing any option with the same name in place.
func (s *Set) Add(o Option) {
	name := o.Descriptor().Name
	if _, exists := s.byName[name]; !exists {
		s.order = append(s.order, name)
	}
	s.byName[name] = o
}

// Has reports whether an option with exactly this name exists.
func (s *Set) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Get returns the option with exactly this name.
func (s *Set) Get(name string) (Option, bool) {
	o, ok := s.byName[name]
	return o, ok
}

// Lookup returns the named option, falling back to a case-insensitive
// match before failing with ErrNotFound.
func (s *Set) Lookup(name string) (Option, error) {
	if o, ok := s.byName[name]; ok {
		return o, nil
	}
	for _, n := range s.order {
		if strings.EqualFold(n, name) {
			return s.byName[n], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Names returns option names in backend enumeration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// All returns the options in backend enumeration order.
func (s *Set) All() []Option {
	out := make([]Option, len(s.order))
	for i, n := range s.order {
		out[i] = s.byName[n]
	}
	return out
}

// Len returns the number of options.
func (s *Set) Len() int {
	return len(s.order)
}

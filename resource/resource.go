// Package resource tracks ownership of numbered, fractionally-allocatable
// resource units (e.g. CPU core slots) on a single node.
package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Resource class used by the CPU hand-back protocol.
const CPU = "CPU"

// Quantities within epsilon of each other compare equal, and quantities
// within epsilon of zero are dropped from sets.
const epsilon = 1e-9

// ResourceSet maps a resource class name to a total quantity, with no record
// of which numbered units make up that quantity.
type ResourceSet map[string]float64

func (rs ResourceSet) Clone() ResourceSet {
	c := ResourceSet{}
	for name, qty := range rs {
		c[name] = qty
	}
	return c
}

func (rs ResourceSet) IsEmpty() bool {
	return len(rs) == 0
}

// Add folds the other set's quantities into this one.
func (rs ResourceSet) Add(other ResourceSet) {
	for name, qty := range other {
		rs[name] += qty
	}
}

// Subtract removes the other set's quantities from this one, deleting any
// class whose quantity reaches zero. Quantities never go negative.
func (rs ResourceSet) Subtract(other ResourceSet) {
	for name, qty := range other {
		remaining := rs[name] - qty
		if remaining <= epsilon {
			delete(rs, name)
		} else {
			rs[name] = remaining
		}
	}
}

// IsSubset reports whether every quantity in this set is available in other.
func (rs ResourceSet) IsSubset(other ResourceSet) bool {
	for name, qty := range rs {
		if qty > other[name]+epsilon {
			return false
		}
	}
	return true
}

func (rs ResourceSet) Equal(other ResourceSet) bool {
	return rs.IsSubset(other) && other.IsSubset(rs)
}

func (rs ResourceSet) String() string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]string, 0, len(names))
	for _, name := range names {
		entries = append(entries, fmt.Sprintf("%s:%g", name, rs[name]))
	}
	return "{" + strings.Join(entries, ", ") + "}"
}

package resource

import (
	"fmt"
	"sort"
	"strings"
)

// ResourceIdSet maps a resource class name to the specific numbered units
// held of that class. It is the unit-level counterpart of ResourceSet: a
// ResourceSet says "2 CPUs", a ResourceIdSet says "CPU slots 3 and 7".
//
// Values passed in and returned are always deep copies. A ResourceIdSet is
// owned by exactly one holder at a time; transfers between holders go
// through Acquire and Release.
type ResourceIdSet struct {
	ids map[string]ResourceIds
}

// NewResourceIdSet returns an empty set.
func NewResourceIdSet() ResourceIdSet {
	return ResourceIdSet{ids: map[string]ResourceIds{}}
}

// NewResourceIdSetFromIds returns a set holding the given units in full,
// keyed by class name.
func NewResourceIdSetFromIds(wholeIds map[string][]int64) ResourceIdSet {
	s := NewResourceIdSet()
	for name, ids := range wholeIds {
		if len(ids) > 0 {
			s.ids[name] = NewWholeIds(ids)
		}
	}
	return s
}

// Acquire removes units satisfying the requested quantities from this set
// and returns them. Units are taken in ascending id order, splitting a
// unit's fraction when the request doesn't consume it whole. Returns an
// error, leaving this set unchanged, if any requested quantity exceeds what
// is held.
func (s *ResourceIdSet) Acquire(req ResourceSet) (ResourceIdSet, error) {
	for name, qty := range req {
		if s.ids[name].Total()+epsilon < qty {
			return ResourceIdSet{}, fmt.Errorf(
				"cannot acquire %g %s, only %g held", qty, name, s.ids[name].Total())
		}
	}
	acquired := NewResourceIdSet()
	for name, qty := range req {
		held := s.ids[name]
		taken := map[int64]float64{}
		remaining := qty
		for _, id := range held.Ids() {
			if remaining <= epsilon {
				break
			}
			take := held.amounts[id]
			if take > remaining {
				take = remaining
			}
			taken[id] = take
			held.amounts[id] -= take
			if held.amounts[id] <= epsilon {
				delete(held.amounts, id)
			}
			remaining -= take
		}
		if held.IsEmpty() {
			delete(s.ids, name)
		}
		if len(taken) > 0 {
			acquired.ids[name] = ResourceIds{amounts: taken}
		}
	}
	return acquired, nil
}

// Release adds the other set's units back into this one, merging fractions
// of units already partially held. The other set is copied, never aliased.
func (s *ResourceIdSet) Release(other ResourceIdSet) {
	for name, ids := range other.ids {
		held, ok := s.ids[name]
		if !ok {
			s.ids[name] = ids.Clone()
			continue
		}
		for id, frac := range ids.amounts {
			held.amounts[id] += frac
		}
	}
}

// CpuResources returns a copy of the CPU-class subset of this set.
func (s ResourceIdSet) CpuResources() ResourceIdSet {
	cpus := NewResourceIdSet()
	if ids, ok := s.ids[CPU]; ok && !ids.IsEmpty() {
		cpus.ids[CPU] = ids.Clone()
	}
	return cpus
}

// Get returns a copy of the units held of the given class.
func (s ResourceIdSet) Get(name string) ResourceIds {
	return s.ids[name].Clone()
}

// Clear discards all held units.
func (s *ResourceIdSet) Clear() {
	s.ids = map[string]ResourceIds{}
}

// ToResourceSet returns the quantity-only view of this set.
func (s ResourceIdSet) ToResourceSet() ResourceSet {
	rs := ResourceSet{}
	for name, ids := range s.ids {
		if total := ids.Total(); total > epsilon {
			rs[name] = total
		}
	}
	return rs
}

func (s ResourceIdSet) Clone() ResourceIdSet {
	c := NewResourceIdSet()
	for name, ids := range s.ids {
		if !ids.IsEmpty() {
			c.ids[name] = ids.Clone()
		}
	}
	return c
}

func (s ResourceIdSet) IsEmpty() bool {
	for _, ids := range s.ids {
		if !ids.IsEmpty() {
			return false
		}
	}
	return true
}

func (s ResourceIdSet) Equal(other ResourceIdSet) bool {
	names := map[string]bool{}
	for name := range s.ids {
		names[name] = true
	}
	for name := range other.ids {
		names[name] = true
	}
	for name := range names {
		if !s.ids[name].Equal(other.ids[name]) {
			return false
		}
	}
	return true
}

func (s ResourceIdSet) String() string {
	names := make([]string, 0, len(s.ids))
	for name := range s.ids {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]string, 0, len(names))
	for _, name := range names {
		entries = append(entries, fmt.Sprintf("%s:%s", name, s.ids[name]))
	}
	return "{" + strings.Join(entries, ", ") + "}"
}

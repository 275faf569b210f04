package resource

import (
	"fmt"
	"sort"
	"strings"
)

// ResourceIds tracks the fraction held of each numbered unit of a single
// resource class. A whole unit is held at fraction 1.0.
type ResourceIds struct {
	amounts map[int64]float64
}

// NewWholeIds returns ResourceIds holding each of the given units in full.
func NewWholeIds(ids []int64) ResourceIds {
	amounts := make(map[int64]float64, len(ids))
	for _, id := range ids {
		amounts[id] = 1.0
	}
	return ResourceIds{amounts: amounts}
}

// NewFractionalIds returns ResourceIds holding the given fraction of each unit.
func NewFractionalIds(amounts map[int64]float64) ResourceIds {
	c := make(map[int64]float64, len(amounts))
	for id, frac := range amounts {
		if frac > epsilon {
			c[id] = frac
		}
	}
	return ResourceIds{amounts: c}
}

// Total returns the summed quantity across all held units.
func (r ResourceIds) Total() float64 {
	total := 0.0
	for _, frac := range r.amounts {
		total += frac
	}
	return total
}

// Ids returns the held unit ids in ascending order.
func (r ResourceIds) Ids() []int64 {
	ids := make([]int64, 0, len(r.amounts))
	for id := range r.amounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Amount returns the fraction held of the given unit, zero if not held.
func (r ResourceIds) Amount(id int64) float64 {
	return r.amounts[id]
}

func (r ResourceIds) IsEmpty() bool {
	return len(r.amounts) == 0
}

func (r ResourceIds) Clone() ResourceIds {
	return NewFractionalIds(r.amounts)
}

func (r ResourceIds) Equal(other ResourceIds) bool {
	if len(r.amounts) != len(other.amounts) {
		return false
	}
	for id, frac := range r.amounts {
		diff := frac - other.amounts[id]
		if diff > epsilon || diff < -epsilon {
			return false
		}
	}
	return true
}

func (r ResourceIds) String() string {
	entries := make([]string, 0, len(r.amounts))
	for _, id := range r.Ids() {
		entries = append(entries, fmt.Sprintf("(%d,%g)", id, r.amounts[id]))
	}
	return "[" + strings.Join(entries, " ") + "]"
}

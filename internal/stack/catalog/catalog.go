// Package catalog enumerates candidate containers around an origin.
package catalog

import (
	"sort"

	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/model"
)

// Candidate is a container plus the classification read for this pass.
// It is never reused across passes.
type Candidate struct {
	Handle   capability.Container
	Distance float64
	Key      model.ItemKey
	HasKey   bool
	Amount   int
	// Order is the position in the registry listing; it breaks distance ties.
	Order int
}

func (c Candidate) ID() string {
	if c.Handle == nil {
		return ""
	}
	return c.Handle.ID()
}

// FindCandidates returns the valid containers within radius of origin,
// nearest first. radius <= 0 means unbounded. A missing or failing registry
// yields an empty list.
func FindCandidates(reg capability.Registry, origin model.Vec3, radius float64) (out []Candidate) {
	if reg == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
		}
	}()

	all := reg.Containers()
	out = make([]Candidate, 0, len(all))
	for i, c := range all {
		if c == nil || !c.Valid() {
			continue
		}
		d := origin.Dist(c.Position())
		if radius > 0 && d > radius {
			continue
		}
		key, ok := c.Key()
		if ok && key.IsZero() {
			ok = false
		}
		out = append(out, Candidate{
			Handle:   c,
			Distance: d,
			Key:      key,
			HasKey:   ok,
			Amount:   c.Amount(),
			Order:    i,
		})
	}
	SortByDistance(out)
	return out
}

// SortByDistance sorts ascending by distance, keeping registry order on ties.
func SortByDistance(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Distance != cs[j].Distance {
			return cs[i].Distance < cs[j].Distance
		}
		return cs[i].Order < cs[j].Order
	})
}

// Nearest keeps at most max candidates from an already sorted list.
func Nearest(cs []Candidate, max int) []Candidate {
	if max < 1 {
		max = 1
	}
	if len(cs) <= max {
		return cs
	}
	return cs[:max]
}

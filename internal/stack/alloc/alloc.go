// Package alloc picks a target container for each item stack.
//
// The policy is greedy and nearest-first. A container already classified
// for an item's key always wins over an empty one, and within one pass at
// most one empty container is claimed per key: once reserved it is treated
// as classified, so later stacks of that key follow it.
package alloc

import (
	"quickstack.ai/internal/stack/catalog"
	"quickstack.ai/internal/stack/model"
)

type Options struct {
	FillEmpty bool
}

type Decision struct {
	Item   *model.ItemStack
	Target catalog.Candidate
	// Reserved is true when Target was empty and claimed for Item's key in
	// this pass.
	Reserved bool
}

type plan struct {
	filledByKey map[model.ItemKey][]catalog.Candidate
	empty       []catalog.Candidate
	reserved    map[model.ItemKey]catalog.Candidate
}

func partition(cs []catalog.Candidate) *plan {
	p := &plan{
		filledByKey: map[model.ItemKey][]catalog.Candidate{},
		reserved:    map[model.ItemKey]catalog.Candidate{},
	}
	for _, c := range cs {
		if c.HasKey {
			p.filledByKey[c.Key] = append(p.filledByKey[c.Key], c)
			continue
		}
		p.empty = append(p.empty, c)
	}
	for k := range p.filledByKey {
		catalog.SortByDistance(p.filledByKey[k])
	}
	catalog.SortByDistance(p.empty)
	return p
}

func (p *plan) pick(key model.ItemKey, fillEmpty bool) (catalog.Candidate, bool, bool) {
	if matching := p.filledByKey[key]; len(matching) > 0 {
		return matching[0], false, true
	}
	if !fillEmpty {
		return catalog.Candidate{}, false, false
	}
	if c, ok := p.reserved[key]; ok {
		return c, false, true
	}
	if len(p.empty) == 0 {
		return catalog.Candidate{}, false, false
	}
	c := p.empty[0]
	p.empty = p.empty[1:]
	p.reserved[key] = c
	c.Key = key
	c.HasKey = true
	p.filledByKey[key] = append(p.filledByKey[key], c)
	catalog.SortByDistance(p.filledByKey[key])
	return c, true, true
}

// Allocate returns at most one decision per stack, in stack order. Stacks
// without a target are simply absent from the result.
func Allocate(items []*model.ItemStack, containers []catalog.Candidate, opts Options) []Decision {
	if len(items) == 0 || len(containers) == 0 {
		return nil
	}
	p := partition(containers)
	out := make([]Decision, 0, len(items))
	seen := make(map[*model.ItemStack]bool, len(items))
	for _, it := range items {
		if it == nil || seen[it] {
			continue
		}
		seen[it] = true
		c, reserved, ok := p.pick(it.Key, opts.FillEmpty)
		if !ok {
			continue
		}
		out = append(out, Decision{Item: it, Target: c, Reserved: reserved})
	}
	return out
}

package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ItemKey identifies a stackable item by kind and quality tier.
// It is comparable and is used directly as a map key.
type ItemKey struct {
	Kind    string
	Quality int
}

func (k ItemKey) String() string { return fmt.Sprintf("%s@%d", k.Kind, k.Quality) }

func (k ItemKey) IsZero() bool { return k.Kind == "" }

func ParseItemKey(s string) (ItemKey, bool) {
	kind, q, ok := strings.Cut(s, "@")
	if !ok || kind == "" {
		return ItemKey{}, false
	}
	n, err := strconv.Atoi(q)
	if err != nil {
		return ItemKey{}, false
	}
	return ItemKey{Kind: kind, Quality: n}, true
}

// ItemShared is display metadata shared by every stack of the same item.
// Stacks hold a reference to it; it is never copied per stack.
type ItemShared struct {
	Name     string
	MaxStack int
}

type Slot struct {
	X int
	Y int
}

type ItemStack struct {
	Key        ItemKey
	Count      int
	CustomData map[string]string
	Shared     *ItemShared
	Slot       Slot
}

func (s *ItemStack) HasCustomData() bool { return s != nil && len(s.CustomData) > 0 }

func (s *ItemStack) MaxStack() int {
	if s == nil || s.Shared == nil || s.Shared.MaxStack <= 0 {
		return math.MaxInt32
	}
	return s.Shared.MaxStack
}

// Backup holds exactly what is needed to rebuild a stack after a failed
// deposit: key, count and the shared metadata reference. Custom data is
// deliberately absent; stacks carrying it are never transferred.
type Backup struct {
	Key    ItemKey
	Count  int
	Shared *ItemShared
}

func BackupOf(s *ItemStack) Backup {
	if s == nil {
		return Backup{}
	}
	return Backup{Key: s.Key, Count: s.Count, Shared: s.Shared}
}

// Restore returns a fresh stack with the given count.
func (b Backup) Restore(count int) *ItemStack {
	return &ItemStack{Key: b.Key, Count: count, Shared: b.Shared}
}

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

func (v Vec3) Dist(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (v Vec3) Array() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func SumCounts(stacks []*ItemStack, key ItemKey) int {
	n := 0
	for _, s := range stacks {
		if s != nil && s.Key == key {
			n += s.Count
		}
	}
	return n
}

// Package items tracks stacks lying in the world, indexed by the unit cell
// they occupy. Stacks of the same item in one cell merge.
package items

import (
	"math"
	"sort"

	"quickstack.ai/internal/stack/model"
)

const EntityTTLTicksDefault = 6000

type Cell [3]int

func CellOf(p model.Vec3) Cell {
	return Cell{int(math.Floor(p.X)), int(math.Floor(p.Y)), int(math.Floor(p.Z))}
}

type Entity struct {
	ID          string
	Pos         model.Vec3
	Key         model.ItemKey
	Count       int
	Shared      *model.ItemShared
	CreatedTick uint64
	ExpiresTick uint64
}

type AuditFunc func(nowTick uint64, actor, action string, pos model.Vec3, item string, count int, reason string)

type Store struct {
	TTL   uint64
	NewID func() string
	Audit AuditFunc

	byID map[string]*Entity
	at   map[Cell][]string
}

func NewStore(newID func() string) *Store {
	return &Store{
		TTL:   EntityTTLTicksDefault,
		NewID: newID,
		byID:  map[string]*Entity{},
		at:    map[Cell][]string{},
	}
}

func (s *Store) Len() int { return len(s.byID) }

func (s *Store) Get(id string) *Entity { return s.byID[id] }

// Spawn drops count units at pos and returns the entity that holds them.
func (s *Store) Spawn(nowTick uint64, actor string, pos model.Vec3, key model.ItemKey, count int, shared *model.ItemShared, reason string) string {
	if key.IsZero() || count <= 0 {
		return ""
	}
	c := CellOf(pos)
	if id, ok := FindMergeTarget(s.at[c], key, s.load); ok {
		e := s.byID[id]
		e.Count += count
		if exp := s.expiry(nowTick); exp > e.ExpiresTick {
			e.ExpiresTick = exp
		}
		s.audit(nowTick, actor, "ITEM_SPAWN", pos, key.String(), count, reason)
		return id
	}
	if s.NewID == nil {
		return ""
	}
	e := &Entity{
		ID:          s.NewID(),
		Pos:         pos,
		Key:         key,
		Count:       count,
		Shared:      shared,
		CreatedTick: nowTick,
		ExpiresTick: s.expiry(nowTick),
	}
	s.Put(e)
	s.audit(nowTick, actor, "ITEM_SPAWN", pos, key.String(), count, reason)
	return e.ID
}

// Put indexes e as is. Used by Spawn and snapshot import.
func (s *Store) Put(e *Entity) {
	s.byID[e.ID] = e
	c := CellOf(e.Pos)
	s.at[c] = append(s.at[c], e.ID)
}

func (s *Store) Remove(nowTick uint64, actor, id, reason string) {
	e := s.byID[id]
	if e == nil {
		return
	}
	delete(s.byID, id)
	c := CellOf(e.Pos)
	ids := RemoveID(s.at[c], id)
	if len(ids) == 0 {
		delete(s.at, c)
	} else {
		s.at[c] = ids
	}
	s.audit(nowTick, actor, "ITEM_DESPAWN", e.Pos, e.Key.String(), e.Count, reason)
}

// At lists the entities in c in spawn order.
func (s *Store) At(c Cell) []*Entity {
	ids := s.at[c]
	out := make([]*Entity, 0, len(ids))
	for _, id := range ids {
		if e := s.byID[id]; e != nil {
			out = append(out, e)
		}
	}
	return out
}

// All lists every entity in id order.
func (s *Store) All() []*Entity {
	out := make([]*Entity, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CleanupExpired(nowTick uint64) int {
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	expired := SortedExpired(ids, s.load, nowTick)
	for _, id := range expired {
		s.Remove(nowTick, "WORLD", id, "expired")
	}
	return len(expired)
}

func (s *Store) expiry(nowTick uint64) uint64 {
	if s.TTL == 0 {
		return 0
	}
	return nowTick + s.TTL
}

func (s *Store) load(id string) (Entry, bool) {
	e := s.byID[id]
	if e == nil {
		return Entry{}, false
	}
	return Entry{ID: e.ID, Key: e.Key, Count: e.Count, ExpiresTick: e.ExpiresTick}, true
}

func (s *Store) audit(nowTick uint64, actor, action string, pos model.Vec3, item string, count int, reason string) {
	if s.Audit != nil {
		s.Audit(nowTick, actor, action, pos, item, count, reason)
	}
}

type Entry struct {
	ID          string
	Key         model.ItemKey
	Count       int
	ExpiresTick uint64
}

func FindMergeTarget(ids []string, key model.ItemKey, load func(string) (Entry, bool)) (string, bool) {
	if load == nil || key.IsZero() {
		return "", false
	}
	for _, id := range ids {
		e, ok := load(id)
		if !ok {
			continue
		}
		if e.Key == key && e.Count > 0 {
			return e.ID, true
		}
	}
	return "", false
}

func RemoveID(ids []string, id string) []string {
	for i := 0; i < len(ids); i++ {
		if ids[i] != id {
			continue
		}
		copy(ids[i:], ids[i+1:])
		return ids[:len(ids)-1]
	}
	return ids
}

func SortedExpired(ids []string, load func(string) (Entry, bool), nowTick uint64) []string {
	out := make([]string, 0)
	if load == nil {
		return out
	}
	for _, id := range ids {
		e, ok := load(id)
		if !ok {
			continue
		}
		if e.ExpiresTick != 0 && nowTick >= e.ExpiresTick {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

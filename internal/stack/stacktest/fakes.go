// Package stacktest provides in-memory capability fakes for core tests.
package stacktest

import (
	"errors"
	"sort"
	"time"

	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/model"
)

func Key(kind string, q int) model.ItemKey { return model.ItemKey{Kind: kind, Quality: q} }

func Stack(kind string, q, count int) *model.ItemStack {
	return &model.ItemStack{Key: Key(kind, q), Count: count}
}

// Inventory is a slot-limited inventory. MaxStack bounds every slot.
type Inventory struct {
	Slots    int
	MaxStack int
	Stacks   []*model.ItemStack
}

func NewInventory(slots, maxStack int, stacks ...*model.ItemStack) *Inventory {
	return &Inventory{Slots: slots, MaxStack: maxStack, Stacks: stacks}
}

func (inv *Inventory) Items() []*model.ItemStack {
	out := make([]*model.ItemStack, len(inv.Stacks))
	copy(out, inv.Stacks)
	return out
}

func (inv *Inventory) Contains(s *model.ItemStack) bool {
	for _, it := range inv.Stacks {
		if it == s {
			return true
		}
	}
	return false
}

func (inv *Inventory) Remove(s *model.ItemStack) bool {
	for i, it := range inv.Stacks {
		if it == s {
			inv.Stacks = append(inv.Stacks[:i], inv.Stacks[i+1:]...)
			return true
		}
	}
	return false
}

func (inv *Inventory) room(key model.ItemKey) int {
	room := 0
	for _, it := range inv.Stacks {
		if it.Key == key && !it.HasCustomData() {
			room += inv.MaxStack - it.Count
		}
	}
	if inv.Slots > len(inv.Stacks) {
		room += (inv.Slots - len(inv.Stacks)) * inv.MaxStack
	}
	return room
}

func (inv *Inventory) Add(s *model.ItemStack) bool {
	if s == nil || s.Count <= 0 {
		return false
	}
	if inv.room(s.Key) < s.Count {
		return false
	}
	left := s.Count
	for _, it := range inv.Stacks {
		if left == 0 {
			break
		}
		if it.Key != s.Key || it.HasCustomData() {
			continue
		}
		n := min(inv.MaxStack-it.Count, left)
		it.Count += n
		left -= n
	}
	for left > 0 {
		n := min(inv.MaxStack, left)
		inv.Stacks = append(inv.Stacks, &model.ItemStack{Key: s.Key, Count: n, Shared: s.Shared})
		left -= n
	}
	return true
}

func (inv *Inventory) Total(key model.ItemKey) int { return model.SumCounts(inv.Stacks, key) }

type Actor struct {
	Name string
	Pos  model.Vec3
	Dead bool
	Inv  capability.Inventory
}

func (a *Actor) ID() string                     { return a.Name }
func (a *Actor) Position() model.Vec3           { return a.Pos }
func (a *Actor) Alive() bool                    { return !a.Dead }
func (a *Actor) Inventory() capability.Inventory { return a.Inv }

type Actors map[string]*Actor

func (m Actors) Actor(id string) (capability.Actor, bool) {
	a, ok := m[id]
	if !ok {
		return nil, false
	}
	return a, true
}

type Deposit struct {
	ActorID string
	Key     model.ItemKey
	Amount  int
}

// Container queues deposits until Apply is called, mimicking a remote
// write that lands some time after the request.
type Container struct {
	Name     string
	Pos      model.Vec3
	Class    model.ItemKey
	Classed  bool
	Stored   int
	Capacity int
	Invalid  bool
	Claims   int

	// FailDeposit makes Deposit return an error; PanicDeposit makes it panic.
	FailDeposit  bool
	PanicDeposit bool
	// Drop lists deposit indexes (0-based, over the container's lifetime)
	// that are silently lost.
	Drop map[int]bool

	Queue []Deposit
	seq   int
}

func (c *Container) ID() string           { return c.Name }
func (c *Container) Position() model.Vec3 { return c.Pos }
func (c *Container) Valid() bool          { return !c.Invalid }
func (c *Container) Amount() int          { return c.Stored }
func (c *Container) ClaimAuthority()      { c.Claims++ }

func (c *Container) Key() (model.ItemKey, bool) { return c.Class, c.Classed }

func (c *Container) Deposit(actor capability.Actor, kind string, amount, quality int) error {
	if c.PanicDeposit {
		panic("deposit exploded")
	}
	if c.FailDeposit {
		return errors.New("rpc: connection reset")
	}
	idx := c.seq
	c.seq++
	if c.Drop[idx] {
		return nil
	}
	id := ""
	if actor != nil {
		id = actor.ID()
	}
	c.Queue = append(c.Queue, Deposit{ActorID: id, Key: model.ItemKey{Kind: kind, Quality: quality}, Amount: amount})
	return nil
}

// Apply lands every queued deposit, honoring classification and capacity.
func (c *Container) Apply() {
	for _, d := range c.Queue {
		if c.Classed && c.Class != d.Key {
			continue
		}
		if !c.Classed {
			c.Class = d.Key
			c.Classed = true
		}
		n := d.Amount
		if c.Capacity > 0 && c.Stored+n > c.Capacity {
			n = c.Capacity - c.Stored
		}
		c.Stored += n
	}
	c.Queue = nil
}

type Registry []*Container

func (r Registry) Containers() []capability.Container {
	out := make([]capability.Container, 0, len(r))
	for _, c := range r {
		out = append(out, c)
	}
	return out
}

type Emitted struct {
	Pos   model.Vec3
	Stack *model.ItemStack
}

type Environment struct {
	Fail    bool
	Emitted []Emitted
}

func (e *Environment) Emit(pos model.Vec3, s *model.ItemStack) error {
	if e.Fail {
		return errors.New("no ground here")
	}
	e.Emitted = append(e.Emitted, Emitted{Pos: pos, Stack: s})
	return nil
}

func (e *Environment) Total(key model.ItemKey) int {
	n := 0
	for _, it := range e.Emitted {
		if it.Stack.Key == key {
			n += it.Stack.Count
		}
	}
	return n
}

type Notifier struct {
	Messages []string
}

func (n *Notifier) Notify(actorID, message string) {
	n.Messages = append(n.Messages, actorID+": "+message)
}

type Peer struct {
	Radius float64
	OK     bool
}

func (p Peer) SearchRadius() (float64, bool) { return p.Radius, p.OK }

// Hotbar treats row 0 as low priority.
type Hotbar struct{}

func (Hotbar) LowPriority(s *model.ItemStack) bool { return s != nil && s.Slot.Y == 0 }

type timer struct {
	at  time.Time
	seq int
	fn  func()
}

// Clock is a manual cooperative clock. Timers fire only from Advance, in
// deadline order, FIFO on ties.
type Clock struct {
	now    time.Time
	seq    int
	timers []timer
}

func NewClock() *Clock { return &Clock{now: time.Unix(1_700_000_000, 0).UTC()} }

func (c *Clock) Now() time.Time { return c.now }

func (c *Clock) AfterFunc(d time.Duration, fn func()) {
	c.seq++
	c.timers = append(c.timers, timer{at: c.now.Add(d), seq: c.seq, fn: fn})
}

func (c *Clock) Pending() int { return len(c.timers) }

func (c *Clock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for {
		sort.Slice(c.timers, func(i, j int) bool {
			if !c.timers[i].at.Equal(c.timers[j].at) {
				return c.timers[i].at.Before(c.timers[j].at)
			}
			return c.timers[i].seq < c.timers[j].seq
		})
		if len(c.timers) == 0 || c.timers[0].at.After(c.now) {
			return
		}
		t := c.timers[0]
		c.timers = c.timers[1:]
		t.fn()
	}
}

// Recorder keeps every event it sees.
type Recorder struct {
	Passes   []model.PassSummary
	Issued   []model.PendingTransfer
	Resolved []model.Resolution
}

func (r *Recorder) PassCompleted(s model.PassSummary)     { r.Passes = append(r.Passes, s) }
func (r *Recorder) TransferIssued(p model.PendingTransfer) { r.Issued = append(r.Issued, p) }
func (r *Recorder) TransferResolved(res model.Resolution)  { r.Resolved = append(r.Resolved, res) }

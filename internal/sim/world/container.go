package world

import (
	"errors"
	"fmt"
	"math"

	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/model"
	"quickstack.ai/internal/sim/world/logic/ids"
)

// Drawer holds a single item key. An unclassified drawer takes the key of
// the first deposit that lands in it.
type Drawer struct {
	w *World

	DrawerID string
	Pos      model.Vec3
	Class    model.ItemKey
	Classed  bool
	Stored   int
	Capacity int

	Claims    int
	ClaimTick uint64
	removed   bool
}

var errDrawerRemoved = errors.New("drawer removed")

func (d *Drawer) ID() string           { return d.DrawerID }
func (d *Drawer) Position() model.Vec3 { return d.Pos }
func (d *Drawer) Valid() bool          { return d != nil && !d.removed }
func (d *Drawer) Amount() int          { return d.Stored }

func (d *Drawer) Key() (model.ItemKey, bool) { return d.Class, d.Classed }

func (d *Drawer) ClaimAuthority() {
	d.Claims++
	d.ClaimTick = d.w.tick.Load()
}

// Deposit queues the request; it lands after the configured latency or
// is silently lost at the configured drop rate.
func (d *Drawer) Deposit(actor capability.Actor, kind string, amount, quality int) error {
	if d.removed {
		return errDrawerRemoved
	}
	if actor == nil || kind == "" || amount <= 0 {
		return fmt.Errorf("bad deposit request for %s", d.DrawerID)
	}
	return d.w.enqueueDeposit(d, actor.ID(), model.ItemKey{Kind: kind, Quality: quality}, amount)
}

func drawerID(pos model.Vec3) string {
	return ids.ContainerID("DRAWER", int(math.Round(pos.X)), int(math.Round(pos.Y)), int(math.Round(pos.Z)))
}

// AddDrawer places a drawer. Loop-only.
func (w *World) AddDrawer(spec DrawerSpec) (*Drawer, error) {
	id := spec.ID
	if id == "" {
		id = drawerID(spec.Pos)
	}
	if _, ok := w.drawers[id]; ok {
		return nil, fmt.Errorf("duplicate drawer id %q", id)
	}
	d := &Drawer{
		w:        w,
		DrawerID: id,
		Pos:      spec.Pos,
		Class:    spec.Key,
		Classed:  !spec.Key.IsZero(),
		Stored:   spec.Amount,
		Capacity: w.cfg.DrawerCapacity,
	}
	w.drawers[id] = d
	return d, nil
}

// RemoveDrawer destroys a drawer and its contents. Handles held by
// in-flight transfers become invalid. Loop-only.
func (w *World) RemoveDrawer(id string) bool {
	d := w.drawers[id]
	if d == nil {
		return false
	}
	d.removed = true
	delete(w.drawers, id)
	w.audit("WORLD", "DRAWER_REMOVED", d.Pos, id, d.Class.String(), d.Stored, "")
	return true
}

func (w *World) Drawer(id string) *Drawer { return w.drawers[id] }

func (d *Drawer) room() int {
	if d.Capacity <= 0 {
		return math.MaxInt32
	}
	return max(0, d.Capacity-d.Stored)
}

package world

import (
	"errors"
	"fmt"

	"quickstack.ai/internal/sim/world/feature/entities/items"
	"quickstack.ai/internal/stack/model"
)

var errNothingToEmit = errors.New("nothing to emit")

func (w *World) newItemID() string {
	n := w.nextItemNum.Add(1)
	return fmt.Sprintf("I%d", n)
}

// Emit drops s on the ground at pos.
func (w *World) Emit(pos model.Vec3, s *model.ItemStack) error {
	if s == nil || s.Count <= 0 || s.Key.IsZero() {
		return errNothingToEmit
	}
	if w.ground.Spawn(w.tick.Load(), "WORLD", pos, s.Key, s.Count, s.Shared, "recovered") == "" {
		return fmt.Errorf("spawn %s x%d failed", s.Key, s.Count)
	}
	return nil
}

// GroundItems lists item entities for tests and snapshots.
func (w *World) GroundItems() []*items.Entity { return w.ground.All() }

// pickupAt moves whole ground stacks in the agent's cell into its
// inventory while they fit.
func (w *World) pickupAt(a *Agent, nowTick uint64) {
	for _, e := range w.ground.At(items.CellOf(a.Pos)) {
		if !a.Inv.Add(&model.ItemStack{Key: e.Key, Count: e.Count, Shared: w.sharedFor(e.Key)}) {
			continue
		}
		w.ground.Remove(nowTick, a.ID, e.ID, "pickup")
	}
}

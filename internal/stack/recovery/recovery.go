// Package recovery puts items back where they came from after a transfer
// did not land: the actor's inventory first, the world second.
package recovery

import (
	"fmt"

	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/model"
)

type Sinks struct {
	Environment capability.Environment
	Notifier    capability.Notifier
}

// Restore rebuilds count units from b and places them. fallback is used as
// the drop position when the actor is gone. The returned error is nil for
// an inventory restore, wraps ErrRecoveryOverflow for a world drop and
// ErrRecoveryLost when nothing took the items.
func Restore(actor capability.Actor, actorID string, sinks Sinks, b model.Backup, count int, fallback model.Vec3) (to model.RecoveryTarget, err error) {
	if count <= 0 {
		return model.RecoveredNone, nil
	}
	stack := b.Restore(count)

	pos := fallback
	if actor != nil && actor.Alive() {
		pos = actor.Position()
		if inv := actor.Inventory(); inv != nil && addSafe(inv, stack) {
			return model.RecoveredInventory, nil
		}
	}

	if sinks.Environment != nil && emitSafe(sinks.Environment, pos, stack) == nil {
		if sinks.Notifier != nil && actorID != "" {
			sinks.Notifier.Notify(actorID, fmt.Sprintf("inventory full: dropped %d x %s nearby", count, b.Key))
		}
		return model.RecoveredEnvironment, fmt.Errorf("%d x %s: %w", count, b.Key, model.ErrRecoveryOverflow)
	}
	return model.RecoveredLost, fmt.Errorf("%d x %s: %w", count, b.Key, model.ErrRecoveryLost)
}

func addSafe(inv capability.Inventory, s *model.ItemStack) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return inv.Add(s)
}

func emitSafe(env capability.Environment, pos model.Vec3, s *model.ItemStack) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("emit panicked: %v", r)
		}
	}()
	return env.Emit(pos, s)
}

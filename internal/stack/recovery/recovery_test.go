package recovery

import (
	"errors"
	"testing"

	"quickstack.ai/internal/stack/model"
	"quickstack.ai/internal/stack/stacktest"
)

func TestRestoreIntoInventory(t *testing.T) {
	inv := stacktest.NewInventory(4, 50)
	actor := &stacktest.Actor{Name: "A1", Inv: inv}
	env := &stacktest.Environment{}
	b := model.Backup{Key: stacktest.Key("wood", 1), Count: 20}

	to, err := Restore(actor, "A1", Sinks{Environment: env}, b, 15, model.Vec3{})
	if err != nil || to != model.RecoveredInventory {
		t.Fatalf("to=%s err=%v", to, err)
	}
	if got := inv.Total(b.Key); got != 15 {
		t.Fatalf("inventory total=%d want 15", got)
	}
	if len(env.Emitted) != 0 {
		t.Fatalf("unexpected emission: %+v", env.Emitted)
	}
}

func TestRestoreOverflowDropsAndNotifies(t *testing.T) {
	inv := stacktest.NewInventory(1, 10, stacktest.Stack("stone", 1, 10))
	actor := &stacktest.Actor{Name: "A1", Pos: model.Vec3{X: 4}, Inv: inv}
	env := &stacktest.Environment{}
	note := &stacktest.Notifier{}
	b := model.Backup{Key: stacktest.Key("wood", 1)}

	to, err := Restore(actor, "A1", Sinks{Environment: env, Notifier: note}, b, 5, model.Vec3{})
	if to != model.RecoveredEnvironment || !errors.Is(err, model.ErrRecoveryOverflow) {
		t.Fatalf("to=%s err=%v", to, err)
	}
	if len(env.Emitted) != 1 || env.Emitted[0].Pos != actor.Pos || env.Emitted[0].Stack.Count != 5 {
		t.Fatalf("unexpected emission: %+v", env.Emitted)
	}
	if len(note.Messages) != 1 {
		t.Fatalf("expected one notice, got %v", note.Messages)
	}
}

func TestRestoreActorGoneUsesFallback(t *testing.T) {
	inv := stacktest.NewInventory(4, 50)
	actor := &stacktest.Actor{Name: "A1", Dead: true, Inv: inv}
	env := &stacktest.Environment{}
	fallback := model.Vec3{X: 7, Z: 1}

	to, _ := Restore(actor, "A1", Sinks{Environment: env}, model.Backup{Key: stacktest.Key("ore", 1)}, 3, fallback)
	if to != model.RecoveredEnvironment {
		t.Fatalf("to=%s", to)
	}
	if len(inv.Stacks) != 0 {
		t.Fatalf("dead actor's inventory must not be touched")
	}
	if env.Emitted[0].Pos != fallback {
		t.Fatalf("emitted at %+v want %+v", env.Emitted[0].Pos, fallback)
	}
}

func TestRestoreLost(t *testing.T) {
	to, err := Restore(nil, "A1", Sinks{Environment: &stacktest.Environment{Fail: true}}, model.Backup{Key: stacktest.Key("ore", 1)}, 3, model.Vec3{})
	if to != model.RecoveredLost || !errors.Is(err, model.ErrRecoveryLost) {
		t.Fatalf("to=%s err=%v", to, err)
	}
	to, err = Restore(nil, "A1", Sinks{}, model.Backup{}, 0, model.Vec3{})
	if to != model.RecoveredNone || err != nil {
		t.Fatalf("zero count: to=%s err=%v", to, err)
	}
}

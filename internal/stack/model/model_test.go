package model

import (
	"errors"
	"testing"
)

func TestItemKeyStringParse(t *testing.T) {
	k := ItemKey{Kind: "wood", Quality: 2}
	got, ok := ParseItemKey(k.String())
	if !ok || got != k {
		t.Fatalf("ParseItemKey(%q) = %+v ok=%v", k.String(), got, ok)
	}
	for _, bad := range []string{"", "wood", "@1", "wood@x"} {
		if _, ok := ParseItemKey(bad); ok {
			t.Fatalf("expected parse failure for %q", bad)
		}
	}
}

func TestBackupRestoreIsFreshStack(t *testing.T) {
	shared := &ItemShared{Name: "Wood", MaxStack: 50}
	src := &ItemStack{Key: ItemKey{Kind: "wood", Quality: 1}, Count: 20, Shared: shared, Slot: Slot{X: 3, Y: 1}}
	b := BackupOf(src)
	src.Count = 0

	got := b.Restore(7)
	if got == src {
		t.Fatalf("restore must not return the original stack")
	}
	if got.Key != src.Key || got.Count != 7 || got.Shared != shared {
		t.Fatalf("unexpected restored stack: %+v", got)
	}
	if b.Count != 20 {
		t.Fatalf("backup count changed: %d", b.Count)
	}
}

func TestMaxStackDefaults(t *testing.T) {
	if (&ItemStack{}).MaxStack() <= 1000 {
		t.Fatalf("expected unbounded max stack without shared metadata")
	}
	s := &ItemStack{Shared: &ItemShared{MaxStack: 20}}
	if s.MaxStack() != 20 {
		t.Fatalf("MaxStack=%d", s.MaxStack())
	}
}

func TestResolutionErr(t *testing.T) {
	if err := (Resolution{State: StateConfirmed}).Err(); err != nil {
		t.Fatalf("confirmed should not carry an error: %v", err)
	}
	err := Resolution{State: StatePartial, RecoveredTo: RecoveredEnvironment}.Err()
	if !errors.Is(err, ErrVerificationPartial) || !errors.Is(err, ErrRecoveryOverflow) {
		t.Fatalf("unexpected err: %v", err)
	}
	err = Resolution{State: StateFailed, RecoveredTo: RecoveredLost}.Err()
	if !errors.Is(err, ErrVerificationFailed) || !errors.Is(err, ErrRecoveryLost) {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestVec3Dist(t *testing.T) {
	if d := (Vec3{X: 3, Z: 4}).Dist(Vec3{}); d != 5 {
		t.Fatalf("Dist=%v", d)
	}
}

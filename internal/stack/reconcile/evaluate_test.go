package reconcile

import (
	"testing"

	"quickstack.ai/internal/stack/model"
)

func TestEvaluate(t *testing.T) {
	wood := model.ItemKey{Kind: "wood", Quality: 1}
	p := model.PendingTransfer{Key: wood, Requested: 40, Before: 100}

	tests := []struct {
		name      string
		obs       Observation
		state     model.State
		accepted  int
		shortfall int
	}{
		{"gone", Observation{}, model.StateFailed, 0, 40},
		{"unchanged", Observation{Valid: true, Key: wood, HasKey: true, Amount: 100}, model.StateFailed, 0, 40},
		{"shrunk", Observation{Valid: true, Key: wood, HasKey: true, Amount: 90}, model.StateFailed, 0, 40},
		{"reclassified", Observation{Valid: true, Key: model.ItemKey{Kind: "ore", Quality: 1}, HasKey: true, Amount: 140}, model.StateFailed, 0, 40},
		{"quality differs", Observation{Valid: true, Key: model.ItemKey{Kind: "wood", Quality: 2}, HasKey: true, Amount: 140}, model.StateFailed, 0, 40},
		{"unset", Observation{Valid: true, Amount: 140}, model.StateFailed, 0, 40},
		{"partial 40/25", Observation{Valid: true, Key: wood, HasKey: true, Amount: 125}, model.StatePartial, 25, 15},
		{"exact", Observation{Valid: true, Key: wood, HasKey: true, Amount: 140}, model.StateConfirmed, 40, 0},
		{"more than asked", Observation{Valid: true, Key: wood, HasKey: true, Amount: 170}, model.StateConfirmed, 40, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := Evaluate(p, tc.obs)
			if v.State != tc.state || v.Accepted != tc.accepted || v.Shortfall != tc.shortfall {
				t.Fatalf("got state=%s accepted=%d shortfall=%d, want %s/%d/%d",
					v.State, v.Accepted, v.Shortfall, tc.state, tc.accepted, tc.shortfall)
			}
			if v.Accepted+v.Shortfall != p.Requested {
				t.Fatalf("accepted+shortfall=%d, want %d", v.Accepted+v.Shortfall, p.Requested)
			}
		})
	}
}

func TestLedgerBaselineChainsAndRebases(t *testing.T) {
	l := NewLedger()
	mk := func(id string, before, req int) *model.PendingTransfer {
		return &model.PendingTransfer{ID: id, ContainerID: "D1", Before: before, Requested: req}
	}
	if b := l.Baseline("D1", 10); b != 10 {
		t.Fatalf("empty ledger baseline=%d", b)
	}
	t1 := mk("T1", l.Baseline("D1", 10), 20)
	l.Add(t1)
	t2 := mk("T2", l.Baseline("D1", 10), 20)
	l.Add(t2)
	t3 := mk("T3", l.Baseline("D1", 10), 5)
	l.Add(t3)
	if t2.Before != 30 || t3.Before != 50 {
		t.Fatalf("baselines: t2=%d t3=%d", t2.Before, t3.Before)
	}
	// Observed amount already ahead of the chain wins.
	if b := l.Baseline("D1", 80); b != 80 {
		t.Fatalf("baseline=%d want 80", b)
	}

	l.Resolve(t1, 20)
	if t2.Before != 10 || t3.Before != 30 {
		t.Fatalf("after rebase: t2=%d t3=%d", t2.Before, t3.Before)
	}
	if l.Outstanding("D1") != 2 || l.Len() != 2 {
		t.Fatalf("outstanding=%d len=%d", l.Outstanding("D1"), l.Len())
	}
	l.Resolve(t2, 0)
	l.Resolve(t3, 0)
	l.Resolve(t3, 0)
	if l.Len() != 0 {
		t.Fatalf("len=%d", l.Len())
	}
}

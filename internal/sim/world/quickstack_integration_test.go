package world

import (
	"testing"
	"time"

	"github.com/go-logr/logr"

	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/stack/pass"
	"quickstack.ai/internal/stack/reconcile"
)

func wirePass(w *World, delay time.Duration) *pass.Service {
	caps := w.Capabilities()
	sched := reconcile.New(reconcile.Config{
		Clock:       w,
		Delay:       delay,
		Actors:      caps.Actors,
		Environment: caps.Environment,
		Notifier:    caps.Notifier,
		Recorder:    w,
		Log:         logr.Discard(),
	})
	svc := pass.New(pass.Config{
		Options:   pass.Options{SearchRadius: 10, MaxContainers: 10, PreferPeerRadius: true},
		Caps:      caps,
		Scheduler: sched,
		Recorder:  w,
		Log:       logr.Discard(),
		Now:       w.Now,
	})
	w.SetStackHandler(svc)
	return svc
}

func TestQuickStackPartialAcceptanceRecovers(t *testing.T) {
	w, _ := newTestWorld(t, func(c *WorldConfig) {
		c.DrawerCapacity = 30
		c.StarterItems = []ItemSpec{{Key: wood, Count: 45}}
		c.Drawers = []DrawerSpec{{ID: "wood_1", Pos: pos(2, 0, 0), Key: wood}}
	})
	svc := wirePass(w, 2*time.Second)
	a, out := joinTestAgent(t, w, "bot")

	w.StepOnce(nil, nil, []Command{{AgentID: a.ID, StackDone: &protocol.StackDoneMsg{Moved: 2}}})
	res := decode[protocol.StackResultMsg](t, drain(t, out)[protocol.TypeStackResult][0])
	if res.Moved != 3 || res.Issued != 1 || res.Containers != 1 || res.PassID == "" {
		t.Fatalf("stack result: %+v", res)
	}
	if a.Inv.Total(wood) != 0 || svc.Scheduler().Outstanding() != 1 {
		t.Fatalf("stack not removed optimistically")
	}

	// 2s at 10Hz is 20 ticks after the issuing tick.
	stepN(w, 19)
	if svc.Scheduler().Outstanding() != 1 || w.Drawer("wood_1").Amount() != 30 {
		t.Fatalf("verified early or deposit missing")
	}
	stepN(w, 1)
	msgs := drain(t, out)
	rc := decode[protocol.ReconcileMsg](t, msgs[protocol.TypeReconcile][0])
	if rc.State != "PARTIAL" || rc.Accepted != 30 || rc.Shortfall != 15 || rc.Code != protocol.ErrVerificationPartial {
		t.Fatalf("reconcile: %+v", rc)
	}
	if got := a.Inv.Total(wood) + w.Drawer("wood_1").Amount(); got != 45 {
		t.Fatalf("conservation broken: %d", got)
	}
}

func TestQuickStackLatencyEqualToDelayConfirms(t *testing.T) {
	w, _ := newTestWorld(t, func(c *WorldConfig) {
		c.DepositLatencyTicks = 5
		c.StarterItems = []ItemSpec{{Key: wood, Count: 20}}
		c.Drawers = []DrawerSpec{{ID: "wood_1", Pos: pos(1, 0, 0), Key: wood}}
	})
	// 500ms at 10Hz is 5 ticks: the deposit and its check fall on one tick.
	wirePass(w, 500*time.Millisecond)
	a, out := joinTestAgent(t, w, "bot")
	w.StepOnce(nil, nil, []Command{{AgentID: a.ID, StackDone: &protocol.StackDoneMsg{}}})
	stepN(w, 5)

	rc := decode[protocol.ReconcileMsg](t, drain(t, out)[protocol.TypeReconcile][0])
	if rc.State != "CONFIRMED" || rc.Accepted != 20 || rc.Shortfall != 0 {
		t.Fatalf("reconcile: %+v", rc)
	}
	if a.Inv.Total(wood) != 0 || w.Drawer("wood_1").Amount() != 20 {
		t.Fatalf("inv=%d drawer=%d", a.Inv.Total(wood), w.Drawer("wood_1").Amount())
	}
}

func TestQuickStackDroppedDepositRecovered(t *testing.T) {
	w, _ := newTestWorld(t, func(c *WorldConfig) {
		c.DepositDropPermille = 1000
		c.StarterItems = []ItemSpec{{Key: wood, Count: 20}}
		c.Drawers = []DrawerSpec{{ID: "wood_1", Pos: pos(1, 0, 1), Key: wood, Amount: 5}}
	})
	wirePass(w, 500*time.Millisecond)
	a, out := joinTestAgent(t, w, "bot")
	w.StepOnce(nil, nil, []Command{{AgentID: a.ID, StackDone: &protocol.StackDoneMsg{}}})
	stepN(w, 5)

	rc := decode[protocol.ReconcileMsg](t, drain(t, out)[protocol.TypeReconcile][0])
	if rc.State != "FAILED" || rc.RecoveredTo != "INVENTORY" || rc.Code != protocol.ErrVerificationFailed {
		t.Fatalf("reconcile: %+v", rc)
	}
	if a.Inv.Total(wood) != 20 || w.Drawer("wood_1").Amount() != 5 {
		t.Fatalf("inv=%d drawer=%d", a.Inv.Total(wood), w.Drawer("wood_1").Amount())
	}
}

func TestQuickStackOfflineActorDropsAtOrigin(t *testing.T) {
	w, _ := newTestWorld(t, func(c *WorldConfig) {
		c.DepositDropPermille = 1000
		c.StarterItems = []ItemSpec{{Key: wood, Count: 12}}
		c.Drawers = []DrawerSpec{{ID: "wood_1", Pos: pos(1, 0, 0), Key: wood}}
	})
	wirePass(w, 500*time.Millisecond)
	a, _ := joinTestAgent(t, w, "bot")
	w.StepOnce(nil, nil, []Command{{AgentID: a.ID, StackDone: &protocol.StackDoneMsg{}}})
	w.StepOnce(nil, []string{a.ID}, nil)
	stepN(w, 5)

	ground := w.GroundItems()
	if len(ground) != 1 || ground[0].Count != 12 || ground[0].Pos != a.Pos {
		t.Fatalf("ground=%+v", ground)
	}
	if a.Inv.Total(wood) != 0 {
		t.Fatalf("offline inventory was touched")
	}
}

func TestStackDoneWithoutHandler(t *testing.T) {
	w, _ := newTestWorld(t, nil)
	a, out := joinTestAgent(t, w, "bot")
	w.StepOnce(nil, nil, []Command{{AgentID: a.ID, StackDone: &protocol.StackDoneMsg{Moved: 4}}})
	res := decode[protocol.StackResultMsg](t, drain(t, out)[protocol.TypeStackResult][0])
	if res.Moved != 4 || res.Issued != 0 || res.PassID != "" {
		t.Fatalf("stack result: %+v", res)
	}
}

func TestWelcomeReportsPassRadius(t *testing.T) {
	welcomeRadius := func(w *World) float64 {
		resp := make(chan JoinResponse, 1)
		w.StepOnce([]JoinRequest{{Name: "bot", Resp: resp}}, nil, nil)
		return (<-resp).Welcome.WorldParams.SearchRadius
	}
	cases := []struct {
		name string
		peer float64
		wire bool
		want float64
	}{
		{"no handler", 25, false, 10},
		{"peer radius", 25, true, 25},
		{"peer radius too small", 0.01, true, 10},
		{"no peer radius", 0, true, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := newTestWorld(t, func(c *WorldConfig) { c.PeerSearchRadius = tc.peer })
			if tc.wire {
				wirePass(w, time.Second)
			}
			if got := welcomeRadius(w); got != tc.want {
				t.Fatalf("welcome radius=%v want %v", got, tc.want)
			}
		})
	}
}

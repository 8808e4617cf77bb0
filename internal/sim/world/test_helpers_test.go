package world

import (
	"encoding/json"
	"testing"

	"github.com/go-logr/logr"

	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/stack/model"
)

var (
	wood  = model.ItemKey{Kind: "wood", Quality: 1}
	stone = model.ItemKey{Kind: "stone", Quality: 1}
)

func testConfig() WorldConfig {
	return WorldConfig{
		ID:                  "test",
		TickRateHz:          10,
		Seed:                7,
		InventoryCols:       4,
		InventoryRows:       3,
		MaxStack:            50,
		DrawerCapacity:      1000,
		DepositLatencyTicks: 2,
		SearchRadius:        10,
	}
}

func newTestWorld(t *testing.T, mut func(*WorldConfig)) (*World, *auditSink) {
	t.Helper()
	cfg := testConfig()
	if mut != nil {
		mut(&cfg)
	}
	w, err := New(cfg, logr.Discard())
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	sink := &auditSink{}
	w.SetAuditLogger(sink)
	return w, sink
}

func joinTestAgent(t *testing.T, w *World, name string) (*Agent, chan []byte) {
	t.Helper()
	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	a := w.Agent(r.Welcome.AgentID)
	if a == nil {
		t.Fatalf("agent %q not registered", r.Welcome.AgentID)
	}
	return a, out
}

func stepN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.StepOnce(nil, nil, nil)
	}
}

type auditSink struct {
	entries []AuditEntry
}

func (s *auditSink) WriteAudit(e AuditEntry) error {
	s.entries = append(s.entries, e)
	return nil
}

func (s *auditSink) count(action string) int {
	n := 0
	for _, e := range s.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// drain decodes every queued message by type.
func drain(t *testing.T, out chan []byte) map[string][][]byte {
	t.Helper()
	got := map[string][][]byte{}
	for {
		select {
		case b := <-out:
			base, err := protocol.DecodeBase(b)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			got[base.Type] = append(got[base.Type], b)
		default:
			return got
		}
	}
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return v
}

func logrDiscard() logr.Logger { return logr.Discard() }

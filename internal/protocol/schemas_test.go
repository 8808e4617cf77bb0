package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"quickstack.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	// Messages are validated as the server marshals them.
	validate := func(s *jsonschema.Schema, msg any) {
		t.Helper()
		b, err := json.Marshal(msg)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate %s: %v", b, err)
		}
	}

	inv := []protocol.ItemStack{{Item: "wood@1", Count: 20, Slot: [2]int{0, 1}}}

	validate(compile("hello.schema.json"), protocol.HelloMsg{
		Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentName: "bot1", MaxQueue: 8,
	})
	validate(compile("welcome.schema.json"), protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         "A1",
		ResumeToken:     "resume_world_1_A1",
		WorldParams: protocol.WorldParams{
			WorldID: "world_1", TickRateHz: 10, Seed: 1337,
			InventoryCols: 8, InventoryRows: 4, MaxStack: 50, DrawerCapacity: 1000, SearchRadius: 10,
		},
		Inventory: inv,
		Pos:       [3]float64{0, 0, 0},
	})
	validate(compile("move.schema.json"), protocol.MoveMsg{
		Type: protocol.TypeMove, ProtocolVersion: protocol.Version, Pos: [3]float64{1.5, 0, -2},
	})
	validate(compile("stack_done.schema.json"), protocol.StackDoneMsg{
		Type: protocol.TypeStackDone, ProtocolVersion: protocol.Version, Moved: 2,
	})
	validate(compile("stack_result.schema.json"), protocol.StackResultMsg{
		Type: protocol.TypeStackResult, ProtocolVersion: protocol.Version,
		Tick: 42, PassID: "p-1", Moved: 5, Issued: 3, Containers: 2, Radius: 10, Inventory: inv,
	})
	validate(compile("reconcile.schema.json"), protocol.ReconcileMsg{
		Type: protocol.TypeReconcile, ProtocolVersion: protocol.Version,
		Tick: 62, TransferID: "t-3", PassID: "p-1", ContainerID: "wood_1", Item: "wood@1",
		Requested: 5, Accepted: 0, Shortfall: 5, State: "FAILED", RecoveredTo: "INVENTORY",
		Code: protocol.ErrVerificationFailed,
	})
	validate(compile("notice.schema.json"), protocol.NoticeMsg{
		Type: protocol.TypeNotice, ProtocolVersion: protocol.Version, Tick: 62, Text: "inventory full: dropped 5 x wood@1 nearby",
	})
	validate(compile("error.schema.json"), protocol.NewError(protocol.ErrProtoBadRequest, "expected HELLO"))
}

func TestSchemas_RejectMalformed(t *testing.T) {
	s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", "stack_done.schema.json"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	var v any
	_ = json.Unmarshal([]byte(`{"type":"STACK_DONE","protocol_version":"1.0","moved":-1}`), &v)
	if err := s.Validate(v); err == nil {
		t.Fatalf("expected negative moved count to be rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	b, _ := json.Marshal(protocol.StackDoneMsg{Type: protocol.TypeStackDone, ProtocolVersion: protocol.Version, Moved: 1})
	base, err := protocol.DecodeBase(b)
	if err != nil || base.Type != protocol.TypeStackDone || base.ProtocolVersion != protocol.Version {
		t.Fatalf("base=%+v err=%v", base, err)
	}
}

package ws

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/sim/world"
)

type fakeHost struct {
	inbox  chan world.Command
	join   chan world.JoinRequest
	attach chan world.AttachRequest
	leave  chan string
}

func newFakeHost() *fakeHost {
	h := &fakeHost{
		inbox:  make(chan world.Command, 8),
		join:   make(chan world.JoinRequest, 1),
		attach: make(chan world.AttachRequest, 1),
		leave:  make(chan string, 1),
	}
	go func() {
		for {
			select {
			case req := <-h.join:
				req.Resp <- world.JoinResponse{Welcome: protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, AgentID: "A1", ResumeToken: "tok"}}
			case req := <-h.attach:
				if req.ResumeToken != "tok" {
					close(req.Resp)
					continue
				}
				req.Resp <- world.JoinResponse{Welcome: protocol.WelcomeMsg{Type: protocol.TypeWelcome, ProtocolVersion: protocol.Version, AgentID: "A1"}}
			}
		}
	}()
	return h
}

func (h *fakeHost) Inbox() chan<- world.Command        { return h.inbox }
func (h *fakeHost) Join() chan<- world.JoinRequest     { return h.join }
func (h *fakeHost) Attach() chan<- world.AttachRequest { return h.attach }
func (h *fakeHost) Leave() chan<- string               { return h.leave }

func dial(t *testing.T, h *fakeHost) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewServer(h, logr.Discard()).Handler())
	t.Cleanup(srv.Close)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readError(t *testing.T, conn *websocket.Conn) protocol.ErrorMsg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e protocol.ErrorMsg
	if err := conn.ReadJSON(&e); err != nil {
		t.Fatalf("read: %v", err)
	}
	if e.Type != protocol.TypeError {
		t.Fatalf("expected ERROR, got %s", e.Type)
	}
	return e
}

func hello(t *testing.T, conn *websocket.Conn, auth *protocol.HelloAuth) protocol.WelcomeMsg {
	t.Helper()
	send(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, AgentName: "bot", Auth: auth})
	var w protocol.WelcomeMsg
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return w
}

func TestHandshakeAndCommands(t *testing.T) {
	h := newFakeHost()
	conn := dial(t, h)
	if w := hello(t, conn, nil); w.AgentID != "A1" {
		t.Fatalf("welcome=%+v", w)
	}

	send(t, conn, protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, Pos: [3]float64{1, 0, 2}})
	send(t, conn, protocol.StackDoneMsg{Type: protocol.TypeStackDone, ProtocolVersion: protocol.Version, Moved: 3})
	for _, want := range []string{"move", "stack"} {
		select {
		case cmd := <-h.inbox:
			if cmd.AgentID != "A1" {
				t.Fatalf("agent=%q", cmd.AgentID)
			}
			if want == "move" && (cmd.Move == nil || cmd.Move.Pos[2] != 2) {
				t.Fatalf("move=%+v", cmd)
			}
			if want == "stack" && (cmd.StackDone == nil || cmd.StackDone.Moved != 3) {
				t.Fatalf("stack=%+v", cmd)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s command", want)
		}
	}

	_ = conn.Close()
	select {
	case id := <-h.leave:
		if id != "A1" {
			t.Fatalf("leave=%q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no leave")
	}
}

func TestResumeFallsBackToJoin(t *testing.T) {
	h := newFakeHost()
	conn := dial(t, h)
	if w := hello(t, conn, &protocol.HelloAuth{ResumeToken: "stale"}); w.AgentID != "A1" || w.ResumeToken != "tok" {
		t.Fatalf("welcome=%+v", w)
	}
}

func TestRejectsBadMessages(t *testing.T) {
	h := newFakeHost()
	conn := dial(t, h)
	hello(t, conn, nil)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{nope")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if e := readError(t, conn); e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("code=%s", e.Code)
	}

	send(t, conn, protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: "0.1"})
	if e := readError(t, conn); e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("code=%s", e.Code)
	}

	send(t, conn, protocol.StackDoneMsg{Type: protocol.TypeStackDone, ProtocolVersion: protocol.Version, Moved: -1})
	if e := readError(t, conn); e.Code != protocol.ErrBadRequest {
		t.Fatalf("code=%s", e.Code)
	}

	send(t, conn, map[string]string{"type": "TELEPORT", "protocol_version": protocol.Version})
	if e := readError(t, conn); e.Code != protocol.ErrBadRequest || !strings.Contains(e.Message, "TELEPORT") {
		t.Fatalf("error=%+v", e)
	}
	if len(h.inbox) != 0 {
		t.Fatalf("bad messages reached the world")
	}
}

func TestParseCommand(t *testing.T) {
	b, _ := json.Marshal(protocol.StackDoneMsg{Type: protocol.TypeStackDone, ProtocolVersion: protocol.Version})
	cmd, perr := parseCommand("A9", b)
	if perr != nil || cmd.StackDone == nil || cmd.AgentID != "A9" {
		t.Fatalf("cmd=%+v err=%+v", cmd, perr)
	}
}

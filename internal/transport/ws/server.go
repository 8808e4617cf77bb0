package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/sim/world"
)

// Host is the world loop as seen by a connection.
type Host interface {
	Inbox() chan<- world.Command
	Join() chan<- world.JoinRequest
	Attach() chan<- world.AttachRequest
	Leave() chan<- string
}

type Server struct {
	host Host
	log  logr.Logger

	upgrader websocket.Upgrader
}

func NewServer(h Host, log logr.Logger) *Server {
	return &Server{
		host: h,
		log:  log.WithName("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.V(1).Info("upgrade failed", "remote", r.RemoteAddr, "err", err.Error())
			return
		}
		defer conn.Close()

		agentID, out := s.handshake(r.Context(), conn)
		if agentID == "" {
			return
		}
		log := s.log.WithValues("agent", agentID)
		log.Info("client connected", "remote", r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			cmd, perr := parseCommand(agentID, msg)
			if perr != nil {
				queue(out, *perr)
				continue
			}
			select {
			case s.host.Inbox() <- cmd:
			default:
				queue(out, protocol.NewError(protocol.ErrWorldBusy, "world inbox full"))
			}
		}

		s.host.Leave() <- agentID
		log.Info("client disconnected")
	}
}

// parseCommand decodes one client message into a world command.
func parseCommand(agentID string, msg []byte) (world.Command, *protocol.ErrorMsg) {
	bad := func(code, text string) (world.Command, *protocol.ErrorMsg) {
		e := protocol.NewError(code, text)
		return world.Command{}, &e
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return bad(protocol.ErrProtoBadRequest, "malformed json")
	}
	if base.ProtocolVersion != protocol.Version {
		return bad(protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	switch base.Type {
	case protocol.TypeMove:
		var m protocol.MoveMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return bad(protocol.ErrProtoBadRequest, "malformed MOVE")
		}
		return world.Command{AgentID: agentID, Move: &m}, nil
	case protocol.TypeStackDone:
		var m protocol.StackDoneMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			return bad(protocol.ErrProtoBadRequest, "malformed STACK_DONE")
		}
		if m.Moved < 0 {
			return bad(protocol.ErrBadRequest, "moved must be >= 0")
		}
		return world.Command{AgentID: agentID, StackDone: &m}, nil
	default:
		return bad(protocol.ErrBadRequest, "unsupported type "+base.Type)
	}
}

func (s *Server) handshake(ctx context.Context, conn *websocket.Conn) (agentID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 16
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	var resp world.JoinResponse
	if hello.Auth != nil {
		if token := strings.TrimSpace(hello.Auth.ResumeToken); token != "" {
			respCh := make(chan world.JoinResponse, 1)
			s.host.Attach() <- world.AttachRequest{ResumeToken: token, Out: out, Resp: respCh}
			select {
			case resp = <-respCh:
			case <-ctx.Done():
				return "", nil
			}
		}
	}
	if resp.Welcome.AgentID == "" {
		respCh := make(chan world.JoinResponse, 1)
		s.host.Join() <- world.JoinRequest{Name: hello.AgentName, Out: out, Resp: respCh}
		select {
		case resp = <-respCh:
		case <-ctx.Done():
			return "", nil
		}
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	return resp.Welcome.AgentID, out
}

// queue hands v to the writer goroutine, dropping the oldest message when
// the client is slow.
func queue(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
		return
	default:
	}
	select {
	case <-out:
	default:
	}
	select {
	case out <- b:
	default:
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

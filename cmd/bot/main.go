package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"quickstack.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "agent name")
		resume   = flag.String("resume", "", "resume token from a previous WELCOME")
		every    = flag.Duration("every", 5*time.Second, "interval between stacking passes")
		wander   = flag.Float64("wander", 4, "max distance moved before each pass")
		maxQueue = flag.Int("max-queue", 16, "server-side send queue for this connection")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		AgentName:       *name,
		MaxQueue:        *maxQueue,
	}
	if *resume != "" {
		hello.Auth = &protocol.HelloAuth{ResumeToken: *resume}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	msgs := make(chan []byte, 64)
	go func() {
		defer close(msgs)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			msgs <- msg
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	ticker := time.NewTicker(*every)
	defer ticker.Stop()

	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	var pos [3]float64
	welcomed := false
	for {
		select {
		case <-stop:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if w, ok := handleMessage(logger, msg); ok {
				pos = w.Pos
				welcomed = true
			}
		case <-ticker.C:
			if !welcomed {
				continue
			}
			pos[0] += (r.Float64()*2 - 1) * *wander
			pos[2] += (r.Float64()*2 - 1) * *wander
			move := protocol.MoveMsg{Type: protocol.TypeMove, ProtocolVersion: protocol.Version, Pos: pos}
			if err := conn.WriteJSON(move); err != nil {
				logger.Printf("send MOVE: %v", err)
				return
			}
			done := protocol.StackDoneMsg{Type: protocol.TypeStackDone, ProtocolVersion: protocol.Version}
			if err := conn.WriteJSON(done); err != nil {
				logger.Printf("send STACK_DONE: %v", err)
				return
			}
		}
	}
}

// handleMessage prints one server message. It returns the WELCOME when msg
// is one.
func handleMessage(logger *log.Logger, msg []byte) (protocol.WelcomeMsg, bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.WelcomeMsg{}, false
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return w, false
		}
		logger.Printf("WELCOME agent_id=%s resume=%s world=%s items=%d pos=%v", w.AgentID, w.ResumeToken, w.WorldParams.WorldID, len(w.Inventory), w.Pos)
		return w, true
	case protocol.TypeStackResult:
		var m protocol.StackResultMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("STACK_RESULT tick=%d pass=%s moved=%d issued=%d containers=%d radius=%.2f", m.Tick, m.PassID, m.Moved, m.Issued, m.Containers, m.Radius)
		}
	case protocol.TypeReconcile:
		var m protocol.ReconcileMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("RECONCILE tick=%d container=%s item=%s requested=%d accepted=%d state=%s recovered_to=%s %s",
				m.Tick, m.ContainerID, m.Item, m.Requested, m.Accepted, m.State, m.RecoveredTo, m.Code)
		}
	case protocol.TypeNotice:
		var m protocol.NoticeMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("NOTICE tick=%d %s", m.Tick, m.Text)
		}
	case protocol.TypeError:
		var m protocol.ErrorMsg
		if err := json.Unmarshal(msg, &m); err == nil {
			logger.Printf("ERROR %s %s", m.Code, m.Message)
		}
	}
	return protocol.WelcomeMsg{}, false
}

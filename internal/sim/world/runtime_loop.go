package world

import (
	"context"
	"fmt"
	"time"

	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/stack/model"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.TickDuration())
	defer ticker.Stop()

	var pendingCmds []Command
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-w.attach:
			w.handleAttach(req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case cmd := <-w.inbox:
			pendingCmds = append(pendingCmds, cmd)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingCmds)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCmds = pendingCmds[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering as
// the server loop. It returns the tick that was processed.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, cmds []Command) uint64 {
	tick := w.tick.Load()
	w.step(joins, leaves, cmds)
	return tick
}

func (w *World) step(joins []JoinRequest, leaves []string, cmds []Command) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	for _, id := range leaves {
		if _, ok := w.agents[id]; ok {
			w.handleLeave(id)
		}
	}
	for _, req := range joins {
		a := w.joinAgent(req)
		if req.Out != nil {
			w.clients[a.ID] = &clientState{Out: req.Out}
		}
		if req.Resp != nil {
			req.Resp <- JoinResponse{Welcome: w.welcome(a)}
		}
	}

	// Commands apply in inbox order.
	for _, cmd := range cmds {
		a := w.agents[cmd.AgentID]
		if a == nil {
			continue
		}
		switch {
		case cmd.Move != nil:
			w.applyMove(a, cmd.Move, nowTick)
		case cmd.StackDone != nil:
			w.applyStackDone(a, cmd.StackDone, nowTick)
		}
	}

	// Deposits land before timers so a verification due this tick sees them.
	w.landDeposits(nowTick)
	w.timers.runDue(nowTick)
	w.ground.CleanupExpired(nowTick)

	if every := uint64(w.cfg.SnapshotEveryTicks); every > 0 && nowTick > 0 && nowTick%every == 0 && w.snapshotSink != nil {
		select {
		case w.snapshotSink <- w.ExportSnapshot(nowTick):
		default:
			w.log.Info("snapshot sink backpressure, skipping", "tick", nowTick)
		}
	}

	w.tick.Add(1)
	w.publishMetrics(float64(time.Since(stepStart).Microseconds()) / 1000.0)
}

func (w *World) handleAttach(req AttachRequest) {
	a := w.attachAgent(req)
	if a == nil {
		if req.Resp != nil {
			close(req.Resp)
		}
		return
	}
	if req.Out != nil {
		w.clients[a.ID] = &clientState{Out: req.Out}
	}
	if req.Resp != nil {
		req.Resp <- JoinResponse{Welcome: w.welcome(a)}
	}
}

func (w *World) applyMove(a *Agent, m *protocol.MoveMsg, nowTick uint64) {
	a.Pos = model.Vec3{X: m.Pos[0], Y: m.Pos[1], Z: m.Pos[2]}
	w.pickupAt(a, nowTick)
}

func (w *World) applyStackDone(a *Agent, m *protocol.StackDoneMsg, nowTick uint64) {
	moved := max(0, m.Moved)
	delete(w.lastPass, a.ID)
	if w.stacker != nil {
		moved = w.stacker.HandleStackCompleted(a.ID, moved)
	}
	sum := w.lastPass[a.ID]
	w.audit(a.ID, "QUICK_STACK", a.Pos, sum.PassID, "", sum.Issued, fmt.Sprintf("moved=%d", moved))
	w.sendTo(a.ID, protocol.StackResultMsg{
		Type:            protocol.TypeStackResult,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		PassID:          sum.PassID,
		Moved:           moved,
		Issued:          sum.Issued,
		Containers:      sum.Containers,
		Radius:          sum.Radius,
		Inventory:       a.Inv.List(),
	})
}

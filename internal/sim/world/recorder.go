package world

import (
	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/stack/model"
)

// PassCompleted keeps the summary for the STACK_RESULT reply.
func (w *World) PassCompleted(s model.PassSummary) {
	w.lastPass[s.ActorID] = s
}

func (w *World) TransferIssued(model.PendingTransfer) {}

// TransferResolved tells the issuing client how its transfer ended.
func (w *World) TransferResolved(r model.Resolution) {
	p := r.Transfer
	msg := protocol.ReconcileMsg{
		Type:            protocol.TypeReconcile,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		TransferID:      p.ID,
		PassID:          p.PassID,
		ContainerID:     p.ContainerID,
		Item:            p.Key.String(),
		Requested:       p.Requested,
		Accepted:        r.Accepted,
		Shortfall:       r.Shortfall,
		State:           string(r.State),
		RecoveredTo:     string(r.RecoveredTo),
	}
	if err := r.Err(); err != nil {
		msg.Code = protocol.CodeFor(err)
	}
	w.sendTo(p.ActorID, msg)
}

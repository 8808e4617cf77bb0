package world

import (
	"encoding/json"
	"fmt"

	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/model"
)

type Agent struct {
	ID   string
	Name string

	// ResumeToken is a transport-level token used for reconnects.
	// It is intentionally NOT included in snapshots.
	ResumeToken string

	Pos model.Vec3
	Inv *Inventory

	online bool
}

func (a *Agent) Position() model.Vec3 { return a.Pos }

// Alive reports whether the agent is connected; offline agents keep
// their inventory but cannot receive recovered items.
func (a *Agent) Alive() bool { return a.online }

func (a *Agent) Inventory() capability.Inventory { return a.Inv }

// actorView adapts Agent to capability.Actor.
type actorView struct{ *Agent }

func (v actorView) ID() string { return v.Agent.ID }

func (w *World) newAgentID() string {
	n := w.nextAgentNum.Add(1)
	return fmt.Sprintf("A%d", n)
}

func (w *World) resumeToken(agentID string) string {
	return fmt.Sprintf("resume_%s_%s", w.cfg.ID, agentID)
}

func (w *World) joinAgent(req JoinRequest) *Agent {
	name := req.Name
	if name == "" {
		name = "agent"
	}
	a := &Agent{
		ID:     w.newAgentID(),
		Name:   name,
		Inv:    NewInventory(w.cfg.InventoryCols, w.cfg.InventoryRows, w.cfg.MaxStack),
		online: true,
	}
	a.ResumeToken = w.resumeToken(a.ID)
	for _, it := range w.cfg.StarterItems {
		w.giveStarter(a, it)
	}
	w.agents[a.ID] = a
	w.audit(a.ID, "JOIN", a.Pos, "", "", 0, name)
	return a
}

// giveStarter fills whole stacks below the hotbar, so a fresh agent has
// something to quick-stack.
func (w *World) giveStarter(a *Agent, it ItemSpec) {
	left := it.Count
	for left > 0 {
		n := min(left, w.cfg.MaxStack)
		if !a.Inv.Add(&model.ItemStack{Key: it.Key, Count: n, Shared: w.sharedFor(it.Key)}) {
			w.log.Info("starter item does not fit", "agent", a.ID, "item", it.Key.String(), "dropped", left)
			return
		}
		left -= n
	}
}

func (w *World) attachAgent(req AttachRequest) *Agent {
	for _, a := range w.agents {
		if a.ResumeToken != "" && a.ResumeToken == req.ResumeToken {
			a.online = true
			w.audit(a.ID, "ATTACH", a.Pos, "", "", 0, "")
			return a
		}
	}
	return nil
}

// searchRadius is the radius the next pass will use.
func (w *World) searchRadius() float64 {
	if r, ok := w.stacker.(radiusReporter); ok {
		return r.Radius()
	}
	return w.cfg.SearchRadius
}

func (w *World) welcome(a *Agent) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         a.ID,
		ResumeToken:     a.ResumeToken,
		WorldParams: protocol.WorldParams{
			WorldID:        w.cfg.ID,
			TickRateHz:     w.cfg.TickRateHz,
			Seed:           w.cfg.Seed,
			InventoryCols:  w.cfg.InventoryCols,
			InventoryRows:  w.cfg.InventoryRows,
			MaxStack:       w.cfg.MaxStack,
			DrawerCapacity: w.cfg.DrawerCapacity,
			SearchRadius:   w.searchRadius(),
		},
		Inventory: a.Inv.List(),
		Pos:       a.Pos.Array(),
	}
}

func (w *World) handleLeave(agentID string) {
	delete(w.clients, agentID)
	if a := w.agents[agentID]; a != nil {
		a.online = false
		w.audit(agentID, "LEAVE", a.Pos, "", "", 0, "")
	}
}

func (w *World) sendTo(agentID string, v any) {
	c := w.clients[agentID]
	if c == nil || c.Out == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	sendLatest(c.Out, b)
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

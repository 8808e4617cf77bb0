package world

import (
	"fmt"
	"math/rand"
	"sort"

	"quickstack.ai/internal/persistence/snapshot"
	"quickstack.ai/internal/sim/world/feature/entities/items"
	"quickstack.ai/internal/sim/world/logic/ids"
	"quickstack.ai/internal/stack/model"
)

// ExportSnapshot captures world state. Loop-only.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	s := snapshot.SnapshotV1{
		Header:              snapshot.Header{Version: snapshot.Version, WorldID: w.cfg.ID, Tick: nowTick},
		Seed:                w.cfg.Seed,
		TickRate:            w.cfg.TickRateHz,
		RNGDraws:            w.rngDraws,
		InventoryCols:       w.cfg.InventoryCols,
		InventoryRows:       w.cfg.InventoryRows,
		MaxStack:            w.cfg.MaxStack,
		DrawerCapacity:      w.cfg.DrawerCapacity,
		DepositLatencyTicks: w.cfg.DepositLatencyTicks,
		DepositDropPermille: w.cfg.DepositDropPermille,
		PeerSearchRadius:    w.cfg.PeerSearchRadius,
		SnapshotEveryTicks:  w.cfg.SnapshotEveryTicks,
		Counters: snapshot.CountersV1{
			NextAgent: w.nextAgentNum.Load(),
			NextItem:  w.nextItemNum.Load(),
		},
	}

	agentIDs := make([]string, 0, len(w.agents))
	for id := range w.agents {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)
	for _, id := range agentIDs {
		a := w.agents[id]
		av := snapshot.AgentV1{ID: a.ID, Name: a.Name, Pos: a.Pos.Array()}
		for _, it := range a.Inv.Items() {
			av.Slots = append(av.Slots, snapshot.SlotV1{
				X:          it.Slot.X,
				Y:          it.Slot.Y,
				Item:       it.Key.String(),
				Count:      it.Count,
				CustomData: copyMap(it.CustomData),
			})
		}
		s.Agents = append(s.Agents, av)
	}

	for _, c := range w.Containers() {
		d := c.(*Drawer)
		dv := snapshot.DrawerV1{ID: d.DrawerID, Pos: d.Pos.Array(), Amount: d.Stored, Capacity: d.Capacity, Claims: d.Claims}
		if d.Classed {
			dv.Item = d.Class.String()
		}
		s.Drawers = append(s.Drawers, dv)
	}

	for _, e := range w.ground.All() {
		s.Items = append(s.Items, snapshot.ItemEntityV1{
			EntityID:    e.ID,
			Pos:         e.Pos.Array(),
			Item:        e.Key.String(),
			Count:       e.Count,
			CreatedTick: e.CreatedTick,
			ExpiresTick: e.ExpiresTick,
		})
	}

	for _, r := range w.deposits {
		s.Deposits = append(s.Deposits, snapshot.DepositV1{
			DrawerID: r.Drawer.DrawerID,
			ActorID:  r.ActorID,
			Item:     r.Key.String(),
			Amount:   r.Amount,
			DueTick:  r.DueTick,
		})
	}
	return s
}

// ImportSnapshot replaces world state with s. Agents come back offline
// until their client re-attaches. Must be called before Run.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version %d", s.Header.Version)
	}
	if w.cfg.ID != "" && s.Header.WorldID != "" && s.Header.WorldID != w.cfg.ID {
		return fmt.Errorf("snapshot belongs to world %q, not %q", s.Header.WorldID, w.cfg.ID)
	}

	w.cfg.Seed = s.Seed
	if s.TickRate > 0 {
		w.cfg.TickRateHz = s.TickRate
	}
	w.rng = rand.New(rand.NewSource(s.Seed))
	w.rngDraws = 0
	for w.rngDraws < s.RNGDraws {
		w.draw(1000)
	}

	w.agents = map[string]*Agent{}
	w.clients = map[string]*clientState{}
	w.drawers = map[string]*Drawer{}
	w.deposits = nil
	w.ground = items.NewStore(w.newItemID)
	w.ground.Audit = func(nowTick uint64, actor, action string, pos model.Vec3, item string, count int, reason string) {
		w.audit(actor, action, pos, "", item, count, reason)
	}

	maxAgent := s.Counters.NextAgent
	for _, av := range s.Agents {
		a := &Agent{
			ID:   av.ID,
			Name: av.Name,
			Pos:  model.Vec3{X: av.Pos[0], Y: av.Pos[1], Z: av.Pos[2]},
			Inv:  NewInventory(w.cfg.InventoryCols, w.cfg.InventoryRows, w.cfg.MaxStack),
		}
		a.ResumeToken = w.resumeToken(a.ID)
		for _, sv := range av.Slots {
			key, ok := model.ParseItemKey(sv.Item)
			if !ok || sv.Count <= 0 {
				return fmt.Errorf("agent %s: bad slot item %q", av.ID, sv.Item)
			}
			st := &model.ItemStack{Key: key, Count: sv.Count, CustomData: copyMap(sv.CustomData), Shared: w.sharedFor(key), Slot: model.Slot{X: sv.X, Y: sv.Y}}
			if !a.Inv.Place(st) {
				return fmt.Errorf("agent %s: slot %d,%d out of range", av.ID, sv.X, sv.Y)
			}
		}
		w.agents[a.ID] = a
		if n, ok := ids.ParseUintAfterPrefix("A", a.ID); ok {
			maxAgent = ids.MaxU64(maxAgent, n)
		}
	}
	w.nextAgentNum.Store(maxAgent)

	for _, dv := range s.Drawers {
		spec := DrawerSpec{ID: dv.ID, Pos: model.Vec3{X: dv.Pos[0], Y: dv.Pos[1], Z: dv.Pos[2]}, Amount: dv.Amount}
		if dv.Item != "" {
			key, ok := model.ParseItemKey(dv.Item)
			if !ok {
				return fmt.Errorf("drawer %s: bad item %q", dv.ID, dv.Item)
			}
			spec.Key = key
		}
		d, err := w.AddDrawer(spec)
		if err != nil {
			return err
		}
		d.Capacity = dv.Capacity
		d.Claims = dv.Claims
	}

	maxItem := s.Counters.NextItem
	for _, iv := range s.Items {
		key, ok := model.ParseItemKey(iv.Item)
		if !ok || iv.Count <= 0 {
			continue
		}
		w.ground.Put(&items.Entity{
			ID:          iv.EntityID,
			Pos:         model.Vec3{X: iv.Pos[0], Y: iv.Pos[1], Z: iv.Pos[2]},
			Key:         key,
			Count:       iv.Count,
			Shared:      w.sharedFor(key),
			CreatedTick: iv.CreatedTick,
			ExpiresTick: iv.ExpiresTick,
		})
		if n, ok := ids.ParseUintAfterPrefix("I", iv.EntityID); ok {
			maxItem = ids.MaxU64(maxItem, n)
		}
	}
	w.nextItemNum.Store(maxItem)

	for _, dv := range s.Deposits {
		d := w.drawers[dv.DrawerID]
		key, ok := model.ParseItemKey(dv.Item)
		if d == nil || !ok {
			w.log.Info("dropping deposit for unknown drawer", "drawer", dv.DrawerID, "item", dv.Item, "amount", dv.Amount)
			continue
		}
		w.deposits = append(w.deposits, depositReq{Drawer: d, ActorID: dv.ActorID, Key: key, Amount: dv.Amount, DueTick: dv.DueTick})
	}

	// Resume on the tick after the snapshot.
	w.tick.Store(s.Header.Tick + 1)
	w.publishMetrics(0)
	return nil
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

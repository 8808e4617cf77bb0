package world

import "quickstack.ai/internal/stack/model"

type depositReq struct {
	Drawer  *Drawer
	ActorID string
	Key     model.ItemKey
	Amount  int
	DueTick uint64
}

func (w *World) enqueueDeposit(d *Drawer, actorID string, key model.ItemKey, amount int) error {
	now := w.tick.Load()
	if w.cfg.DepositDropPermille > 0 && w.draw(1000) < w.cfg.DepositDropPermille {
		w.audit(actorID, "DEPOSIT_DROPPED", d.Pos, d.DrawerID, key.String(), amount, "network")
		return nil
	}
	w.deposits = append(w.deposits, depositReq{
		Drawer:  d,
		ActorID: actorID,
		Key:     key,
		Amount:  amount,
		DueTick: now + uint64(max(0, w.cfg.DepositLatencyTicks)),
	})
	w.audit(actorID, "DEPOSIT_REQUEST", d.Pos, d.DrawerID, key.String(), amount, "")
	return nil
}

// landDeposits applies due requests in issue order.
func (w *World) landDeposits(nowTick uint64) {
	if len(w.deposits) == 0 {
		return
	}
	keep := w.deposits[:0]
	for _, r := range w.deposits {
		if r.DueTick > nowTick {
			keep = append(keep, r)
			continue
		}
		w.landDeposit(r)
	}
	for i := len(keep); i < len(w.deposits); i++ {
		w.deposits[i] = depositReq{}
	}
	w.deposits = keep
}

func (w *World) landDeposit(r depositReq) {
	d := r.Drawer
	switch {
	case d.removed:
		w.audit(r.ActorID, "DEPOSIT_REJECTED", d.Pos, d.DrawerID, r.Key.String(), r.Amount, "drawer removed")
		return
	case d.Classed && d.Class != r.Key:
		w.audit(r.ActorID, "DEPOSIT_REJECTED", d.Pos, d.DrawerID, r.Key.String(), r.Amount, "wrong item")
		return
	}
	n := min(r.Amount, d.room())
	if n <= 0 {
		w.audit(r.ActorID, "DEPOSIT_REJECTED", d.Pos, d.DrawerID, r.Key.String(), r.Amount, "full")
		return
	}
	if !d.Classed {
		d.Class = r.Key
		d.Classed = true
	}
	d.Stored += n
	reason := ""
	if n < r.Amount {
		reason = "partial"
	}
	w.audit(r.ActorID, "DEPOSIT_LANDED", d.Pos, d.DrawerID, r.Key.String(), n, reason)
}

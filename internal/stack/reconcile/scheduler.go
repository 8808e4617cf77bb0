// Package reconcile verifies optimistic deposits after a grace period and
// recovers whatever the container did not take.
package reconcile

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/model"
	"quickstack.ai/internal/stack/record"
	"quickstack.ai/internal/stack/recovery"
)

// Clock runs fn on the host's update loop once d has elapsed. Timers are
// never cancelled.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func())
}

type Config struct {
	Clock       Clock
	Delay       time.Duration
	Actors      capability.Actors
	Environment capability.Environment
	Notifier    capability.Notifier
	Recorder    record.Recorder
	Log         logr.Logger
}

type task struct {
	p      *model.PendingTransfer
	target capability.Container
	state  model.State
}

type Scheduler struct {
	clock  Clock
	delay  time.Duration
	actors capability.Actors
	sinks  recovery.Sinks
	rec    record.Recorder
	log    logr.Logger

	ledger  *Ledger
	pending map[string]*task
}

func New(cfg Config) *Scheduler {
	rec := cfg.Recorder
	if rec == nil {
		rec = record.Nop{}
	}
	delay := cfg.Delay
	if delay < 0 {
		delay = 0
	}
	return &Scheduler{
		clock:   cfg.Clock,
		delay:   delay,
		actors:  cfg.Actors,
		sinks:   recovery.Sinks{Environment: cfg.Environment, Notifier: cfg.Notifier},
		rec:     rec,
		log:     cfg.Log.WithName("reconcile"),
		ledger:  NewLedger(),
		pending: map[string]*task{},
	}
}

func (s *Scheduler) Ledger() *Ledger { return s.ledger }

func (s *Scheduler) Outstanding() int { return len(s.pending) }

func (s *Scheduler) Delay() time.Duration { return s.delay }

// Schedule arms verification of p against target. Without a clock the
// check runs immediately.
func (s *Scheduler) Schedule(p *model.PendingTransfer, target capability.Container) {
	if p == nil {
		return
	}
	t := &task{p: p, target: target, state: model.StateIssued}
	s.ledger.Add(p)
	s.pending[p.ID] = t
	if s.clock == nil {
		s.verify(t)
		return
	}
	s.clock.AfterFunc(s.delay, func() { s.verify(t) })
}

func (s *Scheduler) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *Scheduler) verify(t *task) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("%v", r), "reconcile panicked", "transfer", t.p.ID)
		}
	}()
	if t.state != model.StateIssued {
		return
	}
	t.state = model.StateVerifying
	p := t.p

	v := Evaluate(*p, observe(t.target))
	s.ledger.Resolve(p, v.Shortfall)
	delete(s.pending, p.ID)
	t.state = v.State

	res := model.Resolution{
		Transfer:    *p,
		State:       v.State,
		Observed:    v.Observed,
		Delta:       v.Delta,
		Accepted:    v.Accepted,
		Shortfall:   v.Shortfall,
		RecoveredTo: model.RecoveredNone,
		Reason:      v.Reason,
		ResolvedAt:  s.now(),
	}
	if v.Shortfall > 0 {
		var actor capability.Actor
		if s.actors != nil {
			if a, ok := s.actors.Actor(p.ActorID); ok {
				actor = a
			}
		}
		to, err := recovery.Restore(actor, p.ActorID, s.sinks, p.Backup, v.Shortfall, p.Origin)
		res.RecoveredTo = to
		switch to {
		case model.RecoveredLost:
			s.log.Error(err, "shortfall lost", "transfer", p.ID, "actor", p.ActorID, "container", p.ContainerID)
		case model.RecoveredEnvironment:
			s.log.Info("shortfall dropped into world", "transfer", p.ID, "actor", p.ActorID, "item", p.Key.String(), "count", v.Shortfall)
		}
	}

	s.log.V(1).Info("transfer reconciled",
		"transfer", p.ID,
		"container", p.ContainerID,
		"item", p.Key.String(),
		"state", string(res.State),
		"requested", p.Requested,
		"delta", res.Delta,
		"shortfall", res.Shortfall,
		"recovered_to", string(res.RecoveredTo),
	)
	s.rec.TransferResolved(res)
}

func observe(c capability.Container) (obs Observation) {
	if c == nil {
		return Observation{}
	}
	defer func() {
		if r := recover(); r != nil {
			obs = Observation{}
		}
	}()
	if !c.Valid() {
		return Observation{}
	}
	key, ok := c.Key()
	return Observation{Valid: true, Key: key, HasKey: ok && !key.IsZero(), Amount: c.Amount()}
}

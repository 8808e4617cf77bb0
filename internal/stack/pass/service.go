// Package pass runs one quick-stack pass for an actor: find containers,
// allocate stacks, issue deposits and arm their verification.
package pass

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"quickstack.ai/internal/stack/alloc"
	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/catalog"
	"quickstack.ai/internal/stack/model"
	"quickstack.ai/internal/stack/record"
	"quickstack.ai/internal/stack/reconcile"
	"quickstack.ai/internal/stack/transfer"
)

// MinPeerRadius is the smallest peer search radius that is taken over.
const MinPeerRadius = 0.05

type Options struct {
	SearchRadius       float64
	IncludeLowPriority bool
	MaxContainers      int
	PreferPeerRadius   bool
	FillEmpty          bool
}

type Config struct {
	Options   Options
	Caps      capability.Set
	Scheduler *reconcile.Scheduler
	Recorder  record.Recorder
	Log       logr.Logger
	Now       func() time.Time
	NewID     func() string
}

type Service struct {
	opts  Options
	caps  capability.Set
	sched *reconcile.Scheduler
	exec  *transfer.Executor
	rec   record.Recorder
	log   logr.Logger
	now   func() time.Time
	newID func() string
}

func New(cfg Config) *Service {
	rec := cfg.Recorder
	if rec == nil {
		rec = record.Nop{}
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = reconcile.New(reconcile.Config{
			Actors:      cfg.Caps.Actors,
			Environment: cfg.Caps.Environment,
			Notifier:    cfg.Caps.Notifier,
			Recorder:    rec,
			Log:         cfg.Log,
		})
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	opts := cfg.Options
	if opts.MaxContainers < 1 {
		opts.MaxContainers = 1
	}
	if opts.SearchRadius < 0 {
		opts.SearchRadius = 0
	}
	return &Service{
		opts:  opts,
		caps:  cfg.Caps,
		sched: sched,
		exec: transfer.NewExecutor(transfer.Config{
			Baseline:    sched.Ledger(),
			Environment: cfg.Caps.Environment,
			Notifier:    cfg.Caps.Notifier,
			Now:         now,
			NewID:       newID,
			Log:         cfg.Log,
		}),
		rec:   rec,
		log:   cfg.Log.WithName("pass"),
		now:   now,
		newID: newID,
	}
}

func (s *Service) Scheduler() *reconcile.Scheduler { return s.sched }

func (s *Service) Options() Options { return s.opts }

// HandleStackCompleted runs after the peer stacking component finished its
// own pass and moved stacks. It returns moved plus the number of deposits
// this pass issued.
func (s *Service) HandleStackCompleted(actorID string, moved int) int {
	sum, err := s.Run(actorID)
	if err != nil {
		s.log.V(1).Info("pass skipped", "actor", actorID, "reason", err.Error())
		return moved
	}
	return moved + sum.Issued
}

// Run executes a pass and returns its summary. A pass that finds nothing
// to do is not an error.
func (s *Service) Run(actorID string) (sum model.PassSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
			s.log.Error(err, "pass aborted", "actor", actorID, "issued", sum.Issued)
		}
	}()

	if !s.caps.Ready() {
		return sum, model.ErrCapabilityUnavailable
	}
	actor, ok := s.caps.Actors.Actor(actorID)
	if !ok || actor == nil || !actor.Alive() {
		return sum, fmt.Errorf("actor %q: %w", actorID, model.ErrCapabilityUnavailable)
	}
	inv := actor.Inventory()
	if inv == nil {
		return sum, fmt.Errorf("actor %q inventory: %w", actorID, model.ErrCapabilityUnavailable)
	}

	sum = model.PassSummary{
		PassID:    s.newID(),
		ActorID:   actorID,
		Radius:    s.Radius(),
		StartedAt: s.now(),
	}

	found := catalog.FindCandidates(s.caps.Registry, actor.Position(), sum.Radius)
	sum.Containers = len(found)
	containers := catalog.Nearest(found, s.opts.MaxContainers)
	if len(containers) == 0 {
		s.finish(sum)
		return sum, nil
	}

	items := s.candidates(inv)
	sum.Candidates = len(items)
	decisions := alloc.Allocate(items, containers, alloc.Options{FillEmpty: s.opts.FillEmpty})
	sum.Decisions = len(decisions)

	for _, d := range decisions {
		p, err := s.exec.Execute(sum.PassID, actor, inv, d.Item, d.Target)
		if err != nil {
			sum.Skipped++
			s.log.V(1).Info("transfer skipped", "pass", sum.PassID, "container", d.Target.ID(), "item", d.Item.Key.String(), "reason", err.Error())
			continue
		}
		sum.Issued++
		s.sched.Schedule(p, d.Target.Handle)
		s.recordIssued(*p)
	}
	s.finish(sum)
	return sum, nil
}

// recordIssued runs after Schedule: the stack is already out of the
// inventory, so a failing observer must not stop the pass.
func (s *Service) recordIssued(p model.PendingTransfer) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("%v", r), "recorder panicked", "transfer", p.ID, "container", p.ContainerID)
		}
	}()
	s.rec.TransferIssued(p)
}

func (s *Service) finish(sum model.PassSummary) {
	s.log.V(1).Info("pass complete",
		"pass", sum.PassID,
		"actor", sum.ActorID,
		"radius", sum.Radius,
		"containers", sum.Containers,
		"candidates", sum.Candidates,
		"issued", sum.Issued,
		"skipped", sum.Skipped,
	)
	s.rec.PassCompleted(sum)
}

// Radius is the search radius a pass uses right now.
func (s *Service) Radius() float64 {
	if s.opts.PreferPeerRadius && s.caps.Peer != nil {
		if r, ok := peerRadius(s.caps.Peer); ok && r > MinPeerRadius {
			return r
		}
	}
	return s.opts.SearchRadius
}

func peerRadius(p capability.PeerConfig) (r float64, ok bool) {
	defer func() {
		if recover() != nil {
			r, ok = 0, false
		}
	}()
	return p.SearchRadius()
}

func (s *Service) candidates(inv capability.Inventory) []*model.ItemStack {
	all := inv.Items()
	out := make([]*model.ItemStack, 0, len(all))
	for _, it := range all {
		if it == nil || it.Count <= 0 || it.HasCustomData() || it.Key.Kind == "" {
			continue
		}
		if !s.opts.IncludeLowPriority && s.caps.Slots != nil && s.caps.Slots.LowPriority(it) {
			continue
		}
		if !inv.Contains(it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

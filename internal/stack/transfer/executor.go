// Package transfer moves one stack out of an inventory and asks a container
// to take it. Acceptance is not known when Execute returns.
package transfer

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/catalog"
	"quickstack.ai/internal/stack/model"
	"quickstack.ai/internal/stack/recovery"
)

// Baseliner supplies the amount a new transfer's delta is measured from.
type Baseliner interface {
	Baseline(containerID string, observed int) int
}

type Config struct {
	Baseline    Baseliner
	Environment capability.Environment
	Notifier    capability.Notifier
	Now         func() time.Time
	NewID       func() string
	Log         logr.Logger
}

type Executor struct {
	baseline Baseliner
	sinks    recovery.Sinks
	now      func() time.Time
	newID    func() string
	log      logr.Logger
}

func NewExecutor(cfg Config) *Executor {
	e := &Executor{
		baseline: cfg.Baseline,
		sinks:    recovery.Sinks{Environment: cfg.Environment, Notifier: cfg.Notifier},
		now:      cfg.Now,
		newID:    cfg.NewID,
		log:      cfg.Log.WithName("transfer"),
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Execute issues the deposit of item into target. On success the stack has
// left inv and the returned transfer must be scheduled for verification.
// On error either nothing was touched (ErrInvalidTarget, ErrStaleItem) or
// the stack was already put back (ErrDepositNotIssued).
func (e *Executor) Execute(passID string, actor capability.Actor, inv capability.Inventory, item *model.ItemStack, target catalog.Candidate) (*model.PendingTransfer, error) {
	if actor == nil || inv == nil {
		return nil, model.ErrCapabilityUnavailable
	}
	c := target.Handle
	if c == nil || !c.Valid() {
		return nil, fmt.Errorf("container %s: %w", target.ID(), model.ErrInvalidTarget)
	}
	if item == nil || item.Count <= 0 || !inv.Contains(item) {
		return nil, model.ErrStaleItem
	}

	if ac, ok := c.(capability.AuthorityClaimer); ok {
		e.claimAuthority(c.ID(), ac)
	}

	observed := c.Amount()
	before := observed
	if e.baseline != nil {
		before = e.baseline.Baseline(c.ID(), observed)
	}
	p := &model.PendingTransfer{
		ID:          e.newID(),
		PassID:      passID,
		ActorID:     actor.ID(),
		ContainerID: c.ID(),
		Key:         item.Key,
		Requested:   item.Count,
		Before:      before,
		Backup:      model.BackupOf(item),
		Origin:      actor.Position(),
		IssuedAt:    e.now(),
	}

	if !inv.Remove(item) {
		return nil, model.ErrStaleItem
	}
	if err := deposit(c, actor, p); err != nil {
		to, rerr := recovery.Restore(actor, p.ActorID, e.sinks, p.Backup, p.Requested, p.Origin)
		if to == model.RecoveredLost {
			e.log.Error(rerr, "deposit failed and stack could not be restored", "container", p.ContainerID, "item", p.Key.String(), "count", p.Requested)
		}
		return nil, fmt.Errorf("container %s: %w: %v", p.ContainerID, model.ErrDepositNotIssued, err)
	}
	e.log.V(1).Info("deposit issued", "transfer", p.ID, "container", p.ContainerID, "item", p.Key.String(), "count", p.Requested, "before", p.Before)
	return p, nil
}

// claimAuthority is best effort: the deposit is issued either way.
func (e *Executor) claimAuthority(containerID string, ac capability.AuthorityClaimer) {
	defer func() {
		if r := recover(); r != nil {
			e.log.V(1).Info("authority claim panicked", "container", containerID, "panic", fmt.Sprint(r))
		}
	}()
	ac.ClaimAuthority()
}

func deposit(c capability.Container, actor capability.Actor, p *model.PendingTransfer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("deposit panicked: %v", r)
		}
	}()
	return c.Deposit(actor, p.Key.Kind, p.Requested, p.Key.Quality)
}

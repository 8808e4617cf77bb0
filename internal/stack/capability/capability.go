// Package capability declares what the quick-stack core needs from its host.
// Every capability is optional: a nil value means the host (or the peer
// component behind it) is not present, and the core degrades to a no-op.
package capability

import "quickstack.ai/internal/stack/model"

// Inventory is an actor's source inventory. Stacks are identified by pointer.
type Inventory interface {
	Items() []*model.ItemStack
	Remove(s *model.ItemStack) bool
	// Add merges or places s; it reports false when the inventory cannot
	// take the whole stack, in which case nothing is changed.
	Add(s *model.ItemStack) bool
	Contains(s *model.ItemStack) bool
}

type Actor interface {
	ID() string
	Position() model.Vec3
	Alive() bool
	Inventory() Inventory
}

type Actors interface {
	Actor(id string) (Actor, bool)
}

// Container is a handle to a remote drawer. It is a weak reference: Valid
// must be checked before every use.
type Container interface {
	ID() string
	Position() model.Vec3
	Valid() bool
	// Key returns the container's classification, ok=false when unset.
	Key() (model.ItemKey, bool)
	Amount() int
	// Deposit requests that the container take amount units. It returns once
	// the request is sent; acceptance is never reported.
	Deposit(actor Actor, kind string, amount, quality int) error
}

// AuthorityClaimer is implemented by containers that need mutation
// authority claimed before a write.
type AuthorityClaimer interface {
	ClaimAuthority()
}

type Registry interface {
	Containers() []Container
}

// PeerConfig exposes the peer stacking component's own search radius.
type PeerConfig interface {
	SearchRadius() (float64, bool)
}

// SlotClassifier marks stacks in low-priority slots (the hotbar).
type SlotClassifier interface {
	LowPriority(s *model.ItemStack) bool
}

// Environment receives items that nothing else could take.
type Environment interface {
	Emit(pos model.Vec3, s *model.ItemStack) error
}

type Notifier interface {
	Notify(actorID, message string)
}

// Set is resolved once by the host and handed to the core at construction.
type Set struct {
	Actors      Actors
	Registry    Registry
	Peer        PeerConfig
	Slots       SlotClassifier
	Environment Environment
	Notifier    Notifier
}

func (s Set) Ready() bool { return s.Actors != nil && s.Registry != nil }

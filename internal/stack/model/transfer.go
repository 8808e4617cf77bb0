package model

import (
	"fmt"
	"time"
)

// PendingTransfer is an issued deposit awaiting verification.
// Before is the container amount this transfer's delta is measured against;
// the reconcile ledger may lower it when an earlier transfer to the same
// container comes up short.
type PendingTransfer struct {
	ID          string
	PassID      string
	ActorID     string
	ContainerID string
	Key         ItemKey
	Requested   int
	Before      int
	Backup      Backup
	Origin      Vec3
	IssuedAt    time.Time
}

type State string

const (
	StateIssued    State = "ISSUED"
	StateVerifying State = "VERIFYING"
	StateConfirmed State = "CONFIRMED"
	StatePartial   State = "PARTIAL"
	StateFailed    State = "FAILED"
)

type RecoveryTarget string

const (
	RecoveredNone        RecoveryTarget = "NONE"
	RecoveredInventory   RecoveryTarget = "INVENTORY"
	RecoveredEnvironment RecoveryTarget = "ENVIRONMENT"
	RecoveredLost        RecoveryTarget = "LOST"
)

// Resolution is the terminal record of one reconciliation.
type Resolution struct {
	Transfer    PendingTransfer
	State       State
	Observed    int
	Delta       int
	Accepted    int
	Shortfall   int
	RecoveredTo RecoveryTarget
	Reason      string
	ResolvedAt  time.Time
}

func (r Resolution) Err() error {
	var err error
	switch r.State {
	case StateFailed:
		err = ErrVerificationFailed
	case StatePartial:
		err = ErrVerificationPartial
	default:
		return nil
	}
	switch r.RecoveredTo {
	case RecoveredEnvironment:
		return fmt.Errorf("%w: %w", err, ErrRecoveryOverflow)
	case RecoveredLost:
		return fmt.Errorf("%w: %w", err, ErrRecoveryLost)
	}
	return err
}

// PassSummary describes one completed pass.
type PassSummary struct {
	PassID     string
	ActorID    string
	Radius     float64
	Containers int
	Candidates int
	Decisions  int
	Issued     int
	Skipped    int
	StartedAt  time.Time
}

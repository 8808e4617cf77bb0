package model

import "errors"

var (
	// ErrCapabilityUnavailable means an optional host capability is missing.
	// A pass that hits it does nothing.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	ErrInvalidTarget    = errors.New("invalid target container")
	ErrStaleItem        = errors.New("item no longer in source inventory")
	ErrDepositNotIssued = errors.New("deposit not issued")

	ErrVerificationFailed  = errors.New("verification failed")
	ErrVerificationPartial = errors.New("verification partial")

	ErrRecoveryOverflow = errors.New("source inventory full; recovered items emitted into world")
	ErrRecoveryLost     = errors.New("recovered items could not be placed")
)

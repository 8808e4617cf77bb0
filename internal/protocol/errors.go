package protocol

import (
	"errors"

	"quickstack.ai/internal/stack/model"
)

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrWorldBusy       = "E_WORLD_BUSY"

	// Quick-stack outcomes.
	ErrBadRequest            = "E_BAD_REQUEST"
	ErrCapabilityUnavailable = "E_CAPABILITY_UNAVAILABLE"
	ErrInvalidTarget         = "E_INVALID_TARGET"
	ErrStale                 = "E_STALE"
	ErrDepositNotIssued      = "E_DEPOSIT_NOT_ISSUED"
	ErrVerificationFailed    = "E_VERIFICATION_FAILED"
	ErrVerificationPartial   = "E_VERIFICATION_PARTIAL"
	ErrRecoveryOverflow      = "E_RECOVERY_OVERFLOW"
	ErrRecoveryLost          = "E_RECOVERY_LOST"
	ErrInternal              = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:       {},
	ErrWorldBusy:             {},
	ErrBadRequest:            {},
	ErrCapabilityUnavailable: {},
	ErrInvalidTarget:         {},
	ErrStale:                 {},
	ErrDepositNotIssued:      {},
	ErrVerificationFailed:    {},
	ErrVerificationPartial:   {},
	ErrRecoveryOverflow:      {},
	ErrRecoveryLost:          {},
	ErrInternal:              {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// codeOrder matters: recovery outcomes are reported ahead of the
// verification state they are wrapped with.
var codeOrder = []struct {
	err  error
	code string
}{
	{model.ErrRecoveryLost, ErrRecoveryLost},
	{model.ErrRecoveryOverflow, ErrRecoveryOverflow},
	{model.ErrVerificationPartial, ErrVerificationPartial},
	{model.ErrVerificationFailed, ErrVerificationFailed},
	{model.ErrDepositNotIssued, ErrDepositNotIssued},
	{model.ErrStaleItem, ErrStale},
	{model.ErrInvalidTarget, ErrInvalidTarget},
	{model.ErrCapabilityUnavailable, ErrCapabilityUnavailable},
}

// CodeFor maps a core error to its wire code. nil maps to "".
func CodeFor(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codeOrder {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ErrInternal
}

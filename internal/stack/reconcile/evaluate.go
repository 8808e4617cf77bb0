package reconcile

import (
	"fmt"

	"quickstack.ai/internal/stack/model"
)

// Observation is what the container looked like when the delay elapsed.
type Observation struct {
	Valid  bool
	Key    model.ItemKey
	HasKey bool
	Amount int
}

type Verdict struct {
	State     model.State
	Observed  int
	Delta     int
	Accepted  int
	Shortfall int
	Reason    string
}

// Evaluate decides how much of p was accepted, trusting only obs.
func Evaluate(p model.PendingTransfer, obs Observation) Verdict {
	if !obs.Valid {
		return Verdict{State: model.StateFailed, Shortfall: p.Requested, Reason: "container gone"}
	}
	delta := obs.Amount - p.Before
	v := evaluateValid(p, obs, delta)
	v.Observed = obs.Amount
	return v
}

func evaluateValid(p model.PendingTransfer, obs Observation, delta int) Verdict {
	if !obs.HasKey || obs.Key != p.Key {
		return Verdict{
			State:     model.StateFailed,
			Delta:     delta,
			Shortfall: p.Requested,
			Reason:    fmt.Sprintf("classification %s, want %s", describeKey(obs), p.Key),
		}
	}
	switch {
	case delta <= 0:
		return Verdict{State: model.StateFailed, Delta: delta, Shortfall: p.Requested, Reason: "no change observed"}
	case delta < p.Requested:
		return Verdict{State: model.StatePartial, Delta: delta, Accepted: delta, Shortfall: p.Requested - delta, Reason: "partial"}
	default:
		return Verdict{State: model.StateConfirmed, Delta: delta, Accepted: p.Requested}
	}
}

func describeKey(obs Observation) string {
	if !obs.HasKey {
		return "unset"
	}
	return obs.Key.String()
}

package reconcile

import "quickstack.ai/internal/stack/model"

// Ledger tracks outstanding transfers per container in issue order so that
// several deposits into one container can be told apart.
//
// A new transfer's baseline is the larger of the observed amount and the
// amount the previous outstanding transfer expects to leave behind. When a
// transfer resolves short, later transfers on the same container are
// rebased down by the shortfall.
//
// Not safe for concurrent use; it belongs to the host's update loop.
type Ledger struct {
	byContainer map[string][]*model.PendingTransfer
}

func NewLedger() *Ledger {
	return &Ledger{byContainer: map[string][]*model.PendingTransfer{}}
}

func (l *Ledger) Baseline(containerID string, observed int) int {
	q := l.byContainer[containerID]
	if len(q) == 0 {
		return observed
	}
	last := q[len(q)-1]
	return max(observed, last.Before+last.Requested)
}

func (l *Ledger) Add(p *model.PendingTransfer) {
	if p == nil {
		return
	}
	l.byContainer[p.ContainerID] = append(l.byContainer[p.ContainerID], p)
}

func (l *Ledger) Resolve(p *model.PendingTransfer, shortfall int) {
	if p == nil {
		return
	}
	q := l.byContainer[p.ContainerID]
	idx := -1
	for i, it := range q {
		if it == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if shortfall > 0 {
		for _, later := range q[idx+1:] {
			later.Before -= shortfall
		}
	}
	q = append(q[:idx], q[idx+1:]...)
	if len(q) == 0 {
		delete(l.byContainer, p.ContainerID)
		return
	}
	l.byContainer[p.ContainerID] = q
}

func (l *Ledger) Outstanding(containerID string) int { return len(l.byContainer[containerID]) }

func (l *Ledger) Len() int {
	n := 0
	for _, q := range l.byContainer {
		n += len(q)
	}
	return n
}

// Package record fans pass and transfer events out to observers
// (audit log, sqlite index, metrics, connected clients).
package record

import "quickstack.ai/internal/stack/model"

type Recorder interface {
	PassCompleted(s model.PassSummary)
	TransferIssued(p model.PendingTransfer)
	TransferResolved(r model.Resolution)
}

type Multi []Recorder

func (m Multi) PassCompleted(s model.PassSummary) {
	for _, r := range m {
		if r != nil {
			r.PassCompleted(s)
		}
	}
}

func (m Multi) TransferIssued(p model.PendingTransfer) {
	for _, r := range m {
		if r != nil {
			r.TransferIssued(p)
		}
	}
}

func (m Multi) TransferResolved(res model.Resolution) {
	for _, r := range m {
		if r != nil {
			r.TransferResolved(res)
		}
	}
}

type Nop struct{}

func (Nop) PassCompleted(model.PassSummary)     {}
func (Nop) TransferIssued(model.PendingTransfer) {}
func (Nop) TransferResolved(model.Resolution)    {}

// Funcs adapts plain functions; nil fields are skipped.
type Funcs struct {
	OnPass     func(model.PassSummary)
	OnIssued   func(model.PendingTransfer)
	OnResolved func(model.Resolution)
}

func (f Funcs) PassCompleted(s model.PassSummary) {
	if f.OnPass != nil {
		f.OnPass(s)
	}
}

func (f Funcs) TransferIssued(p model.PendingTransfer) {
	if f.OnIssued != nil {
		f.OnIssued(p)
	}
}

func (f Funcs) TransferResolved(r model.Resolution) {
	if f.OnResolved != nil {
		f.OnResolved(r)
	}
}

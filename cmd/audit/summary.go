package main

import (
	"fmt"
	"io"
	"sort"

	persistlog "quickstack.ai/internal/persistence/log"
	"quickstack.ai/internal/stack/model"
)

type transferSummary struct {
	Passes int
	Issued int

	ByState     map[string]int
	ByRecovered map[string]int

	Requested int
	Accepted  int
	Shortfall int
	// Lost is the shortfall that could not be returned anywhere.
	Lost int

	// Outstanding counts transfers issued but never resolved in the logs.
	Outstanding int
}

func summarizeTransfers(events []persistlog.TransferEvent) transferSummary {
	s := transferSummary{ByState: map[string]int{}, ByRecovered: map[string]int{}}
	open := map[string]bool{}
	for _, ev := range events {
		switch ev.Event {
		case persistlog.EventPass:
			s.Passes++
		case persistlog.EventIssued:
			s.Issued++
			s.Requested += ev.Requested
			open[ev.TransferID] = true
		case persistlog.EventResolved:
			delete(open, ev.TransferID)
			s.ByState[ev.State]++
			if ev.RecoveredTo != "" {
				s.ByRecovered[ev.RecoveredTo]++
			}
			s.Accepted += ev.Accepted
			s.Shortfall += ev.Shortfall
			if ev.RecoveredTo == string(model.RecoveredLost) {
				s.Lost += ev.Shortfall
			}
		}
	}
	s.Outstanding = len(open)
	return s
}

func (s transferSummary) print(out io.Writer) {
	fmt.Fprintf(out, "passes=%d issued=%d outstanding=%d\n", s.Passes, s.Issued, s.Outstanding)
	fmt.Fprintf(out, "units requested=%d accepted=%d shortfall=%d lost=%d\n", s.Requested, s.Accepted, s.Shortfall, s.Lost)
	printCounts(out, "state", s.ByState)
	printCounts(out, "recovered_to", s.ByRecovered)
}

func printCounts(out io.Writer, label string, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s %s=%d\n", label, k, m[k])
	}
}

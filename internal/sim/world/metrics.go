package world

// WorldMetrics is a read-only view of world runtime signals. It is
// published by the loop goroutine and read from HTTP handlers.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Agents          int `json:"agents"`
	Online          int `json:"online"`
	Clients         int `json:"clients"`
	Drawers         int `json:"drawers"`
	GroundItems     int `json:"ground_items"`
	PendingDeposits int `json:"pending_deposits"`
	Timers          int `json:"timers"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox  int `json:"inbox"`
	Join   int `json:"join"`
	Leave  int `json:"leave"`
	Attach int `json:"attach"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m := w.metrics.Load()
	if m == nil {
		return WorldMetrics{}
	}
	return *m
}

func (w *World) publishMetrics(stepMS float64) {
	online := 0
	for _, a := range w.agents {
		if a.online {
			online++
		}
	}
	w.metrics.Store(&WorldMetrics{
		Tick:            w.tick.Load(),
		Agents:          len(w.agents),
		Online:          online,
		Clients:         len(w.clients),
		Drawers:         len(w.drawers),
		GroundItems:     w.ground.Len(),
		PendingDeposits: len(w.deposits),
		Timers:          w.timers.Len(),
		QueueDepths: QueueDepths{
			Inbox:  len(w.inbox),
			Join:   len(w.join),
			Leave:  len(w.leave),
			Attach: len(w.attach),
		},
		StepMS: stepMS,
	})
}

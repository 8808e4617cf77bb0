package world

import (
	"context"
	"errors"
)

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the loop to export a snapshot to the sink at the
// next tick boundary.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	if w == nil {
		return 0, errors.New("nil world")
	}
	resp := make(chan adminSnapshotResp, 1)
	select {
	case w.admin <- adminSnapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	// The tick counter already advanced; snapshot the last processed tick.
	cur := w.tick.Load()
	snapTick := uint64(0)
	if cur > 0 {
		snapTick = cur - 1
	}

	errStr := ""
	if w.snapshotSink == nil {
		errStr = "snapshot sink not configured"
	} else {
		select {
		case w.snapshotSink <- w.ExportSnapshot(snapTick):
		default:
			errStr = "snapshot sink backpressure"
		}
	}

	for _, req := range reqs {
		if req.Resp == nil {
			continue
		}
		req.Resp <- adminSnapshotResp{Tick: snapTick, Err: errStr}
	}
}

package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quickstack.ai/internal/persistence/indexdb"
	"quickstack.ai/internal/sim/world"
	"quickstack.ai/internal/transport/ws"
)

func newMux(w *world.World, reg *prometheus.Registry, opts serverOptions, log logr.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/ws", ws.NewServer(w, log).Handler())

	if !opts.EnableAdminHTTP {
		log.Info("admin endpoints disabled")
		return mux
	}
	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{
			WorldID: w.ID(),
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := w.RequestSnapshot(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	})
	return mux
}

// registerWorldMetrics exposes loop and index signals next to the pass
// recorder's series. Values are read at scrape time.
func registerWorldMetrics(reg prometheus.Registerer, w *world.World, idx *indexdb.SQLiteIndex) {
	labels := prometheus.Labels{"world": w.ID()}
	gauge := func(name, help string, fn func(m world.WorldMetrics) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "quickstack", Subsystem: "world", Name: name, Help: help, ConstLabels: labels,
		}, func() float64 { return fn(w.Metrics()) })
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		gauge("tick", "Current world tick.", func(m world.WorldMetrics) float64 { return float64(m.Tick) }),
		gauge("agents", "Known agents.", func(m world.WorldMetrics) float64 { return float64(m.Agents) }),
		gauge("agents_online", "Agents with a live connection.", func(m world.WorldMetrics) float64 { return float64(m.Online) }),
		gauge("drawers", "Placed drawers.", func(m world.WorldMetrics) float64 { return float64(m.Drawers) }),
		gauge("ground_items", "Item entities on the ground.", func(m world.WorldMetrics) float64 { return float64(m.GroundItems) }),
		gauge("pending_deposits", "Deposits not yet landed.", func(m world.WorldMetrics) float64 { return float64(m.PendingDeposits) }),
		gauge("timers", "Armed loop timers.", func(m world.WorldMetrics) float64 { return float64(m.Timers) }),
		gauge("inbox_depth", "Commands waiting for the loop.", func(m world.WorldMetrics) float64 { return float64(m.QueueDepths.Inbox) }),
		gauge("step_ms", "Duration of the last step.", func(m world.WorldMetrics) float64 { return m.StepMS }),
	)
	if idx != nil {
		stat := func(name, help string, fn func(s indexdb.Stats) float64) prometheus.Collector {
			return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "quickstack", Subsystem: "index", Name: name, Help: help, ConstLabels: labels,
			}, func() float64 { return fn(idx.Stats()) })
		}
		reg.MustRegister(
			stat("queue_depth", "Index writes waiting to be applied.", func(s indexdb.Stats) float64 { return float64(s.QueueDepth) }),
			stat("dropped_writes", "Index writes dropped because the queue was full.", func(s indexdb.Stats) float64 {
				return float64(s.DropPassTotal + s.DropIssuedTotal + s.DropResolvedTotal + s.DropAuditTotal + s.DropSnapshotTotal + s.DropSnapshotStateTotal)
			}),
			stat("write_errors", "Index writes that failed.", func(s indexdb.Stats) float64 { return float64(s.WriteErrorTotal) }),
		)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"quickstack.ai/internal/config"
	"quickstack.ai/internal/logging"
	"quickstack.ai/internal/persistence/indexdb"
	persistlog "quickstack.ai/internal/persistence/log"
	"quickstack.ai/internal/persistence/snapshot"
	"quickstack.ai/internal/sim/world"
	"quickstack.ai/internal/stack/metrics"
	"quickstack.ai/internal/stack/model"
	"quickstack.ai/internal/stack/pass"
	"quickstack.ai/internal/stack/reconcile"
	"quickstack.ai/internal/stack/record"
)

func runServer(ctx context.Context, opts serverOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, zl, err := logging.Build(logging.Level(opts.LogLevel, opts.Debug || cfg.QuickStack.DebugLogging))
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	worldDir := filepath.Join(opts.DataDir, "worlds", opts.WorldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		return fmt.Errorf("mkdir world dir: %w", err)
	}

	var idx *indexdb.SQLiteIndex
	if !opts.DisableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
		if err != nil {
			return fmt.Errorf("open index db: %w", err)
		}
		defer idx.Close()
	}

	w, err := world.New(worldConfig(opts.WorldID, cfg), log)
	if err != nil {
		return fmt.Errorf("world: %w", err)
	}
	if err := resume(w, opts, worldDir, log); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	auditLog := persistlog.NewAuditLogger(worldDir)
	defer auditLog.Close()
	transferLog := persistlog.NewTransferLogger(worldDir, func(err error) {
		log.Error(err, "transfer log write failed")
	})
	defer transferLog.Close()

	recorders := record.Multi{metrics.New(reg), transferLog, w}
	if idx != nil {
		recorders = append(recorders, idx)
		w.SetAuditLogger(multiAuditLogger{a: auditLog, b: idx})
	} else {
		w.SetAuditLogger(auditLog)
	}
	w.SetStackHandler(wirePass(w, cfg.QuickStack, recorders, log))
	registerWorldMetrics(reg, w, idx)

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		writeSnapshots(snapCh, worldDir, idx, log)
	}()

	worldCtx, stopWorld := context.WithCancel(context.Background())
	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(worldCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error(err, "world stopped")
		}
	}()

	srv := &http.Server{
		Addr:              opts.Addr,
		Handler:           newMux(w, reg, opts, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", opts.Addr, "world", opts.WorldID, "tick", w.CurrentTick())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			stopWorld()
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.QuickStack.VerificationDelay+5*time.Second)
	defer cancelDrain()
	if err := drain(drainCtx, w, 50*time.Millisecond); err != nil {
		log.Error(err, "shutting down with unverified transfers")
	}
	snapCtx, cancelSnap := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelSnap()
	if tick, err := w.RequestSnapshot(snapCtx); err != nil {
		log.Error(err, "final snapshot")
	} else {
		log.Info("final snapshot requested", "tick", tick)
	}
	stopWorld()
	<-worldDone
	close(snapCh)
	<-snapDone
	return nil
}

// drain waits for queued deposits and verification timers to finish so the
// final snapshot holds settled inventories and drawers.
func drain(ctx context.Context, w *world.World, poll time.Duration) error {
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		m := w.Metrics()
		if m.Timers == 0 && m.PendingDeposits == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%d timers and %d deposits pending: %w", m.Timers, m.PendingDeposits, ctx.Err())
		case <-t.C:
		}
	}
}

func wirePass(w *world.World, q config.QuickStack, rec record.Recorder, log logr.Logger) *pass.Service {
	caps := w.Capabilities()
	sched := reconcile.New(reconcile.Config{
		Clock:       w,
		Delay:       q.VerificationDelay,
		Actors:      caps.Actors,
		Environment: caps.Environment,
		Notifier:    caps.Notifier,
		Recorder:    rec,
		Log:         log,
	})
	return pass.New(pass.Config{
		Options: pass.Options{
			SearchRadius:       q.SearchRadius,
			IncludeLowPriority: q.IncludeLowPrioritySlots,
			MaxContainers:      q.MaxContainers,
			PreferPeerRadius:   q.PreferPeerRadius,
			FillEmpty:          q.FillEmptyContainers,
		},
		Caps:      caps,
		Scheduler: sched,
		Recorder:  rec,
		Log:       log,
		Now:       w.Now,
	})
}

// resume imports an explicit snapshot, or the newest one on disk when
// allowed. A missing snapshot directory is a fresh world.
func resume(w *world.World, opts serverOptions, worldDir string, log logr.Logger) error {
	path := opts.SnapshotPath
	if path == "" && opts.LoadLatestSnapshot {
		latest, err := snapshot.Latest(filepath.Join(worldDir, "snapshots"))
		if err != nil {
			return fmt.Errorf("find latest snapshot: %w", err)
		}
		path = latest
	}
	if path == "" {
		return nil
	}
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	log.Info("resumed from snapshot", "path", filepath.Base(path), "tick", w.CurrentTick())
	return nil
}

func writeSnapshots(ch <-chan snapshot.SnapshotV1, worldDir string, idx *indexdb.SQLiteIndex, log logr.Logger) {
	for snap := range ch {
		path := filepath.Join(worldDir, "snapshots", snapshot.FileName(snap.Header.Tick))
		if err := snapshot.WriteSnapshot(path, snap); err != nil {
			log.Error(err, "snapshot write", "tick", snap.Header.Tick)
			continue
		}
		log.V(1).Info("snapshot written", "path", path)
		if idx != nil {
			idx.RecordSnapshot(path, snap)
			idx.RecordSnapshotState(snap)
		}
	}
}

func worldConfig(id string, cfg config.Config) world.WorldConfig {
	c := cfg.World
	wc := world.WorldConfig{
		ID:                  id,
		TickRateHz:          c.TickRateHz,
		Seed:                c.Seed,
		InventoryCols:       c.InventoryCols,
		InventoryRows:       c.InventoryRows,
		MaxStack:            c.MaxStack,
		DrawerCapacity:      c.DrawerCapacity,
		DepositLatencyTicks: c.DepositLatencyTicks,
		DepositDropPermille: c.DepositDropPermille,
		PeerSearchRadius:    c.PeerSearchRadius,
		SnapshotEveryTicks:  c.SnapshotEveryTicks,
		SearchRadius:        cfg.QuickStack.SearchRadius,
		Epoch:               time.Now().UTC(),
	}
	for _, it := range c.StarterItems {
		wc.StarterItems = append(wc.StarterItems, world.ItemSpec{
			Key:   model.ItemKey{Kind: it.Kind, Quality: it.Quality},
			Count: it.Count,
		})
	}
	for _, d := range c.Drawers {
		spec := world.DrawerSpec{
			ID:     d.ID,
			Pos:    model.Vec3{X: d.X, Y: d.Y, Z: d.Z},
			Amount: d.Amount,
		}
		if d.Kind != "" {
			spec.Key = model.ItemKey{Kind: d.Kind, Quality: d.Quality}
		}
		wc.Drawers = append(wc.Drawers, spec)
	}
	return wc
}

type multiAuditLogger struct {
	a world.AuditLogger
	b world.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry world.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}

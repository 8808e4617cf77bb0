package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"quickstack.ai/internal/persistence/snapshot"
	"quickstack.ai/internal/sim/world"
	"quickstack.ai/internal/stack/model"
)

// SQLiteIndex is a queryable secondary index of passes, transfers and
// audits. Writes are queued and applied by one goroutine; when the queue
// is full the write is dropped and counted. The JSONL logs remain the
// source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropPass          atomic.Uint64
	dropIssued        atomic.Uint64
	dropResolved      atomic.Uint64
	dropAudit         atomic.Uint64
	dropSnapshot      atomic.Uint64
	dropSnapshotState atomic.Uint64
	writeErrors       atomic.Uint64
}

type reqKind int

const (
	reqPass reqKind = iota + 1
	reqIssued
	reqResolved
	reqAudit
	reqSnapshot
	reqSnapshotState
)

type req struct {
	kind reqKind

	pass     model.PassSummary
	issued   model.PendingTransfer
	resolved model.Resolution
	audit    world.AuditEntry
	snapshot snapshotRow
	state    []snapshot.DrawerV1
	tick     uint64
}

type snapshotRow struct {
	Tick     uint64
	Path     string
	Seed     int64
	Agents   int
	Drawers  int
	Items    int
	Deposits int
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int

	DropPassTotal          uint64
	DropIssuedTotal        uint64
	DropResolvedTotal      uint64
	DropAuditTotal         uint64
	DropSnapshotTotal      uint64
	DropSnapshotStateTotal uint64
	WriteErrorTotal        uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS passes (
			pass_id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			started_at TEXT NOT NULL,
			radius REAL NOT NULL,
			containers INTEGER NOT NULL,
			candidates INTEGER NOT NULL,
			decisions INTEGER NOT NULL,
			issued INTEGER NOT NULL,
			skipped INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_passes_actor ON passes(actor_id, started_at);`,
		`CREATE TABLE IF NOT EXISTS transfers (
			transfer_id TEXT PRIMARY KEY,
			pass_id TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			container_id TEXT NOT NULL,
			item TEXT NOT NULL,
			requested INTEGER NOT NULL,
			before_amount INTEGER NOT NULL,
			issued_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_container ON transfers(container_id, issued_at);`,
		`CREATE TABLE IF NOT EXISTS resolutions (
			transfer_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			observed INTEGER NOT NULL,
			delta INTEGER NOT NULL,
			accepted INTEGER NOT NULL,
			shortfall INTEGER NOT NULL,
			recovered_to TEXT NOT NULL,
			reason TEXT,
			resolved_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_resolutions_state ON resolutions(state);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			target TEXT,
			item TEXT,
			count INTEGER NOT NULL,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_target_tick ON audits(target, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			drawers INTEGER NOT NULL,
			items INTEGER NOT NULL,
			deposits INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS drawer_state (
			drawer_id TEXT PRIMARY KEY,
			tick INTEGER NOT NULL,
			x REAL NOT NULL,
			y REAL NOT NULL,
			z REAL NOT NULL,
			item TEXT,
			amount INTEGER NOT NULL,
			capacity INTEGER NOT NULL
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:             len(s.ch),
		QueueCapacity:          cap(s.ch),
		DropPassTotal:          s.dropPass.Load(),
		DropIssuedTotal:        s.dropIssued.Load(),
		DropResolvedTotal:      s.dropResolved.Load(),
		DropAuditTotal:         s.dropAudit.Load(),
		DropSnapshotTotal:      s.dropSnapshot.Load(),
		DropSnapshotStateTotal: s.dropSnapshotState.Load(),
		WriteErrorTotal:        s.writeErrors.Load(),
	}
}

// enqueue reports false only when the queue was full.
func (s *SQLiteIndex) enqueue(r req) bool {
	if s == nil || s.closed.Load() {
		return true
	}
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

func (s *SQLiteIndex) PassCompleted(sum model.PassSummary) {
	if !s.enqueue(req{kind: reqPass, pass: sum}) {
		s.dropPass.Add(1)
	}
}

func (s *SQLiteIndex) TransferIssued(p model.PendingTransfer) {
	if !s.enqueue(req{kind: reqIssued, issued: p}) {
		s.dropIssued.Add(1)
	}
}

func (s *SQLiteIndex) TransferResolved(r model.Resolution) {
	if !s.enqueue(req{kind: reqResolved, resolved: r}) {
		s.dropResolved.Add(1)
	}
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if !s.enqueue(req{kind: reqAudit, audit: entry}) {
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if !s.enqueue(req{kind: reqSnapshot, snapshot: snapshotRow{
		Tick:     snap.Header.Tick,
		Path:     path,
		Seed:     snap.Seed,
		Agents:   len(snap.Agents),
		Drawers:  len(snap.Drawers),
		Items:    len(snap.Items),
		Deposits: len(snap.Deposits),
	}}) {
		s.dropSnapshot.Add(1)
	}
}

// RecordSnapshotState replaces drawer_state with the drawers in snap.
func (s *SQLiteIndex) RecordSnapshotState(snap snapshot.SnapshotV1) {
	drawers := append([]snapshot.DrawerV1(nil), snap.Drawers...)
	if !s.enqueue(req{kind: reqSnapshotState, state: drawers, tick: snap.Header.Tick}) {
		s.dropSnapshotState.Add(1)
	}
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeErrors.Add(1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			s.writeErrors.Add(1)
			continue
		}
		var err error
		switch r.kind {
		case reqPass:
			p := r.pass
			_, err = tx.Exec(`INSERT OR REPLACE INTO passes(pass_id,actor_id,started_at,radius,containers,candidates,decisions,issued,skipped) VALUES(?,?,?,?,?,?,?,?,?)`,
				p.PassID, p.ActorID, ts(p.StartedAt), p.Radius, p.Containers, p.Candidates, p.Decisions, p.Issued, p.Skipped)

		case reqIssued:
			p := r.issued
			_, err = tx.Exec(`INSERT OR REPLACE INTO transfers(transfer_id,pass_id,actor_id,container_id,item,requested,before_amount,issued_at) VALUES(?,?,?,?,?,?,?,?)`,
				p.ID, p.PassID, p.ActorID, p.ContainerID, p.Key.String(), p.Requested, p.Before, ts(p.IssuedAt))

		case reqResolved:
			res := r.resolved
			_, err = tx.Exec(`INSERT OR REPLACE INTO resolutions(transfer_id,state,observed,delta,accepted,shortfall,recovered_to,reason,resolved_at) VALUES(?,?,?,?,?,?,?,?,?)`,
				res.Transfer.ID, string(res.State), res.Observed, res.Delta, res.Accepted, res.Shortfall, string(res.RecoveredTo), res.Reason, ts(res.ResolvedAt))

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			_, err = tx.Exec(`INSERT OR REPLACE INTO audits(tick,seq,actor,action,x,y,z,target,item,count,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
				int64(a.Tick), seq, a.Actor, a.Action, a.Pos[0], a.Pos[1], a.Pos[2], a.Target, a.Item, a.Count, a.Reason, string(raw))

		case reqSnapshot:
			sn := r.snapshot
			_, err = tx.Exec(`INSERT OR REPLACE INTO snapshots(tick,path,seed,agents,drawers,items,deposits) VALUES(?,?,?,?,?,?,?)`,
				int64(sn.Tick), sn.Path, sn.Seed, sn.Agents, sn.Drawers, sn.Items, sn.Deposits)

		case reqSnapshotState:
			if _, err = tx.Exec(`DELETE FROM drawer_state`); err != nil {
				break
			}
			for _, d := range r.state {
				if _, err = tx.Exec(`INSERT INTO drawer_state(drawer_id,tick,x,y,z,item,amount,capacity) VALUES(?,?,?,?,?,?,?,?)`,
					d.ID, int64(r.tick), d.Pos[0], d.Pos[1], d.Pos[2], d.Item, d.Amount, d.Capacity); err != nil {
					break
				}
			}
		}
		if err != nil {
			rollback()
			continue
		}
		opCount++
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

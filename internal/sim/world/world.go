package world

import (
	"fmt"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"

	"quickstack.ai/internal/persistence/snapshot"
	"quickstack.ai/internal/sim/world/feature/entities/items"
	"quickstack.ai/internal/protocol"
	"quickstack.ai/internal/stack/capability"
	"quickstack.ai/internal/stack/model"
)

type WorldConfig struct {
	ID                  string
	TickRateHz          int
	Seed                int64
	InventoryCols       int
	InventoryRows       int
	MaxStack            int
	DrawerCapacity      int
	DepositLatencyTicks int
	DepositDropPermille int
	PeerSearchRadius    float64
	SnapshotEveryTicks  int
	SearchRadius        float64

	StarterItems []ItemSpec
	Drawers      []DrawerSpec

	// Epoch is the wall time of tick 0 on the world clock.
	Epoch time.Time
}

type ItemSpec struct {
	Key   model.ItemKey
	Count int
}

type DrawerSpec struct {
	ID     string
	Pos    model.Vec3
	Key    model.ItemKey
	Amount int
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type AttachRequest struct {
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	Welcome protocol.WelcomeMsg
}

// Command is one client message routed to the world loop.
type Command struct {
	AgentID   string
	Move      *protocol.MoveMsg
	StackDone *protocol.StackDoneMsg
}

// StackHandler runs the container pass that follows a client's own
// stacking pass and returns the combined moved count.
type StackHandler interface {
	HandleStackCompleted(actorID string, moved int) int
}

// radiusReporter is implemented by handlers whose pass radius can differ
// from the configured one.
type radiusReporter interface {
	Radius() float64
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type AuditEntry struct {
	Tick   uint64     `json:"tick"`
	Actor  string     `json:"actor"`
	Action string     `json:"action"` // e.g. "DEPOSIT_LANDED"
	Pos    [3]float64 `json:"pos"`
	Target string     `json:"target,omitempty"`
	Item   string     `json:"item,omitempty"`
	Count  int        `json:"count,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

type clientState struct {
	Out chan []byte
}

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg WorldConfig
	log logr.Logger

	tick atomic.Uint64

	agents  map[string]*Agent
	clients map[string]*clientState
	drawers map[string]*Drawer

	ground *items.Store

	deposits []depositReq
	timers   timerQueue
	rng      *rand.Rand
	rngDraws uint64

	shared   map[model.ItemKey]*model.ItemShared
	lastPass map[string]model.PassSummary
	stacker  StackHandler

	inbox  chan Command
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan string
	admin  chan adminSnapshotReq
	stop   chan struct{}

	nextAgentNum atomic.Uint64
	nextItemNum  atomic.Uint64

	auditLogger  AuditLogger
	snapshotSink chan<- snapshot.SnapshotV1

	metrics atomic.Pointer[WorldMetrics]
}

func New(cfg WorldConfig, log logr.Logger) (*World, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tick rate must be > 0, got %d", cfg.TickRateHz)
	}
	if cfg.InventoryCols <= 0 || cfg.InventoryRows <= 0 {
		return nil, fmt.Errorf("inventory must have at least one slot, got %dx%d", cfg.InventoryCols, cfg.InventoryRows)
	}
	if cfg.MaxStack <= 0 {
		return nil, fmt.Errorf("max stack must be > 0, got %d", cfg.MaxStack)
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = time.Unix(0, 0).UTC()
	}
	w := &World{
		cfg:      cfg,
		log:      log.WithName("world").WithValues("world", cfg.ID),
		agents:   map[string]*Agent{},
		clients:  map[string]*clientState{},
		drawers:  map[string]*Drawer{},
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		shared:   map[model.ItemKey]*model.ItemShared{},
		lastPass: map[string]model.PassSummary{},
		inbox:    make(chan Command, 1024),
		join:     make(chan JoinRequest, 64),
		attach:   make(chan AttachRequest, 64),
		leave:    make(chan string, 64),
		admin:    make(chan adminSnapshotReq, 8),
		stop:     make(chan struct{}),
	}
	w.ground = items.NewStore(w.newItemID)
	w.ground.Audit = func(nowTick uint64, actor, action string, pos model.Vec3, item string, count int, reason string) {
		w.audit(actor, action, pos, "", item, count, reason)
	}
	for _, d := range cfg.Drawers {
		if _, err := w.AddDrawer(d); err != nil {
			return nil, err
		}
	}
	w.publishMetrics(0)
	return w, nil
}

func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }
func (w *World) SetStackHandler(h StackHandler) { w.stacker = h }
func (w *World) Inbox() chan<- Command { return w.inbox }
func (w *World) Join() chan<- JoinRequest { return w.join }
func (w *World) Attach() chan<- AttachRequest { return w.attach }
func (w *World) Leave() chan<- string { return w.leave }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) Config() WorldConfig { return w.cfg }
func (w *World) ID() string { return w.cfg.ID }
func (w *World) TickDuration() time.Duration { return time.Second / time.Duration(w.cfg.TickRateHz) }

// Capabilities exposes the world as the quick-stack host.
func (w *World) Capabilities() capability.Set {
	return capability.Set{
		Actors:      w,
		Registry:    w,
		Peer:        w,
		Slots:       Hotbar{},
		Environment: w,
		Notifier:    w,
	}
}

func (w *World) Actor(id string) (capability.Actor, bool) {
	a := w.agents[id]
	if a == nil {
		return nil, false
	}
	return actorView{a}, true
}

// Agent returns the agent state for loop-side callers and tests.
func (w *World) Agent(id string) *Agent { return w.agents[id] }

// Containers lists drawers in id order.
func (w *World) Containers() []capability.Container {
	ids := make([]string, 0, len(w.drawers))
	for id := range w.drawers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]capability.Container, 0, len(ids))
	for _, id := range ids {
		out = append(out, w.drawers[id])
	}
	return out
}

// SearchRadius reports the simulated peer component's radius; it is
// considered configured only when positive.
func (w *World) SearchRadius() (float64, bool) {
	return w.cfg.PeerSearchRadius, w.cfg.PeerSearchRadius > 0
}

func (w *World) Notify(actorID, message string) {
	w.sendTo(actorID, protocol.NoticeMsg{
		Type:            protocol.TypeNotice,
		ProtocolVersion: protocol.Version,
		Tick:            w.tick.Load(),
		Text:            message,
	})
}

func (w *World) audit(actor, action string, pos model.Vec3, target, item string, count int, reason string) {
	if w.auditLogger == nil {
		return
	}
	_ = w.auditLogger.WriteAudit(AuditEntry{
		Tick:   w.tick.Load(),
		Actor:  actor,
		Action: action,
		Pos:    pos.Array(),
		Target: target,
		Item:   item,
		Count:  count,
		Reason: reason,
	})
}

func (w *World) draw(n int) int {
	w.rngDraws++
	return w.rng.Intn(n)
}

// sharedFor returns the single metadata record for key.
func (w *World) sharedFor(key model.ItemKey) *model.ItemShared {
	sh := w.shared[key]
	if sh == nil {
		sh = &model.ItemShared{Name: key.Kind, MaxStack: w.cfg.MaxStack}
		w.shared[key] = sh
	}
	return sh
}

package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	QuickStack QuickStack `yaml:"quickstack"`
	World      World      `yaml:"world"`
}

type QuickStack struct {
	SearchRadius            float64       `yaml:"search_radius"`
	IncludeLowPrioritySlots bool          `yaml:"include_low_priority_slots"`
	MaxContainers           int           `yaml:"max_containers"`
	PreferPeerRadius        bool          `yaml:"prefer_peer_radius"`
	FillEmptyContainers     bool          `yaml:"fill_empty_containers"`
	VerificationDelay       time.Duration `yaml:"verification_delay"`
	DebugLogging            bool          `yaml:"debug_logging"`
}

type World struct {
	TickRateHz          int          `yaml:"tick_rate_hz"`
	Seed                int64        `yaml:"seed"`
	InventoryCols       int          `yaml:"inventory_cols"`
	InventoryRows       int          `yaml:"inventory_rows"`
	MaxStack            int          `yaml:"max_stack"`
	DrawerCapacity      int          `yaml:"drawer_capacity"`
	DepositLatencyTicks int          `yaml:"deposit_latency_ticks"`
	DepositDropPermille int          `yaml:"deposit_drop_permille"`
	PeerSearchRadius    float64      `yaml:"peer_search_radius"`
	SnapshotEveryTicks  int          `yaml:"snapshot_every_ticks"`
	StarterItems        []ItemSpec   `yaml:"starter_items,omitempty"`
	Drawers             []DrawerSpec `yaml:"drawers,omitempty"`
}

type ItemSpec struct {
	Kind    string `yaml:"kind"`
	Quality int    `yaml:"quality"`
	Count   int    `yaml:"count"`
}

type DrawerSpec struct {
	ID      string  `yaml:"id,omitempty"`
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Z       float64 `yaml:"z"`
	Kind    string  `yaml:"kind,omitempty"`
	Quality int     `yaml:"quality,omitempty"`
	Amount  int     `yaml:"amount,omitempty"`
}

func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("quickstack.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("quickstack.yaml: %w", err)
	}
	return cfg, nil
}

func Defaults() Config {
	return Config{
		QuickStack: QuickStack{
			SearchRadius:      10,
			MaxContainers:     200,
			PreferPeerRadius:  true,
			VerificationDelay: 2 * time.Second,
		},
		World: World{
			TickRateHz:          10,
			Seed:                1337,
			InventoryCols:       8,
			InventoryRows:       4,
			MaxStack:            50,
			DrawerCapacity:      1000,
			DepositLatencyTicks: 3,
		},
	}
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	q := &c.QuickStack
	if q.SearchRadius < 0 || math.IsNaN(q.SearchRadius) {
		q.SearchRadius = 0
	}
	if q.MaxContainers < 1 {
		q.MaxContainers = 1
	}
	if q.VerificationDelay < 0 {
		q.VerificationDelay = 0
	}

	w := &c.World
	if w.TickRateHz <= 0 {
		w.TickRateHz = 10
	}
	if w.InventoryCols <= 0 {
		w.InventoryCols = 8
	}
	if w.InventoryRows <= 0 {
		w.InventoryRows = 4
	}
	if w.MaxStack <= 0 {
		w.MaxStack = 50
	}
	if w.DepositLatencyTicks < 0 {
		w.DepositLatencyTicks = 0
	}
	for i := range w.Drawers {
		if strings.TrimSpace(w.Drawers[i].ID) == "" {
			w.Drawers[i].ID = fmt.Sprintf("drawer_%d", i+1)
		}
		if w.Drawers[i].Kind != "" && w.Drawers[i].Quality == 0 {
			w.Drawers[i].Quality = 1
		}
	}
	for i := range w.StarterItems {
		if w.StarterItems[i].Quality == 0 {
			w.StarterItems[i].Quality = 1
		}
	}
}

func (c Config) Validate() error {
	w := c.World
	if w.DepositDropPermille < 0 || w.DepositDropPermille > 1000 {
		return fmt.Errorf("world.deposit_drop_permille must be within 0..1000, got %d", w.DepositDropPermille)
	}
	if w.DrawerCapacity < 0 {
		return errors.New("world.drawer_capacity must be >= 0")
	}
	if w.SnapshotEveryTicks < 0 {
		return errors.New("world.snapshot_every_ticks must be >= 0")
	}
	// A deposit landing after its verification would be recovered and
	// stored. Deposits land before timers run within a tick, so equal is safe.
	if w.TickRateHz > 0 && w.DepositLatencyTicks > 0 {
		if delay := w.DelayTicks(c.QuickStack.VerificationDelay); uint64(w.DepositLatencyTicks) > delay {
			return fmt.Errorf("world.deposit_latency_ticks (%d) must not exceed quickstack.verification_delay (%s = %d ticks)",
				w.DepositLatencyTicks, c.QuickStack.VerificationDelay, delay)
		}
	}
	seen := map[string]bool{}
	for _, d := range w.Drawers {
		if seen[d.ID] {
			return fmt.Errorf("duplicate drawer id %q", d.ID)
		}
		seen[d.ID] = true
		if d.Amount < 0 {
			return fmt.Errorf("drawer %s: amount must be >= 0", d.ID)
		}
		if d.Amount > 0 && d.Kind == "" {
			return fmt.Errorf("drawer %s: amount without kind", d.ID)
		}
		if w.DrawerCapacity > 0 && d.Amount > w.DrawerCapacity {
			return fmt.Errorf("drawer %s: amount %d exceeds capacity %d", d.ID, d.Amount, w.DrawerCapacity)
		}
	}
	for _, it := range w.StarterItems {
		if it.Kind == "" || it.Count <= 0 {
			return fmt.Errorf("starter item %q: kind and positive count required", it.Kind)
		}
	}
	return nil
}

// TickDuration is the wall time of one world tick.
func (w World) TickDuration() time.Duration {
	return time.Second / time.Duration(w.TickRateHz)
}

// DelayTicks converts d to whole ticks, rounding up.
func (w World) DelayTicks(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	td := w.TickDuration()
	return uint64((d + td - 1) / td)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRepoConfig(t *testing.T) {
	cfg, err := Load("../../configs/quickstack.yaml")
	if err != nil {
		t.Fatalf("load quickstack.yaml: %v", err)
	}
	if cfg.QuickStack.SearchRadius != 10 || cfg.QuickStack.MaxContainers != 200 {
		t.Fatalf("unexpected quickstack block: %+v", cfg.QuickStack)
	}
	if cfg.QuickStack.VerificationDelay != 2*time.Second {
		t.Fatalf("verification_delay=%v", cfg.QuickStack.VerificationDelay)
	}
	if len(cfg.World.Drawers) == 0 || len(cfg.World.StarterItems) == 0 {
		t.Fatalf("expected drawers and starter items")
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	q := cfg.QuickStack
	if q.SearchRadius != 10 || q.IncludeLowPrioritySlots || q.MaxContainers != 200 || !q.PreferPeerRadius || q.FillEmptyContainers || q.DebugLogging {
		t.Fatalf("unexpected defaults: %+v", q)
	}
}

func TestNormalizeClamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qs.yaml")
	body := `
quickstack:
  search_radius: -3
  max_containers: 0
  verification_delay: 500ms
world:
  tick_rate_hz: 0
  drawers:
    - {x: 1, y: 0, z: 0, kind: wood}
    - {x: 2, y: 0, z: 0}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.QuickStack.SearchRadius != 0 || cfg.QuickStack.MaxContainers != 1 {
		t.Fatalf("clamps not applied: %+v", cfg.QuickStack)
	}
	if cfg.QuickStack.VerificationDelay != 500*time.Millisecond {
		t.Fatalf("delay=%v", cfg.QuickStack.VerificationDelay)
	}
	if cfg.World.TickRateHz != 10 {
		t.Fatalf("tick rate=%d", cfg.World.TickRateHz)
	}
	if cfg.World.Drawers[0].ID != "drawer_1" || cfg.World.Drawers[0].Quality != 1 || cfg.World.Drawers[1].ID != "drawer_2" {
		t.Fatalf("drawers=%+v", cfg.World.Drawers)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{"drop rate", func(c *Config) { c.World.DepositDropPermille = 1001 }, "deposit_drop_permille"},
		{"dup drawer", func(c *Config) {
			c.World.Drawers = []DrawerSpec{{ID: "a"}, {ID: "a"}}
		}, "duplicate"},
		{"amount without kind", func(c *Config) { c.World.Drawers = []DrawerSpec{{ID: "a", Amount: 3}} }, "without kind"},
		{"over capacity", func(c *Config) {
			c.World.Drawers = []DrawerSpec{{ID: "a", Kind: "wood", Amount: 5000}}
		}, "exceeds capacity"},
		{"starter", func(c *Config) { c.World.StarterItems = []ItemSpec{{Kind: "wood"}} }, "starter item"},
		{"latency beyond delay", func(c *Config) {
			c.QuickStack.VerificationDelay = 2 * time.Second
			c.World.DepositLatencyTicks = 30
		}, "deposit_latency_ticks"},
		{"latency with zero delay", func(c *Config) {
			c.QuickStack.VerificationDelay = 0
			c.World.DepositLatencyTicks = 1
		}, "deposit_latency_ticks"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mut(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err=%v want %q", err, tc.want)
			}
		})
	}
}

func TestDelayTicks(t *testing.T) {
	w := World{TickRateHz: 10}
	if got := w.DelayTicks(2 * time.Second); got != 20 {
		t.Fatalf("ticks=%d want 20", got)
	}
	if got := w.DelayTicks(150 * time.Millisecond); got != 2 {
		t.Fatalf("ticks=%d want 2", got)
	}
	if got := w.DelayTicks(0); got != 0 {
		t.Fatalf("ticks=%d want 0", got)
	}
}

func TestValidateLatencyUpToDelay(t *testing.T) {
	cfg := Defaults()
	cfg.QuickStack.VerificationDelay = 2 * time.Second
	cfg.World.DepositLatencyTicks = 20
	if err := cfg.Validate(); err != nil {
		t.Fatalf("latency equal to the delay rejected: %v", err)
	}
	cfg.QuickStack.VerificationDelay = 0
	cfg.World.DepositLatencyTicks = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("zero latency rejected: %v", err)
	}
}

func TestLoadRejectsSlowDeposits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qs.yaml")
	body := `
quickstack:
  verification_delay: 1s
world:
  tick_rate_hz: 10
  deposit_latency_ticks: 11
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "verification_delay") {
		t.Fatalf("err=%v", err)
	}
}

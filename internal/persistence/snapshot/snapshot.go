package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	Tick    uint64 `json:"tick"`
}

// SnapshotV1 captures the simulated world. Transfers still awaiting
// verification live in the quick-stack scheduler and are not included.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed     int64  `json:"seed"`
	TickRate int    `json:"tick_rate_hz"`
	RNGDraws uint64 `json:"rng_draws"`

	InventoryCols       int     `json:"inventory_cols"`
	InventoryRows       int     `json:"inventory_rows"`
	MaxStack            int     `json:"max_stack"`
	DrawerCapacity      int     `json:"drawer_capacity"`
	DepositLatencyTicks int     `json:"deposit_latency_ticks"`
	DepositDropPermille int     `json:"deposit_drop_permille,omitempty"`
	PeerSearchRadius    float64 `json:"peer_search_radius,omitempty"`
	SnapshotEveryTicks  int     `json:"snapshot_every_ticks,omitempty"`

	Agents   []AgentV1      `json:"agents"`
	Drawers  []DrawerV1     `json:"drawers"`
	Items    []ItemEntityV1 `json:"items,omitempty"`
	Deposits []DepositV1    `json:"deposits,omitempty"`

	Counters CountersV1 `json:"counters"`
}

type AgentV1 struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Pos   [3]float64 `json:"pos"`
	Slots []SlotV1   `json:"slots"`
}

type SlotV1 struct {
	X          int               `json:"x"`
	Y          int               `json:"y"`
	Item       string            `json:"item"`
	Count      int               `json:"count"`
	CustomData map[string]string `json:"custom_data,omitempty"`
}

type DrawerV1 struct {
	ID       string     `json:"id"`
	Pos      [3]float64 `json:"pos"`
	Item     string     `json:"item,omitempty"`
	Amount   int        `json:"amount"`
	Capacity int        `json:"capacity"`
	Claims   int        `json:"claims,omitempty"`
}

type ItemEntityV1 struct {
	EntityID    string     `json:"entity_id"`
	Pos         [3]float64 `json:"pos"`
	Item        string     `json:"item"`
	Count       int        `json:"count"`
	CreatedTick uint64     `json:"created_tick"`
	ExpiresTick uint64     `json:"expires_tick"`
}

type DepositV1 struct {
	DrawerID string `json:"drawer_id"`
	ActorID  string `json:"actor_id"`
	Item     string `json:"item"`
	Amount   int    `json:"amount"`
	DueTick  uint64 `json:"due_tick"`
}

type CountersV1 struct {
	NextAgent uint64 `json:"next_agent"`
	NextItem  uint64 `json:"next_item"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

// ReadHeader decodes only the leading JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()
	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// The gob payload repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// Latest returns the snapshot in dir with the highest tick, or "" when
// the directory holds none.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.snap.zst"))
	if err != nil {
		return "", err
	}
	best := ""
	var bestTick uint64
	for _, p := range matches {
		h, err := ReadHeader(p)
		if err != nil {
			continue
		}
		if best == "" || h.Tick > bestTick {
			best, bestTick = p, h.Tick
		}
	}
	return best, nil
}

func FileName(tick uint64) string { return fmt.Sprintf("%012d.snap.zst", tick) }

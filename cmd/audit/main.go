// Command audit summarizes a world's transfer and audit logs: how many
// deposits were confirmed, partially accepted or failed, and where the
// shortfall went.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "quickstack.ai/internal/persistence/log"
	"quickstack.ai/internal/persistence/snapshot"
	"quickstack.ai/internal/sim/world"
)

func main() {
	var (
		worldDir = flag.String("world_dir", "", "world data dir (contains audit/ and transfers/)")
		snapPath = flag.String("snapshot", "", "path to .snap.zst (optional)")
		fromTick = flag.Uint64("from_tick", 0, "first audit tick to count (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "last audit tick to count (inclusive, optional)")
	)
	flag.Parse()

	if *worldDir == "" && *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -world_dir or -snapshot")
		os.Exit(2)
	}

	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("snapshot v%d world=%s tick=%d seed=%d agents=%d drawers=%d items=%d deposits=%d\n",
			snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
			len(snap.Agents), len(snap.Drawers), len(snap.Items), len(snap.Deposits))
	}
	if *worldDir == "" {
		return
	}

	events, err := persistlog.ReadTransferEvents(filepath.Join(*worldDir, "transfers"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "read transfers:", err)
		os.Exit(1)
	}
	sum := summarizeTransfers(events)

	files, err := persistlog.Files(filepath.Join(*worldDir, "audit"), "audit")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit files:", err)
		os.Exit(1)
	}
	actions := map[string]int{}
	for _, p := range files {
		err := persistlog.ReadJSONL(p, func(line []byte) error {
			var e world.AuditEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return err
			}
			if e.Tick < *fromTick || (*toTick != 0 && e.Tick > *toTick) {
				return nil
			}
			actions[e.Action]++
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "read audit:", err)
			os.Exit(1)
		}
	}

	sum.print(os.Stdout)
	printCounts(os.Stdout, "audit", actions)
	if sum.Outstanding > 0 {
		os.Exit(3)
	}
}

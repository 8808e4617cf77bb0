package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Files lists a writer's hourly files under dir in time order.
func Files(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ReadJSONL calls fn with every line of a zstd-compressed JSONL file.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("%s:%d: %w", filepath.Base(path), n, err)
		}
	}
	return sc.Err()
}

// ReadTransferEvents decodes every transfer event in dir.
func ReadTransferEvents(dir string) ([]TransferEvent, error) {
	files, err := Files(dir, "transfers")
	if err != nil {
		return nil, err
	}
	var out []TransferEvent
	for _, p := range files {
		err := ReadJSONL(p, func(line []byte) error {
			var ev TransferEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

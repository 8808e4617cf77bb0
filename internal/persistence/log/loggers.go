package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"quickstack.ai/internal/sim/world"
	"quickstack.ai/internal/stack/model"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// AuditLogger writes world audit entries.
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

const (
	EventPass     = "PASS"
	EventIssued   = "ISSUED"
	EventResolved = "RESOLVED"
)

// TransferEvent is one line of the transfer log.
type TransferEvent struct {
	Event string    `json:"event"`
	At    time.Time `json:"at"`

	PassID     string `json:"pass_id,omitempty"`
	TransferID string `json:"transfer_id,omitempty"`
	ActorID    string `json:"actor_id"`

	ContainerID string `json:"container_id,omitempty"`
	Item        string `json:"item,omitempty"`
	Requested   int    `json:"requested,omitempty"`
	Before      int    `json:"before,omitempty"`
	Accepted    int    `json:"accepted,omitempty"`
	Shortfall   int    `json:"shortfall,omitempty"`
	State       string `json:"state,omitempty"`
	RecoveredTo string `json:"recovered_to,omitempty"`
	Reason      string `json:"reason,omitempty"`

	Radius     float64 `json:"radius,omitempty"`
	Containers int     `json:"containers,omitempty"`
	Candidates int     `json:"candidates,omitempty"`
	Decisions  int     `json:"decisions,omitempty"`
	Issued     int     `json:"issued,omitempty"`
	Skipped    int     `json:"skipped,omitempty"`
}

// TransferLogger records passes and transfer outcomes.
type TransferLogger struct {
	w       *JSONLZstdWriter
	onError func(error)
}

func NewTransferLogger(worldDir string, onError func(error)) *TransferLogger {
	return &TransferLogger{
		w:       NewJSONLZstdWriter(filepath.Join(worldDir, "transfers"), "transfers"),
		onError: onError,
	}
}

func (l *TransferLogger) Close() error { return l.w.Close() }

func (l *TransferLogger) PassCompleted(s model.PassSummary) {
	l.write(TransferEvent{
		Event:      EventPass,
		At:         s.StartedAt,
		PassID:     s.PassID,
		ActorID:    s.ActorID,
		Radius:     s.Radius,
		Containers: s.Containers,
		Candidates: s.Candidates,
		Decisions:  s.Decisions,
		Issued:     s.Issued,
		Skipped:    s.Skipped,
	})
}

func (l *TransferLogger) TransferIssued(p model.PendingTransfer) {
	l.write(TransferEvent{
		Event:       EventIssued,
		At:          p.IssuedAt,
		PassID:      p.PassID,
		TransferID:  p.ID,
		ActorID:     p.ActorID,
		ContainerID: p.ContainerID,
		Item:        p.Key.String(),
		Requested:   p.Requested,
		Before:      p.Before,
	})
}

func (l *TransferLogger) TransferResolved(r model.Resolution) {
	p := r.Transfer
	l.write(TransferEvent{
		Event:       EventResolved,
		At:          r.ResolvedAt,
		PassID:      p.PassID,
		TransferID:  p.ID,
		ActorID:     p.ActorID,
		ContainerID: p.ContainerID,
		Item:        p.Key.String(),
		Requested:   p.Requested,
		Before:      p.Before,
		Accepted:    r.Accepted,
		Shortfall:   r.Shortfall,
		State:       string(r.State),
		RecoveredTo: string(r.RecoveredTo),
		Reason:      r.Reason,
	})
}

func (l *TransferLogger) write(ev TransferEvent) {
	if err := l.w.Write(ev); err != nil && l.onError != nil {
		l.onError(err)
	}
}

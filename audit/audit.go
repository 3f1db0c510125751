// Package audit implements the hash-chained append-only JSONL audit log
// the core treats as a narrow external collaborator (§3 DOMAIN additions):
// the data plane only ever calls Sink.Append, never reads the log back.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind enumerates the audit event categories the core and its collaborators
// emit.
type Kind string

const (
	KindConfigReload       Kind = "config_reload"
	KindConfigRejected     Kind = "config_rejected"
	KindConnectionRejected Kind = "connection_rejected"
	KindShutdown           Kind = "shutdown"
)

// Event is one hash-chained audit record. PrevHash links it to the record
// before it (empty string for the first record in the log), and Hash is the
// SHA-256 of the record's own canonical fields plus PrevHash, making the
// file tamper-evident: truncating or editing any record breaks every
// subsequent Hash/PrevHash link.
type Event struct {
	Seq       uint64    `json:"seq"`
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	Detail    string    `json:"detail"`
	PrevHash  string    `json:"prev_hash"`
	Hash      string    `json:"hash"`
}

// Sink is the narrow interface the core depends on; it never reads a log
// back, so Logger's file-handling and chaining details stay fully private
// to this package.
type Sink interface {
	Append(kind Kind, detail string) error
}

// Logger appends Events to a JSONL file, one object per line, maintaining
// the running hash chain. It is safe for concurrent use.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	seq      uint64
	lastHash string
}

// Open appends to (or creates) the JSONL file at path. The hash chain
// always starts fresh at seq 0 for a newly opened Logger; callers that need
// chain continuity across restarts are expected to verify the tail of the
// existing file out of band (this package does not read it back, per its
// external-collaborator contract).
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log %s: %w", path, err)
	}
	return &Logger{file: f, enc: json.NewEncoder(f)}, nil
}

// Append writes a new Event, chained to the previous one, and flushes it to
// disk before returning.
func (l *Logger) Append(kind Kind, detail string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := Event{
		Seq:       l.seq,
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Kind:      kind,
		Detail:    detail,
		PrevHash:  l.lastHash,
	}
	ev.Hash = chainHash(ev)

	if err := l.enc.Encode(ev); err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("syncing audit log: %w", err)
	}

	l.seq++
	l.lastHash = ev.Hash
	return nil
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// chainHash computes the SHA-256 of ev's content fields plus its PrevHash,
// deliberately excluding ev.Hash itself (the field being computed).
func chainHash(ev Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s", ev.Seq, ev.ID, ev.Timestamp.Format(time.RFC3339Nano), ev.Kind, ev.Detail, ev.PrevHash)
	return hex.EncodeToString(h.Sum(nil))
}

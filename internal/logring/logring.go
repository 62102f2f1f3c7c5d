// Package logring is a slog.Handler tee that keeps the most recent records
// in memory so the dashboard can show an activity feed. Entries are
// session-scoped and never persisted.
package logring

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Entry is one retained log record in dashboard-friendly form.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// ring is the shared bounded buffer. Handler clones created by WithAttrs
// and WithGroup all feed the same ring.
type ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	filled  bool
}

func (r *ring) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.filled && len(r.entries) < cap(r.entries) {
		r.entries = append(r.entries, e)
		if len(r.entries) == cap(r.entries) {
			r.filled = true
		}
		return
	}
	r.entries[r.start] = e
	r.start = (r.start + 1) % len(r.entries)
}

func (r *ring) snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for i := 0; i < len(r.entries); i++ {
		out = append(out, r.entries[(r.start+i)%len(r.entries)])
	}
	return out
}

// Handler records each log record into the ring, then forwards it to the
// wrapped handler.
type Handler struct {
	next slog.Handler
	ring *ring
}

func New(next slog.Handler, capacity int) *Handler {
	return &Handler{
		next: next,
		ring: &ring{entries: make([]Entry, 0, capacity)},
	}
}

var _ slog.Handler = (*Handler)(nil)

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	entry := Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		if entry.Attrs == nil {
			entry.Attrs = make(map[string]any)
		}
		entry.Attrs[a.Key] = a.Value.Any()
		return true
	})
	h.ring.add(entry)
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{next: h.next.WithAttrs(attrs), ring: h.ring}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), ring: h.ring}
}

// Entries returns the retained records, oldest first.
func (h *Handler) Entries() []Entry {
	return h.ring.snapshot()
}

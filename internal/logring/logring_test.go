package logring

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func newTestLogger(capacity int) (*slog.Logger, *Handler) {
	h := New(slog.NewTextHandler(io.Discard, nil), capacity)
	return slog.New(h), h
}

func TestHandler_RetainsRecentEntries(t *testing.T) {
	logger, h := newTestLogger(10)

	logger.Info("discovery started", "category", "tecnologia eletronicos")
	logger.Error("send failed", "status", 500)

	entries := h.Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Message != "discovery started" || entries[0].Level != "INFO" {
		t.Errorf("Unexpected first entry %+v", entries[0])
	}
	if entries[1].Attrs["status"] != int64(500) {
		t.Errorf("Attrs not captured: %+v", entries[1].Attrs)
	}
}

func TestHandler_BoundedAndOrdered(t *testing.T) {
	logger, h := newTestLogger(5)

	for i := 0; i < 12; i++ {
		logger.Info(fmt.Sprintf("entry %d", i))
	}

	entries := h.Entries()
	if len(entries) != 5 {
		t.Fatalf("Expected ring capped at 5, got %d", len(entries))
	}
	if entries[0].Message != "entry 7" || entries[4].Message != "entry 11" {
		t.Errorf("Expected oldest-first window [7..11], got %q .. %q",
			entries[0].Message, entries[4].Message)
	}
}

func TestHandler_WithAttrsSharesRing(t *testing.T) {
	logger, h := newTestLogger(10)

	logger.With("component", "gateway").Warn("rate limited")

	entries := h.Entries()
	if len(entries) != 1 {
		t.Fatalf("Derived logger must feed the same ring, got %d entries", len(entries))
	}
	if entries[0].Level != "WARN" {
		t.Errorf("Level = %q, want WARN", entries[0].Level)
	}
}

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portfolioSwap/internal/model"
)

func TestJSONLWriterFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checks", "pool_checks.jsonl")
	w, err := newJSONLWriter(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Write(model.PoolCheck{Asset: "0x01", Fee: 3000, Found: true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"fee":3000`) || !strings.HasSuffix(string(data), "\n") {
		t.Fatalf("unexpected contents %q", data)
	}
}

func TestJSONLWriterReportsFlushFailure(t *testing.T) {
	w, err := newJSONLWriter(filepath.Join(t.TempDir(), "pool_checks.jsonl"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Write(model.PoolCheck{Asset: "0x01"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.file.Close()
	if err := w.Close(); err == nil {
		t.Fatal("expected flush error after the file was closed")
	}
}

package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPrintfWritesTimestampedLine(t *testing.T) {
	workDir := t.TempDir()
	logger, err := New(workDir)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.clock = func() time.Time { return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC) }
	logger.Printf("PUT %s -> %d\n", "/api/v1/orders/100001/fulfill/", 500)
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(workDir, ".fulfillment", "logs", "desk.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	want := "[2026-10-18T09:30:00Z] PUT /api/v1/orders/100001/fulfill/ -> 500\n"
	if string(data) != want {
		t.Fatalf("log = %q, want %q", string(data), want)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Printf("ignored")
	if err := logger.Close(); err != nil {
		t.Fatalf("close nil logger: %v", err)
	}
}

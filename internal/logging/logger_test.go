package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"garpconnect/internal/logging"
	"garpconnect/internal/services"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info("file discovered", logging.String(logging.FieldFile, "order123.xml"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "file discovered") || !strings.Contains(out, "order123.xml") {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithItemID(context.Background(), 42)
	ctx = services.WithFile(ctx, "order9.xml")
	ctx = services.WithRequestID(ctx, "req-1")

	fields := logging.ContextFields(ctx)
	if len(fields) != 3 {
		t.Fatalf("expected 3 context fields, got %d", len(fields))
	}
}

func TestCleanupOldLogsHonorsRetention(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	newPath := filepath.Join(dir, "new.log")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logging.CleanupOldLogs(logging.NewNop(), 7, logging.RetentionTarget{Dir: dir, Pattern: "*.log"})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, err=%v", err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected recent log retained: %v", err)
	}
}

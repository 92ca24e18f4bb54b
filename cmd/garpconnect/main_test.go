package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"garpconnect/internal/journal"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// A second init without --overwrite must refuse.
	if _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config already exists")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "garpconnect") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestStatusRowsOrdered(t *testing.T) {
	stats := map[journal.Status]int{
		journal.StatusFailed:    2,
		journal.StatusCompleted: 7,
	}
	rows := statusRows(stats)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != string(journal.StatusCompleted) || rows[0][1] != "7" {
		t.Fatalf("unexpected first row %v", rows[0])
	}
	if rows[1][0] != string(journal.StatusFailed) || rows[1][1] != "2" {
		t.Fatalf("unexpected second row %v", rows[1])
	}
}

func TestHistoryRows(t *testing.T) {
	updated := time.Date(2026, 2, 19, 10, 30, 0, 0, time.UTC)
	items := []*journal.WorkItem{
		{
			ID:        4,
			FileName:  "order-107739.xml",
			Status:    journal.StatusFailed,
			Attempts:  1,
			ErrorKind: "validation",
			UpdatedAt: updated,
		},
		{
			ID:        3,
			FileName:  "order-107738.xml",
			Status:    journal.StatusCompleted,
			Attempts:  1,
			UpdatedAt: updated,
		},
	}

	rows := historyRows(items)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][2] != "failed" || rows[0][4] != "validation" {
		t.Fatalf("unexpected failed row %v", rows[0])
	}
	if rows[1][2] != "completed" || rows[1][4] != "" {
		t.Fatalf("unexpected completed row %v", rows[1])
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Status", "Count"}, [][]string{{"completed", "7"}}, 1)
	if !strings.Contains(out, "completed") || !strings.Contains(out, "7") {
		t.Fatalf("unexpected table output:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output for empty headers")
	}
}

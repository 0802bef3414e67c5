package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/abelbrown/astroscan/internal/memory"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusOnEmptyDataDir(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "status", "--data-dir", dir, "--log-level", "error")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "astroscan status") || !strings.Contains(out, "never") {
		t.Errorf("unexpected output:\n%s", out)
	}
	// status never creates state files.
	if _, err := os.Stat(filepath.Join(dir, memory.MemoryFile)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("memory.json created by status: %v", err)
	}
}

func TestScanFlagsExclusive(t *testing.T) {
	_, err := execute(t, "scan", "--full", "--analyze-only", "--data-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("err = %v", err)
	}
}

func TestScanAnalyzeOnlyOffline(t *testing.T) {
	dir := t.TempDir()
	cfg := "logging:\n  level: error\n  to_file: false\nanalysis:\n  narrative: false\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "scan", "--analyze-only", "--data-dir", dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "(fallback)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	for _, name := range []string{memory.MemoryFile, memory.AlertsFile, LedgerFile, "metrics/astroscan.prom", "logs/scans.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestLockDataDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("flock not available")
	}
	dir := t.TempDir()
	unlock, err := lockDataDir(dir)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := lockDataDir(dir); !errors.Is(err, errLocked) {
		t.Errorf("second lock err = %v, want errLocked", err)
	}
	unlock()

	unlock, err = lockDataDir(dir)
	if err != nil {
		t.Fatalf("relock after unlock: %v", err)
	}
	unlock()
}

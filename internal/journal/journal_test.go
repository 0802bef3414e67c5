package journal

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEmitWritesValidJSONL(t *testing.T) {
	var buf bytes.Buffer
	j := New(&buf, "scan-1")

	j.Emit(Event{Kind: KindCollectComplete, Level: LevelInfo, Source: "news", Count: 7, Dur: 1500 * time.Millisecond})
	j.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["kind"] != "collect.complete" {
		t.Errorf("kind = %v", decoded["kind"])
	}
	if decoded["scan_id"] != "scan-1" {
		t.Errorf("scan_id = %v", decoded["scan_id"])
	}
	if decoded["dur_ms"] != 1500.0 {
		t.Errorf("dur_ms = %v", decoded["dur_ms"])
	}
	if decoded["count"] != 7.0 {
		t.Errorf("count = %v", decoded["count"])
	}
}

func TestEmitSetsTime(t *testing.T) {
	var buf bytes.Buffer
	j := New(&buf, "")
	before := time.Now()
	j.Info(KindScanStart, "", "starting")
	j.Close()
	after := time.Now()

	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Time.Before(before.Add(-time.Second)) || ev.Time.After(after.Add(time.Second)) {
		t.Errorf("time %v outside [%v, %v]", ev.Time, before, after)
	}
	if ev.Msg != "starting" || ev.Level != LevelInfo {
		t.Errorf("event = %+v", ev)
	}
}

func TestErrorNil(t *testing.T) {
	var buf bytes.Buffer
	j := New(&buf, "")
	j.Error(KindCollectError, "fec", nil)
	j.Error(KindCollectError, "fec", errors.New("HTTP error: 500"))
	j.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d", len(lines))
	}
	if !strings.Contains(lines[1], "HTTP error: 500") {
		t.Errorf("second line = %s", lines[1])
	}
}

func TestEmitAfterCloseIsDropped(t *testing.T) {
	j := New(&bytes.Buffer{}, "")
	j.Close()
	j.Info(KindScanComplete, "", "late")
	if j.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", j.Dropped())
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	j := New(&buf, "")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				j.Info(KindDetectComplete, "", "x")
			}
		}()
	}
	wg.Wait()
	j.Close()

	got := strings.Count(buf.String(), "\n") + int(j.Dropped())
	if got != 400 {
		t.Errorf("written+dropped = %d, want 400", got)
	}
}

func TestOpenAndTail(t *testing.T) {
	dir := t.TempDir()
	for i, id := range []string{"a", "b"} {
		j, err := Open(dir, id)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		j.Emit(Event{Kind: KindScanStart, Count: i})
		j.Emit(Event{Kind: KindScanComplete, Count: i})
		if err := j.Close(); err != nil {
			t.Fatal(err)
		}
	}

	// Garbage lines are skipped.
	f, err := os.OpenFile(Path(dir), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("not json\n")
	f.Close()

	events, err := Tail(Path(dir), 3)
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[0].ScanID != "a" || events[0].Kind != KindScanComplete {
		t.Errorf("first = %+v", events[0])
	}
	if events[2].ScanID != "b" || events[2].Kind != KindScanComplete {
		t.Errorf("last = %+v", events[2])
	}
}

func TestTailMissing(t *testing.T) {
	events, err := Tail(filepath.Join(t.TempDir(), "none.jsonl"), 5)
	if err != nil || events != nil {
		t.Errorf("Tail missing = %v, %v", events, err)
	}
}

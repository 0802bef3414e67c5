package store

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/abelbrown/astroscan/internal/curation"
)

func openMem(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpen(t *testing.T) {
	st := openMem(t)

	for _, table := range []string{"scans", "alert_archive"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestOpenFileIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		st, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d failed: %v", i, err)
		}
		if _, err := st.RecordScan(Scan{StartedAt: time.Now(), FinishedAt: time.Now(), Source: "fallback"}); err != nil {
			t.Fatalf("RecordScan: %v", err)
		}
		st.Close()
	}
	st, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if n, _ := st.ScanCount(); n != 2 {
		t.Errorf("expected 2 scans across reopen, got %d", n)
	}
}

func TestRecordScanOrdering(t *testing.T) {
	st := openMem(t)

	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		id, err := st.RecordScan(Scan{
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			Confidence: 40 + i,
			Source:     "fallback",
		})
		if err != nil {
			t.Fatalf("RecordScan failed: %v", err)
		}
		if id == "" {
			t.Error("expected generated id")
		}
	}

	scans, err := st.RecentScans(2)
	if err != nil {
		t.Fatalf("RecentScans failed: %v", err)
	}
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(scans))
	}
	if scans[0].Confidence != 42 || scans[1].Confidence != 41 {
		t.Errorf("expected newest first, got %d then %d", scans[0].Confidence, scans[1].Confidence)
	}
}

func TestArchiveAlertsDuplicate(t *testing.T) {
	st := openMem(t)
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	alerts := []curation.Alert{
		{ID: "alert_1", Title: "Old cluster", Confidence: 70, Severity: curation.SeverityMedium, Timestamp: now.AddDate(0, 0, -60), Sources: []string{"FEC"}},
		{ID: "alert_2", Title: "Older cluster", Confidence: 80, Severity: curation.SeverityHigh, Timestamp: now.AddDate(0, 0, -90)},
	}

	n, err := st.ArchiveAlerts("scan-1", "evicted", alerts, now)
	if err != nil {
		t.Fatalf("ArchiveAlerts failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 inserted, got %d", n)
	}

	n, err = st.ArchiveAlerts("scan-2", "evicted", alerts[:1], now)
	if err != nil {
		t.Fatalf("ArchiveAlerts duplicate failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 inserted for duplicate id, got %d", n)
	}

	got, err := st.ArchivedAlerts(10)
	if err != nil {
		t.Fatalf("ArchivedAlerts failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 archived alerts, got %d", len(got))
	}
	if got[0].Alert.ID != "alert_1" || got[0].ScanID != "scan-1" {
		t.Errorf("expected newest alert first from scan-1, got %+v", got[0])
	}
	if got[0].Alert.Sources[0] != "FEC" {
		t.Errorf("payload not round-tripped: %+v", got[0].Alert)
	}
}

func TestArchiveAlertsEmpty(t *testing.T) {
	st := openMem(t)
	n, err := st.ArchiveAlerts("scan", "evicted", nil, time.Now())
	if err != nil || n != 0 {
		t.Errorf("n=%d err=%v", n, err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	st := openMem(t)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a := curation.Alert{ID: fmt.Sprintf("alert_%d", i), Title: "t", Timestamp: now}
			if _, err := st.ArchiveAlerts("scan", "evicted", []curation.Alert{a}, now); err != nil {
				t.Errorf("ArchiveAlerts: %v", err)
			}
			if _, err := st.RecentScans(5); err != nil {
				t.Errorf("RecentScans: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := st.ArchivedCount(); n != 10 {
		t.Errorf("expected 10 archived alerts, got %d", n)
	}
}

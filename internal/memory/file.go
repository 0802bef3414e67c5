package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/abelbrown/astroscan/internal/curation"
	"github.com/abelbrown/astroscan/internal/logging"
)

// File names inside the data directory.
const (
	MemoryFile = "memory.json"
	AlertsFile = "alerts.json"
)

// Files locates the persisted documents of one data directory.
type Files struct {
	Dir string
}

func (f Files) MemoryPath() string { return filepath.Join(f.Dir, MemoryFile) }
func (f Files) AlertsPath() string { return filepath.Join(f.Dir, AlertsFile) }

// LoadMemory reads memory.json. A missing or unreadable file yields
// defaults; a corrupt one is moved aside and also yields defaults.
func (f Files) LoadMemory(now time.Time) (Document, error) {
	doc := Default()
	ok, err := readJSON(f.MemoryPath(), &doc, now)
	if err != nil {
		return Default(), err
	}
	if !ok {
		return Default(), nil
	}
	return doc.fill(), nil
}

// SaveMemory writes memory.json atomically.
func (f Files) SaveMemory(doc Document) error {
	return writeJSON(f.MemoryPath(), doc)
}

// LoadAlerts reads alerts.json with the same recovery rules as LoadMemory.
func (f Files) LoadAlerts(now time.Time) (curation.Document, error) {
	doc := curation.NewDocument()
	ok, err := readJSON(f.AlertsPath(), &doc, now)
	if err != nil || !ok {
		return curation.NewDocument(), err
	}
	if doc.Version == "" {
		doc.Version = curation.DocumentVersion
	}
	if doc.Alerts == nil {
		doc.Alerts = []curation.Alert{}
	}
	if doc.ArchivedAlerts == nil {
		doc.ArchivedAlerts = []curation.Alert{}
	}
	return doc, nil
}

// SaveAlerts writes alerts.json atomically.
func (f Files) SaveAlerts(doc curation.Document) error {
	return writeJSON(f.AlertsPath(), doc)
}

// readJSON decodes path into v. It reports false when the file is missing,
// unreadable or corrupt; corrupt files are renamed to
// <name>.corrupt-<timestamp>. Unreadable files are left in place.
func readJSON(path string, v any, now time.Time) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logging.Info("No state file, starting fresh", "path", path)
		return false, nil
	}
	if err != nil {
		logging.Warn("Unreadable state file, using defaults", "path", path, "error", err)
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%s", path, now.UTC().Format("20060102T150405Z"))
		logging.Warn("Corrupt state file, reinitializing", "path", path, "moved_to", aside, "error", err)
		if rerr := os.Rename(path, aside); rerr != nil {
			logging.Error("Failed to preserve corrupt state file", "path", path, "error", rerr)
		}
		return false, nil
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Package journal records scan pipeline events as JSONL.
//
// Events are typed structs serialized one per line. The Journal writes them
// asynchronously via a buffered channel and a background drain goroutine, so
// pipeline stages never block on disk.
package journal

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Kind identifies the category of an event.
// Dot-delimited: "<stage>.<action>".
type Kind string

const (
	KindScanStart    Kind = "scan.start"
	KindScanComplete Kind = "scan.complete"

	KindCollectComplete Kind = "collect.complete"
	KindCollectError    Kind = "collect.error"
	KindCollectSkipped  Kind = "collect.skipped"

	KindDetectComplete Kind = "detect.complete"

	KindNarrative Kind = "assess.narrative"
	KindFallback  Kind = "assess.fallback"

	KindCurate Kind = "curate.complete"

	KindPersistError Kind = "persist.error"
)

// Event is a single journal record. Every field except Kind and Time is
// optional.
type Event struct {
	Time   time.Time      `json:"t"`
	Level  Level          `json:"level,omitempty"`
	Kind   Kind           `json:"kind"`
	ScanID string         `json:"scan_id,omitempty"`
	Source string         `json:"source,omitempty"`
	Dur    time.Duration  `json:"-"`
	DurMs  float64        `json:"dur_ms,omitempty"`
	Count  int            `json:"count,omitempty"`
	Err    string         `json:"err,omitempty"`
	Msg    string         `json:"msg,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

package journal

// The drain goroutine is the sole reader of j.ch and the sole writer to j.w.

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// FileName is the journal file inside the data directory's logs folder.
const FileName = "scans.jsonl"

// chanSize is the capacity of the async write channel.
const chanSize = 1024

// Journal serializes events as JSONL via an async background writer.
// Emit is goroutine-safe.
type Journal struct {
	scanID    string
	ch        chan []byte
	w         io.Writer
	closer    io.Closer
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Journal writing to w, stamping every event with scanID.
// Call Close to flush and stop.
func New(w io.Writer, scanID string) *Journal {
	j := &Journal{
		scanID: scanID,
		ch:     make(chan []byte, chanSize),
		w:      w,
		done:   make(chan struct{}),
	}
	go j.drain()
	return j
}

// Open appends to dir/logs/scans.jsonl.
func Open(dir, scanID string) (*Journal, error) {
	path := Path(dir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	j := New(f, scanID)
	j.closer = f
	return j, nil
}

// Discard returns a Journal that drops output.
func Discard() *Journal {
	return New(io.Discard, "")
}

// Path returns the journal location for a data directory.
func Path(dir string) string {
	return filepath.Join(dir, "logs", FileName)
}

func (j *Journal) drain() {
	defer close(j.done)
	for line := range j.ch {
		if _, err := j.w.Write(line); err != nil {
			j.dropped.Add(1)
		}
	}
}

// Emit queues an event. It sets Time when zero and always sets ScanID.
// Non-blocking: when the channel is full or the journal is closed the event
// is dropped and counted.
func (j *Journal) Emit(e Event) {
	defer func() {
		if recover() != nil {
			j.dropped.Add(1)
		}
	}()

	if j.closed.Load() {
		j.dropped.Add(1)
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	e.ScanID = j.scanID

	data, err := json.Marshal(e)
	if err != nil {
		j.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case j.ch <- data:
	default:
		j.dropped.Add(1)
	}
}

// Info emits an info-level event.
func (j *Journal) Info(kind Kind, source, msg string) {
	j.Emit(Event{Level: LevelInfo, Kind: kind, Source: source, Msg: msg})
}

// Warn emits a warn-level event.
func (j *Journal) Warn(kind Kind, source, msg string) {
	j.Emit(Event{Level: LevelWarn, Kind: kind, Source: source, Msg: msg})
}

// Error emits an error-level event. A nil err is recorded as empty.
func (j *Journal) Error(kind Kind, source string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	j.Emit(Event{Level: LevelError, Kind: kind, Source: source, Err: msg})
}

// Dropped returns the number of events dropped since creation.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Close flushes pending events and stops the drain goroutine. Safe to call
// more than once.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		close(j.ch)
		<-j.done
		if j.closer != nil {
			err = j.closer.Close()
		}
	})
	return err
}

// Tail returns up to n of the most recent events in the journal at path,
// oldest first. A missing file yields no events. Malformed lines are skipped.
func Tail(path string, n int) ([]Event, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	ring := make([]Event, 0, n)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			copy(ring, ring[1:])
			ring = ring[:n-1]
		}
		ring = append(ring, e)
	}
	if err := sc.Err(); err != nil {
		return ring, fmt.Errorf("failed to read journal: %w", err)
	}
	return ring, nil
}

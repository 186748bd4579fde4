package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"alignstudio/pkg/types"
)

// Writer appends RunEvents to a per-run JSONL log file. The log is
// append-only: events are never rewritten or deleted.
type Writer struct {
	runID    string
	path     string
	f        *os.File
	lastStep int
}

// NewWriter opens (creating if needed) the event log for runID under
// logDir.
func NewWriter(logDir, runID string) (*Writer, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(logDir, runID+".jsonl")

	// Resuming a run must not reset the monotonic step guard: seed it
	// from whatever is already in the log.
	lastStep := -1
	existing, err := (&Reader{path: path}).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		lastStep = existing[len(existing)-1].Step
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log %s: %w", path, err)
	}
	return &Writer{runID: runID, path: path, f: f, lastStep: lastStep}, nil
}

// Write appends one event. Steps must not move backwards within a
// run, including across writer reopens.
func (w *Writer) Write(event types.RunEvent) error {
	if event.RunID == "" {
		event.RunID = w.runID
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := event.Validate(); err != nil {
		return err
	}
	if event.Step < w.lastStep {
		return fmt.Errorf("step %d regressed below %d", event.Step, w.lastStep)
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := w.f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	w.lastStep = event.Step
	return nil
}

// Path returns the JSONL file this writer appends to.
func (w *Writer) Path() string { return w.path }

func (w *Writer) Close() error { return w.f.Close() }

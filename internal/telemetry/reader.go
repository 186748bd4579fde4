package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"alignstudio/pkg/types"
)

// Reader reads RunEvents back from a per-run JSONL log.
type Reader struct {
	path string
}

func NewReader(logDir, runID string) *Reader {
	return &Reader{path: filepath.Join(logDir, runID+".jsonl")}
}

// ReadAll returns every event in chronological (append) order. A
// missing log reads as empty.
func (r *Reader) ReadAll() ([]types.RunEvent, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open event log %s: %w", r.path, err)
	}
	defer f.Close()

	events := make([]types.RunEvent, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var event types.RunEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return nil, fmt.Errorf("parse event log %s line %d: %w", r.path, lineNo, err)
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan event log %s: %w", r.path, err)
	}
	return events, nil
}

// Tail returns the last n events. A non-positive n reads as empty.
func (r *Reader) Tail(n int) ([]types.RunEvent, error) {
	if n <= 0 {
		return nil, nil
	}
	events, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if n < len(events) {
		events = events[len(events)-n:]
	}
	return events, nil
}

// Exists reports whether the run's event log file is present, so
// callers can tell an unknown run from one with no events yet.
func (r *Reader) Exists() bool {
	_, err := os.Stat(r.path)
	return err == nil
}

// Count returns the number of events without decoding them.
func (r *Reader) Count() (int, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open event log %s: %w", r.path, err)
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan event log %s: %w", r.path, err)
	}
	return count, nil
}

// ListRuns returns the sorted run IDs that have event logs under
// logDir. A missing directory lists as empty.
func ListRuns(logDir string) ([]string, error) {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log dir %s: %w", logDir, err)
	}
	runs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		runs = append(runs, strings.TrimSuffix(e.Name(), ".jsonl"))
	}
	sort.Strings(runs)
	return runs, nil
}

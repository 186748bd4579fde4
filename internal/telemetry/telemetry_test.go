package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alignstudio/pkg/types"
)

func sampleEvent(step int) types.RunEvent {
	return types.RunEvent{RunID: "test-run", Step: step, Loss: 0.5, LearningRate: 5e-5}
}

func TestWriter_CreatesFile(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "test-run")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(sampleEvent(10)); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(w.Path()); err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if filepath.Base(w.Path()) != "test-run.jsonl" {
		t.Errorf("path = %q", w.Path())
	}
}

func TestWriter_EmptyRunID(t *testing.T) {
	if _, err := NewWriter(t.TempDir(), ""); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestWriter_FillsRunIDAndTimestamp(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(types.RunEvent{Step: 0, Loss: 1.0, LearningRate: 1e-4}); err != nil {
		t.Fatal(err)
	}

	events, err := NewReader(dir, "run-a").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].RunID != "run-a" {
		t.Errorf("run_id = %q", events[0].RunID)
	}
	if events[0].Timestamp.IsZero() {
		t.Error("timestamp should be filled")
	}
}

func TestWriter_RejectsInvalidEvent(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "run-a")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(types.RunEvent{Step: -1, Loss: 1.0}); err == nil {
		t.Fatal("expected error for negative step")
	}
}

func TestWriter_RejectsStepRegression(t *testing.T) {
	w, err := NewWriter(t.TempDir(), "run-a")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(sampleEvent(10)); err != nil {
		t.Fatal(err)
	}
	err = w.Write(sampleEvent(5))
	if err == nil {
		t.Fatal("expected error for step regression")
	}
	if !strings.Contains(err.Error(), "regressed") {
		t.Errorf("error = %q", err)
	}
	// Equal steps are fine: trainers can log twice at one step.
	if err := w.Write(sampleEvent(10)); err != nil {
		t.Fatalf("equal step rejected: %v", err)
	}
}

func TestReader_ReadAllOrder(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	for step := 0; step < 5; step++ {
		if err := w.Write(sampleEvent(step)); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()

	events, err := NewReader(dir, "run-a").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 {
		t.Fatalf("events = %d, want 5", len(events))
	}
	for i, e := range events {
		if e.Step != i {
			t.Errorf("event %d step = %d", i, e.Step)
		}
	}
}

func TestReader_MissingFile(t *testing.T) {
	events, err := NewReader(t.TempDir(), "no-such-run").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("events = %d, want 0", len(events))
	}
}

func TestReader_MalformedLine(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "bad.jsonl"), []byte("{\"run_id\":\"bad\",\"step\":0,\"loss\":1,\"learning_rate\":0}\nnot json\n"), 0o644)

	_, err := NewReader(dir, "bad").ReadAll()
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error = %q, want line number", err)
	}
}

func TestReader_Tail(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, "run-a")
	for step := 0; step < 10; step++ {
		w.Write(sampleEvent(step))
	}
	w.Close()

	r := NewReader(dir, "run-a")
	tail, err := r.Tail(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(tail) != 3 {
		t.Fatalf("tail = %d, want 3", len(tail))
	}
	if tail[0].Step != 7 || tail[2].Step != 9 {
		t.Errorf("tail steps = %d..%d", tail[0].Step, tail[2].Step)
	}

	// Tail larger than the log returns everything.
	all, err := r.Tail(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 10 {
		t.Errorf("tail(100) = %d, want 10", len(all))
	}
}

func TestReader_Count(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, "run-a")
	for step := 0; step < 7; step++ {
		w.Write(sampleEvent(step))
	}
	w.Close()

	count, err := NewReader(dir, "run-a").Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 7 {
		t.Errorf("count = %d, want 7", count)
	}

	count, err = NewReader(dir, "missing").Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestListRuns(t *testing.T) {
	dir := t.TempDir()
	for _, run := range []string{"run-b", "run-a"} {
		w, _ := NewWriter(dir, run)
		w.Write(types.RunEvent{RunID: run, Step: 0, Loss: 1, LearningRate: 1e-5})
		w.Close()
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	runs, err := ListRuns(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %v", runs)
	}
	if runs[0] != "run-a" || runs[1] != "run-b" {
		t.Errorf("runs not sorted: %v", runs)
	}
}

func TestListRuns_MissingDir(t *testing.T) {
	runs, err := ListRuns(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 0 {
		t.Errorf("runs = %v, want empty", runs)
	}
}

func TestCallback_OnLog(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-cb")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	cb := NewCallback(w, "run-cb")
	err = cb.OnLog(12, map[string]float64{
		"loss":            0.42,
		"learning_rate":   3e-5,
		"rewards/margins": 0.9,
		"grad_norm":       1.5,
	})
	if err != nil {
		t.Fatal(err)
	}

	events, err := NewReader(dir, "run-cb").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Step != 12 || e.Loss != 0.42 || e.LearningRate != 3e-5 {
		t.Errorf("event = %+v", e)
	}
	if e.RewardMargin == nil || *e.RewardMargin != 0.9 {
		t.Errorf("reward_margin = %v", e.RewardMargin)
	}
	if e.Extras["grad_norm"] != 1.5 {
		t.Errorf("extras = %v", e.Extras)
	}
	if _, mapped := e.Extras["loss"]; mapped {
		t.Error("loss should not be duplicated into extras")
	}
}

func TestCallback_OnLogEmpty(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, "run-cb")
	defer w.Close()

	cb := NewCallback(w, "run-cb")
	if err := cb.OnLog(0, nil); err != nil {
		t.Fatal(err)
	}
	count, _ := NewReader(dir, "run-cb").Count()
	if count != 0 {
		t.Errorf("count = %d, want 0 for empty logs", count)
	}
}

func TestCallback_OnStep(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, "run-cb")
	defer w.Close()

	margin := 0.3
	cb := NewCallback(w, "run-cb")
	err := cb.OnStep(types.StepMetrics{Step: 5, Loss: 0.6, LearningRate: 2e-5, RewardMargin: &margin})
	if err != nil {
		t.Fatal(err)
	}
	events, _ := NewReader(dir, "run-cb").ReadAll()
	if len(events) != 1 || events[0].Step != 5 {
		t.Fatalf("events = %+v", events)
	}
	if events[0].RewardMargin == nil || *events[0].RewardMargin != 0.3 {
		t.Errorf("reward_margin = %v", events[0].RewardMargin)
	}
}

func TestReader_TailNonPositive(t *testing.T) {
	dir := t.TempDir()
	w, _ := NewWriter(dir, "run-a")
	for step := 1; step <= 3; step++ {
		w.Write(sampleEvent(step))
	}
	w.Close()

	r := NewReader(dir, "run-a")
	for _, n := range []int{0, -1, -100} {
		events, err := r.Tail(n)
		if err != nil {
			t.Fatalf("tail(%d): %v", n, err)
		}
		if len(events) != 0 {
			t.Errorf("tail(%d) = %d events, want 0", n, len(events))
		}
	}
}

func TestWriter_ReopenKeepsStepGuard(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	for step := 1; step <= 3; step++ {
		if err := w.Write(sampleEvent(step)); err != nil {
			t.Fatal(err)
		}
	}
	w.Close()

	// A second writer for the same run resumes behind the last step.
	w, err = NewWriter(dir, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Write(sampleEvent(2)); err == nil {
		t.Fatal("expected regression error after reopen")
	}
	if err := w.Write(sampleEvent(3)); err != nil {
		t.Fatalf("equal step rejected after reopen: %v", err)
	}
	if err := w.Write(sampleEvent(4)); err != nil {
		t.Fatalf("next step rejected after reopen: %v", err)
	}

	count, err := NewReader(dir, "run-a").Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}
}

func TestWriter_ReopenCorruptLog(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "run-a.jsonl"), []byte("not json\n"), 0o644)

	if _, err := NewWriter(dir, "run-a"); err == nil {
		t.Fatal("expected error reopening a corrupt log")
	}
}

func TestReader_Exists(t *testing.T) {
	dir := t.TempDir()
	if NewReader(dir, "ghost").Exists() {
		t.Error("missing log reported as existing")
	}
	w, _ := NewWriter(dir, "run-a")
	w.Close()
	if !NewReader(dir, "run-a").Exists() {
		t.Error("created log reported as missing")
	}
}

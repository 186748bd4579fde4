package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"alignstudio/internal/telemetry"
	"alignstudio/pkg/types"
)

func TestNewRootCommand_SubcommandRegistration(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{
		"init": false, "prepare": false, "train": false, "runs": false,
		"report": false, "evaluate": false, "dashboard": false,
	}
	for _, c := range root.Commands() {
		want[c.Name()] = true
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand: %s", name)
		}
	}
}

const hhRow = `{"chosen": "\n\nHuman: What is the capital of France?\n\nAssistant: The capital of France is Paris.", "rejected": "\n\nHuman: What is the capital of France?\n\nAssistant: I think it might be Lyon."}
`

func writeWorkspace(t *testing.T) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	dataPath := filepath.Join(dir, "hh.jsonl")
	if err := os.WriteFile(dataPath, []byte(strings.Repeat(hhRow, 32)), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath = filepath.Join(dir, "alignstudio.yaml")
	cfgYAML := `model:
  name: test/model
training:
  output_dir: ` + filepath.Join(dir, "outputs") + `
data:
  source: ` + dataPath + `
telemetry:
  log_dir: ` + filepath.Join(dir, "telemetry") + `
`
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, cfgPath
}

func TestPrepareCommand(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)
	outDir := filepath.Join(dir, "prepared")

	cmd := newPrepareCommand()
	cmd.SetArgs([]string{"--config", cfgPath, "--out", outDir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("prepare failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(outDir, "hh_manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var manifest types.DatasetManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatal(err)
	}
	if manifest.NumRecords != 32 || len(manifest.Checksum) != 16 {
		t.Errorf("manifest = %+v", manifest)
	}
	if _, err := os.Stat(filepath.Join(outDir, "hh_data.jsonl")); err != nil {
		t.Errorf("records file missing: %v", err)
	}
}

func TestPrepareCommand_MissingConfig(t *testing.T) {
	cmd := newPrepareCommand()
	cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestTrainCommand_SimBackend(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)

	cmd := newTrainCommand()
	cmd.SetArgs([]string{"--config", cfgPath, "--backend", "sim", "--run-id", "cli-run"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("train failed: %v", err)
	}

	events, err := telemetry.NewReader(filepath.Join(dir, "telemetry"), "cli-run").ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 { // 32 records / (4*4) effective batch
		t.Errorf("events = %d, want 2", len(events))
	}
	if _, err := os.Stat(filepath.Join(dir, "outputs", "cli-run", "adapter", "adapter_config.json")); err != nil {
		t.Errorf("adapter missing: %v", err)
	}
}

func TestTrainCommand_UnknownBackend(t *testing.T) {
	_, cfgPath := writeWorkspace(t)
	cmd := newTrainCommand()
	cmd.SetArgs([]string{"--config", cfgPath, "--backend", "quantum"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestResolveBackend(t *testing.T) {
	if b, err := resolveBackend("sim", "", nil); err != nil || b.Name() != "sim" {
		t.Errorf("sim backend = %v, %v", b, err)
	}
	if b, err := resolveBackend("exec", "align-trainer", nil); err != nil || b.Name() != "exec" {
		t.Errorf("exec backend = %v, %v", b, err)
	}
	if _, err := resolveBackend("quantum", "", nil); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func writeEvents(t *testing.T, logDir, runID string, n int) {
	t.Helper()
	w, err := telemetry.NewWriter(logDir, runID)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	for step := 1; step <= n; step++ {
		err := w.Write(types.RunEvent{RunID: runID, Step: step, Loss: 1 / float64(step), LearningRate: 5e-5})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunsCommands(t *testing.T) {
	logDir := t.TempDir()
	writeEvents(t, logDir, "run-x", 6)

	list := newRunsCommand()
	var out bytes.Buffer
	list.SetOut(&out)
	list.SetArgs([]string{"list", "--log-dir", logDir})
	if err := list.Execute(); err != nil {
		t.Fatalf("runs list failed: %v", err)
	}

	count := newRunsCommand()
	count.SetArgs([]string{"count", "run-x", "--log-dir", logDir})
	if err := count.Execute(); err != nil {
		t.Fatalf("runs count failed: %v", err)
	}

	tail := newRunsCommand()
	tail.SetArgs([]string{"tail", "run-x", "--log-dir", logDir, "--n", "3"})
	if err := tail.Execute(); err != nil {
		t.Fatalf("runs tail failed: %v", err)
	}

	missing := newRunsCommand()
	missing.SetArgs([]string{"tail", "ghost", "--log-dir", logDir})
	if err := missing.Execute(); err == nil {
		t.Fatal("expected error for run without events")
	}
}

func TestReportCommand(t *testing.T) {
	logDir := t.TempDir()
	writeEvents(t, logDir, "run-x", 4)
	outPath := filepath.Join(logDir, "report.md")

	cmd := newReportCommand()
	cmd.SetArgs([]string{"run-x", "--log-dir", logDir, "--format", "md", "--out", outPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	raw, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "# Alignment Run Report") {
		t.Error("markdown report missing title")
	}

	jsonPath := filepath.Join(logDir, "report.json")
	cmd = newReportCommand()
	cmd.SetArgs([]string{"run-x", "--log-dir", logDir, "--format", "json", "--out", jsonPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("json report failed: %v", err)
	}
}

func TestReportCommand_UnsupportedFormat(t *testing.T) {
	logDir := t.TempDir()
	writeEvents(t, logDir, "run-x", 2)

	cmd := newReportCommand()
	cmd.SetArgs([]string{"run-x", "--log-dir", logDir, "--format", "pdf"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestEvaluateCommand_MissingPrompt(t *testing.T) {
	_, cfgPath := writeWorkspace(t)
	cmd := newEvaluateCommand()
	cmd.SetArgs([]string{"--config", cfgPath})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing prompt")
	}
}

func TestEvaluateCommand_BadAdapter(t *testing.T) {
	dir, cfgPath := writeWorkspace(t)
	cmd := newEvaluateCommand()
	cmd.SetArgs([]string{
		"--config", cfgPath,
		"--prompt", "hello",
		"--adapter", filepath.Join(dir, "no-adapter"),
	})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for adapter without marker file")
	}
}

func TestTrainCommand_ExitCode(t *testing.T) {
	dir, _ := writeWorkspace(t)
	badCfg := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badCfg, []byte("model:\n  name: test/model\ndata:\n  source: "+filepath.Join(dir, "nope.jsonl")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newTrainCommand()
	cmd.SetArgs([]string{"--config", badCfg, "--backend", "sim"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing dataset")
	}
	var ce cliError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %T, want cliError", err)
	}
	if ce.code != 2 {
		t.Errorf("exit code = %d, want 2", ce.code)
	}
}

func TestRunsTail_NegativeN(t *testing.T) {
	logDir := t.TempDir()
	writeEvents(t, logDir, "run-x", 3)

	for _, n := range []string{"-1", "0"} {
		cmd := newRunsCommand()
		cmd.SetArgs([]string{"tail", "run-x", "--log-dir", logDir, "--n", n})
		err := cmd.Execute()
		if err == nil {
			t.Fatalf("--n %s: expected error", n)
		}
		if !strings.Contains(err.Error(), "--n must be >= 1") {
			t.Errorf("--n %s: error = %q", n, err)
		}
	}
}

func TestReportCommand_NegativeTail(t *testing.T) {
	logDir := t.TempDir()
	writeEvents(t, logDir, "run-x", 3)

	cmd := newReportCommand()
	cmd.SetArgs([]string{"run-x", "--log-dir", logDir, "--format", "md", "--tail", "-1"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for negative --tail")
	}
}

package trainer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"alignstudio/internal/hash"
	"alignstudio/pkg/types"
)

// ExecBackend hands the run to an external trainer process. The spec
// goes in as JSON on stdin; the trainer streams one JSON StepMetrics
// object per logged step on stdout. Lines that are not JSON are
// forwarded to the log and otherwise ignored.
type ExecBackend struct {
	Command string
	Args    []string
	Log     *zap.Logger
}

func NewExecBackend(command string, args []string, log *zap.Logger) *ExecBackend {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecBackend{Command: command, Args: args, Log: log}
}

func (b *ExecBackend) Name() string { return "exec" }

func (b *ExecBackend) Run(ctx context.Context, spec RunSpec, sink Sink) (Result, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return Result{}, fmt.Errorf("marshal run spec: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.Command, b.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("pipe trainer stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start trainer %s: %w", b.Command, err)
	}
	b.Log.Info("trainer started", zap.String("command", b.Command), zap.String("run_id", spec.RunID))

	var result Result
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var m types.StepMetrics
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			b.Log.Debug("trainer output", zap.String("line", line))
			continue
		}
		if err := sink(m); err != nil {
			cmd.Process.Kill()
			cmd.Wait()
			return Result{}, fmt.Errorf("record step %d: %w", m.Step, err)
		}
		result.FinalLoss = m.Loss
		result.Steps = m.Step
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("trainer %s failed: %w: %s", b.Command, err, lastLines(stderr.String(), 5))
	}
	if scanErr != nil {
		return Result{}, fmt.Errorf("read trainer output: %w", scanErr)
	}

	if spec.Model.HasAdapter() && spec.AdapterDir != "" {
		if !hash.FileExists(spec.AdapterDir) {
			return Result{}, fmt.Errorf("trainer finished without saving adapter to %s", spec.AdapterDir)
		}
	}
	return result, nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

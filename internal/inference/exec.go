package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// ExecGenerator shells out to an external runner. The request goes in
// as JSON on stdin; the runner prints one JSON Response on stdout.
type ExecGenerator struct {
	Command string
	Args    []string
	Log     *zap.Logger
}

func NewExecGenerator(command string, args []string, log *zap.Logger) *ExecGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExecGenerator{Command: command, Args: args, Log: log}
}

func (g *ExecGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal generation request: %w", err)
	}

	cmd := exec.CommandContext(ctx, g.Command, g.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.Log.Info("generating", zap.String("model", req.ModelName), zap.String("adapter", req.AdapterPath))
	if err := cmd.Run(); err != nil {
		return Response{}, fmt.Errorf("runner %s failed: %w: %s", g.Command, err, strings.TrimSpace(stderr.String()))
	}

	var resp Response
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return Response{}, fmt.Errorf("parse runner output: %w", err)
	}
	resp.Text = strings.TrimSpace(resp.Text)
	if resp.Text == "" {
		return Response{}, fmt.Errorf("runner produced no text")
	}
	return resp, nil
}

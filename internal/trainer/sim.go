package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"alignstudio/pkg/types"
)

// SimBackend runs a deterministic loss-decay simulation instead of a
// real optimizer. It exists for demos and tests: same seed, same
// curves, no GPU.
type SimBackend struct{}

func (SimBackend) Name() string { return "sim" }

// Run emits one metrics event per optimizer step. Loss decays from the
// sigmoid-loss starting point ln(2) toward a floor, the reward margin
// grows symmetrically, and the learning rate follows a linear
// warmup/decay schedule.
func (SimBackend) Run(ctx context.Context, spec RunSpec, sink Sink) (Result, error) {
	total := spec.TotalSteps()
	if total < 1 {
		return Result{}, fmt.Errorf("no training steps: %d records", spec.NumRecords)
	}

	rng := rand.New(rand.NewSource(spec.Train.Seed))
	warmup := total / 10
	loss := 0.0

	for step := 1; step <= total; step++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		progress := float64(step) / float64(total)
		noise := rng.NormFloat64() * 0.01
		loss = 0.05 + (math.Ln2-0.05)*math.Exp(-3*progress) + noise
		margin := 1.2 * (1 - math.Exp(-3*progress))

		lr := spec.Train.LearningRate
		if warmup > 0 && step < warmup {
			lr *= float64(step) / float64(warmup)
		} else if total > warmup {
			lr *= 1 - float64(step-warmup)/float64(total-warmup+1)
		}

		m := stepMetrics(step, loss, lr)
		m.RewardMargin = &margin
		if err := sink(m); err != nil {
			return Result{}, fmt.Errorf("record step %d: %w", step, err)
		}
	}

	if spec.Model.HasAdapter() && spec.AdapterDir != "" {
		if err := writeSimAdapter(spec); err != nil {
			return Result{}, err
		}
	}
	return Result{FinalLoss: loss, Steps: total}, nil
}

func stepMetrics(step int, loss, lr float64) types.StepMetrics {
	return types.StepMetrics{Step: step, Loss: loss, LearningRate: lr}
}

// writeSimAdapter drops a marker checkpoint so downstream tooling
// (adapter listing, evaluate) has something to resolve.
func writeSimAdapter(spec RunSpec) error {
	if err := os.MkdirAll(spec.AdapterDir, 0o755); err != nil {
		return fmt.Errorf("create adapter dir: %w", err)
	}
	cfg, err := json.MarshalIndent(spec.Model.LoRA, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal adapter config: %w", err)
	}
	path := filepath.Join(spec.AdapterDir, "adapter_config.json")
	if err := os.WriteFile(path, cfg, 0o644); err != nil {
		return fmt.Errorf("write adapter config: %w", err)
	}
	return nil
}

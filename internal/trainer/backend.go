// Package trainer orchestrates alignment runs. The optimization loop
// itself runs in a Backend; the orchestrator owns everything around
// it: data preparation, provenance, and telemetry.
package trainer

import (
	"context"

	"alignstudio/internal/model"
	"alignstudio/pkg/types"
)

// Sink receives per-step metrics as a backend produces them.
type Sink func(types.StepMetrics) error

// RunSpec is the full instruction set handed to a backend for one run.
type RunSpec struct {
	RunID       string            `json:"run_id"`
	Model       model.LoadSpec    `json:"model"`
	Train       types.TrainConfig `json:"train"`
	TrainerArgs map[string]any    `json:"trainer_args"`
	// DataPath points at the prepared records JSONL.
	DataPath   string `json:"data_path"`
	NumRecords int    `json:"num_records"`
	// AdapterDir is where the backend saves the trained adapter.
	AdapterDir string `json:"adapter_dir"`
}

// Result is what a backend reports when its run completes.
type Result struct {
	FinalLoss float64 `json:"final_loss"`
	Steps     int     `json:"steps"`
}

// Backend executes the training loop for a prepared run.
type Backend interface {
	Name() string
	Run(ctx context.Context, spec RunSpec, sink Sink) (Result, error)
}

// EffectiveBatchSize is the number of records consumed per optimizer
// step.
func (s RunSpec) EffectiveBatchSize() int {
	return s.Train.BatchSize * s.Train.GradientAccumulationSteps
}

// TotalSteps is the optimizer step count implied by the record count,
// batch settings, and epochs.
func (s RunSpec) TotalSteps() int {
	eff := s.EffectiveBatchSize()
	perEpoch := (s.NumRecords + eff - 1) / eff
	return perEpoch * s.Train.NumEpochs
}

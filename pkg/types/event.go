package types

import (
	"fmt"
	"time"
)

// RunEvent is one structured record of training progress at a given
// step. Events are appended to a per-run JSONL log, one per logged
// step, and never mutated or deleted.
type RunEvent struct {
	Timestamp       time.Time          `json:"timestamp"`
	RunID           string             `json:"run_id"`
	Step            int                `json:"step"`
	Loss            float64            `json:"loss"`
	RewardMargin    *float64           `json:"reward_margin,omitempty"`
	LearningRate    float64            `json:"learning_rate"`
	GPUMemoryMB     *float64           `json:"gpu_memory_mb,omitempty"`
	TokensPerSecond *float64           `json:"tokens_per_second,omitempty"`
	Extras          map[string]float64 `json:"extras,omitempty"`
}

func (e RunEvent) Validate() error {
	if e.RunID == "" {
		return fmt.Errorf("event run_id is required")
	}
	if e.Step < 0 {
		return fmt.Errorf("event step %d is negative", e.Step)
	}
	if e.LearningRate < 0 {
		return fmt.Errorf("event learning_rate %g is negative", e.LearningRate)
	}
	return nil
}

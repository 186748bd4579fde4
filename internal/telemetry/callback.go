package telemetry

import (
	"time"

	"alignstudio/pkg/types"
)

// Metric keys the trainer reports that map onto dedicated RunEvent
// fields; everything else lands in Extras.
const (
	keyLoss         = "loss"
	keyLearningRate = "learning_rate"
	keyRewardMargin = "rewards/margins"
)

// Callback turns raw trainer step logs into RunEvents and appends them
// to an event Writer. It decouples the trainer from how telemetry is
// persisted.
type Callback struct {
	writer *Writer
	runID  string
}

func NewCallback(writer *Writer, runID string) *Callback {
	return &Callback{writer: writer, runID: runID}
}

// OnLog is invoked once per logged training step with the raw metric
// map the trainer produced.
func (c *Callback) OnLog(step int, logs map[string]float64) error {
	if len(logs) == 0 {
		return nil
	}

	event := types.RunEvent{
		Timestamp:    time.Now().UTC(),
		RunID:        c.runID,
		Step:         step,
		Loss:         logs[keyLoss],
		LearningRate: logs[keyLearningRate],
	}
	if margin, ok := logs[keyRewardMargin]; ok {
		m := margin
		event.RewardMargin = &m
	}
	extras := make(map[string]float64)
	for k, v := range logs {
		switch k {
		case keyLoss, keyLearningRate, keyRewardMargin:
		default:
			extras[k] = v
		}
	}
	if len(extras) > 0 {
		event.Extras = extras
	}
	return c.writer.Write(event)
}

// OnStep records one structured StepMetrics report from a backend.
func (c *Callback) OnStep(m types.StepMetrics) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return c.writer.Write(types.RunEvent{
		Timestamp:       time.Now().UTC(),
		RunID:           c.runID,
		Step:            m.Step,
		Loss:            m.Loss,
		LearningRate:    m.LearningRate,
		RewardMargin:    m.RewardMargin,
		GPUMemoryMB:     m.GPUMemoryMB,
		TokensPerSecond: m.TokensPerSecond,
		Extras:          m.Extras,
	})
}

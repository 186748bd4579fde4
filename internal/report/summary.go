// Package report renders run summaries from telemetry events, as JSON
// for tooling and Markdown for humans.
package report

import (
	"fmt"
	"time"

	"alignstudio/pkg/types"
)

// Summary aggregates one run's event log.
type Summary struct {
	RunID              string    `json:"run_id"`
	NumEvents          int       `json:"num_events"`
	LatestStep         int       `json:"latest_step"`
	FirstLoss          float64   `json:"first_loss"`
	FinalLoss          float64   `json:"final_loss"`
	LossDelta          float64   `json:"loss_delta"`
	LatestLearningRate float64   `json:"latest_learning_rate"`
	LatestRewardMargin *float64  `json:"latest_reward_margin,omitempty"`
	StartedAt          time.Time `json:"started_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Summarize reduces an event log to a Summary. Events are expected in
// append order, as the telemetry reader returns them.
func Summarize(runID string, events []types.RunEvent) (Summary, error) {
	if len(events) == 0 {
		return Summary{}, fmt.Errorf("run %s has no events", runID)
	}
	first := events[0]
	last := events[len(events)-1]

	s := Summary{
		RunID:              runID,
		NumEvents:          len(events),
		LatestStep:         last.Step,
		FirstLoss:          first.Loss,
		FinalLoss:          last.Loss,
		LossDelta:          last.Loss - first.Loss,
		LatestLearningRate: last.LearningRate,
		StartedAt:          first.Timestamp,
		UpdatedAt:          last.Timestamp,
	}
	// The margin may only appear on some steps; report the most recent.
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].RewardMargin != nil {
			m := *events[i].RewardMargin
			s.LatestRewardMargin = &m
			break
		}
	}
	return s, nil
}

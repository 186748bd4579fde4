package algorithm

import "fmt"

func init() {
	Register(&PPO{})
}

// PPO is registered so configs can name it, but the reward-model loop
// is not wired up yet.
// TODO: build trainer args once the reward model flow lands.
type PPO struct{}

func (*PPO) Name() string { return "ppo" }

func (*PPO) RequiredDataFormat() string { return "prompt_completion" }

func (*PPO) BuildTrainerArgs(raw map[string]any) (map[string]any, error) {
	return nil, fmt.Errorf("ppo training is not implemented, use dpo")
}

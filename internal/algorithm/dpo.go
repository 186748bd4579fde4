package algorithm

import "fmt"

func init() {
	Register(&DPO{})
}

// DPO trains a policy directly on preference pairs without a separate
// reward model. The heavy lifting happens in the external trainer;
// this plugin only shapes its arguments.
type DPO struct{}

func (*DPO) Name() string { return "dpo" }

func (*DPO) RequiredDataFormat() string { return "preference_pairs" }

// BuildTrainerArgs reads the optional dpo: section of the raw config
// and fills in defaults for anything unset.
func (*DPO) BuildTrainerArgs(raw map[string]any) (map[string]any, error) {
	args := map[string]any{
		"beta":              0.1,
		"loss_type":         "sigmoid",
		"warmup_ratio":      0.1,
		"weight_decay":      0.01,
		"max_grad_norm":     1.0,
		"logging_steps":     10,
		"eval_steps":        100,
		"save_steps":        200,
		"max_prompt_length": 256,
	}

	section, ok := raw["dpo"]
	if !ok {
		return args, nil
	}
	overrides, ok := section.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("dpo config section is not a mapping")
	}
	for key, value := range overrides {
		if _, known := args[key]; !known {
			return nil, fmt.Errorf("unknown dpo option %q", key)
		}
		args[key] = value
	}

	if beta, ok := args["beta"].(float64); ok && beta <= 0 {
		return nil, fmt.Errorf("dpo beta %g must be > 0", beta)
	}
	switch args["loss_type"] {
	case "sigmoid", "hinge", "ipo":
	default:
		return nil, fmt.Errorf("unsupported dpo loss_type %v", args["loss_type"])
	}
	return args, nil
}

package types

import "fmt"

// TrainConfig is the flat training configuration, loaded once per run
// from a nested YAML file and flattened by internal/config.
type TrainConfig struct {
	ModelName                 string  `json:"model_name" yaml:"model_name"`
	Algorithm                 string  `json:"algorithm" yaml:"algorithm"`
	AdapterType               string  `json:"adapter_type" yaml:"adapter_type"`
	QuantizationBits          int     `json:"quantization_bits" yaml:"quantization_bits"`
	BatchSize                 int     `json:"batch_size" yaml:"batch_size"`
	GradientAccumulationSteps int     `json:"gradient_accumulation_steps" yaml:"gradient_accumulation_steps"`
	LearningRate              float64 `json:"learning_rate" yaml:"learning_rate"`
	NumEpochs                 int     `json:"num_epochs" yaml:"num_epochs"`
	MaxLength                 int     `json:"max_length" yaml:"max_length"`
	Seed                      int64   `json:"seed" yaml:"seed"`
	OutputDir                 string  `json:"output_dir" yaml:"output_dir"`
	BF16                      bool    `json:"bf16" yaml:"bf16"`
}

// DefaultTrainConfig returns the defaults applied before a config file
// is merged in.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Algorithm:                 "dpo",
		AdapterType:               "lora",
		QuantizationBits:          4,
		BatchSize:                 4,
		GradientAccumulationSteps: 4,
		LearningRate:              5e-5,
		NumEpochs:                 1,
		MaxLength:                 512,
		Seed:                      42,
		OutputDir:                 "outputs",
		BF16:                      true,
	}
}

func (c TrainConfig) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model_name is required")
	}
	if c.Algorithm == "" {
		return fmt.Errorf("algorithm is required")
	}
	if c.QuantizationBits < 4 || c.QuantizationBits > 8 {
		return fmt.Errorf("quantization_bits %d out of range [4,8]", c.QuantizationBits)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size %d must be >= 1", c.BatchSize)
	}
	if c.GradientAccumulationSteps < 1 {
		return fmt.Errorf("gradient_accumulation_steps %d must be >= 1", c.GradientAccumulationSteps)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate %g must be > 0", c.LearningRate)
	}
	if c.NumEpochs < 1 {
		return fmt.Errorf("num_epochs %d must be >= 1", c.NumEpochs)
	}
	if c.MaxLength < 64 {
		return fmt.Errorf("max_length %d must be >= 64", c.MaxLength)
	}
	return nil
}

// StepMetrics are the metrics a trainer backend reports after each
// logged training step.
type StepMetrics struct {
	Step            int                `json:"step"`
	Loss            float64            `json:"loss"`
	LearningRate    float64            `json:"learning_rate"`
	RewardMargin    *float64           `json:"reward_margin,omitempty"`
	GPUMemoryMB     *float64           `json:"gpu_memory_mb,omitempty"`
	TokensPerSecond *float64           `json:"tokens_per_second,omitempty"`
	Extras          map[string]float64 `json:"extras,omitempty"`
}

func (m StepMetrics) Validate() error {
	if m.Step < 0 {
		return fmt.Errorf("step %d is negative", m.Step)
	}
	if m.LearningRate < 0 {
		return fmt.Errorf("learning_rate %g is negative", m.LearningRate)
	}
	return nil
}

// EvalMetrics summarize one evaluation pass.
type EvalMetrics struct {
	Step             int      `json:"step"`
	EvalLoss         float64  `json:"eval_loss"`
	EvalRewardMargin *float64 `json:"eval_reward_margin,omitempty"`
	NumSamples       int      `json:"num_samples"`
}

func (m EvalMetrics) Validate() error {
	if m.Step < 0 {
		return fmt.Errorf("step %d is negative", m.Step)
	}
	if m.NumSamples < 1 {
		return fmt.Errorf("num_samples %d must be >= 1", m.NumSamples)
	}
	return nil
}

// Package model describes how the external trainer should load the
// base model. The actual weights never enter this process; LoadSpec is
// the contract handed to the backend.
package model

import (
	"fmt"

	"alignstudio/pkg/types"
)

// QuantizationSpec configures BitsAndBytes-style weight quantization.
type QuantizationSpec struct {
	Bits           int    `json:"bits"`
	QuantType      string `json:"quant_type"`
	ComputeDtype   string `json:"compute_dtype"`
	UseDoubleQuant bool   `json:"use_double_quant"`
}

// LoRASpec configures the parameter-efficient adapter.
type LoRASpec struct {
	Rank          int      `json:"rank"`
	Alpha         int      `json:"alpha"`
	Dropout       float64  `json:"dropout"`
	TargetModules []string `json:"target_modules"`
	Bias          string   `json:"bias"`
	TaskType      string   `json:"task_type"`
}

// LoadSpec is everything the trainer needs to load and prepare the
// base model.
type LoadSpec struct {
	ModelName    string            `json:"model_name"`
	MaxLength    int               `json:"max_length"`
	Quantization *QuantizationSpec `json:"quantization,omitempty"`
	LoRA         *LoRASpec         `json:"lora,omitempty"`
}

// IsQuantized reports whether weight quantization is requested.
func (s LoadSpec) IsQuantized() bool { return s.Quantization != nil }

// HasAdapter reports whether an adapter will be attached.
func (s LoadSpec) HasAdapter() bool { return s.LoRA != nil }

// BuildLoadSpec derives a LoadSpec from a validated train config.
// Quantization applies only for 4 or 8 bit; 4-bit uses nf4 with
// double quantization. The compute dtype follows the bf16 flag.
func BuildLoadSpec(c types.TrainConfig) (LoadSpec, error) {
	if err := c.Validate(); err != nil {
		return LoadSpec{}, fmt.Errorf("build load spec: %w", err)
	}

	spec := LoadSpec{
		ModelName: c.ModelName,
		MaxLength: c.MaxLength,
	}

	if c.QuantizationBits == 4 || c.QuantizationBits == 8 {
		dtype := "float16"
		if c.BF16 {
			dtype = "bfloat16"
		}
		spec.Quantization = &QuantizationSpec{
			Bits:           c.QuantizationBits,
			QuantType:      "nf4",
			ComputeDtype:   dtype,
			UseDoubleQuant: c.QuantizationBits == 4,
		}
	}

	switch c.AdapterType {
	case "lora":
		spec.LoRA = &LoRASpec{
			Rank:          16,
			Alpha:         32,
			Dropout:       0.05,
			TargetModules: []string{"q_proj", "v_proj", "k_proj", "o_proj"},
			Bias:          "none",
			TaskType:      "CAUSAL_LM",
		}
	case "", "none":
	default:
		return LoadSpec{}, fmt.Errorf("unsupported adapter type %q", c.AdapterType)
	}
	return spec, nil
}

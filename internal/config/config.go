package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"alignstudio/pkg/types"
)

// fileConfig mirrors the nested layout of alignstudio.yaml. It is
// flattened into types.TrainConfig once per run; the raw nested map is
// kept around for algorithm-specific sections (dpo:, ppo:).
type fileConfig struct {
	Model struct {
		Name         string `yaml:"name"`
		MaxLength    int    `yaml:"max_length"`
		Quantization struct {
			Bits int `yaml:"bits"`
		} `yaml:"quantization"`
	} `yaml:"model"`
	Training struct {
		Algorithm                 string  `yaml:"algorithm"`
		BatchSize                 int     `yaml:"batch_size"`
		GradientAccumulationSteps int     `yaml:"gradient_accumulation_steps"`
		LearningRate              float64 `yaml:"learning_rate"`
		NumEpochs                 int     `yaml:"num_epochs"`
		Seed                      int64   `yaml:"seed"`
		OutputDir                 string  `yaml:"output_dir"`
		BF16                      *bool   `yaml:"bf16"`
	} `yaml:"training"`
	Adapter struct {
		Type string `yaml:"type"`
	} `yaml:"adapter"`
	Data      DataConfig      `yaml:"data"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// DataConfig selects the dataset the pipeline feeds to the trainer.
type DataConfig struct {
	Source     string `yaml:"source"`
	TrainSplit string `yaml:"train_split"`
	Format     string `yaml:"format"`
	MaxSamples int    `yaml:"max_samples"`
	Strict     bool   `yaml:"strict"`
}

type TelemetryConfig struct {
	LogDir string `yaml:"log_dir"`
}

// Config is the fully resolved run configuration.
type Config struct {
	Train     types.TrainConfig
	Data      DataConfig
	Telemetry TelemetryConfig
	// Raw preserves the nested file for algorithm-specific sections.
	Raw map[string]any
}

// Load reads and flattens a nested YAML training configuration.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	var rawMap map[string]any
	if err := yaml.Unmarshal(raw, &rawMap); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{
		Train:     flatten(fc),
		Data:      fc.Data,
		Telemetry: fc.Telemetry,
		Raw:       rawMap,
	}
	if cfg.Data.TrainSplit == "" {
		cfg.Data.TrainSplit = "train"
	}
	if cfg.Data.Format == "" {
		cfg.Data.Format = "anthropic_hh"
	}
	if cfg.Telemetry.LogDir == "" {
		cfg.Telemetry.LogDir = "outputs/telemetry"
	}
	if err := cfg.Train.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func flatten(fc fileConfig) types.TrainConfig {
	c := types.DefaultTrainConfig()
	c.ModelName = fc.Model.Name
	if fc.Training.Algorithm != "" {
		c.Algorithm = fc.Training.Algorithm
	}
	if fc.Adapter.Type != "" {
		c.AdapterType = fc.Adapter.Type
	}
	if fc.Model.Quantization.Bits != 0 {
		c.QuantizationBits = fc.Model.Quantization.Bits
	}
	if fc.Training.BatchSize != 0 {
		c.BatchSize = fc.Training.BatchSize
	}
	if fc.Training.GradientAccumulationSteps != 0 {
		c.GradientAccumulationSteps = fc.Training.GradientAccumulationSteps
	}
	if fc.Training.LearningRate != 0 {
		c.LearningRate = fc.Training.LearningRate
	}
	if fc.Training.NumEpochs != 0 {
		c.NumEpochs = fc.Training.NumEpochs
	}
	if fc.Model.MaxLength != 0 {
		c.MaxLength = fc.Model.MaxLength
	}
	if fc.Training.Seed != 0 {
		c.Seed = fc.Training.Seed
	}
	if fc.Training.OutputDir != "" {
		c.OutputDir = fc.Training.OutputDir
	}
	if fc.Training.BF16 != nil {
		c.BF16 = *fc.Training.BF16
	}
	return c
}

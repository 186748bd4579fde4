package trainer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alignstudio/internal/algorithm"
	"alignstudio/internal/config"
	"alignstudio/internal/dataset"
	"alignstudio/internal/model"
	"alignstudio/internal/telemetry"
)

// TrainResult summarizes one completed run.
type TrainResult struct {
	RunID           string        `json:"run_id"`
	Algorithm       string        `json:"algorithm"`
	FinalLoss       float64       `json:"final_loss"`
	Steps           int           `json:"steps"`
	NumRecords      int           `json:"num_records"`
	DatasetChecksum string        `json:"dataset_checksum"`
	OutputDir       string        `json:"output_dir"`
	AdapterDir      string        `json:"adapter_dir,omitempty"`
	ManifestPath    string        `json:"manifest_path"`
	Duration        time.Duration `json:"duration"`
}

// Orchestrator wires the registry, pipeline, model loader, telemetry,
// and a backend into one training run.
type Orchestrator struct {
	cfg     *config.Config
	backend Backend
	log     *zap.Logger
}

func NewOrchestrator(cfg *config.Config, backend Backend, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg, backend: backend, log: log}
}

// Train executes a full run: prepare data, write provenance, hand the
// spec to the backend, and stream its metrics into the event log. An
// empty runID gets a fresh UUID.
func (o *Orchestrator) Train(ctx context.Context, runID string) (*TrainResult, error) {
	start := time.Now()
	if runID == "" {
		runID = uuid.NewString()
	}
	cfg := o.cfg

	plugin, err := algorithm.Get(cfg.Train.Algorithm)
	if err != nil {
		return nil, err
	}
	trainerArgs, err := plugin.BuildTrainerArgs(cfg.Raw)
	if err != nil {
		return nil, fmt.Errorf("build %s trainer args: %w", plugin.Name(), err)
	}

	formatter, err := dataset.GetFormatter(cfg.Data.Format)
	if err != nil {
		return nil, err
	}

	o.log.Info("starting run",
		zap.String("run_id", runID),
		zap.String("algorithm", plugin.Name()),
		zap.String("backend", o.backend.Name()),
		zap.String("model", cfg.Train.ModelName))

	pipeline := dataset.NewPipeline(dataset.PipelineOptions{
		MaxSamples: cfg.Data.MaxSamples,
		Strict:     cfg.Data.Strict,
		Logger:     o.log,
	})
	rows, err := pipeline.Load(cfg.Data.Source)
	if err != nil {
		return nil, err
	}
	records, err := pipeline.Normalize(rows, formatter)
	if err != nil {
		return nil, err
	}

	outputDir := filepath.Join(cfg.Train.OutputDir, runID)
	datasetName := datasetName(cfg.Data.Source)
	manifest, err := pipeline.CreateManifest(datasetName, records, "")
	if err != nil {
		return nil, err
	}
	manifestPath, err := pipeline.WriteManifest(manifest, outputDir)
	if err != nil {
		return nil, err
	}
	dataPath, err := pipeline.WriteRecords(datasetName, records, outputDir)
	if err != nil {
		return nil, err
	}

	loadSpec, err := model.BuildLoadSpec(cfg.Train)
	if err != nil {
		return nil, err
	}

	writer, err := telemetry.NewWriter(cfg.Telemetry.LogDir, runID)
	if err != nil {
		return nil, err
	}
	defer writer.Close()
	callback := telemetry.NewCallback(writer, runID)

	spec := RunSpec{
		RunID:       runID,
		Model:       loadSpec,
		Train:       cfg.Train,
		TrainerArgs: trainerArgs,
		DataPath:    dataPath,
		NumRecords:  len(records),
		AdapterDir:  filepath.Join(outputDir, "adapter"),
	}
	result, err := o.backend.Run(ctx, spec, callback.OnStep)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	o.log.Info("run complete",
		zap.String("run_id", runID),
		zap.Float64("final_loss", result.FinalLoss),
		zap.Int("steps", result.Steps),
		zap.Duration("duration", time.Since(start)))

	res := &TrainResult{
		RunID:           runID,
		Algorithm:       plugin.Name(),
		FinalLoss:       result.FinalLoss,
		Steps:           result.Steps,
		NumRecords:      len(records),
		DatasetChecksum: manifest.Checksum,
		OutputDir:       outputDir,
		ManifestPath:    manifestPath,
		Duration:        time.Since(start),
	}
	if loadSpec.HasAdapter() {
		res.AdapterDir = spec.AdapterDir
	}
	return res, nil
}

// datasetName derives a manifest name from the source path.
func datasetName(source string) string {
	base := filepath.Base(source)
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." {
		return "dataset"
	}
	return base
}

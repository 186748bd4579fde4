package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alignstudio/internal/algorithm"
	"alignstudio/internal/config"
	"alignstudio/internal/dashboard"
	"alignstudio/internal/dataset"
	"alignstudio/internal/hash"
	"alignstudio/internal/inference"
	"alignstudio/internal/model"
	"alignstudio/internal/report"
	"alignstudio/internal/telemetry"
	"alignstudio/internal/trainer"
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var verbose bool

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "alignctl",
		Short: "Preference fine-tuning workbench CLI",
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
	root.AddCommand(newInitCommand())
	root.AddCommand(newPrepareCommand())
	root.AddCommand(newTrainCommand())
	root.AddCommand(newRunsCommand())
	root.AddCommand(newReportCommand())
	root.AddCommand(newEvaluateCommand())
	root.AddCommand(newDashboardCommand())
	return root
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize alignstudio configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			if !hash.FileExists("alignstudio.yaml") {
				if err := os.WriteFile("alignstudio.yaml", []byte(defaultConfigYAML), 0o644); err != nil {
					return err
				}
			}
			if err := os.MkdirAll("outputs/telemetry", 0o755); err != nil {
				return err
			}
			fmt.Println("initialized alignstudio config and output directories")
			fmt.Println("available algorithms:", strings.Join(algorithm.Available(), ", "))
			return nil
		},
	}
}

func newPrepareCommand() *cobra.Command {
	var cfgPath, outDir string
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Validate and format a preference dataset, emit manifest",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			formatter, err := dataset.GetFormatter(cfg.Data.Format)
			if err != nil {
				return err
			}
			pipeline := dataset.NewPipeline(dataset.PipelineOptions{
				MaxSamples: cfg.Data.MaxSamples,
				Strict:     cfg.Data.Strict,
				Logger:     log,
			})
			rows, err := pipeline.Load(cfg.Data.Source)
			if err != nil {
				return err
			}
			records, err := pipeline.Normalize(rows, formatter)
			if err != nil {
				return err
			}

			name := strings.TrimSuffix(filepath.Base(cfg.Data.Source), filepath.Ext(cfg.Data.Source))
			manifest, err := pipeline.CreateManifest(name, records, "")
			if err != nil {
				return err
			}
			manifestPath, err := pipeline.WriteManifest(manifest, outDir)
			if err != nil {
				return err
			}
			dataPath, err := pipeline.WriteRecords(name, records, outDir)
			if err != nil {
				return err
			}
			fmt.Println(manifestPath)
			fmt.Println(dataPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "alignstudio.yaml", "run configuration file")
	cmd.Flags().StringVar(&outDir, "out", "outputs/prepared", "output directory")
	return cmd
}

func newTrainCommand() *cobra.Command {
	var cfgPath, backendName, trainerCmd, runID string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Run an alignment training job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			backend, err := resolveBackend(backendName, trainerCmd, log)
			if err != nil {
				return err
			}
			res, err := trainer.NewOrchestrator(cfg, backend, log).Train(cmd.Context(), runID)
			if err != nil {
				return cliError{code: 2, err: err}
			}
			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "alignstudio.yaml", "run configuration file")
	cmd.Flags().StringVar(&backendName, "backend", "exec", "training backend (exec|sim)")
	cmd.Flags().StringVar(&trainerCmd, "trainer-cmd", "align-trainer", "external trainer command for the exec backend")
	cmd.Flags().StringVar(&runID, "run-id", "", "run identifier (generated when empty)")
	return cmd
}

func resolveBackend(name, trainerCmd string, log *zap.Logger) (trainer.Backend, error) {
	switch name {
	case "sim":
		return trainer.SimBackend{}, nil
	case "exec":
		return trainer.NewExecBackend(trainerCmd, nil, log), nil
	default:
		return nil, fmt.Errorf("unsupported backend %s", name)
	}
}

func newRunsCommand() *cobra.Command {
	runsCmd := &cobra.Command{Use: "runs", Short: "Inspect run telemetry"}

	var logDir string
	runsCmd.PersistentFlags().StringVar(&logDir, "log-dir", "outputs/telemetry", "telemetry log directory")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List run IDs with event logs",
		RunE: func(_ *cobra.Command, _ []string) error {
			runs, err := telemetry.ListRuns(logDir)
			if err != nil {
				return err
			}
			for _, run := range runs {
				fmt.Println(run)
			}
			return nil
		},
	}

	var tailN int
	tailCmd := &cobra.Command{
		Use:   "tail <run-id>",
		Short: "Print the last events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if tailN < 1 {
				return fmt.Errorf("--n must be >= 1, got %d", tailN)
			}
			events, err := telemetry.NewReader(logDir, args[0]).Tail(tailN)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				return fmt.Errorf("run %s has no events", args[0])
			}
			enc := json.NewEncoder(os.Stdout)
			for _, e := range events {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	tailCmd.Flags().IntVar(&tailN, "n", 10, "number of events to print")

	countCmd := &cobra.Command{
		Use:   "count <run-id>",
		Short: "Count the events of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			count, err := telemetry.NewReader(logDir, args[0]).Count()
			if err != nil {
				return err
			}
			fmt.Println(count)
			return nil
		},
	}

	runsCmd.AddCommand(listCmd)
	runsCmd.AddCommand(tailCmd)
	runsCmd.AddCommand(countCmd)
	return runsCmd
}

func newReportCommand() *cobra.Command {
	var logDir, format, outPath string
	var tailN int
	cmd := &cobra.Command{
		Use:   "report <run-id>",
		Short: "Generate a run report from telemetry",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if tailN < 0 {
				return fmt.Errorf("--tail must be >= 0, got %d", tailN)
			}
			runID := args[0]
			reader := telemetry.NewReader(logDir, runID)
			events, err := reader.ReadAll()
			if err != nil {
				return err
			}
			summary, err := report.Summarize(runID, events)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				if outPath == "" {
					outPath = runID + "_report.json"
				}
				if err := report.WriteJSON(outPath, summary); err != nil {
					return err
				}
			case "md":
				if outPath == "" {
					outPath = runID + "_report.md"
				}
				tail, err := reader.Tail(tailN)
				if err != nil {
					return err
				}
				if err := report.WriteMarkdown(outPath, summary, tail); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unsupported format %s", format)
			}
			fmt.Println(outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&logDir, "log-dir", "outputs/telemetry", "telemetry log directory")
	cmd.Flags().StringVar(&format, "format", "md", "output format (json|md)")
	cmd.Flags().StringVar(&outPath, "out", "", "output report path")
	cmd.Flags().IntVar(&tailN, "tail", 10, "recent steps to include in markdown")
	return cmd
}

func newEvaluateCommand() *cobra.Command {
	var cfgPath, adapterPath, prompt, runnerCmd string
	var maxNewTokens int
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Generate a response from the trained model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if prompt == "" {
				return fmt.Errorf("--prompt is required")
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			if adapterPath != "" {
				store := model.NewAdapterStore(filepath.Dir(adapterPath))
				if _, err := store.Resolve(adapterPath); err != nil {
					return err
				}
			}

			params := inference.DefaultGenerationParams()
			if maxNewTokens > 0 {
				params.MaxNewTokens = maxNewTokens
			}
			gen := inference.NewExecGenerator(runnerCmd, nil, log)
			resp, err := gen.Generate(cmd.Context(), inference.Request{
				ModelName:   cfg.Train.ModelName,
				AdapterPath: adapterPath,
				Prompt:      prompt,
				Params:      params,
			})
			if err != nil {
				return cliError{code: 2, err: err}
			}
			fmt.Println(resp.Text)
			return nil
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "alignstudio.yaml", "run configuration file")
	cmd.Flags().StringVar(&adapterPath, "adapter", "", "trained adapter directory (empty for base model)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt to respond to")
	cmd.Flags().StringVar(&runnerCmd, "runner-cmd", "align-runner", "external generation runner command")
	cmd.Flags().IntVar(&maxNewTokens, "max-new-tokens", 0, "override generation token budget")
	return cmd
}

func newDashboardCommand() *cobra.Command {
	dashCmd := &cobra.Command{Use: "dashboard", Short: "Run monitoring dashboard"}

	var addr, logDir, cfgPath, runnerCmd string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			modelName := ""
			var gen inference.Generator
			if cfg, err := config.Load(cfgPath); err == nil {
				modelName = cfg.Train.ModelName
				if logDir == "" {
					logDir = cfg.Telemetry.LogDir
				}
				gen = inference.NewExecGenerator(runnerCmd, nil, log)
			}
			if logDir == "" {
				logDir = "outputs/telemetry"
			}

			server := dashboard.NewServer(dashboard.Options{
				LogDir:    logDir,
				ModelName: modelName,
				Generator: gen,
				Logger:    log,
			})
			return server.Run(addr)
		},
	}
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&logDir, "log-dir", "", "telemetry log directory (defaults to config)")
	serveCmd.Flags().StringVar(&cfgPath, "config", "alignstudio.yaml", "run configuration file")
	serveCmd.Flags().StringVar(&runnerCmd, "runner-cmd", "align-runner", "external generation runner command")

	dashCmd.AddCommand(serveCmd)
	return dashCmd
}

const defaultConfigYAML = `model:
  name: TinyLlama/TinyLlama-1.1B-Chat-v1.0
  max_length: 512
  quantization:
    bits: 4
training:
  algorithm: dpo
  batch_size: 4
  gradient_accumulation_steps: 4
  learning_rate: 5.0e-5
  num_epochs: 1
  seed: 42
  output_dir: outputs
  bf16: true
adapter:
  type: lora
data:
  source: data/hh_sample.jsonl
  format: anthropic_hh
  max_samples: 0
  strict: false
telemetry:
  log_dir: outputs/telemetry
dpo:
  beta: 0.1
  loss_type: sigmoid
`
